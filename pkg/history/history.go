// Package history implements the bounded undo/redo snapshot stack wrapping
// the annotation store's active set.
package history

import (
	"time"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// DefaultCap is the number of entries kept before the oldest is dropped.
// Mutations beyond the cap are unrecoverable, which is accepted.
const DefaultCap = 50

// Entry is an immutable deep copy of the active annotation set at one point
// in time.
type Entry struct {
	Annotations []*annotation.Annotation
	At          time.Time
}

// Log is the snapshot stack. The pointer indexes the entry matching the
// current state; -1 means the baseline recorded at Reset. Recording after an
// undo discards the redo branch.
type Log struct {
	baseline []*annotation.Annotation
	entries  []Entry
	pos      int
	cap      int

	now func() time.Time
}

func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &Log{pos: -1, cap: capacity, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (l *Log) SetClock(now func() time.Time) { l.now = now }

// Reset clears the log and records snapshot as the new baseline, typically
// on image change or snapshot import.
func (l *Log) Reset(snapshot []*annotation.Annotation) {
	l.baseline = deepCopy(snapshot)
	l.entries = nil
	l.pos = -1
}

// Record pushes a deep copy of the active set after a mutation. Any redo
// branch past the pointer is discarded, and the oldest entry is dropped once
// the cap is exceeded — the baseline shifts forward with it.
func (l *Log) Record(snapshot []*annotation.Annotation) {
	l.entries = l.entries[:l.pos+1]
	l.entries = append(l.entries, Entry{Annotations: deepCopy(snapshot), At: l.now()})
	l.pos++

	if len(l.entries) > l.cap {
		l.baseline = l.entries[0].Annotations
		l.entries = l.entries[1:]
		l.pos--
	}
}

// Undo steps the pointer back and returns a deep copy of the state to
// restore. The second return is false at the boundary.
func (l *Log) Undo() ([]*annotation.Annotation, bool) {
	if l.pos < 0 {
		return nil, false
	}
	l.pos--
	return deepCopy(l.current()), true
}

// Redo steps the pointer forward and returns a deep copy of the state to
// restore. The second return is false at the boundary.
func (l *Log) Redo() ([]*annotation.Annotation, bool) {
	if l.pos >= len(l.entries)-1 {
		return nil, false
	}
	l.pos++
	return deepCopy(l.current()), true
}

// Len is the number of recorded entries (excluding the baseline).
func (l *Log) Len() int { return len(l.entries) }

// Pos is the current pointer; -1 means the baseline state.
func (l *Log) Pos() int { return l.pos }

func (l *Log) current() []*annotation.Annotation {
	if l.pos < 0 {
		return l.baseline
	}
	return l.entries[l.pos].Annotations
}

func deepCopy(src []*annotation.Annotation) []*annotation.Annotation {
	out := make([]*annotation.Annotation, len(src))
	for i, a := range src {
		out[i] = a.Clone()
	}
	return out
}
