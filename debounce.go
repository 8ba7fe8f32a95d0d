package annotator

import (
	"sync"
	"time"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

// previewTimer debounces label keystrokes: each preview restarts the timer,
// and only the last pending edit fires. Commit flushes immediately so the
// final value never waits on the delay.
type previewTimer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
	id    string
	label string
	armed bool
	apply func(id, label string)
}

func newPreviewTimer(delay time.Duration, apply func(id, label string)) *previewTimer {
	return &previewTimer{delay: delay, apply: apply}
}

func (p *previewTimer) schedule(id, label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.id, p.label, p.armed = id, label, true
	p.timer = time.AfterFunc(p.delay, p.fire)
}

func (p *previewTimer) fire() {
	p.mu.Lock()
	if !p.armed {
		p.mu.Unlock()
		return
	}
	id, label := p.id, p.label
	p.armed = false
	p.mu.Unlock()
	p.apply(id, label)
}

// cancel drops any pending preview without applying it.
func (p *previewTimer) cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.armed = false
}

// PreviewLabel stages a label edit while the user is still typing. The store
// is updated after the debounce delay so every peer is not flooded with
// per-keystroke history entries; nothing is recorded or broadcast until
// CommitLabel.
func (e *Engine) PreviewLabel(id, label string) {
	e.preview.schedule(id, label)
}

// CommitLabel finishes a label edit: any pending preview is superseded and
// the edit runs as a full mutation with history, persistence and broadcast.
func (e *Engine) CommitLabel(id, label string) (*annotation.Annotation, error) {
	e.preview.cancel()
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update(id, annotation.Patch{Label: &label})
}

// applyPreview is the debounced store-only write behind PreviewLabel.
func (e *Engine) applyPreview(id, label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.anns.Update(id, annotation.Patch{Label: &label}); err != nil {
		e.log.Debug("label preview dropped", "id", id, "error", err)
	}
}
