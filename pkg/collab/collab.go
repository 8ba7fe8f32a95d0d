// Package collab tracks remote users on the same project: presence, live
// cursor, selection and a stable display color.
package collab

import (
	"hash/fnv"
	"sort"
	"time"

	"github.com/lucasb-eyer/go-colorful"
)

// Cursor is a remote user's pointer position in image space.
type Cursor struct {
	X    float64
	Y    float64
	Tool string
}

// User is the live state of one remote collaborator.
type User struct {
	ID          string
	Name        string
	Color       string
	Cursor      *Cursor
	SelectionID string
	LastSeen    time.Time
}

// Registry holds every known remote user. The local user id is excluded by
// construction: events carrying it are dropped before they reach the map.
type Registry struct {
	localID string
	users   map[string]*User
	now     func() time.Time
}

func NewRegistry(localID string) *Registry {
	return &Registry{
		localID: localID,
		users:   make(map[string]*User),
		now:     time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (r *Registry) SetClock(now func() time.Time) { r.now = now }

// Touch records presence for a user, creating the entry on first sight.
// Events about the local user are ignored.
func (r *Registry) Touch(id, name string) *User {
	if id == "" || id == r.localID {
		return nil
	}
	u, ok := r.users[id]
	if !ok {
		u = &User{ID: id, Color: ColorFor(id)}
		r.users[id] = u
	}
	if name != "" {
		u.Name = name
	}
	u.LastSeen = r.now()
	return u
}

// SetCursor updates a user's cursor, creating the user if needed.
func (r *Registry) SetCursor(id, name string, c Cursor) {
	if u := r.Touch(id, name); u != nil {
		cur := c
		u.Cursor = &cur
	}
}

// SetSelection records which annotation a user has selected.
func (r *Registry) SetSelection(id, name, selectionID string) {
	if u := r.Touch(id, name); u != nil {
		u.SelectionID = selectionID
	}
}

// ClearSelection drops a user's selection.
func (r *Registry) ClearSelection(id string) {
	if u, ok := r.users[id]; ok {
		u.SelectionID = ""
		u.LastSeen = r.now()
	}
}

// Leave removes a user on presence-leave.
func (r *Registry) Leave(id string) {
	delete(r.users, id)
}

// Get returns the user with the given id.
func (r *Registry) Get(id string) (*User, bool) {
	u, ok := r.users[id]
	return u, ok
}

// Users returns all remote users ordered by id.
func (r *Registry) Users() []*User {
	out := make([]*User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Prune drops users not seen within maxAge and returns the removed ids.
func (r *Registry) Prune(maxAge time.Duration) []string {
	cutoff := r.now().Add(-maxAge)
	var gone []string
	for id, u := range r.users {
		if u.LastSeen.Before(cutoff) {
			gone = append(gone, id)
			delete(r.users, id)
		}
	}
	sort.Strings(gone)
	return gone
}

// ColorFor derives a display color from the user id alone, so that the
// assignment never depends on join order. The id hash picks a hue; chroma
// and lightness are fixed to keep cursors readable on the drawing.
func ColorFor(id string) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	hue := float64(h.Sum32() % 360)
	return colorful.Hsv(hue, 0.62, 0.92).Hex()
}
