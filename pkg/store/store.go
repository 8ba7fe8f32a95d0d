// Package store holds the canonical in-memory annotation collection.
//
// The collection is a flat map of annotation by id; parent/child structure is
// carried by the ParentID foreign key only. The universe is partitioned into
// an active set (all profiles, plus leaves whose parent profile has been
// activated) and a pending set (leaves deferred until their parent profile is
// opened). Both local input and remote sync messages funnel through the same
// entry points.
package store

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

var (
	ErrNotFound    = errors.New("annotation not found")
	ErrBadParent   = errors.New("parent must be an existing profile annotation")
	ErrDepthExceed = errors.New("profile annotations cannot have a parent")
)

type Store struct {
	catalog *annotation.Catalog

	active  map[string]*annotation.Annotation
	pending map[string]*annotation.Annotation

	// activated tracks profile ids whose pending children have been
	// promoted; remote lists for such profiles land straight in active.
	activated map[string]struct{}

	selection map[string]struct{}

	now func() time.Time
}

func New(catalog *annotation.Catalog) *Store {
	if catalog == nil {
		catalog = annotation.DefaultCatalog()
	}
	return &Store{
		catalog:   catalog,
		active:    make(map[string]*annotation.Annotation),
		pending:   make(map[string]*annotation.Annotation),
		activated: make(map[string]struct{}),
		selection: make(map[string]struct{}),
		now:       time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

// Get returns a copy of the annotation with the given id from either set.
func (s *Store) Get(id string) (*annotation.Annotation, bool) {
	if a, ok := s.active[id]; ok {
		return a.Clone(), true
	}
	if a, ok := s.pending[id]; ok {
		return a.Clone(), true
	}
	return nil, false
}

// Active returns copies of the active set, ordered by creation time then id.
func (s *Store) Active() []*annotation.Annotation {
	return sortedClones(s.active)
}

// Pending returns copies of the pending set, ordered by creation time then id.
func (s *Store) Pending() []*annotation.Annotation {
	return sortedClones(s.pending)
}

func (s *Store) ActiveCount() int  { return len(s.active) }
func (s *Store) PendingCount() int { return len(s.pending) }

// Add inserts a locally created annotation into the active set. The id is
// normalized, the category inferred from the label when absent, and the
// geometry validated before anything is stored.
func (s *Store) Add(a *annotation.Annotation) (*annotation.Annotation, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	c := a.Clone()
	c.ID = annotation.NormalizeID(c.ID)
	s.catalog.Classify(c)
	if err := s.checkParent(c); err != nil {
		return nil, err
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.Touch(now)
	s.active[c.ID] = c
	return c.Clone(), nil
}

// Update applies a partial change to an annotation in either set.
func (s *Store) Update(id string, p annotation.Patch) (*annotation.Annotation, error) {
	set, a, ok := s.locate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	c := a.Clone()
	p.Apply(c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s.catalog.Classify(c)
	if err := s.checkParent(c); err != nil {
		return nil, err
	}
	c.Touch(s.now())
	set[id] = c
	return c.Clone(), nil
}

// Delete removes the annotation with the given id. Deleting a profile
// cascades to every annotation that references it by ParentID or, absent a
// ParentID, is fully contained in its bounds — across both the active and
// pending sets. Removed ids are purged from the selection.
//
// The removed annotations are returned, target first.
func (s *Store) Delete(id string) ([]*annotation.Annotation, error) {
	_, target, ok := s.locate(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	removed := []*annotation.Annotation{target.Clone()}
	if target.Category == annotation.CategoryProfile {
		for _, set := range []map[string]*annotation.Annotation{s.active, s.pending} {
			for cid, child := range set {
				if cid == id || child.Category == annotation.CategoryProfile {
					continue
				}
				if childOf(target, child) {
					removed = append(removed, child.Clone())
					delete(set, cid)
				}
			}
		}
		delete(s.activated, id)
	}
	delete(s.active, id)
	delete(s.pending, id)
	for _, r := range removed {
		delete(s.selection, r.ID)
	}
	return removed, nil
}

// DeleteMany removes a batch of annotations, cascading per Delete. Unknown
// ids are skipped.
func (s *Store) DeleteMany(ids []string) []*annotation.Annotation {
	var removed []*annotation.Annotation
	for _, id := range ids {
		got, err := s.Delete(id)
		if err != nil {
			continue
		}
		removed = append(removed, got...)
	}
	return removed
}

// Select updates the selection set. Selecting a profile always collapses the
// selection to that single id; only one profile may be active at a time.
// Non-profile annotations toggle when additive, replace otherwise.
func (s *Store) Select(id string, additive bool) error {
	_, a, ok := s.locate(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if a.Category == annotation.CategoryProfile || !additive {
		s.selection = map[string]struct{}{id: {}}
		return nil
	}
	if _, on := s.selection[id]; on {
		delete(s.selection, id)
	} else {
		s.selection[id] = struct{}{}
	}
	return nil
}

// SelectExact replaces the selection with exactly the given ids, unknown
// ids skipped. Marquee selection uses this: the single-profile collapse
// rule applies to click selection only, a marquee keeps profiles and
// leaves together.
func (s *Store) SelectExact(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.locateID(id); ok {
			next[id] = struct{}{}
		}
	}
	s.selection = next
}

// ClearSelection empties the selection set.
func (s *Store) ClearSelection() { s.selection = make(map[string]struct{}) }

// Selection returns the selected ids in sorted order.
func (s *Store) Selection() []string {
	ids := make([]string, 0, len(s.selection))
	for id := range s.selection {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) IsSelected(id string) bool {
	_, ok := s.selection[id]
	return ok
}

// SelectedProfiles returns the selected profile ids; hit-testing uses this
// to decide which children are clickable.
func (s *Store) SelectedProfiles() map[string]struct{} {
	out := make(map[string]struct{})
	for id := range s.selection {
		if a, ok := s.active[id]; ok && a.Category == annotation.CategoryProfile {
			out[id] = struct{}{}
		}
	}
	return out
}

// ImportSnapshot replaces the whole collection with the supplied
// annotations. Rows with invalid geometry are rejected wholesale: an import
// is an explicit user action and silently dropping entries would corrupt the
// document. A containment pass runs after the import.
func (s *Store) ImportSnapshot(items []*annotation.Annotation) error {
	incoming := make(map[string]*annotation.Annotation, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		c := item.Clone()
		c.ID = annotation.NormalizeID(c.ID)
		s.catalog.Classify(c)
		incoming[c.ID] = c
	}
	s.active = incoming
	s.pending = make(map[string]*annotation.Annotation)
	s.activated = make(map[string]struct{})
	s.selection = make(map[string]struct{})
	s.Reconcile()
	return nil
}

// ExportSnapshot returns copies of the active set, ordered by creation time
// then id.
func (s *Store) ExportSnapshot() []*annotation.Annotation {
	return s.Active()
}

// ReplaceActive swaps in a history snapshot. Pending entries and activation
// marks are untouched; selected ids that no longer exist are dropped.
func (s *Store) ReplaceActive(items []*annotation.Annotation) {
	next := make(map[string]*annotation.Annotation, len(items))
	for _, item := range items {
		next[item.ID] = item.Clone()
	}
	s.active = next
	for id := range s.selection {
		if _, ok := s.locateID(id); !ok {
			delete(s.selection, id)
		}
	}
}

// ActivateProfile promotes every pending annotation belonging to the given
// profile — by ParentID, or by full containment when the ParentID is absent
// — into the active set, and returns the moved annotations.
func (s *Store) ActivateProfile(id string) ([]*annotation.Annotation, error) {
	p, ok := s.active[id]
	if !ok || p.Category != annotation.CategoryProfile {
		return nil, fmt.Errorf("%w: %s", ErrBadParent, id)
	}
	s.activated[id] = struct{}{}

	var moved []*annotation.Annotation
	for cid, child := range s.pending {
		if !childOf(p, child) {
			continue
		}
		child.ParentID = p.ID
		s.active[cid] = child
		delete(s.pending, cid)
		moved = append(moved, child.Clone())
	}
	sort.Slice(moved, func(i, j int) bool { return moved[i].ID < moved[j].ID })
	return moved, nil
}

// IngestRemoteList replaces every annotation whose ParentID equals parentID
// with the freshly supplied items. Duplicate ids within items resolve to the
// last occurrence. Unrelated annotations are untouched. Items land in the
// active set when the parent profile has been activated, otherwise they
// stay pending.
func (s *Store) IngestRemoteList(parentID string, items []*annotation.Annotation) {
	for _, set := range []map[string]*annotation.Annotation{s.active, s.pending} {
		for id, a := range set {
			if a.ParentID == parentID {
				delete(set, id)
				delete(s.selection, id)
			}
		}
	}

	_, activated := s.activated[parentID]
	dest := s.pending
	if activated {
		dest = s.active
	}
	for _, item := range items {
		if item.Validate() != nil {
			continue
		}
		c := item.Clone()
		c.ID = annotation.NormalizeID(c.ID)
		s.catalog.Classify(c)
		// Profiles stay top level regardless of which viewport listed them.
		if c.Category == annotation.CategoryProfile {
			c.ParentID = ""
			s.active[c.ID] = c
			continue
		}
		if c.ParentID == "" {
			c.ParentID = parentID
		}
		dest[c.ID] = c
	}
}

// UpsertRemote applies an authoritative annotation from the sync layer,
// overwriting any local copy regardless of version.
func (s *Store) UpsertRemote(item *annotation.Annotation) (*annotation.Annotation, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	c := item.Clone()
	c.ID = annotation.NormalizeID(c.ID)
	s.catalog.Classify(c)
	if c.Category == annotation.CategoryProfile {
		c.ParentID = ""
	}

	if set, _, ok := s.locate(c.ID); ok {
		set[c.ID] = c
		return c.Clone(), nil
	}

	dest := s.active
	if c.Category != annotation.CategoryProfile && c.ParentID != "" {
		if _, activated := s.activated[c.ParentID]; !activated {
			if _, parentKnown := s.locateID(c.ParentID); parentKnown {
				dest = s.pending
			}
		}
	}
	dest[c.ID] = c
	return c.Clone(), nil
}

// RemoveRemote drops an annotation deleted by the authority from both sets
// and from the selection. Unknown ids are a no-op.
func (s *Store) RemoveRemote(id string) {
	delete(s.active, id)
	delete(s.pending, id)
	delete(s.selection, id)
}

func (s *Store) locate(id string) (map[string]*annotation.Annotation, *annotation.Annotation, bool) {
	if a, ok := s.active[id]; ok {
		return s.active, a, true
	}
	if a, ok := s.pending[id]; ok {
		return s.pending, a, true
	}
	return nil, nil, false
}

func (s *Store) locateID(id string) (*annotation.Annotation, bool) {
	_, a, ok := s.locate(id)
	return a, ok
}

func (s *Store) checkParent(a *annotation.Annotation) error {
	if a.ParentID == "" {
		return nil
	}
	if a.Category == annotation.CategoryProfile {
		return fmt.Errorf("%w: %s", ErrDepthExceed, a.ID)
	}
	parent, ok := s.locateID(a.ParentID)
	if !ok || parent.Category != annotation.CategoryProfile {
		return fmt.Errorf("%w: %s", ErrBadParent, a.ParentID)
	}
	return nil
}

// childOf reports whether a belongs to profile p: explicitly by ParentID, or
// implicitly by full geometric containment when no ParentID is set.
func childOf(p, a *annotation.Annotation) bool {
	if a.ParentID != "" {
		return a.ParentID == p.ID
	}
	return p.Bounds().ContainsRect(a.Bounds())
}

func sortedClones(set map[string]*annotation.Annotation) []*annotation.Annotation {
	out := make([]*annotation.Annotation, 0, len(set))
	for _, a := range set {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
