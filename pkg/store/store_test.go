package store

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

func newProfile(t *testing.T, s *Store, x, y, w, h float64) *annotation.Annotation {
	t.Helper()
	p, err := s.Add(&annotation.Annotation{
		Label:    "Section",
		Category: annotation.CategoryProfile,
		Rect:     annotation.Rect{X: x, Y: y, W: w, H: h},
	})
	require.NoError(t, err)
	return p
}

func TestAddRejectsInvalidGeometry(t *testing.T) {
	s := New(nil)
	_, err := s.Add(&annotation.Annotation{Rect: annotation.Rect{W: 0, H: 10}})
	assert.ErrorIs(t, err, annotation.ErrInvalidGeometry)
	assert.Zero(t, s.ActiveCount())
}

func TestAddNormalizesIDAndInfersCategory(t *testing.T) {
	s := New(nil)
	a, err := s.Add(&annotation.Annotation{
		ID:    "bogus",
		Label: "Beam",
		Rect:  annotation.Rect{X: 1, Y: 1, W: 5, H: 5},
	})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(a.ID)
	assert.NoError(t, parseErr, "non-UUID id must be regenerated")
	assert.Equal(t, annotation.CategoryModel, a.Category)
	assert.False(t, a.UpdatedAt.IsZero())
	assert.NotZero(t, a.Version)
}

func TestProfileCannotHaveParent(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 100, 100)

	_, err := s.Add(&annotation.Annotation{
		Category: annotation.CategoryProfile,
		ParentID: p.ID,
		Rect:     annotation.Rect{X: 10, Y: 10, W: 20, H: 20},
	})
	assert.ErrorIs(t, err, ErrDepthExceed)
}

func TestReconcileLinksContainedLeaf(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 200, 200)
	o, err := s.Add(&annotation.Annotation{
		Category: annotation.CategoryOCR,
		Rect:     annotation.Rect{X: 10, Y: 10, W: 20, H: 20},
	})
	require.NoError(t, err)

	assert.True(t, s.Reconcile())
	got, ok := s.Get(o.ID)
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ParentID)

	assert.False(t, s.Reconcile(), "second pass must be a no-op")
}

func TestReconcileOverlappingProfilesPrefersSmallest(t *testing.T) {
	s := New(nil)
	newProfile(t, s, 0, 0, 500, 500)
	small := newProfile(t, s, 0, 0, 100, 100)

	leaf, err := s.Add(&annotation.Annotation{
		Category: annotation.CategoryModel,
		Rect:     annotation.Rect{X: 10, Y: 10, W: 20, H: 20},
	})
	require.NoError(t, err)

	s.Reconcile()
	got, _ := s.Get(leaf.ID)
	assert.Equal(t, small.ID, got.ParentID)
}

func TestDeleteProfileCascades(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 200, 200)

	linked, err := s.Add(&annotation.Annotation{
		Category: annotation.CategoryModel,
		ParentID: p.ID,
		Rect:     annotation.Rect{X: 300, Y: 300, W: 10, H: 10},
	})
	require.NoError(t, err)

	contained, err := s.Add(&annotation.Annotation{
		Category: annotation.CategoryOCR,
		Rect:     annotation.Rect{X: 10, Y: 10, W: 20, H: 20},
	})
	require.NoError(t, err)

	outside, err := s.Add(&annotation.Annotation{
		Category: annotation.CategoryOCR,
		Rect:     annotation.Rect{X: 400, Y: 400, W: 20, H: 20},
	})
	require.NoError(t, err)

	// A pending child must cascade too, even though it was never activated.
	pendingChild := &annotation.Annotation{
		ID:       annotation.NewID(),
		Category: annotation.CategoryOCR,
		ParentID: p.ID,
		Rect:     annotation.Rect{X: 50, Y: 50, W: 5, H: 5},
	}
	s.pending[pendingChild.ID] = pendingChild.Clone()
	require.Equal(t, 1, s.PendingCount())

	require.NoError(t, s.Select(contained.ID, false))

	removed, err := s.Delete(p.ID)
	require.NoError(t, err)
	assert.Len(t, removed, 4)

	for _, id := range []string{p.ID, linked.ID, contained.ID, pendingChild.ID} {
		_, ok := s.Get(id)
		assert.False(t, ok, "id %s should be gone", id)
	}
	_, ok := s.Get(outside.ID)
	assert.True(t, ok, "unrelated annotation survives the cascade")
	assert.Empty(t, s.Selection(), "cascaded ids are purged from selection")
	assert.Zero(t, s.PendingCount())
}

func TestSelectSemantics(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 100, 100)
	a, _ := s.Add(&annotation.Annotation{Category: annotation.CategoryModel, Rect: annotation.Rect{X: 1, Y: 1, W: 2, H: 2}})
	b, _ := s.Add(&annotation.Annotation{Category: annotation.CategoryModel, Rect: annotation.Rect{X: 5, Y: 5, W: 2, H: 2}})

	require.NoError(t, s.Select(a.ID, false))
	require.NoError(t, s.Select(b.ID, true))
	assert.Len(t, s.Selection(), 2, "additive select extends the set")

	require.NoError(t, s.Select(b.ID, true))
	assert.Equal(t, []string{a.ID}, s.Selection(), "additive select toggles off")

	require.NoError(t, s.Select(b.ID, true))
	require.NoError(t, s.Select(p.ID, true))
	assert.Equal(t, []string{p.ID}, s.Selection(), "selecting a profile collapses the selection")
}

func TestSelectExactKeepsProfilesAndLeaves(t *testing.T) {
	s := New(nil)
	leaf, err := s.Add(&annotation.Annotation{Category: annotation.CategoryModel, Rect: annotation.Rect{X: 10, Y: 10, W: 20, H: 20}})
	require.NoError(t, err)
	p := newProfile(t, s, 0, 0, 100, 100)

	s.SelectExact([]string{leaf.ID, p.ID, "unknown-id"})
	assert.ElementsMatch(t, []string{leaf.ID, p.ID}, s.Selection(),
		"the profile collapse rule does not apply to exact-set selection")
	assert.True(t, s.IsSelected(leaf.ID))

	s.SelectExact(nil)
	assert.Empty(t, s.Selection())
}

func TestIngestRemoteListReplacesOnlyParentScope(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 200, 200)
	q := newProfile(t, s, 300, 0, 200, 200)

	stale := &annotation.Annotation{ID: annotation.NewID(), Category: annotation.CategoryOCR, ParentID: p.ID, Rect: annotation.Rect{X: 1, Y: 1, W: 2, H: 2}}
	other := &annotation.Annotation{ID: annotation.NewID(), Category: annotation.CategoryOCR, ParentID: q.ID, Rect: annotation.Rect{X: 301, Y: 1, W: 2, H: 2}}
	s.IngestRemoteList(p.ID, []*annotation.Annotation{stale})
	s.IngestRemoteList(q.ID, []*annotation.Annotation{other})

	dup := annotation.NewID()
	first := &annotation.Annotation{ID: dup, Label: "old", Category: annotation.CategoryOCR, ParentID: p.ID, Rect: annotation.Rect{X: 2, Y: 2, W: 2, H: 2}}
	second := &annotation.Annotation{ID: dup, Label: "new", Category: annotation.CategoryOCR, ParentID: p.ID, Rect: annotation.Rect{X: 3, Y: 3, W: 2, H: 2}}
	s.IngestRemoteList(p.ID, []*annotation.Annotation{first, second})

	_, ok := s.Get(stale.ID)
	assert.False(t, ok, "previous items for the parent are replaced")
	got, ok := s.Get(dup)
	require.True(t, ok)
	assert.Equal(t, "new", got.Label, "duplicate ids resolve to the last item")
	_, ok = s.Get(other.ID)
	assert.True(t, ok, "items under another parent are untouched")
}

func TestActivateProfilePromotesPending(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 200, 200)

	byParent := &annotation.Annotation{ID: annotation.NewID(), Category: annotation.CategoryOCR, ParentID: p.ID, Rect: annotation.Rect{X: 1, Y: 1, W: 2, H: 2}}
	byBounds := &annotation.Annotation{ID: annotation.NewID(), Category: annotation.CategoryOCR, Rect: annotation.Rect{X: 10, Y: 10, W: 2, H: 2}}
	s.IngestRemoteList(p.ID, []*annotation.Annotation{byParent})
	s.pending[byBounds.ID] = byBounds.Clone()

	moved, err := s.ActivateProfile(p.ID)
	require.NoError(t, err)
	assert.Len(t, moved, 2)
	assert.Zero(t, s.PendingCount())

	got, _ := s.Get(byBounds.ID)
	assert.Equal(t, p.ID, got.ParentID, "containment match becomes an explicit link")

	// Once activated, later remote lists land directly in the active set.
	late := &annotation.Annotation{ID: annotation.NewID(), Category: annotation.CategoryOCR, ParentID: p.ID, Rect: annotation.Rect{X: 4, Y: 4, W: 2, H: 2}}
	s.IngestRemoteList(p.ID, []*annotation.Annotation{late})
	assert.Zero(t, s.PendingCount())
	_, ok := s.Get(late.ID)
	assert.True(t, ok)
}

func TestRemotePathsNeverParentProfiles(t *testing.T) {
	s := New(nil)
	p := newProfile(t, s, 0, 0, 200, 200)

	listed := &annotation.Annotation{
		ID:       annotation.NewID(),
		Category: annotation.CategoryProfile,
		Rect:     annotation.Rect{X: 300, Y: 0, W: 100, H: 100},
	}
	s.IngestRemoteList(p.ID, []*annotation.Annotation{listed})
	got, ok := s.Get(listed.ID)
	require.True(t, ok)
	assert.Empty(t, got.ParentID, "a listed profile never inherits the viewport as parent")

	pushed := &annotation.Annotation{
		ID:       annotation.NewID(),
		Category: annotation.CategoryProfile,
		ParentID: p.ID,
		Rect:     annotation.Rect{X: 500, Y: 0, W: 50, H: 50},
	}
	_, err := s.UpsertRemote(pushed)
	require.NoError(t, err)
	got, ok = s.Get(pushed.ID)
	require.True(t, ok)
	assert.Empty(t, got.ParentID, "an upserted profile sheds its ParentID")
}

func TestUpsertRemoteOverwritesUnconditionally(t *testing.T) {
	s := New(nil)
	a, _ := s.Add(&annotation.Annotation{Label: "beam", Category: annotation.CategoryModel, Rect: annotation.Rect{X: 1, Y: 1, W: 5, H: 5}})

	stale := a.Clone()
	stale.Label = "authoritative"
	stale.Version = 1 // older than the local version

	_, err := s.UpsertRemote(stale)
	require.NoError(t, err)
	got, _ := s.Get(a.ID)
	assert.Equal(t, "authoritative", got.Label, "the authority always wins, no field merging")
}

func TestImportSnapshotRejectsBadGeometry(t *testing.T) {
	s := New(nil)
	err := s.ImportSnapshot([]*annotation.Annotation{
		{ID: annotation.NewID(), Rect: annotation.Rect{W: -1, H: 5}},
	})
	assert.ErrorIs(t, err, annotation.ErrInvalidGeometry)
}

func TestImportSnapshotReconciles(t *testing.T) {
	s := New(nil)
	pid := annotation.NewID()
	err := s.ImportSnapshot([]*annotation.Annotation{
		{ID: pid, Category: annotation.CategoryProfile, Rect: annotation.Rect{X: 0, Y: 0, W: 100, H: 100}},
		{ID: annotation.NewID(), Category: annotation.CategoryOCR, Rect: annotation.Rect{X: 5, Y: 5, W: 10, H: 10}},
	})
	require.NoError(t, err)

	for _, a := range s.Active() {
		if a.Category == annotation.CategoryOCR {
			assert.Equal(t, pid, a.ParentID)
		}
	}
}
