package hittest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
)

func box(id string, cat annotation.Category, parent string, x, y, w, h float64) *annotation.Annotation {
	return &annotation.Annotation{
		ID:       id,
		Category: cat,
		ParentID: parent,
		Rect:     annotation.Rect{X: x, Y: y, W: w, H: h},
	}
}

func TestHandleAt(t *testing.T) {
	r := annotation.Rect{X: 0, Y: 0, W: 100, H: 100}

	tests := []struct {
		name   string
		px, py float64
		scale  float64
		want   Handle
	}{
		{"exact nw corner", 0, 0, 1, HandleNW},
		{"near se corner", 102, 101, 1, HandleSE},
		{"north midpoint", 50, 2, 1, HandleN},
		{"west midpoint", -3, 50, 1, HandleW},
		{"body is not a handle", 50, 50, 1, HandleNone},
		{"zoomed out widens pick radius", 30, 0, 0.2, HandleNW},
		{"zoomed in shrinks pick radius", 4, 0, 4, HandleNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HandleAt(r, tt.px, tt.py, tt.scale))
		})
	}
}

func TestHandleAtTieBreak(t *testing.T) {
	// A tiny rect whose handles all overlap at low zoom: the fixed
	// iteration order makes nw win.
	r := annotation.Rect{X: 0, Y: 0, W: 2, H: 2}
	assert.Equal(t, HandleNW, HandleAt(r, 1, 1, 0.5))
}

func TestTopHitProfilePrecedence(t *testing.T) {
	profile := box("p1", annotation.CategoryProfile, "", 0, 0, 200, 200)
	leaf := box("l1", annotation.CategoryOCR, "p1", 10, 10, 20, 20)
	anns := []*annotation.Annotation{profile, leaf}

	// Even directly over the leaf, the profile wins while no profile is
	// active.
	hit := TopHit(anns, 15, 15, nil)
	require.NotNil(t, hit)
	assert.Equal(t, "p1", hit.ID)
}

func TestTopHitChildOfActiveProfile(t *testing.T) {
	profile := box("p1", annotation.CategoryProfile, "", 0, 0, 200, 200)
	linked := box("l1", annotation.CategoryOCR, "p1", 210, 10, 20, 20)
	contained := box("l2", annotation.CategoryModel, "", 50, 50, 20, 20)
	foreign := box("l3", annotation.CategoryOCR, "p9", 100, 100, 20, 20)
	anns := []*annotation.Annotation{profile, linked, contained, foreign}

	active := map[string]struct{}{"p1": {}}

	hit := TopHit(anns, 215, 15, active)
	require.NotNil(t, hit)
	assert.Equal(t, "l1", hit.ID, "explicit child outside the profile body is clickable")

	hit = TopHit(anns, 55, 55, active)
	require.NotNil(t, hit)
	assert.Equal(t, "p1", hit.ID, "profile body still outranks its own children")

	hit = TopHit(anns, 105, 105, active)
	require.NotNil(t, hit)
	assert.Equal(t, "p1", hit.ID, "a foreign child never hits; the profile body does")

	assert.Nil(t, TopHit(anns, 500, 500, active), "empty space misses")
}

func TestMarqueeRequiresFullContainment(t *testing.T) {
	inside := box("a", annotation.CategoryModel, "", 10, 10, 20, 20)
	straddling := box("b", annotation.CategoryModel, "", 90, 10, 30, 20)
	outside := box("c", annotation.CategoryModel, "", 300, 300, 10, 10)
	anns := []*annotation.Annotation{inside, straddling, outside}

	ids := Marquee(anns, annotation.Rect{X: 0, Y: 0, W: 100, H: 100})
	assert.Equal(t, []string{"a"}, ids)
}

func TestDragBoxNormalizesDirection(t *testing.T) {
	r := DragBox(100, 80, 20, 10)
	assert.Equal(t, annotation.Rect{X: 20, Y: 10, W: 80, H: 70}, r)
}
