package collab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUserNeverRegistered(t *testing.T) {
	r := NewRegistry("me")
	r.Touch("me", "Self")
	r.SetCursor("me", "Self", Cursor{X: 1, Y: 2})

	assert.Empty(t, r.Users())
}

func TestTouchCreatesAndUpdates(t *testing.T) {
	r := NewRegistry("me")
	r.Touch("u1", "")
	u, ok := r.Get("u1")
	require.True(t, ok)
	assert.Empty(t, u.Name)
	assert.NotEmpty(t, u.Color)

	r.Touch("u1", "Alice")
	u, _ = r.Get("u1")
	assert.Equal(t, "Alice", u.Name)
}

func TestCursorAndSelectionLifecycle(t *testing.T) {
	r := NewRegistry("me")
	r.SetCursor("u1", "Alice", Cursor{X: 10, Y: 20, Tool: "draw"})
	r.SetSelection("u1", "Alice", "ann-1")

	u, _ := r.Get("u1")
	require.NotNil(t, u.Cursor)
	assert.Equal(t, 10.0, u.Cursor.X)
	assert.Equal(t, "ann-1", u.SelectionID)

	r.ClearSelection("u1")
	u, _ = r.Get("u1")
	assert.Empty(t, u.SelectionID)

	r.Leave("u1")
	_, ok := r.Get("u1")
	assert.False(t, ok)
}

func TestColorForIsStableAndOrderIndependent(t *testing.T) {
	c1 := ColorFor("user-a")
	c2 := ColorFor("user-a")
	assert.Equal(t, c1, c2)

	// Two registries seeing the same users in different orders assign the
	// same colors.
	r1 := NewRegistry("me")
	r1.Touch("a", "")
	r1.Touch("b", "")
	r2 := NewRegistry("me")
	r2.Touch("b", "")
	r2.Touch("a", "")

	ua1, _ := r1.Get("a")
	ua2, _ := r2.Get("a")
	assert.Equal(t, ua1.Color, ua2.Color)
}

func TestPrune(t *testing.T) {
	r := NewRegistry("me")
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	r.SetClock(func() time.Time { return base })
	r.Touch("old", "")
	r.SetClock(func() time.Time { return base.Add(40 * time.Second) })
	r.Touch("fresh", "")

	gone := r.Prune(30 * time.Second)
	assert.Equal(t, []string{"old"}, gone)
	_, ok := r.Get("fresh")
	assert.True(t, ok)
}
