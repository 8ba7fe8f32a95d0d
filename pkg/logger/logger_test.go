package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf)
	log.Info("connected", "project", "p1", "attempt", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "connected", line["message"])
	assert.Equal(t, "p1", line["project"])
	assert.Equal(t, float64(2), line["attempt"])
}

func TestNopWritesNothing(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().Error("dropped", "k", "v")
	})
}
