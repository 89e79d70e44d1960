package history

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	before := time.Now().UTC()
	e := NewEvent(EventStart, 42, 8000, nil)
	assert.Equal(t, EventStart, e.Type)
	assert.Equal(t, 42, e.PID)
	assert.Equal(t, 8000, e.Port)
	assert.Empty(t, e.Error)
	assert.Nil(t, e.NullableError())
	assert.False(t, e.OccurredAt.Before(before))

	e = NewEvent(EventStop, 42, 0, errors.New("timeout"))
	assert.Equal(t, "timeout", e.Error)
	assert.Equal(t, "timeout", e.NullableError())
}

func TestEventJSONOmitsEmpty(t *testing.T) {
	b, err := json.Marshal(Event{Type: EventShutdown, PID: 7})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "port")
	assert.NotContains(t, string(b), "error")
	assert.Contains(t, string(b), `"type":"shutdown"`)
}
