package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}

func TestComponentLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := Component(newWithWriter(&buf, "info", "json"), "hub")
	log.Info().Str("user", "u1").Msg("connected")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hub", entry["component"])
	assert.Equal(t, "u1", entry["user"])
	assert.Equal(t, "connected", entry["message"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "warn", "json")
	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())
	zerolog.SetGlobalLevel(zerolog.TraceLevel)
}
