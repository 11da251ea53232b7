package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexanderramin/duecycle/internal/config"
)

func TestNew_JSONForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "debug", Format: "auto"}, &buf)
	clog := Component(log, "evaluator")
	clog.Debug().Str("rule_id", "r-1").Msg("evaluated")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "evaluator", entry["component"])
	assert.Equal(t, "r-1", entry["rule_id"])
	assert.Equal(t, "debug", entry["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	log.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LogConfig{Level: "info", Format: "console"}, &buf)
	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
	assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("loud"))
}
