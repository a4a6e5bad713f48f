package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		name     string
		level    string
		expected zerolog.Level
	}{
		{"debug", "debug", zerolog.DebugLevel},
		{"info", "info", zerolog.InfoLevel},
		{"warn", "warn", zerolog.WarnLevel},
		{"warning alias", "WARNING", zerolog.WarnLevel},
		{"error", "error", zerolog.ErrorLevel},
		{"trace", "trace", zerolog.TraceLevel},
		{"empty defaults to info", "", zerolog.InfoLevel},
		{"unknown defaults to info", "verbose", zerolog.InfoLevel},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ParseLevel(tc.level))
		})
	}
}

func TestNew_WritesJSONToOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.Info().Str("asset", "AAPL").Msg("computed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "computed", entry["message"])
	assert.Equal(t, "AAPL", entry["asset"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
	assert.Equal(t, "2006-01-02T15:04:05Z07:00", zerolog.TimeFieldFormat)
}

func TestNew_PrettyOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Pretty: true, Output: &buf})

	log.Info().Msg("pretty message")

	assert.Contains(t, buf.String(), "pretty message")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNew_LevelFiltersLower(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "error", Output: &buf})

	log.Info().Msg("should not appear")
	assert.NotContains(t, buf.String(), "should not appear")

	log.Error().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Component(New(Config{Level: "debug", Output: &buf}), "risk")

	log.Debug().Msg("tagged")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "risk", entry["component"])
}
