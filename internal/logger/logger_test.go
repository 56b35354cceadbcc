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
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" WARN "))
	assert.Equal(t, zerolog.InfoLevel, parseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestJSONOutputAndLevelGate(t *testing.T) {
	var buf bytes.Buffer
	Init("warn", "json", &buf)

	Info("dropped %d", 1)
	assert.Zero(t, buf.Len())

	Warn("queue full, dropped %d messages", 3)
	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "queue full, dropped 3 messages", line["message"])

	buf.Reset()
	log := Component("generator")
	log.Error().Msg("boom")
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "generator", line["component"])
}
