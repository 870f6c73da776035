package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Str("domain", "ex.com").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "ex.com", entry["domain"])
	assert.NotEmpty(t, entry["time"])
}

func TestInitLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: ErrorLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Msg("dropped")
	assert.Empty(t, buf.Bytes())

	Logger.Error().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestChildLoggers(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	tests := []struct {
		name  string
		log   func()
		field string
		want  string
	}{
		{"component", func() { l := WithComponent("orchestrator"); l.Info().Msg("m") }, "component", "orchestrator"},
		{"worker", func() { l := WithWorker("worker-3"); l.Info().Msg("m") }, "worker", "worker-3"},
		{"domain", func() { l := WithDomain("ex.com"); l.Info().Msg("m") }, "domain", "ex.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log()

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, tt.want, entry[tt.field])
		})
	}
}

func TestWithBatchFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	l := WithBatch("ex.com", 50)
	l.Info().Msg("m")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ex.com", entry["domain"])
	assert.Equal(t, float64(50), entry["size"])
}
