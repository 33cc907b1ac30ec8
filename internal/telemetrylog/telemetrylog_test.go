package telemetrylog

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/telemetry"
)

func TestSinkWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	sink := New(WithJSONFile(&buf))

	sink.Emit(telemetry.EventTaskStart, telemetry.Measurements{"duration": int64(42)}, telemetry.Metadata{"task": "deploy"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, telemetry.EventTaskStart, decoded["msg"])
	assert.Equal(t, "deploy", decoded["task"])
}

func TestSinkWithoutJSONDoesNotPanic(t *testing.T) {
	sink := New()
	assert.NotPanics(t, func() {
		sink.Emit(telemetry.EventPipelineException, nil, telemetry.Metadata{"task": "x"})
	})
}
