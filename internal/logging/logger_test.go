package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerFormatsKeyValues(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "batch")

	l.Warn("image skipped", "index", 3, "reason", "truncated", "dangling")

	out := buf.String()
	assert.Contains(t, out, "[batch] ")
	assert.Contains(t, out, "[WARN] image skipped index=3 reason=truncated")
	assert.NotContains(t, out, "dangling")
}

func TestLoggerDebugToggle(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "x")

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.SetDebug(true)
	l.With("child").Debug("shown")
	assert.Contains(t, buf.String(), "[x/child] ")
	assert.Contains(t, buf.String(), "[DEBUG] shown")
}
