package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	assert.NoError(t, os.Setenv("APP_ENV", "dev"))
	defer func() { assert.NoError(t, os.Unsetenv("APP_ENV")) }()
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("coordinator", &buf)
	l.Infof("decision for %s", "inc-1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "coordinator", line["component"])
	assert.Equal(t, "decision for inc-1", line["message"])
	assert.Equal(t, "info", line["level"])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { _ = SetLevel("info") })
	require.NoError(t, SetLevel("warn"))
	var buf bytes.Buffer
	l := NewZerologLoggerWithWriter("station", &buf)
	l.Infof("hidden")
	l.Warnf("shown")
	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))

	assert.Error(t, SetLevel("loud"))
}

func TestConfigureFile(t *testing.T) {
	t.Cleanup(func() {
		_ = Close()
		_ = SetLevel("info")
	})
	path := filepath.Join(t.TempDir(), "wildguard.log")
	require.NoError(t, Configure(Options{Level: "debug", Format: "json", File: path, MaxSizeMB: 1}))

	NewZerologLogger("coordinator").Debugw("bid", map[string]any{"incident": "inc-7", "eta_min": 4.5})
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &line))
	assert.Equal(t, "inc-7", line["incident"])
	assert.Equal(t, "coordinator", line["component"])
	assert.Equal(t, "debug", line["level"])
}

func TestConfigureRejectsFormat(t *testing.T) {
	assert.Error(t, Configure(Options{Format: "xml"}))
}
