package xproclog_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/xproc/xproclog"
)

func TestNew_TextFormatWritesPlainLines(t *testing.T) {
	var buf bytes.Buffer
	l := xproclog.New("text", slog.LevelInfo, &buf)
	l.Info("spawned", "entry", "add")

	out := buf.String()
	assert.Contains(t, out, "spawned")
	assert.Contains(t, out, "entry=add")
}

func TestNew_JSONFormatWritesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	l := xproclog.New("json", slog.LevelInfo, &buf)
	l.Info("spawned", "entry", "add")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "add", decoded["entry"])
}

func TestNew_LevelFiltersBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	l := xproclog.New("text", slog.LevelWarn, &buf)
	l.Info("should not appear")
	assert.Zero(t, buf.Len())

	l.Warn("should appear")
	assert.NotZero(t, buf.Len())
}

func TestSetAndL_RoundTrips(t *testing.T) {
	var buf bytes.Buffer
	l := xproclog.New("text", slog.LevelInfo, &buf)
	xproclog.Set(l)
	assert.Same(t, l, xproclog.L())

	xproclog.Set(nil)
	assert.Same(t, l, xproclog.L(), "Set(nil) must not replace the current logger")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, xproclog.ParseLevel(in), "ParseLevel(%q)", in)
	}
}
