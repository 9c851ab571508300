// Package xproclog configures the structured logger shared by bootstrap,
// xprocmetrics and cmd/xprocdemo. It mirrors the way kstaniek-go-ampio-server's
// internal/logging wires log/slog: a package-level logger reachable without
// threading one through every call site, plus a constructor a caller can use
// to build its own and install it.
package xproclog

import (
	"io"
	"log/slog"
	"os"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	current.Store(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
}

// L returns the current package-level logger.
func L() *slog.Logger { return current.Load() }

// Set replaces the package-level logger. A nil l is ignored.
func Set(l *slog.Logger) {
	if l != nil {
		current.Store(l)
	}
}

// New builds a logger writing to w (stderr if nil) at the given level, in
// either "text" or "json" format; any other format falls back to text.
func New(format string, level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// ParseLevel maps the four levels cmd/xprocdemo's --log-level flag accepts
// onto slog.Level, defaulting to Info for anything else.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
