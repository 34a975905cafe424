// Package xlog builds the *slog.Logger a host can pass to vm.NewRuntime.
// Within this module only chunkstore writes records through it (a Warn
// when a dump or a disk write fails); gc and coroutine emit none
// (SPEC_FULL.md §B).
package xlog

import (
	"io"
	"log/slog"
	"os"
)

// Config controls the wrapper's construction (SPEC_FULL.md §B
// "Configuration").
type Config struct {
	Level  slog.Level
	Output io.Writer
	JSON   bool
}

// New builds a *slog.Logger per cfg. A zero Config yields a logger at
// LevelInfo writing text to stderr, matching a freshly embedded VM that
// has not opted into verbose diagnostics.
func New(cfg Config) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	return slog.New(h)
}

// Discard returns a logger that drops everything, used as the default
// for embedders that never configure logging at all.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
