// Package logx wraps the standard library's structured logger so the engine
// and its presenters share one consistent, leveled logging surface.
package logx

import (
	"log/slog"
	"os"
	"sync"
)

// Logger is the logger type every package in this module logs through.
type Logger = *slog.Logger

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// Default returns the process-wide fallback logger, created lazily on first
// use with a plain text handler writing to stderr.
func Default() Logger {
	defaultOnce.Do(func() {
		defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	})
	return defaultLogger
}

// Or returns l if non-nil, else the package default.
func Or(l Logger) Logger {
	if l != nil {
		return l
	}
	return Default()
}
