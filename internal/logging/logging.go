// Package logging builds the slog.Logger shared by crosslist's components.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Log file names under the log directory.
const (
	DebugFile = "debug.log"
	ErrorFile = "err.log"
)

// New creates a console slog.Logger with provided level string.
func New(level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: LevelFromString(level),
	}))
}

// Open creates a logger that writes to console at level, and to
// dir/debug.log (every record) and dir/err.log (errors only). The returned
// closer closes both files.
func Open(console io.Writer, level, dir string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	debug, err := openAppend(filepath.Join(dir, DebugFile))
	if err != nil {
		return nil, nil, err
	}
	errs, err := openAppend(filepath.Join(dir, ErrorFile))
	if err != nil {
		debug.Close()
		return nil, nil, err
	}

	h := fanout{
		slog.NewTextHandler(console, &slog.HandlerOptions{Level: LevelFromString(level)}),
		slog.NewTextHandler(debug, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true}),
		slog.NewTextHandler(errs, &slog.HandlerOptions{Level: slog.LevelError, AddSource: true}),
	}
	return slog.New(h), files{debug, errs}, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// LevelFromString maps a config level name to a slog.Level. Unknown names
// mean info.
func LevelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log %s: %w", path, err)
	}
	return f, nil
}

type files []*os.File

func (fs files) Close() error {
	var errs []error
	for _, f := range fs {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// fanout sends each record to every handler enabled for its level.
type fanout []slog.Handler

func (h fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, c := range h {
		if c.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, c := range h {
		if c.Enabled(ctx, r.Level) {
			errs = append(errs, c.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (h fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(h))
	for i, c := range h {
		out[i] = c.WithAttrs(attrs)
	}
	return out
}

func (h fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(h))
	for i, c := range h {
		out[i] = c.WithGroup(name)
	}
	return out
}
