package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, slog.LevelError, LevelFromString("ERROR"))
	assert.Equal(t, slog.LevelWarn, LevelFromString("warning"))
	assert.Equal(t, slog.LevelDebug, LevelFromString(" debug "))
	assert.Equal(t, slog.LevelInfo, LevelFromString(""))
	assert.Equal(t, slog.LevelInfo, LevelFromString("chatty"))
}

func TestOpenFansOutByLevel(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	var console bytes.Buffer

	log, closer, err := Open(&console, "warn", dir)
	require.NoError(t, err)

	log = log.With("run", "r1")
	log.Debug("fetched mail", "id", "m1")
	log.Warn("item not tracked", "item", "x9")
	log.Error("cancel failed", "item", "m2")
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "fetched mail")
	assert.Contains(t, console.String(), "item not tracked")
	assert.Contains(t, console.String(), "run=r1")

	debug, err := os.ReadFile(filepath.Join(dir, DebugFile))
	require.NoError(t, err)
	assert.Contains(t, string(debug), "fetched mail")
	assert.Contains(t, string(debug), "cancel failed")

	errs, err := os.ReadFile(filepath.Join(dir, ErrorFile))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "item not tracked")
	assert.Contains(t, string(errs), "cancel failed")
	assert.Contains(t, string(errs), "item=m2")
}

func TestOpenAppends(t *testing.T) {
	dir := t.TempDir()
	for _, msg := range []string{"first", "second"} {
		log, closer, err := Open(&bytes.Buffer{}, "info", dir)
		require.NoError(t, err)
		log.Info(msg)
		require.NoError(t, closer.Close())
	}

	debug, err := os.ReadFile(filepath.Join(dir, DebugFile))
	require.NoError(t, err)
	assert.Contains(t, string(debug), "first")
	assert.Contains(t, string(debug), "second")
}
