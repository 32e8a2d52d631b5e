package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapsync.log")

	logger, err := New("debug", path)
	require.NoError(t, err)
	logger.Debugw("operating header", "number", 7)
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "operating header")
	assert.Contains(t, string(data), `"number":7`)
}

func TestNew_Level(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapsync.log")

	logger, err := New("warn", path)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "shown")
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("loud", "")
	assert.Error(t, err)
}
