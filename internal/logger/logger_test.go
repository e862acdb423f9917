package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restore(t *testing.T) {
	t.Helper()
	prevL, prevTrace := L, AllocTrace
	t.Cleanup(func() {
		L, AllocTrace = prevL, prevTrace
	})
}

// TestInit_Disabled tests that a disabled logger discards output.
func TestInit_Disabled(t *testing.T) {
	restore(t)

	require.NoError(t, Init(Options{Enabled: false}))
	Component("test").Info("dropped")
}

// TestInit_LogDir tests that logs land in a dated file in the directory.
func TestInit_LogDir(t *testing.T) {
	restore(t)
	dir := t.TempDir()

	require.NoError(t, Init(Options{Enabled: true, LogDir: dir, Level: logrus.DebugLevel, JSON: true}))
	Component("sba").WithField("blocks", 4).Debug("constructed")

	name := filepath.Join(dir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"sba"`)
	assert.Contains(t, string(data), `"msg":"constructed"`)
}

// TestInit_AllocTrace tests that the option turns on allocation tracing.
func TestInit_AllocTrace(t *testing.T) {
	restore(t)
	AllocTrace = false

	require.NoError(t, Init(Options{Enabled: true, LogDir: t.TempDir(), AllocTrace: true}))
	assert.True(t, AllocTrace)
	assert.Equal(t, logrus.InfoLevel, L.GetLevel())
}

// TestCleanOldLogs tests retention-based pruning.
func TestCleanOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	files := map[string]bool{
		"blockkit-2024-02-28.log": true,  // recent, kept
		"blockkit-2023-12-01.log": false, // stale, removed
		"blockkit-garbage.log":    true,  // unparsable, kept
		"other-2020-01-01.log":    true,  // foreign prefix, kept
	}
	for name := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	cleanOldLogs(dir, now)

	for name, kept := range files {
		_, err := os.Stat(filepath.Join(dir, name))
		if kept {
			assert.NoError(t, err, name)
		} else {
			assert.True(t, os.IsNotExist(err), name)
		}
	}
}
