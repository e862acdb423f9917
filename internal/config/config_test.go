package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/blockkit/mem/manager"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 16, c.BlockSize)
	assert.Equal(t, 4, c.BlockCount)
	assert.Equal(t, "heap", c.Source)
	assert.Equal(t, Classes(manager.DefaultClasses), c.Classes)
	assert.Equal(t, "info", c.LogLevel)
	assert.Empty(t, c.LogDir)
	assert.False(t, c.LogAlloc)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("BLOCKKIT_BLOCK_SIZE", "64")
	t.Setenv("BLOCKKIT_BLOCK_COUNT", "128")
	t.Setenv("BLOCKKIT_SOURCE", "mmap")
	t.Setenv("BLOCKKIT_CLASSES", "32x8,16x4")
	t.Setenv("BLOCKKIT_LOG_LEVEL", "debug")
	t.Setenv("BLOCKKIT_LOG_DIR", "/tmp/blockkit")
	t.Setenv("BLOCKKIT_LOG_ALLOC", "true")

	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 64, c.BlockSize)
	assert.Equal(t, 128, c.BlockCount)
	assert.Equal(t, "mmap", c.Source)
	assert.Equal(t, Classes{{BlockSize: 32, BlockCount: 8}, {BlockSize: 16, BlockCount: 4}}, c.Classes)
	assert.Equal(t, "32x8,16x4", c.Classes.String())

	opts := c.LoggerOptions(true)
	assert.True(t, opts.Enabled)
	assert.Equal(t, logrus.DebugLevel, opts.Level)
	assert.Equal(t, "/tmp/blockkit", opts.LogDir)
	assert.True(t, opts.AllocTrace)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric size", "BLOCKKIT_BLOCK_SIZE", "big"},
		{"zero size", "BLOCKKIT_BLOCK_SIZE", "0"},
		{"negative count", "BLOCKKIT_BLOCK_COUNT", "-2"},
		{"unknown source", "BLOCKKIT_SOURCE", "disk"},
		{"bad classes", "BLOCKKIT_CLASSES", "16x4,16x8"},
		{"bad level", "BLOCKKIT_LOG_LEVEL", "loud"},
		{"panic level", "BLOCKKIT_LOG_LEVEL", "panic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}

func TestValidate_ReportsAll(t *testing.T) {
	c := Config{BlockSize: 0, BlockCount: 0, Source: "tape", LogLevel: "info"}
	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "block size 0")
	assert.Contains(t, err.Error(), "block count 0")
	assert.Contains(t, err.Error(), `source "tape"`)
}

func TestValidate_RejectsPanicLevel(t *testing.T) {
	c := Config{BlockSize: 16, BlockCount: 4, Source: "heap", Classes: Classes(manager.DefaultClasses), LogLevel: "panic"}
	err := c.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), `log level "panic"`)

	c.LogLevel = "fatal"
	require.NoError(t, c.Validate())
}

func TestLoggerOptions_FallsBackToInfo(t *testing.T) {
	opts := Config{LogLevel: "nonsense"}.LoggerOptions(false)
	assert.False(t, opts.Enabled)
	assert.Equal(t, logrus.InfoLevel, opts.Level)
}
