// Package logger holds the process-wide logrus logger used by blockkit.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// L is the global logger instance. It discards all output until Init is called.
var L = newDiscard()

// AllocTrace enables per-operation debug logging in the allocators.
// Controlled by the BLOCKKIT_LOG_ALLOC environment variable or by Init.
var AllocTrace = os.Getenv("BLOCKKIT_LOG_ALLOC") != ""

const (
	logPrefix     = "blockkit-"
	logSuffix     = ".log"
	retentionDays = 30
)

// Options configures the logger initialization.
type Options struct {
	Enabled    bool         // If false, all logging is discarded
	LogDir     string       // Directory for log files. Empty logs to stderr
	Level      logrus.Level // Minimum log level. Zero means InfoLevel
	JSON       bool         // Use the JSON formatter instead of text
	AllocTrace bool         // Log every Alloc/Free at debug level
}

// Init configures logging. Call from main() before any log calls.
// If opts.Enabled is false, all log output is discarded.
func Init(opts Options) error {
	if !opts.Enabled {
		L = newDiscard()
		return nil
	}

	out := io.Writer(os.Stderr)
	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			return err
		}

		// Best-effort; stale files are not worth failing startup over.
		cleanOldLogs(opts.LogDir, time.Now())

		filename := filepath.Join(opts.LogDir, logPrefix+time.Now().Format("2006-01-02")+logSuffix)
		f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		out = f
	}

	l := logrus.New()
	l.SetOutput(out)
	level := opts.Level
	if level == logrus.PanicLevel {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	if opts.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	L = l
	AllocTrace = AllocTrace || opts.AllocTrace
	return nil
}

// Component returns an entry tagged with the component name.
func Component(name string) *logrus.Entry {
	return L.WithField("component", name)
}

func newDiscard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// cleanOldLogs removes log files older than retentionDays.
func cleanOldLogs(logDir string, now time.Time) {
	cutoff := now.AddDate(0, 0, -retentionDays)

	entries, err := os.ReadDir(logDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, logPrefix) || !strings.HasSuffix(name, logSuffix) {
			continue
		}

		// blockkit-2024-01-05.log
		dateStr := strings.TrimPrefix(strings.TrimSuffix(name, logSuffix), logPrefix)
		logDate, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}

		if logDate.Before(cutoff) {
			os.Remove(filepath.Join(logDir, name))
		}
	}
}
