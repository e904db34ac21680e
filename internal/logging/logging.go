// Package logging builds the structured stderr logger shared by the CLI,
// pipeline and HTTP server.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "ISSUESCOUT_LOG_LEVEL"

// Options configures the logger.
type Options struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Output defaults to os.Stderr.
	Output io.Writer
	// Prefix names the component, e.g. "pipeline".
	Prefix string
	// ReportTimestamp adds a time column.
	ReportTimestamp bool
}

// DefaultOptions logs info and above to stderr without timestamps.
func DefaultOptions() Options {
	return Options{
		Level:  "info",
		Output: os.Stderr,
	}
}

// ParseLevel converts a level name to a log.Level, defaulting to info.
func ParseLevel(level string) log.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return log.DebugLevel
	case "warn", "warning":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	case "fatal":
		return log.FatalLevel
	default:
		return log.InfoLevel
	}
}

// New creates a logger from opts.
func New(opts Options) *log.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	return log.NewWithOptions(out, log.Options{
		Level:           ParseLevel(opts.Level),
		Prefix:          opts.Prefix,
		TimeFormat:      time.Kitchen,
		ReportTimestamp: opts.ReportTimestamp,
	})
}

// FromEnv applies the ISSUESCOUT_LOG_LEVEL override to opts and builds the logger.
func FromEnv(opts Options) *log.Logger {
	if level := os.Getenv(EnvLevel); level != "" {
		opts.Level = level
	}
	return New(opts)
}

// Discard returns a logger that writes nothing. Useful as a default for
// library types constructed without a logger.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
