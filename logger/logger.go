// Package logger builds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultLogFile is used by the daemon when no log destination is configured.
const DefaultLogFile = "agentcore.log"

// Options selects where and how logs are written.
type Options struct {
	// File appends JSON logs to the given path. Takes precedence over Pretty.
	File string
	// Pretty writes human-readable console output.
	Pretty bool
	// Level overrides LOG_LEVEL when set.
	Level string
	// Writer replaces stdout for console output. Used by tests.
	Writer io.Writer
}

// Init initializes the file logger, writing to DefaultLogFile in the current directory.
func Init() (zerolog.Logger, io.Closer, error) {
	return New(Options{File: DefaultLogFile})
}

// New builds a logger from opts. The returned Closer releases the log file,
// if one was opened; it is never nil.
// Log level comes from opts.Level, then the LOG_LEVEL environment variable.
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	levelName := opts.Level
	if levelName == "" {
		levelName = os.Getenv("LOG_LEVEL")
	}
	level := ParseLevel(levelName)

	var out io.Writer = os.Stdout
	if opts.Writer != nil {
		out = opts.Writer
	}
	var closer io.Closer = nopCloser{}

	switch {
	case opts.File != "":
		//nolint:gosec // G304: User-specified log file path is intentional
		file, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return zerolog.Logger{}, closer, fmt.Errorf("failed to open log file %s: %w", opts.File, err)
		}
		out = file
		closer = file
	case opts.Pretty:
		out = zerolog.ConsoleWriter{Out: out}
	}

	log := zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Logger()

	if opts.File != "" {
		log.Info().Str("path", opts.File).Str("level", level.String()).Msg("Logger initialized")
	} else {
		log.Debug().Bool("pretty", opts.Pretty).Str("level", level.String()).Msg("Logger initialized")
	}

	return log, closer, nil
}

// ParseLevel maps a level name onto a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.InfoLevel
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
