package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger together with the file it writes to, if any.
type Logger struct {
	zerolog.Logger
	file *os.File
}

// NewLogger builds a logger for the given level and format ("console" or
// "json"). When filePath is set, output is appended to that file instead of
// stderr.
func NewLogger(level, format, filePath string) (*Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		out  io.Writer = os.Stderr
		file *os.File
	)
	if filePath != "" {
		file, err = os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = file
	}
	if format == "console" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: file != nil}
	}

	return &Logger{
		Logger: zerolog.New(out).Level(lvl).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// NewWriterLogger logs JSON to w. Used by tests and embedding callers.
func NewWriterLogger(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{Logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
