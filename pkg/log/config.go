package log

import (
	"fmt"
	"io"
	stdlog "log"
	"strings"
)

// Config describes how to construct a Logger from process configuration
// (flags, environment variables, or a config file).
type Config struct {
	// Level is one of "debug", "info", "warn", "error", "fatal". Defaults to "info".
	Level string
	// Format is one of "json", "text". Defaults to "json".
	Format string
	// FilePath, if set, additionally writes formatted entries to this file.
	FilePath string
}

// ParseLevel parses a level name, case-insensitively. An unrecognized name
// returns InfoLevel and a non-nil error.
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unrecognized level %q", level)
	}
}

// ApplyConfig builds a Logger from a Config, defaulting unset fields.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "text":
		formatter = &TextFormatter{}
	case "json", "":
		formatter = &JSONFormatter{}
	default:
		return nil, fmt.Errorf("log: unrecognized format %q", cfg.Format)
	}

	opts := []LoggerOption{WithLevel(level), WithFormatter(formatter), WithOutput(NewConsoleOutput())}
	if cfg.FilePath != "" {
		fo, err := NewFileOutput(cfg.FilePath)
		if err != nil {
			return nil, fmt.Errorf("log: opening log file: %w", err)
		}
		opts = append(opts, WithOutput(fo))
	}

	return NewLogger(opts...), nil
}

// stdLogWriter adapts a Logger into an io.Writer for RedirectStdLog.
type stdLogWriter struct {
	logger Logger
}

func (w *stdLogWriter) Write(p []byte) (int, error) {
	w.logger.Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// RedirectStdLog redirects the standard library's log package output
// through logger at InfoLevel. Useful for capturing output from
// dependencies that log through log.Print.
func RedirectStdLog(logger Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(&stdLogWriter{logger: logger})
}

var _ io.Writer = (*stdLogWriter)(nil)
