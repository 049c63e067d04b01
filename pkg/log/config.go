package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
)

// Config is the declarative logger configuration.
type Config struct {
	Level  string `json:"level" yaml:"level" toml:"level" env:"LEVEL" validate:"omitempty,oneof=debug info warn warning error fatal"`
	Format string `json:"format" yaml:"format" toml:"format" env:"FORMAT" validate:"omitempty,oneof=json text"`
	// Output is a file path; empty or "stderr" writes to stderr, "stdout" to stdout.
	Output string `json:"output" yaml:"output" toml:"output" env:"OUTPUT"`
}

// ParseLevel converts a textual level to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "trace":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from cfg. A nil cfg yields an info level text logger.
func ApplyConfig(cfg *Config) (Logger, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	format := FormatText
	switch strings.ToLower(cfg.Format) {
	case "", "text":
	case "json":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var out io.Writer
	switch cfg.Output {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("log: open output: %w", err)
		}
		out = f
	}
	return NewLogger(WithLevel(level), WithFormat(format), WithOutput(out)), nil
}

// RedirectStdLog routes the standard library logger through l at info level.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetPrefix("")
	stdlog.SetOutput(l.Entry().WriterLevel(InfoLevel.logrus()))
}
