package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Config contains configuration for the process logger.
type Config struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the output format ("json" or "text").
	Format string `yaml:"format"`

	// AddSource includes file and line number in log records.
	AddSource bool `yaml:"add_source"`

	// RedactEmails masks email addresses in log attribute values.
	RedactEmails bool `yaml:"redact_emails"`

	// Writer is the output writer, os.Stdout when nil.
	Writer io.Writer `yaml:"-"`
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:        "info",
		Format:       "json",
		RedactEmails: true,
	}
}

// New builds a slog.Logger from the configuration.
func New(config *Config) (*slog.Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	level, err := parseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	switch config.Format {
	case "json", "":
		handler = slog.NewJSONHandler(writer, opts)
	case "text":
		handler = slog.NewTextHandler(writer, opts)
	default:
		return nil, fmt.Errorf("unknown log format: %s", config.Format)
	}

	if config.RedactEmails {
		handler = newRedactingHandler(handler)
	}

	return slog.New(handler), nil
}

// Setup builds the logger and installs it as the process default.
func Setup(config *Config) (*slog.Logger, error) {
	logger, err := New(config)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}
