package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/paragnema1/scc/config"
)

// logSettings selects the process log output
type logSettings struct {
	Level  string
	Format string
	Out    io.Writer
}

// newLogger builds the process logger. Every record names the service and
// build; debug level adds source positions.
func newLogger(s logSettings) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s.Level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", s.Level, err)
	}
	out := s.Out
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	var handler slog.Handler
	switch s.Format {
	case "text":
		handler = slog.NewTextHandler(out, opts)
	case "json", "":
		handler = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", s.Format)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	), nil
}

// yardLogger tags records with the yard the process controls once the
// configuration is known.
func yardLogger(logger *slog.Logger, cfg *config.Config) *slog.Logger {
	return logger.With(slog.Group("yard",
		"scc_id", cfg.SCCID,
		"time_zone", cfg.Yard.TimeZone,
	))
}
