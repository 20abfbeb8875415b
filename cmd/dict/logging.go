package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// setupLogger builds the logger handed to the protocol session.
//
// With a log file, JSON records are appended to it (info level, or debug
// with --debug). Without one, --debug prints text records to stderr and
// otherwise nothing is logged. The returned cleanup closes the file.
func setupLogger(cfg Config, stderr io.Writer) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return discardLogger(), noop, err
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return discardLogger(), noop, err
		}

		h := slog.NewJSONHandler(f, &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.Debug,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
					a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
		logger := slog.New(h)
		logger.Info("logger.initialized", "path", cfg.LogFile, "debug", cfg.Debug)
		return logger, f.Close, nil
	}

	if cfg.Debug {
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})), noop, nil
	}
	return discardLogger(), noop, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
