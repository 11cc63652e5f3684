package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and sinks.
type Config struct {
	Level         string
	File          string
	Pretty        bool
	FlushInterval time.Duration
}

// ParseLevel maps a level name to a zap level; unknown names are an error.
func ParseLevel(name string) (zapcore.Level, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// New builds the process logger: console output (pretty or JSON) teed with
// an optional JSON file. The returned func flushes and closes the file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	var console zapcore.Core
	if cfg.Pretty {
		console = &prettyCore{Core: zapcore.NewCore(PrettyEncoder(), zapcore.Lock(os.Stdout), level)}
	} else {
		console = zapcore.NewCore(jsonEncoder(), zapcore.Lock(os.Stdout), level)
	}

	cores := []zapcore.Core{console}
	closeFn := func() error { return nil }

	if cfg.File != "" {
		file, err := NewSafeFileWriter(cfg.File, cfg.FlushInterval, zap.NewNop())
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), file, level))
		closeFn = file.Close
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() error {
		// stdout sync fails on terminals; only the file matters
		_ = logger.Sync()
		return closeFn()
	}
	return logger, cleanup, nil
}

// NewForTUI logs only into buf (and the optional file) so nothing is
// printed over the dashboard.
func NewForTUI(cfg Config, buf *LogBuffer) (*zap.Logger, func() error, error) {
	if buf == nil {
		return nil, nil, errors.New("buffer is required for TUI logger")
	}
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}

	cores := []zapcore.Core{zapcore.NewCore(jsonEncoder(), buf, level)}
	closeFn := func() error { return nil }
	if cfg.File != "" {
		file, err := NewSafeFileWriter(cfg.File, cfg.FlushInterval, zap.NewNop())
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), file, level))
		closeFn = file.Close
	}

	logger := zap.New(zapcore.NewTee(cores...))
	cleanup := func() error {
		_ = logger.Sync()
		return errors.Join(closeFn(), buf.Close())
	}
	return logger, cleanup, nil
}
