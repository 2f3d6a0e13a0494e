// Package logging builds the service's structured zap logger and the HTTP
// request-logging middleware.
package logging

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the logger configuration.
type Config struct {
	// Level is the minimum level to emit (debug, info, warn, error).
	Level string
	// Format is "json" or "console".
	Format string
	// Output is "stdout", "stderr" or a file path.
	Output string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "json", Output: "stderr"}
}

// NewLogger creates a zap logger from the configuration.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(cfg.Format) {
	case "console":
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	default:
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	sink, err := openSink(cfg.Output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, sink, level)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", level)
	}
}

func openSink(output string) (zapcore.WriteSyncer, error) {
	switch output {
	case "", "stderr":
		return zapcore.Lock(os.Stderr), nil
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	default:
		file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, err
		}
		return zapcore.Lock(file), nil
	}
}

type ctxLoggerKey struct{}

// WithContext stores the logger in the context.
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxLoggerKey{}, logger)
}

// FromContext returns the logger carried by the context, or a no-op logger
// when none is present.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(ctxLoggerKey{}).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}
