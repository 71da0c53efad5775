// Package logger holds the process-wide zap logger and its per-component children.
package logger

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoder and threshold of the process logger.
// Level overrides the environment default when set ("debug", "info", "warn", "error").
type Options struct {
	Env   string
	Level string
}

var (
	mu    sync.RWMutex
	root  *zap.Logger
	level = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// New builds a logger for opts without touching the process logger.
// Production writes JSON; every other env writes colored console lines.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	lvl, err := levelFor(opts)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	var cfg zap.Config
	if opts.Env == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	built, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to build logger: %w", err)
	}
	return built.Named("persinteret"), cfg.Level, nil
}

// Init replaces the process logger.
func Init(opts Options) error {
	built, lvl, err := New(opts)
	if err != nil {
		return err
	}

	mu.Lock()
	root = built
	level = lvl
	mu.Unlock()
	return nil
}

func levelFor(opts Options) (zapcore.Level, error) {
	if s := strings.TrimSpace(opts.Level); s != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		return lvl, nil
	}
	if opts.Env == "production" {
		return zapcore.InfoLevel, nil
	}
	return zapcore.DebugLevel, nil
}

// Level returns the threshold of the process logger.
func Level() zapcore.Level {
	mu.RLock()
	defer mu.RUnlock()
	return level.Level()
}

// Sync flushes any buffered log entries
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

// Get returns the process logger, or a no-op logger before Init.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if root == nil {
		return zap.NewNop()
	}
	return root
}

// For returns the child logger a store or service logs through.
func For(component string) *zap.Logger {
	return Get().Named(component)
}
