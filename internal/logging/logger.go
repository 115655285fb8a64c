// Package logging provides the process-wide structured logger for agentforge.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	sugar  *zap.SugaredLogger
	once   sync.Once
	mu     sync.RWMutex
)

// Init initializes the global logger at the given level ("debug", "info",
// "warn", "error"). Safe to call multiple times; only the first call wins.
func Init(level string) {
	once.Do(func() {
		var cfg zap.Config
		if os.Getenv("ENVIRONMENT") == "production" {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "ts"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		} else {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}

		if level != "" {
			var lvl zapcore.Level
			if err := lvl.UnmarshalText([]byte(level)); err == nil {
				cfg.Level = zap.NewAtomicLevelAt(lvl)
			}
		}

		l, err := cfg.Build()
		if err != nil {
			// Fallback to nop logger
			l = zap.NewNop()
		}
		set(l)
	})
}

// Replace swaps the global logger. Tests use it with zaptest or observer loggers.
func Replace(l *zap.Logger) {
	once.Do(func() {})
	set(l)
}

func set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
	sugar = l.Sugar()
}

// L returns the global structured logger
func L() *zap.Logger {
	Init("")
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// S returns the global sugared logger (printf-style)
func S() *zap.SugaredLogger {
	Init("")
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Sync flushes any buffered log entries. Call before app exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		_ = logger.Sync()
	}
}

// WithContext returns a logger with additional structured fields
func WithContext(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}
