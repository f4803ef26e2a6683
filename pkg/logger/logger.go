package logger

import (
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() {
	// usable before Init so packages can log during start-up
	global.Store(zap.NewNop())
}

// Options controls how the global logger is built.
type Options struct {
	Level string
	// Format selects "json" (production) or "console" (human readable) output.
	Format string
}

// Init builds the global logger from opts. Unknown levels fall back to info.
func Init(opts Options) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		cfg = zap.NewDevelopmentConfig()
	}

	level := zapcore.InfoLevel
	if err := level.UnmarshalText([]byte(strings.TrimSpace(opts.Level))); err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(built)
	return nil
}

// Replace swaps the global logger, e.g. with an observer core in tests.
// nil installs a no-op logger.
func Replace(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// Logger returns the configured global logger.
func Logger() *zap.Logger {
	return global.Load()
}

// Sync flushes buffered log entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// MaskedEmail logs an address with its local part reduced to the first
// character, e.g. a***@example.com.
func MaskedEmail(key, email string) zap.Field {
	return zap.String(key, maskEmail(email))
}

func maskEmail(email string) string {
	email = strings.TrimSpace(email)
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" {
		return "***"
	}
	return local[:1] + "***@" + domain
}
