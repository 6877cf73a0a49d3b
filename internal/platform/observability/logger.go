package observability

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/orderdesk/api/internal/platform/requestctx"
)

const defaultLogLevel = "info"

// NewLogger builds the JSON process logger. Unknown levels fall back to info.
func NewLogger(level string) (*zap.Logger, error) {
	atomic := zap.NewAtomicLevel()
	if err := atomic.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil || strings.TrimSpace(level) == "" {
		_ = atomic.UnmarshalText([]byte(defaultLogLevel))
	}

	cfg := zap.Config{
		Level:    atomic,
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			TimeKey:       "timestamp",
			LevelKey:      "severity",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			EncodeTime:    zapcore.RFC3339NanoTimeEncoder,
			EncodeLevel:   zapcore.CapitalLevelEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	return cfg.Build()
}

// FromContext returns the request-scoped logger, defaulting to a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	return requestctx.Logger(ctx)
}

// EventLogger adapts zap to the func(ctx, event, fields) hook the services accept. The
// request-scoped logger wins over base so service events carry request ids.
func EventLogger(base *zap.Logger) func(context.Context, string, map[string]any) {
	if base == nil {
		base = zap.NewNop()
	}
	return func(ctx context.Context, event string, fields map[string]any) {
		logger := requestctx.Logger(ctx)
		if logger == requestctx.NoopLogger() {
			logger = base
		}

		keys := make([]string, 0, len(fields))
		for key := range fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		zfields := make([]zap.Field, 0, len(keys)+1)
		zfields = append(zfields, zap.String("event", event))
		var failure error
		for _, key := range keys {
			value := fields[key]
			if err, ok := value.(error); ok {
				failure = err
				zfields = append(zfields, zap.NamedError(key, err))
				continue
			}
			zfields = append(zfields, zap.Any(key, value))
		}

		if failure != nil || strings.HasSuffix(event, ".failed") {
			logger.Warn(event, zfields...)
			return
		}
		logger.Info(event, zfields...)
	}
}

// MigrationLogger satisfies golang-migrate's Logger interface.
type MigrationLogger struct {
	logger  *zap.SugaredLogger
	verbose bool
}

// NewMigrationLogger wraps logger for schema migrations. Verbose output is logged at debug.
func NewMigrationLogger(logger *zap.Logger) MigrationLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return MigrationLogger{
		logger:  logger.Named("migrate").Sugar(),
		verbose: logger.Core().Enabled(zapcore.DebugLevel),
	}
}

// Printf logs one migration progress line.
func (l MigrationLogger) Printf(format string, args ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Verbose reports whether golang-migrate should emit per-step output.
func (l MigrationLogger) Verbose() bool {
	return l.verbose
}
