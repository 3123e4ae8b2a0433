package telemetry

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var (
	mu     sync.RWMutex
	logger = newLogger("clinix-backend", "production", zerolog.InfoLevel)
)

// stdoutWriter resolves os.Stdout on every write so tests can swap it.
type stdoutWriter struct{}

func (stdoutWriter) Write(p []byte) (int, error) { return os.Stdout.Write(p) }

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
}

// Init configures the process logger. Dev environments get console output.
func Init(service, env, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	l := newLogger(service, env, lvl)
	mu.Lock()
	logger = l
	mu.Unlock()
}

func newLogger(service, env string, lvl zerolog.Level) zerolog.Logger {
	if env == "dev" || env == "local" {
		return zerolog.New(zerolog.ConsoleWriter{Out: stdoutWriter{}, TimeFormat: time.RFC3339}).
			Level(lvl).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	}
	return zerolog.New(stdoutWriter{}).
		Level(lvl).
		With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Logger returns the configured base logger.
func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := logger
	return &l
}

type requestIDKey struct{}

// WithRequestID attaches a request ID to ctx for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID stored by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// FromContext returns the base logger enriched with the request id and the
// active trace and span ids.
func FromContext(ctx context.Context) *zerolog.Logger {
	l := *Logger()
	if ctx == nil {
		return &l
	}
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	span := trace.SpanFromContext(ctx)
	if sc := span.SpanContext(); sc.IsValid() {
		l = l.With().
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String()).
			Logger()
	}
	return &l
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	Logger().Info().Fields(fields).Msg(msg)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	Logger().Warn().Fields(fields).Msg(msg)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	Logger().Error().Fields(fields).Msg(msg)
}

// InfoCtx is Info with trace ids taken from ctx.
func InfoCtx(ctx context.Context, msg string, fields map[string]any) {
	FromContext(ctx).Info().Fields(fields).Msg(msg)
}

// WarnCtx is Warn with trace ids taken from ctx.
func WarnCtx(ctx context.Context, msg string, fields map[string]any) {
	FromContext(ctx).Warn().Fields(fields).Msg(msg)
}

// ErrorCtx is Error with trace ids taken from ctx.
func ErrorCtx(ctx context.Context, msg string, fields map[string]any) {
	FromContext(ctx).Error().Fields(fields).Msg(msg)
}
