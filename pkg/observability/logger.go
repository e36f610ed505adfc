package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogLevel is the minimum severity a logger emits.
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

func (l LogLevel) String() string {
	return []string{"DEBUG", "INFO", "WARN", "ERROR"}[l]
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel parses a level name, defaulting to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger is a structured JSON logger. Messages take alternating key/value
// pairs in the slog style: log.Info("created", "iri", iri).
type Logger struct {
	logger *slog.Logger
	level  LogLevel
}

// NewLogger creates a JSON logger writing to output (stdout when nil).
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: level.slogLevel(),
	})
	return &Logger{logger: slog.New(handler), level: level}
}

// With returns a logger with the given key/value pairs attached to every
// message.
func (l *Logger) With(args ...interface{}) *Logger {
	return &Logger{logger: l.logger.With(args...), level: l.level}
}

// WithError attaches err to every message; nil is a no-op.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With("error", err.Error())
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...interface{}) { l.logger.Debug(msg, args...) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...interface{}) { l.logger.Info(msg, args...) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...interface{}) { l.logger.Warn(msg, args...) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...interface{}) { l.logger.Error(msg, args...) }

type contextKey string

const (
	// RequestIDKey carries the request ID through the context.
	RequestIDKey contextKey = "request_id"
	// UserIRIKey carries the authenticated user's IRI through the context.
	UserIRIKey contextKey = "user_iri"
	// LoggerKey carries the request-scoped logger through the context.
	LoggerKey contextKey = "logger"
)

// WithRequestID attaches a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// RequestID returns the request ID from the context, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithUserIRI attaches the caller's user IRI to the context.
func WithUserIRI(ctx context.Context, userIRI string) context.Context {
	return context.WithValue(ctx, UserIRIKey, userIRI)
}

// UserIRI returns the caller's user IRI from the context, or "".
func UserIRI(ctx context.Context) string {
	iri, _ := ctx.Value(UserIRIKey).(string)
	return iri
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the context's logger, annotated with the request ID
// and user IRI when present. Falls back to a default stdout logger.
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(LoggerKey).(*Logger)
	if !ok {
		logger = NewLogger(InfoLevel, os.Stdout)
	}
	if id := RequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if iri := UserIRI(ctx); iri != "" {
		logger = logger.With("user_iri", iri)
	}
	return logger
}
