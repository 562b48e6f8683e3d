package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// Logger emits structured JSON log records with common service fields
type Logger struct {
	service  string
	hostname string
	handler  *slog.Logger
}

// New creates a logger for the named service. Unknown level names fall
// back to info.
func New(service, level string) *Logger {
	hostname, _ := os.Hostname()

	handler := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))

	return &Logger{
		service:  service,
		hostname: hostname,
		handler:  handler,
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GenerateRequestID returns a new request correlation ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

func (l *Logger) log(level slog.Level, action, message, requestID string, err error, details map[string]interface{}) {
	attrs := []slog.Attr{
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
		slog.String("service", l.service),
		slog.String("hostname", l.hostname),
		slog.String("action", action),
		slog.String("request_id", requestID),
	}

	if err != nil {
		attrs = append(attrs, slog.Group("error",
			slog.String("msg", err.Error()),
			slog.String("stack", string(debug.Stack())),
		))
	}

	if details != nil {
		attrs = append(attrs, slog.Any("details", details))
	}

	l.handler.LogAttrs(context.TODO(), level, message, attrs...)
}

func (l *Logger) Info(action, message, requestID string, details map[string]interface{}) {
	l.log(slog.LevelInfo, action, message, requestID, nil, details)
}

func (l *Logger) Debug(action, message, requestID string, details map[string]interface{}) {
	l.log(slog.LevelDebug, action, message, requestID, nil, details)
}

func (l *Logger) Warn(action, message, requestID string, details map[string]interface{}) {
	l.log(slog.LevelWarn, action, message, requestID, nil, details)
}

func (l *Logger) Error(action, message, requestID string, err error, details map[string]interface{}) {
	l.log(slog.LevelError, action, message, requestID, err, details)
}
