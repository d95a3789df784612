package http

import (
	"context"
	"log/slog"

	"github.com/example/alarmd/internal/logging"
)

type contextKey string

const (
	alarmIDContextKey    contextKey = "alarm_id"
	instanceIDContextKey contextKey = "instance_id"
)

// ContextWithLogger attaches a request scoped logger to the context.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts a request scoped logger, if any.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}

// ContextWithAlarmID injects the definition identifier resolved from the request path.
func ContextWithAlarmID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, alarmIDContextKey, id)
}

// AlarmIDFromContext extracts a definition identifier previously associated with the context.
func AlarmIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(alarmIDContextKey).(string)
	return id, ok
}

// ContextWithInstanceID injects the instance identifier resolved from the request path.
func ContextWithInstanceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, instanceIDContextKey, id)
}

// InstanceIDFromContext extracts an instance identifier previously associated with the context.
func InstanceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(instanceIDContextKey).(string)
	return id, ok
}
