package composables

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/pkg/constants"
)

// TryUseLogger returns the logger stored in the context, accepting both
// *logrus.Entry and *logrus.Logger values.
func TryUseLogger(ctx context.Context) (*logrus.Entry, bool) {
	if ctx == nil {
		return nil, false
	}
	switch typed := ctx.Value(constants.LoggerKey).(type) {
	case *logrus.Entry:
		return typed, true
	case *logrus.Logger:
		return logrus.NewEntry(typed), true
	default:
		return nil, false
	}
}

func WithLogger(ctx context.Context, logger *logrus.Entry) context.Context {
	return context.WithValue(ctx, constants.LoggerKey, logger)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

// UseRequestID returns the request id stored in the context, or an empty string.
func UseRequestID(ctx context.Context) string {
	v, _ := ctx.Value(constants.RequestIDKey).(string)
	return v
}
