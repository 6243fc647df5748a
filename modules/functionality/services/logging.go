package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/pkg/composables"
)

func logWithFields(ctx context.Context, level logrus.Level, msg string, fields logrus.Fields) {
	logger, ok := composables.TryUseLogger(ctx)
	if !ok {
		return
	}
	logger.WithFields(fields).Log(level, msg)
}

func logPositionRejected(ctx context.Context, tenantID uuid.UUID, operation string, err *PositionError) {
	fields := logrus.Fields{
		"tenant_id": tenantID.String(),
		"operation": operation,
		"kind":      string(err.Kind),
		"error":     err.Error(),
	}
	if err.NodeID != nil {
		fields["node_id"] = err.NodeID.String()
	}
	if requestID := composables.UseRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}

	switch err.Kind {
	case KindInternalConsistencyFault:
		logWithFields(ctx, logrus.ErrorLevel, "functree.consistency.fault", fields)
	case KindCycleDetected:
		logWithFields(ctx, logrus.WarnLevel, "functree.cycle.rejected", fields)
	default:
		logWithFields(ctx, logrus.InfoLevel, "functree.position.rejected", fields)
	}
}
