package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LogRecorder writes audit events to a zap logger
type LogRecorder struct {
	logger *zap.Logger
}

// NewLogRecorder creates a LogRecorder writing under the "audit" logger name
func NewLogRecorder(logger *zap.Logger) *LogRecorder {
	return &LogRecorder{logger: logger.Named("audit")}
}

func (r *LogRecorder) Record(_ context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	r.logger.Info("Audit event",
		zap.String("action", string(event.Action)),
		zap.String("actor_id", event.ActorID.String()),
		zap.String("entity", event.Entity),
		zap.String("entity_id", event.EntityID.String()),
		zap.Any("details", event.Details),
		zap.Time("at", event.At),
	)
}
