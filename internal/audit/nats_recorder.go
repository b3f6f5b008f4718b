package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix prefixes every audit subject, audit.<action>
const SubjectPrefix = "audit."

// Publisher is the part of *nats.Conn the recorder uses
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSRecorder publishes audit events as JSON on audit.<action>
type NATSRecorder struct {
	pub    Publisher
	logger *zap.Logger
}

// NewNATSRecorder creates a recorder over an existing publisher
func NewNATSRecorder(pub Publisher, logger *zap.Logger) *NATSRecorder {
	return &NATSRecorder{pub: pub, logger: logger}
}

// Connect dials NATS with the connection handlers logging through logger
func Connect(url string, logger *zap.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("techcart-audit"),
		nats.Timeout(5 * time.Second),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS error", zap.String("subject", subject), zap.Error(err))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	logger.Info("Successfully connected to NATS", zap.String("url", nc.ConnectedUrl()))

	return nc, nil
}

func (r *NATSRecorder) Record(_ context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	subject := SubjectPrefix + string(event.Action)

	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("Failed to marshal audit event",
			zap.String("subject", subject),
			zap.Error(err),
		)
		return
	}

	if err := r.pub.Publish(subject, data); err != nil {
		r.logger.Error("Failed to publish audit event",
			zap.String("subject", subject),
			zap.String("entity_id", event.EntityID.String()),
			zap.Error(err),
		)
		return
	}

	r.logger.Debug("Published audit event", zap.String("subject", subject))
}
