// Package audit records every state-changing call made against the storefront.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Action names an audited operation
type Action string

const (
	ActionUserRegistered  Action = "user.registered"
	ActionUserLoggedIn    Action = "user.logged_in"
	ActionUserLoggedOut   Action = "user.logged_out"
	ActionAdminCreated    Action = "admin.created"
	ActionProductCreated  Action = "product.created"
	ActionProductUpdated  Action = "product.updated"
	ActionProductDeleted  Action = "product.deleted"
	ActionCartLineSaved   Action = "cart.line_saved"
	ActionCartLineUpdated Action = "cart.line_updated"
	ActionCartLineRemoved Action = "cart.line_removed"
	ActionOrderPlaced     Action = "order.placed"
)

// Event is one audit record
type Event struct {
	Action   Action         `json:"action"`
	ActorID  uuid.UUID      `json:"actor_id"`
	Entity   string         `json:"entity"`
	EntityID uuid.UUID      `json:"entity_id"`
	Details  map[string]any `json:"details,omitempty"`
	At       time.Time      `json:"at"`
}

// Recorder stores audit events. Implementations log their own failures;
// callers never fail an operation because auditing did.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

type multiRecorder []Recorder

// Multi fans each event out to every recorder in order
func Multi(recorders ...Recorder) Recorder {
	return multiRecorder(recorders)
}

func (m multiRecorder) Record(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	for _, r := range m {
		r.Record(ctx, event)
	}
}
