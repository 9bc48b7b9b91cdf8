// Package notify is the outbound notification outbox. Services emit events
// after their state change has committed; delivery happens on a worker.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kinds that carry their own recipients and text.
const (
	KindVerifyEmail   = "user.verify_email"
	KindPasswordReset = "user.password_reset"
)

// Event is one notification waiting for delivery.
type Event struct {
	ID            string       `json:"id"`
	Kind          string       `json:"kind"`
	InstitutionID string       `json:"institutionId,omitempty"`
	To            []string     `json:"to,omitempty"`
	Subject       string       `json:"subject,omitempty"`
	Body          string       `json:"body,omitempty"`
	Change        *ChangeEvent `json:"change,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
}

// ChangeEvent describes a workflow transition. Recipients are resolved at delivery time.
type ChangeEvent struct {
	ChangeID        string   `json:"changeId"`
	DocumentID      string   `json:"documentId"`
	DocumentTitle   string   `json:"documentTitle"`
	Clause          string   `json:"clause"`
	ProposedChange  string   `json:"proposedChange"`
	Status          string   `json:"status"`
	ProposerID      string   `json:"proposerId"`
	HODID           string   `json:"hodId,omitempty"`
	ImplementorID   string   `json:"implementorId,omitempty"`
	RejectionReason string   `json:"rejectionReason,omitempty"`
	Audience        []string `json:"audience"`
}

// Notifier accepts events for asynchronous delivery.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, event Event) error

// Notify implements Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Nop drops every event.
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })

// Emit stamps the event and hands it to n. A failure is logged and swallowed
// so it can never undo the state change that produced the event.
func Emit(ctx context.Context, n Notifier, logger *zap.Logger, event Event) {
	if n == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if err := n.Notify(ctx, event); err != nil && logger != nil {
		logger.Warn("failed to enqueue notification",
			zap.String("kind", event.Kind),
			zap.String("event_id", event.ID),
			zap.Error(err))
	}
}
