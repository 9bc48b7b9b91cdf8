// Package workflow defines the change review state machine as an explicit
// transition table. It performs no I/O.
package workflow

import (
	"fmt"

	"github.com/noah-isme/policy-docs-api/internal/authz"
	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

// Event drives a transition.
type Event string

const (
	EventPropose Event = "propose"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventVerify  Event = "verify"
)

// Notification kinds emitted after a committed transition.
const (
	NotifyProposed    = "change.proposed"
	NotifyApproved    = "change.approved"
	NotifyRejected    = "change.rejected"
	NotifyImplemented = "change.implemented"
)

// Audience selects who hears about a transition.
type Audience string

const (
	AudienceProposer     Audience = "proposer"
	AudienceReviewer     Audience = "reviewer"
	AudienceHODs         Audience = "hods"
	AudienceImplementors Audience = "implementors"
)

// Transition is one row of the table.
type Transition struct {
	From       models.ChangeStatus
	Event      Event
	To         models.ChangeStatus
	Capability authz.Operation
	Notify     string
	Audience   []Audience
}

type key struct {
	from  models.ChangeStatus
	event Event
}

// none is the pseudo-state of a change that does not exist yet.
const none models.ChangeStatus = ""

var table = []Transition{
	{From: none, Event: EventPropose, To: models.ChangeStatusPending,
		Capability: authz.ChangePropose, Notify: NotifyProposed,
		Audience: []Audience{AudienceHODs}},
	{From: models.ChangeStatusPending, Event: EventApprove, To: models.ChangeStatusApproved,
		Capability: authz.ChangeReview, Notify: NotifyApproved,
		Audience: []Audience{AudienceProposer, AudienceImplementors}},
	{From: models.ChangeStatusPending, Event: EventReject, To: models.ChangeStatusRejected,
		Capability: authz.ChangeReview, Notify: NotifyRejected,
		Audience: []Audience{AudienceProposer}},
	{From: models.ChangeStatusApproved, Event: EventVerify, To: models.ChangeStatusImplemented,
		Capability: authz.ChangeVerify, Notify: NotifyImplemented,
		Audience: []Audience{AudienceProposer, AudienceReviewer}},
}

var index = func() map[key]Transition {
	m := make(map[key]Transition, len(table))
	for _, t := range table {
		m[key{t.From, t.Event}] = t
	}
	return m
}()

// Lookup finds the transition for (from, event). A missing row yields InvalidState.
func Lookup(from models.ChangeStatus, event Event) (Transition, error) {
	t, ok := index[key{from, event}]
	if !ok {
		if from == none {
			from = "NEW"
		}
		return Transition{}, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("cannot %s a change in status %s", event, from))
	}
	return t, nil
}

// Propose returns the initial transition.
func Propose() Transition {
	return index[key{none, EventPropose}]
}

// Decide maps a review decision onto its event.
func Decide(decision models.ChangeStatus) (Event, error) {
	switch decision {
	case models.ChangeStatusApproved:
		return EventApprove, nil
	case models.ChangeStatusRejected:
		return EventReject, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "status must be APPROVED or REJECTED")
	}
}

// Terminal reports whether no event leaves status.
func Terminal(status models.ChangeStatus) bool {
	for _, t := range table {
		if t.From == status {
			return false
		}
	}
	return true
}

// Transitions returns a copy of the table.
func Transitions() []Transition {
	out := make([]Transition, len(table))
	copy(out, table)
	return out
}
