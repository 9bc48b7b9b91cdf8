package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/workflow"
)

// RecipientDirectory looks up users on behalf of the dispatcher.
type RecipientDirectory interface {
	ListUsers(ctx context.Context, institutionID string, roles ...models.UserRole) ([]models.UserInfo, error)
	GetUser(ctx context.Context, id string) (*models.UserInfo, error)
}

// Dispatcher turns events into mails.
type Dispatcher struct {
	mailer    Mailer
	directory RecipientDirectory
	baseURL   string
	logger    *zap.Logger
}

// NewDispatcher constructs a Dispatcher. directory may be nil when only direct mails are sent.
func NewDispatcher(mailer Mailer, directory RecipientDirectory, baseURL string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{mailer: mailer, directory: directory, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// Dispatch delivers one event. A returned error makes the caller retry.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	if len(event.To) > 0 {
		return d.mailer.Send(ctx, Message{To: event.To, Subject: event.Subject, Body: event.Body})
	}
	if event.Change == nil {
		d.logger.Warn("dropping notification without recipients", zap.String("kind", event.Kind), zap.String("event_id", event.ID))
		return nil
	}

	recipients, err := d.recipients(ctx, event)
	if err != nil {
		return fmt.Errorf("resolve recipients for %s: %w", event.Kind, err)
	}
	if len(recipients) == 0 {
		d.logger.Info("no recipients for notification", zap.String("kind", event.Kind), zap.String("change_id", event.Change.ChangeID))
		return nil
	}

	// A retry resends to every recipient, so only a total failure is retried.
	msg := d.compose(event)
	var errs []error
	for _, to := range recipients {
		msg.To = []string{to}
		if err := d.mailer.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("mail %s: %w", to, err))
		}
	}
	if len(errs) == len(recipients) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		d.logger.Warn("notification partially delivered",
			zap.String("kind", event.Kind), zap.String("event_id", event.ID), zap.Error(err))
	}
	return nil
}

// ProcessTask is the asynq handler for TaskType.
func (d *Dispatcher) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		d.logger.Error("undecodable notification task", zap.Error(err))
		return asynq.SkipRetry
	}
	return d.Dispatch(ctx, event)
}

func (d *Dispatcher) recipients(ctx context.Context, event Event) ([]string, error) {
	if d.directory == nil {
		return nil, errors.New("no recipient directory configured")
	}
	change := event.Change
	seen := make(map[string]bool)
	var out []string
	add := func(users ...models.UserInfo) {
		for _, u := range users {
			email := strings.ToLower(strings.TrimSpace(u.Email))
			if email == "" || seen[email] {
				continue
			}
			seen[email] = true
			out = append(out, u.Email)
		}
	}
	addUser := func(id string) error {
		if id == "" {
			return nil
		}
		user, err := d.directory.GetUser(ctx, id)
		if err != nil {
			return err
		}
		add(*user)
		return nil
	}

	for _, audience := range change.Audience {
		var err error
		switch workflow.Audience(audience) {
		case workflow.AudienceProposer:
			err = addUser(change.ProposerID)
		case workflow.AudienceReviewer:
			err = addUser(change.HODID)
		case workflow.AudienceHODs:
			var users []models.UserInfo
			users, err = d.directory.ListUsers(ctx, event.InstitutionID, models.RoleHOD)
			add(users...)
		case workflow.AudienceImplementors:
			var users []models.UserInfo
			users, err = d.directory.ListUsers(ctx, event.InstitutionID, models.RoleImplementor)
			add(users...)
		default:
			d.logger.Warn("unknown notification audience", zap.String("audience", audience))
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *Dispatcher) compose(event Event) Message {
	change := event.Change
	title := change.DocumentTitle
	if title == "" {
		title = change.DocumentID
	}

	var subject, lead string
	switch event.Kind {
	case workflow.NotifyProposed:
		subject = "Change proposed: " + title
		lead = "A change has been proposed and is waiting for review."
	case workflow.NotifyApproved:
		subject = "Change approved: " + title
		lead = "A proposed change has been approved and is ready to be implemented."
	case workflow.NotifyRejected:
		subject = "Change rejected: " + title
		lead = "A proposed change has been rejected."
	case workflow.NotifyImplemented:
		subject = "Change implemented: " + title
		lead = "An approved change has been implemented."
	default:
		subject = "Change update: " + title
		lead = "A change you follow was updated."
	}

	var body strings.Builder
	body.WriteString(lead)
	body.WriteString("\n\nClause: ")
	body.WriteString(change.Clause)
	body.WriteString("\nProposed: ")
	body.WriteString(change.ProposedChange)
	body.WriteString("\nStatus: ")
	body.WriteString(change.Status)
	if change.RejectionReason != "" {
		body.WriteString("\nReason: ")
		body.WriteString(change.RejectionReason)
	}
	if d.baseURL != "" {
		body.WriteString("\n\n")
		body.WriteString(d.baseURL + "/documents/" + change.DocumentID)
	}
	return Message{Subject: subject, Body: body.String()}
}
