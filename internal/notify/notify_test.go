package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/workflow"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/jobs"
)

type recordingMailer struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

type directoryStub struct {
	users   map[string]models.UserInfo
	listErr error
}

func (d *directoryStub) ListUsers(_ context.Context, institutionID string, roles ...models.UserRole) ([]models.UserInfo, error) {
	if d.listErr != nil {
		return nil, d.listErr
	}
	var out []models.UserInfo
	for _, u := range d.users {
		if u.InstitutionID != institutionID {
			continue
		}
		for _, r := range roles {
			if u.Role == r {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

func (d *directoryStub) GetUser(_ context.Context, id string) (*models.UserInfo, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, errors.New("user not found")
	}
	return &u, nil
}

func newDirectory() *directoryStub {
	return &directoryStub{users: map[string]models.UserInfo{
		"staff-1": {ID: "staff-1", Email: "staff@north.edu", Role: models.RoleStaff, InstitutionID: "inst-a"},
		"hod-1":   {ID: "hod-1", Email: "hod@north.edu", Role: models.RoleHOD, InstitutionID: "inst-a"},
		"impl-1":  {ID: "impl-1", Email: "impl@north.edu", Role: models.RoleImplementor, InstitutionID: "inst-a"},
		"hod-b":   {ID: "hod-b", Email: "hod@south.edu", Role: models.RoleHOD, InstitutionID: "inst-b"},
	}}
}

func changeEvent(kind string, audience ...workflow.Audience) Event {
	aud := make([]string, len(audience))
	for i, a := range audience {
		aud[i] = string(a)
	}
	return Event{
		ID:            "evt-1",
		Kind:          kind,
		InstitutionID: "inst-a",
		Change: &ChangeEvent{
			ChangeID:       "chg-1",
			DocumentID:     "doc-1",
			DocumentTitle:  "Attendance Policy",
			Clause:         "Attendance is mandatory.",
			ProposedChange: "Attendance is mandatory for lectures.",
			Status:         "PENDING",
			ProposerID:     "staff-1",
			HODID:          "hod-1",
			Audience:       aud,
		},
	}
}

func TestDispatchDirectMail(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, nil, "", nil)

	err := d.Dispatch(context.Background(), Event{Kind: KindVerifyEmail, To: []string{"new@north.edu"}, Subject: "Verify", Body: "link"})
	require.NoError(t, err)
	require.Len(t, mailer.messages(), 1)
	assert.Equal(t, []string{"new@north.edu"}, mailer.messages()[0].To)
}

func TestDispatchProposedGoesToInstitutionHODs(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, newDirectory(), "https://docs.north.edu/", nil)

	require.NoError(t, d.Dispatch(context.Background(), changeEvent(workflow.NotifyProposed, workflow.AudienceHODs)))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"hod@north.edu"}, sent[0].To)
	assert.Equal(t, "Change proposed: Attendance Policy", sent[0].Subject)
	assert.Contains(t, sent[0].Body, "https://docs.north.edu/documents/doc-1")
}

func TestDispatchApprovedDeduplicatesRecipients(t *testing.T) {
	mailer := &recordingMailer{}
	dir := newDirectory()
	d := NewDispatcher(mailer, dir, "", nil)

	event := changeEvent(workflow.NotifyApproved, workflow.AudienceProposer, workflow.AudienceImplementors, workflow.AudienceProposer)
	require.NoError(t, d.Dispatch(context.Background(), event))

	var to []string
	for _, m := range mailer.messages() {
		to = append(to, m.To...)
	}
	assert.ElementsMatch(t, []string{"staff@north.edu", "impl@north.edu"}, to)
}

func TestDispatchRejectedIncludesReason(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, newDirectory(), "", nil)

	event := changeEvent(workflow.NotifyRejected, workflow.AudienceProposer)
	event.Change.RejectionReason = "insufficient evidence"
	require.NoError(t, d.Dispatch(context.Background(), event))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Body, "Reason: insufficient evidence")
}

type flakyMailer struct {
	recordingMailer
	failFor map[string]bool
}

func (m *flakyMailer) Send(ctx context.Context, msg Message) error {
	if len(msg.To) > 0 && m.failFor[msg.To[0]] {
		return errors.New("mailbox unavailable")
	}
	return m.recordingMailer.Send(ctx, msg)
}

func TestDispatchPartialMailFailureIsNotRetried(t *testing.T) {
	mailer := &flakyMailer{failFor: map[string]bool{"impl@north.edu": true}}
	d := NewDispatcher(mailer, newDirectory(), "", nil)

	event := changeEvent(workflow.NotifyApproved, workflow.AudienceProposer, workflow.AudienceImplementors)
	require.NoError(t, d.Dispatch(context.Background(), event))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, []string{"staff@north.edu"}, sent[0].To)
}

func TestDispatchTotalMailFailureIsRetryable(t *testing.T) {
	mailer := &flakyMailer{failFor: map[string]bool{"staff@north.edu": true, "impl@north.edu": true}}
	d := NewDispatcher(mailer, newDirectory(), "", nil)

	event := changeEvent(workflow.NotifyApproved, workflow.AudienceProposer, workflow.AudienceImplementors)
	err := d.Dispatch(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox unavailable")
	assert.Empty(t, mailer.messages())
}

func TestDispatchDirectoryFailureIsRetryable(t *testing.T) {
	dir := newDirectory()
	dir.listErr = errors.New("auth service down")
	d := NewDispatcher(&recordingMailer{}, dir, "", nil)

	err := d.Dispatch(context.Background(), changeEvent(workflow.NotifyProposed, workflow.AudienceHODs))
	assert.Error(t, err)
}

func TestProcessTask(t *testing.T) {
	mailer := &recordingMailer{}
	d := NewDispatcher(mailer, nil, "", nil)

	err := d.ProcessTask(context.Background(), asynq.NewTask(TaskType, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewTask(Event{Kind: KindPasswordReset, To: []string{"a@north.edu"}, Subject: "Reset"})
	require.NoError(t, err)
	require.NoError(t, d.ProcessTask(context.Background(), task))
	assert.Len(t, mailer.messages(), 1)
}

type enqueuerStub struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (e *enqueuerStub) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	e.task = task
	e.opts = opts
	return &asynq.TaskInfo{}, e.err
}

func TestAsynqNotifier(t *testing.T) {
	stub := &enqueuerStub{}
	n := NewAsynqNotifier(stub, 5)

	event := changeEvent(workflow.NotifyImplemented, workflow.AudienceProposer, workflow.AudienceReviewer)
	require.NoError(t, n.Notify(context.Background(), event))

	require.NotNil(t, stub.task)
	assert.Equal(t, TaskType, stub.task.Type())
	var decoded Event
	require.NoError(t, json.Unmarshal(stub.task.Payload(), &decoded))
	assert.Equal(t, event.Change.ChangeID, decoded.Change.ChangeID)
	assert.Len(t, stub.opts, 3)

	stub.err = errors.New("redis down")
	assert.Error(t, n.Notify(context.Background(), event))
}

func TestQueueNotifierDelivers(t *testing.T) {
	mailer := &recordingMailer{}
	n := NewQueueNotifier(NewDispatcher(mailer, nil, "", nil), jobs.QueueConfig{Workers: 1})
	n.Start(context.Background())

	require.NoError(t, n.Notify(context.Background(), Event{ID: "e1", Kind: KindVerifyEmail, To: []string{"a@north.edu"}}))
	n.Stop()

	assert.Len(t, mailer.messages(), 1)
}

func TestEmitSwallowsFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	failing := NotifierFunc(func(context.Context, Event) error { return errors.New("queue full") })

	Emit(context.Background(), failing, zap.New(core), Event{Kind: workflow.NotifyApproved})

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "failed to enqueue notification", logs.All()[0].Message)
}

func TestEmitStampsEvent(t *testing.T) {
	var got Event
	Emit(context.Background(), NotifierFunc(func(_ context.Context, e Event) error {
		got = e
		return nil
	}), nil, Event{Kind: KindVerifyEmail})

	assert.NotEmpty(t, got.ID)
	assert.False(t, got.OccurredAt.IsZero())
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	assert.IsType(t, &LogMailer{}, NewMailer(config.MailConfig{}, nil))
	assert.IsType(t, &SMTPMailer{}, NewMailer(config.MailConfig{SMTPHost: "smtp.north.edu", SMTPPort: 587}, nil))
}

func TestSMTPMailerComposesMessage(t *testing.T) {
	m := NewSMTPMailer(config.MailConfig{From: "no-reply@north.edu", SMTPHost: "smtp.north.edu", SMTPPort: 2525})
	m.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	var gotAddr string
	var gotTo []string
	var gotMsg string
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotTo, gotMsg = addr, to, string(msg)
		return nil
	}

	err := m.Send(context.Background(), Message{To: []string{"a@north.edu"}, Subject: "Hi\r\nBcc: evil@x.com", Body: "line1\nline2"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.north.edu:2525", gotAddr)
	assert.Equal(t, []string{"a@north.edu"}, gotTo)
	assert.Contains(t, gotMsg, "Subject: Hi Bcc: evil@x.com\r\n")
	assert.Contains(t, gotMsg, "line1\r\nline2")
	assert.Equal(t, 1, strings.Count(gotMsg, "Bcc:"))

	assert.Error(t, m.Send(context.Background(), Message{}))
}

type outcomeRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (o *outcomeRecorder) RecordNotification(kind, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, kind+":"+outcome)
}

func (o *outcomeRecorder) recorded() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.outcomes...)
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, OutcomeDelivered, Outcome(nil, true))
	assert.Equal(t, OutcomeRetry, Outcome(errors.New("x"), false))
	assert.Equal(t, OutcomeFailed, Outcome(errors.New("x"), true))
}

func TestNewOutboxMemoryDriver(t *testing.T) {
	mailer := &recordingMailer{}
	observer := &outcomeRecorder{}
	n, closeFn, err := NewOutbox(context.Background(), config.NotifyConfig{Driver: config.NotifyDriverMemory, Workers: 1},
		config.RedisConfig{}, NewDispatcher(mailer, nil, "", nil), observer, nil)
	require.NoError(t, err)

	Emit(context.Background(), n, nil, Event{Kind: KindVerifyEmail, To: []string{"a@x.io"}, Subject: "Verify", Body: "link"})
	closeFn()

	require.Len(t, mailer.messages(), 1)
	assert.Equal(t, []string{KindVerifyEmail + ":" + OutcomeDelivered}, observer.recorded())
}

func TestNewOutboxRejectsUnknownDriver(t *testing.T) {
	_, _, err := NewOutbox(context.Background(), config.NotifyConfig{Driver: "kafka"}, config.RedisConfig{}, nil, nil, nil)
	require.Error(t, err)

	_, _, err = NewOutbox(context.Background(), config.NotifyConfig{Driver: config.NotifyDriverMemory}, config.RedisConfig{}, nil, nil, nil)
	require.Error(t, err)
}

func TestServeMuxObservesOutcome(t *testing.T) {
	mailer := &recordingMailer{}
	observer := &outcomeRecorder{}
	mux := NewServeMux(NewDispatcher(mailer, nil, "", nil), observer)

	task, err := NewTask(Event{ID: "evt-1", Kind: KindPasswordReset, To: []string{"a@x.io"}, Subject: "Reset"})
	require.NoError(t, err)
	require.NoError(t, mux.ProcessTask(context.Background(), task))

	mailer.err = errors.New("smtp down")
	require.Error(t, mux.ProcessTask(context.Background(), task))

	// without retry metadata in the context every failure is final
	assert.Equal(t, []string{KindPasswordReset + ":" + OutcomeDelivered, KindPasswordReset + ":" + OutcomeFailed}, observer.recorded())
}
