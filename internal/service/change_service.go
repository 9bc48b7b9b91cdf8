package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/authz"
	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/notify"
	"github.com/noah-isme/policy-docs-api/internal/repository"
	"github.com/noah-isme/policy-docs-api/internal/workflow"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/markup"
)

type changeStore interface {
	Create(ctx context.Context, change *models.Change) error
	GetByID(ctx context.Context, institutionID, id string) (*models.Change, error)
	List(ctx context.Context, filter models.ChangeFilter) ([]models.Change, error)
	Review(ctx context.Context, params repository.ReviewChangeParams) (*models.Change, error)
	Implement(ctx context.Context, params repository.ImplementChangeParams) (*models.Change, error)
}

type changeDocumentReader interface {
	GetByID(ctx context.Context, institutionID, id string) (*models.Document, error)
}

// ChangeService drives change proposals through the review workflow.
type ChangeService struct {
	repo      changeStore
	documents changeDocumentReader
	exporter  *ExportService
	notifier  notify.Notifier
	metrics   *MetricsService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewChangeService constructs a ChangeService.
func NewChangeService(repo changeStore, documents changeDocumentReader, exporter *ExportService, notifier notify.Notifier,
	metrics *MetricsService, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *ChangeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if notifier == nil {
		notifier = notify.Nop
	}
	if exporter == nil {
		exporter = NewExportService(logger, nil, nil)
	}
	return &ChangeService{
		repo:      repo,
		documents: documents,
		exporter:  exporter,
		notifier:  notifier,
		metrics:   metrics,
		audit:     audit,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Propose creates a PENDING change on a document of the actor's institution.
func (s *ChangeService) Propose(ctx context.Context, actor models.Actor, documentID string, req dto.ProposeChangeRequest) (*models.Change, error) {
	transition := workflow.Propose()
	if err := authz.Require(actor, transition.Capability); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid change proposal")
	}
	doc, err := s.document(ctx, actor.InstitutionID, documentID)
	if err != nil {
		return nil, err
	}

	clause := strings.TrimSpace(req.Clause)
	if req.SectionIndex != nil && doc.Content != nil {
		resolved, ok := markup.ClauseAt(*doc.Content, *req.SectionIndex)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "section index out of range")
		}
		clause = resolved.Text
	}
	if clause == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "clause is required")
	}

	change := &models.Change{
		DocumentID:     doc.ID,
		InstitutionID:  actor.InstitutionID,
		SectionIndex:   req.SectionIndex,
		Clause:         clause,
		ProposedChange: strings.TrimSpace(req.ProposedChange),
		Justification:  strings.TrimSpace(req.Justification),
		Status:         transition.To,
		ProposerID:     actor.UserID,
	}
	if err := s.repo.Create(ctx, change); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create change")
	}

	s.committed(ctx, actor, transition, doc, change, models.AuditActionPropose)
	return change, nil
}

// Review applies a HOD decision to a PENDING change.
func (s *ChangeService) Review(ctx context.Context, actor models.Actor, changeID string, req dto.ReviewChangeRequest) (*models.Change, error) {
	if err := authz.Require(actor, authz.ChangeReview); err != nil {
		return nil, err
	}
	decision := models.ChangeStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	event, err := workflow.Decide(decision)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	current, err := s.load(ctx, actor.InstitutionID, changeID)
	if err != nil {
		return nil, err
	}
	transition, err := workflow.Lookup(current.Status, event)
	if err != nil {
		return nil, err
	}

	var reason *string
	if transition.To == models.ChangeStatusRejected {
		reason = strPtr(strings.TrimSpace(req.RejectionReason))
	}
	updated, err := s.repo.Review(ctx, repository.ReviewChangeParams{
		ID:              current.ID,
		InstitutionID:   actor.InstitutionID,
		From:            transition.From,
		To:              transition.To,
		HODID:           actor.UserID,
		RejectionReason: reason,
		At:              s.now().UTC(),
	})
	if err != nil {
		return nil, s.casFailure(ctx, actor.InstitutionID, changeID, event, err, "failed to review change")
	}

	s.committed(ctx, actor, transition, nil, updated, models.AuditActionReview)
	return updated, nil
}

// Verify marks an APPROVED change as IMPLEMENTED.
func (s *ChangeService) Verify(ctx context.Context, actor models.Actor, changeID string) (*models.Change, error) {
	if err := authz.Require(actor, authz.ChangeVerify); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, actor.InstitutionID, changeID)
	if err != nil {
		return nil, err
	}
	transition, err := workflow.Lookup(current.Status, workflow.EventVerify)
	if err != nil {
		return nil, err
	}

	updated, err := s.repo.Implement(ctx, repository.ImplementChangeParams{
		ID:            current.ID,
		InstitutionID: actor.InstitutionID,
		From:          transition.From,
		To:            transition.To,
		ImplementorID: actor.UserID,
		At:            s.now().UTC(),
	})
	if err != nil {
		return nil, s.casFailure(ctx, actor.InstitutionID, changeID, workflow.EventVerify, err, "failed to verify change")
	}

	s.committed(ctx, actor, transition, nil, updated, models.AuditActionVerify)
	return updated, nil
}

// List returns tenant changes filtered by document, status or proposer.
func (s *ChangeService) List(ctx context.Context, actor models.Actor, query dto.ChangeFilterQuery) ([]models.Change, error) {
	if err := authz.Require(actor, authz.ChangeList); err != nil {
		return nil, err
	}
	filter := models.ChangeFilter{
		InstitutionID: actor.InstitutionID,
		DocumentID:    strings.TrimSpace(query.DocumentID),
		Limit:         query.Limit,
		Offset:        query.Offset,
	}
	for _, raw := range query.Status {
		for _, part := range strings.Split(raw, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			status := models.ChangeStatus(part)
			if !validChangeStatus(status) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "unknown change status "+part)
			}
			filter.Status = append(filter.Status, status)
		}
	}
	if query.Mine {
		filter.ProposerID = actor.UserID
	}
	changes, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list changes")
	}
	if changes == nil {
		changes = []models.Change{}
	}
	return changes, nil
}

// ListForDocument returns the changes of one tenant document.
func (s *ChangeService) ListForDocument(ctx context.Context, actor models.Actor, documentID string) ([]models.Change, error) {
	if err := authz.Require(actor, authz.ChangeList); err != nil {
		return nil, err
	}
	if _, err := s.document(ctx, actor.InstitutionID, documentID); err != nil {
		return nil, err
	}
	return s.List(ctx, actor, dto.ChangeFilterQuery{DocumentID: documentID})
}

// Get returns one change of the actor's institution.
func (s *ChangeService) Get(ctx context.Context, actor models.Actor, id string) (*models.Change, error) {
	if err := authz.Require(actor, authz.ChangeRead); err != nil {
		return nil, err
	}
	return s.load(ctx, actor.InstitutionID, id)
}

// ExportRegister renders the change register of a document as CSV or PDF.
func (s *ChangeService) ExportRegister(ctx context.Context, actor models.Actor, documentID, format string) (*models.Document, []byte, error) {
	if err := authz.Require(actor, authz.ChangeExport); err != nil {
		return nil, nil, err
	}
	if format == "" {
		format = ExportCSV
	}
	if format != ExportCSV && format != ExportPDF {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	doc, err := s.document(ctx, actor.InstitutionID, documentID)
	if err != nil {
		return nil, nil, err
	}
	changes, err := s.repo.List(ctx, models.ChangeFilter{InstitutionID: actor.InstitutionID, DocumentID: doc.ID})
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list changes")
	}
	var data []byte
	if format == ExportPDF {
		data, err = s.exporter.ChangeRegisterPDF(doc.Title+" changes", changes)
	} else {
		data, err = s.exporter.ChangeRegister(changes)
	}
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render change register")
	}
	return doc, data, nil
}

func (s *ChangeService) load(ctx context.Context, institutionID, id string) (*models.Change, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "change id required")
	}
	change, err := s.repo.GetByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "change not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load change")
	}
	return change, nil
}

func (s *ChangeService) document(ctx context.Context, institutionID, id string) (*models.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document id required")
	}
	doc, err := s.documents.GetByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

// casFailure explains a conditional update that matched no row: either the
// change vanished or another actor moved it first.
func (s *ChangeService) casFailure(ctx context.Context, institutionID, id string, event workflow.Event, err error, msg string) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
	}
	latest, loadErr := s.load(ctx, institutionID, id)
	if loadErr != nil {
		return loadErr
	}
	if _, lookupErr := workflow.Lookup(latest.Status, event); lookupErr != nil {
		return lookupErr
	}
	return appErrors.Clone(appErrors.ErrInvalidState, "change was modified concurrently")
}

// committed runs the side effects of a transition that has been stored.
func (s *ChangeService) committed(ctx context.Context, actor models.Actor, t workflow.Transition, doc *models.Document, change *models.Change, action string) {
	s.metrics.RecordTransition(string(t.From), string(t.To))

	title := ""
	if doc != nil {
		title = doc.Title
	} else if d, err := s.documents.GetByID(ctx, change.InstitutionID, change.DocumentID); err == nil {
		title = d.Title
	} else {
		s.logger.Debug("document title unavailable for notification", zap.String("change_id", change.ID), zap.Error(err))
	}

	audience := make([]string, len(t.Audience))
	for i, a := range t.Audience {
		audience[i] = string(a)
	}
	notify.Emit(ctx, s.notifier, s.logger, notify.Event{
		Kind:          t.Notify,
		InstitutionID: change.InstitutionID,
		Change: &notify.ChangeEvent{
			ChangeID:        change.ID,
			DocumentID:      change.DocumentID,
			DocumentTitle:   title,
			Clause:          change.Clause,
			ProposedChange:  change.ProposedChange,
			Status:          string(change.Status),
			ProposerID:      change.ProposerID,
			HODID:           deref(change.HODID),
			ImplementorID:   deref(change.ImplementorID),
			RejectionReason: deref(change.RejectionReason),
			Audience:        audience,
		},
	})

	from := string(t.From)
	if from == "" {
		from = "NEW"
	}
	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:        &actor.UserID,
		InstitutionID: &change.InstitutionID,
		Action:        action,
		Resource:      "change",
		ResourceID:    &change.ID,
		OldValues:     auditJSON(map[string]string{"status": from}),
		NewValues:     auditJSON(map[string]string{"status": string(change.Status)}),
		IPAddress:     "system",
		UserAgent:     "document-service",
	})

	s.logger.Info("change transition committed",
		zap.String("change_id", change.ID),
		zap.String("event", string(t.Event)),
		zap.String("from", from),
		zap.String("to", string(t.To)),
		zap.String("actor_id", actor.UserID))
}

func validChangeStatus(status models.ChangeStatus) bool {
	switch status {
	case models.ChangeStatusPending, models.ChangeStatusApproved, models.ChangeStatusRejected, models.ChangeStatusImplemented:
		return true
	}
	return false
}
