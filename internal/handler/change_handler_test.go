package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/service"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

type changeServiceMock struct {
	changes   map[string]*models.Change
	lastQuery dto.ChangeFilterQuery
	lastDoc   string
}

func newChangeServiceMock() *changeServiceMock {
	return &changeServiceMock{changes: map[string]*models.Change{
		"chg-1": {ID: "chg-1", DocumentID: "doc-inline", InstitutionID: "inst-a", Status: models.ChangeStatusPending, ProposerID: "staff-1"},
	}}
}

func (m *changeServiceMock) Propose(ctx context.Context, actor models.Actor, documentID string, req dto.ProposeChangeRequest) (*models.Change, error) {
	if documentID != "doc-inline" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
	}
	change := &models.Change{ID: "chg-new", DocumentID: documentID, Clause: req.Clause, ProposedChange: req.ProposedChange,
		Justification: req.Justification, Status: models.ChangeStatusPending, ProposerID: actor.UserID}
	m.changes[change.ID] = change
	return change, nil
}

func (m *changeServiceMock) Review(ctx context.Context, actor models.Actor, changeID string, req dto.ReviewChangeRequest) (*models.Change, error) {
	change, ok := m.changes[changeID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "change not found")
	}
	if change.Status != models.ChangeStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "change is not pending")
	}
	change.Status = req.Status
	change.HODID = &actor.UserID
	return change, nil
}

func (m *changeServiceMock) Verify(ctx context.Context, actor models.Actor, changeID string) (*models.Change, error) {
	change, ok := m.changes[changeID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "change not found")
	}
	if change.Status != models.ChangeStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "change is not approved")
	}
	change.Status = models.ChangeStatusImplemented
	return change, nil
}

func (m *changeServiceMock) List(ctx context.Context, actor models.Actor, query dto.ChangeFilterQuery) ([]models.Change, error) {
	m.lastQuery = query
	return []models.Change{*m.changes["chg-1"]}, nil
}

func (m *changeServiceMock) ListForDocument(ctx context.Context, actor models.Actor, documentID string) ([]models.Change, error) {
	m.lastDoc = documentID
	return []models.Change{*m.changes["chg-1"]}, nil
}

func (m *changeServiceMock) Get(ctx context.Context, actor models.Actor, id string) (*models.Change, error) {
	change, ok := m.changes[id]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "change not found")
	}
	return change, nil
}

func (m *changeServiceMock) ExportRegister(ctx context.Context, actor models.Actor, documentID, format string) (*models.Document, []byte, error) {
	doc := &models.Document{ID: documentID, Title: "Attendance Policy"}
	switch format {
	case service.ExportCSV:
		return doc, []byte("id,status\nchg-1,PENDING\n"), nil
	case service.ExportPDF:
		return doc, []byte("%PDF-1.3"), nil
	}
	return nil, nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
}

func TestChangeHandlerWorkflowRoutes(t *testing.T) {
	changes := newChangeServiceMock()
	r := newDocumentEngine(newDocumentServiceMock(t), changes, &auditSink{})
	proposal := dto.ProposeChangeRequest{Clause: "old", ProposedChange: "new", Justification: "clarity"}

	assert.Equal(t, http.StatusForbidden, doRequest(t, r, http.MethodPost, "/api/v1/documents/doc-inline/propose-change", "hod", proposal).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, r, http.MethodPost, "/api/v1/documents/doc-b/propose-change", "staff", proposal).Code)

	rec := doRequest(t, r, http.MethodPost, "/api/v1/documents/doc-inline/propose-change", "staff", proposal)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Change
	decodeEnvelope(t, rec, &created)
	assert.Equal(t, models.ChangeStatusPending, created.Status)
	assert.Equal(t, "staff-1", created.ProposerID)

	approve := dto.ReviewChangeRequest{Status: models.ChangeStatusApproved}
	assert.Equal(t, http.StatusForbidden, doRequest(t, r, http.MethodPut, "/api/v1/changes/chg-new/review", "staff", approve).Code)
	rec = doRequest(t, r, http.MethodPut, "/api/v1/changes/chg-new/review", "hod", approve)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodPut, "/api/v1/changes/chg-new/review", "hod", approve)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_STATE", decodeEnvelope(t, rec, nil).Error.Code)

	assert.Equal(t, http.StatusForbidden, doRequest(t, r, http.MethodPut, "/api/v1/changes/chg-new/verify", "hod", nil).Code)
	rec = doRequest(t, r, http.MethodPut, "/api/v1/changes/chg-new/verify", "implementor", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verified models.Change
	decodeEnvelope(t, rec, &verified)
	assert.Equal(t, models.ChangeStatusImplemented, verified.Status)

	assert.Equal(t, http.StatusNotFound, doRequest(t, r, http.MethodPut, "/api/v1/changes/ghost/verify", "implementor", nil).Code)
}

func TestChangeHandlerListing(t *testing.T) {
	changes := newChangeServiceMock()
	r := newDocumentEngine(newDocumentServiceMock(t), changes, &auditSink{})

	rec := doRequest(t, r, http.MethodGet, "/api/v1/changes?status=PENDING,APPROVED&mine=true&limit=5", "staff", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"PENDING,APPROVED"}, changes.lastQuery.Status)
	assert.True(t, changes.lastQuery.Mine)
	assert.Equal(t, 5, changes.lastQuery.Limit)

	assert.Equal(t, http.StatusForbidden, doRequest(t, r, http.MethodGet, "/api/v1/changes", "student", nil).Code)
	assert.Equal(t, http.StatusBadRequest, doRequest(t, r, http.MethodGet, "/api/v1/changes?limit=many", "staff", nil).Code)

	rec = doRequest(t, r, http.MethodGet, "/api/v1/documents/doc-inline/changes", "hod", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "doc-inline", changes.lastDoc)

	assert.Equal(t, http.StatusOK, doRequest(t, r, http.MethodGet, "/api/v1/changes/chg-1", "implementor", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, r, http.MethodGet, "/api/v1/changes/ghost", "implementor", nil).Code)
}

func TestChangeHandlerExport(t *testing.T) {
	r := newDocumentEngine(newDocumentServiceMock(t), newChangeServiceMock(), &auditSink{})

	assert.Equal(t, http.StatusForbidden, doRequest(t, r, http.MethodGet, "/api/v1/documents/doc-inline/changes/export", "staff", nil).Code)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/documents/doc-inline/changes/export", "hod", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")
	assert.Contains(t, rec.Body.String(), "chg-1,PENDING")

	rec = doRequest(t, r, http.MethodGet, "/api/v1/documents/doc-inline/changes/export?format=PDF", "hod", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Attendance_Policy_changes.pdf"`)

	rec = doRequest(t, r, http.MethodGet, "/api/v1/documents/doc-inline/changes/export?format=xlsx", "hod", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
