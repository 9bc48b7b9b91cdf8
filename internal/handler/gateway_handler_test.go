package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

type gatewayServiceMock struct {
	bearer   string
	failing  bool
	proposal dto.RevisionRequestPayload
}

func (m *gatewayServiceMock) Users(ctx context.Context, bearer string) ([]models.UserInfo, error) {
	m.bearer = bearer
	return []models.UserInfo{{ID: "staff-1"}}, nil
}

func (m *gatewayServiceMock) Documents(ctx context.Context, bearer string) ([]models.Document, error) {
	m.bearer = bearer
	if m.failing {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "document-service unavailable")
	}
	return []models.Document{{ID: "doc-1"}}, nil
}

func (m *gatewayServiceMock) Dashboard(ctx context.Context, actor models.Actor, bearer string) (*dto.DashboardResponse, error) {
	m.bearer = bearer
	if m.failing {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "dashboard upstream failed")
	}
	return &dto.DashboardResponse{User: models.UserInfo{ID: actor.UserID}, Documents: []models.Document{}, Actionable: []models.Change{}}, nil
}

func (m *gatewayServiceMock) ProposeRevision(ctx context.Context, bearer string, payload dto.RevisionRequestPayload) (*models.Change, error) {
	m.bearer = bearer
	m.proposal = payload
	return &models.Change{ID: "chg-1", DocumentID: payload.DocumentID, Status: models.ChangeStatusPending}, nil
}

func TestGatewayHandlerForwardsBearer(t *testing.T) {
	svc := &gatewayServiceMock{}
	r := newTestEngine(GatewayRoutes{Handler: NewGatewayHandler(svc), Tokens: testTokens}.Register)

	for _, path := range []string{"/api/v1/users", "/api/v1/documents", "/api/v1/dashboard"} {
		assert.Equal(t, http.StatusUnauthorized, doRequest(t, r, http.MethodGet, path, "", nil).Code, path)
		assert.Equal(t, http.StatusUnauthorized, doRequest(t, r, http.MethodGet, path, "forged", nil).Code, path)

		svc.bearer = ""
		rec := doRequest(t, r, http.MethodGet, path, "hod", nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "hod", svc.bearer, path)
	}

	rec := doRequest(t, r, http.MethodGet, "/api/v1/dashboard", "hod", nil)
	var dashboard dto.DashboardResponse
	decodeEnvelope(t, rec, &dashboard)
	assert.Equal(t, "hod-1", dashboard.User.ID)
}

func TestGatewayHandlerFailsClosed(t *testing.T) {
	svc := &gatewayServiceMock{failing: true}
	r := newTestEngine(GatewayRoutes{Handler: NewGatewayHandler(svc), Tokens: testTokens}.Register)

	rec := doRequest(t, r, http.MethodGet, "/api/v1/dashboard", "staff", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec, nil)
	assert.Equal(t, "UPSTREAM_ERROR", env.Error.Code)
	assert.Empty(t, env.Data)
}

func TestGatewayHandlerRevisionRequest(t *testing.T) {
	svc := &gatewayServiceMock{}
	r := newTestEngine(GatewayRoutes{Handler: NewGatewayHandler(svc), Tokens: testTokens}.Register)

	payload := dto.RevisionRequestPayload{DocumentID: "doc-1", CurrentClause: "old", ProposedClause: "new", Justification: "why"}
	rec := doRequest(t, r, http.MethodPost, "/api/v1/revision-requests", "staff", payload)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "staff", svc.bearer)
	assert.Equal(t, payload, svc.proposal)
}
