package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/middleware"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

type gatewayService interface {
	Users(ctx context.Context, bearer string) ([]models.UserInfo, error)
	Documents(ctx context.Context, bearer string) ([]models.Document, error)
	Dashboard(ctx context.Context, actor models.Actor, bearer string) (*dto.DashboardResponse, error)
	ProposeRevision(ctx context.Context, bearer string, payload dto.RevisionRequestPayload) (*models.Change, error)
}

// GatewayHandler serves the frontend-facing aggregate API.
type GatewayHandler struct {
	service gatewayService
}

// NewGatewayHandler constructs the handler.
func NewGatewayHandler(svc gatewayService) *GatewayHandler {
	return &GatewayHandler{service: svc}
}

// Users godoc
// @Summary Users of the caller's institution
// @Tags Gateway
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /users [get]
func (h *GatewayHandler) Users(c *gin.Context) {
	users, err := h.service.Users(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Documents godoc
// @Summary Published documents
// @Tags Gateway
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /documents [get]
func (h *GatewayHandler) Documents(c *gin.Context) {
	docs, err := h.service.Documents(c.Request.Context(), middleware.BearerToken(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Dashboard godoc
// @Summary Dashboard aggregate
// @Description Current user, published documents and the changes awaiting the caller
// @Tags Gateway
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /dashboard [get]
func (h *GatewayHandler) Dashboard(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	dashboard, err := h.service.Dashboard(c.Request.Context(), actor, middleware.BearerToken(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dashboard, nil)
}

// RevisionRequests godoc
// @Summary Propose a change (legacy revision request)
// @Tags Gateway
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RevisionRequestPayload true "Revision request"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /revision-requests [post]
func (h *GatewayHandler) RevisionRequests(c *gin.Context) {
	var payload dto.RevisionRequestPayload
	if !bindJSON(c, &payload, "invalid revision request") {
		return
	}
	change, err := h.service.ProposeRevision(c.Request.Context(), middleware.BearerToken(c), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, change)
}
