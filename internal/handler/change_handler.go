package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/service"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

type changeService interface {
	Propose(ctx context.Context, actor models.Actor, documentID string, req dto.ProposeChangeRequest) (*models.Change, error)
	Review(ctx context.Context, actor models.Actor, changeID string, req dto.ReviewChangeRequest) (*models.Change, error)
	Verify(ctx context.Context, actor models.Actor, changeID string) (*models.Change, error)
	List(ctx context.Context, actor models.Actor, query dto.ChangeFilterQuery) ([]models.Change, error)
	ListForDocument(ctx context.Context, actor models.Actor, documentID string) ([]models.Change, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Change, error)
	ExportRegister(ctx context.Context, actor models.Actor, documentID, format string) (*models.Document, []byte, error)
}

// ChangeHandler exposes the change workflow.
type ChangeHandler struct {
	service changeService
}

// NewChangeHandler constructs the handler.
func NewChangeHandler(svc changeService) *ChangeHandler {
	return &ChangeHandler{service: svc}
}

// Propose godoc
// @Summary Propose a change
// @Tags Changes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body dto.ProposeChangeRequest true "Proposal"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/propose-change [post]
func (h *ChangeHandler) Propose(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.ProposeChangeRequest
	if !bindJSON(c, &req, "invalid change payload") {
		return
	}
	change, err := h.service.Propose(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, change)
}

// DocumentChanges godoc
// @Summary Changes of a document
// @Tags Changes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/changes [get]
func (h *ChangeHandler) DocumentChanges(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	changes, err := h.service.ListForDocument(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}

// Export godoc
// @Summary Export the change register
// @Tags Changes
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /documents/{id}/changes/export [get]
func (h *ChangeHandler) Export(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	format := strings.ToLower(c.Query("format"))
	if format == "" {
		format = service.ExportCSV
	}
	doc, data, err := h.service.ExportRegister(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	contentType := "text/csv; charset=utf-8"
	if format == service.ExportPDF {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", service.Filename(doc.Title+" changes", format)))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}

// List godoc
// @Summary List changes
// @Tags Changes
// @Produce json
// @Security BearerAuth
// @Param documentId query string false "Document ID"
// @Param status query string false "Comma separated statuses"
// @Param mine query bool false "Only my proposals"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Router /changes [get]
func (h *ChangeHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var query dto.ChangeFilterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	changes, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes, nil)
}

// Get godoc
// @Summary Get change
// @Tags Changes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /changes/{id} [get]
func (h *ChangeHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	change, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// Review godoc
// @Summary Approve or reject a pending change
// @Tags Changes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change ID"
// @Param payload body dto.ReviewChangeRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /changes/{id}/review [put]
func (h *ChangeHandler) Review(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.ReviewChangeRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	change, err := h.service.Review(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}

// Verify godoc
// @Summary Mark an approved change implemented
// @Tags Changes
// @Produce json
// @Security BearerAuth
// @Param id path string true "Change ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /changes/{id}/verify [put]
func (h *ChangeHandler) Verify(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	change, err := h.service.Verify(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, change, nil)
}
