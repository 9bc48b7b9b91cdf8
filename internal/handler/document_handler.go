package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/middleware"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/service"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/markup"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

type documentService interface {
	List(ctx context.Context, actor models.Actor, query dto.DocumentFilterQuery) ([]models.Document, error)
	ListPublished(ctx context.Context, actor models.Actor) ([]models.Document, bool, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Document, error)
	Create(ctx context.Context, actor models.Actor, req dto.CreateDocumentRequest) (*models.Document, error)
	Upload(ctx context.Context, actor models.Actor, meta dto.CreateDocumentRequest, upload service.DocumentUpload) (*models.Document, error)
	Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateDocumentRequest) (*models.Document, error)
	FetchContent(ctx context.Context, actor models.Actor, id string) (*service.DocumentContent, error)
	FetchContentByLink(ctx context.Context, id, token string) (*service.DocumentContent, error)
	ContentLink(ctx context.Context, actor models.Actor, id string) (*dto.ContentLinkResponse, error)
	RenderHTML(ctx context.Context, actor models.Actor, id string) (*models.Document, string, error)
	RenderPDF(ctx context.Context, actor models.Actor, id string) (*models.Document, []byte, error)
	Clauses(ctx context.Context, actor models.Actor, id string) ([]markup.Clause, error)
}

// DocumentHandler exposes the document registry.
type DocumentHandler struct {
	service documentService
}

// NewDocumentHandler constructs the handler.
func NewDocumentHandler(svc documentService) *DocumentHandler {
	return &DocumentHandler{service: svc}
}

// List godoc
// @Summary List documents
// @Description Documents of the caller's institution. Staff and reviewers also receive the change history.
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param status query string false "DRAFT or PUBLISHED"
// @Param category query string false "Category"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var query dto.DocumentFilterQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	docs, err := h.service.List(c.Request.Context(), actor, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, nil)
}

// Published godoc
// @Summary List published documents
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /documents/published [get]
func (h *DocumentHandler) Published(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	docs, hit, err := h.service.ListPublished(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, docs, nil, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Create godoc
// @Summary Create inline document
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateDocumentRequest true "Document"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.CreateDocumentRequest
	if !bindJSON(c, &req, "invalid document payload") {
		return
	}
	doc, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Upload godoc
// @Summary Upload document file
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "PDF, DOCX, text or markdown"
// @Param title formData string false "Title, defaults to the file name"
// @Param version formData string false "Version"
// @Param revision formData string false "Revision"
// @Param category formData string false "Category"
// @Param status formData string false "DRAFT or PUBLISHED"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /documents/upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file is required"))
		return
	}
	var meta dto.CreateDocumentRequest
	if err := c.ShouldBind(&meta); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document metadata"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "file could not be read"))
		return
	}
	defer file.Close()

	doc, err := h.service.Upload(c.Request.Context(), actor, meta, service.DocumentUpload{
		Filename: header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
		Content:  file,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Update godoc
// @Summary Update document
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Changed fields"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if !bindJSON(c, &req, "invalid document payload") {
		return
	}
	doc, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Content godoc
// @Summary Document content
// @Description Streams the stored file inline, or returns inline text. A signed token replaces the bearer for links.
// @Tags Documents
// @Produce json,application/pdf,text/html
// @Param id path string true "Document ID"
// @Param format query string false "html or pdf, inline documents only"
// @Param token query string false "Signed content link token"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id}/content [get]
func (h *DocumentHandler) Content(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	var (
		content *service.DocumentContent
		err     error
	)
	if token := c.Query("token"); token != "" {
		content, err = h.service.FetchContentByLink(ctx, id, token)
		if err == nil && content.Document != nil {
			middleware.SetInstitution(c, content.Document.InstitutionID)
		}
	} else {
		actor, ok := actorOrAbort(c)
		if !ok {
			return
		}
		switch strings.ToLower(c.Query("format")) {
		case "":
			content, err = h.service.FetchContent(ctx, actor, id)
		case "html":
			h.renderHTML(c, actor, id)
			return
		case "pdf":
			h.renderPDF(c, actor, id)
			return
		default:
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "format must be html or pdf"))
			return
		}
	}
	if err != nil {
		response.Error(c, err)
		return
	}

	if content.File == nil {
		inline := ""
		if content.Inline != nil {
			inline = *content.Inline
		}
		response.JSON(c, http.StatusOK, dto.DocumentContentResponse{Content: inline}, nil)
		return
	}
	defer content.File.Close()

	c.DataFromReader(http.StatusOK, content.Size, content.MimeType, content.File, map[string]string{
		"Content-Disposition":    fmt.Sprintf("inline; filename=%q", content.Filename),
		"X-Content-Type-Options": "nosniff",
		"Cache-Control":          "private, no-store",
	})
}

func (h *DocumentHandler) renderHTML(c *gin.Context, actor models.Actor, id string) {
	_, html, err := h.service.RenderHTML(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *DocumentHandler) renderPDF(c *gin.Context, actor models.Actor, id string) {
	doc, data, err := h.service.RenderPDF(c.Request.Context(), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", service.Filename(doc.Title, "pdf")))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Data(http.StatusOK, "application/pdf", data)
}

// Clauses godoc
// @Summary Addressable clauses of an inline document
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/clauses [get]
func (h *DocumentHandler) Clauses(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	clauses, err := h.service.Clauses(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, clauses, nil)
}

// ContentLink godoc
// @Summary Signed content link
// @Tags Documents
// @Produce json
// @Security BearerAuth
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/content-link [get]
func (h *DocumentHandler) ContentLink(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	link, err := h.service.ContentLink(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}
