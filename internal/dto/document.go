package dto

import (
	"time"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

// CreateDocumentRequest carries document metadata for JSON creation and multipart uploads.
type CreateDocumentRequest struct {
	Title    string                `form:"title" json:"title" validate:"omitempty,max=255"`
	Version  string                `form:"version" json:"version" validate:"omitempty,max=20"`
	Revision string                `form:"revision" json:"revision" validate:"omitempty,max=20"`
	Category string                `form:"category" json:"category" validate:"omitempty,max=100"`
	Status   models.DocumentStatus `form:"status" json:"status"`
	Content  *string               `form:"-" json:"content"`
}

// UpdateDocumentRequest holds the fields an implementor may change. Nil fields are untouched.
type UpdateDocumentRequest struct {
	Title    *string                `json:"title" validate:"omitempty,min=1,max=255"`
	Version  *string                `json:"version" validate:"omitempty,min=1,max=20"`
	Revision *string                `json:"revision" validate:"omitempty,min=1,max=20"`
	Category *string                `json:"category" validate:"omitempty,min=1,max=100"`
	Status   *models.DocumentStatus `json:"status"`
	Content  *string                `json:"content"`
}

// DocumentFilterQuery captures list query parameters.
type DocumentFilterQuery struct {
	Status   string `form:"status"`
	Category string `form:"category"`
}

// DocumentContentResponse is returned for inline documents.
type DocumentContentResponse struct {
	Content string `json:"content"`
}

// ContentLinkResponse exposes a signed content URL.
type ContentLinkResponse struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}
