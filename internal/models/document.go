package models

import "time"

// DocumentStatus is the publication state of a document.
type DocumentStatus string

const (
	DocumentStatusDraft     DocumentStatus = "DRAFT"
	DocumentStatusPublished DocumentStatus = "PUBLISHED"
)

// Valid reports whether s is a known status.
func (s DocumentStatus) Valid() bool {
	return s == DocumentStatusDraft || s == DocumentStatusPublished
}

const (
	DefaultDocumentVersion  = "1.0"
	DefaultDocumentRevision = "A"
	DefaultDocumentCategory = "Uncategorized"
)

// Document holds either inline content or a reference to an uploaded file, never both.
type Document struct {
	ID            string         `db:"id" json:"id"`
	Title         string         `db:"title" json:"title"`
	Version       string         `db:"version" json:"version"`
	Revision      string         `db:"revision" json:"revision"`
	Content       *string        `db:"content" json:"content,omitempty"`
	FilePath      *string        `db:"file_path" json:"-"`
	MimeType      *string        `db:"mime_type" json:"mimeType,omitempty"`
	SizeBytes     *int64         `db:"size_bytes" json:"sizeBytes,omitempty"`
	Status        DocumentStatus `db:"status" json:"status"`
	Category      string         `db:"category" json:"category"`
	InstitutionID string         `db:"institution_id" json:"institutionId"`
	CreatedByID   string         `db:"created_by_id" json:"createdById"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
	Changes       []Change       `db:"-" json:"changes,omitempty"`
}

// HasFile reports whether the document content lives in storage.
func (d *Document) HasFile() bool {
	return d.FilePath != nil && *d.FilePath != ""
}

// DocumentFilter narrows listing queries. InstitutionID is mandatory.
type DocumentFilter struct {
	InstitutionID string
	Status        DocumentStatus
	Category      string
}
