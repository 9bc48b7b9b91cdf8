package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

const documentColumns = `id, title, version, revision, content, file_path, mime_type, size_bytes, status, category,
       institution_id, created_by_id, created_at, updated_at`

// DocumentRepository persists tenant documents. Every read and write is scoped by institution.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create stores a new document.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	const query = `INSERT INTO documents
	(id, title, version, revision, content, file_path, mime_type, size_bytes, status, category, institution_id, created_by_id, created_at, updated_at)
	VALUES (:id, :title, :version, :revision, :content, :file_path, :mime_type, :size_bytes, :status, :category, :institution_id, :created_by_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// GetByID retrieves one document of the institution.
func (r *DocumentRepository) GetByID(ctx context.Context, institutionID, id string) (*models.Document, error) {
	const query = `SELECT ` + documentColumns + ` FROM documents WHERE id = $1 AND institution_id = $2`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id, institutionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return &doc, nil
}

// List returns the institution's documents, newest first.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + documentColumns + " FROM documents WHERE institution_id = $1")
	args := []interface{}{filter.InstitutionID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		builder.WriteString(fmt.Sprintf(" AND status = $%d", len(args)))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		builder.WriteString(fmt.Sprintf(" AND category = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY updated_at DESC")

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Update overwrites the mutable metadata of a document.
func (r *DocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now().UTC()
	const query = `UPDATE documents SET title = :title, version = :version, revision = :revision, content = :content,
	status = :status, category = :category, updated_at = :updated_at
	WHERE id = :id AND institution_id = :institution_id`
	res, err := r.db.NamedExecContext(ctx, query, doc)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check document update rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
