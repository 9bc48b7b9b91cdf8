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
	"github.com/lib/pq"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

const changeColumns = `id, document_id, institution_id, section_index, clause, proposed_change, justification, status,
       proposer_id, hod_id, rejection_reason, implementor_id, reviewed_at, implemented_at, created_at, updated_at`

// ChangeRepository persists change proposals.
type ChangeRepository struct {
	db *sqlx.DB
}

// NewChangeRepository constructs the repository.
func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

// Create inserts a new change row.
func (r *ChangeRepository) Create(ctx context.Context, change *models.Change) error {
	if change.ID == "" {
		change.ID = uuid.NewString()
	}
	if change.Status == "" {
		change.Status = models.ChangeStatusPending
	}
	now := time.Now().UTC()
	if change.CreatedAt.IsZero() {
		change.CreatedAt = now
	}
	change.UpdatedAt = now
	const query = `INSERT INTO changes
	(id, document_id, institution_id, section_index, clause, proposed_change, justification, status, proposer_id,
	 hod_id, rejection_reason, implementor_id, reviewed_at, implemented_at, created_at, updated_at)
	VALUES (:id, :document_id, :institution_id, :section_index, :clause, :proposed_change, :justification, :status, :proposer_id,
	 :hod_id, :rejection_reason, :implementor_id, :reviewed_at, :implemented_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, change); err != nil {
		return fmt.Errorf("create change: %w", err)
	}
	return nil
}

// GetByID fetches a change of the institution.
func (r *ChangeRepository) GetByID(ctx context.Context, institutionID, id string) (*models.Change, error) {
	const query = `SELECT ` + changeColumns + ` FROM changes WHERE id = $1 AND institution_id = $2`
	var change models.Change
	if err := r.db.GetContext(ctx, &change, query, id, institutionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get change: %w", err)
	}
	return &change, nil
}

// List returns changes matching the filter, latest first.
func (r *ChangeRepository) List(ctx context.Context, filter models.ChangeFilter) ([]models.Change, error) {
	builder := strings.Builder{}
	builder.WriteString("SELECT " + changeColumns + " FROM changes WHERE institution_id = $1")
	args := []interface{}{filter.InstitutionID}

	if filter.DocumentID != "" {
		args = append(args, filter.DocumentID)
		builder.WriteString(fmt.Sprintf(" AND document_id = $%d", len(args)))
	}
	if len(filter.DocumentIDs) > 0 {
		args = append(args, pq.Array(filter.DocumentIDs))
		builder.WriteString(fmt.Sprintf(" AND document_id = ANY($%d)", len(args)))
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			statuses[i] = string(status)
		}
		args = append(args, pq.Array(statuses))
		builder.WriteString(fmt.Sprintf(" AND status = ANY($%d)", len(args)))
	}
	if filter.ProposerID != "" {
		args = append(args, filter.ProposerID)
		builder.WriteString(fmt.Sprintf(" AND proposer_id = $%d", len(args)))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	if filter.Limit > 0 {
		limit := filter.Limit
		if limit > 500 {
			limit = 500
		}
		offset := filter.Offset
		if offset < 0 {
			offset = 0
		}
		builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))
	}

	var changes []models.Change
	if err := r.db.SelectContext(ctx, &changes, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return changes, nil
}

// ReviewChangeParams describes a HOD decision.
type ReviewChangeParams struct {
	ID              string
	InstitutionID   string
	From            models.ChangeStatus
	To              models.ChangeStatus
	HODID           string
	RejectionReason *string
	At              time.Time
}

// Review records a decision only while the change is still in From.
// sql.ErrNoRows means the row is missing or its status moved on.
func (r *ChangeRepository) Review(ctx context.Context, params ReviewChangeParams) (*models.Change, error) {
	const query = `UPDATE changes SET status = $4, hod_id = $5, rejection_reason = $6, reviewed_at = $7, updated_at = $7
	WHERE id = $1 AND institution_id = $2 AND status = $3
	RETURNING ` + changeColumns
	var change models.Change
	err := r.db.GetContext(ctx, &change, query,
		params.ID, params.InstitutionID, params.From, params.To, params.HODID, params.RejectionReason, params.At)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("review change: %w", err)
	}
	return &change, nil
}

// ImplementChangeParams describes an implementor verification.
type ImplementChangeParams struct {
	ID            string
	InstitutionID string
	From          models.ChangeStatus
	To            models.ChangeStatus
	ImplementorID string
	At            time.Time
}

// Implement marks the change implemented only while it is still in From.
func (r *ChangeRepository) Implement(ctx context.Context, params ImplementChangeParams) (*models.Change, error) {
	const query = `UPDATE changes SET status = $4, implementor_id = $5, implemented_at = $6, updated_at = $6
	WHERE id = $1 AND institution_id = $2 AND status = $3
	RETURNING ` + changeColumns
	var change models.Change
	err := r.db.GetContext(ctx, &change, query,
		params.ID, params.InstitutionID, params.From, params.To, params.ImplementorID, params.At)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("implement change: %w", err)
	}
	return &change, nil
}
