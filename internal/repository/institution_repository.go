package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

// InstitutionRepository reads tenants.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs the repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

// FindByID returns an institution by identifier.
func (r *InstitutionRepository) FindByID(ctx context.Context, id string) (*models.Institution, error) {
	const query = `SELECT id, name, created_at FROM institutions WHERE id = $1`
	var inst models.Institution
	if err := r.db.GetContext(ctx, &inst, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find institution: %w", err)
	}
	return &inst, nil
}

// List returns all institutions ordered by name.
func (r *InstitutionRepository) List(ctx context.Context) ([]models.Institution, error) {
	const query = `SELECT id, name, created_at FROM institutions ORDER BY name ASC`
	var institutions []models.Institution
	if err := r.db.SelectContext(ctx, &institutions, query); err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	return institutions, nil
}
