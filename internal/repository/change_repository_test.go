package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

var changeRowColumns = []string{"id", "document_id", "institution_id", "section_index", "clause", "proposed_change", "justification",
	"status", "proposer_id", "hod_id", "rejection_reason", "implementor_id", "reviewed_at", "implemented_at", "created_at", "updated_at"}

func TestChangeRepositoryCreateDefaultsPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO changes")).WillReturnResult(sqlmock.NewResult(1, 1))

	change := &models.Change{DocumentID: "doc-1", InstitutionID: "inst-a", Clause: "Attendance is mandatory.", ProposerID: "staff-1"}
	require.NoError(t, repo.Create(context.Background(), change))
	assert.Equal(t, models.ChangeStatusPending, change.Status)
	assert.NotEmpty(t, change.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(changeRowColumns).
		AddRow("chg-1", "doc-1", "inst-a", 2, "Clause", "New clause", "Because", "PENDING", "staff-1", nil, nil, nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM changes WHERE institution_id = $1 AND document_id = $2 AND status = ANY($3) ORDER BY created_at DESC LIMIT 10 OFFSET 0")).
		WithArgs("inst-a", "doc-1", sqlmock.AnyArg()).
		WillReturnRows(rows)

	changes, err := repo.List(context.Background(), models.ChangeFilter{
		InstitutionID: "inst-a",
		DocumentID:    "doc-1",
		Status:        []models.ChangeStatus{models.ChangeStatusPending},
		Limit:         10,
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].SectionIndex)
	assert.Equal(t, 2, *changes[0].SectionIndex)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepositoryReviewCompareAndSwap(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRepository(db)

	now := time.Now()
	reason := "insufficient evidence"
	rows := sqlmock.NewRows(changeRowColumns).
		AddRow("chg-1", "doc-1", "inst-a", nil, "Clause", "New", "Because", "REJECTED", "staff-1", "hod-1", reason, nil, now, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND institution_id = $2 AND status = $3")).
		WithArgs("chg-1", "inst-a", "PENDING", "REJECTED", "hod-1", reason, sqlmock.AnyArg()).
		WillReturnRows(rows)

	change, err := repo.Review(context.Background(), ReviewChangeParams{
		ID: "chg-1", InstitutionID: "inst-a",
		From: models.ChangeStatusPending, To: models.ChangeStatusRejected,
		HODID: "hod-1", RejectionReason: &reason, At: now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChangeStatusRejected, change.Status)
	assert.Equal(t, reason, *change.RejectionReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeRepositoryImplementLostRace(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewChangeRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE changes SET status = $4, implementor_id = $5")).
		WithArgs("chg-1", "inst-a", "APPROVED", "IMPLEMENTED", "impl-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(changeRowColumns))

	_, err := repo.Implement(context.Background(), ImplementChangeParams{
		ID: "chg-1", InstitutionID: "inst-a",
		From: models.ChangeStatusApproved, To: models.ChangeStatusImplemented,
		ImplementorID: "impl-1", At: time.Now(),
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
