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

var documentRowColumns = []string{"id", "title", "version", "revision", "content", "file_path", "mime_type", "size_bytes",
	"status", "category", "institution_id", "created_by_id", "created_at", "updated_at"}

func TestDocumentRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO documents")).WillReturnResult(sqlmock.NewResult(1, 1))

	content := "Attendance is mandatory."
	doc := &models.Document{Title: "Attendance", Content: &content, Status: models.DocumentStatusDraft, InstitutionID: "inst-a"}
	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NotEmpty(t, doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryGetIsTenantScoped(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1 AND institution_id = $2")).
		WithArgs("doc-1", "inst-b").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "inst-b", "doc-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryListPublished(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(documentRowColumns).
		AddRow("doc-1", "Attendance", "1.0", "A", "Attendance is mandatory.", nil, nil, nil, "PUBLISHED", "Policy", "inst-a", "impl-1", now, now).
		AddRow("doc-2", "Handbook", "2.0", "B", nil, "/uploads/h.pdf", "application/pdf", 1024, "PUBLISHED", "Policy", "inst-a", "impl-1", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE institution_id = $1 AND status = $2 ORDER BY updated_at DESC")).
		WithArgs("inst-a", "PUBLISHED").
		WillReturnRows(rows)

	docs, err := repo.List(context.Background(), models.DocumentFilter{InstitutionID: "inst-a", Status: models.DocumentStatusPublished})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.False(t, docs[0].HasFile())
	assert.True(t, docs[1].HasFile())
	assert.Equal(t, int64(1024), *docs[1].SizeBytes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE documents SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Document{ID: "doc-x", InstitutionID: "inst-a"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
