package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/repository"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/storage"
)

type documentFixture struct {
	svc     *DocumentService
	docs    *memoryDocumentRepo
	changes *memoryChangeRepo
	audit   *auditRecorder
	redis   *miniredis.Miniredis
	cache   *CacheService
}

func newDocumentFixture(t *testing.T) documentFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCacheService(repository.NewCacheRepository(client, nil), NewMetricsService(), time.Minute, zap.NewNop(), true)

	docs := newMemoryDocumentRepo(policyDocuments()...)
	changes := newMemoryChangeRepo()
	audit := &auditRecorder{}
	svc := NewDocumentService(docs, changes, store, storage.NewLinkSigner("link-secret", time.Minute), cache,
		nil, audit, nil, zap.NewNop(), DocumentServiceConfig{MaxFileSize: 1024, APIPrefix: "/api/v1"})
	return documentFixture{svc: svc, docs: docs, changes: changes, audit: audit, redis: mr, cache: cache}
}

func strRef(s string) *string { return &s }

func TestDocumentServiceListIsTenantScoped(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	require.NoError(t, f.changes.Create(ctx, &models.Change{DocumentID: "doc-1", InstitutionID: "inst-a", Clause: "c", ProposerID: "staff-1"}))

	docs, err := f.svc.List(ctx, hodActor, dto.DocumentFilterQuery{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "doc-1", docs[0].ID)
	assert.Len(t, docs[0].Changes, 1)

	// students may read documents but not the change history
	docs, err = f.svc.List(ctx, studentActor, dto.DocumentFilterQuery{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Nil(t, docs[0].Changes)

	_, err = f.svc.List(ctx, hodActor, dto.DocumentFilterQuery{Status: "ARCHIVED"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestDocumentServiceGetCrossTenantIsNotFound(t *testing.T) {
	f := newDocumentFixture(t)

	_, err := f.svc.Get(context.Background(), hodActor, "doc-b")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	_, err = f.svc.FetchContent(context.Background(), hodActor, "doc-b")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	doc, err := f.svc.Get(context.Background(), foreignHOD, "doc-b")
	require.NoError(t, err)
	assert.Equal(t, "inst-b", doc.InstitutionID)
}

func TestDocumentServiceCreateAndUpdate(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, staffActor, dto.CreateDocumentRequest{Title: "x", Content: strRef("y")})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Create(ctx, implementorActor, dto.CreateDocumentRequest{Title: "Grading"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	doc, err := f.svc.Create(ctx, implementorActor, dto.CreateDocumentRequest{Title: " Grading Policy ", Content: strRef("Grades are final.")})
	require.NoError(t, err)
	assert.Equal(t, "Grading Policy", doc.Title)
	assert.Equal(t, models.DocumentStatusDraft, doc.Status)
	assert.Equal(t, models.DefaultDocumentVersion, doc.Version)
	assert.Equal(t, models.DefaultDocumentRevision, doc.Revision)
	assert.Equal(t, models.DefaultDocumentCategory, doc.Category)
	assert.Equal(t, "inst-a", doc.InstitutionID)
	assert.Equal(t, "impl-1", doc.CreatedByID)

	published := models.DocumentStatusPublished
	updated, err := f.svc.Update(ctx, implementorActor, doc.ID, dto.UpdateDocumentRequest{
		Status:   &published,
		Revision: strRef("B"),
		Content:  strRef("Grades are final after appeal."),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusPublished, updated.Status)
	assert.Equal(t, "B", updated.Revision)
	assert.Equal(t, "Grades are final after appeal.", *updated.Content)

	bad := models.DocumentStatus("ARCHIVED")
	_, err = f.svc.Update(ctx, implementorActor, doc.ID, dto.UpdateDocumentRequest{Status: &bad})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Update(ctx, implementorActor, "doc-b", dto.UpdateDocumentRequest{Title: strRef("stolen")})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = f.svc.Update(ctx, hodActor, doc.ID, dto.UpdateDocumentRequest{Title: strRef("nope")})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	require.Len(t, f.audit.logs, 2)
	assert.Equal(t, models.AuditActionUpdate, f.audit.logs[1].Action)
	assert.Contains(t, string(f.audit.logs[1].OldValues), `"revision":"A"`)
}

func TestDocumentServicePublishedCacheInvalidation(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	first, hit, err := f.svc.ListPublished(ctx, staffActor)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.False(t, hit)
	publishedKey := f.cache.TenantKey("inst-a", "documents", "published")
	assert.Equal(t, "policy-docs:tenant:inst-a:documents:published", publishedKey)
	assert.True(t, f.redis.Exists(publishedKey))

	// written behind the service's back, so only visible after invalidation
	require.NoError(t, f.docs.Create(ctx, &models.Document{ID: "doc-2", Title: "Fees", Status: models.DocumentStatusPublished, InstitutionID: "inst-a"}))
	cached, hit, err := f.svc.ListPublished(ctx, staffActor)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Len(t, cached, 1)

	_, err = f.svc.Update(ctx, implementorActor, "doc-1", dto.UpdateDocumentRequest{Category: strRef("Policy")})
	require.NoError(t, err)
	assert.False(t, f.redis.Exists(publishedKey))

	fresh, _, err := f.svc.ListPublished(ctx, staffActor)
	require.NoError(t, err)
	assert.Len(t, fresh, 2)
}

func TestDocumentServiceUploadAndFetch(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	payload := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

	doc, err := f.svc.Upload(ctx, implementorActor, dto.CreateDocumentRequest{Category: "Safety"}, DocumentUpload{
		Filename: "fire-drill.pdf",
		Size:     int64(len(payload)),
		Content:  bytes.NewReader(payload),
	})
	require.NoError(t, err)
	assert.Equal(t, "fire-drill", doc.Title)
	require.NotNil(t, doc.MimeType)
	assert.Equal(t, "application/pdf", *doc.MimeType)
	assert.True(t, doc.HasFile())
	assert.True(t, strings.HasPrefix(*doc.FilePath, "inst-a/"))

	content, err := f.svc.FetchContent(ctx, studentActor, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, content.File)
	defer content.File.Close()
	data, err := io.ReadAll(content.File)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "fire-drill.pdf", content.Filename)
	assert.Equal(t, "application/pdf", content.MimeType)

	_, err = f.svc.Update(ctx, implementorActor, doc.ID, dto.UpdateDocumentRequest{Content: strRef("inline now")})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, _, err = f.svc.RenderHTML(ctx, staffActor, doc.ID)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	clauses, err := f.svc.Clauses(ctx, staffActor, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, clauses)
}

func TestDocumentServiceUploadRejections(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	binary := []byte{0x4d, 0x5a, 0x90, 0x00, 0x03, 0x00, 0x00, 0x00}
	_, err := f.svc.Upload(ctx, implementorActor, dto.CreateDocumentRequest{Title: "tool"}, DocumentUpload{
		Filename: "tool.pdf", Size: int64(len(binary)), Content: bytes.NewReader(binary),
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation), "sniffed type wins over the extension")

	big := bytes.Repeat([]byte("a"), 2048)
	_, err = f.svc.Upload(ctx, implementorActor, dto.CreateDocumentRequest{Title: "big"}, DocumentUpload{
		Filename: "big.txt", Size: int64(len(big)), Content: bytes.NewReader(big),
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Upload(ctx, implementorActor, dto.CreateDocumentRequest{Title: "empty"}, DocumentUpload{Filename: "empty.txt"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Upload(ctx, staffActor, dto.CreateDocumentRequest{Title: "x"}, DocumentUpload{
		Filename: "x.txt", Size: 1, Content: bytes.NewReader([]byte("x")),
	})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestDocumentServiceInlineRendering(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	content, err := f.svc.FetchContent(ctx, staffActor, "doc-1")
	require.NoError(t, err)
	assert.Nil(t, content.File)
	require.NotNil(t, content.Inline)
	assert.Equal(t, attendancePolicy, *content.Inline)

	_, html, err := f.svc.RenderHTML(ctx, staffActor, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Attendance</h1>")
	assert.Contains(t, html, "<p>Attendance is mandatory.</p>")

	_, pdf, err := f.svc.RenderPDF(ctx, staffActor, "doc-1")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))

	clauses, err := f.svc.Clauses(ctx, staffActor, "doc-1")
	require.NoError(t, err)
	require.Len(t, clauses, 2)
	assert.Equal(t, "Attendance", clauses[0].Heading)
	assert.Equal(t, "Absences require a note.", clauses[1].Text)
}

func TestDocumentServiceContentLink(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	link, err := f.svc.ContentLink(ctx, staffActor, "doc-1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link.URL, "/api/v1/documents/doc-1/content?token="))

	token := link.URL[strings.Index(link.URL, "token=")+len("token="):]
	content, err := f.svc.FetchContentByLink(ctx, "doc-1", token)
	require.NoError(t, err)
	require.NotNil(t, content.Inline)

	_, err = f.svc.FetchContentByLink(ctx, "doc-b", token)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = f.svc.FetchContentByLink(ctx, "doc-1", token+"0")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.ContentLink(ctx, staffActor, "doc-b")
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}
