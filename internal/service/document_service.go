package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/internal/authz"
	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/markup"
	"github.com/noah-isme/policy-docs-api/pkg/storage"
)

type documentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, institutionID, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
}

type documentChangeLister interface {
	List(ctx context.Context, filter models.ChangeFilter) ([]models.Change, error)
}

type documentFileStorage interface {
	SaveStream(name string, r io.Reader) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type contentLinkSigner interface {
	Generate(documentID, institutionID string) (string, time.Time, error)
	Parse(token string) (*storage.LinkClaims, error)
}

type documentCache interface {
	TenantKey(institutionID string, parts ...string) string
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidateTenant(ctx context.Context, institutionID string) error
}

// DocumentUpload carries an uploaded binary and its client metadata.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.ReadSeeker
}

// DocumentContent is either an open file or inline text.
type DocumentContent struct {
	Document *models.Document
	File     *os.File
	Filename string
	MimeType string
	Size     int64
	Inline   *string
}

// DocumentServiceConfig holds upload limits and link settings.
type DocumentServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
	CacheTTL     time.Duration
}

// DocumentService is the tenant-scoped document registry.
type DocumentService struct {
	repo      documentStore
	changes   documentChangeLister
	storage   documentFileStorage
	signer    contentLinkSigner
	cache     documentCache
	exporter  *ExportService
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	cfg       DocumentServiceConfig
	mimeSet   map[string]struct{}
	now       func() time.Time
}

// NewDocumentService constructs the registry with defaults.
func NewDocumentService(repo documentStore, changes documentChangeLister, fileStorage documentFileStorage, signer contentLinkSigner,
	cache documentCache, exporter *ExportService, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg DocumentServiceConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if exporter == nil {
		exporter = NewExportService(logger, nil, nil)
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{
			"application/pdf",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"text/plain",
			"text/markdown",
		}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DocumentService{
		repo:      repo,
		changes:   changes,
		storage:   fileStorage,
		signer:    signer,
		cache:     cache,
		exporter:  exporter,
		audit:     audit,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		mimeSet:   mimeSet,
		now:       time.Now,
	}
}

// List returns the institution's documents. Actors that may read changes get them attached.
func (s *DocumentService) List(ctx context.Context, actor models.Actor, query dto.DocumentFilterQuery) ([]models.Document, error) {
	if err := authz.Require(actor, authz.DocumentList); err != nil {
		return nil, err
	}
	filter := models.DocumentFilter{InstitutionID: actor.InstitutionID, Category: strings.TrimSpace(query.Category)}
	if query.Status != "" {
		filter.Status = models.DocumentStatus(strings.ToUpper(query.Status))
		if !filter.Status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be DRAFT or PUBLISHED")
		}
	}
	docs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	if err := s.attachChanges(ctx, actor, docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// ListPublished returns published documents, cached per institution. The
// boolean reports a cache hit.
func (s *DocumentService) ListPublished(ctx context.Context, actor models.Actor) ([]models.Document, bool, error) {
	if err := authz.Require(actor, authz.DocumentList); err != nil {
		return nil, false, err
	}
	var key string
	if s.cache != nil {
		key = s.cache.TenantKey(actor.InstitutionID, "documents", "published")
		var cached []models.Document
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return cached, true, nil
		}
	}
	docs, err := s.repo.List(ctx, models.DocumentFilter{InstitutionID: actor.InstitutionID, Status: models.DocumentStatusPublished})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list published documents")
	}
	if docs == nil {
		docs = []models.Document{}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, docs, s.cfg.CacheTTL)
	}
	return docs, false, nil
}

// Get returns one document of the actor's institution.
func (s *DocumentService) Get(ctx context.Context, actor models.Actor, id string) (*models.Document, error) {
	if err := authz.Require(actor, authz.DocumentRead); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, actor.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	docs := []models.Document{*doc}
	if err := s.attachChanges(ctx, actor, docs); err != nil {
		return nil, err
	}
	return &docs[0], nil
}

// Create stores a document with inline content as DRAFT unless a status is given.
func (s *DocumentService) Create(ctx context.Context, actor models.Actor, req dto.CreateDocumentRequest) (*models.Document, error) {
	if err := authz.Require(actor, authz.DocumentCreate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
	}
	if req.Content == nil || strings.TrimSpace(*req.Content) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "content is required")
	}
	doc, err := s.newDocument(actor, req)
	if err != nil {
		return nil, err
	}
	content := *req.Content
	doc.Content = &content

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.afterWrite(ctx, actor, doc, models.AuditActionCreate, nil)
	return doc, nil
}

// Upload stores a binary document after checking its size and detected MIME type.
func (s *DocumentService) Upload(ctx context.Context, actor models.Actor, meta dto.CreateDocumentRequest, upload DocumentUpload) (*models.Document, error) {
	if err := authz.Require(actor, authz.DocumentCreate); err != nil {
		return nil, err
	}
	if s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document storage unavailable")
	}
	if err := s.validator.Struct(meta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document metadata")
	}
	if upload.Content == nil || upload.Size <= 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}
	mimeType, err := s.detectMime(upload)
	if err != nil {
		return nil, err
	}
	if _, allowed := s.mimeSet[mimeType]; !allowed {
		return nil, appErrors.Clone(appErrors.ErrValidation, "mime type not allowed: "+mimeType)
	}
	if strings.TrimSpace(meta.Title) == "" {
		base := filepath.Base(upload.Filename)
		meta.Title = strings.TrimSuffix(base, filepath.Ext(base))
		if strings.TrimSpace(meta.Title) == "" || meta.Title == "." {
			return nil, appErrors.Clone(appErrors.ErrValidation, "title is required")
		}
	}
	doc, err := s.newDocument(actor, meta)
	if err != nil {
		return nil, err
	}

	name := filepath.Join(sanitizeSegment(actor.InstitutionID), uuid.NewString()+extensionFor(mimeType))
	path, err := s.storage.SaveStream(name, upload.Content)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document file")
	}
	size := upload.Size
	doc.FilePath = &path
	doc.MimeType = &mimeType
	doc.SizeBytes = &size

	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.storage.Delete(path); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", path), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.afterWrite(ctx, actor, doc, models.AuditActionCreate, nil)
	return doc, nil
}

// Update changes document fields. Content of a file-backed document cannot be edited inline.
func (s *DocumentService) Update(ctx context.Context, actor models.Actor, id string, req dto.UpdateDocumentRequest) (*models.Document, error) {
	if err := authz.Require(actor, authz.DocumentUpdate); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	doc, err := s.load(ctx, actor.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	before := *doc

	if req.Content != nil {
		if doc.HasFile() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "content of a file-backed document cannot be edited")
		}
		content := *req.Content
		doc.Content = &content
	}
	if req.Status != nil {
		status := models.DocumentStatus(strings.ToUpper(string(*req.Status)))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be DRAFT or PUBLISHED")
		}
		doc.Status = status
	}
	if req.Title != nil {
		doc.Title = strings.TrimSpace(*req.Title)
	}
	if req.Version != nil {
		doc.Version = strings.TrimSpace(*req.Version)
	}
	if req.Revision != nil {
		doc.Revision = strings.TrimSpace(*req.Revision)
	}
	if req.Category != nil {
		doc.Category = strings.TrimSpace(*req.Category)
	}
	doc.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	s.afterWrite(ctx, actor, doc, models.AuditActionUpdate, &before)
	return doc, nil
}

// FetchContent opens the stored file or returns the inline text. Callers close File.
func (s *DocumentService) FetchContent(ctx context.Context, actor models.Actor, id string) (*DocumentContent, error) {
	if err := authz.Require(actor, authz.DocumentRead); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, actor.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	return s.open(doc)
}

// FetchContentByLink serves content to holders of a signed content link.
func (s *DocumentService) FetchContentByLink(ctx context.Context, id, token string) (*DocumentContent, error) {
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "content signer unavailable")
	}
	claims, err := s.signer.Parse(token)
	if err != nil || claims.DocumentID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired content link")
	}
	doc, err := s.load(ctx, claims.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	return s.open(doc)
}

// ContentLink returns a short-lived URL for the document content.
func (s *DocumentService) ContentLink(ctx context.Context, actor models.Actor, id string) (*dto.ContentLinkResponse, error) {
	if err := authz.Require(actor, authz.DocumentRead); err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "content signer unavailable")
	}
	doc, err := s.load(ctx, actor.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(doc.ID, doc.InstitutionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign content link")
	}
	link := fmt.Sprintf("%s/documents/%s/content?token=%s",
		strings.TrimRight(s.cfg.APIPrefix, "/"), url.PathEscape(doc.ID), url.QueryEscape(token))
	return &dto.ContentLinkResponse{URL: link, ExpiresAt: expiresAt}, nil
}

// RenderHTML renders inline content as HTML.
func (s *DocumentService) RenderHTML(ctx context.Context, actor models.Actor, id string) (*models.Document, string, error) {
	doc, err := s.inlineDocument(ctx, actor, id)
	if err != nil {
		return nil, "", err
	}
	return doc, markup.RenderHTML(*doc.Content), nil
}

// RenderPDF prints inline content as a PDF.
func (s *DocumentService) RenderPDF(ctx context.Context, actor models.Actor, id string) (*models.Document, []byte, error) {
	doc, err := s.inlineDocument(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.exporter.DocumentPDF(doc)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document")
	}
	return doc, data, nil
}

// Clauses lists the addressable clauses of inline content. File-backed documents have none.
func (s *DocumentService) Clauses(ctx context.Context, actor models.Actor, id string) ([]markup.Clause, error) {
	if err := authz.Require(actor, authz.DocumentRead); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, actor.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	if doc.Content == nil {
		return []markup.Clause{}, nil
	}
	return markup.Clauses(*doc.Content), nil
}

func (s *DocumentService) load(ctx context.Context, institutionID, id string) (*models.Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document id required")
	}
	doc, err := s.repo.GetByID(ctx, institutionID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) inlineDocument(ctx context.Context, actor models.Actor, id string) (*models.Document, error) {
	if err := authz.Require(actor, authz.DocumentRead); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, actor.InstitutionID, id)
	if err != nil {
		return nil, err
	}
	if doc.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document has no inline content")
	}
	return doc, nil
}

func (s *DocumentService) open(doc *models.Document) (*DocumentContent, error) {
	if !doc.HasFile() {
		content := ""
		if doc.Content != nil {
			content = *doc.Content
		}
		return &DocumentContent{Document: doc, Inline: &content}, nil
	}
	if s.storage == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "document storage unavailable")
	}
	file, err := s.storage.Open(*doc.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document file")
	}
	mimeType := "application/octet-stream"
	if doc.MimeType != nil && *doc.MimeType != "" {
		mimeType = *doc.MimeType
	}
	ext := strings.TrimPrefix(filepath.Ext(*doc.FilePath), ".")
	if ext == "" {
		ext = "bin"
	}
	return &DocumentContent{
		Document: doc,
		File:     file,
		Filename: Filename(doc.Title, ext),
		MimeType: mimeType,
		Size:     info.Size(),
	}, nil
}

func (s *DocumentService) newDocument(actor models.Actor, req dto.CreateDocumentRequest) (*models.Document, error) {
	status := models.DocumentStatusDraft
	if req.Status != "" {
		status = models.DocumentStatus(strings.ToUpper(string(req.Status)))
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be DRAFT or PUBLISHED")
		}
	}
	return &models.Document{
		Title:         strings.TrimSpace(req.Title),
		Version:       orDefault(req.Version, models.DefaultDocumentVersion),
		Revision:      orDefault(req.Revision, models.DefaultDocumentRevision),
		Category:      orDefault(req.Category, models.DefaultDocumentCategory),
		Status:        status,
		InstitutionID: actor.InstitutionID,
		CreatedByID:   actor.UserID,
	}, nil
}

func (s *DocumentService) attachChanges(ctx context.Context, actor models.Actor, docs []models.Document) error {
	if s.changes == nil || len(docs) == 0 || !authz.Allowed(actor.Role, authz.ChangeList) {
		return nil
	}
	ids := make([]string, len(docs))
	for i := range docs {
		ids[i] = docs[i].ID
	}
	changes, err := s.changes.List(ctx, models.ChangeFilter{InstitutionID: actor.InstitutionID, DocumentIDs: ids})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document changes")
	}
	byDoc := make(map[string][]models.Change, len(docs))
	for _, c := range changes {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}
	for i := range docs {
		docs[i].Changes = byDoc[docs[i].ID]
		if docs[i].Changes == nil {
			docs[i].Changes = []models.Change{}
		}
	}
	return nil
}

func (s *DocumentService) afterWrite(ctx context.Context, actor models.Actor, doc *models.Document, action string, before *models.Document) {
	if s.cache != nil {
		_ = s.cache.InvalidateTenant(ctx, doc.InstitutionID)
	}
	entry := &models.AuditLog{
		UserID:        &actor.UserID,
		InstitutionID: &doc.InstitutionID,
		Action:        action,
		Resource:      "document",
		ResourceID:    &doc.ID,
		NewValues:     auditJSON(documentAuditView(doc)),
		IPAddress:     "system",
		UserAgent:     "document-service",
	}
	if before != nil {
		entry.OldValues = auditJSON(documentAuditView(before))
	}
	recordAudit(ctx, s.audit, s.logger, entry)
}

func documentAuditView(doc *models.Document) map[string]string {
	return map[string]string{
		"title":    doc.Title,
		"version":  doc.Version,
		"revision": doc.Revision,
		"status":   string(doc.Status),
		"category": doc.Category,
	}
}

func (s *DocumentService) detectMime(upload DocumentUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	detected := strings.ToLower(strings.TrimSpace(strings.Split(http.DetectContentType(header[:n]), ";")[0]))
	switch detected {
	case "application/zip":
		// docx is a zip container
		if strings.EqualFold(filepath.Ext(upload.Filename), ".docx") {
			return "application/vnd.openxmlformats-officedocument.wordprocessingml.document", nil
		}
	case "text/plain":
		ext := strings.ToLower(filepath.Ext(upload.Filename))
		if ext == ".md" || ext == ".markdown" {
			return "text/markdown", nil
		}
	}
	return detected, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "application/pdf":
		return ".pdf"
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return ".docx"
	case "text/markdown":
		return ".md"
	case "text/plain":
		return ".txt"
	default:
		return ".bin"
	}
}

func sanitizeSegment(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "shared"
	}
	return b.String()
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}
