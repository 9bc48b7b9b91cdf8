package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/policy-docs-api/internal/dto"
	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

type gatewayAuthClient interface {
	Me(ctx context.Context, bearer string) (*models.UserInfo, error)
	Users(ctx context.Context, bearer string) ([]models.UserInfo, error)
}

type gatewayDocumentClient interface {
	Published(ctx context.Context, bearer string) ([]models.Document, error)
	Changes(ctx context.Context, bearer string, statuses ...models.ChangeStatus) ([]models.Change, error)
	ProposeChange(ctx context.Context, bearer, documentID string, req dto.ProposeChangeRequest) (*models.Change, error)
}

// GatewayService aggregates the auth and document services for the frontend.
type GatewayService struct {
	auth      gatewayAuthClient
	documents gatewayDocumentClient
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGatewayService constructs a GatewayService.
func NewGatewayService(auth gatewayAuthClient, documents gatewayDocumentClient, validate *validator.Validate, logger *zap.Logger) *GatewayService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GatewayService{auth: auth, documents: documents, validator: validate, logger: logger}
}

// Users proxies the tenant user list. Any upstream failure is a 500.
func (s *GatewayService) Users(ctx context.Context, bearer string) ([]models.UserInfo, error) {
	users, err := s.auth.Users(ctx, bearer)
	if err != nil {
		s.logger.Warn("users upstream failed", zap.Error(err))
		return nil, failClosed(err, "users upstream failed")
	}
	return users, nil
}

// Documents proxies the published document list. Any upstream failure is a 500.
func (s *GatewayService) Documents(ctx context.Context, bearer string) ([]models.Document, error) {
	docs, err := s.documents.Published(ctx, bearer)
	if err != nil {
		s.logger.Warn("documents upstream failed", zap.Error(err))
		return nil, failClosed(err, "documents upstream failed")
	}
	return docs, nil
}

// Dashboard fetches the user, published documents and actionable changes in
// parallel. Any upstream failure fails the whole response.
func (s *GatewayService) Dashboard(ctx context.Context, actor models.Actor, bearer string) (*dto.DashboardResponse, error) {
	var (
		user       *models.UserInfo
		documents  []models.Document
		actionable = []models.Change{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := s.auth.Me(gctx, bearer)
		if err != nil {
			return err
		}
		user = u
		return nil
	})
	g.Go(func() error {
		docs, err := s.documents.Published(gctx, bearer)
		if err != nil {
			return err
		}
		documents = docs
		return nil
	})
	if status, ok := actionableStatus(actor.Role); ok {
		g.Go(func() error {
			changes, err := s.documents.Changes(gctx, bearer, status)
			if err != nil {
				return err
			}
			actionable = changes
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard upstream failed", zap.String("user_id", actor.UserID), zap.Error(err))
		return nil, failClosed(err, "dashboard upstream failed")
	}
	if user == nil {
		return nil, appErrors.Clone(appErrors.ErrUpstream, "auth-service returned no user")
	}
	if documents == nil {
		documents = []models.Document{}
	}
	return &dto.DashboardResponse{User: *user, Documents: documents, Actionable: actionable}, nil
}

// ProposeRevision accepts the legacy revision-request shape and files it as a change.
// Upstream client errors pass through so callers see validation and permission failures.
func (s *GatewayService) ProposeRevision(ctx context.Context, bearer string, payload dto.RevisionRequestPayload) (*models.Change, error) {
	payload.DocumentID = strings.TrimSpace(payload.DocumentID)
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revision request")
	}
	return s.documents.ProposeChange(ctx, bearer, payload.DocumentID, payload.ProposeChange())
}

// failClosed turns any upstream failure into UPSTREAM_ERROR.
func failClosed(err error, message string) error {
	if appErrors.Is(err, appErrors.ErrUpstream) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, message)
}

// actionableStatus is the change status a role acts on next.
func actionableStatus(role models.UserRole) (models.ChangeStatus, bool) {
	switch role {
	case models.RoleHOD:
		return models.ChangeStatusPending, true
	case models.RoleImplementor:
		return models.ChangeStatusApproved, true
	}
	return "", false
}
