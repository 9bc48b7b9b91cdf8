package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/policy-docs-api/internal/models"
	"github.com/noah-isme/policy-docs-api/internal/notify"
	"github.com/noah-isme/policy-docs-api/pkg/database"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
)

type authUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByVerificationToken(ctx context.Context, token string) (*models.User, error)
	FindByResetToken(ctx context.Context, token string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
	MarkEmailVerified(ctx context.Context, id, token string, at time.Time) error
	SetPasswordResetToken(ctx context.Context, id, token string, expires, at time.Time) error
	ResetPassword(ctx context.Context, id, token, passwordHash string, at time.Time) error
}

type institutionReader interface {
	FindByID(ctx context.Context, id string) (*models.Institution, error)
	List(ctx context.Context) ([]models.Institution, error)
}

// AuthConfig defines configuration for credential flows.
type AuthConfig struct {
	PasswordResetTTL time.Duration
	BcryptCost       int
	PublicBaseURL    string
}

// AuthService implements the credential store.
type AuthService struct {
	users        authUserRepository
	institutions institutionReader
	audit        auditLogger
	tokens       *TokenService
	notifier     notify.Notifier
	validator    *validator.Validate
	logger       *zap.Logger
	config       AuthConfig
	now          func() time.Time
	compare      func(hash, password []byte) error
	// dummyHash is compared on unknown usernames so lookups cost one bcrypt round either way.
	dummyHash []byte
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, institutions institutionReader, audit auditLogger, tokens *TokenService,
	notifier notify.Notifier, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if notifier == nil {
		notifier = notify.Nop
	}
	if config.PasswordResetTTL <= 0 {
		config.PasswordResetTTL = time.Hour
	}
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config.BcryptCost = bcrypt.DefaultCost
	}
	config.PublicBaseURL = strings.TrimRight(config.PublicBaseURL, "/")
	dummyHash, err := bcrypt.GenerateFromPassword([]byte("policy-docs-unknown-user"), config.BcryptCost)
	if err != nil {
		logger.Warn("failed to prepare dummy password hash", zap.Error(err))
	}
	return &AuthService{
		users:        users,
		institutions: institutions,
		audit:        audit,
		tokens:       tokens,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		config:       config,
		now:          time.Now,
		compare:      bcrypt.CompareHashAndPassword,
		dummyHash:    dummyHash,
	}
}

// Register creates an unverified account and mails a verification link.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.InstitutionID = strings.TrimSpace(req.InstitutionID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	role := req.Role
	if role == "" {
		role = models.RoleStudent
	}

	if _, err := s.institutions.FindByID(ctx, req.InstitutionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown institution")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
	}

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing users")
	}
	if exists {
		return nil, appErrors.ErrDuplicateUser
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	token, err := randomToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create verification token")
	}

	user := &models.User{
		Username:               req.Username,
		Email:                  req.Email,
		PasswordHash:           string(hash),
		FirstName:              strings.TrimSpace(req.FirstName),
		LastName:               strings.TrimSpace(req.LastName),
		Role:                   role,
		InstitutionID:          req.InstitutionID,
		EmailVerificationToken: &token,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.ErrDuplicateUser
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	notify.Emit(ctx, s.notifier, s.logger, notify.Event{
		Kind:          notify.KindVerifyEmail,
		InstitutionID: user.InstitutionID,
		To:            []string{user.Email},
		Subject:       "Verify your email",
		Body: "Welcome " + user.Username + ",\n\nConfirm your email address to activate your account:\n" +
			s.link("/verify-email", token),
	})

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:        &user.ID,
		InstitutionID: &user.InstitutionID,
		Action:        models.AuditActionRegister,
		Resource:      "user",
		ResourceID:    &user.ID,
		NewValues:     auditJSON(map[string]string{"username": user.Username, "role": string(user.Role)}),
		IPAddress:     req.IP,
		UserAgent:     req.UserAgent,
	})

	info := user.Info()
	return &info, nil
}

// VerifyEmail consumes a verification token.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return appErrors.Clone(appErrors.ErrInvalidEmailToken, "token required")
	}
	user, err := s.users.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrInvalidEmailToken
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID, token, s.now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrInvalidEmailToken
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify email")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:        &user.ID,
		InstitutionID: &user.InstitutionID,
		Action:        models.AuditActionEmailVerify,
		Resource:      "user",
		ResourceID:    &user.ID,
	})
	return nil
}

// Login authenticates a verified user of the given institution and issues a token.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.InstitutionID = strings.TrimSpace(req.InstitutionID)
	if req.InstitutionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institution id required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			_ = s.compare(s.dummyHash, []byte(req.Password))
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if err := s.compare([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}
	if user.InstitutionID != req.InstitutionID {
		return nil, appErrors.ErrInvalidCredentials
	}
	if !user.EmailVerified {
		return nil, appErrors.ErrEmailNotVerified
	}

	token, _, err := s.tokens.Issue(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:        &user.ID,
		InstitutionID: &user.InstitutionID,
		Action:        models.AuditActionLogin,
		Resource:      "auth",
		ResourceID:    &user.ID,
		NewValues:     []byte(`{"status":"success"}`),
		IPAddress:     req.IP,
		UserAgent:     req.UserAgent,
	})

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: int64(s.tokens.Expiry().Seconds()),
		User:      user.Info(),
		IssuedAt:  s.now().UTC(),
	}, nil
}

// RequestPasswordReset issues a reset token and mails a reset link.
func (s *AuthService) RequestPasswordReset(ctx context.Context, req models.PasswordResetRequest) error {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid password reset payload")
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrUserNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	token, err := randomToken()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reset token")
	}
	now := s.now().UTC()
	if err := s.users.SetPasswordResetToken(ctx, user.ID, token, now.Add(s.config.PasswordResetTTL), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset token")
	}

	notify.Emit(ctx, s.notifier, s.logger, notify.Event{
		Kind:          notify.KindPasswordReset,
		InstitutionID: user.InstitutionID,
		To:            []string{user.Email},
		Subject:       "Reset your password",
		Body: "A password reset was requested for " + user.Username + ".\n\nThe link below expires in " +
			s.config.PasswordResetTTL.String() + ":\n" + s.link("/reset-password", token),
	})
	return nil
}

// ResetPassword sets a new password when the reset token exists and has not expired.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		return appErrors.ErrInvalidOrExpiredToken
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}

	user, err := s.users.FindByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrInvalidOrExpiredToken
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	now := s.now().UTC()
	if user.PasswordResetExpires == nil || !now.Before(*user.PasswordResetExpires) {
		return appErrors.ErrInvalidOrExpiredToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.BcryptCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.ResetPassword(ctx, user.ID, req.Token, string(hash), now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrInvalidOrExpiredToken
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	recordAudit(ctx, s.audit, s.logger, &models.AuditLog{
		UserID:        &user.ID,
		InstitutionID: &user.InstitutionID,
		Action:        models.AuditActionPasswordReset,
		Resource:      "auth",
		ResourceID:    &user.ID,
	})
	return nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(token string) (*models.JWTClaims, error) {
	return s.tokens.ValidateToken(token)
}

// Me returns the profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, actor models.Actor) (*models.UserInfo, error) {
	user, err := s.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if user.InstitutionID != actor.InstitutionID {
		return nil, appErrors.ErrUserNotFound
	}
	return user, nil
}

// GetUser returns a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*models.UserInfo, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	info := user.Info()
	return &info, nil
}

// ListUsers returns the users of one institution, optionally filtered by role.
func (s *AuthService) ListUsers(ctx context.Context, institutionID string, roles ...models.UserRole) ([]models.UserInfo, error) {
	if institutionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "institution id required")
	}
	for _, role := range roles {
		if !role.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role "+string(role))
		}
	}
	users, err := s.users.List(ctx, models.UserFilter{InstitutionID: institutionID, Roles: roles})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	out := make([]models.UserInfo, len(users))
	for i := range users {
		out[i] = users[i].Info()
	}
	return out, nil
}

// ListInstitutions returns every tenant.
func (s *AuthService) ListInstitutions(ctx context.Context) ([]models.Institution, error) {
	institutions, err := s.institutions.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list institutions")
	}
	if institutions == nil {
		institutions = []models.Institution{}
	}
	return institutions, nil
}

func (s *AuthService) link(path, token string) string {
	return s.config.PublicBaseURL + path + "?token=" + url.QueryEscape(token)
}

func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
