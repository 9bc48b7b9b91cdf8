package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/policy-docs-api/internal/models"
	appErrors "github.com/noah-isme/policy-docs-api/pkg/errors"
	"github.com/noah-isme/policy-docs-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error)
	VerifyEmail(ctx context.Context, token string) error
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	RequestPasswordReset(ctx context.Context, req models.PasswordResetRequest) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	ValidateToken(token string) (*models.JWTClaims, error)
	Me(ctx context.Context, actor models.Actor) (*models.UserInfo, error)
	GetUser(ctx context.Context, id string) (*models.UserInfo, error)
	ListUsers(ctx context.Context, institutionID string, roles ...models.UserRole) ([]models.UserInfo, error)
	ListInstitutions(ctx context.Context) ([]models.Institution, error)
}

// AuthHandler wires HTTP endpoints to the credential store.
type AuthHandler struct {
	service authService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{service: svc}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate by username, password and institution
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Register godoc
// @Summary Register account
// @Description Creates an unverified account and mails a verification link
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	user, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, user)
}

// VerifyEmail godoc
// @Summary Verify email address
// @Tags Authentication
// @Produce json
// @Param token query string true "Verification token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /verify-email [get]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	if err := h.service.VerifyEmail(c.Request.Context(), token); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "email verified")
}

// RequestPasswordReset godoc
// @Summary Request password reset
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.PasswordResetRequest true "Account email"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /password-reset-request [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req models.PasswordResetRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	if err := h.service.RequestPasswordReset(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "password reset link sent")
}

// ResetPassword godoc
// @Summary Reset password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "Reset token and new password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.Message(c, http.StatusOK, "password updated")
}

// Validate godoc
// @Summary Validate access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.ValidateTokenRequest true "Token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /validate [post]
func (h *AuthHandler) Validate(c *gin.Context) {
	var req models.ValidateTokenRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}
	claims, err := h.service.ValidateToken(strings.TrimSpace(req.Token))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInvalidToken, "invalid or expired token"))
		return
	}
	actor := claims.Actor()
	response.JSON(c, http.StatusOK, models.ValidateTokenResponse{Valid: true, User: &actor}, nil)
}

// Me godoc
// @Summary Current user
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	user, err := h.service.Me(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// Users godoc
// @Summary Users of the caller's institution
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /users [get]
func (h *AuthHandler) Users(c *gin.Context) {
	actor, ok := actorOrAbort(c)
	if !ok {
		return
	}
	users, err := h.service.ListUsers(c.Request.Context(), actor.InstitutionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// Institutions godoc
// @Summary List institutions
// @Tags Institutions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /institutions [get]
func (h *AuthHandler) Institutions(c *gin.Context) {
	institutions, err := h.service.ListInstitutions(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, institutions, nil)
}

// InternalUsers lists users for other services. Requires the service token.
func (h *AuthHandler) InternalUsers(c *gin.Context) {
	institutionID := strings.TrimSpace(c.Query("institutionId"))
	if institutionID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "institutionId required"))
		return
	}
	var roles []models.UserRole
	for _, r := range splitList(c.Query("roles")) {
		roles = append(roles, models.UserRole(strings.ToUpper(r)))
	}
	users, err := h.service.ListUsers(c.Request.Context(), institutionID, roles...)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, users, nil)
}

// InternalUser returns one user for other services.
func (h *AuthHandler) InternalUser(c *gin.Context) {
	user, err := h.service.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}
