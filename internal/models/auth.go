package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user within an institution.
type LoginRequest struct {
	Username      string `json:"username" validate:"required"`
	Password      string `json:"password" validate:"required"`
	InstitutionID string `json:"institutionId" validate:"required"`
	IP            string `json:"-"`
	UserAgent     string `json:"-"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresIn int64     `json:"expiresIn"`
	User      UserInfo  `json:"user"`
	IssuedAt  time.Time `json:"issuedAt"`
}

// RegisterRequest is the self-registration payload.
type RegisterRequest struct {
	Username      string   `json:"username" validate:"required,min=3,max=50"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,min=8"`
	FirstName     string   `json:"firstName" validate:"max=100"`
	LastName      string   `json:"lastName" validate:"max=100"`
	InstitutionID string   `json:"institutionId" validate:"required"`
	Role          UserRole `json:"role" validate:"omitempty,oneof=STAFF STUDENT"`
	IP            string   `json:"-"`
	UserAgent     string   `json:"-"`
}

// PasswordResetRequest starts the reset flow.
type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ValidateTokenRequest asks the credential store to check a token.
type ValidateTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// ValidateTokenResponse reports the decoded identity of a valid token.
type ValidateTokenResponse struct {
	Valid bool   `json:"valid"`
	User  *Actor `json:"user,omitempty"`
}

// UserInfo describes a user in responses.
type UserInfo struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FirstName     string   `json:"firstName"`
	LastName      string   `json:"lastName"`
	Role          UserRole `json:"role"`
	InstitutionID string   `json:"institutionId"`
	EmailVerified bool     `json:"emailVerified"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID        string   `json:"user_id"`
	Role          UserRole `json:"role"`
	InstitutionID string   `json:"institution_id"`
	jwt.RegisteredClaims
}

// Actor is the authenticated identity every tenant-scoped operation runs as.
type Actor struct {
	UserID        string     `json:"userId"`
	Role          UserRole   `json:"role"`
	InstitutionID string     `json:"institutionId"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Actor extracts the identity carried by the claims.
func (c *JWTClaims) Actor() Actor {
	actor := Actor{UserID: c.UserID, Role: c.Role, InstitutionID: c.InstitutionID}
	if c.ExpiresAt != nil {
		exp := c.ExpiresAt.Time
		actor.ExpiresAt = &exp
	}
	return actor
}
