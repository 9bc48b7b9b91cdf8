package client

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/policy-docs-api/internal/models"
)

// AuthClient talks to the auth service. It also serves as the notification
// recipient directory through the internal user endpoints.
type AuthClient struct {
	base
}

// NewAuthClient constructs an AuthClient.
func NewAuthClient(cfg Config) *AuthClient {
	return &AuthClient{base: newBase("auth-service", cfg)}
}

// Me returns the user behind bearer.
func (c *AuthClient) Me(ctx context.Context, bearer string) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := c.do(ctx, call{method: http.MethodGet, path: "/me", bearer: bearer}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Users lists the users of the bearer's institution.
func (c *AuthClient) Users(ctx context.Context, bearer string) ([]models.UserInfo, error) {
	users := []models.UserInfo{}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/users", bearer: bearer}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// ListUsers lists users of an institution with the given roles.
func (c *AuthClient) ListUsers(ctx context.Context, institutionID string, roles ...models.UserRole) ([]models.UserInfo, error) {
	query := url.Values{}
	query.Set("institutionId", institutionID)
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		query.Set("roles", strings.Join(names, ","))
	}
	users := []models.UserInfo{}
	if err := c.do(ctx, call{method: http.MethodGet, path: "/internal/users?" + query.Encode(), internal: true}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one user by id.
func (c *AuthClient) GetUser(ctx context.Context, id string) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := c.do(ctx, call{method: http.MethodGet, path: "/internal/users/" + url.PathEscape(id), internal: true}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
