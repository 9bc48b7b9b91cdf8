package dto

import "github.com/noah-isme/policy-docs-api/internal/models"

// DashboardResponse aggregates what the frontend shows after login.
type DashboardResponse struct {
	User       models.UserInfo   `json:"user"`
	Documents  []models.Document `json:"documents"`
	Actionable []models.Change   `json:"actionable"`
}
