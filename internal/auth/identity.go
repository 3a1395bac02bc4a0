package auth

import "github.com/component-request-system/crs/internal/db/models"

// Identity is the authenticated caller resolved from a valid API key
type Identity struct {
	UserID   string      `json:"user_id"`
	Email    string      `json:"email"`
	Name     string      `json:"name"`
	Role     models.Role `json:"role"`
	APIKeyID string      `json:"api_key_id"`
}
