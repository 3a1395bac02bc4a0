package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/component-request-system/crs/internal/auth"
	"github.com/component-request-system/crs/internal/db/models"
)

// Directory maps emails to users
type Directory struct {
	users UserStore
}

// NewDirectory creates a Directory over users
func NewDirectory(users UserStore) *Directory {
	return &Directory{users: users}
}

// GetOrCreateUser returns the user registered under email, creating it on first sight.
// An empty name is derived from the email and an empty role means Requester.
// Existing users are returned as stored: name and role are not merged.
func (d *Directory) GetOrCreateUser(ctx context.Context, email, name string, role models.Role) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("email", "Email is required")
	}
	if role == "" {
		role = models.RoleRequester
	}
	if !role.Valid() {
		return nil, invalid("role", fmt.Sprintf("Invalid role %q", role))
	}
	if strings.TrimSpace(name) == "" {
		name = auth.NameFromEmail(email)
	}

	user, err := d.users.GetOrCreateUser(ctx, &models.User{Email: email, Name: name, Role: role})
	if err != nil {
		return nil, fmt.Errorf("get or create user %s: %w", email, err)
	}
	return user, nil
}
