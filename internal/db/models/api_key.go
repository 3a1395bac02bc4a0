// Package models defines the database model types for the component request tracker.
// Each type corresponds to a database table and uses struct tags for both JSON serialization and sqlx row scanning.
// Models are pure data types; business logic belongs in the service layer, query logic belongs in the repositories layer.
package models

import "time"

// APIKey represents a plugin API key. Only the SHA-256 hash of the key is stored.
type APIKey struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Name       string     `db:"name" json:"name"`             // e.g. "Dashboard API Key"
	KeyHash    string     `db:"key_hash" json:"-"`            // hex SHA-256 of the full key
	KeyPrefix  string     `db:"key_prefix" json:"key_prefix"` // first 12 chars + "..."
	IsActive   bool       `db:"is_active" json:"is_active"`
	ExpiresAt  *time.Time `db:"expires_at" json:"expires_at"`
	LastUsedAt *time.Time `db:"last_used_at" json:"last_used_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Expired reports whether the key has an expiry in the past relative to now.
func (k *APIKey) Expired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// APIKeyOwner is the result of a successful key lookup: the key joined with its owning user.
type APIKeyOwner struct {
	KeyID  string `db:"key_id"`
	UserID string `db:"user_id"`
	Email  string `db:"email"`
	Name   string `db:"name"`
	Role   Role   `db:"role"`
}
