// Package models - audit_log.go defines the AuditLog model for recording mutations
// on requests, API keys and users, capturing actor, action, resource, client IP and metadata.
package models

import "time"

// AuditLog represents an audit log entry for tracking user actions
type AuditLog struct {
	ID           string
	UserID       *string                // Nullable for anonymous dashboard actions
	Action       string                 // "request.status_updated", "api_key.issued", "request.created"
	ResourceType *string                // "component_request", "api_key", "user"
	ResourceID   *string                // e.g. CR0042
	Metadata     map[string]interface{} // JSONB: additional context
	IPAddress    *string                // Client IP
	CreatedAt    time.Time
}
