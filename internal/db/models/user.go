// Package models - user.go defines the User model. Users are keyed by email and
// created on first sight; the role is fixed at creation.
package models

import "time"

// User represents a person who submits or handles component requests
type User struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Role      Role      `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
