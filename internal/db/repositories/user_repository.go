// Package repositories implements the PostgreSQL data access layer for the request tracker.
// Each repository type encapsulates all database queries for a domain entity.
// Services never issue SQL directly; all database access goes through this layer, which makes query logic testable in isolation.
// Lookups return (nil, nil) when no row matches.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/component-request-system/crs/internal/db/models"
)

const userColumns = `id, email, name, role, created_at, updated_at`

// UserRepository handles user database operations
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreateUser inserts user unless a row with the same email exists, then returns
// the stored row. Concurrent callers with the same email all observe the single row
// that won the unique index; an existing user's name and role are left untouched.
func (r *UserRepository) GetOrCreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	now := time.Now()
	query := `
		INSERT INTO users (id, email, name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING
	`

	if _, err := r.db.ExecContext(ctx, query,
		uuid.New().String(),
		user.Email,
		user.Name,
		user.Role,
		now,
		now,
	); err != nil {
		return nil, err
	}

	stored, err := r.GetUserByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		// Only possible if the row was deleted between the two statements.
		return nil, sql.ErrNoRows
	}
	return stored, nil
}

// GetUserByEmail retrieves a user by email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user := &models.User{}
	err := r.db.GetContext(ctx, user, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
