// api_key_repository.go implements APIKeyRepository, providing database queries for API key
// creation, hash lookup joined to the owning user, revocation and expiry sweeps.
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

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, is_active, expires_at, last_used_at, created_at`

// APIKeyRepository handles API key database operations
type APIKeyRepository struct {
	db *sqlx.DB
}

// NewAPIKeyRepository creates a new APIKeyRepository
func NewAPIKeyRepository(db *sqlx.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

// CreateAPIKey creates a new API key. ID and CreatedAt are assigned here.
func (r *APIKeyRepository) CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error {
	apiKey.ID = uuid.New().String()
	apiKey.CreatedAt = time.Now()

	query := `
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, is_active, expires_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		apiKey.ID,
		apiKey.UserID,
		apiKey.Name,
		apiKey.KeyHash,
		apiKey.KeyPrefix,
		apiKey.IsActive,
		apiKey.ExpiresAt,
		apiKey.LastUsedAt,
		apiKey.CreatedAt,
	)

	return err
}

// GetActiveKeyOwner looks up an active, unexpired key by hash and returns it joined to its owner
func (r *APIKeyRepository) GetActiveKeyOwner(ctx context.Context, keyHash string, now time.Time) (*models.APIKeyOwner, error) {
	query := `
		SELECT ak.id AS key_id, u.id AS user_id, u.email, u.name, u.role
		FROM api_keys ak
		JOIN users u ON ak.user_id = u.id
		WHERE ak.key_hash = $1
		  AND ak.is_active
		  AND (ak.expires_at IS NULL OR ak.expires_at > $2)
	`

	owner := &models.APIKeyOwner{}
	err := r.db.GetContext(ctx, owner, query, keyHash, now)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// GetAPIKeyByID retrieves an API key by ID
func (r *APIKeyRepository) GetAPIKeyByID(ctx context.Context, keyID string) (*models.APIKey, error) {
	apiKey := &models.APIKey{}
	err := r.db.GetContext(ctx, apiKey, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, keyID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return apiKey, nil
}

// UpdateLastUsed updates the last_used_at timestamp for an API key
func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, keyID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, time.Now())
	return err
}

// DeactivateAPIKey revokes a key by clearing is_active. The row is kept.
// Reports false when no key has the given ID.
func (r *APIKeyRepository) DeactivateAPIKey(ctx context.Context, keyID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE api_keys SET is_active = FALSE WHERE id = $1`, keyID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeactivateExpiredKeys revokes every active key whose expiry is before now
// and returns the number of keys affected
func (r *APIKeyRepository) DeactivateExpiredKeys(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE api_keys
		SET is_active = FALSE
		WHERE is_active AND expires_at IS NOT NULL AND expires_at <= $1
	`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
