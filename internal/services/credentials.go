package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/component-request-system/crs/internal/auth"
	"github.com/component-request-system/crs/internal/db/models"
	"github.com/component-request-system/crs/internal/safego"
	"github.com/component-request-system/crs/internal/telemetry"
)

const (
	// DefaultKeyName labels keys issued from the dashboard
	DefaultKeyName = "Dashboard API Key"

	lastUsedTimeout = 5 * time.Second
)

// IssuedKey is the result of IssueKey. Plaintext is shown to the caller once and never stored.
type IssuedKey struct {
	Plaintext string
	Key       *models.APIKey
	User      *models.User
}

// Credentials issues, validates and revokes API keys
type Credentials struct {
	directory *Directory
	keys      APIKeyStore

	// spawn runs the best-effort last_used_at refresh
	spawn func(func())
	now   func() time.Time
}

// NewCredentials creates a Credentials service. Background refreshes are tracked by bg
// so shutdown can wait for them; a nil bg runs them untracked.
func NewCredentials(directory *Directory, keys APIKeyStore, bg *safego.Group) *Credentials {
	spawn := safego.Go
	if bg != nil {
		spawn = bg.Go
	}
	return &Credentials{
		directory: directory,
		keys:      keys,
		spawn:     spawn,
		now:       time.Now,
	}
}

// IssueKey gets or creates the user for email and stores a freshly generated key for it
func (c *Credentials) IssueKey(ctx context.Context, email, name string) (*IssuedKey, error) {
	user, err := c.directory.GetOrCreateUser(ctx, email, name, models.RoleRequester)
	if err != nil {
		return nil, err
	}

	plaintext, err := auth.GenerateAPIKey(user.Email)
	if err != nil {
		return nil, err
	}

	key := &models.APIKey{
		UserID:    user.ID,
		Name:      DefaultKeyName,
		KeyHash:   auth.HashAPIKey(plaintext),
		KeyPrefix: auth.DisplayPrefix(plaintext),
		IsActive:  true,
	}
	if err := c.keys.CreateAPIKey(ctx, key); err != nil {
		return nil, fmt.Errorf("store api key for %s: %w", user.Email, err)
	}

	slog.Info("api key issued", "user_id", user.ID, "key_id", key.ID, "key_prefix", key.KeyPrefix)
	return &IssuedKey{Plaintext: plaintext, Key: key, User: user}, nil
}

// Validate resolves a plaintext key to its owner. Unknown, revoked and expired keys
// yield (nil, nil); only store failures are errors. On success last_used_at is
// refreshed in the background and a failure there is only logged.
func (c *Credentials) Validate(ctx context.Context, plaintext string) (*auth.Identity, error) {
	if plaintext == "" {
		telemetry.APIKeyValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, nil
	}

	owner, err := c.keys.GetActiveKeyOwner(ctx, auth.HashAPIKey(plaintext), c.now())
	if err != nil {
		telemetry.APIKeyValidationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	if owner == nil {
		telemetry.APIKeyValidationsTotal.WithLabelValues("invalid").Inc()
		return nil, nil
	}
	telemetry.APIKeyValidationsTotal.WithLabelValues("valid").Inc()

	keyID := owner.KeyID
	c.spawn(func() {
		touchCtx, cancel := context.WithTimeout(context.Background(), lastUsedTimeout)
		defer cancel()
		if err := c.keys.UpdateLastUsed(touchCtx, keyID); err != nil {
			slog.Warn("failed to update api key last_used_at", "key_id", keyID, "error", err)
		}
	})

	return &auth.Identity{
		UserID:   owner.UserID,
		Email:    owner.Email,
		Name:     owner.Name,
		Role:     owner.Role,
		APIKeyID: owner.KeyID,
	}, nil
}

// Revoke deactivates keyID on behalf of caller. Callers may only revoke their own keys,
// Admins may revoke any key.
func (c *Credentials) Revoke(ctx context.Context, caller *auth.Identity, keyID string) error {
	key, err := c.keys.GetAPIKeyByID(ctx, keyID)
	if err != nil {
		return fmt.Errorf("look up api key %s: %w", keyID, err)
	}
	if key == nil {
		return ErrAPIKeyNotFound
	}
	if caller == nil || (key.UserID != caller.UserID && caller.Role != models.RoleAdmin) {
		return ErrNotKeyOwner
	}

	found, err := c.keys.DeactivateAPIKey(ctx, keyID)
	if err != nil {
		return fmt.Errorf("deactivate api key %s: %w", keyID, err)
	}
	if !found {
		return ErrAPIKeyNotFound
	}

	slog.Info("api key revoked", "key_id", keyID, "by_user_id", caller.UserID)
	return nil
}
