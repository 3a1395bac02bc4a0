package services

import (
	"context"
	"time"

	"github.com/component-request-system/crs/internal/db/models"
)

// Lookups follow the repository convention: (nil, nil) means "no such row".

// UserStore persists users
type UserStore interface {
	GetOrCreateUser(ctx context.Context, user *models.User) (*models.User, error)
}

// APIKeyStore persists API keys
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, apiKey *models.APIKey) error
	GetActiveKeyOwner(ctx context.Context, keyHash string, now time.Time) (*models.APIKeyOwner, error)
	GetAPIKeyByID(ctx context.Context, keyID string) (*models.APIKey, error)
	UpdateLastUsed(ctx context.Context, keyID string) error
	DeactivateAPIKey(ctx context.Context, keyID string) (bool, error)
}

// RequestStore persists component requests
type RequestStore interface {
	CreateRequest(ctx context.Context, req *models.ComponentRequest) error
	GetRequest(ctx context.Context, id string) (*models.ComponentRequest, error)
	ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.ComponentRequest, error)
	UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus, denialReason string) (*models.ComponentRequest, error)
	UpdateRequestFields(ctx context.Context, id string, patch models.RequestPatch) (*models.ComponentRequest, error)
	DeleteRequest(ctx context.Context, id string) (bool, error)
}

// SequenceAllocator hands out strictly increasing request numbers. Implementations
// must never return the same value twice, even to concurrent callers.
type SequenceAllocator interface {
	NextRequestNumber(ctx context.Context) (int64, error)
}
