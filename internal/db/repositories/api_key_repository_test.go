package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/component-request-system/crs/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var apiKeyCols = []string{
	"id", "user_id", "name", "key_hash", "key_prefix", "is_active", "expires_at", "last_used_at", "created_at",
}

var apiKeyOwnerCols = []string{"key_id", "user_id", "email", "name", "role"}

func sampleAPIKeyRow() *sqlmock.Rows {
	return sqlmock.NewRows(apiKeyCols).
		AddRow("key-1", "user-1", "Dashboard API Key", "hashedkey", "crs_1a2b3c4d...",
			true, nil, nil, time.Now())
}

func newAPIKeyRepo(t *testing.T) (*APIKeyRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewAPIKeyRepository(db), mock
}

// ---------------------------------------------------------------------------
// CreateAPIKey
// ---------------------------------------------------------------------------

func TestCreateAPIKey_Success(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").
		WithArgs(sqlmock.AnyArg(), "user-1", "Dashboard API Key", "hash", "crs_1a2b3c4d...",
			true, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	key := &models.APIKey{
		UserID:    "user-1",
		Name:      "Dashboard API Key",
		KeyHash:   "hash",
		KeyPrefix: "crs_1a2b3c4d...",
		IsActive:  true,
	}
	if err := repo.CreateAPIKey(context.Background(), key); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.ID == "" {
		t.Error("CreateAPIKey() did not assign an ID")
	}
	if key.CreatedAt.IsZero() {
		t.Error("CreateAPIKey() did not stamp CreatedAt")
	}
	expectationsMet(t, mock)
}

func TestCreateAPIKey_DBError(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("INSERT INTO api_keys").WillReturnError(errDB)

	if err := repo.CreateAPIKey(context.Background(), &models.APIKey{}); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetActiveKeyOwner
// ---------------------------------------------------------------------------

func TestGetActiveKeyOwner_Found(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	now := time.Now()
	mock.ExpectQuery("SELECT.*FROM api_keys ak.*JOIN users u.*WHERE ak.key_hash.*is_active.*expires_at").
		WithArgs("hashedkey", now).
		WillReturnRows(sqlmock.NewRows(apiKeyOwnerCols).
			AddRow("key-1", "user-1", "alice@example.com", "Alice", "Creator"))

	owner, err := repo.GetActiveKeyOwner(context.Background(), "hashedkey", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner == nil {
		t.Fatal("expected owner, got nil")
	}
	if owner.KeyID != "key-1" || owner.UserID != "user-1" || owner.Role != models.RoleCreator {
		t.Errorf("owner = %+v", owner)
	}
}

func TestGetActiveKeyOwner_NotFound(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys ak").
		WillReturnRows(sqlmock.NewRows(apiKeyOwnerCols))

	owner, err := repo.GetActiveKeyOwner(context.Background(), "nope", time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if owner != nil {
		t.Errorf("expected nil owner, got %+v", owner)
	}
}

func TestGetActiveKeyOwner_DBError(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys ak").WillReturnError(errDB)

	if _, err := repo.GetActiveKeyOwner(context.Background(), "h", time.Now()); err == nil {
		t.Error("expected error, got nil")
	}
}

// ---------------------------------------------------------------------------
// GetAPIKeyByID
// ---------------------------------------------------------------------------

func TestGetAPIKeyByID_Found(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys WHERE id").
		WithArgs("key-1").
		WillReturnRows(sampleAPIKeyRow())

	key, err := repo.GetAPIKeyByID(context.Background(), "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key == nil || !key.IsActive || key.UserID != "user-1" {
		t.Errorf("GetAPIKeyByID() = %+v", key)
	}
}

func TestGetAPIKeyByID_NotFound(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectQuery("SELECT.*FROM api_keys WHERE id").
		WillReturnRows(sqlmock.NewRows(apiKeyCols))

	key, err := repo.GetAPIKeyByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != nil {
		t.Errorf("expected nil, got %+v", key)
	}
}

// ---------------------------------------------------------------------------
// UpdateLastUsed / DeactivateAPIKey / DeactivateExpiredKeys
// ---------------------------------------------------------------------------

func TestUpdateLastUsed(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("UPDATE api_keys SET last_used_at").
		WithArgs("key-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateLastUsed(context.Background(), "key-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectationsMet(t, mock)
}

func TestDeactivateAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"existing key", 1, true},
		{"unknown key", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newAPIKeyRepo(t)
			mock.ExpectExec("UPDATE api_keys SET is_active = FALSE WHERE id").
				WithArgs("key-1").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			got, err := repo.DeactivateAPIKey(context.Background(), "key-1")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DeactivateAPIKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeactivateAPIKey_DBError(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	mock.ExpectExec("UPDATE api_keys").WillReturnError(errDB)

	if _, err := repo.DeactivateAPIKey(context.Background(), "key-1"); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestDeactivateExpiredKeys(t *testing.T) {
	repo, mock := newAPIKeyRepo(t)
	now := time.Now()
	mock.ExpectExec("UPDATE api_keys.*SET is_active = FALSE.*expires_at <=").
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeactivateExpiredKeys(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 3 {
		t.Errorf("DeactivateExpiredKeys() = %d, want 3", n)
	}
}
