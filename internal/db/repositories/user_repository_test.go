package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/component-request-system/crs/internal/db/models"
)

var userCols = []string{"id", "email", "name", "role", "created_at", "updated_at"}

func sampleUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols).
		AddRow("user-1", "alice@example.com", "Alice", "Requester", time.Now(), time.Now())
}

func emptyUserRow() *sqlmock.Rows {
	return sqlmock.NewRows(userCols)
}

func newUserRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewUserRepository(db), mock
}

// ---------------------------------------------------------------------------
// GetOrCreateUser
// ---------------------------------------------------------------------------

func TestGetOrCreateUser_Inserted(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users.*ON CONFLICT \\(email\\) DO NOTHING").
		WithArgs(sqlmock.AnyArg(), "alice@example.com", "Alice", "Requester", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetOrCreateUser(context.Background(), &models.User{
		Email: "alice@example.com", Name: "Alice", Role: models.RoleRequester,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ID = %s, want user-1", user.ID)
	}
	if user.Role != models.RoleRequester {
		t.Errorf("Role = %s, want Requester", user.Role)
	}
	expectationsMet(t, mock)
}

func TestGetOrCreateUser_ExistingRowWins(t *testing.T) {
	repo, mock := newUserRepo(t)
	// Conflict: nothing inserted, the stored Requester row is returned even
	// though the caller asked for Admin.
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetOrCreateUser(context.Background(), &models.User{
		Email: "alice@example.com", Name: "Someone Else", Role: models.RoleAdmin,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.Name != "Alice" || user.Role != models.RoleRequester {
		t.Errorf("got %s/%s, want stored Alice/Requester", user.Name, user.Role)
	}
	expectationsMet(t, mock)
}

func TestGetOrCreateUser_InsertError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").WillReturnError(errDB)

	if _, err := repo.GetOrCreateUser(context.Background(), &models.User{Email: "a@b.com"}); err == nil {
		t.Error("expected error, got nil")
	}
}

func TestGetOrCreateUser_RowVanished(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT.*FROM users WHERE email").WillReturnRows(emptyUserRow())

	if _, err := repo.GetOrCreateUser(context.Background(), &models.User{Email: "a@b.com"}); err == nil {
		t.Error("expected error when the row cannot be read back")
	}
}

// ---------------------------------------------------------------------------
// GetUserByEmail / GetUserByID
// ---------------------------------------------------------------------------

func TestGetUserByEmail_NotFound(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE email").
		WithArgs("missing@example.com").
		WillReturnRows(emptyUserRow())

	user, err := repo.GetUserByEmail(context.Background(), "missing@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user for not found, got %v", user)
	}
}

func TestGetUserByID_Found(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").
		WithArgs("user-1").
		WillReturnRows(sampleUserRow())

	user, err := repo.GetUserByID(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user == nil || user.Email != "alice@example.com" {
		t.Errorf("GetUserByID() = %v, want alice", user)
	}
}

func TestGetUserByID_DBError(t *testing.T) {
	repo, mock := newUserRepo(t)
	mock.ExpectQuery("SELECT.*FROM users WHERE id").WillReturnError(errDB)

	if _, err := repo.GetUserByID(context.Background(), "user-1"); err == nil {
		t.Error("expected error, got nil")
	}
}
