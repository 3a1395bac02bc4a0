package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/component-request-system/crs/internal/auth"
	"github.com/component-request-system/crs/internal/db/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubValidator accepts exactly one key
type stubValidator struct {
	key   string
	err   error
	calls int
}

func (s *stubValidator) Validate(_ context.Context, plaintext string) (*auth.Identity, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if plaintext != s.key {
		return nil, nil
	}
	return &auth.Identity{UserID: "user-1", Email: "a@b.com", Name: "A", Role: models.RoleRequester, APIKeyID: "key-1"}, nil
}

func newAuthRouter(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw)
	r.GET("/", func(c *gin.Context) {
		if id := GetIdentity(c); id != nil {
			c.JSON(http.StatusOK, gin.H{"user_id": id.UserID, "ctx_user_id": c.GetString(UserIDKey), "ctx_key_id": c.GetString(APIKeyIDKey)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": ""})
	})
	return r
}

func doAuthRequest(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCalls  int
	}{
		{"no header", "", http.StatusUnauthorized, 0},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, 0},
		{"empty bearer", "Bearer   ", http.StatusUnauthorized, 0},
		{"unknown key", "Bearer garbage", http.StatusForbidden, 1},
		{"valid key", "Bearer crs_good", http.StatusOK, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubValidator{key: "crs_good"}
			w := doAuthRequest(newAuthRouter(RequireAPIKey(v)), tt.header)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if v.calls != tt.wantCalls {
				t.Errorf("validator calls = %d, want %d", v.calls, tt.wantCalls)
			}
		})
	}
}

func TestRequireAPIKey_SetsIdentity(t *testing.T) {
	w := doAuthRequest(newAuthRouter(RequireAPIKey(&stubValidator{key: "crs_good"})), "Bearer crs_good")
	want := `{"ctx_key_id":"key-1","ctx_user_id":"user-1","user_id":"user-1"}`
	if w.Body.String() != want {
		t.Errorf("body = %s, want %s", w.Body.String(), want)
	}
}

func TestRequireAPIKey_StoreError(t *testing.T) {
	w := doAuthRequest(newAuthRouter(RequireAPIKey(&stubValidator{err: errors.New("db down")})), "Bearer crs_good")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestOptionalAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		err      error
		wantUser string
	}{
		{"anonymous", "", nil, ""},
		{"malformed", "Token abc", nil, ""},
		{"invalid key ignored", "Bearer garbage", nil, ""},
		{"store error ignored", "Bearer crs_good", errors.New("db down"), ""},
		{"valid key", "Bearer crs_good", nil, "user-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &stubValidator{key: "crs_good", err: tt.err}
			w := doAuthRequest(newAuthRouter(OptionalAPIKey(v)), tt.header)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if tt.wantUser == "" && w.Body.String() != `{"user_id":""}` {
				t.Errorf("expected anonymous request, body = %s", w.Body.String())
			}
			if tt.wantUser != "" && !strings.Contains(w.Body.String(), `"user_id":"`+tt.wantUser+`"`) {
				t.Errorf("expected user %s, body = %s", tt.wantUser, w.Body.String())
			}
		})
	}
}

func TestGetIdentity_Missing(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if GetIdentity(c) != nil {
		t.Error("expected nil identity on a fresh context")
	}
	c.Set(IdentityKey, "not an identity")
	if GetIdentity(c) != nil {
		t.Error("expected nil identity for a value of the wrong type")
	}
}
