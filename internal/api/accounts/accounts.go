// Package accounts implements the login and API key HTTP handlers. Login and key issuance
// are unauthenticated: they are how a dashboard user or Figma plugin obtains credentials.
package accounts

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/component-request-system/crs/internal/db/models"
	"github.com/component-request-system/crs/internal/middleware"
	"github.com/component-request-system/crs/internal/services"
	"github.com/component-request-system/crs/internal/validation"
)

// Handlers serves /api/auth and /api/api-keys
type Handlers struct {
	directory   *services.Directory
	credentials *services.Credentials
}

// NewHandlers creates the account handlers
func NewHandlers(directory *services.Directory, credentials *services.Credentials) *Handlers {
	return &Handlers{directory: directory, credentials: credentials}
}

// LoginRequest is the body of POST /api/auth/login
type LoginRequest struct {
	Email string      `json:"email" binding:"required,max=320"`
	Name  string      `json:"name" binding:"max=200"`
	Role  models.Role `json:"role" binding:"omitempty,user_role"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Success bool         `json:"success"`
	User    UserResponse `json:"user"`
}

// IssueKeyRequest is the body of POST /api/api-keys
type IssueKeyRequest struct {
	Email string `json:"email" binding:"required,max=320"`
	Name  string `json:"name" binding:"max=200"`
}

// KeyInfo describes a stored key without its secret
type KeyInfo struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Name      string     `json:"name"`
	KeyPrefix string     `json:"key_prefix"`
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// IssueKeyResponse carries the plaintext key. It is the only time the key is returned.
type IssueKeyResponse struct {
	APIKey  string  `json:"apiKey"`
	KeyInfo KeyInfo `json:"keyInfo"`
}

// @Summary      Log in
// @Description  Gets or creates the user for an email. Existing users are returned as stored.
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        body  body      LoginRequest  true  "Login"
// @Success      200   {object}  LoginResponse
// @Failure      400   {object}  map[string]interface{}  "Missing email or unknown role"
// @Failure      500   {object}  map[string]interface{}  "Internal server error"
// @Router       /api/auth/login [post]
// LoginHandler handles POST /api/auth/login
func (h *Handlers) LoginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message(err)})
			return
		}

		user, err := h.directory.GetOrCreateUser(c.Request.Context(), req.Email, req.Name, req.Role)
		if err != nil {
			respondError(c, err, "Failed to login")
			return
		}

		c.Set(middleware.UserIDKey, user.ID)
		c.JSON(http.StatusOK, LoginResponse{
			Success: true,
			User:    UserResponse{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role},
		})
	}
}

// @Summary      Issue API key
// @Description  Gets or creates the user for an email and issues a new API key. The key is only shown in this response.
// @Tags         API Keys
// @Accept       json
// @Produce      json
// @Param        body  body      IssueKeyRequest  true  "Owner"
// @Success      201   {object}  IssueKeyResponse
// @Failure      400   {object}  map[string]interface{}  "Missing email"
// @Failure      500   {object}  map[string]interface{}  "Internal server error"
// @Router       /api/api-keys [post]
// IssueKeyHandler handles POST /api/api-keys
func (h *Handlers) IssueKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req IssueKeyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message(err)})
			return
		}

		issued, err := h.credentials.IssueKey(c.Request.Context(), req.Email, req.Name)
		if err != nil {
			respondError(c, err, "Failed to generate API key")
			return
		}

		c.Set(middleware.UserIDKey, issued.User.ID)
		c.Set(middleware.AuditResourceIDKey, issued.Key.ID)
		c.JSON(http.StatusCreated, IssueKeyResponse{
			APIKey:  issued.Plaintext,
			KeyInfo: keyInfo(issued.Key),
		})
	}
}

// @Summary      Check API key
// @Description  Returns the owner of the Bearer API key.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "message, user_id, email, role"
// @Failure      401  {object}  map[string]interface{}  "Missing or malformed Authorization header"
// @Failure      403  {object}  map[string]interface{}  "Invalid API key"
// @Router       /api/api-keys [get]
// WhoAmIHandler handles GET /api/api-keys
func (h *Handlers) WhoAmIHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := middleware.GetIdentity(c)
		if identity == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "API key is valid",
			"user_id": identity.UserID,
			"email":   identity.Email,
			"name":    identity.Name,
			"role":    identity.Role,
		})
	}
}

// @Summary      Revoke API key
// @Description  Deactivates an API key. Callers may revoke their own keys; Admins may revoke any key.
// @Tags         API Keys
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "API key ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      401  {object}  map[string]interface{}  "Missing or malformed Authorization header"
// @Failure      403  {object}  map[string]interface{}  "Invalid API key or not the key owner"
// @Failure      404  {object}  map[string]interface{}  "API key not found"
// @Router       /api/api-keys/{id} [delete]
// RevokeKeyHandler handles DELETE /api/api-keys/:id
func (h *Handlers) RevokeKeyHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		keyID := c.Param("id")
		if _, err := uuid.Parse(keyID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
			return
		}

		if err := h.credentials.Revoke(c.Request.Context(), middleware.GetIdentity(c), keyID); err != nil {
			respondError(c, err, "Failed to revoke API key")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "API key revoked successfully"})
	}
}

func keyInfo(k *models.APIKey) KeyInfo {
	return KeyInfo{
		ID:        k.ID,
		UserID:    k.UserID,
		Name:      k.Name,
		KeyPrefix: k.KeyPrefix,
		IsActive:  k.IsActive,
		ExpiresAt: k.ExpiresAt,
		CreatedAt: k.CreatedAt,
	}
}

// respondError maps service errors to status codes; anything unrecognised is a logged 500
func respondError(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.Is(err, services.ErrAPIKeyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
	case errors.Is(err, services.ErrNotKeyOwner):
		c.JSON(http.StatusForbidden, gin.H{"error": "API key belongs to another user"})
	default:
		slog.Error(fallback, "request_id", c.GetString(middleware.RequestIDKey), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
