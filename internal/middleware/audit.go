// audit.go records successful mutations to the audit log without delaying the response.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/component-request-system/crs/internal/db/models"
	"github.com/component-request-system/crs/internal/safego"
)

// AuditResourceIDKey lets a handler name the resource it created, since the route has no :id yet
const AuditResourceIDKey = "audit_resource_id"

const auditWriteTimeout = 5 * time.Second

// AuditRecorder persists audit entries
type AuditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditConfig controls which requests are recorded
type AuditConfig struct {
	// LogFailedRequests also records mutations that ended in a 4xx or 5xx
	LogFailedRequests bool
}

type auditRoute struct {
	action       string
	resourceType string
}

// auditRoutes names the mutations worth recording, keyed by method and route template
var auditRoutes = map[string]auditRoute{
	"POST /api/auth/login":     {"user.login", "user"},
	"POST /api/api-keys":       {"api_key.issued", "api_key"},
	"DELETE /api/api-keys/:id": {"api_key.revoked", "api_key"},
	"POST /api/requests":       {"request.created", "component_request"},
	"PUT /api/requests/:id":    {"request.status_updated", "component_request"},
	"PATCH /api/requests/:id":  {"request.updated", "component_request"},
	"DELETE /api/requests/:id": {"request.deleted", "component_request"},
}

// AuditMiddleware writes an audit entry for each successful mutation after the handler
// has run. Writes happen on bg so shutdown can drain them; failures are only logged.
func AuditMiddleware(recorder AuditRecorder, bg *safego.Group, cfg AuditConfig) gin.HandlerFunc {
	spawn := safego.Go
	if bg != nil {
		spawn = bg.Go
	}

	return func(c *gin.Context) {
		c.Next()

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest && !cfg.LogFailedRequests {
			return
		}

		entry := buildAuditLog(c, status)
		requestID := c.GetString(RequestIDKey)
		spawn(func() {
			ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
			defer cancel()
			if err := recorder.CreateAuditLog(ctx, entry); err != nil {
				slog.Error("failed to write audit log", "request_id", requestID, "action", entry.Action, "error", err)
			}
		})
	}
}

func buildAuditLog(c *gin.Context, status int) *models.AuditLog {
	route := c.FullPath()
	ip := c.ClientIP()
	entry := &models.AuditLog{
		Action:    c.Request.Method + " " + c.Request.URL.Path,
		IPAddress: &ip,
		CreatedAt: time.Now(),
		Metadata: map[string]interface{}{
			"status_code": status,
			"request_id":  c.GetString(RequestIDKey),
		},
	}

	if r, ok := auditRoutes[c.Request.Method+" "+route]; ok {
		entry.Action = r.action
		resourceType := r.resourceType
		entry.ResourceType = &resourceType
	}

	resourceID := c.Param("id")
	if resourceID == "" {
		resourceID = c.GetString(AuditResourceIDKey)
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}

	if userID := c.GetString(UserIDKey); userID != "" {
		entry.UserID = &userID
	}
	if keyID := c.GetString(APIKeyIDKey); keyID != "" {
		entry.Metadata["api_key_id"] = keyID
	}
	return entry
}
