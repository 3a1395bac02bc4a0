// Package requests implements the component request HTTP handlers used by the dashboard
// and the Figma plugin. Only creation looks at credentials, and only optionally.
package requests

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/component-request-system/crs/internal/db/models"
	"github.com/component-request-system/crs/internal/middleware"
	"github.com/component-request-system/crs/internal/services"
	"github.com/component-request-system/crs/internal/validation"
)

// Handlers serves /api/requests
type Handlers struct {
	requests *services.Requests
}

// NewHandlers creates the request handlers
func NewHandlers(requests *services.Requests) *Handlers {
	return &Handlers{requests: requests}
}

// CreateRequest is the body of POST /api/requests, as sent by the dashboard form and the plugin
type CreateRequest struct {
	RequestName    string          `json:"requestName" binding:"required,max=200"`
	Justification  string          `json:"justification" binding:"required"`
	RequesterName  string          `json:"requesterName" binding:"max=200"`
	RequesterEmail string          `json:"requesterEmail" binding:"max=320"`
	Category       models.Category `json:"category" binding:"omitempty,request_category"`
	Severity       models.Severity `json:"severity" binding:"omitempty,request_severity"`
	Project        string          `json:"project" binding:"max=200"`
	FigmaLink      string          `json:"figmaLink"`
	FigmaFileKey   string          `json:"figmaFileKey"`
	FigmaFileName  string          `json:"figmaFileName"`
	FigmaNodeID    string          `json:"figmaNodeId"`
	ImageData      string          `json:"imageData"`
	SelectionData  models.RawJSON  `json:"selectionData"`
	Source         models.Source   `json:"source" binding:"omitempty,request_source"`
}

// UpdateStatusRequest is the body of PUT /api/requests/:id
type UpdateStatusRequest struct {
	Status       models.RequestStatus `json:"status" binding:"required,request_status"`
	DenialReason string               `json:"denial_reason" binding:"max=2000"`
}

// UpdateFieldsRequest is the body of PATCH /api/requests/:id. Absent fields are unchanged.
type UpdateFieldsRequest struct {
	RequestName   *string          `json:"requestName" binding:"omitempty,max=200"`
	Justification *string          `json:"justification"`
	Category      *models.Category `json:"category" binding:"omitempty,request_category"`
	Severity      *models.Severity `json:"severity" binding:"omitempty,request_severity"`
	Project       *string          `json:"project" binding:"omitempty,max=200"`
	FigmaLink     *string          `json:"figmaLink"`
}

// ListQuery holds the optional filters of GET /api/requests
type ListQuery struct {
	Status   models.RequestStatus `form:"status" json:"status" binding:"omitempty,request_status"`
	Category models.Category      `form:"category" json:"category" binding:"omitempty,request_category"`
	Severity models.Severity      `form:"severity" json:"severity" binding:"omitempty,request_severity"`
	Source   models.Source        `form:"source" json:"source" binding:"omitempty,request_source"`
	Query    string               `form:"q" json:"q" binding:"max=200"`
	Limit    int                  `form:"limit" json:"limit" binding:"min=0"`
	Offset   int                  `form:"offset" json:"offset" binding:"min=0"`
}

// @Summary      List requests
// @Description  Lists component requests, newest first. Without query parameters every request is returned.
// @Tags         Requests
// @Produce      json
// @Param        status    query  string  false  "Pending, In Progress, Completed or Denied"
// @Param        category  query  string  false  "Form, Navigation, Display, Input or Layout"
// @Param        severity  query  string  false  "Low, Medium, High or Urgent"
// @Param        source    query  string  false  "manual or figma-plugin"
// @Param        q         query  string  false  "Case-insensitive search over id, name, justification and requester"
// @Param        limit     query  int     false  "Page size (max 500)"
// @Param        offset    query  int     false  "Page offset"
// @Success      200  {array}   models.ComponentRequest
// @Failure      400  {object}  map[string]interface{}  "Invalid filter"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/requests [get]
// ListHandler handles GET /api/requests
func (h *Handlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var q ListQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.MessageOr(err, "Invalid query parameters")})
			return
		}

		list, err := h.requests.List(c.Request.Context(), models.RequestFilter{
			Status:   q.Status,
			Category: q.Category,
			Severity: q.Severity,
			Source:   q.Source,
			Query:    q.Query,
			Limit:    q.Limit,
			Offset:   q.Offset,
		})
		if err != nil {
			respondError(c, err, "Failed to fetch requests")
			return
		}
		if list == nil {
			list = []*models.ComponentRequest{}
		}
		c.JSON(http.StatusOK, list)
	}
}

// @Summary      Create request
// @Description  Creates a Pending request. A valid Bearer API key makes its owner the requester; an invalid one is ignored.
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        body  body      CreateRequest  true  "Request"
// @Success      201   {object}  models.ComponentRequest
// @Failure      400   {object}  map[string]interface{}  "Missing or invalid field"
// @Failure      500   {object}  map[string]interface{}  "Internal server error"
// @Router       /api/requests [post]
// CreateHandler handles POST /api/requests
func (h *Handlers) CreateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body CreateRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message(err)})
			return
		}

		req, err := h.requests.Create(c.Request.Context(), services.CreateRequestInput{
			RequestName:    body.RequestName,
			Justification:  body.Justification,
			RequesterName:  body.RequesterName,
			RequesterEmail: body.RequesterEmail,
			Category:       body.Category,
			Severity:       body.Severity,
			Project:        body.Project,
			FigmaLink:      body.FigmaLink,
			FigmaFileKey:   body.FigmaFileKey,
			FigmaFileName:  body.FigmaFileName,
			FigmaNodeID:    body.FigmaNodeID,
			ImageData:      body.ImageData,
			SelectionData:  body.SelectionData,
			Source:         body.Source,
		}, middleware.GetIdentity(c))
		if err != nil {
			respondError(c, err, "Failed to create request")
			return
		}

		c.Set(middleware.AuditResourceIDKey, req.ID)
		c.JSON(http.StatusCreated, req)
	}
}

// @Summary      Get request
// @Tags         Requests
// @Produce      json
// @Param        id   path      string  true  "Request ID (CR0001)"
// @Success      200  {object}  models.ComponentRequest
// @Failure      404  {object}  map[string]interface{}  "Request not found"
// @Router       /api/requests/{id} [get]
// GetHandler handles GET /api/requests/:id
func (h *Handlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := h.requests.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err, "Failed to fetch request")
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

// @Summary      Update request status
// @Description  Moves a request to any status. Denied stores denial_reason; every other status clears it.
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Request ID"
// @Param        body  body      UpdateStatusRequest  true  "Status"
// @Success      200   {object}  models.ComponentRequest
// @Failure      400   {object}  map[string]interface{}  "Missing or invalid status"
// @Failure      404   {object}  map[string]interface{}  "Request not found"
// @Failure      500   {object}  map[string]interface{}  "Internal server error"
// @Router       /api/requests/{id} [put]
// UpdateStatusHandler handles PUT /api/requests/:id
func (h *Handlers) UpdateStatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body UpdateStatusRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message(err)})
			return
		}

		req, err := h.requests.UpdateStatus(c.Request.Context(), c.Param("id"), body.Status, body.DenialReason)
		if err != nil {
			respondError(c, err, "Failed to update request status")
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

// @Summary      Edit request
// @Description  Edits the descriptive fields of a request. Status is changed through PUT only.
// @Tags         Requests
// @Accept       json
// @Produce      json
// @Param        id    path      string               true  "Request ID"
// @Param        body  body      UpdateFieldsRequest  true  "Fields"
// @Success      200   {object}  models.ComponentRequest
// @Failure      400   {object}  map[string]interface{}  "Invalid field"
// @Failure      404   {object}  map[string]interface{}  "Request not found"
// @Router       /api/requests/{id} [patch]
// UpdateFieldsHandler handles PATCH /api/requests/:id
func (h *Handlers) UpdateFieldsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var body UpdateFieldsRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validation.Message(err)})
			return
		}

		req, err := h.requests.UpdateFields(c.Request.Context(), c.Param("id"), models.RequestPatch{
			RequestName:   body.RequestName,
			Justification: body.Justification,
			Category:      body.Category,
			Severity:      body.Severity,
			Project:       body.Project,
			FigmaLink:     body.FigmaLink,
		})
		if err != nil {
			respondError(c, err, "Failed to update request")
			return
		}
		c.JSON(http.StatusOK, req)
	}
}

// @Summary      Delete request
// @Tags         Requests
// @Produce      json
// @Param        id   path      string  true  "Request ID"
// @Success      200  {object}  map[string]interface{}  "message"
// @Failure      404  {object}  map[string]interface{}  "Request not found"
// @Router       /api/requests/{id} [delete]
// DeleteHandler handles DELETE /api/requests/:id
func (h *Handlers) DeleteHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.requests.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, err, "Failed to delete request")
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Request deleted successfully"})
	}
}

// respondError maps service errors to status codes; anything unrecognised is a logged 500
func respondError(c *gin.Context, err error, fallback string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Message})
	case errors.Is(err, services.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Request not found"})
	default:
		slog.Error(fallback, "request_id", c.GetString(middleware.RequestIDKey), "request", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
