package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/component-request-system/crs/internal/auth"
	"github.com/component-request-system/crs/internal/db/models"
	"github.com/component-request-system/crs/internal/telemetry"
)

const (
	// DefaultProject is assigned when a request names no project
	DefaultProject = "Manual"

	// MaxListLimit caps a single page of ListRequests
	MaxListLimit = 500
)

// CreateRequestInput carries the caller-supplied fields of a new request.
// Empty optional strings are stored as NULL.
type CreateRequestInput struct {
	RequestName    string
	Justification  string
	RequesterName  string
	RequesterEmail string
	Category       models.Category
	Severity       models.Severity
	Project        string
	FigmaLink      string
	FigmaFileKey   string
	FigmaFileName  string
	FigmaNodeID    string
	ImageData      string
	SelectionData  models.RawJSON
	Source         models.Source
}

// Requests implements the component request lifecycle. Any status may move to any
// other status; entering Denied records a reason and every other status clears it.
type Requests struct {
	store     RequestStore
	ids       *RequestIDGenerator
	directory *Directory
	now       func() time.Time
}

// NewRequests creates the lifecycle service
func NewRequests(store RequestStore, ids *RequestIDGenerator, directory *Directory) *Requests {
	return &Requests{store: store, ids: ids, directory: directory, now: time.Now}
}

// Create validates in, allocates an ID and stores a new Pending request.
// The requester is the authenticated caller when there is one, otherwise the user
// behind RequesterEmail. Failing to resolve that user is logged and the request is
// stored without a requester_id.
func (s *Requests) Create(ctx context.Context, in CreateRequestInput, caller *auth.Identity) (*models.ComponentRequest, error) {
	in.RequestName = strings.TrimSpace(in.RequestName)
	in.Justification = strings.TrimSpace(in.Justification)
	if in.RequestName == "" {
		return nil, invalid("requestName", "Request name is required")
	}
	if in.Justification == "" {
		return nil, invalid("justification", "Justification is required")
	}
	if in.Category != "" && !in.Category.Valid() {
		return nil, invalid("category", fmt.Sprintf("Invalid category %q", in.Category))
	}
	if in.Severity == "" {
		in.Severity = models.SeverityMedium
	} else if !in.Severity.Valid() {
		return nil, invalid("severity", fmt.Sprintf("Invalid severity %q", in.Severity))
	}
	if in.Source == "" {
		in.Source = models.SourceManual
	} else if !in.Source.Valid() {
		return nil, invalid("source", fmt.Sprintf("Invalid source %q", in.Source))
	}
	if strings.TrimSpace(in.Project) == "" {
		in.Project = DefaultProject
	}
	if caller != nil {
		if in.RequesterName == "" {
			in.RequesterName = caller.Name
		}
		if in.RequesterEmail == "" {
			in.RequesterEmail = caller.Email
		}
	}

	id, err := s.ids.Next(ctx)
	if err != nil {
		return nil, err
	}

	var requesterID *string
	switch {
	case caller != nil:
		requesterID = &caller.UserID
	case in.RequesterEmail != "":
		user, err := s.directory.GetOrCreateUser(ctx, in.RequesterEmail, in.RequesterName, models.RoleRequester)
		if err != nil {
			slog.Warn("could not resolve requester, storing request without requester_id",
				"request_id", id, "requester_email", in.RequesterEmail, "error", err)
		} else {
			requesterID = &user.ID
		}
	}

	now := s.now()
	req := &models.ComponentRequest{
		ID:             id,
		RequestName:    in.RequestName,
		Justification:  in.Justification,
		RequesterID:    requesterID,
		RequesterName:  in.RequesterName,
		RequesterEmail: in.RequesterEmail,
		Status:         models.StatusPending,
		Category:       optCategory(in.Category),
		Severity:       in.Severity,
		Project:        in.Project,
		FigmaLink:      optString(in.FigmaLink),
		FigmaFileKey:   optString(in.FigmaFileKey),
		FigmaFileName:  optString(in.FigmaFileName),
		FigmaNodeID:    optString(in.FigmaNodeID),
		ImageData:      optString(in.ImageData),
		SelectionData:  in.SelectionData,
		Source:         in.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.store.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("store request %s: %w", id, err)
	}

	telemetry.RequestsCreatedTotal.WithLabelValues(string(req.Source)).Inc()
	slog.Info("component request created", "request_id", req.ID, "source", req.Source, "requester_id", derefString(requesterID))
	return req, nil
}

// Get returns the request with the given ID
func (s *Requests) Get(ctx context.Context, id string) (*models.ComponentRequest, error) {
	req, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// List returns requests matching filter, newest first
func (s *Requests) List(ctx context.Context, filter models.RequestFilter) ([]*models.ComponentRequest, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", fmt.Sprintf("Invalid status %q", filter.Status))
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return nil, invalid("category", fmt.Sprintf("Invalid category %q", filter.Category))
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		return nil, invalid("severity", fmt.Sprintf("Invalid severity %q", filter.Severity))
	}
	if filter.Source != "" && !filter.Source.Valid() {
		return nil, invalid("source", fmt.Sprintf("Invalid source %q", filter.Source))
	}
	if filter.Limit < 0 || filter.Limit > MaxListLimit {
		return nil, invalid("limit", fmt.Sprintf("Limit must be between 0 and %d", MaxListLimit))
	}
	if filter.Offset < 0 {
		return nil, invalid("offset", "Offset must not be negative")
	}

	requests, err := s.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus moves a request to status. Entering Denied stores reason; any other
// status clears the reason to "".
func (s *Requests) UpdateStatus(ctx context.Context, id string, status models.RequestStatus, reason string) (*models.ComponentRequest, error) {
	if status == "" {
		return nil, invalid("status", "Status is required")
	}
	if !status.Valid() {
		return nil, invalid("status", fmt.Sprintf("Invalid status %q", status))
	}

	if status == models.StatusDenied {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			slog.Warn("request denied without a reason", "request_id", id)
		}
	} else {
		reason = ""
	}

	req, err := s.store.UpdateRequestStatus(ctx, id, status, reason)
	if err != nil {
		return nil, fmt.Errorf("update status of %s: %w", id, err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}

	telemetry.RequestStatusChangesTotal.WithLabelValues(string(status)).Inc()
	slog.Info("component request status updated", "request_id", id, "status", status)
	return req, nil
}

// UpdateFields edits the descriptive fields of a request. Status is untouched.
func (s *Requests) UpdateFields(ctx context.Context, id string, patch models.RequestPatch) (*models.ComponentRequest, error) {
	if patch.Empty() {
		return nil, invalid("body", "No fields to update")
	}
	if patch.RequestName != nil {
		name := strings.TrimSpace(*patch.RequestName)
		if name == "" {
			return nil, invalid("requestName", "Request name must not be empty")
		}
		patch.RequestName = &name
	}
	if patch.Justification != nil {
		j := strings.TrimSpace(*patch.Justification)
		if j == "" {
			return nil, invalid("justification", "Justification must not be empty")
		}
		patch.Justification = &j
	}
	if patch.Category != nil && !patch.Category.Valid() {
		return nil, invalid("category", fmt.Sprintf("Invalid category %q", *patch.Category))
	}
	if patch.Severity != nil && !patch.Severity.Valid() {
		return nil, invalid("severity", fmt.Sprintf("Invalid severity %q", *patch.Severity))
	}
	if patch.Project != nil && strings.TrimSpace(*patch.Project) == "" {
		project := DefaultProject
		patch.Project = &project
	}

	req, err := s.store.UpdateRequestFields(ctx, id, patch)
	if err != nil {
		return nil, fmt.Errorf("update fields of %s: %w", id, err)
	}
	if req == nil {
		return nil, ErrRequestNotFound
	}
	return req, nil
}

// Delete removes a request permanently
func (s *Requests) Delete(ctx context.Context, id string) error {
	found, err := s.store.DeleteRequest(ctx, id)
	if err != nil {
		return fmt.Errorf("delete request %s: %w", id, err)
	}
	if !found {
		return ErrRequestNotFound
	}
	slog.Info("component request deleted", "request_id", id)
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optCategory(c models.Category) *models.Category {
	if c == "" {
		return nil
	}
	return &c
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
