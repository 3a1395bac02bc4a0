// Package memory provides an in-process implementation of every store the services
// depend on. It backs unit tests and the "memory" database driver for local runs;
// data does not survive a restart.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/component-request-system/crs/internal/db/models"
)

// ErrDuplicateRequestID is returned when a request ID is already taken, mirroring
// the primary key violation the postgres store raises.
var ErrDuplicateRequestID = errors.New("request id already exists")

// Store holds users, API keys, component requests and audit logs behind one mutex.
// Values are copied on the way in and out so callers never share memory with the store.
type Store struct {
	mu sync.Mutex

	usersByID    map[string]*models.User
	usersByEmail map[string]string
	keys         map[string]*models.APIKey
	keysByHash   map[string]string
	requests     map[string]*models.ComponentRequest
	auditLogs    []*models.AuditLog
	seq          int64

	// now is swapped in tests
	now func() time.Time
}

// New creates an empty Store
func New() *Store {
	return &Store{
		usersByID:    make(map[string]*models.User),
		usersByEmail: make(map[string]string),
		keys:         make(map[string]*models.APIKey),
		keysByHash:   make(map[string]string),
		requests:     make(map[string]*models.ComponentRequest),
		now:          time.Now,
	}
}

// ---------------------------------------------------------------------------
// Sequence
// ---------------------------------------------------------------------------

// NextRequestNumber returns 1, 2, 3, ... atomically
func (s *Store) NextRequestNumber(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

// MaxRequestNumber returns the highest number among stored CR ids, or 0 when empty
func (s *Store) MaxRequestNumber(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var highest int64
	for id := range s.requests {
		if n, ok := requestNumber(id); ok && n > highest {
			highest = n
		}
	}
	return highest, nil
}

func requestNumber(id string) (int64, bool) {
	digits, ok := strings.CutPrefix(id, "CR")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

// GetOrCreateUser returns the user stored under user.Email, creating it first if absent
func (s *Store) GetOrCreateUser(_ context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.usersByEmail[user.Email]; ok {
		u := *s.usersByID[id]
		return &u, nil
	}

	now := s.now()
	u := &models.User{
		ID:        uuid.New().String(),
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.usersByID[u.ID] = u
	s.usersByEmail[u.Email] = u.ID

	out := *u
	return &out, nil
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	u := *s.usersByID[id]
	return &u, nil
}

// ---------------------------------------------------------------------------
// API keys
// ---------------------------------------------------------------------------

// CreateAPIKey stores a key. ID and CreatedAt are assigned here.
func (s *Store) CreateAPIKey(_ context.Context, apiKey *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apiKey.ID = uuid.New().String()
	apiKey.CreatedAt = s.now()

	k := *apiKey
	s.keys[k.ID] = &k
	s.keysByHash[k.KeyHash] = k.ID
	return nil
}

// GetActiveKeyOwner looks up an active, unexpired key by hash joined to its owner
func (s *Store) GetActiveKeyOwner(_ context.Context, keyHash string, now time.Time) (*models.APIKeyOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.keysByHash[keyHash]
	if !ok {
		return nil, nil
	}
	k := s.keys[id]
	if !k.IsActive || k.Expired(now) {
		return nil, nil
	}
	u, ok := s.usersByID[k.UserID]
	if !ok {
		return nil, nil
	}
	return &models.APIKeyOwner{KeyID: k.ID, UserID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}, nil
}

// GetAPIKeyByID retrieves an API key by ID
func (s *Store) GetAPIKeyByID(_ context.Context, keyID string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return nil, nil
	}
	out := *k
	return &out, nil
}

// UpdateLastUsed stamps last_used_at on a key
func (s *Store) UpdateLastUsed(_ context.Context, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[keyID]; ok {
		now := s.now()
		k.LastUsedAt = &now
	}
	return nil
}

// DeactivateAPIKey clears is_active. Reports false for an unknown ID.
func (s *Store) DeactivateAPIKey(_ context.Context, keyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[keyID]
	if !ok {
		return false, nil
	}
	k.IsActive = false
	return true, nil
}

// DeactivateExpiredKeys revokes every active key that expired at or before now
func (s *Store) DeactivateExpiredKeys(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, k := range s.keys {
		if k.IsActive && k.ExpiresAt != nil && !k.ExpiresAt.After(now) {
			k.IsActive = false
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Component requests
// ---------------------------------------------------------------------------

// CreateRequest stores a request under its pre-allocated ID
func (s *Store) CreateRequest(_ context.Context, req *models.ComponentRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.requests[req.ID]; exists {
		return fmt.Errorf("create request %s: %w", req.ID, ErrDuplicateRequestID)
	}
	s.requests[req.ID] = cloneRequest(req)
	return nil
}

// GetRequest retrieves a request by ID
func (s *Store) GetRequest(_ context.Context, id string) (*models.ComponentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(req), nil
}

// ListRequests returns requests matching filter, newest first
func (s *Store) ListRequests(_ context.Context, filter models.RequestFilter) ([]*models.ComponentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(filter.Query))
	out := make([]*models.ComponentRequest, 0, len(s.requests))
	for _, req := range s.requests {
		if matches(req, filter, q) {
			out = append(out, cloneRequest(req))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return out[:0], nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func matches(req *models.ComponentRequest, f models.RequestFilter, q string) bool {
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.Category != "" && (req.Category == nil || *req.Category != f.Category) {
		return false
	}
	if f.Severity != "" && req.Severity != f.Severity {
		return false
	}
	if f.Source != "" && req.Source != f.Source {
		return false
	}
	if q == "" {
		return true
	}
	for _, field := range []string{req.ID, req.RequestName, req.Justification, req.RequesterName} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// UpdateRequestStatus sets status and denial reason; nil when the ID is unknown
func (s *Store) UpdateRequestStatus(_ context.Context, id string, status models.RequestStatus, denialReason string) (*models.ComponentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	req.Status = status
	req.DenialReason = denialReason
	req.UpdatedAt = s.now()
	return cloneRequest(req), nil
}

// UpdateRequestFields applies the non-nil fields of patch; nil when the ID is unknown
func (s *Store) UpdateRequestFields(_ context.Context, id string, patch models.RequestPatch) (*models.ComponentRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	if patch.RequestName != nil {
		req.RequestName = *patch.RequestName
	}
	if patch.Justification != nil {
		req.Justification = *patch.Justification
	}
	if patch.Category != nil {
		c := *patch.Category
		req.Category = &c
	}
	if patch.Severity != nil {
		req.Severity = *patch.Severity
	}
	if patch.Project != nil {
		req.Project = *patch.Project
	}
	if patch.FigmaLink != nil {
		link := *patch.FigmaLink
		req.FigmaLink = &link
	}
	req.UpdatedAt = s.now()
	return cloneRequest(req), nil
}

// DeleteRequest removes a request. Reports false for an unknown ID.
func (s *Store) DeleteRequest(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[id]; !ok {
		return false, nil
	}
	delete(s.requests, id)
	return true, nil
}

// ---------------------------------------------------------------------------
// Audit logs
// ---------------------------------------------------------------------------

// CreateAuditLog appends an audit entry
func (s *Store) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = uuid.New().String()
	log.CreatedAt = s.now()
	entry := *log
	s.auditLogs = append(s.auditLogs, &entry)
	return nil
}

// AuditLogs returns a snapshot of the recorded audit entries, oldest first
func (s *Store) AuditLogs() []models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.AuditLog, len(s.auditLogs))
	for i, l := range s.auditLogs {
		out[i] = *l
	}
	return out
}

func cloneRequest(req *models.ComponentRequest) *models.ComponentRequest {
	out := *req
	out.RequesterID = cloneString(req.RequesterID)
	out.FigmaLink = cloneString(req.FigmaLink)
	out.FigmaFileKey = cloneString(req.FigmaFileKey)
	out.FigmaFileName = cloneString(req.FigmaFileName)
	out.FigmaNodeID = cloneString(req.FigmaNodeID)
	out.ImageData = cloneString(req.ImageData)
	if req.Category != nil {
		c := *req.Category
		out.Category = &c
	}
	if req.SelectionData != nil {
		out.SelectionData = append(models.RawJSON(nil), req.SelectionData...)
	}
	return &out
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
