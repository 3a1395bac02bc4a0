// request_repository.go implements RequestRepository, providing database queries for
// component requests: sequence allocation, creation, filtered listing, status and field
// updates, and deletion.
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/component-request-system/crs/internal/db/models"
)

const requestColumns = `id, request_name, justification, requester_id, requester_name, requester_email,
	status, denial_reason, category, severity, project,
	figma_link, figma_file_key, figma_file_name, figma_node_id, image_data, selection_data,
	source, created_at, updated_at`

// RequestRepository handles component request database operations
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// NextRequestNumber allocates the next value of component_request_seq.
// nextval is atomic across sessions and never hands out the same value twice.
func (r *RequestRepository) NextRequestNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT nextval('component_request_seq')`); err != nil {
		return 0, err
	}
	return n, nil
}

// MaxRequestNumber returns the highest number among stored CR ids, or 0 when empty.
// External allocators are seeded from it so they never hand out an existing id.
func (r *RequestRepository) MaxRequestNumber(ctx context.Context) (int64, error) {
	var n int64
	query := `
		SELECT COALESCE(MAX(SUBSTRING(id FROM 3)::BIGINT), 0)
		FROM component_requests
		WHERE id ~ '^CR[0-9]+$'
	`
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, err
	}
	return n, nil
}

// CreateRequest inserts a component request. ID must already be allocated.
func (r *RequestRepository) CreateRequest(ctx context.Context, req *models.ComponentRequest) error {
	query := `
		INSERT INTO component_requests (` + requestColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
	`

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.RequestName,
		req.Justification,
		req.RequesterID,
		req.RequesterName,
		req.RequesterEmail,
		req.Status,
		req.DenialReason,
		req.Category,
		req.Severity,
		req.Project,
		req.FigmaLink,
		req.FigmaFileKey,
		req.FigmaFileName,
		req.FigmaNodeID,
		req.ImageData,
		req.SelectionData,
		req.Source,
		req.CreatedAt,
		req.UpdatedAt,
	)

	return err
}

// GetRequest retrieves a request by ID
func (r *RequestRepository) GetRequest(ctx context.Context, id string) (*models.ComponentRequest, error) {
	req := &models.ComponentRequest{}
	err := r.db.GetContext(ctx, req, `SELECT `+requestColumns+` FROM component_requests WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests retrieves requests matching filter, newest first
func (r *RequestRepository) ListRequests(ctx context.Context, filter models.RequestFilter) ([]*models.ComponentRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM component_requests WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	addEq := func(column string, value string) {
		query += fmt.Sprintf(` AND %s = $%d`, column, paramIndex)
		args = append(args, value)
		paramIndex++
	}

	if filter.Status != "" {
		addEq("status", string(filter.Status))
	}
	if filter.Category != "" {
		addEq("category", string(filter.Category))
	}
	if filter.Severity != "" {
		addEq("severity", string(filter.Severity))
	}
	if filter.Source != "" {
		addEq("source", string(filter.Source))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query += fmt.Sprintf(` AND (id ILIKE $%[1]d OR request_name ILIKE $%[1]d OR justification ILIKE $%[1]d OR requester_name ILIKE $%[1]d)`, paramIndex)
		args = append(args, "%"+escapeLike(q)+"%")
		paramIndex++
	}

	query += ` ORDER BY created_at DESC, id DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, paramIndex)
		args = append(args, filter.Limit)
		paramIndex++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, paramIndex)
		args = append(args, filter.Offset)
	}

	requests := make([]*models.ComponentRequest, 0)
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, err
	}
	return requests, nil
}

// UpdateRequestStatus sets status and denial reason in a single-row UPDATE and
// returns the updated row, or nil when no request has the given ID
func (r *RequestRepository) UpdateRequestStatus(ctx context.Context, id string, status models.RequestStatus, denialReason string) (*models.ComponentRequest, error) {
	query := `
		UPDATE component_requests
		SET status = $2, denial_reason = $3, updated_at = $4
		WHERE id = $1
		RETURNING ` + requestColumns

	req := &models.ComponentRequest{}
	err := r.db.GetContext(ctx, req, query, id, status, denialReason, time.Now())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// UpdateRequestFields applies the non-nil fields of patch and returns the updated
// row, or nil when no request has the given ID. Status is never touched here.
func (r *RequestRepository) UpdateRequestFields(ctx context.Context, id string, patch models.RequestPatch) (*models.ComponentRequest, error) {
	sets := make([]string, 0, 7)
	args := []interface{}{id}

	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf(`%s = $%d`, column, len(args)))
	}

	if patch.RequestName != nil {
		set("request_name", *patch.RequestName)
	}
	if patch.Justification != nil {
		set("justification", *patch.Justification)
	}
	if patch.Category != nil {
		set("category", string(*patch.Category))
	}
	if patch.Severity != nil {
		set("severity", string(*patch.Severity))
	}
	if patch.Project != nil {
		set("project", *patch.Project)
	}
	if patch.FigmaLink != nil {
		set("figma_link", *patch.FigmaLink)
	}
	set("updated_at", time.Now())

	query := `UPDATE component_requests SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + requestColumns

	req := &models.ComponentRequest{}
	err := r.db.GetContext(ctx, req, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// DeleteRequest hard-deletes a request. Reports false when no request has the given ID.
func (r *RequestRepository) DeleteRequest(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM component_requests WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
