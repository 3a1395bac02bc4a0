// Package models - component_request.go defines ComponentRequest, the record tracked
// through the Pending → In Progress → Completed/Denied lifecycle.
package models

import "time"

// ComponentRequest represents a request for a new UI component.
// Figma fields are only populated when Source is figma-plugin.
type ComponentRequest struct {
	ID             string        `db:"id" json:"id"` // CR0001, CR0002, ...
	RequestName    string        `db:"request_name" json:"request_name"`
	Justification  string        `db:"justification" json:"justification"`
	RequesterID    *string       `db:"requester_id" json:"requester_id"`
	RequesterName  string        `db:"requester_name" json:"requester_name"`
	RequesterEmail string        `db:"requester_email" json:"requester_email"`
	Status         RequestStatus `db:"status" json:"status"`
	DenialReason   string        `db:"denial_reason" json:"denial_reason"`
	Category       *Category     `db:"category" json:"category"`
	Severity       Severity      `db:"severity" json:"severity"`
	Project        string        `db:"project" json:"project"`
	FigmaLink      *string       `db:"figma_link" json:"figma_link"`
	FigmaFileKey   *string       `db:"figma_file_key" json:"figma_file_key"`
	FigmaFileName  *string       `db:"figma_file_name" json:"figma_file_name"`
	FigmaNodeID    *string       `db:"figma_node_id" json:"figma_node_id"`
	ImageData      *string       `db:"image_data" json:"image_data"`         // data:image/png;base64,...
	SelectionData  RawJSON       `db:"selection_data" json:"selection_data"` // opaque snapshot, stored as JSONB
	Source         Source        `db:"source" json:"source"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updated_at"`
}

// RequestFilter narrows a request listing. Zero values mean "no filter".
type RequestFilter struct {
	Status   RequestStatus
	Category Category
	Severity Severity
	Source   Source
	Query    string // case-insensitive substring over id, name, justification, requester name
	Limit    int
	Offset   int
}

// RequestPatch holds the editable fields of a request. Nil fields are left unchanged.
type RequestPatch struct {
	RequestName   *string
	Justification *string
	Category      *Category
	Severity      *Severity
	Project       *string
	FigmaLink     *string
}

// Empty reports whether the patch changes nothing
func (p RequestPatch) Empty() bool {
	return p.RequestName == nil && p.Justification == nil && p.Category == nil &&
		p.Severity == nil && p.Project == nil && p.FigmaLink == nil
}
