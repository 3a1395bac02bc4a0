// Package models - enums.go holds the closed vocabularies used by users and
// component requests. Values are stored and serialized exactly as written here.
package models

// Role is a user's role in the request workflow
type Role string

const (
	RoleRequester Role = "Requester"
	RoleCreator   Role = "Creator"
	RoleAdmin     Role = "Admin"
)

// Roles lists every valid role
var Roles = []Role{RoleRequester, RoleCreator, RoleAdmin}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, v := range Roles {
		if r == v {
			return true
		}
	}
	return false
}

// RequestStatus is the lifecycle state of a component request
type RequestStatus string

const (
	StatusPending    RequestStatus = "Pending"
	StatusInProgress RequestStatus = "In Progress"
	StatusCompleted  RequestStatus = "Completed"
	StatusDenied     RequestStatus = "Denied"
)

// RequestStatuses lists every valid status
var RequestStatuses = []RequestStatus{StatusPending, StatusInProgress, StatusCompleted, StatusDenied}

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	for _, v := range RequestStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Severity is how urgently a requested component is needed
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
	SeverityUrgent Severity = "Urgent"
)

// Severities lists every valid severity
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityUrgent}

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	for _, v := range Severities {
		if s == v {
			return true
		}
	}
	return false
}

// Category groups requested components by UI purpose
type Category string

const (
	CategoryForm       Category = "Form"
	CategoryNavigation Category = "Navigation"
	CategoryDisplay    Category = "Display"
	CategoryInput      Category = "Input"
	CategoryLayout     Category = "Layout"
)

// Categories lists every valid category
var Categories = []Category{CategoryForm, CategoryNavigation, CategoryDisplay, CategoryInput, CategoryLayout}

// Valid reports whether c is a known category
func (c Category) Valid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Source records where a request was submitted from
type Source string

const (
	SourceManual      Source = "manual"
	SourceFigmaPlugin Source = "figma-plugin"
)

// Valid reports whether s is a known source
func (s Source) Valid() bool {
	return s == SourceManual || s == SourceFigmaPlugin
}
