package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Category classifies a complaint; informational only to the lifecycle
type Category string

const (
	CategorySmartCity            Category = "SMART_CITY"
	CategoryMunicipalCorporation Category = "MUNICIPAL_CORPORATION"
	CategoryGovernmentServices   Category = "GOVERNMENT_SERVICES"
	CategoryITHelpdesk           Category = "IT_HELPDESK"
	CategoryUniversityCollege    Category = "UNIVERSITY_COLLEGE"
	CategoryCorporateSupport     Category = "CORPORATE_SUPPORT"
	CategoryHousingSociety       Category = "HOUSING_SOCIETY"
	CategoryCitizenGrievance     Category = "CITIZEN_GRIEVANCE"
)

// Priority defines complaint priority
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Status defines the lifecycle status of a complaint
type Status string

const (
	StatusNew         Status = "NEW"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusResolved    Status = "RESOLVED"
	StatusClosed      Status = "CLOSED"
	StatusEscalated   Status = "ESCALATED"
)

// DefaultEscalationThresholdHours is how long an unassigned complaint may
// sit before the sweeper escalates it, unless overridden per complaint.
const DefaultEscalationThresholdHours = 24

// slaHours maps priority to the service-level deadline in hours
var slaHours = map[Priority]int{
	PriorityUrgent: 8,
	PriorityHigh:   12,
	PriorityMedium: 24,
	PriorityLow:    48,
}

// DueDateFromPriority computes the SLA deadline for a priority from the
// given moment
func DueDateFromPriority(p Priority, now time.Time) time.Time {
	hours, ok := slaHours[p]
	if !ok {
		hours = slaHours[PriorityLow]
	}
	return now.Add(time.Duration(hours) * time.Hour)
}

// ValidPriority reports whether p is a known priority
func ValidPriority(p Priority) bool {
	_, ok := slaHours[p]
	return ok
}

// ValidStatus reports whether s is a known lifecycle status
func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusUnderReview, StatusInProgress, StatusResolved, StatusClosed, StatusEscalated:
		return true
	}
	return false
}

// ValidRating reports whether r is an acceptable officer rating
func ValidRating(r int) bool {
	return r >= 1 && r <= 5
}

// Complaint is the aggregate root of the grievance lifecycle
type Complaint struct {
	ID          types.ID `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Status      Status   `json:"status"`

	// Anonymous complaints have no owning account, only optional contact
	IsAnonymous    bool   `json:"is_anonymous"`
	AnonymousEmail string `json:"anonymous_email,omitempty"`
	AnonymousPhone string `json:"anonymous_phone,omitempty"`

	// Weak references by id; never owning pointers
	OwnerID           *types.ID `json:"owner_id,omitempty"`
	AssignedOfficerID *types.ID `json:"assigned_officer_id,omitempty"`

	DueDate    *time.Time `json:"due_date,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	OfficerRating   *int   `json:"officer_rating,omitempty"`
	OfficerFeedback string `json:"officer_feedback,omitempty"`

	EscalationThresholdHours int `json:"escalation_threshold_hours"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewComplaintParams holds the caller-supplied fields of a new complaint
type NewComplaintParams struct {
	Title                    string
	Description              string
	Category                 Category
	Priority                 Priority
	DueDate                  *time.Time
	Anonymous                bool
	AnonymousEmail           string
	AnonymousPhone           string
	OwnerID                  *types.ID
	EscalationThresholdHours int
}

// NewComplaint builds a complaint in status NEW with validation. The SLA
// due date is computed from the priority when one is given and no explicit
// due date was supplied.
func NewComplaint(p NewComplaintParams, now time.Time) (*Complaint, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("title is required")
	}
	if strings.TrimSpace(p.Description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	if p.Priority != "" && !ValidPriority(p.Priority) {
		return nil, fmt.Errorf("unknown priority %q", p.Priority)
	}
	if p.Anonymous && p.OwnerID != nil {
		return nil, fmt.Errorf("anonymous complaint cannot have an owner")
	}
	if !p.Anonymous && p.OwnerID == nil {
		return nil, fmt.Errorf("non-anonymous complaint requires an owner")
	}

	threshold := p.EscalationThresholdHours
	if threshold <= 0 {
		threshold = DefaultEscalationThresholdHours
	}

	c := &Complaint{
		ID:                       types.NewID(),
		Title:                    p.Title,
		Description:              p.Description,
		Category:                 p.Category,
		Priority:                 p.Priority,
		Status:                   StatusNew,
		IsAnonymous:              p.Anonymous,
		AnonymousEmail:           p.AnonymousEmail,
		AnonymousPhone:           p.AnonymousPhone,
		OwnerID:                  p.OwnerID,
		DueDate:                  p.DueDate,
		EscalationThresholdHours: threshold,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	if c.DueDate == nil && c.Priority != "" {
		due := DueDateFromPriority(c.Priority, now)
		c.DueDate = &due
	}

	return c, nil
}

// TicketNumber renders the human-facing reference used in notifications
func (c *Complaint) TicketNumber() string {
	s := strings.ReplaceAll(c.ID.String(), "-", "")
	if len(s) > 8 {
		s = s[:8]
	}
	return "CMP-" + strings.ToUpper(s)
}

// IsOwnedBy reports whether the given user owns this complaint. Anonymous
// complaints are owned by nobody.
func (c *Complaint) IsOwnedBy(userID types.ID) bool {
	if c.IsAnonymous || c.OwnerID == nil || userID.IsZero() {
		return false
	}
	return *c.OwnerID == userID
}

// OwnerCanModify is the shared precondition of withdraw and edit: the
// owner may act only before processing started.
func (c *Complaint) OwnerCanModify() bool {
	return c.Status == StatusNew || c.Status == StatusUnderReview
}

// CanBeRated reports whether the rating precondition holds: an officer is
// assigned and the complaint has been resolved or closed.
func (c *Complaint) CanBeRated() bool {
	return c.AssignedOfficerID != nil && IsTerminal(c.Status)
}

// IsTerminal reports whether a status carries a resolution timestamp
func IsTerminal(s Status) bool {
	return s == StatusResolved || s == StatusClosed
}

// EscalationDeadline is the moment the sweeper may escalate an unassigned
// complaint
func (c *Complaint) EscalationDeadline() time.Time {
	threshold := c.EscalationThresholdHours
	if threshold <= 0 {
		threshold = DefaultEscalationThresholdHours
	}
	return c.CreatedAt.Add(time.Duration(threshold) * time.Hour)
}

// ReadableStatus renders a status for human-facing messages
func ReadableStatus(s Status) string {
	switch s {
	case StatusNew:
		return "New"
	case StatusUnderReview:
		return "Under Review"
	case StatusInProgress:
		return "In Progress"
	case StatusResolved:
		return "Resolved"
	case StatusClosed:
		return "Closed"
	case StatusEscalated:
		return "Escalated"
	default:
		return "Unknown"
	}
}
