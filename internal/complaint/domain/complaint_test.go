package domain

import (
	"testing"
	"time"

	"github.com/resolveit/grievance-platform/internal/shared/types"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

// --- SLA Tests ---

func TestDueDateFromPriority(t *testing.T) {
	tests := []struct {
		priority Priority
		hours    int
	}{
		{PriorityUrgent, 8},
		{PriorityHigh, 12},
		{PriorityMedium, 24},
		{PriorityLow, 48},
	}

	for _, tt := range tests {
		t.Run(string(tt.priority), func(t *testing.T) {
			due := DueDateFromPriority(tt.priority, t0)
			expected := t0.Add(time.Duration(tt.hours) * time.Hour)
			if !due.Equal(expected) {
				t.Errorf("Expected due date %v, got %v", expected, due)
			}
		})
	}
}

func TestDueDateFromUnknownPriorityFallsBackToLow(t *testing.T) {
	due := DueDateFromPriority(Priority("BOGUS"), t0)
	if !due.Equal(t0.Add(48 * time.Hour)) {
		t.Errorf("Expected LOW fallback, got %v", due)
	}
}

func TestValidRating(t *testing.T) {
	for _, r := range []int{1, 3, 5} {
		if !ValidRating(r) {
			t.Errorf("Expected rating %d to be valid", r)
		}
	}
	for _, r := range []int{0, -1, 6} {
		if ValidRating(r) {
			t.Errorf("Expected rating %d to be invalid", r)
		}
	}
}

// --- Construction Tests ---

func TestNewComplaint(t *testing.T) {
	ownerID := types.NewID()
	c, err := NewComplaint(NewComplaintParams{
		Title:       "Streetlight broken on Main Road",
		Description: "The light at the corner has been out for a week",
		Category:    CategoryMunicipalCorporation,
		Priority:    PriorityHigh,
		OwnerID:     &ownerID,
	}, t0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if c.Status != StatusNew {
		t.Errorf("Expected status NEW, got %s", c.Status)
	}
	if c.DueDate == nil || !c.DueDate.Equal(t0.Add(12*time.Hour)) {
		t.Errorf("Expected HIGH due date 12h out, got %v", c.DueDate)
	}
	if c.EscalationThresholdHours != DefaultEscalationThresholdHours {
		t.Errorf("Expected default threshold, got %d", c.EscalationThresholdHours)
	}
	if c.ID.IsZero() {
		t.Error("Expected generated ID")
	}
}

func TestNewComplaintExplicitDueDateWins(t *testing.T) {
	ownerID := types.NewID()
	explicit := t0.Add(72 * time.Hour)
	c, err := NewComplaint(NewComplaintParams{
		Title:       "Water supply disruption",
		Description: "No water since Monday",
		Priority:    PriorityUrgent,
		DueDate:     &explicit,
		OwnerID:     &ownerID,
	}, t0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !c.DueDate.Equal(explicit) {
		t.Errorf("Expected explicit due date to win, got %v", c.DueDate)
	}
}

func TestNewComplaintNoPriorityNoDueDate(t *testing.T) {
	ownerID := types.NewID()
	c, err := NewComplaint(NewComplaintParams{
		Title:       "General feedback",
		Description: "Something vague",
		OwnerID:     &ownerID,
	}, t0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if c.DueDate != nil {
		t.Errorf("Expected no due date without priority, got %v", c.DueDate)
	}
}

func TestNewComplaintValidation(t *testing.T) {
	ownerID := types.NewID()
	tests := []struct {
		name   string
		params NewComplaintParams
	}{
		{"missing title", NewComplaintParams{Description: "d", OwnerID: &ownerID}},
		{"missing description", NewComplaintParams{Title: "t", OwnerID: &ownerID}},
		{"unknown priority", NewComplaintParams{Title: "t", Description: "d", Priority: "EXTREME", OwnerID: &ownerID}},
		{"anonymous with owner", NewComplaintParams{Title: "t", Description: "d", Anonymous: true, OwnerID: &ownerID}},
		{"named without owner", NewComplaintParams{Title: "t", Description: "d"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewComplaint(tt.params, t0); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestTicketNumber(t *testing.T) {
	c := &Complaint{ID: types.MustParseID("a1b2c3d4-0000-0000-0000-000000000000")}
	if got := c.TicketNumber(); got != "CMP-A1B2C3D4" {
		t.Errorf("Expected CMP-A1B2C3D4, got %s", got)
	}
}

// --- Guard Tests ---

func TestIsOwnedBy(t *testing.T) {
	ownerID := types.NewID()
	c := &Complaint{OwnerID: &ownerID}

	if !c.IsOwnedBy(ownerID) {
		t.Error("Expected owner to own the complaint")
	}
	if c.IsOwnedBy(types.NewID()) {
		t.Error("Expected stranger not to own the complaint")
	}

	anon := &Complaint{IsAnonymous: true}
	if anon.IsOwnedBy(ownerID) {
		t.Error("Expected anonymous complaint to have no owner")
	}
	if c.IsOwnedBy(types.ID("")) {
		t.Error("Expected zero ID never to own anything")
	}
}

func TestOwnerCanModify(t *testing.T) {
	tests := []struct {
		status  Status
		allowed bool
	}{
		{StatusNew, true},
		{StatusUnderReview, true},
		{StatusInProgress, false},
		{StatusResolved, false},
		{StatusClosed, false},
		{StatusEscalated, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			c := &Complaint{Status: tt.status}
			if c.OwnerCanModify() != tt.allowed {
				t.Errorf("Expected OwnerCanModify=%v for %s", tt.allowed, tt.status)
			}
		})
	}
}

func TestCanBeRated(t *testing.T) {
	officerID := types.NewID()

	c := &Complaint{Status: StatusResolved, AssignedOfficerID: &officerID}
	if !c.CanBeRated() {
		t.Error("Expected resolved complaint with officer to be ratable")
	}

	c = &Complaint{Status: StatusResolved}
	if c.CanBeRated() {
		t.Error("Expected complaint without officer not to be ratable")
	}

	c = &Complaint{Status: StatusInProgress, AssignedOfficerID: &officerID}
	if c.CanBeRated() {
		t.Error("Expected non-terminal complaint not to be ratable")
	}
}

func TestEscalationDeadline(t *testing.T) {
	c := &Complaint{CreatedAt: t0, EscalationThresholdHours: 6}
	if !c.EscalationDeadline().Equal(t0.Add(6 * time.Hour)) {
		t.Errorf("Expected deadline 6h after creation, got %v", c.EscalationDeadline())
	}

	c = &Complaint{CreatedAt: t0}
	if !c.EscalationDeadline().Equal(t0.Add(DefaultEscalationThresholdHours * time.Hour)) {
		t.Errorf("Expected default deadline, got %v", c.EscalationDeadline())
	}
}
