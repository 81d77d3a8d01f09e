package domain

import (
	"context"
	"time"

	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Store is the persistence collaborator of the lifecycle and the sweeper.
// Update persists the complaint and appends the given history entries as
// one atomic unit; concurrent updates to the same complaint must not
// interleave within that unit.
type Store interface {
	// Complaint operations
	Create(ctx context.Context, c *Complaint) error
	FindByID(ctx context.Context, id types.ID) (*Complaint, error)
	Update(ctx context.Context, c *Complaint, entries ...*StatusHistoryEntry) error
	List(ctx context.Context) ([]Complaint, error)

	// Sweeper queries
	FindUnassigned(ctx context.Context, statuses []Status) ([]Complaint, error)
	FindOverdueAssigned(ctx context.Context, officerLevel identity.OfficerLevel, now time.Time, statuses []Status) ([]Complaint, error)

	// Caller-scoped queries
	FindOwnedByUser(ctx context.Context, userID types.ID) ([]Complaint, error)
	FindByAssignedOfficer(ctx context.Context, officerID types.ID) ([]Complaint, error)

	// History operations
	AppendHistory(ctx context.Context, entry *StatusHistoryEntry) error
	History(ctx context.Context, complaintID types.ID) ([]StatusHistoryEntry, error)

	// Officer lookups
	FindUser(ctx context.Context, id types.ID) (*identity.User, error)
	FindOfficers(ctx context.Context, role identity.Role, level *identity.OfficerLevel) ([]identity.User, error)
}
