package domain

import (
	"sort"
	"time"

	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// StatusHistoryEntry is an append-only audit record owned by exactly one
// complaint. Entries are immutable once written.
type StatusHistoryEntry struct {
	ID          types.ID  `json:"id"`
	ComplaintID types.ID  `json:"complaint_id"`
	Status      Status    `json:"status"`
	Comment     string    `json:"comment,omitempty"`
	ChangedByID *types.ID `json:"changed_by_id,omitempty"`
	ChangedAt   time.Time `json:"changed_at"`

	// InternalNote marks entries hidden from the complaint owner's view
	InternalNote bool `json:"internal_note"`
}

// NewHistoryEntry builds a history entry. A nil actor id records a
// system-driven change (auto-escalation).
func NewHistoryEntry(complaintID types.ID, status Status, comment string, actorID *types.ID, internal bool, at time.Time) *StatusHistoryEntry {
	return &StatusHistoryEntry{
		ID:           types.NewID(),
		ComplaintID:  complaintID,
		Status:       status,
		Comment:      comment,
		ChangedByID:  actorID,
		ChangedAt:    at,
		InternalNote: internal,
	}
}

// PrivilegedHistory is the staff-facing view: every entry, oldest first.
func PrivilegedHistory(entries []StatusHistoryEntry) []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, len(entries))
	copy(out, entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangedAt.Before(out[j].ChangedAt)
	})
	return out
}

// OwnerHistory is the owner-facing view: internal notes removed, newest
// first. The asymmetry with PrivilegedHistory is deliberate.
func OwnerHistory(entries []StatusHistoryEntry) []StatusHistoryEntry {
	out := make([]StatusHistoryEntry, 0, len(entries))
	for _, e := range entries {
		if e.InternalNote {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ChangedAt.After(out[j].ChangedAt)
	})
	return out
}
