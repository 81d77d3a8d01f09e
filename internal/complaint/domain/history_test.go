package domain

import (
	"testing"
	"time"

	"github.com/resolveit/grievance-platform/internal/shared/types"
)

func historyFixture(complaintID types.ID) []StatusHistoryEntry {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	actorID := types.NewID()
	return []StatusHistoryEntry{
		*NewHistoryEntry(complaintID, StatusNew, "Complaint created", &actorID, false, base),
		*NewHistoryEntry(complaintID, StatusUnderReview, "Taking a look", &actorID, false, base.Add(time.Hour)),
		*NewHistoryEntry(complaintID, StatusUnderReview, "Citizen has called three times", &actorID, true, base.Add(2*time.Hour)),
		*NewHistoryEntry(complaintID, StatusResolved, "Fixed", &actorID, false, base.Add(3*time.Hour)),
	}
}

func TestPrivilegedHistoryKeepsEverythingAscending(t *testing.T) {
	entries := historyFixture(types.NewID())
	// Scramble the input to prove the view sorts
	scrambled := []StatusHistoryEntry{entries[2], entries[0], entries[3], entries[1]}

	view := PrivilegedHistory(scrambled)
	if len(view) != 4 {
		t.Fatalf("Expected 4 entries, got %d", len(view))
	}
	for i := 1; i < len(view); i++ {
		if view[i].ChangedAt.Before(view[i-1].ChangedAt) {
			t.Errorf("Expected ascending order at index %d", i)
		}
	}

	internal := 0
	for _, e := range view {
		if e.InternalNote {
			internal++
		}
	}
	if internal != 1 {
		t.Errorf("Expected internal note retained, got %d", internal)
	}
}

func TestOwnerHistoryFiltersInternalDescending(t *testing.T) {
	entries := historyFixture(types.NewID())

	view := OwnerHistory(entries)
	if len(view) != 3 {
		t.Fatalf("Expected internal note filtered out, got %d entries", len(view))
	}
	for _, e := range view {
		if e.InternalNote {
			t.Error("Expected no internal notes in owner view")
		}
	}
	for i := 1; i < len(view); i++ {
		if view[i].ChangedAt.After(view[i-1].ChangedAt) {
			t.Errorf("Expected descending order at index %d", i)
		}
	}
}

func TestHistoryViewsDoNotMutateInput(t *testing.T) {
	entries := historyFixture(types.NewID())
	first := entries[0].ID

	_ = OwnerHistory(entries)
	_ = PrivilegedHistory(entries)

	if entries[0].ID != first || len(entries) != 4 {
		t.Error("Expected views to leave the input untouched")
	}
}
