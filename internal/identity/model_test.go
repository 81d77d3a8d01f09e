package identity

import (
	"testing"

	"github.com/resolveit/grievance-platform/internal/shared/types"
)

func TestIsOfficer(t *testing.T) {
	tests := []struct {
		role     Role
		expected bool
	}{
		{RoleCitizen, false},
		{RoleOfficer, true},
		{RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			u := &User{Role: tt.role}
			if u.IsOfficer() != tt.expected {
				t.Errorf("Expected IsOfficer=%v for %s", tt.expected, tt.role)
			}
		})
	}
}

func TestActorFor(t *testing.T) {
	u := &User{
		ID:           types.NewID(),
		Username:     "officer.l2",
		Role:         RoleOfficer,
		OfficerLevel: LevelL2,
	}

	actor := ActorFor(u)
	if actor.ID != u.ID || actor.Username != u.Username {
		t.Error("Expected actor to carry the user's identity")
	}
	if actor.IsSystem() {
		t.Error("Expected a user-backed actor not to be the system")
	}
}

func TestZeroActorIsSystem(t *testing.T) {
	var actor Actor
	if !actor.IsSystem() {
		t.Error("Expected the zero actor to be the system")
	}
}
