package identity

import (
	"time"

	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Role defines what a user account is allowed to do
type Role string

const (
	RoleCitizen Role = "CITIZEN"
	RoleOfficer Role = "OFFICER"
	RoleAdmin   Role = "ADMIN"
)

// OfficerLevel defines the handling tier of an officer. L1 handles
// first-line complaints, L2 receives escalations.
type OfficerLevel string

const (
	LevelL1 OfficerLevel = "L1"
	LevelL2 OfficerLevel = "L2"
)

// User is an account in the platform: a citizen, an officer or an admin
type User struct {
	ID           types.ID     `json:"id"`
	Username     string       `json:"username"`
	Email        string       `json:"email"`
	FirstName    string       `json:"first_name"`
	LastName     string       `json:"last_name"`
	Role         Role         `json:"role"`
	OfficerLevel OfficerLevel `json:"officer_level,omitempty"`
	Active       bool         `json:"active"`
	CreatedAt    time.Time    `json:"created_at"`
}

// IsOfficer reports whether the user can be assigned complaints
func (u *User) IsOfficer() bool {
	return u.Role == RoleOfficer || u.Role == RoleAdmin
}

// Actor is the acting identity threaded explicitly through every
// lifecycle operation. A zero Actor is the system itself (the sweeper).
type Actor struct {
	ID           types.ID     `json:"id"`
	Username     string       `json:"username"`
	Role         Role         `json:"role"`
	OfficerLevel OfficerLevel `json:"officer_level,omitempty"`
}

// IsSystem reports whether the action is system-driven rather than human
func (a Actor) IsSystem() bool {
	return a.ID.IsZero()
}

// ActorFor builds the acting identity of a user account
func ActorFor(u *User) Actor {
	return Actor{
		ID:           u.ID,
		Username:     u.Username,
		Role:         u.Role,
		OfficerLevel: u.OfficerLevel,
	}
}
