// Package escalation runs the periodic sweep that moves neglected
// complaints to second-line officers.
package escalation

import (
	"math/rand"

	"github.com/resolveit/grievance-platform/internal/identity"
)

// SelectOfficer picks one officer from the pool using the given source of
// randomness. Selection is pure: the same pool and seed always yield the
// same officer, which keeps the sweep reproducible in tests.
func SelectOfficer(pool []identity.User, rng *rand.Rand) identity.User {
	if len(pool) == 1 {
		return pool[0]
	}
	return pool[rng.Intn(len(pool))]
}
