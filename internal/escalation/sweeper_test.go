package escalation

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/complaint/infrastructure"
	"github.com/resolveit/grievance-platform/internal/complaint/service"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

var sweepBase = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, *domain.Complaint, domain.Status, string) {}

type sweepFixture struct {
	store   *infrastructure.MemoryStore
	svc     *service.Lifecycle
	sweeper *Sweeper
	citizen identity.Actor
	l1      identity.User
	l2a     identity.User
	l2b     identity.User
	clock   *time.Time
}

func newSweepFixture(t *testing.T, withL2 bool) *sweepFixture {
	t.Helper()
	store := infrastructure.NewMemoryStore()

	citizenUser := identity.User{ID: types.NewID(), Username: "citizen", Email: "c@example.org", Role: identity.RoleCitizen, Active: true}
	l1 := identity.User{ID: types.NewID(), Username: "l1.officer", Email: "l1@example.org", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL1, Active: true}
	store.AddUser(&citizenUser)
	store.AddUser(&l1)

	f := &sweepFixture{store: store, citizen: identity.ActorFor(&citizenUser), l1: l1}
	if withL2 {
		f.l2a = identity.User{ID: types.NewID(), Username: "l2.alpha", Email: "a@example.org", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL2, Active: true}
		f.l2b = identity.User{ID: types.NewID(), Username: "l2.beta", Email: "b@example.org", Role: identity.RoleOfficer, OfficerLevel: identity.LevelL2, Active: true}
		store.AddUser(&f.l2a)
		store.AddUser(&f.l2b)
	}

	now := sweepBase
	f.clock = &now
	clock := func() time.Time { return *f.clock }

	logger := zap.NewNop().Sugar()
	f.svc = service.NewLifecycle(store, noopNotifier{}, nil, logger).WithClock(clock)
	f.sweeper = NewSweeper(store, f.svc, time.Hour, rand.New(rand.NewSource(1)), logger).WithClock(clock)
	return f
}

func (f *sweepFixture) file(t *testing.T, priority domain.Priority, thresholdHours int) *domain.Complaint {
	t.Helper()
	c, err := f.svc.Create(context.Background(), domain.NewComplaintParams{
		Title:                    "Noise complaint",
		Description:              "Construction at night",
		Priority:                 priority,
		EscalationThresholdHours: thresholdHours,
	}, f.citizen)
	require.NoError(t, err)
	return c
}

func (f *sweepFixture) reload(t *testing.T, id types.ID) *domain.Complaint {
	t.Helper()
	c, err := f.store.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c
}

// --- Rule A: stale unassigned complaints ---

func TestSweepEscalatesStaleUnassigned(t *testing.T) {
	f := newSweepFixture(t, true)
	c := f.file(t, "", 24)

	// One second before the threshold nothing happens
	*f.clock = sweepBase.Add(24*time.Hour - time.Second)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))
	assert.Equal(t, domain.StatusNew, f.reload(t, c.ID).Status)

	// At the threshold the complaint moves to an L2 officer
	*f.clock = sweepBase.Add(24 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))

	got := f.reload(t, c.ID)
	assert.Equal(t, domain.StatusEscalated, got.Status)
	require.NotNil(t, got.AssignedOfficerID)
	assert.Contains(t, []types.ID{f.l2a.ID, f.l2b.ID}, *got.AssignedOfficerID)

	entries, err := f.store.History(context.Background(), c.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	assert.Equal(t, domain.StatusEscalated, last.Status)
	assert.Nil(t, last.ChangedByID, "sweeper acts as the system")
	assert.Contains(t, last.Comment, "after 24 hours without assignment")
}

func TestSweepHonorsPerComplaintThreshold(t *testing.T) {
	f := newSweepFixture(t, true)
	c := f.file(t, "", 6)

	*f.clock = sweepBase.Add(6 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))
	assert.Equal(t, domain.StatusEscalated, f.reload(t, c.ID).Status)
}

func TestSweepSkipsAssignedAndTerminalComplaints(t *testing.T) {
	f := newSweepFixture(t, true)

	assigned := f.file(t, "", 24)
	l1ID := f.l1.ID
	_, err := f.svc.Transition(context.Background(), assigned.ID, service.Changes{AssignedOfficerID: &l1ID}, identity.Actor{})
	require.NoError(t, err)

	resolved := f.file(t, "", 24)
	status := domain.StatusResolved
	_, err = f.svc.Transition(context.Background(), resolved.ID, service.Changes{Status: &status}, identity.Actor{})
	require.NoError(t, err)

	*f.clock = sweepBase.Add(48 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))

	assert.Equal(t, domain.StatusNew, f.reload(t, assigned.ID).Status, "assigned complaints are not stale")
	assert.Equal(t, domain.StatusResolved, f.reload(t, resolved.ID).Status)
}

// --- Rule B: overdue assigned complaints ---

func TestSweepEscalatesOverdueL1Assigned(t *testing.T) {
	f := newSweepFixture(t, true)
	c := f.file(t, domain.PriorityUrgent, 0) // due in 8 hours

	l1ID := f.l1.ID
	status := domain.StatusInProgress
	_, err := f.svc.Transition(context.Background(), c.ID, service.Changes{
		Status:            &status,
		AssignedOfficerID: &l1ID,
	}, identity.Actor{})
	require.NoError(t, err)

	// Still within the deadline
	*f.clock = sweepBase.Add(8 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))
	assert.Equal(t, domain.StatusInProgress, f.reload(t, c.ID).Status)

	// Past the deadline the L1 officer loses the case
	*f.clock = sweepBase.Add(8*time.Hour + time.Second)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))

	got := f.reload(t, c.ID)
	assert.Equal(t, domain.StatusEscalated, got.Status)
	require.NotNil(t, got.AssignedOfficerID)
	assert.NotEqual(t, f.l1.ID, *got.AssignedOfficerID)
}

func TestSweepLeavesOverdueL2AssignedAlone(t *testing.T) {
	f := newSweepFixture(t, true)
	c := f.file(t, domain.PriorityUrgent, 0)

	l2ID := f.l2a.ID
	_, err := f.svc.Transition(context.Background(), c.ID, service.Changes{AssignedOfficerID: &l2ID}, identity.Actor{})
	require.NoError(t, err)

	*f.clock = sweepBase.Add(48 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))

	got := f.reload(t, c.ID)
	assert.Equal(t, l2ID, *got.AssignedOfficerID, "already at L2, nowhere further to go")
	assert.NotEqual(t, domain.StatusEscalated, got.Status)
}

// --- Pool handling and idempotency ---

func TestSweepSkipsEntirelyWithoutL2Officers(t *testing.T) {
	f := newSweepFixture(t, false)
	c := f.file(t, "", 24)

	*f.clock = sweepBase.Add(48 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))

	got := f.reload(t, c.ID)
	assert.Equal(t, domain.StatusNew, got.Status)
	assert.Nil(t, got.AssignedOfficerID)
}

func TestSweepIsIdempotent(t *testing.T) {
	f := newSweepFixture(t, true)
	c := f.file(t, "", 24)

	*f.clock = sweepBase.Add(24 * time.Hour)
	require.NoError(t, f.sweeper.RunSweep(context.Background()))
	require.NoError(t, f.sweeper.RunSweep(context.Background()))

	entries, err := f.store.History(context.Background(), c.ID)
	require.NoError(t, err)

	escalations := 0
	for _, e := range entries {
		if e.Status == domain.StatusEscalated {
			escalations++
		}
	}
	assert.Equal(t, 1, escalations, "a complaint escalates once")
}

// --- Manual escalation ---

func TestManualEscalate(t *testing.T) {
	f := newSweepFixture(t, true)
	c := f.file(t, domain.PriorityMedium, 24)
	adminUser := identity.User{ID: types.NewID(), Username: "admin", Email: "x@example.org", Role: identity.RoleAdmin, Active: true}
	f.store.AddUser(&adminUser)
	admin := identity.ActorFor(&adminUser)

	// L1 target rejected
	_, err := f.sweeper.Escalate(context.Background(), c.ID, f.l1.ID, admin)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrValidation)

	got, err := f.sweeper.Escalate(context.Background(), c.ID, f.l2b.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, got.Status)
	require.NotNil(t, got.AssignedOfficerID)
	assert.Equal(t, f.l2b.ID, *got.AssignedOfficerID)

	entries, err := f.store.History(context.Background(), c.ID)
	require.NoError(t, err)
	last := entries[len(entries)-1]
	require.NotNil(t, last.ChangedByID, "manual escalation records the admin")
	assert.Equal(t, admin.ID, *last.ChangedByID)
}

// --- Selection ---

func TestSelectOfficerIsDeterministicPerSeed(t *testing.T) {
	pool := []identity.User{
		{ID: types.NewID(), Username: "a"},
		{ID: types.NewID(), Username: "b"},
		{ID: types.NewID(), Username: "c"},
	}

	first := SelectOfficer(pool, rand.New(rand.NewSource(7)))
	second := SelectOfficer(pool, rand.New(rand.NewSource(7)))
	assert.Equal(t, first.ID, second.ID)

	single := []identity.User{pool[0]}
	assert.Equal(t, pool[0].ID, SelectOfficer(single, rand.New(rand.NewSource(99))).ID)
}
