package escalation

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/complaint/service"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/metrics"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// staleStatuses are the statuses in which an unassigned complaint counts
// as neglected; overdueStatuses are the statuses in which an assigned
// complaint can still miss its deadline.
var (
	staleStatuses   = []domain.Status{domain.StatusNew, domain.StatusUnderReview}
	overdueStatuses = []domain.Status{domain.StatusNew, domain.StatusUnderReview, domain.StatusInProgress}
)

// Sweeper periodically escalates neglected complaints to L2 officers.
// Every escalation goes through the regular lifecycle transition, so
// history, notifications and events come for free.
type Sweeper struct {
	store     domain.Store
	lifecycle *service.Lifecycle
	logger    *zap.SugaredLogger
	interval  time.Duration
	rng       *rand.Rand

	// running guards against overlapping sweeps when a run outlasts the
	// tick interval
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	now func() time.Time
}

// NewSweeper creates an escalation sweeper. The random source drives
// officer selection and is injected so tests can seed it.
func NewSweeper(store domain.Store, lifecycle *service.Lifecycle, interval time.Duration, rng *rand.Rand, logger *zap.SugaredLogger) *Sweeper {
	return &Sweeper{
		store:     store,
		lifecycle: lifecycle,
		logger:    logger,
		interval:  interval,
		rng:       rng,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		now:       time.Now,
	}
}

// Start runs the sweep loop until Stop is called or the context ends.
// The first sweep happens after one full interval.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Infow("escalation sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
			if err := s.RunSweep(ctx); err != nil {
				s.logger.Errorw("escalation sweep failed", "error", err)
			}
		case <-s.stop:
			s.logger.Info("escalation sweeper stopping")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit and waits for the in-flight sweep
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// RunSweep executes one sweep: stale unassigned complaints first, then
// overdue L1-assigned ones. A sweep already in flight makes this call a
// no-op. Failures on individual complaints are logged and do not stop
// the rest of the sweep.
func (s *Sweeper) RunSweep(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping sweep: previous sweep still running")
		metrics.RecordSweep("skipped_overlap", 0)
		return nil
	}
	defer s.running.Store(false)

	started := s.now()

	// The L2 pool is snapshotted once per sweep; every escalation in
	// this run draws from the same pool
	level := identity.LevelL2
	pool, err := s.store.FindOfficers(ctx, identity.RoleOfficer, &level)
	if err != nil {
		metrics.RecordSweep("failed", s.now().Sub(started))
		return fmt.Errorf("loading L2 officer pool: %w", err)
	}
	if len(pool) == 0 {
		s.logger.Warn("skipping sweep: no L2 officers available for escalation")
		metrics.RecordSweep("skipped_no_l2", s.now().Sub(started))
		return nil
	}

	now := s.now()
	escalated := s.sweepStaleUnassigned(ctx, pool, now)
	escalated += s.sweepOverdueAssigned(ctx, pool, now)

	duration := s.now().Sub(started)
	metrics.RecordSweep("completed", duration)
	s.logger.Infow("escalation sweep completed", "escalated", escalated, "pool_size", len(pool), "duration", duration)
	return nil
}

// sweepStaleUnassigned escalates complaints that sat unassigned past
// their escalation threshold
func (s *Sweeper) sweepStaleUnassigned(ctx context.Context, pool []identity.User, now time.Time) int {
	complaints, err := s.store.FindUnassigned(ctx, staleStatuses)
	if err != nil {
		s.logger.Errorw("failed to load unassigned complaints", "error", err)
		return 0
	}

	count := 0
	for i := range complaints {
		c := &complaints[i]
		if now.Before(c.EscalationDeadline()) {
			continue
		}
		officer := SelectOfficer(pool, s.rng)
		comment := fmt.Sprintf("Complaint auto-escalated to L2 officer %s after %d hours without assignment",
			officer.Username, c.EscalationThresholdHours)
		if err := s.escalate(ctx, c.ID, officer, comment); err != nil {
			s.logger.Errorw("failed to escalate stale complaint",
				"complaint_id", c.ID, "ticket", c.TicketNumber(), "error", err)
			continue
		}
		metrics.RecordEscalation("stale_unassigned")
		count++
	}
	return count
}

// sweepOverdueAssigned escalates complaints whose L1 officer missed the
// due date
func (s *Sweeper) sweepOverdueAssigned(ctx context.Context, pool []identity.User, now time.Time) int {
	complaints, err := s.store.FindOverdueAssigned(ctx, identity.LevelL1, now, overdueStatuses)
	if err != nil {
		s.logger.Errorw("failed to load overdue complaints", "error", err)
		return 0
	}

	count := 0
	for i := range complaints {
		c := &complaints[i]
		officer := SelectOfficer(pool, s.rng)
		comment := fmt.Sprintf("Complaint auto-escalated to L2 officer %s: resolution deadline missed by assigned officer",
			officer.Username)
		if err := s.escalate(ctx, c.ID, officer, comment); err != nil {
			s.logger.Errorw("failed to escalate overdue complaint",
				"complaint_id", c.ID, "ticket", c.TicketNumber(), "error", err)
			continue
		}
		metrics.RecordEscalation("overdue_assigned")
		count++
	}
	return count
}

func (s *Sweeper) escalate(ctx context.Context, id types.ID, officer identity.User, comment string) error {
	status := domain.StatusEscalated
	officerID := officer.ID
	// Zero actor: the change is recorded as system-driven
	_, err := s.lifecycle.Transition(ctx, id, service.Changes{
		Status:            &status,
		AssignedOfficerID: &officerID,
		Comment:           comment,
	}, identity.Actor{})
	return err
}

// Escalate reassigns a complaint to a chosen L2 officer on an admin's
// request, outside the periodic sweep
func (s *Sweeper) Escalate(ctx context.Context, complaintID, targetOfficerID types.ID, actor identity.Actor) (*domain.Complaint, error) {
	target, err := s.store.FindUser(ctx, targetOfficerID)
	if err != nil {
		return nil, err
	}
	if target.Role != identity.RoleOfficer || target.OfficerLevel != identity.LevelL2 {
		return nil, errors.Validation("escalation target must be an L2 officer", nil)
	}

	status := domain.StatusEscalated
	c, err := s.lifecycle.Transition(ctx, complaintID, service.Changes{
		Status:            &status,
		AssignedOfficerID: &targetOfficerID,
		Comment:           fmt.Sprintf("Complaint manually escalated to L2 officer %s", target.Username),
	}, actor)
	if err != nil {
		return nil, err
	}
	metrics.RecordEscalation("manual")
	return c, nil
}

// WithClock overrides the sweeper clock; used by tests
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}
