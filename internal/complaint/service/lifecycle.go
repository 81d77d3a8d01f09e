// Package service contains the complaint lifecycle business logic.
// Every operation takes the acting identity explicitly; the API layer is
// responsible for resolving and supplying it.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/events"
	"github.com/resolveit/grievance-platform/internal/shared/metrics"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Notifier is informed of every status change and decides whether and
// whom to notify. Implementations never propagate delivery failures.
type Notifier interface {
	Notify(ctx context.Context, c *domain.Complaint, oldStatus domain.Status, comment string)
}

// Lifecycle validates and applies complaint state transitions
type Lifecycle struct {
	store    domain.Store
	notifier Notifier
	bus      events.Publisher // optional; nil disables event publishing
	logger   *zap.SugaredLogger

	now func() time.Time
}

// NewLifecycle creates the complaint lifecycle service
func NewLifecycle(store domain.Store, notifier Notifier, bus events.Publisher, logger *zap.SugaredLogger) *Lifecycle {
	return &Lifecycle{
		store:    store,
		notifier: notifier,
		bus:      bus,
		logger:   logger,
		now:      time.Now,
	}
}

// Changes is the set of fields a transition may apply. Nil fields are
// left untouched.
type Changes struct {
	Status            *domain.Status
	Priority          *domain.Priority
	AssignedOfficerID *types.ID
	UnassignOfficer   bool
	DueDate           *time.Time
	ResolvedAt        *time.Time
	Comment           string
}

// Detail bundles a complaint with one of its history views
type Detail struct {
	Complaint *domain.Complaint           `json:"complaint"`
	History   []domain.StatusHistoryEntry `json:"history"`
}

// Create builds a NEW complaint. A non-system actor becomes the owner;
// with no actor the complaint is anonymous and carries only the contact
// details supplied in params.
func (l *Lifecycle) Create(ctx context.Context, params domain.NewComplaintParams, actor identity.Actor) (*domain.Complaint, error) {
	if actor.IsSystem() {
		params.Anonymous = true
		params.OwnerID = nil
	} else {
		params.Anonymous = false
		ownerID := actor.ID
		params.OwnerID = &ownerID
		params.AnonymousEmail = ""
		params.AnonymousPhone = ""
	}

	now := l.now()
	c, err := domain.NewComplaint(params, now)
	if err != nil {
		return nil, errors.Validation(err.Error(), nil)
	}

	if err := l.store.Create(ctx, c); err != nil {
		return nil, err
	}

	entry := domain.NewHistoryEntry(c.ID, c.Status, "Complaint created", actorRef(actor), false, now)
	if err := l.store.AppendHistory(ctx, entry); err != nil {
		return nil, err
	}

	metrics.RecordComplaintCreated(string(c.Category), c.IsAnonymous)
	l.publish(ctx, events.TypeComplaintCreated, c, actor)
	l.logger.Infow("complaint created", "complaint_id", c.ID, "ticket", c.TicketNumber(), "anonymous", c.IsAnonymous)

	return c, nil
}

// Transition applies a subset of changes to a complaint. Rules are
// applied in a fixed order: priority-driven due date recomputation, an
// explicit due date override, officer assignment, the resolution
// timestamp, then persistence, history and notification.
func (l *Lifecycle) Transition(ctx context.Context, id types.ID, changes Changes, actor identity.Actor) (*domain.Complaint, error) {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	now := l.now()
	oldStatus := c.Status

	statusChanged := false
	if changes.Status != nil && *changes.Status != c.Status {
		if !domain.ValidStatus(*changes.Status) {
			return nil, errors.Validation(fmt.Sprintf("unknown status %q", *changes.Status), nil)
		}
		c.Status = *changes.Status
		statusChanged = true
	}

	// Rule 1: a priority change recomputes the due date from the SLA
	// table. Rule 2: otherwise a missing due date is computed once from
	// the priority already set.
	if changes.Priority != nil {
		if !domain.ValidPriority(*changes.Priority) {
			return nil, errors.Validation(fmt.Sprintf("unknown priority %q", *changes.Priority), nil)
		}
		c.Priority = *changes.Priority
		due := domain.DueDateFromPriority(c.Priority, now)
		c.DueDate = &due
	} else if c.DueDate == nil && c.Priority != "" {
		due := domain.DueDateFromPriority(c.Priority, now)
		c.DueDate = &due
	}

	// Rule 3: an explicit due date wins over the SLA computation
	if changes.DueDate != nil {
		c.DueDate = changes.DueDate
	}

	// Rule 4: officer assignment, or an explicit unassign
	if changes.AssignedOfficerID != nil {
		officer, err := l.store.FindUser(ctx, *changes.AssignedOfficerID)
		if err != nil {
			return nil, errors.NotFound("officer", changes.AssignedOfficerID.String())
		}
		if !officer.IsOfficer() {
			return nil, errors.Validation("assigned user must be an officer or admin", nil)
		}
		officerID := officer.ID
		c.AssignedOfficerID = &officerID
	} else if changes.UnassignOfficer {
		c.AssignedOfficerID = nil
	}

	// Rule 5: an explicit resolvedAt wins; else it follows the status
	if changes.ResolvedAt != nil {
		c.ResolvedAt = changes.ResolvedAt
	} else if statusChanged {
		if domain.IsTerminal(c.Status) {
			resolved := now
			c.ResolvedAt = &resolved
		} else {
			c.ResolvedAt = nil
		}
	}

	c.UpdatedAt = now

	// Rule 6: persist, then record history when the status changed or a
	// comment was supplied
	var entries []*domain.StatusHistoryEntry
	if statusChanged || changes.Comment != "" {
		entries = append(entries, domain.NewHistoryEntry(c.ID, c.Status, changes.Comment, actorRef(actor), false, now))
	}
	if err := l.store.Update(ctx, c, entries...); err != nil {
		return nil, err
	}

	// Rule 7: hand the outcome to the dispatcher
	if statusChanged {
		metrics.RecordStatusChange(string(oldStatus), string(c.Status))
		l.notifier.Notify(ctx, c, oldStatus, changes.Comment)
		eventType := events.TypeStatusChanged
		if c.Status == domain.StatusEscalated {
			eventType = events.TypeComplaintEscalated
		}
		l.publish(ctx, eventType, c, actor)
		l.logger.Infow("complaint status changed",
			"complaint_id", c.ID, "from", oldStatus, "to", c.Status, "actor", actor.ID)
	}

	return c, nil
}

// Withdraw closes a complaint at its owner's request. Permitted only
// before processing started.
func (l *Lifecycle) Withdraw(ctx context.Context, id types.ID, actor identity.Actor) error {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsOwnedBy(actor.ID) {
		return errors.Forbidden("only the complaint owner may withdraw it")
	}
	if !c.OwnerCanModify() {
		return errors.InvalidState("cannot withdraw after processing started")
	}

	now := l.now()
	oldStatus := c.Status
	c.Status = domain.StatusClosed
	resolved := now
	c.ResolvedAt = &resolved
	c.UpdatedAt = now

	entry := domain.NewHistoryEntry(c.ID, c.Status, "Complaint withdrawn", actorRef(actor), false, now)
	if err := l.store.Update(ctx, c, entry); err != nil {
		return err
	}

	metrics.RecordStatusChange(string(oldStatus), string(c.Status))
	l.notifier.Notify(ctx, c, oldStatus, "")
	l.publish(ctx, events.TypeStatusChanged, c, actor)
	l.logger.Infow("complaint withdrawn", "complaint_id", c.ID, "actor", actor.ID)

	return nil
}

// EditParams replaces the caller-editable fields of a complaint
type EditParams struct {
	Title       string
	Description string
	Category    domain.Category
	Priority    domain.Priority
	DueDate     *time.Time
}

// Edit replaces title, description, category, priority and due date in
// place. Same ownership and status guard as Withdraw; appends no history.
func (l *Lifecycle) Edit(ctx context.Context, id types.ID, params EditParams, actor identity.Actor) (*domain.Complaint, error) {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(actor.ID) {
		return nil, errors.Forbidden("only the complaint owner may edit it")
	}
	if !c.OwnerCanModify() {
		return nil, errors.InvalidState("cannot edit after processing started")
	}
	if params.Title == "" || params.Description == "" {
		return nil, errors.Validation("title and description are required", nil)
	}
	if params.Priority != "" && !domain.ValidPriority(params.Priority) {
		return nil, errors.Validation(fmt.Sprintf("unknown priority %q", params.Priority), nil)
	}

	c.Title = params.Title
	c.Description = params.Description
	c.Category = params.Category
	c.Priority = params.Priority
	c.DueDate = params.DueDate
	c.UpdatedAt = l.now()

	if err := l.store.Update(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// Rate records the owner's rating of the handling officer. Permitted
// only after resolution, on complaints with an assigned officer.
func (l *Lifecycle) Rate(ctx context.Context, id types.ID, rating int, feedback string, actor identity.Actor) (*domain.Complaint, error) {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(actor.ID) {
		return nil, errors.Forbidden("only the complaint owner may rate it")
	}
	if !domain.ValidRating(rating) {
		return nil, errors.Validation("rating must be between 1 and 5", nil)
	}
	if !c.CanBeRated() {
		return nil, errors.InvalidState("rating is only possible after the complaint is resolved or closed")
	}

	c.OfficerRating = &rating
	c.OfficerFeedback = feedback
	c.UpdatedAt = l.now()

	if err := l.store.Update(ctx, c); err != nil {
		return nil, err
	}

	return c, nil
}

// AddInternalNote appends a staff-only history entry carrying the
// complaint's current status. Requires an assigned officer; never
// notifies the owner.
func (l *Lifecycle) AddInternalNote(ctx context.Context, id types.ID, message string, actor identity.Actor) error {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if message == "" {
		return errors.Validation("note message is required", nil)
	}
	if c.AssignedOfficerID == nil {
		return errors.InvalidState("cannot add internal note: no officer assigned")
	}

	entry := domain.NewHistoryEntry(c.ID, c.Status, message, actorRef(actor), true, l.now())
	return l.store.AppendHistory(ctx, entry)
}

// GetForStaff returns a complaint with the privileged history view
func (l *Lifecycle) GetForStaff(ctx context.Context, id types.ID) (*Detail, error) {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := l.store.History(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Complaint: c, History: domain.PrivilegedHistory(entries)}, nil
}

// GetForOwner returns a complaint with the owner-facing history view.
// Anonymous complaints are never readable through the owner path.
func (l *Lifecycle) GetForOwner(ctx context.Context, id types.ID, actor identity.Actor) (*Detail, error) {
	c, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsOwnedBy(actor.ID) {
		return nil, errors.Forbidden("not the complaint owner")
	}
	entries, err := l.store.History(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Complaint: c, History: domain.OwnerHistory(entries)}, nil
}

// ListForOwner lists the complaints owned by the acting user
func (l *Lifecycle) ListForOwner(ctx context.Context, actor identity.Actor) ([]domain.Complaint, error) {
	return l.store.FindOwnedByUser(ctx, actor.ID)
}

// ListAssigned lists the complaints assigned to an officer
func (l *Lifecycle) ListAssigned(ctx context.Context, officerID types.ID) ([]domain.Complaint, error) {
	return l.store.FindByAssignedOfficer(ctx, officerID)
}

// ListAll lists every complaint, newest first
func (l *Lifecycle) ListAll(ctx context.Context) ([]domain.Complaint, error) {
	return l.store.List(ctx)
}

func (l *Lifecycle) publish(ctx context.Context, eventType string, c *domain.Complaint, actor identity.Actor) {
	if l.bus == nil {
		return
	}
	event := events.NewEvent(eventType, "complaint", map[string]any{
		"complaint_id": c.ID,
		"ticket":       c.TicketNumber(),
		"status":       c.Status,
		"priority":     c.Priority,
	}).WithActor(actor.ID)

	// Publishing is best-effort; the transition already happened
	if err := l.bus.Publish(ctx, event); err != nil {
		l.logger.Warnw("failed to publish event", "type", eventType, "complaint_id", c.ID, "error", err)
	}
}

func actorRef(actor identity.Actor) *types.ID {
	if actor.IsSystem() {
		return nil
	}
	id := actor.ID
	return &id
}

// WithClock overrides the lifecycle clock; used by tests
func (l *Lifecycle) WithClock(now func() time.Time) *Lifecycle {
	l.now = now
	return l
}
