// Package notification delivers best-effort status-change mail to the
// complaint's owner or anonymous contact. Delivery failures are logged
// and never propagate into the lifecycle or the sweep.
package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/metrics"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Email is an outbound message
type Email struct {
	To      string
	From    string
	Subject string
	Body    string
}

// EmailProvider sends outbound mail
type EmailProvider interface {
	Send(ctx context.Context, email Email) error
}

// UserFinder resolves the owner's registered contact address
type UserFinder interface {
	FindByID(ctx context.Context, id types.ID) (*identity.User, error)
}

// Dispatcher decides whether and whom to notify on a status change
type Dispatcher struct {
	provider EmailProvider
	users    UserFinder
	from     string
	logger   *zap.SugaredLogger
}

// NewDispatcher creates a notification dispatcher
func NewDispatcher(provider EmailProvider, users UserFinder, from string, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{provider: provider, users: users, from: from, logger: logger}
}

// notifiable statuses; transitions into NEW or CLOSED never notify
var notifiable = map[domain.Status]bool{
	domain.StatusUnderReview: true,
	domain.StatusInProgress:  true,
	domain.StatusResolved:    true,
	domain.StatusEscalated:   true,
}

// Notify sends a status-change mail. It is a no-op when the status did
// not change or the new status is not a tracked one; when no recipient
// address resolves it silently skips; a delivery failure is logged and
// swallowed.
func (d *Dispatcher) Notify(ctx context.Context, c *domain.Complaint, oldStatus domain.Status, comment string) {
	if c == nil {
		return
	}

	newStatus := c.Status
	if newStatus == "" || newStatus == oldStatus {
		return
	}
	if !notifiable[newStatus] {
		return
	}

	recipient := d.resolveRecipient(ctx, c)
	if recipient == "" {
		d.logger.Warnw("skipping status-change mail: no recipient address",
			"complaint_id", c.ID, "ticket", c.TicketNumber())
		metrics.RecordNotification("skipped")
		return
	}

	email := Email{
		To:      recipient,
		From:    d.from,
		Subject: fmt.Sprintf("Update on your complaint %s: %s", c.TicketNumber(), domain.ReadableStatus(newStatus)),
		Body:    buildBody(c, oldStatus, newStatus, comment),
	}

	if err := d.provider.Send(ctx, email); err != nil {
		d.logger.Errorw("failed to send status-change mail",
			"complaint_id", c.ID, "recipient", recipient, "error", err)
		metrics.RecordNotification("failed")
		return
	}

	metrics.RecordNotification("sent")
	d.logger.Infow("sent status-change mail", "complaint_id", c.ID, "recipient", recipient, "status", newStatus)
}

// resolveRecipient returns the owner's registered email for named
// complaints, or the anonymous contact for anonymous ones
func (d *Dispatcher) resolveRecipient(ctx context.Context, c *domain.Complaint) string {
	if c.IsAnonymous {
		return c.AnonymousEmail
	}
	if c.OwnerID == nil {
		return ""
	}
	owner, err := d.users.FindByID(ctx, *c.OwnerID)
	if err != nil {
		d.logger.Warnw("failed to resolve complaint owner", "complaint_id", c.ID, "error", err)
		return ""
	}
	return owner.Email
}

func buildBody(c *domain.Complaint, oldStatus, newStatus domain.Status, comment string) string {
	var sb strings.Builder
	sb.WriteString("Dear Citizen,\n\n")
	sb.WriteString("This is to inform you that the status of your complaint has been updated.\n\n")
	sb.WriteString("Complaint Ticket: " + c.TicketNumber() + "\n")
	sb.WriteString("Title: " + c.Title + "\n")
	if oldStatus != "" {
		sb.WriteString("Previous Status: " + domain.ReadableStatus(oldStatus) + "\n")
	}
	sb.WriteString("Current Status: " + domain.ReadableStatus(newStatus) + "\n\n")
	if comment != "" {
		sb.WriteString("Message from the administration/officer:\n")
		sb.WriteString(comment + "\n\n")
	}
	sb.WriteString("You can log in to the portal to view more details about your complaint.\n\n")
	sb.WriteString("Regards,\nResolveIT Grievance Management")
	return sb.String()
}
