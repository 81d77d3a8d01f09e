// Package legacy imports open tickets from the retired SQL Server
// helpdesk into the grievance platform. Imported tickets become anonymous
// complaints carrying the filer's contact details; the legacy system is
// read-only from our side.
package legacy

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/complaint/service"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/config"
)

// Ticket is a row from the legacy helpdesk
type Ticket struct {
	LegacyID    int64
	Subject     string
	Body        string
	Email       string
	Phone       string
	Priority    string
	CreatedAt   time.Time
}

// Importer reads open legacy tickets and files them as complaints
type Importer struct {
	db        *sql.DB
	cfg       config.LegacyConfig
	lifecycle *service.Lifecycle
	logger    *zap.SugaredLogger
}

// NewImporter connects to the legacy helpdesk database
func NewImporter(cfg config.LegacyConfig, lifecycle *service.Lifecycle, logger *zap.SugaredLogger) (*Importer, error) {
	connStr := fmt.Sprintf("server=%s;port=%d;database=%s;user id=%s;password=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password)

	db, err := sql.Open("sqlserver", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening legacy helpdesk connection: %w", err)
	}

	return &Importer{db: db, cfg: cfg, lifecycle: lifecycle, logger: logger}, nil
}

// Close releases the legacy database connection
func (i *Importer) Close() error {
	return i.db.Close()
}

// Run imports every open ticket. Failures on individual tickets are
// logged and skipped; the import reports only how far it got.
func (i *Importer) Run(ctx context.Context) (int, error) {
	tickets, err := i.fetchOpenTickets(ctx)
	if err != nil {
		return 0, err
	}

	imported := 0
	for _, t := range tickets {
		if err := i.importTicket(ctx, t); err != nil {
			i.logger.Errorw("failed to import legacy ticket", "legacy_id", t.LegacyID, "error", err)
			continue
		}
		imported++
	}

	i.logger.Infow("legacy import finished", "fetched", len(tickets), "imported", imported)
	return imported, nil
}

func (i *Importer) fetchOpenTickets(ctx context.Context) ([]Ticket, error) {
	query := fmt.Sprintf(`
		SELECT TicketID, Subject, Body,
		       COALESCE(ContactEmail, ''), COALESCE(ContactPhone, ''),
		       COALESCE(Priority, 'LOW'), CreatedAt
		FROM %s
		WHERE Status = 'OPEN'
		ORDER BY CreatedAt`, i.cfg.Table)

	rows, err := i.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying legacy tickets: %w", err)
	}
	defer rows.Close()

	var tickets []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.LegacyID, &t.Subject, &t.Body, &t.Email, &t.Phone, &t.Priority, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning legacy ticket: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (i *Importer) importTicket(ctx context.Context, t Ticket) error {
	_, err := i.lifecycle.Create(ctx, domain.NewComplaintParams{
		Title:          t.Subject,
		Description:    fmt.Sprintf("%s\n\n[Imported from legacy helpdesk, ticket #%d]", t.Body, t.LegacyID),
		Category:       domain.CategoryITHelpdesk,
		Priority:       mapPriority(t.Priority),
		AnonymousEmail: t.Email,
		AnonymousPhone: t.Phone,
	}, identity.Actor{})
	return err
}

// mapPriority folds the legacy priority scheme onto ours; anything
// unrecognized files as LOW
func mapPriority(p string) domain.Priority {
	switch p {
	case "CRITICAL", "URGENT":
		return domain.PriorityUrgent
	case "HIGH":
		return domain.PriorityHigh
	case "MEDIUM", "NORMAL":
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
