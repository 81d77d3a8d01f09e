// Package infrastructure provides the persistence implementations of the
// complaint store.
package infrastructure

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/resolveit/grievance-platform/internal/complaint/domain"
	"github.com/resolveit/grievance-platform/internal/identity"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

const complaintColumns = `
	id, title, description, category, priority, status,
	is_anonymous, COALESCE(anonymous_email, ''), COALESCE(anonymous_phone, ''),
	owner_id, assigned_officer_id, due_date, resolved_at,
	officer_rating, COALESCE(officer_feedback, ''),
	escalation_threshold_hours, created_at, updated_at`

const complaintColumnsPrefixed = `
	c.id, c.title, c.description, c.category, c.priority, c.status,
	c.is_anonymous, COALESCE(c.anonymous_email, ''), COALESCE(c.anonymous_phone, ''),
	c.owner_id, c.assigned_officer_id, c.due_date, c.resolved_at,
	c.officer_rating, COALESCE(c.officer_feedback, ''),
	c.escalation_threshold_hours, c.created_at, c.updated_at`

// PostgresStore persists complaints and their status history in Postgres
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed complaint store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Create inserts a new complaint
func (s *PostgresStore) Create(ctx context.Context, c *domain.Complaint) error {
	query := `
		INSERT INTO complaints (
			id, title, description, category, priority, status,
			is_anonymous, anonymous_email, anonymous_phone,
			owner_id, assigned_officer_id, due_date, resolved_at,
			officer_rating, officer_feedback,
			escalation_threshold_hours, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''),
		          $10, $11, $12, $13, $14, NULLIF($15, ''), $16, $17, $18)`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.Title, c.Description, c.Category, c.Priority, c.Status,
		c.IsAnonymous, c.AnonymousEmail, c.AnonymousPhone,
		c.OwnerID, c.AssignedOfficerID, c.DueDate, c.ResolvedAt,
		c.OfficerRating, c.OfficerFeedback,
		c.EscalationThresholdHours, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create complaint")
	}
	return nil
}

// FindByID retrieves a complaint by ID
func (s *PostgresStore) FindByID(ctx context.Context, id types.ID) (*domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE id = $1`

	c := &domain.Complaint{}
	err := s.pool.QueryRow(ctx, query, id).Scan(scanTargets(c)...)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("complaint", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find complaint")
	}
	return c, nil
}

// Update persists the complaint and appends the given history entries in
// one transaction
func (s *PostgresStore) Update(ctx context.Context, c *domain.Complaint, entries ...*domain.StatusHistoryEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE complaints SET
			title = $2, description = $3, category = $4, priority = $5, status = $6,
			anonymous_email = NULLIF($7, ''), anonymous_phone = NULLIF($8, ''),
			assigned_officer_id = $9, due_date = $10, resolved_at = $11,
			officer_rating = $12, officer_feedback = NULLIF($13, ''),
			escalation_threshold_hours = $14, updated_at = $15
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query,
		c.ID, c.Title, c.Description, c.Category, c.Priority, c.Status,
		c.AnonymousEmail, c.AnonymousPhone,
		c.AssignedOfficerID, c.DueDate, c.ResolvedAt,
		c.OfficerRating, c.OfficerFeedback,
		c.EscalationThresholdHours, c.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update complaint")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("complaint", c.ID.String())
	}

	for _, entry := range entries {
		if err := insertHistory(ctx, tx, entry); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit complaint update")
	}
	return nil
}

// List returns every complaint, newest first
func (s *PostgresStore) List(ctx context.Context) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints ORDER BY created_at DESC`
	return s.queryMany(ctx, query)
}

// FindUnassigned returns complaints without an assigned officer in the
// given statuses, oldest first
func (s *PostgresStore) FindUnassigned(ctx context.Context, statuses []domain.Status) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + `
		FROM complaints
		WHERE assigned_officer_id IS NULL AND status = ANY($1)
		ORDER BY created_at`
	return s.queryMany(ctx, query, statusStrings(statuses))
}

// FindOverdueAssigned returns complaints assigned to an officer of the
// given level whose due date has passed, oldest first
func (s *PostgresStore) FindOverdueAssigned(ctx context.Context, officerLevel identity.OfficerLevel, now time.Time, statuses []domain.Status) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumnsPrefixed + `
		FROM complaints c
		JOIN users u ON u.id = c.assigned_officer_id
		WHERE u.officer_level = $1
		  AND c.due_date IS NOT NULL AND c.due_date < $2
		  AND c.status = ANY($3)
		ORDER BY c.due_date`
	return s.queryMany(ctx, query, officerLevel, now, statusStrings(statuses))
}

// FindOwnedByUser returns the complaints owned by a user, newest first
func (s *PostgresStore) FindOwnedByUser(ctx context.Context, userID types.ID) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE owner_id = $1 ORDER BY created_at DESC`
	return s.queryMany(ctx, query, userID)
}

// FindByAssignedOfficer returns the complaints assigned to an officer,
// newest first
func (s *PostgresStore) FindByAssignedOfficer(ctx context.Context, officerID types.ID) ([]domain.Complaint, error) {
	query := `SELECT ` + complaintColumns + ` FROM complaints WHERE assigned_officer_id = $1 ORDER BY created_at DESC`
	return s.queryMany(ctx, query, officerID)
}

// AppendHistory inserts a single status history entry
func (s *PostgresStore) AppendHistory(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	return insertHistory(ctx, s.pool, entry)
}

// History returns every history entry of a complaint in insertion order
func (s *PostgresStore) History(ctx context.Context, complaintID types.ID) ([]domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, complaint_id, status, COALESCE(comment, ''), changed_by_id, changed_at, internal_note
		FROM complaint_status_history
		WHERE complaint_id = $1
		ORDER BY changed_at`

	rows, err := s.pool.Query(ctx, query, complaintID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load history")
	}
	defer rows.Close()

	var entries []domain.StatusHistoryEntry
	for rows.Next() {
		var e domain.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.ComplaintID, &e.Status, &e.Comment, &e.ChangedByID, &e.ChangedAt, &e.InternalNote); err != nil {
			return nil, errors.Wrap(err, "failed to scan history entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// FindUser retrieves a user account by ID
func (s *PostgresStore) FindUser(ctx context.Context, id types.ID) (*identity.User, error) {
	query := `
		SELECT id, username, email, first_name, last_name, role, COALESCE(officer_level, ''), active, created_at
		FROM users WHERE id = $1`

	u := &identity.User{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.Role, &u.OfficerLevel, &u.Active, &u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	return u, nil
}

// FindOfficers lists active users by role, optionally filtered by level
func (s *PostgresStore) FindOfficers(ctx context.Context, role identity.Role, level *identity.OfficerLevel) ([]identity.User, error) {
	query := `
		SELECT id, username, email, first_name, last_name, role, COALESCE(officer_level, ''), active, created_at
		FROM users
		WHERE role = $1 AND active`

	args := []any{role}
	if level != nil {
		query += ` AND officer_level = $2`
		args = append(args, *level)
	}
	query += ` ORDER BY username`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list officers")
	}
	defer rows.Close()

	var users []identity.User
	for rows.Next() {
		var u identity.User
		if err := rows.Scan(
			&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
			&u.Role, &u.OfficerLevel, &u.Active, &u.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan officer")
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) queryMany(ctx context.Context, query string, args ...any) ([]domain.Complaint, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query complaints")
	}
	defer rows.Close()

	var out []domain.Complaint
	for rows.Next() {
		var c domain.Complaint
		if err := rows.Scan(scanTargets(&c)...); err != nil {
			return nil, errors.Wrap(err, "failed to scan complaint")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// execer is satisfied by both pgxpool.Pool and pgx.Tx
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertHistory(ctx context.Context, db execer, entry *domain.StatusHistoryEntry) error {
	query := `
		INSERT INTO complaint_status_history (id, complaint_id, status, comment, changed_by_id, changed_at, internal_note)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)`

	_, err := db.Exec(ctx, query,
		entry.ID, entry.ComplaintID, entry.Status, entry.Comment,
		entry.ChangedByID, entry.ChangedAt, entry.InternalNote,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append history entry")
	}
	return nil
}

func scanTargets(c *domain.Complaint) []any {
	return []any{
		&c.ID, &c.Title, &c.Description, &c.Category, &c.Priority, &c.Status,
		&c.IsAnonymous, &c.AnonymousEmail, &c.AnonymousPhone,
		&c.OwnerID, &c.AssignedOfficerID, &c.DueDate, &c.ResolvedAt,
		&c.OfficerRating, &c.OfficerFeedback,
		&c.EscalationThresholdHours, &c.CreatedAt, &c.UpdatedAt,
	}
}

func statusStrings(statuses []domain.Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
