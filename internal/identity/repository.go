package identity

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/resolveit/grievance-platform/internal/shared/errors"
	"github.com/resolveit/grievance-platform/internal/shared/types"
)

// Repository provides database operations for user accounts
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new identity repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create creates a new user
func (r *Repository) Create(ctx context.Context, u *User) error {
	query := `
		INSERT INTO users (id, username, email, first_name, last_name, role, officer_level, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName,
		u.Role, string(u.OfficerLevel), u.Active, u.CreatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("user with this username or email already exists")
		}
		return errors.Wrap(err, "failed to create user")
	}

	return nil
}

// FindByID retrieves a user by ID
func (r *Repository) FindByID(ctx context.Context, id types.ID) (*User, error) {
	return r.findOne(ctx, `WHERE id = $1`, id)
}

// FindByUsernameOrEmail retrieves a user by username or email
func (r *Repository) FindByUsernameOrEmail(ctx context.Context, name string) (*User, error) {
	return r.findOne(ctx, `WHERE username = $1 OR email = $1`, name)
}

func (r *Repository) findOne(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, username, email, first_name, last_name, role, COALESCE(officer_level, ''), active, created_at
		FROM users ` + where

	u := &User{}
	err := r.pool.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName,
		&u.Role, &u.OfficerLevel, &u.Active, &u.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("user", "")
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find user")
	}
	return u, nil
}

// FindOfficers lists active users by role, optionally filtered by officer level
func (r *Repository) FindOfficers(ctx context.Context, role Role, level *OfficerLevel) ([]User, error) {
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

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list officers")
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
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

// Count returns the number of user accounts
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}
