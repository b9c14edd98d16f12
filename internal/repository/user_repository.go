package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

// Student accounts carry their profile through the join; other roles get NULLs.
const accountSelect = `SELECT u.id, u.email, u.password_hash, u.full_name, u.role, u.active,
	s.year_of_study, s.advisor_id, u.last_login, u.created_at, u.updated_at
	FROM users u LEFT JOIN students s ON s.id = u.id`

// UserRepository loads login accounts and writes the audit trail.
type UserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// FindByEmail matches the address case-insensitively. Unknown accounts return sql.ErrNoRows.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "lower(u.email) = $1", strings.ToLower(strings.TrimSpace(email)))
}

// FindByID returns the account with the given id or sql.ErrNoRows.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "u.id = $1", id)
}

func (r *UserRepository) findOne(ctx context.Context, predicate string, arg interface{}) (*models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, accountSelect+" WHERE "+predicate+" LIMIT 1", arg)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, sql.ErrNoRows
	case err != nil:
		return nil, fmt.Errorf("load account where %s: %w", predicate, err)
	}
	return &user, nil
}

// UpdateLastLogin stamps a successful login. Inactive or missing accounts yield sql.ErrNoRows.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1 AND active`, id, ts)
	if err != nil {
		return fmt.Errorf("stamp last login for %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateAuditLog appends an entry to audit_logs, filling id and timestamp when unset.
func (r *UserRepository) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	// JSONB columns reject empty strings.
	if len(entry.OldValues) == 0 {
		entry.OldValues = nil
	}
	if len(entry.NewValues) == 0 {
		entry.NewValues = nil
	}
	const insert = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at)
		VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, insert, entry); err != nil {
		return fmt.Errorf("append audit %s on %s: %w", entry.Action, entry.Resource, err)
	}
	return nil
}
