// Package postgres implements the licensing stores on PostgreSQL via sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erbtraffic/licensebot/licensing"
)

// UserStore persists user records in the users table.
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore wraps the shared connection pool.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// EnsureUser inserts the user unless the id already exists. created_at is
// assigned by the database.
func (s *UserStore) EnsureUser(ctx context.Context, u licensing.User) (bool, error) {
	const q = `
		INSERT INTO users (id, display_name, handle, status, auth_type)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q, u.ID, u.DisplayName, u.Handle, u.Status, u.AuthType)
	if err != nil {
		return false, fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert user rows: %w", err)
	}
	return n > 0, nil
}

// GetUser loads one user record.
func (s *UserStore) GetUser(ctx context.Context, id string) (licensing.User, error) {
	const q = `
		SELECT id, display_name, handle, status, auth_type, pending_plan, created_at
		FROM users
		WHERE id = $1`
	var u licensing.User
	if err := s.db.GetContext(ctx, &u, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return licensing.User{}, fmt.Errorf("%w: %s", licensing.ErrUserNotFound, id)
		}
		return licensing.User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

// SetPendingPlan records the plan code the user intends to pay for.
func (s *UserStore) SetPendingPlan(ctx context.Context, id, plan string) error {
	const q = `UPDATE users SET pending_plan = $2 WHERE id = $1`
	res, err := s.db.ExecContext(ctx, q, id, plan)
	if err != nil {
		return fmt.Errorf("update pending plan: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update pending plan rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", licensing.ErrUserNotFound, id)
	}
	return nil
}
