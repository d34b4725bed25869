package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/erbtraffic/licensebot/licensing"
)

// LicenseStore persists license records in the licenses table.
type LicenseStore struct {
	db *sqlx.DB
}

// NewLicenseStore wraps the shared connection pool.
func NewLicenseStore(db *sqlx.DB) *LicenseStore {
	return &LicenseStore{db: db}
}

type licenseRow struct {
	Key            string         `db:"key"`
	UserID         string         `db:"user_id"`
	Tier           string         `db:"tier"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
	MaxActivations int            `db:"max_activations"`
	Activations    []byte         `db:"activations"`
	Features       pq.StringArray `db:"features"`
}

func (r licenseRow) toLicense() (licensing.License, error) {
	lic := licensing.License{
		Key:            r.Key,
		UserID:         r.UserID,
		Tier:           licensing.Tier(r.Tier),
		Status:         licensing.Status(r.Status),
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		MaxActivations: r.MaxActivations,
		Features:       append([]string(nil), r.Features...),
	}
	if len(r.Activations) > 0 {
		if err := json.Unmarshal(r.Activations, &lic.Activations); err != nil {
			return licensing.License{}, fmt.Errorf("decode activations for %s: %w", r.Key, err)
		}
	}
	return lic, nil
}

const insertLicense = `
	INSERT INTO licenses (key, user_id, tier, status, created_at, expires_at, max_activations, activations, features)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func licenseArgs(l licensing.License) ([]interface{}, error) {
	activations := l.Activations
	if activations == nil {
		activations = []licensing.Activation{}
	}
	encoded, err := json.Marshal(activations)
	if err != nil {
		return nil, fmt.Errorf("encode activations: %w", err)
	}
	return []interface{}{
		l.Key, l.UserID, string(l.Tier), string(l.Status),
		l.CreatedAt, l.ExpiresAt, l.MaxActivations,
		encoded, pq.Array(l.Features),
	}, nil
}

// Create inserts the license unconditionally.
func (s *LicenseStore) Create(ctx context.Context, l licensing.License) error {
	args, err := licenseArgs(l)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, insertLicense, args...); err != nil {
		return fmt.Errorf("insert license: %w", err)
	}
	return nil
}

// CreateIfNoneForUser inserts the license only when the user owns no license
// record at all. A per-user advisory lock serializes concurrent attempts, so
// the existence check and the insert commit as one unit; the original
// check-then-insert against a document store could double-issue under a race.
func (s *LicenseStore) CreateIfNoneForUser(ctx context.Context, l licensing.License) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trial insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, l.UserID); err != nil {
		return fmt.Errorf("lock user %s: %w", l.UserID, err)
	}

	args, err := licenseArgs(l)
	if err != nil {
		return err
	}
	const conditional = `
	INSERT INTO licenses (key, user_id, tier, status, created_at, expires_at, max_activations, activations, features)
	SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
	WHERE NOT EXISTS (SELECT 1 FROM licenses WHERE user_id = $2)`
	res, err := tx.ExecContext(ctx, conditional, args...)
	if err != nil {
		return fmt.Errorf("insert trial license: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert trial license rows: %w", err)
	}
	if n == 0 {
		return licensing.ErrAlreadyLicensed
	}
	return tx.Commit()
}

// FirstActive returns the user's active license. When multiple active records
// exist the oldest wins, with the key as tie-break, so repeated calls return
// the same record.
func (s *LicenseStore) FirstActive(ctx context.Context, userID string) (*licensing.License, error) {
	const q = `
		SELECT key, user_id, tier, status, created_at, expires_at, max_activations, activations, features
		FROM licenses
		WHERE user_id = $1 AND status = $2
		ORDER BY created_at, key
		LIMIT 1`
	var row licenseRow
	if err := s.db.GetContext(ctx, &row, q, userID, string(licensing.StatusActive)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select active license: %w", err)
	}
	lic, err := row.toLicense()
	if err != nil {
		return nil, err
	}
	return &lic, nil
}
