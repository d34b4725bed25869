package postgres

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erbtraffic/licensebot/licensing"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestEnsureUserCreated(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("42", "Sam", nil, "active", "telegram").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := store.EnsureUser(context.Background(), licensing.User{
		ID:          "42",
		DisplayName: "Sam",
		Status:      licensing.StatusActive,
		AuthType:    "telegram",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureUserAlreadyExists(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("42", "Sam", nil, "active", "telegram").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := store.EnsureUser(context.Background(), licensing.User{
		ID:          "42",
		DisplayName: "Sam",
		Status:      licensing.StatusActive,
		AuthType:    "telegram",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, display_name, handle, status, auth_type, pending_plan, created_at")).
		WithArgs("42").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := store.GetUser(context.Background(), "42")
	assert.ErrorIs(t, err, licensing.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPendingPlan(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET pending_plan = $2 WHERE id = $1")).
		WithArgs("42", "30d").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.SetPendingPlan(context.Background(), "42", "30d"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetPendingPlanUnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewUserStore(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET pending_plan")).
		WithArgs("42", "30d").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.SetPendingPlan(context.Background(), "42", "30d")
	assert.ErrorIs(t, err, licensing.ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func testLicense(at time.Time) licensing.License {
	return licensing.License{
		Key:            "ERB-TRIAL-AAAA-BBBB",
		UserID:         "42",
		Tier:           licensing.TierTrial,
		Status:         licensing.StatusActive,
		CreatedAt:      at,
		ExpiresAt:      at.Add(72 * time.Hour),
		MaxActivations: 1,
		Features:       []string{"basic_traffic", "trial_access"},
	}
}

func TestCreateIfNoneForUserInserts(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLicenseStore(db)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lic := testLicense(at)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("42").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE NOT EXISTS (SELECT 1 FROM licenses WHERE user_id = $2)")).
		WithArgs(lic.Key, lic.UserID, "TRIAL", "active", lic.CreatedAt, lic.ExpiresAt, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, store.CreateIfNoneForUser(context.Background(), lic))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIfNoneForUserAlreadyLicensed(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLicenseStore(db)
	lic := testLicense(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("pg_advisory_xact_lock")).
		WithArgs("42").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE NOT EXISTS")).
		WithArgs(lic.Key, lic.UserID, "TRIAL", "active", lic.CreatedAt, lic.ExpiresAt, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.CreateIfNoneForUser(context.Background(), lic)
	assert.ErrorIs(t, err, licensing.ErrAlreadyLicensed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLicense(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLicenseStore(db)
	lic := testLicense(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO licenses")).
		WithArgs(lic.Key, lic.UserID, "TRIAL", "active", lic.CreatedAt, lic.ExpiresAt, 1, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Create(context.Background(), lic))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func licenseColumns() []string {
	return []string{"key", "user_id", "tier", "status", "created_at", "expires_at", "max_activations", "activations", "features"}
}

func TestFirstActive(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLicenseStore(db)
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(licenseColumns()).AddRow(
		"ERB-PAID-AAAA-BBBB", "42", "PREMIUM", "active",
		at, at.AddDate(0, 0, 30), 5,
		[]byte(`[{"device_id":"dev-1","activated_at":"2026-03-11T08:00:00Z"}]`),
		[]byte(`{all_plugins,unlimited_traffic,priority_support}`),
	)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at, key")).
		WithArgs("42", "active").
		WillReturnRows(rows)

	lic, err := store.FirstActive(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, lic)
	assert.Equal(t, "ERB-PAID-AAAA-BBBB", lic.Key)
	assert.Equal(t, licensing.TierPremium, lic.Tier)
	require.Len(t, lic.Activations, 1)
	assert.Equal(t, "dev-1", lic.Activations[0].DeviceID)
	assert.Equal(t, []string{"all_plugins", "unlimited_traffic", "priority_support"}, lic.Features)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFirstActiveNone(t *testing.T) {
	db, mock := newMockDB(t)
	store := NewLicenseStore(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM licenses")).
		WithArgs("42", "active").
		WillReturnRows(sqlmock.NewRows(licenseColumns()))

	lic, err := store.FirstActive(context.Background(), "42")
	require.NoError(t, err)
	assert.Nil(t, lic)
	assert.NoError(t, mock.ExpectationsWereMet())
}
