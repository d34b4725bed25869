package licensing

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUserStore struct {
	users   map[string]User
	created int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]User)}
}

func (f *fakeUserStore) EnsureUser(_ context.Context, u User) (bool, error) {
	if _, ok := f.users[u.ID]; ok {
		return false, nil
	}
	f.users[u.ID] = u
	f.created++
	return true, nil
}

func (f *fakeUserStore) GetUser(_ context.Context, id string) (User, error) {
	u, ok := f.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserStore) SetPendingPlan(_ context.Context, id, plan string) error {
	u, ok := f.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u.PendingPlan = &plan
	f.users[id] = u
	return nil
}

type fakeLicenseStore struct {
	licenses []License
	failWith error
}

func (f *fakeLicenseStore) CreateIfNoneForUser(_ context.Context, l License) error {
	if f.failWith != nil {
		return f.failWith
	}
	for _, existing := range f.licenses {
		if existing.UserID == l.UserID {
			return ErrAlreadyLicensed
		}
	}
	f.licenses = append(f.licenses, l)
	return nil
}

func (f *fakeLicenseStore) Create(_ context.Context, l License) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.licenses = append(f.licenses, l)
	return nil
}

func (f *fakeLicenseStore) FirstActive(_ context.Context, userID string) (*License, error) {
	for i := range f.licenses {
		if f.licenses[i].UserID == userID && f.licenses[i].Status == StatusActive {
			return &f.licenses[i], nil
		}
	}
	return nil, nil
}

func newTestService(t *testing.T, at time.Time) (*Service, *fakeUserStore, *fakeLicenseStore) {
	t.Helper()
	users := newFakeUserStore()
	licenses := &fakeLicenseStore{}
	svc := NewService(users, licenses)
	svc.now = func() time.Time { return at }
	return svc, users, licenses
}

var (
	trialKeyPattern = regexp.MustCompile(`^ERB-TRIAL-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
	paidKeyPattern  = regexp.MustCompile(`^ERB-PAID-[A-Z0-9]{4}-[A-Z0-9]{4}$`)
)

func TestKeyFormats(t *testing.T) {
	for i := 0; i < 50; i++ {
		assert.Regexp(t, trialKeyPattern, NewTrialKey())
		assert.Regexp(t, paidKeyPattern, NewPaidKey())
	}
}

func TestRegisterUserDefaults(t *testing.T) {
	svc, users, _ := newTestService(t, time.Now())

	require.NoError(t, svc.RegisterUser(context.Background(), User{ID: "42", DisplayName: "Sam"}))

	u, err := svc.GetUser(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, u.Status)
	assert.Equal(t, "telegram", u.AuthType)

	// A second registration is a no-op, not an error.
	require.NoError(t, svc.RegisterUser(context.Background(), User{ID: "42", DisplayName: "Sam"}))
	assert.Equal(t, 1, users.created)
}

func TestRegisterUserEmptyID(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now())
	assert.Error(t, svc.RegisterUser(context.Background(), User{}))
}

func TestIssueTrial(t *testing.T) {
	at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	svc, _, licenses := newTestService(t, at)

	lic, err := svc.IssueTrial(context.Background(), "42")
	require.NoError(t, err)

	assert.Regexp(t, trialKeyPattern, lic.Key)
	assert.Equal(t, TierTrial, lic.Tier)
	assert.Equal(t, StatusActive, lic.Status)
	assert.Equal(t, at.Add(72*time.Hour), lic.ExpiresAt)
	assert.Equal(t, 1, lic.MaxActivations)
	assert.ElementsMatch(t, []string{"basic_traffic", "trial_access"}, lic.Features)
	assert.Len(t, licenses.licenses, 1)
}

func TestIssueTrialOnlyOnce(t *testing.T) {
	svc, _, licenses := newTestService(t, time.Now())

	_, err := svc.IssueTrial(context.Background(), "42")
	require.NoError(t, err)

	_, err = svc.IssueTrial(context.Background(), "42")
	assert.ErrorIs(t, err, ErrAlreadyLicensed)
	assert.Len(t, licenses.licenses, 1)
}

func TestIssueTrialRefusedAfterExpiry(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, start)

	_, err := svc.IssueTrial(context.Background(), "42")
	require.NoError(t, err)

	// A month later the trial is long expired; a fresh one is still refused
	// because the record remains.
	svc.now = func() time.Time { return start.AddDate(0, 1, 0) }
	_, err = svc.IssueTrial(context.Background(), "42")
	assert.ErrorIs(t, err, ErrAlreadyLicensed)
}

func TestIssuePaidTierBoundary(t *testing.T) {
	tests := []struct {
		name string
		days int
		want Tier
	}{
		{"month", 30, TierPremium},
		{"exactly a year", 365, TierPremium},
		{"just past a year", 366, TierPermanent},
		{"permanent plan", 3650, TierPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
			svc, _, _ := newTestService(t, at)

			lic, err := svc.IssuePaid(context.Background(), "42", tt.days)
			require.NoError(t, err)
			assert.Equal(t, tt.want, lic.Tier)
			assert.Equal(t, at.AddDate(0, 0, tt.days), lic.ExpiresAt)
			assert.Equal(t, 5, lic.MaxActivations)
			assert.Regexp(t, paidKeyPattern, lic.Key)
		})
	}
}

func TestIssuePaidInvalidDuration(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now())
	for _, days := range []int{0, -7} {
		_, err := svc.IssuePaid(context.Background(), "42", days)
		assert.Error(t, err)
	}
}

func TestIssuePaidIgnoresExistingLicenses(t *testing.T) {
	svc, _, licenses := newTestService(t, time.Now())

	_, err := svc.IssueTrial(context.Background(), "42")
	require.NoError(t, err)
	_, err = svc.IssuePaid(context.Background(), "42", 30)
	require.NoError(t, err)
	_, err = svc.IssuePaid(context.Background(), "42", 180)
	require.NoError(t, err)

	assert.Len(t, licenses.licenses, 3)
}

func TestSelectPlan(t *testing.T) {
	svc, users, _ := newTestService(t, time.Now())
	require.NoError(t, svc.RegisterUser(context.Background(), User{ID: "42"}))

	plan, err := svc.SelectPlan(context.Background(), "42", "30d")
	require.NoError(t, err)
	assert.Equal(t, 30, plan.Days)

	u := users.users["42"]
	require.NotNil(t, u.PendingPlan)
	assert.Equal(t, "30d", *u.PendingPlan)
}

func TestSelectPlanUnknownCode(t *testing.T) {
	svc, _, _ := newTestService(t, time.Now())
	_, err := svc.SelectPlan(context.Background(), "42", "yearly")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestPendingPlan(t *testing.T) {
	svc, users, _ := newTestService(t, time.Now())
	require.NoError(t, svc.RegisterUser(context.Background(), User{ID: "42"}))

	_, ok, err := svc.PendingPlan(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SelectPlan(context.Background(), "42", "6m")
	require.NoError(t, err)

	plan, ok, err := svc.PendingPlan(context.Background(), "42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "6m", plan.Code)

	// Reading the marker does not clear it.
	_, ok, err = svc.PendingPlan(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, ok)

	// A code no longer in the catalog reads as no selection.
	stale := "gold"
	u := users.users["42"]
	u.PendingPlan = &stale
	users.users["42"] = u
	_, ok, err = svc.PendingPlan(context.Background(), "42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIssueTrialPropagatesStoreError(t *testing.T) {
	svc, _, licenses := newTestService(t, time.Now())
	licenses.failWith = errors.New("connection reset")

	_, err := svc.IssueTrial(context.Background(), "42")
	assert.EqualError(t, err, "connection reset")
}

func TestPlanCatalog(t *testing.T) {
	catalog := Plans()
	require.Len(t, catalog, 4)

	codes := make([]string, 0, len(catalog))
	for _, p := range catalog {
		codes = append(codes, p.Code)
		assert.Positive(t, p.Days)
		assert.NotEmpty(t, p.Price)
		assert.NotEmpty(t, p.ApproveLabel)
	}
	assert.Equal(t, []string{"starter", "30d", "6m", "perm"}, codes)

	_, ok := PlanByCode("perm")
	assert.True(t, ok)
	_, ok = PlanByCode("PERM")
	assert.False(t, ok)

	// Mutating the returned slice must not touch the catalog.
	catalog[0].Days = 999
	fresh, _ := PlanByCode("starter")
	assert.Equal(t, 15, fresh.Days)
}

func TestLicensePermanent(t *testing.T) {
	assert.True(t, License{Tier: TierPermanent}.Permanent())
	assert.False(t, License{Tier: TierPremium}.Permanent())
	assert.False(t, License{Tier: TierTrial}.Permanent())
}
