package licensing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/erbtraffic/licensebot/core/logger"
)

// UserStore persists end-user records.
type UserStore interface {
	// EnsureUser creates the record unless it already exists and reports
	// whether a new record was created.
	EnsureUser(ctx context.Context, u User) (bool, error)
	GetUser(ctx context.Context, id string) (User, error)
	SetPendingPlan(ctx context.Context, id, plan string) error
}

// LicenseStore persists license records.
type LicenseStore interface {
	// CreateIfNoneForUser inserts the license only if the user owns no
	// license record at all; otherwise it returns ErrAlreadyLicensed.
	// The check and the insert commit atomically against the store.
	CreateIfNoneForUser(ctx context.Context, l License) error
	Create(ctx context.Context, l License) error
	// FirstActive returns the active license for the user, nil when none.
	// Selection under multiple matches is stable across calls: oldest
	// created_at wins, key breaks ties.
	FirstActive(ctx context.Context, userID string) (*License, error)
}

// Service implements the license lifecycle on top of injected stores.
type Service struct {
	users    UserStore
	licenses LicenseStore
	now      func() time.Time
}

// NewService wires the lifecycle against the provided stores.
func NewService(users UserStore, licenses LicenseStore) *Service {
	return &Service{
		users:    users,
		licenses: licenses,
		now:      time.Now,
	}
}

// RegisterUser upserts the sender on first contact. Safe to call per update.
func (s *Service) RegisterUser(ctx context.Context, u User) error {
	if u.ID == "" {
		return fmt.Errorf("licensing: empty user id")
	}
	if u.Status == "" {
		u.Status = StatusActive
	}
	if u.AuthType == "" {
		u.AuthType = "telegram"
	}
	created, err := s.users.EnsureUser(ctx, u)
	if err != nil {
		return fmt.Errorf("ensure user %s: %w", u.ID, err)
	}
	if created {
		logger.Info(ctx, "service.users", "user.registered",
			slog.String("status", "ok"),
			slog.String("target_user_id", u.ID),
		)
	}
	return nil
}

// GetUser loads a user record by platform identifier.
func (s *Service) GetUser(ctx context.Context, id string) (User, error) {
	return s.users.GetUser(ctx, id)
}

// IssueTrial mints the one-off trial license for the user. It fails with
// ErrAlreadyLicensed when any license record exists for that user, even an
// expired one.
func (s *Service) IssueTrial(ctx context.Context, userID string) (License, error) {
	now := s.now().UTC()
	lic := License{
		Key:            NewTrialKey(),
		UserID:         userID,
		Tier:           TierTrial,
		Status:         StatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.Add(trialDuration),
		MaxActivations: trialMaxActivations,
		Features:       append([]string(nil), trialFeatures...),
	}
	if err := s.licenses.CreateIfNoneForUser(ctx, lic); err != nil {
		return License{}, err
	}
	logger.Info(ctx, "service.licenses", "license.issued",
		slog.String("status", "ok"),
		slog.String("license_key", lic.Key),
		slog.String("tier", string(lic.Tier)),
		slog.String("target_user_id", userID),
	)
	return lic, nil
}

// IssuePaid mints a paid license for the given duration. There is no
// prior-license check: a user may accumulate paid licenses over time.
func (s *Service) IssuePaid(ctx context.Context, userID string, days int) (License, error) {
	if days <= 0 {
		return License{}, fmt.Errorf("licensing: invalid duration %d days", days)
	}
	tier := TierPremium
	if days > permanentThresholdDays {
		tier = TierPermanent
	}
	now := s.now().UTC()
	lic := License{
		Key:            NewPaidKey(),
		UserID:         userID,
		Tier:           tier,
		Status:         StatusActive,
		CreatedAt:      now,
		ExpiresAt:      now.AddDate(0, 0, days),
		MaxActivations: paidMaxActivations,
		Features:       append([]string(nil), paidFeatures...),
	}
	if err := s.licenses.Create(ctx, lic); err != nil {
		return License{}, fmt.Errorf("create paid license: %w", err)
	}
	logger.Info(ctx, "service.licenses", "license.issued",
		slog.String("status", "ok"),
		slog.String("license_key", lic.Key),
		slog.String("tier", string(tier)),
		slog.Int("days", days),
		slog.String("target_user_id", userID),
	)
	return lic, nil
}

// ActiveLicense returns the user's active license, nil when none exists.
func (s *Service) ActiveLicense(ctx context.Context, userID string) (*License, error) {
	return s.licenses.FirstActive(ctx, userID)
}

// SelectPlan records the user's intent to pay for the given plan.
func (s *Service) SelectPlan(ctx context.Context, userID, code string) (Plan, error) {
	plan, ok := PlanByCode(code)
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrUnknownPlan, code)
	}
	if err := s.users.SetPendingPlan(ctx, userID, plan.Code); err != nil {
		return Plan{}, fmt.Errorf("set pending plan for %s: %w", userID, err)
	}
	logger.Debug(ctx, "service.users", "plan.selected",
		slog.String("status", "ok"),
		slog.String("plan", plan.Code),
		slog.String("target_user_id", userID),
	)
	return plan, nil
}

// PendingPlan reads the plan the user previously selected. The marker is
// deliberately left in place so a re-uploaded screenshot re-notifies the
// admin for the same plan.
func (s *Service) PendingPlan(ctx context.Context, userID string) (Plan, bool, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return Plan{}, false, err
	}
	if u.PendingPlan == nil || *u.PendingPlan == "" {
		return Plan{}, false, nil
	}
	plan, ok := PlanByCode(*u.PendingPlan)
	if !ok {
		logger.Warn(ctx, "service.users", "plan.stale",
			slog.String("plan", *u.PendingPlan),
			slog.String("target_user_id", userID),
		)
		return Plan{}, false, nil
	}
	return plan, true, nil
}
