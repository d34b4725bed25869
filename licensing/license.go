package licensing

import "time"

// Tier is the license class determining feature set, duration and activation limit.
type Tier string

const (
	// TierTrial marks the one-off free trial license.
	TierTrial Tier = "TRIAL"
	// TierPremium marks a paid license with a bounded duration.
	TierPremium Tier = "PREMIUM"
	// TierPermanent marks a paid license that never expires in practice.
	TierPermanent Tier = "PERMANENT"
)

// Status is the record status. Nothing in this system ever revokes a license,
// so "active" is the only value assigned; expiry is computed, not enforced.
type Status string

// StatusActive is the only status this system assigns.
const StatusActive Status = "active"

const (
	trialDuration       = 3 * 24 * time.Hour
	trialMaxActivations = 1
	paidMaxActivations  = 5

	// permanentThresholdDays: paid durations beyond one year are sold as lifetime.
	permanentThresholdDays = 365
)

var (
	trialFeatures = []string{"basic_traffic", "trial_access"}
	paidFeatures  = []string{"all_plugins", "unlimited_traffic", "priority_support"}
)

// Activation records one use of a key to unlock the product on a device.
// Activations are consumed by the product itself; the bot only displays them.
type Activation struct {
	DeviceID    string    `json:"device_id"`
	ActivatedAt time.Time `json:"activated_at"`
}

// License grants a user time-limited or permanent access to a feature set.
type License struct {
	Key            string       `db:"key"`
	UserID         string       `db:"user_id"`
	Tier           Tier         `db:"tier"`
	Status         Status       `db:"status"`
	CreatedAt      time.Time    `db:"created_at"`
	ExpiresAt      time.Time    `db:"expires_at"`
	MaxActivations int          `db:"max_activations"`
	Activations    []Activation `db:"-"`
	Features       []string     `db:"-"`
}

// Permanent reports whether the license is displayed as never expiring.
func (l License) Permanent() bool {
	return l.Tier == TierPermanent
}

// User is one end user of the bot, keyed by the Telegram user identifier.
type User struct {
	ID          string  `db:"id"`
	DisplayName string  `db:"display_name"`
	Handle      *string `db:"handle"`
	Status      Status  `db:"status"`
	AuthType    string  `db:"auth_type"`
	// PendingPlan holds the plan code the user intends to pay for. It is set
	// on plan selection and read (not cleared) when a screenshot arrives.
	PendingPlan *string   `db:"pending_plan"`
	CreatedAt   time.Time `db:"created_at"`
}
