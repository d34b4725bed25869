package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// Callback keys. Every inline button carries one of these; the payload after
// the key is decoded exactly once by the parse helpers below, so handlers
// never touch raw callback strings.
const (
	cbGetTrial     = "get_trial"
	cbBuyPremium   = "buy_premium"
	cbMyLicense    = "my_license"
	cbSupport      = "support"
	cbStartOver    = "start_over"
	cbPay          = "pay"
	cbAdminApprove = "admin_appr"
	cbAdminReject  = "admin_rej"
)

const payloadSep = "|"

// approveTarget is the decoded payload of an admin approval button.
type approveTarget struct {
	UserID string
	Days   int
}

func approvePayload(userID string, days int) (string, string) {
	return userID, strconv.Itoa(days)
}

func parseApprovePayload(payload string) (approveTarget, error) {
	parts := strings.Split(payload, payloadSep)
	if len(parts) != 2 {
		return approveTarget{}, fmt.Errorf("malformed approval payload %q", payload)
	}
	days, err := strconv.Atoi(parts[1])
	if err != nil || days <= 0 || parts[0] == "" {
		return approveTarget{}, fmt.Errorf("malformed approval payload %q", payload)
	}
	return approveTarget{UserID: parts[0], Days: days}, nil
}

func parseRejectPayload(payload string) (string, error) {
	userID := strings.TrimSpace(payload)
	if userID == "" || strings.Contains(userID, payloadSep) {
		return "", fmt.Errorf("malformed rejection payload %q", payload)
	}
	return userID, nil
}
