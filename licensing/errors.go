package licensing

import "errors"

var (
	// ErrAlreadyLicensed is returned when a trial is requested by a user who
	// already owns any license record, of any tier. One trial, ever.
	ErrAlreadyLicensed = errors.New("licensing: user already has a license")
	// ErrUnknownPlan is returned for plan codes outside the catalog.
	ErrUnknownPlan = errors.New("licensing: unknown plan code")
	// ErrUserNotFound is returned when a user record does not exist.
	ErrUserNotFound = errors.New("licensing: user not found")
)
