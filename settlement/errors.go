package settlement

import "errors"

var (
	// Malformed or missing fields, rejected before any state change.
	ErrInvalidInput = errors.New("invalid input")

	// Confirmation of an unknown or already sent payout.
	ErrNotFound = errors.New("payout not found or already processed")

	// The mint call failed: node unreachable, reverted or not included in time.
	ErrChainSubmission = errors.New("chain submission error")
)
