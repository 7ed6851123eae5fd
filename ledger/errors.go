package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrPayoutExists    = errors.New("payout already recorded for source event")
	ErrNilParams       = errors.New("nil params")
	ErrCorruptedRecord = errors.New("corrupted record")
	ErrUnknownBackend  = errors.New("unknown store backend")
)

func errCorrupted(field, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrCorruptedRecord, field, value)
}
