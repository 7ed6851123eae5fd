package ethsync

import (
	"errors"
	"fmt"
)

var (
	ErrSubscriptionClosed = errors.New("log subscription closed")
	ErrAlreadyStarted     = errors.New("monitor already started")
)

func ErrCheckpointAheadOfHead(checkpoint, head uint64) error {
	return fmt.Errorf("stored checkpoint is ahead of the chain head: checkpoint=%v, head=%v", checkpoint, head)
}
