package ethsync

import "context"

// Checkpoint persists the block of the last forwarded event. ledger.Store
// implements it.
type Checkpoint interface {
	GetLastScannedBlock(ctx context.Context) (blk uint64, ok bool, err error)
	SetLastScannedBlock(ctx context.Context, blk uint64) error
}
