package ledger

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Store is the single source of truth of settlement state. Every method is
// atomic with respect to the others.
type Store interface {
	// CreatePayout inserts a payout in status pending. It returns
	// ErrPayoutExists if (SourceTxHash, LogIndex) is already recorded.
	CreatePayout(ctx context.Context, params *PayoutParams) (*Payout, error)

	// ConfirmPayout moves a pending payout to sent. It returns ErrNotFound
	// if no payout with id is pending.
	ConfirmPayout(ctx context.Context, id uint64) (*Payout, error)

	CreateDeposit(ctx context.Context, params *DepositParams) (*Deposit, error)

	GetPayout(ctx context.Context, id uint64) (*Payout, error)
	GetPayoutBySource(ctx context.Context, sourceTxHash ethcommon.Hash, logIndex uint) (*Payout, error)
	GetDepositsByUser(ctx context.Context, user ethcommon.Address) ([]*Deposit, error)

	// Checkpoint of the chain event monitor. ok is false if nothing has
	// been stored yet.
	GetLastScannedBlock(ctx context.Context) (blk uint64, ok bool, err error)
	SetLastScannedBlock(ctx context.Context, blk uint64) error

	Close() error
}
