package settlement

import (
	"context"
	"math/big"

	"github.com/TEENet-io/fiat-bridge-go/notifier"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Minter submits the on-chain mint and returns once it is included.
type Minter interface {
	Mint(ctx context.Context, user ethcommon.Address, amount *big.Int) (ethcommon.Hash, error)
}

// Notifier must not block.
type Notifier interface {
	NotifyPayoutStatus(msg *notifier.PayoutStatusMessage)
}
