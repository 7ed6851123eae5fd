// Global agreement on types

package agreement

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FiatPayoutEvent is a decoded FiatPayout log: tokens were burnt on chain
// and a fiat payout is owed to User.
type FiatPayoutEvent struct {
	User        common.Address
	Fiat        string
	Amount      *big.Int // token smallest unit
	TxHash      common.Hash
	LogIndex    uint
	BlockNumber uint64
}

func (ev *FiatPayoutEvent) String() string {
	return fmt.Sprintf("%+v", *ev)
}
