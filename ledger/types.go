package ledger

import (
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

type PayoutStatus string

const (
	PayoutStatusPending PayoutStatus = "pending"
	PayoutStatusSent    PayoutStatus = "sent"
)

// Payout is an off-chain fiat obligation created from an on-chain
// FiatPayout event.
type Payout struct {
	Id           uint64
	User         ethcommon.Address
	Fiat         string
	Amount       *big.Int // token smallest unit
	Status       PayoutStatus
	SourceTxHash ethcommon.Hash
	LogIndex     uint
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Deposit is a fiat receipt that already resulted in an on-chain mint.
type Deposit struct {
	Id         uint64
	User       ethcommon.Address
	Fiat       string
	Amount     *big.Int // token smallest unit
	MintTxHash ethcommon.Hash
	CreatedAt  time.Time
}

type PayoutParams struct {
	User         ethcommon.Address
	Fiat         string
	Amount       *big.Int
	SourceTxHash ethcommon.Hash
	LogIndex     uint
}

type DepositParams struct {
	User       ethcommon.Address
	Fiat       string
	Amount     *big.Int
	MintTxHash ethcommon.Hash
}

func (p *Payout) Clone() *Payout {
	c := *p
	c.Amount = new(big.Int).Set(p.Amount)
	return &c
}

func (d *Deposit) Clone() *Deposit {
	c := *d
	c.Amount = new(big.Int).Set(d.Amount)
	return &c
}
