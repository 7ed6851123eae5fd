package ethtxmanager

import (
	"math/big"
	"time"
)

type Config struct {
	// Chain ID used for signing. Nil means asking the node.
	ChainID *big.Int

	// Gas limit of the mint tx, 0 lets the node estimate it
	GasLimit uint64

	// Frequency to query the receipt of a sent tx
	FrequencyToCheckReceipt time.Duration

	// Timeout on waiting for the tx to be included
	TimeoutOnWaitingForReceipt time.Duration
}
