package ethtxmanager

import "errors"

var (
	// ErrChainSubmission wraps every failure of Mint. The second wrapped
	// error tells which stage failed.
	ErrChainSubmission = errors.New("chain submission failed")

	ErrTxNotSent      = errors.New("mint tx not sent")
	ErrTxReverted     = errors.New("mint tx reverted")
	ErrReceiptTimeout = errors.New("timeout on waiting for mint tx receipt")
)
