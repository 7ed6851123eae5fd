package settlement

import "github.com/TEENet-io/fiat-bridge-go/common"

type Config struct {
	// Number of decimals of the minted token
	TokenDecimals uint8
}

func DefaultConfig() *Config {
	return &Config{TokenDecimals: common.DefaultTokenDecimals}
}

// DepositRequest reports fiat received off chain. Amount is a decimal
// string in fiat units, e.g. "10.5".
type DepositRequest struct {
	User   string
	Amount string
	Fiat   string
}

// PayoutEventRequest is a FiatPayout event in its text form. AmountWei is
// the base 10 smallest unit amount.
type PayoutEventRequest struct {
	User      string
	Fiat      string
	AmountWei string
	TxHash    string
	LogIndex  uint
}
