package etherman

import "github.com/ethereum/go-ethereum/common"

type Config struct {
	// URL is the URL of the Ethereum node, ws:// or ipc for push
	// notifications, http(s):// for polling only
	URL string

	// PayoutContractAddress emits the FiatPayout events
	PayoutContractAddress common.Address

	// MintContractAddress exposes mintFromFiat(address,uint256). Zero means
	// the payout contract.
	MintContractAddress common.Address
}
