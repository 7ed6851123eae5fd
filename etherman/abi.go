package etherman

import "github.com/ethereum/go-ethereum/crypto"

// FiatBridgeABI is the part of the contract ABI the bridge relies on:
//
//	event FiatPayout(address indexed user, string fiat, uint256 amount)
//	function mintFromFiat(address user, uint256 fiatAmount) external
const FiatBridgeABI = `[
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "user", "type": "address"},
			{"indexed": false, "internalType": "string", "name": "fiat", "type": "string"},
			{"indexed": false, "internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "FiatPayout",
		"type": "event"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "user", "type": "address"},
			{"internalType": "uint256", "name": "fiatAmount", "type": "uint256"}
		],
		"name": "mintFromFiat",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

const (
	EventFiatPayout    = "FiatPayout"
	MethodMintFromFiat = "mintFromFiat"
)

var (
	// Events
	FiatPayoutSignatureHash = crypto.Keccak256Hash([]byte("FiatPayout(address,string,uint256)"))
)
