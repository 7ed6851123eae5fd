package common

import (
	"crypto/rand"
	"errors"
	"regexp"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidAddress = errors.New("invalid eth address")
	ErrInvalidTxHash  = errors.New("invalid tx hash")
)

var txHashRegexp = regexp.MustCompile(`^0[xX][0-9a-fA-F]{1,64}$`)

func RandEthAddress() ethcommon.Address {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return ethcommon.Address{}
	}
	return ethcommon.BytesToAddress(b[:])
}

// ParseEthAddress accepts a 20-byte hex address with the 0x prefix.
func ParseEthAddress(str string) (ethcommon.Address, error) {
	if len(str) != 42 || !ethcommon.IsHexAddress(str) {
		return ethcommon.Address{}, ErrInvalidAddress
	}
	return ethcommon.HexToAddress(str), nil
}

// ParseTxHash accepts a 0x-prefixed hex string of at most 32 bytes. Shorter
// values are left padded, so "0x01" is a valid hash.
func ParseTxHash(str string) (ethcommon.Hash, error) {
	if !txHashRegexp.MatchString(str) {
		return ethcommon.Hash{}, ErrInvalidTxHash
	}
	return ethcommon.HexToHash(str), nil
}
