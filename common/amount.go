package common

import (
	"errors"
	"math/big"
	"strings"

	ethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// Default number of decimals of the settlement token.
const DefaultTokenDecimals uint8 = 18

const (
	// A uint256 has at most 78 decimal digits.
	maxUint256Digits = 78

	// Longest decimal text accepted, exponent notation included
	maxAmountLength = 128
)

var (
	ErrAmountFormat      = errors.New("malformed amount")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountPrecision   = errors.New("amount exceeds token precision")
	ErrAmountTooLarge    = errors.New("amount exceeds uint256")
)

// ToSmallestUnit converts a decimal amount such as "10.25" into the integer
// amount in the token's smallest unit.
// The magnitude is bounded before any shifting, so a short text such as
// "1e100000000" fails fast instead of expanding.
func ToSmallestUnit(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if len(amount) > maxAmountLength {
		return nil, ErrAmountFormat
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, ErrAmountFormat
	}
	if !d.IsPositive() {
		return nil, ErrAmountNotPositive
	}

	// digits left of the point once shifted
	exp := int64(d.Exponent()) + int64(decimals)
	if int64(d.NumDigits())+exp > maxUint256Digits {
		return nil, ErrAmountTooLarge
	}
	// anything this small has a fraction the token can't hold
	if exp < -maxAmountLength {
		return nil, ErrAmountPrecision
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return nil, ErrAmountPrecision
	}
	return checkUint256(shifted.BigInt())
}

// FromSmallestUnit renders a smallest-unit amount as a decimal string with
// trailing zeros removed.
func FromSmallestUnit(amount *big.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -int32(decimals)).String()
}

// ParseSmallestUnit parses a base 10 integer string such as
// "5000000000000000000".
func ParseSmallestUnit(amount string) (*big.Int, error) {
	if len(amount) > maxAmountLength {
		return nil, ErrAmountFormat
	}
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok {
		return nil, ErrAmountFormat
	}
	if v.Sign() <= 0 {
		return nil, ErrAmountNotPositive
	}
	return checkUint256(v)
}

// checkUint256 rejects values the abi encoder would silently wrap.
func checkUint256(v *big.Int) (*big.Int, error) {
	if v.Cmp(ethmath.MaxBig256) > 0 {
		return nil, ErrAmountTooLarge
	}
	return v, nil
}
