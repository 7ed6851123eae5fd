package common

import (
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestParseEthAddress(t *testing.T) {
	addr := RandEthAddress()
	parsed, err := ParseEthAddress(addr.Hex())
	assert.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseEthAddress(Trim0xPrefix(addr.Hex()))
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = ParseEthAddress("0x1234")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = ParseEthAddress("0xzz" + addr.Hex()[4:])
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestParseTxHash(t *testing.T) {
	h, err := ParseTxHash("0x01")
	assert.NoError(t, err)
	assert.Equal(t, ethcommon.BigToHash(ethcommon.Big1), h)

	full := ethcommon.Hash(RandBytes32())
	h, err = ParseTxHash(full.Hex())
	assert.NoError(t, err)
	assert.Equal(t, full, h)

	_, err = ParseTxHash("01")
	assert.ErrorIs(t, err, ErrInvalidTxHash)
	_, err = ParseTxHash(full.Hex() + "00")
	assert.ErrorIs(t, err, ErrInvalidTxHash)
	_, err = ParseTxHash("")
	assert.ErrorIs(t, err, ErrInvalidTxHash)
}

func TestShorten(t *testing.T) {
	assert.Equal(t, "0x1234...cdef", Shorten("0x1234567890abcdef", 4))
	assert.Equal(t, "0x1234", Shorten("1234", 4))
}
