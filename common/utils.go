package common

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Trim 0x or 0X prefix off the string.
func Trim0xPrefix(str string) string {
	s := strings.TrimPrefix(str, "0x")
	return strings.TrimPrefix(s, "0X")
}

func Prepend0xPrefix(str string) string {
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		return str
	}
	return "0x" + str
}

// RandBytes32 generates [32]byte with random values
func RandBytes32() [32]byte {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return [32]byte{}
	}
	return b
}

func RandBigInt(byteNum int) *big.Int {
	b := make([]byte, byteNum)
	if _, err := rand.Read(b); err != nil {
		return big.NewInt(0)
	}
	return new(big.Int).SetBytes(b)
}

// Shorten shortens a hex string so that both sides have n characters and
// the rest is replaced with "..."
func Shorten(hexStr string, n int) string {
	str := Trim0xPrefix(hexStr)

	if len(str) <= n*2 {
		return Prepend0xPrefix(str)
	}
	return Prepend0xPrefix(str[:n] + "..." + str[len(str)-n:])
}

func BigIntClone(bigInt *big.Int) *big.Int {
	if bigInt == nil {
		return nil
	}
	return new(big.Int).Set(bigInt)
}
