package cmd

import (
	"crypto/ecdsa"
	"os"

	"github.com/TEENet-io/fiat-bridge-go/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// FileExists checks if a file exists and is readable
func FileExists(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer file.Close()
	return true
}

// StringToPrivateKey parses a hex private key, with or without 0x.
func StringToPrivateKey(privKeyHex string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(common.Trim0xPrefix(privKeyHex))
}
