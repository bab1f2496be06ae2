// Package wallet holds per-identity signing keys and produces signed
// EIP-155 transactions. Key material is secp256k1, stored as 0x-prefixed
// hex and never rotated once created.
package wallet

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"swap-custodian/internal/ethereum"
)

// Account is a secp256k1 keypair with its derived Ethereum address.
type Account struct {
	priv    *secp256k1.PrivateKey
	address ethereum.Address
}

// GeneratePrivateKeyHex creates a fresh random private key in the stored
// 0x-prefixed hex format.
func GeneratePrivateKeyHex() (string, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return "0x" + hex.EncodeToString(priv.Serialize()), nil
}

// AccountFromHex parses a stored private key and derives its address:
// the last 20 bytes of Keccak-256 over the uncompressed public key.
func AccountFromHex(keyHex string) (*Account, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(b))
	}

	priv := secp256k1.PrivKeyFromBytes(b)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("private key is zero")
	}

	uncompressed := priv.PubKey().SerializeUncompressed()
	digest := ethereum.Keccak256(uncompressed[1:])

	var addr ethereum.Address
	copy(addr[:], digest[12:])

	return &Account{priv: priv, address: addr}, nil
}

// Address returns the account's Ethereum address.
func (a *Account) Address() ethereum.Address {
	return a.address
}

// PrivateKeyHex returns the key in its stored 0x-prefixed hex form.
// Session token secrets are derived from this value.
func (a *Account) PrivateKeyHex() string {
	return "0x" + hex.EncodeToString(a.priv.Serialize())
}
