package idhash

import (
	"encoding/hex"

	"github.com/google/uuid"

	"swap-custodian/internal/ethereum"
)

// NewTradeID generates an opaque ledger identifier: the Keccak-256 digest
// of a fresh UUID, 0x-prefixed hex (66 characters). Hashing hides the UUID
// structure so identifiers carry no issuance-time information.
func NewTradeID() string {
	digest := ethereum.Keccak256([]byte(uuid.NewString()))
	return "0x" + hex.EncodeToString(digest)
}
