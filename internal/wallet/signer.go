package wallet

import (
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"swap-custodian/internal/ethereum"
)

// Tx is an unsigned legacy transaction.
type Tx struct {
	Nonce    uint64
	GasPrice *big.Int
	Gas      uint64
	To       *ethereum.Address // nil for contract creation
	Value    *big.Int
	Data     []byte
}

// SigningHash computes the EIP-155 signing digest:
// keccak256(rlp([nonce, gasPrice, gas, to, value, data, chainID, 0, 0])).
func SigningHash(tx *Tx, chainID *big.Int) ethereum.Hash {
	encoded := rlpList(
		rlpUint64(tx.Nonce),
		rlpBig(tx.GasPrice),
		rlpUint64(tx.Gas),
		rlpBytes(addressBytes(tx.To)),
		rlpBig(tx.Value),
		rlpBytes(tx.Data),
		rlpBig(chainID),
		rlpBytes(nil),
		rlpBytes(nil),
	)

	var h ethereum.Hash
	copy(h[:], ethereum.Keccak256(encoded))
	return h
}

// SignTx signs the transaction under EIP-155 replay protection and returns
// the raw RLP-encoded signed transaction ready for eth_sendRawTransaction.
func (a *Account) SignTx(tx *Tx, chainID *big.Int) ([]byte, error) {
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("chain id required for signing")
	}

	hash := SigningHash(tx, chainID)

	// SignCompact yields [recoveryCode, r(32), s(32)] with recoveryCode =
	// 27 + recid for uncompressed keys; the signature is deterministic
	// (RFC 6979) and low-S.
	compact := ecdsa.SignCompact(a.priv, hash[:], false)
	recID := int64(compact[0]) - 27
	r := new(big.Int).SetBytes(compact[1:33])
	s := new(big.Int).SetBytes(compact[33:65])

	// v = recid + 35 + 2*chainID
	v := new(big.Int).Mul(chainID, big.NewInt(2))
	v.Add(v, big.NewInt(35+recID))

	raw := rlpList(
		rlpUint64(tx.Nonce),
		rlpBig(tx.GasPrice),
		rlpUint64(tx.Gas),
		rlpBytes(addressBytes(tx.To)),
		rlpBig(tx.Value),
		rlpBytes(tx.Data),
		rlpBig(v),
		rlpBig(r),
		rlpBig(s),
	)
	return raw, nil
}

func addressBytes(a *ethereum.Address) []byte {
	if a == nil {
		return nil
	}
	return a[:]
}
