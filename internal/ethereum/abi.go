package ethereum

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the legacy Keccak-256 digest used throughout the
// Ethereum protocol (not the finalized SHA-3).
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// EventTopic returns the 32-byte log topic for an event signature,
// e.g. "Transfer(address,address,uint256)".
func EventTopic(signature string) Hash {
	var h Hash
	copy(h[:], Keccak256([]byte(signature)))
	return h
}

// Selector returns the 4-byte function selector for a canonical signature,
// e.g. "getPair(address,address)".
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// ABIWord is the 32-byte slot size of the contract ABI encoding.
const ABIWord = 32

// PackArgs appends ABI-encoded static arguments to a function selector.
// Supported argument types: Address and *big.Int (uint256).
func PackArgs(selector []byte, args ...interface{}) ([]byte, error) {
	out := make([]byte, len(selector), len(selector)+len(args)*ABIWord)
	copy(out, selector)

	for i, arg := range args {
		word := make([]byte, ABIWord)
		switch v := arg.(type) {
		case Address:
			copy(word[ABIWord-20:], v[:])
		case *big.Int:
			if v.Sign() < 0 {
				return nil, fmt.Errorf("arg %d: negative uint256", i)
			}
			b := v.Bytes()
			if len(b) > ABIWord {
				return nil, fmt.Errorf("arg %d: uint256 overflow", i)
			}
			copy(word[ABIWord-len(b):], b)
		default:
			return nil, fmt.Errorf("arg %d: unsupported type %T", i, arg)
		}
		out = append(out, word...)
	}
	return out, nil
}

// UnpackUint256 decodes a single-word return value as an unsigned integer.
func UnpackUint256(ret []byte) (*big.Int, error) {
	if len(ret) < ABIWord {
		return nil, fmt.Errorf("return data too short: %d bytes", len(ret))
	}
	return new(big.Int).SetBytes(ret[:ABIWord]), nil
}

// UnpackUint8 decodes a single-word return value as a uint8.
func UnpackUint8(ret []byte) (uint8, error) {
	v, err := UnpackUint256(ret)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > 255 {
		return 0, fmt.Errorf("uint8 overflow: %s", v)
	}
	return uint8(v.Uint64()), nil
}

// UnpackAddress decodes a single-word return value as an address.
func UnpackAddress(ret []byte) (Address, error) {
	if len(ret) < ABIWord {
		return Address{}, fmt.Errorf("return data too short: %d bytes", len(ret))
	}
	var a Address
	copy(a[:], ret[ABIWord-20:ABIWord])
	return a, nil
}

// UnpackString decodes a dynamic string return value: a head word holding
// the tail offset, then length and contents at that offset.
func UnpackString(ret []byte) (string, error) {
	if len(ret) < ABIWord {
		return "", fmt.Errorf("return data too short: %d bytes", len(ret))
	}

	offset := new(big.Int).SetBytes(ret[:ABIWord])
	if !offset.IsUint64() || offset.Uint64()+ABIWord > uint64(len(ret)) {
		return "", fmt.Errorf("string offset out of bounds")
	}
	start := offset.Uint64()

	length := new(big.Int).SetBytes(ret[start : start+ABIWord])
	if !length.IsUint64() || start+ABIWord+length.Uint64() > uint64(len(ret)) {
		return "", fmt.Errorf("string length out of bounds")
	}

	return string(ret[start+ABIWord : start+ABIWord+length.Uint64()]), nil
}

// UnpackReserves decodes the getReserves() return of a Uniswap V2 pair:
// (uint112 reserve0, uint112 reserve1, uint32 blockTimestampLast).
func UnpackReserves(ret []byte) (reserve0, reserve1 *big.Int, err error) {
	if len(ret) < 2*ABIWord {
		return nil, nil, fmt.Errorf("reserves return too short: %d bytes", len(ret))
	}
	reserve0 = new(big.Int).SetBytes(ret[:ABIWord])
	reserve1 = new(big.Int).SetBytes(ret[ABIWord : 2*ABIWord])
	return reserve0, reserve1, nil
}
