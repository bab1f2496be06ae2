package wallet

import "math/big"

// Minimal RLP encoder covering what legacy transaction signing needs:
// byte strings and flat lists. Integers are encoded as their minimal
// big-endian byte representation (empty string for zero).

// rlpBytes encodes a byte string.
func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(rlpLength(len(b), 0x80), b...)
}

// rlpUint64 encodes an unsigned integer.
func rlpUint64(v uint64) []byte {
	if v == 0 {
		return rlpBytes(nil)
	}
	var buf [8]byte
	n := 0
	for i := 7; i >= 0; i-- {
		buf[7-i] = byte(v >> (uint(i) * 8))
	}
	for n < 8 && buf[n] == 0 {
		n++
	}
	return rlpBytes(buf[n:])
}

// rlpBig encodes a non-negative big integer.
func rlpBig(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return rlpBytes(nil)
	}
	return rlpBytes(v.Bytes())
}

// rlpList wraps already-encoded items in a list.
func rlpList(items ...[]byte) []byte {
	var payload []byte
	for _, item := range items {
		payload = append(payload, item...)
	}
	return append(rlpLength(len(payload), 0xc0), payload...)
}

// rlpLength builds the length prefix for strings (base 0x80) or lists
// (base 0xc0).
func rlpLength(length int, base byte) []byte {
	if length <= 55 {
		return []byte{base + byte(length)}
	}

	var lenBytes []byte
	for l := length; l > 0; l >>= 8 {
		lenBytes = append([]byte{byte(l)}, lenBytes...)
	}
	return append([]byte{base + 55 + byte(len(lenBytes))}, lenBytes...)
}
