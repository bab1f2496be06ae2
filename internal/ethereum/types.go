package ethereum

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Address is a 20-byte account or contract address. Parsing lowercases the
// hex form, so comparisons between parsed addresses are case-insensitive
// by construction.
type Address [20]byte

// HexToAddress parses a 0x-prefixed hex address. Case-insensitive.
func HexToAddress(s string) (Address, error) {
	b, err := decodeFixedHex(s, 20)
	if err != nil {
		return Address{}, fmt.Errorf("parse address %q: %w", s, err)
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// MustAddress parses a well-known constant address and panics on failure.
func MustAddress(s string) Address {
	a, err := HexToAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String returns the lowercased 0x-prefixed hex form.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Less orders addresses by byte comparison, which is identical to a
// case-insensitive lexicographic comparison of their hex forms. Uniswap V2
// pairs store reserves in this order, so the comparison is load-bearing.
func (a Address) Less(b Address) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func (a Address) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Address) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HexToAddress(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Hash is a 32-byte transaction or topic hash.
type Hash [32]byte

// HexToHash parses a 0x-prefixed 32-byte hex string.
func HexToHash(s string) (Hash, error) {
	b, err := decodeFixedHex(s, 32)
	if err != nil {
		return Hash{}, fmt.Errorf("parse hash %q: %w", s, err)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// String returns the lowercased 0x-prefixed hex form.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// Address interprets the hash as a right-aligned address, the layout of
// indexed address topics in event logs.
func (h Hash) Address() Address {
	var a Address
	copy(a[:], h[12:])
	return a
}

func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := HexToHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// decodeFixedHex decodes a 0x-prefixed hex string of exactly n bytes.
func decodeFixedHex(s string, n int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s) != n*2 {
		return nil, fmt.Errorf("expected %d hex chars, got %d", n*2, len(s))
	}
	return hex.DecodeString(strings.ToLower(s))
}

// EncodeBig encodes a big integer as a 0x-prefixed quantity without
// leading zeros, the JSON-RPC quantity encoding.
func EncodeBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

// DecodeBig decodes a 0x-prefixed quantity into a big integer.
func DecodeBig(s string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if trimmed == "" {
		return nil, fmt.Errorf("empty quantity %q", s)
	}
	v, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("invalid quantity %q", s)
	}
	return v, nil
}

// EncodeUint64 encodes an unsigned integer as a JSON-RPC quantity.
func EncodeUint64(v uint64) string {
	return EncodeBig(new(big.Int).SetUint64(v))
}

// DecodeUint64 decodes a JSON-RPC quantity into an unsigned integer.
func DecodeUint64(s string) (uint64, error) {
	v, err := DecodeBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity %q overflows uint64", s)
	}
	return v.Uint64(), nil
}

// EncodeWord encodes a non-negative big integer as a 0x-prefixed 32-byte
// hex word, the fixed-width form used for persisted amounts.
func EncodeWord(v *big.Int) string {
	b := make([]byte, 32)
	if v != nil {
		v.FillBytes(b)
	}
	return "0x" + hex.EncodeToString(b)
}

// EncodeBytes encodes unformatted data as 0x-prefixed hex.
func EncodeBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeBytes decodes 0x-prefixed hex into raw bytes.
func DecodeBytes(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	return hex.DecodeString(trimmed)
}

// CallMsg describes a contract call for eth_call, eth_estimateGas and
// transaction construction.
type CallMsg struct {
	From     *Address
	To       Address
	Gas      uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// MarshalJSON renders the call object with only the populated fields, the
// format eth_call expects.
func (m CallMsg) MarshalJSON() ([]byte, error) {
	obj := map[string]string{
		"to": m.To.String(),
	}
	if m.From != nil {
		obj["from"] = m.From.String()
	}
	if m.Gas != 0 {
		obj["gas"] = EncodeUint64(m.Gas)
	}
	if m.GasPrice != nil {
		obj["gasPrice"] = EncodeBig(m.GasPrice)
	}
	if m.Value != nil {
		obj["value"] = EncodeBig(m.Value)
	}
	if len(m.Data) > 0 {
		obj["data"] = EncodeBytes(m.Data)
	}
	return json.Marshal(obj)
}

// Log is a single event entry from a transaction receipt.
type Log struct {
	Address Address `json:"address"`
	Topics  []Hash  `json:"topics"`
	Data    string  `json:"data"`
}

// AmountData decodes the log data as a single uint256, the payload layout
// of ERC-20 Transfer events.
func (l Log) AmountData() (*big.Int, error) {
	b, err := DecodeBytes(l.Data)
	if err != nil {
		return nil, fmt.Errorf("decode log data: %w", err)
	}
	return new(big.Int).SetBytes(b), nil
}

// Receipt is the result of eth_getTransactionReceipt.
type Receipt struct {
	TransactionHash Hash   `json:"transactionHash"`
	Status          string `json:"status"`
	BlockNumber     string `json:"blockNumber"`
	GasUsed         string `json:"gasUsed"`
	Logs            []Log  `json:"logs"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *Receipt) Succeeded() bool {
	return r.Status == "0x1"
}

// BlockNumberUint64 returns the inclusion block as an integer.
func (r *Receipt) BlockNumberUint64() (uint64, error) {
	return DecodeUint64(r.BlockNumber)
}
