package domain

import "math/big"

// SwapRequest carries a user trade intent. Transient, built per call,
// never persisted as-is.
type SwapRequest struct {
	Identity      string
	TokenAddress  string
	AmountIn      *big.Int // raw integer units (wei for buys, token units for sells)
	Slippage      string   // percentage, possibly fractional, e.g. "0.5"
	TokenDecimals uint8
	TokenPrice    float64
}

// ReservePair is a point-in-time snapshot of a token/WETH pool.
// Reserves are refetched on every request, never cached.
type ReservePair struct {
	PairAddress    string
	TokenReserves  *big.Int
	NativeReserves *big.Int
}

// SwapResult is the confirmed outcome of a swap. Constructed only after
// on-chain inclusion and transfer-log matching.
type SwapResult struct {
	TxHash      string
	AmountIn    *big.Int
	AmountOut   *big.Int // realized amount from the matched Transfer log
	BlockNumber uint64
	SwapType    string
}

// ApprovalResult is the outcome of an allowance check or approval submission.
type ApprovalResult struct {
	AlreadyApproved bool
	TxHash          string
}
