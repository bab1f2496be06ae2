package domain

// Swap type constants as persisted in the trades table.
const (
	SwapTypeBuy  = "BUY"
	SwapTypeSell = "SELL"
)

// Trade is a completed, confirmed swap as written to the trade ledger.
// Rows are append-only; a Trade exists only for transactions whose
// inclusion was confirmed and whose transfer log was matched.
type Trade struct {
	ID            string  `json:"id"`             // opaque identifier, keccak256 of a random uuid
	Hash          string  `json:"hash"`           // transaction hash
	WalletAddress string  `json:"wallet_address"` // signing account address
	TwitterID     string  `json:"twitter_id"`     // external identity
	TokenAddress  string  `json:"token_address"`  // traded token contract
	TokenPrice    float64 `json:"token_price"`    // reference price at trade time, display only
	Decimals      uint8   `json:"decimals"`       // token decimals
	Symbol        string  `json:"symbol"`         // token symbol
	AmountIn      string  `json:"amount_in"`      // 0x-prefixed 32-byte hex
	AmountOut     string  `json:"amount_out"`     // 0x-prefixed 32-byte hex, realized transfer amount
	SwapType      string  `json:"swap_type"`      // BUY or SELL
	BlockNumber   uint64  `json:"block_number"`   // inclusion block
}
