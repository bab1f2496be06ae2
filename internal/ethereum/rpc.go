package ethereum

import (
	"context"
	"math/big"
)

// Backend defines the Ethereum JSON-RPC surface the service depends on.
// Implemented by HTTPClient; stubbed in tests.
type Backend interface {
	// ChainID retrieves the chain identifier used for transaction signing.
	ChainID(ctx context.Context) (*big.Int, error)

	// GasPrice retrieves the current gas price suggestion.
	GasPrice(ctx context.Context) (*big.Int, error)

	// Call executes a read-only contract call against the latest block.
	Call(ctx context.Context, msg CallMsg) ([]byte, error)

	// EstimateGas estimates the gas needed to execute the call.
	EstimateGas(ctx context.Context, msg CallMsg) (uint64, error)

	// NonceAt retrieves the pending-state transaction count for an account.
	NonceAt(ctx context.Context, account Address) (uint64, error)

	// SendRawTransaction broadcasts a signed transaction and returns its hash.
	SendRawTransaction(ctx context.Context, rawTx []byte) (Hash, error)

	// TransactionReceipt retrieves the receipt for a transaction hash,
	// or nil while the transaction is pending.
	TransactionReceipt(ctx context.Context, txHash Hash) (*Receipt, error)
}

// Compile-time interface check.
var _ Backend = (*HTTPClient)(nil)
