package trading

import (
	"errors"
	"fmt"
)

// ErrTransferEventNotFound means a confirmed transaction's receipt carried
// no Transfer log matching the expected emitter, sender and recipient. The
// trade executed on-chain but its realized amount is unverifiable, so it is
// not recorded; the caller must reconcile out of band.
var ErrTransferEventNotFound = errors.New("transfer event not found in receipt")

// ChainError wraps an RPC, simulation or submission failure. Once a
// transaction has been broadcast, a ChainError means unknown outcome, not
// "definitely did not happen".
type ChainError struct {
	Stage string // quote, simulate, submit, confirm
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("chain error during %s: %v", e.Stage, e.Err)
}

func (e *ChainError) Unwrap() error {
	return e.Err
}

// RecordingError means the swap confirmed on-chain but the ledger write
// failed. Carries the transaction hash so the trade can be reconciled.
type RecordingError struct {
	TxHash string
	Err    error
}

func (e *RecordingError) Error() string {
	return fmt.Sprintf("swap %s confirmed but not recorded: %v", e.TxHash, e.Err)
}

func (e *RecordingError) Unwrap() error {
	return e.Err
}
