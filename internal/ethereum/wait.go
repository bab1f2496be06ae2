package ethereum

import (
	"context"
	"fmt"
	"time"
)

// DefaultPollInterval is how often WaitMined polls for a receipt when no
// head notifications are available.
const DefaultPollInterval = 2 * time.Second

// WaitMined blocks until the transaction is included in a block and returns
// its receipt. Polls on interval; when heads is non-nil, new-block
// notifications trigger an immediate poll so inclusion is observed one
// round-trip after the block arrives. Returns when ctx is done.
//
// Submission has already happened by the time this is called: a timeout here
// means unknown outcome, not failure.
func WaitMined(ctx context.Context, backend Backend, txHash Hash, interval time.Duration, heads <-chan struct{}) (*Receipt, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, fmt.Errorf("get receipt for %s: %w", txHash, err)
		}
		if receipt != nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		case <-heads:
		}
	}
}
