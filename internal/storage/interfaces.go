// Package storage defines the persistence interfaces of the service and
// their shared error sentinels. PostgreSQL and in-memory implementations
// live in subpackages.
package storage

import (
	"context"

	"swap-custodian/internal/domain"
)

// KeyStore persists per-identity private signing keys. Keys are written
// once and never rotated.
type KeyStore interface {
	// Put stores the key for an identity unless one already exists, and
	// returns the key that won: the supplied one on first write, the
	// previously stored one otherwise. Concurrent first-use calls for the
	// same identity therefore converge on one persisted key.
	Put(ctx context.Context, identity, keyHex string) (string, error)

	// Get returns the stored key. ErrNotFound when the identity has none.
	Get(ctx context.Context, identity string) (string, error)
}

// TradeStore is the append-only ledger of completed trades.
type TradeStore interface {
	// Insert adds a confirmed trade. ErrDuplicateKey if the id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// GetByID retrieves a trade by its opaque id. ErrNotFound if absent.
	GetByID(ctx context.Context, id string) (*domain.Trade, error)

	// GetByIdentity retrieves all trades for an identity, newest first.
	GetByIdentity(ctx context.Context, twitterID string) ([]*domain.Trade, error)
}
