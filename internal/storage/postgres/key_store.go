package postgres

import (
	"context"
	"fmt"

	"swap-custodian/internal/storage"
)

// KeyStore implements storage.KeyStore using PostgreSQL.
type KeyStore struct {
	pool *Pool
}

// NewKeyStore creates a new KeyStore.
func NewKeyStore(pool *Pool) *KeyStore {
	return &KeyStore{pool: pool}
}

// Compile-time interface check.
var _ storage.KeyStore = (*KeyStore)(nil)

// Put inserts the key unless the identity already has one, then returns
// whichever key is persisted. ON CONFLICT DO NOTHING plus the follow-up
// select makes concurrent first-use calls converge on a single key.
func (s *KeyStore) Put(ctx context.Context, identity, keyHex string) (string, error) {
	if identity == "" || keyHex == "" {
		return "", storage.ErrInvalidInput
	}

	query := `
		INSERT INTO signing_keys (twitter_id, private_key)
		VALUES ($1, $2)
		ON CONFLICT (twitter_id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, query, identity, keyHex); err != nil {
		return "", fmt.Errorf("insert signing key: %w", err)
	}

	return s.Get(ctx, identity)
}

// Get returns the stored key. ErrNotFound when the identity has none.
func (s *KeyStore) Get(ctx context.Context, identity string) (string, error) {
	query := `SELECT private_key FROM signing_keys WHERE twitter_id = $1`

	var keyHex string
	err := s.pool.QueryRow(ctx, query, identity).Scan(&keyHex)
	if err != nil {
		if isNotFoundError(err) {
			return "", storage.ErrNotFound
		}
		return "", fmt.Errorf("get signing key: %w", err)
	}
	return keyHex, nil
}
