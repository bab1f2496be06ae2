package wallet

import (
	"context"
	"errors"
	"fmt"

	"swap-custodian/internal/storage"
)

// Vault maps an external identity to its durable signing key, creating one
// on first use.
type Vault struct {
	store storage.KeyStore
}

// NewVault creates a Vault over the given key store.
func NewVault(store storage.KeyStore) *Vault {
	return &Vault{store: store}
}

// GetOrCreate returns the identity's account, generating and persisting a
// key on first use. The store's insert-if-absent semantics resolve the
// first-use race: whichever concurrent caller wins the insert, both end up
// with the same persisted key.
func (v *Vault) GetOrCreate(ctx context.Context, identity string) (*Account, error) {
	keyHex, err := v.store.Get(ctx, identity)
	if errors.Is(err, storage.ErrNotFound) {
		fresh, genErr := GeneratePrivateKeyHex()
		if genErr != nil {
			return nil, genErr
		}
		keyHex, err = v.store.Put(ctx, identity, fresh)
	}
	if err != nil {
		return nil, fmt.Errorf("key for %s: %w", identity, err)
	}

	return AccountFromHex(keyHex)
}

// Get returns the identity's account without creating one.
// storage.ErrNotFound when no key exists; used by authorization checks
// that must not provision.
func (v *Vault) Get(ctx context.Context, identity string) (*Account, error) {
	keyHex, err := v.store.Get(ctx, identity)
	if err != nil {
		return nil, err
	}
	return AccountFromHex(keyHex)
}
