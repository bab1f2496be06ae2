package memory

import (
	"context"
	"sync"

	"swap-custodian/internal/storage"
)

// KeyStore is an in-memory implementation of storage.KeyStore.
type KeyStore struct {
	mu   sync.RWMutex
	data map[string]string // identity -> key hex
}

// NewKeyStore creates a new in-memory key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		data: make(map[string]string),
	}
}

// Put stores the key unless the identity already has one, returning the
// winning key either way.
func (s *KeyStore) Put(_ context.Context, identity, keyHex string) (string, error) {
	if identity == "" || keyHex == "" {
		return "", storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.data[identity]; ok {
		return existing, nil
	}
	s.data[identity] = keyHex
	return keyHex, nil
}

// Get returns the stored key. ErrNotFound when absent.
func (s *KeyStore) Get(_ context.Context, identity string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyHex, ok := s.data[identity]
	if !ok {
		return "", storage.ErrNotFound
	}
	return keyHex, nil
}

var _ storage.KeyStore = (*KeyStore)(nil)
