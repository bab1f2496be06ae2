package memory

import (
	"context"
	"sort"
	"sync"

	"swap-custodian/internal/domain"
	"swap-custodian/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu    sync.RWMutex
	data  map[string]*domain.Trade // keyed by id
	order map[string]int           // insertion order, for newest-first reads
	next  int
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		data:  make(map[string]*domain.Trade),
		order: make(map[string]int),
	}
}

// Insert adds a confirmed trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) Insert(_ context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.ID] = &copy
	s.order[t.ID] = s.next
	s.next++
	return nil
}

// GetByID retrieves a trade by id. Returns ErrNotFound if absent.
func (s *TradeStore) GetByID(_ context.Context, id string) (*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// GetByIdentity retrieves all trades for an identity, newest first.
func (s *TradeStore) GetByIdentity(_ context.Context, twitterID string) ([]*domain.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Trade
	for _, t := range s.data {
		if t.TwitterID == twitterID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] > s.order[result[j].ID]
	})

	return result, nil
}

var _ storage.TradeStore = (*TradeStore)(nil)
