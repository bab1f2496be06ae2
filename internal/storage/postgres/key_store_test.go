package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-custodian/internal/storage"
)

func TestKeyStore_PutAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKeyStore(pool)
	ctx := context.Background()

	keyHex := "0x1100000000000000000000000000000000000000000000000000000000000011"
	winner, err := store.Put(ctx, "user-1", keyHex)
	require.NoError(t, err)
	assert.Equal(t, keyHex, winner)

	got, err := store.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, keyHex, got)
}

func TestKeyStore_GetMissing(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKeyStore(pool)

	_, err := store.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeyStore_PutIsFirstWriterWins(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKeyStore(pool)
	ctx := context.Background()

	first := "0x1111111111111111111111111111111111111111111111111111111111111111"
	second := "0x2222222222222222222222222222222222222222222222222222222222222222"

	winner, err := store.Put(ctx, "user-1", first)
	require.NoError(t, err)
	assert.Equal(t, first, winner)

	// A second put with a different key must not overwrite.
	winner, err = store.Put(ctx, "user-1", second)
	require.NoError(t, err)
	assert.Equal(t, first, winner)
}

func TestKeyStore_ConcurrentFirstUse(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKeyStore(pool)
	ctx := context.Background()

	const goroutines = 16
	winners := make([]string, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			keyHex := fmt.Sprintf("0x%064x", i+1)
			winner, err := store.Put(ctx, "user-race", keyHex)
			assert.NoError(t, err)
			winners[i] = winner
		}(i)
	}
	wg.Wait()

	// All callers must converge on a single persisted key.
	for i := 1; i < goroutines; i++ {
		assert.Equal(t, winners[0], winners[i])
	}
}

func TestKeyStore_RejectsEmptyInput(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewKeyStore(pool)
	ctx := context.Background()

	_, err := store.Put(ctx, "", "0xabc")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Put(ctx, "user-1", "")
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
