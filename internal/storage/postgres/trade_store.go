package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"swap-custodian/internal/domain"
	"swap-custodian/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// Insert adds a confirmed trade. Returns ErrDuplicateKey if the id exists.
func (s *TradeStore) Insert(ctx context.Context, t *domain.Trade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (
			id, hash, wallet_address, twitter_id, token_address,
			token_price, decimals, symbol, amount_in, amount_out,
			swap_type, block_number
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12
		)
	`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.Hash, t.WalletAddress, t.TwitterID, t.TokenAddress,
		t.TokenPrice, int16(t.Decimals), t.Symbol, t.AmountIn, t.AmountOut,
		t.SwapType, int64(t.BlockNumber),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its id. Returns ErrNotFound if absent.
func (s *TradeStore) GetByID(ctx context.Context, id string) (*domain.Trade, error) {
	query := `
		SELECT
			id, hash, wallet_address, twitter_id, token_address,
			token_price, decimals, symbol, amount_in, amount_out,
			swap_type, block_number
		FROM trades
		WHERE id = $1
	`

	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade by id: %w", err)
	}
	return t, nil
}

// GetByIdentity retrieves all trades for an identity, newest first.
func (s *TradeStore) GetByIdentity(ctx context.Context, twitterID string) ([]*domain.Trade, error) {
	query := `
		SELECT
			id, hash, wallet_address, twitter_id, token_address,
			token_price, decimals, symbol, amount_in, amount_out,
			swap_type, block_number
		FROM trades
		WHERE twitter_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.pool.Query(ctx, query, twitterID)
	if err != nil {
		return nil, fmt.Errorf("get trades by identity: %w", err)
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}

	return trades, nil
}

// scanTrade scans a single row into a Trade.
func scanTrade(row pgx.Row) (*domain.Trade, error) {
	var (
		t           domain.Trade
		decimals    int16
		blockNumber int64
	)

	err := row.Scan(
		&t.ID, &t.Hash, &t.WalletAddress, &t.TwitterID, &t.TokenAddress,
		&t.TokenPrice, &decimals, &t.Symbol, &t.AmountIn, &t.AmountOut,
		&t.SwapType, &blockNumber,
	)
	if err != nil {
		return nil, err
	}

	t.Decimals = uint8(decimals)
	t.BlockNumber = uint64(blockNumber)
	return &t, nil
}
