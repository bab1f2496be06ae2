// Package trading orchestrates swap execution: quoting, simulation,
// submission, confirmation, transfer-log extraction and ledger recording.
package trading

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"swap-custodian/internal/domain"
	"swap-custodian/internal/ethereum"
	"swap-custodian/internal/idhash"
	"swap-custodian/internal/observability"
	"swap-custodian/internal/quote"
	"swap-custodian/internal/storage"
	"swap-custodian/internal/uniswap"
	"swap-custodian/internal/wallet"
)

// lockStripes sizes the per-identity mutex table. Trades for one identity
// are serialized so they cannot race at the chain-nonce level; unrelated
// identities only contend on stripe collisions.
const lockStripes = 64

var (
	transferTopic = ethereum.EventTopic("Transfer(address,address,uint256)")

	selBuyTokens  = ethereum.Selector("buyTokens_v2Router(address,uint256)")
	selSellTokens = ethereum.Selector("sellTokens_v2Router(address,uint256,uint256)")
	selApprove    = ethereum.Selector("approve(address,uint256)")

	// maxUint256 is the all-ones allowance value.
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Executor runs the swap state machine: Quoted, Simulated, Submitted,
// Confirmed, then Recorded or RecordingFailed. No state persists between
// calls; each swap runs to completion or fails partway with a reported
// error.
type Executor struct {
	backend ethereum.Backend
	reader  *uniswap.Reader
	vault   *wallet.Vault
	trades  storage.TradeStore
	logger  *slog.Logger

	botAddress ethereum.Address
	chainID    *big.Int

	pollInterval time.Duration
	heads        <-chan struct{}

	locks [lockStripes]sync.Mutex
}

// Option configures an Executor.
type Option func(*Executor)

// WithPollInterval overrides the receipt polling interval.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) { e.pollInterval = d }
}

// WithHeads supplies new-block notifications so confirmation waits poll
// immediately after each block instead of on the next tick.
func WithHeads(heads <-chan struct{}) Option {
	return func(e *Executor) { e.heads = heads }
}

// NewExecutor creates an Executor trading through the given bot contract.
func NewExecutor(
	backend ethereum.Backend,
	reader *uniswap.Reader,
	vault *wallet.Vault,
	trades storage.TradeStore,
	botAddress ethereum.Address,
	chainID *big.Int,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	e := &Executor{
		backend:      backend,
		reader:       reader,
		vault:        vault,
		trades:       trades,
		logger:       logger,
		botAddress:   botAddress,
		chainID:      chainID,
		pollInterval: ethereum.DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Buy swaps native currency for tokens. AmountIn is in wei and rides the
// transaction as its value.
func (e *Executor) Buy(ctx context.Context, req domain.SwapRequest) (*domain.Trade, error) {
	unlock := e.lockIdentity(req.Identity)
	defer unlock()
	started := time.Now()

	acct, token, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	reserves, err := e.reader.Reserves(ctx, token)
	if err != nil {
		observability.RecordSwapFailed(domain.SwapTypeBuy, "quote")
		return nil, &ChainError{Stage: "quote", Err: err}
	}

	// Native in, token out.
	amountOut, err := quote.AmountOut(req.AmountIn, reserves.NativeReserves, reserves.TokenReserves)
	if err != nil {
		observability.RecordSwapFailed(domain.SwapTypeBuy, "quote")
		return nil, err
	}
	minOut, err := quote.MinimumOut(amountOut, req.Slippage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	data, err := ethereum.PackArgs(selBuyTokens, token, minOut)
	if err != nil {
		return nil, fmt.Errorf("encode buy call: %w", err)
	}

	receipt, txHash, err := e.execute(ctx, domain.SwapTypeBuy, acct, data, req.AmountIn)
	if err != nil {
		return nil, err
	}

	// The bought tokens land at the signing account, sent by the pair.
	pair, err := ethereum.HexToAddress(reserves.PairAddress)
	if err != nil {
		return nil, fmt.Errorf("parse pair address: %w", err)
	}
	realized, err := matchTransfer(receipt, token, pair, acct.Address())
	if err != nil {
		observability.RecordSwapFailed(domain.SwapTypeBuy, "match")
		e.logger.Error("transfer log not matched",
			"swap_type", domain.SwapTypeBuy, "tx", txHash.String(), "identity", req.Identity)
		return nil, fmt.Errorf("%w (tx %s)", ErrTransferEventNotFound, txHash)
	}

	result, err := swapResult(receipt, txHash, req.AmountIn, realized, domain.SwapTypeBuy)
	if err != nil {
		return nil, err
	}
	trade, err := e.record(ctx, req, acct, result, token)
	if err != nil {
		return nil, err
	}
	observability.RecordSwapConfirmed(domain.SwapTypeBuy, time.Since(started).Seconds())
	return trade, nil
}

// Sell swaps tokens for native currency. AmountIn is in raw token units.
func (e *Executor) Sell(ctx context.Context, req domain.SwapRequest) (*domain.Trade, error) {
	unlock := e.lockIdentity(req.Identity)
	defer unlock()
	started := time.Now()

	acct, token, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	reserves, err := e.reader.Reserves(ctx, token)
	if err != nil {
		observability.RecordSwapFailed(domain.SwapTypeSell, "quote")
		return nil, &ChainError{Stage: "quote", Err: err}
	}

	// Token in, native out.
	amountOut, err := quote.AmountOut(req.AmountIn, reserves.TokenReserves, reserves.NativeReserves)
	if err != nil {
		observability.RecordSwapFailed(domain.SwapTypeSell, "quote")
		return nil, err
	}
	minOut, err := quote.MinimumOut(amountOut, req.Slippage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	data, err := ethereum.PackArgs(selSellTokens, token, req.AmountIn, minOut)
	if err != nil {
		return nil, fmt.Errorf("encode sell call: %w", err)
	}

	receipt, txHash, err := e.execute(ctx, domain.SwapTypeSell, acct, data, nil)
	if err != nil {
		return nil, err
	}

	// Native proceeds are WETH sent by the pair to the router, which
	// unwraps and forwards them. The recipient is the router, not the
	// signing account.
	pair, err := ethereum.HexToAddress(reserves.PairAddress)
	if err != nil {
		return nil, fmt.Errorf("parse pair address: %w", err)
	}
	realized, err := matchTransfer(receipt, uniswap.WETHAddress, pair, uniswap.RouterAddress)
	if err != nil {
		observability.RecordSwapFailed(domain.SwapTypeSell, "match")
		e.logger.Error("transfer log not matched",
			"swap_type", domain.SwapTypeSell, "tx", txHash.String(), "identity", req.Identity)
		return nil, fmt.Errorf("%w (tx %s)", ErrTransferEventNotFound, txHash)
	}

	result, err := swapResult(receipt, txHash, req.AmountIn, realized, domain.SwapTypeSell)
	if err != nil {
		return nil, err
	}
	trade, err := e.record(ctx, req, acct, result, token)
	if err != nil {
		return nil, err
	}
	observability.RecordSwapConfirmed(domain.SwapTypeSell, time.Since(started).Seconds())
	return trade, nil
}

// Approve grants the bot contract a maximum token allowance. Short-circuits
// when the allowance is already at maximum.
func (e *Executor) Approve(ctx context.Context, identity, tokenAddress string) (*domain.ApprovalResult, error) {
	unlock := e.lockIdentity(identity)
	defer unlock()

	acct, err := e.vault.GetOrCreate(ctx, identity)
	if err != nil {
		return nil, err
	}
	token, err := ethereum.HexToAddress(tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	allowance, err := e.reader.Allowance(ctx, token, acct.Address(), e.botAddress)
	if err != nil {
		return nil, &ChainError{Stage: "quote", Err: err}
	}
	if allowance.Cmp(maxUint256) == 0 {
		return &domain.ApprovalResult{AlreadyApproved: true}, nil
	}

	data, err := ethereum.PackArgs(selApprove, e.botAddress, maxUint256)
	if err != nil {
		return nil, fmt.Errorf("encode approve call: %w", err)
	}

	txHash, err := e.submit(ctx, acct, token, nil, data)
	if err != nil {
		return nil, err
	}
	observability.RecordApprovalIssued()

	receipt, err := e.confirm(ctx, txHash)
	if err != nil {
		return nil, err
	}
	if !receipt.Succeeded() {
		return nil, &ChainError{Stage: "confirm", Err: fmt.Errorf("approval %s reverted", txHash)}
	}

	e.logger.Info("allowance approved", "identity", identity, "token", token.String(), "tx", txHash.String())
	return &domain.ApprovalResult{TxHash: txHash.String()}, nil
}

// resolve loads the signing account and parses the token address.
func (e *Executor) resolve(ctx context.Context, req domain.SwapRequest) (*wallet.Account, ethereum.Address, error) {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return nil, ethereum.Address{}, fmt.Errorf("%w: amount must be positive", storage.ErrInvalidInput)
	}

	acct, err := e.vault.GetOrCreate(ctx, req.Identity)
	if err != nil {
		return nil, ethereum.Address{}, err
	}
	token, err := ethereum.HexToAddress(req.TokenAddress)
	if err != nil {
		return nil, ethereum.Address{}, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	return acct, token, nil
}

// execute runs simulate, submit and confirm against the bot contract.
func (e *Executor) execute(ctx context.Context, swapType string, acct *wallet.Account, data []byte, value *big.Int) (*ethereum.Receipt, ethereum.Hash, error) {
	from := acct.Address()
	msg := ethereum.CallMsg{From: &from, To: e.botAddress, Value: value, Data: data}

	// Dry run before spending gas. A revert here surfaces as a user
	// error and nothing is submitted.
	if _, err := e.backend.Call(ctx, msg); err != nil {
		observability.RecordSwapFailed(swapType, "simulate")
		return nil, ethereum.Hash{}, &ChainError{Stage: "simulate", Err: err}
	}

	txHash, err := e.submit(ctx, acct, e.botAddress, value, data)
	if err != nil {
		observability.RecordSwapFailed(swapType, "submit")
		return nil, ethereum.Hash{}, err
	}
	observability.RecordSwapSubmitted(swapType)
	e.logger.Info("swap submitted", "swap_type", swapType, "tx", txHash.String())

	receipt, err := e.confirm(ctx, txHash)
	if err != nil {
		observability.RecordSwapFailed(swapType, "confirm")
		return nil, txHash, err
	}
	if !receipt.Succeeded() {
		observability.RecordSwapFailed(swapType, "confirm")
		return nil, txHash, &ChainError{Stage: "confirm", Err: fmt.Errorf("transaction %s reverted", txHash)}
	}
	return receipt, txHash, nil
}

// submit signs and broadcasts a transaction. Broadcasting is the point of
// no return: any later failure leaves the transaction possibly landing
// on-chain.
func (e *Executor) submit(ctx context.Context, acct *wallet.Account, to ethereum.Address, value *big.Int, data []byte) (ethereum.Hash, error) {
	from := acct.Address()
	msg := ethereum.CallMsg{From: &from, To: to, Value: value, Data: data}

	gas, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		return ethereum.Hash{}, &ChainError{Stage: "submit", Err: fmt.Errorf("estimate gas: %w", err)}
	}
	gasPrice, err := e.backend.GasPrice(ctx)
	if err != nil {
		return ethereum.Hash{}, &ChainError{Stage: "submit", Err: fmt.Errorf("gas price: %w", err)}
	}
	nonce, err := e.backend.NonceAt(ctx, from)
	if err != nil {
		return ethereum.Hash{}, &ChainError{Stage: "submit", Err: fmt.Errorf("nonce: %w", err)}
	}

	raw, err := acct.SignTx(&wallet.Tx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	}, e.chainID)
	if err != nil {
		return ethereum.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	txHash, err := e.backend.SendRawTransaction(ctx, raw)
	if err != nil {
		return ethereum.Hash{}, &ChainError{Stage: "submit", Err: err}
	}
	return txHash, nil
}

// confirm blocks until the transaction is included.
func (e *Executor) confirm(ctx context.Context, txHash ethereum.Hash) (*ethereum.Receipt, error) {
	started := time.Now()
	receipt, err := ethereum.WaitMined(ctx, e.backend, txHash, e.pollInterval, e.heads)
	observability.RecordConfirmationWait(time.Since(started).Seconds())
	if err != nil {
		return nil, &ChainError{Stage: "confirm", Err: err}
	}
	return receipt, nil
}

// swapResult packages the confirmed on-chain outcome of a swap, realized
// amounts included. Built only after inclusion and transfer-log matching.
func swapResult(receipt *ethereum.Receipt, txHash ethereum.Hash, amountIn, amountOut *big.Int, swapType string) (*domain.SwapResult, error) {
	block, err := receipt.BlockNumberUint64()
	if err != nil {
		return nil, fmt.Errorf("parse block number: %w", err)
	}
	return &domain.SwapResult{
		TxHash:      txHash.String(),
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		BlockNumber: block,
		SwapType:    swapType,
	}, nil
}

// record writes the confirmed swap to the ledger. A write failure after
// confirmation returns a RecordingError carrying the transaction hash.
func (e *Executor) record(
	ctx context.Context,
	req domain.SwapRequest,
	acct *wallet.Account,
	result *domain.SwapResult,
	token ethereum.Address,
) (*domain.Trade, error) {
	symbol, err := e.reader.Symbol(ctx, token)
	if err != nil {
		// Metadata is best effort after confirmation; the trade is
		// still recorded.
		e.logger.Warn("symbol lookup failed", "token", token.String(), "err", err)
		symbol = ""
	}

	trade := &domain.Trade{
		ID:            idhash.NewTradeID(),
		Hash:          result.TxHash,
		WalletAddress: acct.Address().String(),
		TwitterID:     req.Identity,
		TokenAddress:  token.String(),
		TokenPrice:    req.TokenPrice,
		Decimals:      req.TokenDecimals,
		Symbol:        symbol,
		AmountIn:      ethereum.EncodeWord(result.AmountIn),
		AmountOut:     ethereum.EncodeWord(result.AmountOut),
		SwapType:      result.SwapType,
		BlockNumber:   result.BlockNumber,
	}

	if err := e.trades.Insert(ctx, trade); err != nil {
		observability.RecordSwapFailed(result.SwapType, "record")
		e.logger.Error("ledger write failed", "tx", result.TxHash, "err", err)
		return nil, &RecordingError{TxHash: result.TxHash, Err: err}
	}

	e.logger.Info("swap recorded",
		"swap_type", result.SwapType, "identity", req.Identity,
		"tx", result.TxHash, "trade_id", trade.ID, "block", result.BlockNumber)
	return trade, nil
}

// matchTransfer scans receipt logs for the Transfer event emitted by
// emitter moving funds from sender to recipient, and returns its amount.
// Address comparisons are case-insensitive because parsing lowercases.
func matchTransfer(receipt *ethereum.Receipt, emitter, sender, recipient ethereum.Address) (*big.Int, error) {
	for _, l := range receipt.Logs {
		if l.Address != emitter || len(l.Topics) != 3 {
			continue
		}
		if l.Topics[0] != transferTopic {
			continue
		}
		if l.Topics[1].Address() != sender || l.Topics[2].Address() != recipient {
			continue
		}
		return l.AmountData()
	}
	return nil, ErrTransferEventNotFound
}

// lockIdentity serializes in-flight trades per identity.
func (e *Executor) lockIdentity(identity string) func() {
	h := fnv.New32a()
	h.Write([]byte(identity))
	lock := &e.locks[h.Sum32()%lockStripes]
	lock.Lock()
	return lock.Unlock
}
