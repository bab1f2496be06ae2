// Package uniswap implements read-only queries against Uniswap V2 pools:
// pair lookup, reserve snapshots, token metadata, and display prices.
package uniswap

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"swap-custodian/internal/domain"
	"swap-custodian/internal/ethereum"
	"swap-custodian/internal/quote"
)

// Mainnet contract addresses.
var (
	FactoryAddress = ethereum.MustAddress("0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f")
	RouterAddress  = ethereum.MustAddress("0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	WETHAddress    = ethereum.MustAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	USDCAddress    = ethereum.MustAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

// USDCDecimals is the decimal count of the reference pricing asset.
const USDCDecimals = 6

// ErrPairNotFound is returned when the factory has no pool for the token.
var ErrPairNotFound = errors.New("pair not found")

var (
	selGetPair     = ethereum.Selector("getPair(address,address)")
	selGetReserves = ethereum.Selector("getReserves()")
	selSymbol      = ethereum.Selector("symbol()")
	selDecimals    = ethereum.Selector("decimals()")
	selAllowance   = ethereum.Selector("allowance(address,address)")
	selBalanceOf   = ethereum.Selector("balanceOf(address)")
)

// Reader performs live reads against the chain. No caching: every call hits
// the backend so reserve snapshots reflect the current block.
type Reader struct {
	backend ethereum.Backend
}

// NewReader creates a Reader over the given backend.
func NewReader(backend ethereum.Backend) *Reader {
	return &Reader{backend: backend}
}

// PairAddress resolves the token's WETH pool via the factory.
// ErrPairNotFound when the factory returns the zero address.
func (r *Reader) PairAddress(ctx context.Context, token ethereum.Address) (ethereum.Address, error) {
	ret, err := r.staticCall(ctx, FactoryAddress, selGetPair, token, WETHAddress)
	if err != nil {
		return ethereum.Address{}, fmt.Errorf("getPair(%s): %w", token, err)
	}

	pair, err := ethereum.UnpackAddress(ret)
	if err != nil {
		return ethereum.Address{}, fmt.Errorf("decode getPair(%s): %w", token, err)
	}
	if pair.IsZero() {
		return ethereum.Address{}, fmt.Errorf("%w for token %s", ErrPairNotFound, token)
	}
	return pair, nil
}

// Reserves snapshots the token's WETH pool. The pool stores reserves in
// address-sorted order, not semantic order, so the slots are assigned by
// comparing the token and WETH addresses.
func (r *Reader) Reserves(ctx context.Context, token ethereum.Address) (domain.ReservePair, error) {
	pair, err := r.PairAddress(ctx, token)
	if err != nil {
		return domain.ReservePair{}, err
	}

	ret, err := r.staticCall(ctx, pair, selGetReserves)
	if err != nil {
		return domain.ReservePair{}, fmt.Errorf("getReserves(%s): %w", pair, err)
	}

	reserve0, reserve1, err := ethereum.UnpackReserves(ret)
	if err != nil {
		return domain.ReservePair{}, fmt.Errorf("decode getReserves(%s): %w", pair, err)
	}

	snapshot := domain.ReservePair{PairAddress: pair.String()}
	if token.Less(WETHAddress) {
		snapshot.TokenReserves = reserve0
		snapshot.NativeReserves = reserve1
	} else {
		snapshot.TokenReserves = reserve1
		snapshot.NativeReserves = reserve0
	}
	return snapshot, nil
}

// Symbol reads the token's symbol.
func (r *Reader) Symbol(ctx context.Context, token ethereum.Address) (string, error) {
	ret, err := r.staticCall(ctx, token, selSymbol)
	if err != nil {
		return "", fmt.Errorf("symbol(%s): %w", token, err)
	}
	s, err := ethereum.UnpackString(ret)
	if err != nil {
		return "", fmt.Errorf("decode symbol(%s): %w", token, err)
	}
	return s, nil
}

// Decimals reads the token's decimal count.
func (r *Reader) Decimals(ctx context.Context, token ethereum.Address) (uint8, error) {
	ret, err := r.staticCall(ctx, token, selDecimals)
	if err != nil {
		return 0, fmt.Errorf("decimals(%s): %w", token, err)
	}
	d, err := ethereum.UnpackUint8(ret)
	if err != nil {
		return 0, fmt.Errorf("decode decimals(%s): %w", token, err)
	}
	return d, nil
}

// Allowance reads the owner's token allowance toward the spender.
func (r *Reader) Allowance(ctx context.Context, token, owner, spender ethereum.Address) (*big.Int, error) {
	ret, err := r.staticCall(ctx, token, selAllowance, owner, spender)
	if err != nil {
		return nil, fmt.Errorf("allowance(%s): %w", token, err)
	}
	v, err := ethereum.UnpackUint256(ret)
	if err != nil {
		return nil, fmt.Errorf("decode allowance(%s): %w", token, err)
	}
	return v, nil
}

// BalanceOf reads the owner's token balance.
func (r *Reader) BalanceOf(ctx context.Context, token, owner ethereum.Address) (*big.Int, error) {
	ret, err := r.staticCall(ctx, token, selBalanceOf, owner)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s): %w", token, err)
	}
	v, err := ethereum.UnpackUint256(ret)
	if err != nil {
		return nil, fmt.Errorf("decode balanceOf(%s): %w", token, err)
	}
	return v, nil
}

// TokenPrice derives the token's USDC display price by chaining the USDC
// pool ratio with the token pool ratio.
func (r *Reader) TokenPrice(ctx context.Context, token ethereum.Address, tokenDecimals uint8) (float64, error) {
	tokenPool, err := r.Reserves(ctx, token)
	if err != nil {
		return 0, err
	}

	referencePool, err := r.Reserves(ctx, USDCAddress)
	if err != nil {
		return 0, err
	}

	return quote.SpotPrice(tokenPool, referencePool, USDCDecimals, tokenDecimals), nil
}

func (r *Reader) staticCall(ctx context.Context, to ethereum.Address, selector []byte, args ...interface{}) ([]byte, error) {
	data, err := ethereum.PackArgs(selector, args...)
	if err != nil {
		return nil, err
	}
	return r.backend.Call(ctx, ethereum.CallMsg{To: to, Data: data})
}
