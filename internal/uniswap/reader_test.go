package uniswap

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-custodian/internal/ethereum"
)

// stubBackend answers eth_call by exact (to, calldata) lookup and rejects
// everything else.
type stubBackend struct {
	returns map[string][]byte
}

func newStubBackend() *stubBackend {
	return &stubBackend{returns: make(map[string][]byte)}
}

func (s *stubBackend) on(to ethereum.Address, data []byte, ret []byte) {
	s.returns[to.String()+":"+hex.EncodeToString(data)] = ret
}

func (s *stubBackend) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	ret, ok := s.returns[msg.To.String()+":"+hex.EncodeToString(msg.Data)]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return ret, nil
}

func (s *stubBackend) ChainID(context.Context) (*big.Int, error)  { return big.NewInt(1), nil }
func (s *stubBackend) GasPrice(context.Context) (*big.Int, error) { return big.NewInt(1), nil }
func (s *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 21000, nil
}
func (s *stubBackend) NonceAt(context.Context, ethereum.Address) (uint64, error) { return 0, nil }
func (s *stubBackend) SendRawTransaction(context.Context, []byte) (ethereum.Hash, error) {
	return ethereum.Hash{}, errors.New("not supported")
}
func (s *stubBackend) TransactionReceipt(context.Context, ethereum.Hash) (*ethereum.Receipt, error) {
	return nil, errors.New("not supported")
}

func mustPack(t *testing.T, selector []byte, args ...interface{}) []byte {
	t.Helper()
	data, err := ethereum.PackArgs(selector, args...)
	require.NoError(t, err)
	return data
}

func encAddress(a ethereum.Address) []byte {
	word := make([]byte, ethereum.ABIWord)
	copy(word[ethereum.ABIWord-20:], a[:])
	return word
}

func encUint(v *big.Int) []byte {
	word := make([]byte, ethereum.ABIWord)
	b := v.Bytes()
	copy(word[ethereum.ABIWord-len(b):], b)
	return word
}

func encReserves(reserve0, reserve1 *big.Int) []byte {
	out := append(encUint(reserve0), encUint(reserve1)...)
	return append(out, encUint(big.NewInt(1700000000))...) // blockTimestampLast
}

func encString(s string) []byte {
	out := append(encUint(big.NewInt(ethereum.ABIWord)), encUint(big.NewInt(int64(len(s))))...)
	padded := make([]byte, (len(s)+ethereum.ABIWord-1)/ethereum.ABIWord*ethereum.ABIWord)
	copy(padded, s)
	return append(out, padded...)
}

// registerPool wires a token's factory lookup and reserve read into the stub.
func registerPool(t *testing.T, backend *stubBackend, token, pair ethereum.Address, reserve0, reserve1 *big.Int) {
	t.Helper()
	backend.on(FactoryAddress, mustPack(t, selGetPair, token, WETHAddress), encAddress(pair))
	backend.on(pair, mustPack(t, selGetReserves), encReserves(reserve0, reserve1))
}

func TestReader_PairAddress(t *testing.T) {
	backend := newStubBackend()
	reader := NewReader(backend)
	ctx := context.Background()

	token := ethereum.MustAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	pair := ethereum.MustAddress("0xd3d2e2692501a5c9ca623199d38826e513b4429a")
	backend.on(FactoryAddress, mustPack(t, selGetPair, token, WETHAddress), encAddress(pair))

	got, err := reader.PairAddress(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, pair, got)
}

func TestReader_PairAddress_ZeroMeansNotFound(t *testing.T) {
	backend := newStubBackend()
	reader := NewReader(backend)

	token := ethereum.MustAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	backend.on(FactoryAddress, mustPack(t, selGetPair, token, WETHAddress), encAddress(ethereum.Address{}))

	_, err := reader.PairAddress(context.Background(), token)
	assert.ErrorIs(t, err, ErrPairNotFound)
}

func TestReader_Reserves_SlotAssignment(t *testing.T) {
	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))

	cases := []struct {
		name  string
		token ethereum.Address
	}{
		// USDC sorts below WETH, so the token takes slot 0.
		{"token is token0", USDCAddress},
		// 0xffff... sorts above WETH, so the token takes slot 1.
		{"token is token1", ethereum.MustAddress("0xffffffffffffffffffffffffffffffffffffffff")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newStubBackend()
			reader := NewReader(backend)
			pair := ethereum.MustAddress("0xd3d2e2692501a5c9ca623199d38826e513b4429a")

			if tc.token.Less(WETHAddress) {
				registerPool(t, backend, tc.token, pair, tokenReserve, wethReserve)
			} else {
				registerPool(t, backend, tc.token, pair, wethReserve, tokenReserve)
			}

			snapshot, err := reader.Reserves(context.Background(), tc.token)
			require.NoError(t, err)
			assert.Equal(t, pair.String(), snapshot.PairAddress)
			assert.Zero(t, snapshot.TokenReserves.Cmp(tokenReserve))
			assert.Zero(t, snapshot.NativeReserves.Cmp(wethReserve))
		})
	}
}

func TestReader_Metadata(t *testing.T) {
	backend := newStubBackend()
	reader := NewReader(backend)
	ctx := context.Background()

	token := ethereum.MustAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	backend.on(token, mustPack(t, selSymbol), encString("UNI"))
	backend.on(token, mustPack(t, selDecimals), encUint(big.NewInt(18)))

	symbol, err := reader.Symbol(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "UNI", symbol)

	decimals, err := reader.Decimals(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), decimals)
}

func TestReader_AllowanceAndBalance(t *testing.T) {
	backend := newStubBackend()
	reader := NewReader(backend)
	ctx := context.Background()

	token := ethereum.MustAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	owner := ethereum.MustAddress("0x7e5f4552091a69125d5dfcb7b8c2659029395bdf")

	backend.on(token, mustPack(t, selAllowance, owner, RouterAddress), encUint(big.NewInt(500)))
	backend.on(token, mustPack(t, selBalanceOf, owner), encUint(big.NewInt(42)))

	allowance, err := reader.Allowance(ctx, token, owner, RouterAddress)
	require.NoError(t, err)
	assert.Zero(t, allowance.Cmp(big.NewInt(500)))

	balance, err := reader.BalanceOf(ctx, token, owner)
	require.NoError(t, err)
	assert.Zero(t, balance.Cmp(big.NewInt(42)))
}

func TestReader_TokenPrice(t *testing.T) {
	backend := newStubBackend()
	reader := NewReader(backend)

	token := ethereum.MustAddress("0xffffffffffffffffffffffffffffffffffffffff")
	tokenPair := ethereum.MustAddress("0xd3d2e2692501a5c9ca623199d38826e513b4429a")
	usdcPair := ethereum.MustAddress("0xb4e16d0168e52d35cacd2c6185b44281ec28c9dc")

	// Token pool: 1,000,000 tokens against 10 WETH.
	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	// token sorts above WETH, so WETH is slot 0.
	registerPool(t, backend, token, tokenPair, wethReserve, tokenReserve)

	// Reference pool: 2,000,000 USDC against 1,000 WETH, i.e. 2000 USDC/WETH.
	usdcReserve := new(big.Int).Mul(big.NewInt(2_000_000), exp10(USDCDecimals))
	usdcWETHReserve := new(big.Int).Mul(big.NewInt(1_000), exp10(18))
	// USDC sorts below WETH, so USDC is slot 0.
	registerPool(t, backend, USDCAddress, usdcPair, usdcReserve, usdcWETHReserve)

	price, err := reader.TokenPrice(context.Background(), token, 18)
	require.NoError(t, err)

	// 2000 USDC/WETH * (10 WETH / 1,000,000 tokens) = 0.02 USDC.
	assert.InDelta(t, 0.02, price, 1e-9)
}

func TestReader_PropagatesCallErrors(t *testing.T) {
	reader := NewReader(newStubBackend())

	token := ethereum.MustAddress("0x1f9840a85d5af5bf1d1762f925bdaddc4201f984")
	_, err := reader.Symbol(context.Background(), token)
	assert.Error(t, err)
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}
