package trading

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-custodian/internal/domain"
	"swap-custodian/internal/ethereum"
	"swap-custodian/internal/quote"
	"swap-custodian/internal/storage/memory"
	"swap-custodian/internal/uniswap"
	"swap-custodian/internal/wallet"
)

var (
	testBotAddress = ethereum.MustAddress("0x00000000000000000000000000000000000b0000")
	testToken      = ethereum.MustAddress("0xffffffffffffffffffffffffffffffffffffffff")
	testPair       = ethereum.MustAddress("0xd3d2e2692501a5c9ca623199d38826e513b4429a")
	testTxHash     = ethereum.Hash{0x11}
)

// stubBackend answers reads by (to, selector) lookup and records every
// raw transaction broadcast.
type stubBackend struct {
	returns  map[string][]byte
	receipts map[ethereum.Hash]*ethereum.Receipt
	sent     [][]byte
}

func newExecutorStub() *stubBackend {
	return &stubBackend{
		returns:  make(map[string][]byte),
		receipts: make(map[ethereum.Hash]*ethereum.Receipt),
	}
}

func callKey(to ethereum.Address, selector []byte) string {
	return to.String() + ":" + hex.EncodeToString(selector)
}

func (s *stubBackend) on(to ethereum.Address, selector []byte, ret []byte) {
	s.returns[callKey(to, selector)] = ret
}

func (s *stubBackend) Call(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	if len(msg.Data) < 4 {
		return nil, errors.New("missing selector")
	}
	ret, ok := s.returns[callKey(msg.To, msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return ret, nil
}

func (s *stubBackend) ChainID(context.Context) (*big.Int, error)  { return big.NewInt(1), nil }
func (s *stubBackend) GasPrice(context.Context) (*big.Int, error) { return big.NewInt(1_000_000_000), nil }
func (s *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}
func (s *stubBackend) NonceAt(context.Context, ethereum.Address) (uint64, error) { return 7, nil }

func (s *stubBackend) SendRawTransaction(_ context.Context, rawTx []byte) (ethereum.Hash, error) {
	s.sent = append(s.sent, rawTx)
	return testTxHash, nil
}

func (s *stubBackend) TransactionReceipt(_ context.Context, txHash ethereum.Hash) (*ethereum.Receipt, error) {
	return s.receipts[txHash], nil
}

func addrTopic(a ethereum.Address) ethereum.Hash {
	var h ethereum.Hash
	copy(h[12:], a[:])
	return h
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
	return append(out, encUint(big.NewInt(1700000000))...)
}

func encString(s string) []byte {
	out := append(encUint(big.NewInt(ethereum.ABIWord)), encUint(big.NewInt(int64(len(s))))...)
	padded := make([]byte, (len(s)+ethereum.ABIWord-1)/ethereum.ABIWord*ethereum.ABIWord)
	copy(padded, s)
	return append(out, padded...)
}

func exp10(n int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(n), nil)
}

func transferLog(emitter, from, to ethereum.Address, amount *big.Int) ethereum.Log {
	return ethereum.Log{
		Address: emitter,
		Topics: []ethereum.Hash{
			ethereum.EventTopic("Transfer(address,address,uint256)"),
			addrTopic(from),
			addrTopic(to),
		},
		Data: ethereum.EncodeBytes(encUint(amount)),
	}
}

type executorFixture struct {
	backend  *stubBackend
	executor *Executor
	vault    *wallet.Vault
	trades   *memory.TradeStore
	account  *wallet.Account
}

func newExecutorFixture(t *testing.T) *executorFixture {
	t.Helper()

	backend := newExecutorStub()
	vault := wallet.NewVault(memory.NewKeyStore())
	trades := memory.NewTradeStore()
	logger := slog.New(slog.DiscardHandler)

	executor := NewExecutor(
		backend, uniswap.NewReader(backend), vault, trades,
		testBotAddress, big.NewInt(1), logger,
		WithPollInterval(time.Millisecond),
	)

	// Provision the identity up front so the test can craft receipt logs
	// addressed to its account.
	acct, err := vault.GetOrCreate(context.Background(), "user-1")
	require.NoError(t, err)

	return &executorFixture{
		backend:  backend,
		executor: executor,
		vault:    vault,
		trades:   trades,
		account:  acct,
	}
}

// registerPool wires the token's pair lookup and reserves into the stub.
func (f *executorFixture) registerPool(reserve0, reserve1 *big.Int) {
	f.backend.on(uniswap.FactoryAddress, ethereum.Selector("getPair(address,address)"), encAddress(testPair))
	f.backend.on(testPair, ethereum.Selector("getReserves()"), encReserves(reserve0, reserve1))
}

func (f *executorFixture) allowSimulation() {
	f.backend.on(testBotAddress, ethereum.Selector("buyTokens_v2Router(address,uint256)"), nil)
	f.backend.on(testBotAddress, ethereum.Selector("sellTokens_v2Router(address,uint256,uint256)"), nil)
}

func (f *executorFixture) confirmWithLogs(logs ...ethereum.Log) {
	f.backend.receipts[testTxHash] = &ethereum.Receipt{
		TransactionHash: testTxHash,
		Status:          "0x1",
		BlockNumber:     "0x12d687",
		Logs:            logs,
	}
}

func buyRequest(amountIn *big.Int) domain.SwapRequest {
	return domain.SwapRequest{
		Identity:      "user-1",
		TokenAddress:  testToken.String(),
		AmountIn:      amountIn,
		Slippage:      "0.5",
		TokenDecimals: 18,
		TokenPrice:    0.02,
	}
}

func TestExecutor_Buy(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	// 1,000,000 tokens against 10 WETH; token sorts above WETH so WETH
	// takes slot 0.
	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	f.registerPool(wethReserve, tokenReserve)
	f.allowSimulation()
	f.backend.on(testToken, ethereum.Selector("symbol()"), encString("MEME"))

	realized := new(big.Int).Mul(big.NewInt(90_000), exp10(18))
	f.confirmWithLogs(
		// Noise the matcher must skip.
		transferLog(uniswap.WETHAddress, f.account.Address(), testPair, big.NewInt(1)),
		transferLog(testToken, testPair, f.account.Address(), realized),
	)

	amountIn := exp10(18) // 1 ether
	trade, err := f.executor.Buy(ctx, buyRequest(amountIn))
	require.NoError(t, err)

	assert.Equal(t, domain.SwapTypeBuy, trade.SwapType)
	assert.Equal(t, testTxHash.String(), trade.Hash)
	assert.Equal(t, f.account.Address().String(), trade.WalletAddress)
	assert.Equal(t, "user-1", trade.TwitterID)
	assert.Equal(t, "MEME", trade.Symbol)
	assert.Equal(t, ethereum.EncodeWord(amountIn), trade.AmountIn)
	assert.Equal(t, ethereum.EncodeWord(realized), trade.AmountOut)
	assert.Equal(t, uint64(0x12d687), trade.BlockNumber)

	require.Len(t, f.backend.sent, 1)

	// The trade landed in the ledger.
	stored, err := f.trades.GetByID(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.Hash, stored.Hash)
}

func TestExecutor_Buy_ZeroReservesNoSubmission(t *testing.T) {
	f := newExecutorFixture(t)

	f.registerPool(big.NewInt(0), big.NewInt(0))
	f.allowSimulation()

	_, err := f.executor.Buy(context.Background(), buyRequest(exp10(18)))
	assert.ErrorIs(t, err, quote.ErrInsufficientLiquidity)
	assert.Empty(t, f.backend.sent, "no transaction may be submitted on a failed quote")
}

func TestExecutor_Buy_SimulationRevertNoSubmission(t *testing.T) {
	f := newExecutorFixture(t)

	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	f.registerPool(wethReserve, tokenReserve)
	// No simulation stub registered: the dry run reverts.

	_, err := f.executor.Buy(context.Background(), buyRequest(exp10(18)))

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, "simulate", chainErr.Stage)
	assert.Empty(t, f.backend.sent)
}

func TestExecutor_Buy_NoTransferLogNotRecorded(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	f.registerPool(wethReserve, tokenReserve)
	f.allowSimulation()

	// Confirmed receipt, but the only transfer goes to a stranger.
	stranger := ethereum.MustAddress("0x000000000000000000000000000000000000dead")
	f.confirmWithLogs(transferLog(testToken, testPair, stranger, big.NewInt(1)))

	_, err := f.executor.Buy(ctx, buyRequest(exp10(18)))
	require.ErrorIs(t, err, ErrTransferEventNotFound)

	// The unverifiable trade must not reach the ledger.
	trades, lerr := f.trades.GetByIdentity(ctx, "user-1")
	require.NoError(t, lerr)
	assert.Empty(t, trades)
}

func TestExecutor_Buy_RevertedTransaction(t *testing.T) {
	f := newExecutorFixture(t)

	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	f.registerPool(wethReserve, tokenReserve)
	f.allowSimulation()

	f.backend.receipts[testTxHash] = &ethereum.Receipt{
		TransactionHash: testTxHash,
		Status:          "0x0",
		BlockNumber:     "0x12d687",
	}

	_, err := f.executor.Buy(context.Background(), buyRequest(exp10(18)))

	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Equal(t, "confirm", chainErr.Stage)
}

func TestExecutor_Sell(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	f.registerPool(wethReserve, tokenReserve)
	f.allowSimulation()
	f.backend.on(testToken, ethereum.Selector("symbol()"), encString("MEME"))

	// Sell proceeds are WETH moving from the pair to the router, not to
	// the signing account.
	proceeds := new(big.Int).Div(exp10(18), big.NewInt(100))
	f.confirmWithLogs(
		transferLog(testToken, f.account.Address(), testPair, exp10(18)),
		transferLog(uniswap.WETHAddress, testPair, uniswap.RouterAddress, proceeds),
	)

	req := buyRequest(new(big.Int).Mul(big.NewInt(1000), exp10(18)))
	trade, err := f.executor.Sell(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, domain.SwapTypeSell, trade.SwapType)
	assert.Equal(t, ethereum.EncodeWord(proceeds), trade.AmountOut)
	require.Len(t, f.backend.sent, 1)
}

func TestExecutor_Sell_ProceedsToAccountDoNotMatch(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	tokenReserve := new(big.Int).Mul(big.NewInt(1_000_000), exp10(18))
	wethReserve := new(big.Int).Mul(big.NewInt(10), exp10(18))
	f.registerPool(wethReserve, tokenReserve)
	f.allowSimulation()

	// WETH to the signing account instead of the router: wrong recipient
	// for a sell, so the result is unverifiable.
	f.confirmWithLogs(transferLog(uniswap.WETHAddress, testPair, f.account.Address(), exp10(15)))

	_, err := f.executor.Sell(ctx, buyRequest(exp10(18)))
	assert.ErrorIs(t, err, ErrTransferEventNotFound)

	trades, lerr := f.trades.GetByIdentity(ctx, "user-1")
	require.NoError(t, lerr)
	assert.Empty(t, trades)
}

func TestExecutor_Approve(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	f.backend.on(testToken, ethereum.Selector("allowance(address,address)"), encUint(big.NewInt(0)))
	f.confirmWithLogs()

	result, err := f.executor.Approve(ctx, "user-1", testToken.String())
	require.NoError(t, err)

	assert.False(t, result.AlreadyApproved)
	assert.Equal(t, testTxHash.String(), result.TxHash)
	require.Len(t, f.backend.sent, 1)
}

func TestExecutor_Approve_AlreadyAtMaximum(t *testing.T) {
	f := newExecutorFixture(t)

	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	f.backend.on(testToken, ethereum.Selector("allowance(address,address)"), encUint(max))

	result, err := f.executor.Approve(context.Background(), "user-1", testToken.String())
	require.NoError(t, err)

	assert.True(t, result.AlreadyApproved)
	assert.Empty(t, result.TxHash)
	assert.Empty(t, f.backend.sent, "no transaction needed when allowance is already max")
}

func TestExecutor_RejectsInvalidInput(t *testing.T) {
	f := newExecutorFixture(t)
	ctx := context.Background()

	_, err := f.executor.Buy(ctx, domain.SwapRequest{Identity: "user-1", TokenAddress: testToken.String()})
	assert.Error(t, err, "nil amount")

	req := buyRequest(exp10(18))
	req.TokenAddress = "not-an-address"
	_, err = f.executor.Buy(ctx, req)
	assert.Error(t, err)
}
