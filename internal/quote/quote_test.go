package quote

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swap-custodian/internal/domain"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok, "parse big int %q", s)
	return v
}

func TestAmountOut_ZeroInput(t *testing.T) {
	out, err := AmountOut(big.NewInt(0), big.NewInt(1000), big.NewInt(2000))
	require.NoError(t, err)
	assert.Zero(t, out.Sign())
}

func TestAmountOut_ZeroReserves(t *testing.T) {
	tests := []struct {
		name       string
		reserveIn  *big.Int
		reserveOut *big.Int
	}{
		{"zero reserveIn", big.NewInt(0), big.NewInt(1000)},
		{"zero reserveOut", big.NewInt(1000), big.NewInt(0)},
		{"both zero", big.NewInt(0), big.NewInt(0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AmountOut(big.NewInt(100), tt.reserveIn, tt.reserveOut)
			assert.ErrorIs(t, err, ErrInsufficientLiquidity)
		})
	}
}

func TestAmountOut_FeeErosion(t *testing.T) {
	// With equal reserves the output must be strictly below the input.
	r := big.NewInt(1_000_000)
	for _, in := range []int64{1, 10, 1000, 999_999} {
		out, err := AmountOut(big.NewInt(in), r, r)
		require.NoError(t, err)
		assert.Negative(t, out.Cmp(big.NewInt(in)), "amountIn=%d", in)
	}
}

func TestAmountOut_Monotone(t *testing.T) {
	reserveIn := big.NewInt(5_000_000)
	reserveOut := big.NewInt(3_000_000)

	prev := big.NewInt(-1)
	for in := int64(0); in < 100_000; in += 997 {
		out, err := AmountOut(big.NewInt(in), reserveIn, reserveOut)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, out.Cmp(prev), 0)
		prev = out
	}
}

func TestAmountOut_ConcreteScenario(t *testing.T) {
	// reserves {token: 1_000_000 (18 decimals), weth: 10 ether}, amountIn 1 ether.
	oneEther := bigFromString(t, "1000000000000000000")
	tokenReserves := new(big.Int).Mul(big.NewInt(1_000_000), oneEther)
	wethReserves := new(big.Int).Mul(big.NewInt(10), oneEther)

	out, err := AmountOut(oneEther, wethReserves, tokenReserves)
	require.NoError(t, err)

	// floor(1e18*997*1_000_000e18 / (10e18*1000 + 1e18*997))
	in997 := new(big.Int).Mul(oneEther, big.NewInt(997))
	num := new(big.Int).Mul(in997, tokenReserves)
	den := new(big.Int).Add(new(big.Int).Mul(wethReserves, big.NewInt(1000)), in997)
	want := num.Quo(num, den)

	assert.Zero(t, out.Cmp(want))
}

func TestBasisPointsMultiplier(t *testing.T) {
	tests := []struct {
		slippage string
		want     int64
	}{
		{"5", 1},
		{"0.5", 10},
		{"0.05", 100},
		{"12.345", 1000},
		{"100", 1},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BasisPointsMultiplier(tt.slippage), "slippage=%s", tt.slippage)
	}
}

func TestMinimumOut(t *testing.T) {
	x := bigFromString(t, "123456789123456789")

	t.Run("zero slippage is identity", func(t *testing.T) {
		out, err := MinimumOut(x, "0")
		require.NoError(t, err)
		assert.Zero(t, out.Cmp(x))
	})

	t.Run("full slippage is zero", func(t *testing.T) {
		out, err := MinimumOut(x, "100")
		require.NoError(t, err)
		assert.Zero(t, out.Sign())
	})

	t.Run("half percent uses multiplier 10", func(t *testing.T) {
		out, err := MinimumOut(x, "0.5")
		require.NoError(t, err)

		// amountOut * 995 / 1000 exactly
		want := new(big.Int).Mul(x, big.NewInt(995))
		want.Quo(want, big.NewInt(1000))
		assert.Zero(t, out.Cmp(want))
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for _, slippage := range []string{
			"100.1",
			"-1",
			"",
			"-0.5",  // negative intPart must not scan as zero
			"0.5x9", // trailing garbage must not partially parse
			"1x.5",
			"abc",
			"1.",
			"+1",
			"0.1234567890", // fractional overflow of the multiplier
		} {
			_, err := MinimumOut(x, slippage)
			assert.Error(t, err, "slippage=%q", slippage)
		}
	})
}

func TestSpotPrice(t *testing.T) {
	oneEther := bigFromString(t, "1000000000000000000")

	// USDC/WETH pool: 2000 USDC (6 decimals) per 1 WETH.
	reference := domain.ReservePair{
		TokenReserves:  big.NewInt(2_000_000_000), // 2000 USDC
		NativeReserves: oneEther,
	}

	// Token pool: 1000 tokens (18 decimals) per 1 WETH -> price 2 USDC.
	token := domain.ReservePair{
		TokenReserves:  new(big.Int).Mul(big.NewInt(1000), oneEther),
		NativeReserves: oneEther,
	}

	price := SpotPrice(token, reference, 6, 18)
	assert.InDelta(t, 2.0, price, 1e-9)
}
