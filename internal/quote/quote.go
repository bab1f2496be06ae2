// Package quote computes constant-product swap amounts and slippage bounds.
// All on-chain amounts use big.Int with truncating division so results match
// on-chain rounding exactly; floats appear only in display-price helpers.
package quote

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"

	"swap-custodian/internal/domain"
)

// ErrInsufficientLiquidity is returned when either pool reserve is zero.
var ErrInsufficientLiquidity = errors.New("insufficient liquidity")

var (
	fee997   = big.NewInt(997)
	base1000 = big.NewInt(1000)
	hundred  = big.NewInt(100)
)

// AmountOut computes the output amount of a constant-product swap with the
// 0.3% fee: amountIn*997*reserveOut / (reserveIn*1000 + amountIn*997).
func AmountOut(amountIn, reserveIn, reserveOut *big.Int) (*big.Int, error) {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return nil, ErrInsufficientLiquidity
	}

	inWithFee := new(big.Int).Mul(amountIn, fee997)
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, base1000)
	denominator.Add(denominator, inWithFee)

	return numerator.Quo(numerator, denominator), nil
}

// BasisPointsMultiplier returns the integer scale factor needed to do
// fractional-percentage arithmetic without floating point: 10 raised to the
// number of decimal digits in the slippage value ("0.5" -> 10, "5" -> 1).
func BasisPointsMultiplier(slippage string) int64 {
	_, frac, ok := strings.Cut(slippage, ".")
	if !ok {
		return 1
	}
	return int64(math.Pow10(len(frac)))
}

// MinimumOut applies a slippage tolerance to a quoted output amount:
// amountOut * ((100 - slippage) * bp) / (100 * bp), all in integers.
// slippage is a percentage string in [0, 100], fractional digits allowed.
func MinimumOut(amountOut *big.Int, slippage string) (*big.Int, error) {
	scaled, bp, err := parseSlippage(slippage)
	if err != nil {
		return nil, err
	}

	// (100 - slippage) * bp == 100*bp - slippage*bp, already integer.
	numerator := new(big.Int).Sub(new(big.Int).Mul(hundred, big.NewInt(bp)), big.NewInt(scaled))
	denominator := new(big.Int).Mul(hundred, big.NewInt(bp))

	out := new(big.Int).Mul(amountOut, numerator)
	return out.Quo(out, denominator), nil
}

// parseSlippage parses a decimal percentage into (slippage*bp, bp).
func parseSlippage(slippage string) (scaled int64, bp int64, err error) {
	s := strings.TrimSpace(slippage)
	if s == "" {
		return 0, 0, fmt.Errorf("empty slippage")
	}

	intPart, frac, hasDot := strings.Cut(s, ".")
	if hasDot && frac == "" {
		return 0, 0, fmt.Errorf("parse slippage %q: dangling decimal point", slippage)
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(frac) > 9 {
		return 0, 0, fmt.Errorf("slippage %q has too many fractional digits", slippage)
	}

	// ParseUint rejects signs and any non-digit, so "-0.5" and trailing
	// garbage like "0.5x9" fail instead of partially parsing.
	whole, err := strconv.ParseUint(intPart, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("parse slippage %q: %w", slippage, err)
	}

	bp = 1
	for range frac {
		bp *= 10
	}

	scaled = int64(whole) * bp
	if frac != "" {
		f, err := strconv.ParseUint(frac, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("parse slippage %q: %w", slippage, err)
		}
		scaled += int64(f)
	}

	if scaled > 100*bp {
		return 0, 0, fmt.Errorf("slippage %q out of range [0, 100]", slippage)
	}
	return scaled, bp, nil
}

// SpotPrice derives a human-readable token price in the reference asset by
// chaining two reserve ratios: (reference/native) * (native/token).
// Floating point, display only; never feeds on-chain amounts.
func SpotPrice(token, reference domain.ReservePair, refDecimals, tokenDecimals uint8) float64 {
	refRatio := toUnits(reference.TokenReserves, refDecimals) /
		toUnits(reference.NativeReserves, 18)
	tokenRatio := toUnits(token.NativeReserves, 18) /
		toUnits(token.TokenReserves, tokenDecimals)

	return refRatio * tokenRatio
}

func toUnits(v *big.Int, decimals uint8) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)),
	).Float64()
	return f
}
