package server

import (
	"fmt"
	"math/big"
	"strings"
)

// parseDecimalAmount converts a human decimal amount ("1.5") into raw
// integer units at the given decimal scale, exactly. Rejects negatives,
// empty input and fractions finer than the scale allows.
func parseDecimalAmount(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return nil, fmt.Errorf("negative amount %q", amount)
	}

	intPart, frac, _ := strings.Cut(s, ".")
	if intPart == "" {
		intPart = "0"
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}

	// Shift the decimal point right by padding the fraction to scale.
	digits := intPart + frac + strings.Repeat("0", int(decimals)-len(frac))

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	if v.Sign() == 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	return v, nil
}
