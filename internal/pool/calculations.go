// =============================
// File: internal/pool/calculations.go
// =============================
package pool

import (
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// calculateOutput вычисляет выходное количество по формуле Constant Product AMM:
//
//	out = y * a' / (x + a'),  a' = a * (10000 - feeBps) / 10000
//
// где x - резерв входного актива, y - резерв выходного, a - входное количество.
// Результат округляется вниз.
func calculateOutput(reserveIn, reserveOut, amountIn *uint256.Int, feeBps uint64) (*uint256.Int, error) {
	effective, err := domain.MulDiv(amountIn, uint256.NewInt(bpsDenominator-feeBps), uint256.NewInt(bpsDenominator))
	if err != nil {
		return nil, err
	}

	denominator, err := domain.Add(reserveIn, effective)
	if err != nil {
		return nil, err
	}
	if denominator.IsZero() {
		return domain.Zero(), nil
	}
	return domain.MulDiv(reserveOut, effective, denominator)
}

// proportion returns floor(amount * part / whole).
func proportion(amount, part, whole *uint256.Int) (*uint256.Int, error) {
	return domain.MulDiv(amount, part, whole)
}

// proportionUp returns ceil(amount * part / whole).
func proportionUp(amount, part, whole *uint256.Int) (*uint256.Int, error) {
	return domain.MulDivUp(amount, part, whole)
}
