// =============================
// File: internal/curve/config.go
// =============================
package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/units"
)

// Config describes the step price curve. Prices are in currency base units
// per whole token (10^Decimals token base units).
type Config struct {
	Decimals   uint8
	FloorPrice *uint256.Int
	PriceStep  *uint256.Int
	// BandWidth is the number of token base units sold at one price.
	BandWidth *uint256.Int
}

// DefaultConfig returns the launch curve: 0.0001 per token for the first
// 10,000 tokens, rising by 0.0001 with every further 10,000.
func DefaultConfig() Config {
	return Config{
		Decimals:   units.Decimals,
		FloorPrice: units.Ether("0.0001"),
		PriceStep:  units.Ether("0.0001"),
		BandWidth:  units.Ether("10000"),
	}
}

// Validate checks that the curve is well formed.
func (c Config) Validate() error {
	if c.FloorPrice == nil || c.FloorPrice.IsZero() {
		return fmt.Errorf("curve floor price must be positive")
	}
	if c.PriceStep == nil {
		return fmt.Errorf("curve price step is required")
	}
	if c.BandWidth == nil || c.BandWidth.IsZero() {
		return fmt.Errorf("curve band width must be positive")
	}
	if c.Decimals > 36 {
		return fmt.Errorf("curve decimals %d out of range", c.Decimals)
	}
	return nil
}
