// =============================
// File: internal/sale/config.go
// =============================
package sale

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/units"
)

// BpsDenominator is 100% in basis points.
const BpsDenominator = 10_000

// Config holds per-listing sale limits. All amounts are base units.
type Config struct {
	TotalSupply *uint256.Int
	// SaleTarget is the sold amount at which the listing graduates.
	SaleTarget *uint256.Int
	ListingFee *uint256.Int
	// RewardBps of the raised currency is reserved, in token units, for
	// contributor rewards at graduation. Zero disables rewards.
	RewardBps uint64
}

// DefaultConfig returns the launch parameters used by the reference fixtures.
func DefaultConfig() Config {
	return Config{
		TotalSupply: units.Ether("1000000"),
		SaleTarget:  units.Ether("20000"),
		ListingFee:  units.Ether("0.01"),
		RewardBps:   300,
	}
}

// Validate checks the limits are consistent.
func (c Config) Validate() error {
	if c.TotalSupply == nil || c.TotalSupply.IsZero() {
		return fmt.Errorf("total supply must be positive")
	}
	if c.SaleTarget == nil || c.SaleTarget.IsZero() {
		return fmt.Errorf("sale target must be positive")
	}
	if !c.SaleTarget.Lt(c.TotalSupply) {
		return fmt.Errorf("sale target %s must be below total supply %s", c.SaleTarget.Dec(), c.TotalSupply.Dec())
	}
	if c.ListingFee == nil {
		return fmt.Errorf("listing fee is required")
	}
	if c.RewardBps >= BpsDenominator {
		return fmt.Errorf("reward bps %d out of range", c.RewardBps)
	}
	return nil
}
