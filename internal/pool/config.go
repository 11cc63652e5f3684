// =============================
// File: internal/pool/config.go
// =============================
package pool

import (
	"fmt"
	"time"
)

const bpsDenominator = 10_000

// Config holds pool parameters shared by every listing.
type Config struct {
	// LockDuration is how long a provider's liquidity stays locked after
	// seeding or adding.
	LockDuration time.Duration
	// FeeBps is deducted from swap input before pricing; the whole input
	// still enters the reserve.
	FeeBps uint64
}

// DefaultConfig returns a seven day lock and no swap fee.
func DefaultConfig() Config {
	return Config{
		LockDuration: 7 * 24 * time.Hour,
		FeeBps:       0,
	}
}

func (c Config) Validate() error {
	if c.LockDuration < 0 {
		return fmt.Errorf("lock duration must not be negative")
	}
	if c.FeeBps >= bpsDenominator {
		return fmt.Errorf("fee bps %d out of range", c.FeeBps)
	}
	return nil
}
