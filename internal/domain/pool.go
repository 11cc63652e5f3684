// =============================
// File: internal/domain/pool.go
// =============================
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Position is a provider's claim on a pool.
type Position struct {
	Liquidity  *uint256.Int
	LockExpiry time.Time
}

// Pool is the constant-product reserve pair of a graduated listing together
// with the liquidity units owned by each provider.
type Pool struct {
	ListingID ListingID
	Token     common.Address
	Seeded    bool

	CurrencyReserve *uint256.Int
	TokenReserve    *uint256.Int
	TotalLiquidity  *uint256.Int

	Providers []common.Address
	Positions map[common.Address]*Position
}

// NewPool returns an uninitialized pool for a listing.
func NewPool(id ListingID, token common.Address) *Pool {
	return &Pool{
		ListingID:       id,
		Token:           token,
		CurrencyReserve: Zero(),
		TokenReserve:    Zero(),
		TotalLiquidity:  Zero(),
		Positions:       make(map[common.Address]*Position),
	}
}

// Position returns the provider's position, creating an empty one on first
// use.
func (p *Pool) Position(provider common.Address) *Position {
	pos, ok := p.Positions[provider]
	if !ok {
		pos = &Position{Liquidity: Zero()}
		p.Positions[provider] = pos
		p.Providers = append(p.Providers, provider)
	}
	return pos
}

// LiquidityOf returns the units owned by provider.
func (p *Pool) LiquidityOf(provider common.Address) *uint256.Int {
	if pos, ok := p.Positions[provider]; ok {
		return pos.Liquidity.Clone()
	}
	return Zero()
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	cp := *p
	cp.CurrencyReserve = CloneAmount(p.CurrencyReserve)
	cp.TokenReserve = CloneAmount(p.TokenReserve)
	cp.TotalLiquidity = CloneAmount(p.TotalLiquidity)
	cp.Providers = append([]common.Address(nil), p.Providers...)
	cp.Positions = make(map[common.Address]*Position, len(p.Positions))
	for addr, pos := range p.Positions {
		cp.Positions[addr] = &Position{
			Liquidity:  CloneAmount(pos.Liquidity),
			LockExpiry: pos.LockExpiry,
		}
	}
	return &cp
}

// Share is the liquidity a provider receives when a pool is seeded.
type Share struct {
	Provider  common.Address
	Liquidity *uint256.Int
}
