// =============================
// File: internal/curve/curve.go
// =============================
package curve

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// Curve prices a fixed-supply sale along a non-decreasing step function.
//
// The price for the token base unit at cumulative position x is
//
//	price(x) = FloorPrice + PriceStep * floor(x / BandWidth)
//
// and the cost of a purchase is the integral of price over the bought range,
// divided by the token unit. All math is integer; see CostFor for rounding.
type Curve struct {
	cfg  Config
	unit *uint256.Int
}

// New validates cfg and builds a Curve.
func New(cfg Config) (*Curve, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	unit := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(cfg.Decimals)))
	return &Curve{cfg: cfg, unit: unit}, nil
}

// Config returns the curve parameters.
func (c *Curve) Config() Config {
	return c.cfg
}

// Unit returns 10^Decimals.
func (c *Curve) Unit() *uint256.Int {
	return c.unit.Clone()
}

// Quote returns the marginal price per whole token once sold units are gone.
func (c *Curve) Quote(sold *uint256.Int) (*uint256.Int, error) {
	band := new(uint256.Int).Div(sold, c.cfg.BandWidth)
	return c.bandPrice(band)
}

func (c *Curve) bandPrice(band *uint256.Int) (*uint256.Int, error) {
	step, overflow := new(uint256.Int).MulOverflow(c.cfg.PriceStep, band)
	if overflow {
		return nil, domain.ErrOverflow
	}
	return domain.Add(c.cfg.FloorPrice, step)
}

// CostFor returns what amount units cost starting after sold units.
//
// Cost is taken as the difference of a cumulative potential
// P(x) = ceil(G(x) / unit), where G is the exact scaled integral of the price
// over [0, x). Differences of one potential make the cost exactly additive
// over any split of a purchase, and rounding every cumulative point upward
// keeps the total ever charged at or above the exact integral.
func (c *Curve) CostFor(sold, amount *uint256.Int) (*uint256.Int, error) {
	end, err := domain.Add(sold, amount)
	if err != nil {
		return nil, err
	}

	hi, err := c.potential(end)
	if err != nil {
		return nil, err
	}
	lo, err := c.potential(sold)
	if err != nil {
		return nil, err
	}
	return domain.Sub(hi, lo)
}

// potential returns ceil(G(x) / unit).
func (c *Curve) potential(x *uint256.Int) (*uint256.Int, error) {
	g, err := c.integral(x)
	if err != nil {
		return nil, err
	}

	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(g, c.unit, r)
	if !r.IsZero() {
		return domain.Add(q, uint256.NewInt(1))
	}
	return q, nil
}

// integral returns G(x) = sum over full bands k < n of price_k * BandWidth
// plus price_n * (x - n*BandWidth), with n = floor(x / BandWidth).
//
// The full-band part collapses to BandWidth * (n*FloorPrice + PriceStep*n*(n-1)/2).
func (c *Curve) integral(x *uint256.Int) (*uint256.Int, error) {
	w := c.cfg.BandWidth
	n, rem := new(uint256.Int), new(uint256.Int)
	n.DivMod(x, w, rem)

	floorPart, overflow := new(uint256.Int).MulOverflow(n, c.cfg.FloorPrice)
	if overflow {
		return nil, domain.ErrOverflow
	}

	tri := new(uint256.Int)
	if !n.IsZero() {
		nm1 := new(uint256.Int).Sub(n, uint256.NewInt(1))
		if _, overflow = tri.MulOverflow(n, nm1); overflow {
			return nil, domain.ErrOverflow
		}
		tri.Rsh(tri, 1)
	}
	stepPart, overflow := new(uint256.Int).MulOverflow(tri, c.cfg.PriceStep)
	if overflow {
		return nil, domain.ErrOverflow
	}

	perBand, err := domain.Add(floorPart, stepPart)
	if err != nil {
		return nil, err
	}
	full, overflow := new(uint256.Int).MulOverflow(perBand, w)
	if overflow {
		return nil, domain.ErrOverflow
	}

	price, err := c.bandPrice(n)
	if err != nil {
		return nil, err
	}
	partial, overflow := new(uint256.Int).MulOverflow(price, rem)
	if overflow {
		return nil, domain.ErrOverflow
	}

	return domain.Add(full, partial)
}

// TokensForFunds returns the largest amount, at most limit, whose CostFor
// from sold does not exceed funds.
func (c *Curve) TokensForFunds(sold, funds, limit *uint256.Int) (*uint256.Int, error) {
	if limit.IsZero() || funds.IsZero() {
		return domain.Zero(), nil
	}

	cost, err := c.CostFor(sold, limit)
	if err != nil {
		return nil, fmt.Errorf("cost of limit: %w", err)
	}
	if !cost.Gt(funds) {
		return limit.Clone(), nil
	}

	// CostFor is non-decreasing in amount: bisect on [lo, hi) with
	// cost(lo) <= funds < cost(hi).
	lo, hi := domain.Zero(), limit.Clone()
	one := uint256.NewInt(1)
	for {
		gap := new(uint256.Int).Sub(hi, lo)
		if !gap.Gt(one) {
			break
		}
		mid := new(uint256.Int).Add(lo, gap.Rsh(gap, 1))
		cost, err := c.CostFor(sold, mid)
		if err != nil {
			return nil, err
		}
		if cost.Gt(funds) {
			hi = mid
		} else {
			lo = mid
		}
	}
	return lo, nil
}
