// Package report collects engine state into printable snapshots.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/monitor"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

// ListingRow is the display form of one listing.
type ListingRow struct {
	ID           domain.ListingID
	Name         string
	Symbol       string
	Sold         string
	Raised       string
	Price        string
	Progress     float64
	Contributors int
	Status       string
}

// PoolRow is the display form of a seeded pool.
type PoolRow struct {
	ID         domain.ListingID
	Symbol     string
	Currency   string
	Tokens     string
	Liquidity  string
	SpotPrice  string
	Providers  int
	LockExpiry time.Time
}

// Snapshot is everything the report and the dashboard show.
type Snapshot struct {
	TakenAt  time.Time
	Listings []ListingRow
	Pools    []PoolRow
	Treasury string
	// Stats is nil when no journal is attached.
	Stats *journal.Stats
	// Alerts is left to the caller; Collect does not fill it.
	Alerts []monitor.Alert
}

const places = 6

var hundred = decimal.NewFromInt(100)

func format(x *uint256.Int) string {
	return units.FormatFixed(x, units.Decimals, places)
}

// Collect reads every listing and its pool. j may be nil.
func Collect(ctx context.Context, e *launchpad.Engine, j *journal.Journal) (*Snapshot, error) {
	listings, err := e.Listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	treasury, err := e.Treasury(ctx)
	if err != nil {
		return nil, fmt.Errorf("load treasury: %w", err)
	}

	snap := &Snapshot{TakenAt: time.Now(), Treasury: format(treasury)}
	if j != nil {
		stats := j.Statistics()
		snap.Stats = &stats
	}

	target := e.Book().Config().SaleTarget
	unit := e.Book().Curve().Unit()

	for _, l := range listings {
		price, err := e.Book().Quote(l)
		if err != nil {
			return nil, fmt.Errorf("quote listing %d: %w", l.ID, err)
		}
		snap.Listings = append(snap.Listings, ListingRow{
			ID:           l.ID,
			Name:         l.Name,
			Symbol:       l.Symbol,
			Sold:         format(l.Sold),
			Raised:       format(l.Raised),
			Price:        format(price),
			Progress:     progress(l.Sold, target),
			Contributors: len(l.Contributors),
			Status:       status(l),
		})

		if !l.LiquidityCreated {
			continue
		}
		_, p, err := e.Listing(ctx, l.ID)
		if err != nil {
			return nil, err
		}
		row := PoolRow{
			ID:        l.ID,
			Symbol:    l.Symbol,
			Currency:  format(p.CurrencyReserve),
			Tokens:    format(p.TokenReserve),
			Liquidity: format(p.TotalLiquidity),
			Providers: len(p.Providers),
			SpotPrice: "-",
		}
		if spot, err := e.Pools().SpotPrice(p, unit); err == nil {
			row.SpotPrice = format(spot)
		}
		for _, pos := range p.Positions {
			if pos.LockExpiry.After(row.LockExpiry) {
				row.LockExpiry = pos.LockExpiry
			}
		}
		snap.Pools = append(snap.Pools, row)
	}
	return snap, nil
}

func status(l *domain.Listing) string {
	switch {
	case l.IsOpen:
		return "open"
	case l.LiquidityCreated:
		return "graduated"
	default:
		return "closed"
	}
}

// progress is sold/target in percent, capped at 100.
func progress(sold, target *uint256.Int) float64 {
	if target == nil || target.IsZero() {
		return 0
	}
	ratio := units.ToDecimal(sold, 0).Div(units.ToDecimal(target, 0)).Mul(hundred)
	f, _ := ratio.Float64()
	if f > 100 {
		return 100
	}
	return f
}
