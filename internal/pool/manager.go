// =============================
// File: internal/pool/manager.go
// =============================
package pool

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// Manager applies liquidity and swap operations to pool records. Like
// sale.Book it is stateless; every method either fully updates the pool it
// is given or returns an error and leaves it untouched.
type Manager struct {
	cfg Config
}

// NewManager validates cfg.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}
	return &Manager{cfg: cfg}, nil
}

// Config returns the pool parameters.
func (m *Manager) Config() Config {
	return m.cfg
}

// Seed initializes the reserves and credits provider with currency units.
func (m *Manager) Seed(p *domain.Pool, currency, tokens *uint256.Int, provider common.Address, now time.Time) error {
	return m.SeedShares(p, currency, tokens, []domain.Share{{Provider: provider, Liquidity: currency}}, now)
}

// SeedShares initializes the reserves and splits the currency liquidity
// units across shares. The shares must add up to currency exactly.
func (m *Manager) SeedShares(p *domain.Pool, currency, tokens *uint256.Int, shares []domain.Share, now time.Time) error {
	if p.Seeded {
		return domain.ErrPoolAlreadySeeded
	}
	if domain.IsZero(currency) || domain.IsZero(tokens) || len(shares) == 0 {
		return domain.ErrInvalidSeed
	}

	total := domain.Zero()
	for _, s := range shares {
		if domain.IsZero(s.Liquidity) {
			return domain.ErrInvalidSeed
		}
		sum, err := domain.Add(total, s.Liquidity)
		if err != nil {
			return domain.ErrInvalidSeed
		}
		total = sum
	}
	if !total.Eq(currency) {
		return fmt.Errorf("%w: shares add up to %s, want %s", domain.ErrInvalidSeed, total.Dec(), currency.Dec())
	}

	expiry := now.Add(m.cfg.LockDuration)
	for _, s := range shares {
		pos := p.Position(s.Provider)
		pos.Liquidity = new(uint256.Int).Add(pos.Liquidity, s.Liquidity)
		pos.LockExpiry = expiry
	}

	p.CurrencyReserve = currency.Clone()
	p.TokenReserve = tokens.Clone()
	p.TotalLiquidity = currency.Clone()
	p.Seeded = true
	return nil
}

func (m *Manager) ready(p *domain.Pool) error {
	if !p.Seeded {
		return domain.ErrPoolNotInitialized
	}
	if p.CurrencyReserve.IsZero() || p.TokenReserve.IsZero() || p.TotalLiquidity.IsZero() {
		return domain.ErrPoolEmpty
	}
	return nil
}

// AddLiquidity deposits currency plus the matching token amount at the
// current ratio. It returns the minted units and the tokens the provider
// must supply. The provider's lock restarts.
func (m *Manager) AddLiquidity(p *domain.Pool, provider common.Address, currency *uint256.Int, now time.Time) (minted, tokensIn *uint256.Int, err error) {
	if err := m.ready(p); err != nil {
		return nil, nil, err
	}
	if domain.IsZero(currency) {
		return nil, nil, domain.ErrInvalidAmount
	}

	minted, err = proportion(currency, p.TotalLiquidity, p.CurrencyReserve)
	if err != nil {
		return nil, nil, err
	}
	if minted.IsZero() {
		return nil, nil, domain.ErrInvalidAmount
	}
	tokensIn, err = proportionUp(currency, p.TokenReserve, p.CurrencyReserve)
	if err != nil {
		return nil, nil, err
	}

	currencyReserve, err := domain.Add(p.CurrencyReserve, currency)
	if err != nil {
		return nil, nil, err
	}
	tokenReserve, err := domain.Add(p.TokenReserve, tokensIn)
	if err != nil {
		return nil, nil, err
	}
	totalLiquidity, err := domain.Add(p.TotalLiquidity, minted)
	if err != nil {
		return nil, nil, err
	}

	pos := p.Position(provider)
	pos.Liquidity = new(uint256.Int).Add(pos.Liquidity, minted)
	pos.LockExpiry = now.Add(m.cfg.LockDuration)

	p.CurrencyReserve = currencyReserve
	p.TokenReserve = tokenReserve
	p.TotalLiquidity = totalLiquidity
	return minted, tokensIn, nil
}

// RemoveLiquidity burns amount of provider's units once the lock has
// expired and pays out the proportional reserves, rounded down.
func (m *Manager) RemoveLiquidity(p *domain.Pool, provider common.Address, amount *uint256.Int, now time.Time) (currencyOut, tokensOut *uint256.Int, err error) {
	if !p.Seeded {
		return nil, nil, domain.ErrPoolNotInitialized
	}

	pos, ok := p.Positions[provider]
	if !ok || pos.Liquidity.IsZero() {
		return nil, nil, domain.ErrInsufficientLiquidity
	}
	if now.Before(pos.LockExpiry) {
		return nil, nil, fmt.Errorf("%w until %s", domain.ErrLiquidityLocked, pos.LockExpiry.UTC().Format(time.RFC3339))
	}
	if domain.IsZero(amount) {
		return nil, nil, domain.ErrInvalidAmount
	}
	if amount.Gt(pos.Liquidity) {
		return nil, nil, domain.ErrInsufficientLiquidity
	}

	currencyOut, err = proportion(amount, p.CurrencyReserve, p.TotalLiquidity)
	if err != nil {
		return nil, nil, err
	}
	tokensOut, err = proportion(amount, p.TokenReserve, p.TotalLiquidity)
	if err != nil {
		return nil, nil, err
	}

	pos.Liquidity = new(uint256.Int).Sub(pos.Liquidity, amount)
	p.TotalLiquidity = new(uint256.Int).Sub(p.TotalLiquidity, amount)
	p.CurrencyReserve = new(uint256.Int).Sub(p.CurrencyReserve, currencyOut)
	p.TokenReserve = new(uint256.Int).Sub(p.TokenReserve, tokensOut)
	return currencyOut, tokensOut, nil
}

// SwapCurrencyForToken sells in currency to the pool.
func (m *Manager) SwapCurrencyForToken(p *domain.Pool, in *uint256.Int) (*uint256.Int, error) {
	out, err := m.EstimateTokensForCurrency(p, in)
	if err != nil {
		return nil, err
	}
	p.CurrencyReserve = new(uint256.Int).Add(p.CurrencyReserve, in)
	p.TokenReserve = new(uint256.Int).Sub(p.TokenReserve, out)
	return out, nil
}

// SwapTokenForCurrency sells in tokens to the pool.
func (m *Manager) SwapTokenForCurrency(p *domain.Pool, in *uint256.Int) (*uint256.Int, error) {
	out, err := m.EstimateCurrencyForTokens(p, in)
	if err != nil {
		return nil, err
	}
	p.TokenReserve = new(uint256.Int).Add(p.TokenReserve, in)
	p.CurrencyReserve = new(uint256.Int).Sub(p.CurrencyReserve, out)
	return out, nil
}

// EstimateTokensForCurrency returns what SwapCurrencyForToken would pay out.
func (m *Manager) EstimateTokensForCurrency(p *domain.Pool, in *uint256.Int) (*uint256.Int, error) {
	return m.estimate(p, p.CurrencyReserve, p.TokenReserve, in)
}

// EstimateCurrencyForTokens returns what SwapTokenForCurrency would pay out.
func (m *Manager) EstimateCurrencyForTokens(p *domain.Pool, in *uint256.Int) (*uint256.Int, error) {
	return m.estimate(p, p.TokenReserve, p.CurrencyReserve, in)
}

func (m *Manager) estimate(p *domain.Pool, reserveIn, reserveOut, in *uint256.Int) (*uint256.Int, error) {
	if err := m.ready(p); err != nil {
		return nil, err
	}
	if domain.IsZero(in) {
		return nil, domain.ErrInvalidAmount
	}
	// the input reserve has to absorb the full amount
	if _, err := domain.Add(reserveIn, in); err != nil {
		return nil, err
	}

	out, err := calculateOutput(reserveIn, reserveOut, in, m.cfg.FeeBps)
	if err != nil {
		return nil, err
	}
	if out.IsZero() {
		return nil, domain.ErrInsufficientOutput
	}
	return out, nil
}

// SpotPrice returns the currency value of one whole token (unit base
// units) at the current reserves.
func (m *Manager) SpotPrice(p *domain.Pool, unit *uint256.Int) (*uint256.Int, error) {
	if err := m.ready(p); err != nil {
		return nil, err
	}
	return proportion(unit, p.CurrencyReserve, p.TokenReserve)
}
