// =============================
// File: internal/launchpad/pool.go
// =============================
package launchpad

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// LiquidityRequest deposits Currency plus matching tokens. MaxTokens, when
// set, bounds the token side.
type LiquidityRequest struct {
	ListingID domain.ListingID
	Provider  common.Address
	Currency  *uint256.Int
	MaxTokens *uint256.Int
	At        time.Time
}

// WithdrawRequest burns Liquidity units. The minimums are optional.
type WithdrawRequest struct {
	ListingID   domain.ListingID
	Provider    common.Address
	Liquidity   *uint256.Int
	MinCurrency *uint256.Int
	MinTokens   *uint256.Int
	At          time.Time
}

// LiquidityResult reports a deposit or a withdrawal.
type LiquidityResult struct {
	Liquidity *uint256.Int
	Currency  *uint256.Int
	Tokens    *uint256.Int
	Pool      *domain.Pool
	Events    []events.Event
}

// AddLiquidity deposits into a graduated listing's pool.
func (e *Engine) AddLiquidity(ctx context.Context, req LiquidityRequest) (*LiquidityResult, error) {
	const op = "add_liquidity"

	unlock := e.lock(req.ListingID)
	defer unlock()

	_, p, err := e.load(ctx, op, req.ListingID)
	if err != nil {
		return nil, err
	}

	now := e.now(req.At)
	minted, tokensIn, err := e.pools.AddLiquidity(p, req.Provider, req.Currency, now)
	if err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}
	if err := checkMax("tokens in", tokensIn, req.MaxTokens); err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}

	if err := e.commit(ctx, op, storage.Change{Pool: p}); err != nil {
		return nil, err
	}

	evts := []events.Event{events.LiquidityEvent{
		BaseEvent:  events.BaseEvent{EventType: events.LiquidityAdded, EventTime: now, ListingID: req.ListingID},
		Provider:   req.Provider,
		Currency:   req.Currency.Clone(),
		Tokens:     tokensIn.Clone(),
		Liquidity:  minted.Clone(),
		LockExpiry: p.Positions[req.Provider].LockExpiry,
	}}
	e.publish(evts)

	e.logger.Info("Liquidity added",
		zap.Uint64("listing_id", uint64(req.ListingID)),
		zap.String("provider", req.Provider.Hex()),
		zap.String("currency", req.Currency.Dec()),
		zap.String("tokens", tokensIn.Dec()),
		zap.String("liquidity", minted.Dec()))

	return &LiquidityResult{
		Liquidity: minted,
		Currency:  req.Currency.Clone(),
		Tokens:    tokensIn,
		Pool:      p,
		Events:    evts,
	}, nil
}

// RemoveLiquidity withdraws unlocked liquidity.
func (e *Engine) RemoveLiquidity(ctx context.Context, req WithdrawRequest) (*LiquidityResult, error) {
	const op = "remove_liquidity"

	unlock := e.lock(req.ListingID)
	defer unlock()

	_, p, err := e.load(ctx, op, req.ListingID)
	if err != nil {
		return nil, err
	}

	now := e.now(req.At)
	currencyOut, tokensOut, err := e.pools.RemoveLiquidity(p, req.Provider, req.Liquidity, now)
	if err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}
	if err := checkMin("currency out", currencyOut, req.MinCurrency); err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}
	if err := checkMin("tokens out", tokensOut, req.MinTokens); err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}

	if err := e.commit(ctx, op, storage.Change{Pool: p}); err != nil {
		return nil, err
	}

	evts := []events.Event{events.LiquidityEvent{
		BaseEvent: events.BaseEvent{EventType: events.LiquidityRemoved, EventTime: now, ListingID: req.ListingID},
		Provider:  req.Provider,
		Currency:  currencyOut.Clone(),
		Tokens:    tokensOut.Clone(),
		Liquidity: req.Liquidity.Clone(),
	}}
	e.publish(evts)

	e.logger.Info("Liquidity removed",
		zap.Uint64("listing_id", uint64(req.ListingID)),
		zap.String("provider", req.Provider.Hex()),
		zap.String("currency", currencyOut.Dec()),
		zap.String("tokens", tokensOut.Dec()))

	return &LiquidityResult{
		Liquidity: req.Liquidity.Clone(),
		Currency:  currencyOut,
		Tokens:    tokensOut,
		Pool:      p,
		Events:    evts,
	}, nil
}

// SwapRequest trades AmountIn against the pool. MinOut, when set, is the
// slippage floor.
type SwapRequest struct {
	ListingID domain.ListingID
	Trader    common.Address
	AmountIn  *uint256.Int
	MinOut    *uint256.Int
	At        time.Time
}

// SwapResult reports a trade.
type SwapResult struct {
	AmountIn  *uint256.Int
	AmountOut *uint256.Int
	Pool      *domain.Pool
	Events    []events.Event
}

// SwapCurrencyForToken buys tokens from a graduated listing's pool.
func (e *Engine) SwapCurrencyForToken(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	return e.swap(ctx, req, events.CurrencyToToken)
}

// SwapTokenForCurrency sells tokens into a graduated listing's pool.
func (e *Engine) SwapTokenForCurrency(ctx context.Context, req SwapRequest) (*SwapResult, error) {
	return e.swap(ctx, req, events.TokenToCurrency)
}

func (e *Engine) swap(ctx context.Context, req SwapRequest, dir events.Direction) (*SwapResult, error) {
	op := "swap_" + string(dir)

	unlock := e.lock(req.ListingID)
	defer unlock()

	_, p, err := e.load(ctx, op, req.ListingID)
	if err != nil {
		return nil, err
	}

	var out *uint256.Int
	if dir == events.CurrencyToToken {
		out, err = e.pools.SwapCurrencyForToken(p, req.AmountIn)
	} else {
		out, err = e.pools.SwapTokenForCurrency(p, req.AmountIn)
	}
	if err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}
	if err := checkMin("amount out", out, req.MinOut); err != nil {
		return nil, e.reject(op, req.ListingID, err)
	}

	if err := e.commit(ctx, op, storage.Change{Pool: p}); err != nil {
		return nil, err
	}

	now := e.now(req.At)
	evts := []events.Event{events.SwapEvent{
		BaseEvent:       events.BaseEvent{EventType: events.Swapped, EventTime: now, ListingID: req.ListingID},
		Trader:          req.Trader,
		Direction:       dir,
		AmountIn:        req.AmountIn.Clone(),
		AmountOut:       out.Clone(),
		CurrencyReserve: p.CurrencyReserve.Clone(),
		TokenReserve:    p.TokenReserve.Clone(),
	}}
	e.publish(evts)

	e.logger.Info("Swap executed",
		zap.Uint64("listing_id", uint64(req.ListingID)),
		zap.String("direction", string(dir)),
		zap.String("trader", req.Trader.Hex()),
		zap.String("amount_in", req.AmountIn.Dec()),
		zap.String("amount_out", out.Dec()))

	return &SwapResult{AmountIn: req.AmountIn.Clone(), AmountOut: out, Pool: p, Events: evts}, nil
}

// EstimateTokensForCurrency quotes a currency-to-token swap without
// executing it.
func (e *Engine) EstimateTokensForCurrency(ctx context.Context, id domain.ListingID, in *uint256.Int) (*uint256.Int, error) {
	return e.estimate(ctx, id, in, events.CurrencyToToken)
}

// EstimateCurrencyForTokens quotes a token-to-currency swap without
// executing it.
func (e *Engine) EstimateCurrencyForTokens(ctx context.Context, id domain.ListingID, in *uint256.Int) (*uint256.Int, error) {
	return e.estimate(ctx, id, in, events.TokenToCurrency)
}

func (e *Engine) estimate(ctx context.Context, id domain.ListingID, in *uint256.Int, dir events.Direction) (*uint256.Int, error) {
	op := "estimate_" + string(dir)

	unlock := e.lock(id)
	defer unlock()

	_, p, err := e.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	var out *uint256.Int
	if dir == events.CurrencyToToken {
		out, err = e.pools.EstimateTokensForCurrency(p, in)
	} else {
		out, err = e.pools.EstimateCurrencyForTokens(p, in)
	}
	if err != nil {
		return nil, domain.NewOpError(op, id, err)
	}
	return out, nil
}
