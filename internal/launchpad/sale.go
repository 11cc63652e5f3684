// =============================
// File: internal/launchpad/sale.go
// =============================
package launchpad

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/sale"
	"github.com/rovshanmuradov/launchpad/internal/storage"
)

// CreateRequest opens a listing. At defaults to the engine clock.
type CreateRequest struct {
	Token       common.Address
	Creator     common.Address
	Name        string
	Symbol      string
	MetadataURI string
	Fee         *uint256.Int
	At          time.Time
}

// CreateResult carries the new listing.
type CreateResult struct {
	Listing *domain.Listing
	Events  []events.Event
}

// Create assigns the next listing id, opens the sale and books the fee.
func (e *Engine) Create(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	const op = "create"

	e.treasuryMu.Lock()
	defer e.treasuryMu.Unlock()

	_, _, err := e.store.LoadByToken(ctx, req.Token)
	switch {
	case err == nil:
		return nil, e.reject(op, 0, domain.ErrTokenExists)
	case !errors.Is(err, domain.ErrListingNotFound):
		return nil, fmt.Errorf("%s: lookup token: %w", op, err)
	}

	now := e.now(req.At)
	// validate before taking an id
	if _, err := e.book.Open(0, sale.OpenRequest{Fee: req.Fee}, now); err != nil {
		return nil, e.reject(op, 0, err)
	}

	id, err := e.store.Next(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: next id: %w", op, err)
	}

	l, err := e.book.Open(id, sale.OpenRequest{
		Token:       req.Token,
		Creator:     req.Creator,
		Name:        req.Name,
		Symbol:      req.Symbol,
		MetadataURI: req.MetadataURI,
		Fee:         req.Fee,
	}, now)
	if err != nil {
		return nil, e.reject(op, id, err)
	}

	balance, err := e.store.LoadTreasury(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: load treasury: %w", op, err)
	}
	treasury := sale.NewTreasury(balance)
	if err := treasury.Collect(req.Fee); err != nil {
		return nil, e.reject(op, id, err)
	}

	change := storage.Change{
		Listing:  l,
		Pool:     domain.NewPool(id, l.Token),
		Treasury: treasury.Balance,
	}
	if err := e.commit(ctx, op, change); err != nil {
		return nil, err
	}

	evts := []events.Event{events.ListingCreatedEvent{
		BaseEvent: events.BaseEvent{EventType: events.ListingCreated, EventTime: now, ListingID: id},
		Token:     l.Token,
		Creator:   l.Creator,
		Name:      l.Name,
		Symbol:    l.Symbol,
		Fee:       req.Fee.Clone(),
	}}
	e.publish(evts)

	e.logger.Info("Listing created",
		zap.Uint64("listing_id", uint64(id)),
		zap.String("token", l.Token.Hex()),
		zap.String("symbol", l.Symbol),
		zap.String("fee", req.Fee.Dec()))

	return &CreateResult{Listing: l.Clone(), Events: evts}, nil
}

// BuyRequest buys Amount tokens paying at most Paid.
type BuyRequest struct {
	ListingID domain.ListingID
	Buyer     common.Address
	Amount    *uint256.Int
	Paid      *uint256.Int
	At        time.Time
}

// BuyFundsRequest spends up to Funds on the largest affordable amount.
type BuyFundsRequest struct {
	ListingID domain.ListingID
	Buyer     common.Address
	Funds     *uint256.Int
	// MinAmount rejects the purchase when fewer tokens would be bought.
	MinAmount *uint256.Int
	At        time.Time
}

// BuyResult carries the receipt and, for the closing purchase, the
// graduation and the seeded pool.
type BuyResult struct {
	Receipt    *sale.Receipt
	Graduation *sale.Graduation
	Listing    *domain.Listing
	Pool       *domain.Pool
	Events     []events.Event
}

// Buy sells tokens along the curve. The purchase that reaches the sale
// target also seeds the pool in the same commit.
func (e *Engine) Buy(ctx context.Context, req BuyRequest) (*BuyResult, error) {
	return e.buy(ctx, "buy", req.ListingID, req.At, func(l *domain.Listing, now time.Time) (*sale.Receipt, *sale.Graduation, error) {
		return e.book.Buy(l, req.Buyer, req.Amount, req.Paid, now)
	})
}

// BuyWithFunds converts a currency budget into a purchase.
func (e *Engine) BuyWithFunds(ctx context.Context, req BuyFundsRequest) (*BuyResult, error) {
	return e.buy(ctx, "buy_funds", req.ListingID, req.At, func(l *domain.Listing, now time.Time) (*sale.Receipt, *sale.Graduation, error) {
		receipt, grad, err := e.book.BuyWithFunds(l, req.Buyer, req.Funds, now)
		if err != nil {
			return nil, nil, err
		}
		// l is a private copy, so rejecting here discards the purchase
		if err := checkMin("tokens out", receipt.Amount, req.MinAmount); err != nil {
			return nil, nil, err
		}
		return receipt, grad, nil
	})
}

type buyFunc func(l *domain.Listing, now time.Time) (*sale.Receipt, *sale.Graduation, error)

func (e *Engine) buy(ctx context.Context, op string, id domain.ListingID, at time.Time, apply buyFunc) (*BuyResult, error) {
	unlock := e.lock(id)
	defer unlock()

	l, p, err := e.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	now := e.now(at)
	receipt, grad, err := apply(l, now)
	if err != nil {
		return nil, e.reject(op, id, err)
	}

	evts := []events.Event{events.PurchaseEvent{
		BaseEvent: events.BaseEvent{EventType: events.Purchase, EventTime: now, ListingID: id},
		Buyer:     receipt.Buyer,
		Amount:    receipt.Amount,
		Cost:      receipt.Cost,
		Refund:    receipt.Refund,
		Price:     receipt.Price,
		Sold:      l.Sold.Clone(),
		Raised:    l.Raised.Clone(),
	}}

	if grad != nil {
		if err := e.pools.SeedShares(p, grad.Raised, grad.PoolTokens, grad.Shares, now); err != nil {
			return nil, e.reject(op, id, fmt.Errorf("seed pool: %w", err))
		}
		evts = append(evts,
			events.GraduatedEvent{
				BaseEvent:     events.BaseEvent{EventType: events.Graduated, EventTime: now, ListingID: id},
				Raised:        grad.Raised,
				Unsold:        grad.Unsold,
				RewardReserve: grad.RewardReserve,
				PoolTokens:    grad.PoolTokens,
				Contributors:  len(grad.Shares),
			},
			events.PoolSeededEvent{
				BaseEvent:       events.BaseEvent{EventType: events.PoolSeeded, EventTime: now, ListingID: id},
				CurrencyReserve: p.CurrencyReserve.Clone(),
				TokenReserve:    p.TokenReserve.Clone(),
				TotalLiquidity:  p.TotalLiquidity.Clone(),
				LockExpiry:      now.Add(e.pools.Config().LockDuration),
			})
	}

	change := storage.Change{Listing: l}
	if grad != nil {
		change.Pool = p
	}
	if err := e.commit(ctx, op, change); err != nil {
		return nil, err
	}
	e.publish(evts)

	e.logger.Info("Purchase accepted",
		zap.Uint64("listing_id", uint64(id)),
		zap.String("buyer", receipt.Buyer.Hex()),
		zap.String("amount", receipt.Amount.Dec()),
		zap.String("cost", receipt.Cost.Dec()),
		zap.String("sold", l.Sold.Dec()))
	if grad != nil {
		e.logger.Info("Listing graduated",
			zap.Uint64("listing_id", uint64(id)),
			zap.String("raised", grad.Raised.Dec()),
			zap.String("pool_tokens", grad.PoolTokens.Dec()),
			zap.Int("contributors", len(grad.Shares)))
	}

	return &BuyResult{
		Receipt:    receipt,
		Graduation: grad,
		Listing:    l,
		Pool:       p,
		Events:     evts,
	}, nil
}

// ClaimResult carries a paid reward.
type ClaimResult struct {
	Amount  *uint256.Int
	Listing *domain.Listing
	Events  []events.Event
}

// ClaimReward pays a contributor's reward after graduation.
func (e *Engine) ClaimReward(ctx context.Context, id domain.ListingID, claimant common.Address, at time.Time) (*ClaimResult, error) {
	const op = "claim_reward"

	unlock := e.lock(id)
	defer unlock()

	l, _, err := e.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	reward, err := e.book.ClaimReward(l, claimant)
	if err != nil {
		return nil, e.reject(op, id, err)
	}
	if err := e.commit(ctx, op, storage.Change{Listing: l}); err != nil {
		return nil, err
	}

	evts := []events.Event{events.RewardClaimedEvent{
		BaseEvent: events.BaseEvent{EventType: events.RewardClaimed, EventTime: e.now(at), ListingID: id},
		Claimant:  claimant,
		Amount:    reward.Clone(),
	}}
	e.publish(evts)

	e.logger.Info("Reward claimed",
		zap.Uint64("listing_id", uint64(id)),
		zap.String("claimant", claimant.Hex()),
		zap.String("amount", reward.Dec()))

	return &ClaimResult{Amount: reward, Listing: l, Events: evts}, nil
}

// WithdrawResult reports the treasury after a withdrawal.
type WithdrawResult struct {
	Amount  *uint256.Int
	Balance *uint256.Int
	Events  []events.Event
}

// WithdrawFees moves collected listing fees out to the operator.
func (e *Engine) WithdrawFees(ctx context.Context, caller common.Address, amount *uint256.Int, at time.Time) (*WithdrawResult, error) {
	const op = "withdraw_fees"

	if caller != e.opts.Operator {
		return nil, e.reject(op, 0, domain.ErrUnauthorized)
	}

	e.treasuryMu.Lock()
	defer e.treasuryMu.Unlock()

	balance, err := e.store.LoadTreasury(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: load treasury: %w", op, err)
	}
	treasury := sale.NewTreasury(balance)
	if err := treasury.Withdraw(amount); err != nil {
		return nil, e.reject(op, 0, err)
	}
	if err := e.commit(ctx, op, storage.Change{Treasury: treasury.Balance}); err != nil {
		return nil, err
	}

	evts := []events.Event{events.FeesWithdrawnEvent{
		BaseEvent: events.BaseEvent{EventType: events.FeesWithdrawn, EventTime: e.now(at)},
		Operator:  caller,
		Amount:    amount.Clone(),
		Balance:   treasury.Balance.Clone(),
	}}
	e.publish(evts)

	e.logger.Info("Fees withdrawn",
		zap.String("amount", amount.Dec()),
		zap.String("balance", treasury.Balance.Dec()))

	return &WithdrawResult{Amount: amount.Clone(), Balance: treasury.Balance, Events: evts}, nil
}

// Treasury returns the collected fee balance.
func (e *Engine) Treasury(ctx context.Context) (*uint256.Int, error) {
	return e.store.LoadTreasury(ctx)
}

// QuoteResult is a read-only view of a listing's sale.
type QuoteResult struct {
	Price     *uint256.Int
	Sold      *uint256.Int
	Raised    *uint256.Int
	Remaining *uint256.Int
	IsOpen    bool
}

// Quote returns the current price and totals of a listing.
func (e *Engine) Quote(ctx context.Context, id domain.ListingID) (*QuoteResult, error) {
	unlock := e.lock(id)
	defer unlock()

	l, _, err := e.load(ctx, "quote", id)
	if err != nil {
		return nil, err
	}
	price, err := e.book.Quote(l)
	if err != nil {
		return nil, domain.NewOpError("quote", id, err)
	}
	return &QuoteResult{
		Price:     price,
		Sold:      l.Sold,
		Raised:    l.Raised,
		Remaining: e.book.Remaining(l),
		IsOpen:    l.IsOpen,
	}, nil
}

// CostFor prices amount tokens at the listing's current position.
func (e *Engine) CostFor(ctx context.Context, id domain.ListingID, amount *uint256.Int) (*uint256.Int, error) {
	unlock := e.lock(id)
	defer unlock()

	l, _, err := e.load(ctx, "cost", id)
	if err != nil {
		return nil, err
	}
	cost, err := e.book.CostFor(l, domain.CloneAmount(amount))
	if err != nil {
		return nil, domain.NewOpError("cost", id, err)
	}
	return cost, nil
}

// Listing returns a snapshot of a listing and its pool.
func (e *Engine) Listing(ctx context.Context, id domain.ListingID) (*domain.Listing, *domain.Pool, error) {
	unlock := e.lock(id)
	defer unlock()
	return e.load(ctx, "get", id)
}

// Listings returns every listing.
func (e *Engine) Listings(ctx context.Context) ([]*domain.Listing, error) {
	return e.store.List(ctx)
}
