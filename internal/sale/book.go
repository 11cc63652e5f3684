// =============================
// File: internal/sale/book.go
// =============================
package sale

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// Book applies sale operations to listing records. It holds no state of its
// own; callers pass a private copy of the listing and keep it only when the
// call succeeds.
type Book struct {
	cfg   Config
	curve *curve.Curve
}

// NewBook validates cfg and binds it to a pricing curve.
func NewBook(cfg Config, c *curve.Curve) (*Book, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sale config: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("curve is required")
	}
	return &Book{cfg: cfg, curve: c}, nil
}

// Config returns the sale limits.
func (b *Book) Config() Config {
	return b.cfg
}

// Curve returns the pricing curve.
func (b *Book) Curve() *curve.Curve {
	return b.curve
}

// OpenRequest describes a new listing.
type OpenRequest struct {
	Token       common.Address
	Creator     common.Address
	Name        string
	Symbol      string
	MetadataURI string
	// Fee is what the creator paid; it must cover the listing fee.
	Fee *uint256.Int
}

// Open creates an open listing. The whole paid fee is kept by the treasury.
func (b *Book) Open(id domain.ListingID, req OpenRequest, now time.Time) (*domain.Listing, error) {
	if req.Fee == nil || req.Fee.Lt(b.cfg.ListingFee) {
		return nil, domain.ErrInsufficientListingFee
	}
	return domain.NewListing(id, req.Token, req.Creator, req.Name, req.Symbol, req.MetadataURI, now), nil
}

// Quote returns the current price per whole token.
func (b *Book) Quote(l *domain.Listing) (*uint256.Int, error) {
	return b.curve.Quote(l.Sold)
}

// CostFor prices amount tokens at the listing's current position.
func (b *Book) CostFor(l *domain.Listing, amount *uint256.Int) (*uint256.Int, error) {
	return b.curve.CostFor(l.Sold, amount)
}

// Remaining returns the tokens not yet sold.
func (b *Book) Remaining(l *domain.Listing) *uint256.Int {
	if !l.Sold.Lt(b.cfg.TotalSupply) {
		return domain.Zero()
	}
	return new(uint256.Int).Sub(b.cfg.TotalSupply, l.Sold)
}

// Receipt reports an accepted purchase.
type Receipt struct {
	ListingID domain.ListingID
	Buyer     common.Address
	Amount    *uint256.Int
	Cost      *uint256.Int
	// Refund is the part of the payment above Cost, returned to the buyer.
	Refund *uint256.Int
	// Price is the quote after the purchase.
	Price *uint256.Int
}

// Graduation is emitted once, by the purchase that closes a listing. It
// carries what the pool is seeded with.
type Graduation struct {
	ListingID     domain.ListingID
	Token         common.Address
	Raised        *uint256.Int
	Unsold        *uint256.Int
	RewardReserve *uint256.Int
	PoolTokens    *uint256.Int
	// Shares apportion Raised liquidity units by currency paid.
	Shares []domain.Share
}

// Buy sells amount tokens to buyer. paid is the currency offered; anything
// above the cost is reported as a refund. The listing is changed only when
// the purchase is accepted. A non-nil Graduation means the listing closed.
func (b *Book) Buy(l *domain.Listing, buyer common.Address, amount, paid *uint256.Int, now time.Time) (*Receipt, *Graduation, error) {
	if domain.IsZero(amount) {
		return nil, nil, domain.ErrInvalidAmount
	}
	if !l.IsOpen {
		return nil, nil, domain.ErrSaleClosed
	}

	sold, err := domain.Add(l.Sold, amount)
	if err != nil {
		return nil, nil, domain.ErrExceedsSupply
	}
	if sold.Gt(b.cfg.TotalSupply) {
		return nil, nil, domain.ErrExceedsSupply
	}

	cost, err := b.curve.CostFor(l.Sold, amount)
	if err != nil {
		return nil, nil, fmt.Errorf("price purchase: %w", err)
	}
	if paid == nil || paid.Lt(cost) {
		return nil, nil, domain.ErrInsufficientPayment
	}

	raised, err := domain.Add(l.Raised, cost)
	if err != nil {
		return nil, nil, err
	}

	// Settle the closing split before touching the record so a rejected
	// graduation leaves the listing as it was.
	var grad *Graduation
	if !sold.Lt(b.cfg.SaleTarget) {
		grad, err = b.graduation(l, sold, raised)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := l.Record(buyer, amount, cost); err != nil {
		return nil, nil, err
	}
	l.Sold = sold
	l.Raised = raised

	if grad != nil {
		l.IsOpen = false
		l.LiquidityCreated = true
		l.RewardReserve = grad.RewardReserve.Clone()
		l.GraduatedAt = now
		grad.Shares = shares(l)
	}

	price, err := b.curve.Quote(l.Sold)
	if err != nil {
		return nil, nil, err
	}

	return &Receipt{
		ListingID: l.ID,
		Buyer:     buyer,
		Amount:    amount.Clone(),
		Cost:      cost,
		Refund:    new(uint256.Int).Sub(paid, cost),
		Price:     price,
	}, grad, nil
}

// BuyWithFunds spends at most funds on the largest affordable amount.
func (b *Book) BuyWithFunds(l *domain.Listing, buyer common.Address, funds *uint256.Int, now time.Time) (*Receipt, *Graduation, error) {
	if domain.IsZero(funds) {
		return nil, nil, domain.ErrInvalidAmount
	}
	if !l.IsOpen {
		return nil, nil, domain.ErrSaleClosed
	}

	amount, err := b.curve.TokensForFunds(l.Sold, funds, b.Remaining(l))
	if err != nil {
		return nil, nil, fmt.Errorf("size purchase: %w", err)
	}
	if amount.IsZero() {
		return nil, nil, domain.ErrInsufficientPayment
	}
	return b.Buy(l, buyer, amount, funds, now)
}

func (b *Book) graduation(l *domain.Listing, sold, raised *uint256.Int) (*Graduation, error) {
	unsold := new(uint256.Int).Sub(b.cfg.TotalSupply, sold)

	reserve, err := domain.MulDiv(raised, uint256.NewInt(b.cfg.RewardBps), uint256.NewInt(BpsDenominator))
	if err != nil {
		return nil, err
	}
	if !reserve.Lt(unsold) {
		// nothing left to seed the pool with
		return nil, domain.ErrExceedsSupply
	}

	return &Graduation{
		ListingID:     l.ID,
		Token:         l.Token,
		Raised:        raised.Clone(),
		Unsold:        unsold,
		RewardReserve: reserve,
		PoolTokens:    new(uint256.Int).Sub(unsold, reserve),
	}, nil
}

func shares(l *domain.Listing) []domain.Share {
	out := make([]domain.Share, 0, len(l.Contributors))
	for _, addr := range l.Contributors {
		out = append(out, domain.Share{
			Provider:  addr,
			Liquidity: l.Contributions[addr].Paid.Clone(),
		})
	}
	return out
}

// Reward returns what claimant may claim from a graduated listing.
func (b *Book) Reward(l *domain.Listing, claimant common.Address) (*uint256.Int, error) {
	if !l.LiquidityCreated {
		return nil, domain.ErrLiquidityNotCreated
	}
	c := l.Contribution(claimant)
	if c == nil {
		return nil, domain.ErrNoContribution
	}
	if c.RewardClaimed {
		return nil, domain.ErrRewardClaimed
	}
	return domain.MulDiv(c.Paid, uint256.NewInt(b.cfg.RewardBps), uint256.NewInt(BpsDenominator))
}

// ClaimReward pays claimant's reward out of the listing's reserve. Each
// contributor can claim once.
func (b *Book) ClaimReward(l *domain.Listing, claimant common.Address) (*uint256.Int, error) {
	reward, err := b.Reward(l, claimant)
	if err != nil {
		return nil, err
	}

	left, err := domain.Sub(l.RewardReserve, reward)
	if err != nil {
		return nil, fmt.Errorf("reward reserve exhausted: %w", err)
	}
	l.RewardReserve = left
	l.Contribution(claimant).RewardClaimed = true
	return reward, nil
}
