// =============================
// File: internal/domain/listing.go
// =============================
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ListingID is the sequence number assigned to a listing when it is created.
type ListingID uint64

// Contribution is what a single buyer has put into a sale.
type Contribution struct {
	Tokens        *uint256.Int
	Paid          *uint256.Int
	RewardClaimed bool
}

// Listing holds a token sale and its running totals.
type Listing struct {
	ID          ListingID
	Token       common.Address
	Creator     common.Address
	Name        string
	Symbol      string
	MetadataURI string

	Sold             *uint256.Int
	Raised           *uint256.Int
	IsOpen           bool
	LiquidityCreated bool

	// RewardReserve is set aside at graduation for contributor rewards.
	RewardReserve *uint256.Int

	Contributors  []common.Address
	Contributions map[common.Address]*Contribution

	CreatedAt   time.Time
	GraduatedAt time.Time
}

// NewListing returns an open listing with zeroed totals.
func NewListing(id ListingID, token, creator common.Address, name, symbol, uri string, now time.Time) *Listing {
	return &Listing{
		ID:            id,
		Token:         token,
		Creator:       creator,
		Name:          name,
		Symbol:        symbol,
		MetadataURI:   uri,
		Sold:          Zero(),
		Raised:        Zero(),
		IsOpen:        true,
		RewardReserve: Zero(),
		Contributions: make(map[common.Address]*Contribution),
		CreatedAt:     now,
	}
}

// Contribution returns the entry for account, or nil.
func (l *Listing) Contribution(account common.Address) *Contribution {
	return l.Contributions[account]
}

// Record appends or accumulates a buyer's contribution. First appearance
// fixes the buyer's position in Contributors.
func (l *Listing) Record(buyer common.Address, tokens, paid *uint256.Int) error {
	c, ok := l.Contributions[buyer]
	if !ok {
		c = &Contribution{Tokens: Zero(), Paid: Zero()}
		l.Contributions[buyer] = c
		l.Contributors = append(l.Contributors, buyer)
	}

	t, err := Add(c.Tokens, tokens)
	if err != nil {
		return err
	}
	p, err := Add(c.Paid, paid)
	if err != nil {
		return err
	}
	c.Tokens, c.Paid = t, p
	return nil
}

// Clone returns a deep copy.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	cp := *l
	cp.Sold = CloneAmount(l.Sold)
	cp.Raised = CloneAmount(l.Raised)
	cp.RewardReserve = CloneAmount(l.RewardReserve)
	cp.Contributors = append([]common.Address(nil), l.Contributors...)
	cp.Contributions = make(map[common.Address]*Contribution, len(l.Contributions))
	for addr, c := range l.Contributions {
		cp.Contributions[addr] = &Contribution{
			Tokens:        CloneAmount(c.Tokens),
			Paid:          CloneAmount(c.Paid),
			RewardClaimed: c.RewardClaimed,
		}
	}
	return &cp
}
