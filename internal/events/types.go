// internal/events/types.go
package events

import (
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/launchpad/internal/domain"
)

// EventType represents the type of event.
type EventType string

const (
	// Sale events
	ListingCreated EventType = "listing.created"
	Purchase       EventType = "sale.purchase"
	Graduated      EventType = "sale.graduated"
	RewardClaimed  EventType = "sale.reward_claimed"

	// Pool events
	PoolSeeded       EventType = "pool.seeded"
	LiquidityAdded   EventType = "pool.liquidity_added"
	LiquidityRemoved EventType = "pool.liquidity_removed"
	Swapped          EventType = "pool.swap"

	// Treasury events
	FeesWithdrawn EventType = "treasury.withdrawn"
)

// AllTypes lists every event type the engine emits.
var AllTypes = []EventType{
	ListingCreated, Purchase, Graduated, RewardClaimed,
	PoolSeeded, LiquidityAdded, LiquidityRemoved, Swapped,
	FeesWithdrawn,
}

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	// Listing is zero for events not tied to a listing.
	Listing() domain.ListingID
	// Attrs returns the payload as ordered key/value strings. Amounts are
	// base units in decimal.
	Attrs() []Attr
}

// Attr is one payload field.
type Attr struct {
	Key   string
	Value string
}

func amount(key string, v *uint256.Int) Attr {
	return Attr{Key: key, Value: domain.CloneAmount(v).Dec()}
}

func address(key string, v common.Address) Attr {
	return Attr{Key: key, Value: v.Hex()}
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
	ListingID domain.ListingID
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func (e BaseEvent) Listing() domain.ListingID {
	return e.ListingID
}

// ListingCreatedEvent is emitted when a listing opens.
type ListingCreatedEvent struct {
	BaseEvent
	Token   common.Address
	Creator common.Address
	Name    string
	Symbol  string
	Fee     *uint256.Int
}

func (e ListingCreatedEvent) Attrs() []Attr {
	return []Attr{
		address("token", e.Token),
		address("creator", e.Creator),
		{Key: "name", Value: e.Name},
		{Key: "symbol", Value: e.Symbol},
		amount("fee", e.Fee),
	}
}

// PurchaseEvent is emitted for every accepted curve purchase.
type PurchaseEvent struct {
	BaseEvent
	Buyer  common.Address
	Amount *uint256.Int
	Cost   *uint256.Int
	Refund *uint256.Int
	Price  *uint256.Int
	Sold   *uint256.Int
	Raised *uint256.Int
}

func (e PurchaseEvent) Attrs() []Attr {
	return []Attr{
		address("buyer", e.Buyer),
		amount("amount", e.Amount),
		amount("cost", e.Cost),
		amount("refund", e.Refund),
		amount("price", e.Price),
		amount("sold", e.Sold),
		amount("raised", e.Raised),
	}
}

// GraduatedEvent is emitted once when a listing closes.
type GraduatedEvent struct {
	BaseEvent
	Raised        *uint256.Int
	Unsold        *uint256.Int
	RewardReserve *uint256.Int
	PoolTokens    *uint256.Int
	Contributors  int
}

func (e GraduatedEvent) Attrs() []Attr {
	return []Attr{
		amount("raised", e.Raised),
		amount("unsold", e.Unsold),
		amount("reward_reserve", e.RewardReserve),
		amount("pool_tokens", e.PoolTokens),
		{Key: "contributors", Value: strconv.Itoa(e.Contributors)},
	}
}

// PoolSeededEvent follows GraduatedEvent.
type PoolSeededEvent struct {
	BaseEvent
	CurrencyReserve *uint256.Int
	TokenReserve    *uint256.Int
	TotalLiquidity  *uint256.Int
	LockExpiry      time.Time
}

func (e PoolSeededEvent) Attrs() []Attr {
	return []Attr{
		amount("currency_reserve", e.CurrencyReserve),
		amount("token_reserve", e.TokenReserve),
		amount("total_liquidity", e.TotalLiquidity),
		{Key: "lock_expiry", Value: e.LockExpiry.UTC().Format(time.RFC3339)},
	}
}

// LiquidityEvent is emitted for both deposits and withdrawals.
type LiquidityEvent struct {
	BaseEvent
	Provider  common.Address
	Currency  *uint256.Int
	Tokens    *uint256.Int
	Liquidity *uint256.Int
	// LockExpiry is set for deposits only.
	LockExpiry time.Time
}

func (e LiquidityEvent) Attrs() []Attr {
	attrs := []Attr{
		address("provider", e.Provider),
		amount("currency", e.Currency),
		amount("tokens", e.Tokens),
		amount("liquidity", e.Liquidity),
	}
	if !e.LockExpiry.IsZero() {
		attrs = append(attrs, Attr{Key: "lock_expiry", Value: e.LockExpiry.UTC().Format(time.RFC3339)})
	}
	return attrs
}

// Direction of a pool swap.
type Direction string

const (
	CurrencyToToken Direction = "currency_to_token"
	TokenToCurrency Direction = "token_to_currency"
)

// SwapEvent is emitted for every pool trade.
type SwapEvent struct {
	BaseEvent
	Trader          common.Address
	Direction       Direction
	AmountIn        *uint256.Int
	AmountOut       *uint256.Int
	CurrencyReserve *uint256.Int
	TokenReserve    *uint256.Int
}

func (e SwapEvent) Attrs() []Attr {
	return []Attr{
		address("trader", e.Trader),
		{Key: "direction", Value: string(e.Direction)},
		amount("amount_in", e.AmountIn),
		amount("amount_out", e.AmountOut),
		amount("currency_reserve", e.CurrencyReserve),
		amount("token_reserve", e.TokenReserve),
	}
}

// RewardClaimedEvent is emitted when a contributor collects a reward.
type RewardClaimedEvent struct {
	BaseEvent
	Claimant common.Address
	Amount   *uint256.Int
}

func (e RewardClaimedEvent) Attrs() []Attr {
	return []Attr{address("claimant", e.Claimant), amount("amount", e.Amount)}
}

// FeesWithdrawnEvent is emitted when the operator withdraws listing fees.
type FeesWithdrawnEvent struct {
	BaseEvent
	Operator common.Address
	Amount   *uint256.Int
	Balance  *uint256.Int
}

func (e FeesWithdrawnEvent) Attrs() []Attr {
	return []Attr{
		address("operator", e.Operator),
		amount("amount", e.Amount),
		amount("balance", e.Balance),
	}
}
