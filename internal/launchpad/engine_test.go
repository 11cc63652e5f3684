package launchpad

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/pool"
	"github.com/rovshanmuradov/launchpad/internal/sale"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	creator  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	buyerA   = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyerB   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	trader   = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	tokenX   = common.HexToAddress("0x0000000000000000000000000000000000007070")
	t0       = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestEngine(t *testing.T, store Store, bus *events.Bus) *Engine {
	t.Helper()
	c, err := curve.New(curve.DefaultConfig())
	require.NoError(t, err)
	book, err := sale.NewBook(sale.DefaultConfig(), c)
	require.NoError(t, err)
	pools, err := pool.NewManager(pool.DefaultConfig())
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Operator = operator
	opts.Clock = func() time.Time { return t0 }
	opts.CommitBackoff = time.Millisecond
	return New(store, book, pools, bus, zap.NewNop(), opts)
}

func create(t *testing.T, e *Engine, tok common.Address) domain.ListingID {
	t.Helper()
	res, err := e.Create(context.Background(), CreateRequest{
		Token:   tok,
		Creator: creator,
		Name:    "Dapp Uni",
		Symbol:  "DAPP",
		Fee:     units.Ether("0.01"),
	})
	require.NoError(t, err)
	return res.Listing.ID
}

func TestEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	id := create(t, e, tokenX)

	balance, err := e.Treasury(ctx)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("0.01").Dec(), balance.Dec())

	res, err := e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyerA, Amount: units.Ether("10000"), Paid: units.Ether("1")})
	require.NoError(t, err)
	assert.Nil(t, res.Graduation)
	require.Len(t, res.Events, 1)

	q, err := e.Quote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("0.0002").Dec(), q.Price.Dec())
	assert.True(t, q.IsOpen)

	cost, err := e.CostFor(ctx, id, units.Ether("10000"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("2").Dec(), cost.Dec())

	// pool trading is not possible before graduation
	_, err = e.SwapCurrencyForToken(ctx, SwapRequest{ListingID: id, Trader: trader, AmountIn: units.Ether("1")})
	assert.ErrorIs(t, err, domain.ErrPoolNotInitialized)

	res, err = e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyerB, Amount: units.Ether("10000"), Paid: cost})
	require.NoError(t, err)
	require.NotNil(t, res.Graduation)
	require.Len(t, res.Events, 3)
	assert.Equal(t, events.Graduated, res.Events[1].Type())
	assert.Equal(t, events.PoolSeeded, res.Events[2].Type())

	l, p, err := e.Listing(ctx, id)
	require.NoError(t, err)
	assert.False(t, l.IsOpen)
	assert.True(t, l.LiquidityCreated)
	assert.True(t, p.Seeded)
	assert.Equal(t, units.Ether("3").Dec(), p.TotalLiquidity.Dec())
	assert.Equal(t, units.Ether("3").Dec(), p.CurrencyReserve.Dec())
	assert.Equal(t, res.Graduation.PoolTokens.Dec(), p.TokenReserve.Dec())
	assert.Equal(t, units.Ether("1").Dec(), p.LiquidityOf(buyerA).Dec())
	assert.Equal(t, units.Ether("2").Dec(), p.LiquidityOf(buyerB).Dec())

	_, err = e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyerA, Amount: units.Ether("1"), Paid: units.Ether("1")})
	assert.ErrorIs(t, err, domain.ErrSaleClosed)

	est, err := e.EstimateTokensForCurrency(ctx, id, units.Ether("1"))
	require.NoError(t, err)
	swap, err := e.SwapCurrencyForToken(ctx, SwapRequest{ListingID: id, Trader: trader, AmountIn: units.Ether("1")})
	require.NoError(t, err)
	assert.Equal(t, est.Dec(), swap.AmountOut.Dec())

	back, err := e.SwapTokenForCurrency(ctx, SwapRequest{ListingID: id, Trader: trader, AmountIn: swap.AmountOut})
	require.NoError(t, err)
	assert.False(t, back.AmountOut.Gt(units.Ether("1")))

	_, err = e.RemoveLiquidity(ctx, WithdrawRequest{ListingID: id, Provider: buyerA, Liquidity: units.Ether("1")})
	assert.ErrorIs(t, err, domain.ErrLiquidityLocked)

	removed, err := e.RemoveLiquidity(ctx, WithdrawRequest{
		ListingID: id,
		Provider:  buyerA,
		Liquidity: units.Ether("0.5"),
		At:        t0.Add(604801 * time.Second),
	})
	require.NoError(t, err)
	assert.False(t, removed.Currency.IsZero())
	assert.False(t, removed.Tokens.IsZero())
	assert.Equal(t, units.Ether("0.5").Dec(), removed.Pool.LiquidityOf(buyerA).Dec())
	assert.Equal(t, units.Ether("2.5").Dec(), removed.Pool.TotalLiquidity.Dec())

	added, err := e.AddLiquidity(ctx, LiquidityRequest{ListingID: id, Provider: trader, Currency: units.Ether("0.1")})
	require.NoError(t, err)
	assert.False(t, added.Liquidity.IsZero())
	assert.Equal(t, t0.Add(7*24*time.Hour), added.Pool.Positions[trader].LockExpiry)

	claim, err := e.ClaimReward(ctx, id, buyerA, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, units.Ether("0.03").Dec(), claim.Amount.Dec())
	_, err = e.ClaimReward(ctx, id, buyerA, time.Time{})
	assert.ErrorIs(t, err, domain.ErrRewardClaimed)

	_, err = e.WithdrawFees(ctx, buyerA, units.Ether("0.01"), time.Time{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = e.WithdrawFees(ctx, operator, units.Ether("0.02"), time.Time{})
	assert.ErrorIs(t, err, domain.ErrInsufficientFees)
	w, err := e.WithdrawFees(ctx, operator, units.Ether("0.01"), time.Time{})
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestEngine_CreateRejections(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := newTestEngine(t, store, nil)

	_, err := e.Create(ctx, CreateRequest{Token: tokenX, Creator: creator, Fee: units.Ether("0.009")})
	assert.ErrorIs(t, err, domain.ErrInsufficientListingFee)

	var opErr *domain.OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "create", opErr.Op)

	all, err := e.Listings(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	balance, err := e.Treasury(ctx)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	create(t, e, tokenX)
	_, err = e.Create(ctx, CreateRequest{Token: tokenX, Creator: creator, Fee: units.Ether("0.01")})
	assert.ErrorIs(t, err, domain.ErrTokenExists)

	_, err = e.Buy(ctx, BuyRequest{ListingID: 42, Buyer: buyerA, Amount: units.Ether("1"), Paid: units.Ether("1")})
	assert.ErrorIs(t, err, domain.ErrListingNotFound)
}

func TestEngine_RejectedBuyWritesNothing(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	id := create(t, e, tokenX)

	before, _, err := e.Listing(ctx, id)
	require.NoError(t, err)

	_, err = e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyerA, Amount: units.Ether("10000"), Paid: units.Ether("0.5")})
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)

	_, err = e.BuyWithFunds(ctx, BuyFundsRequest{ListingID: id, Buyer: buyerA, Funds: units.Ether("1"), MinAmount: units.Ether("10001")})
	var slip *SlippageExceededError
	require.ErrorAs(t, err, &slip)
	assert.Equal(t, units.Ether("10000").Dec(), slip.Actual.Dec())

	after, _, err := e.Listing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func graduate(t *testing.T, e *Engine, id domain.ListingID) {
	t.Helper()
	_, err := e.Buy(context.Background(), BuyRequest{ListingID: id, Buyer: buyerA, Amount: units.Ether("20000"), Paid: units.Ether("3")})
	require.NoError(t, err)
}

func TestEngine_SwapSlippage(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	id := create(t, e, tokenX)
	graduate(t, e, id)

	_, before, err := e.Listing(ctx, id)
	require.NoError(t, err)

	est, err := e.EstimateCurrencyForTokens(ctx, id, units.Ether("1000"))
	require.NoError(t, err)

	minOut := new(uint256.Int).Add(est, uint256.NewInt(1))
	_, err = e.SwapTokenForCurrency(ctx, SwapRequest{ListingID: id, Trader: trader, AmountIn: units.Ether("1000"), MinOut: minOut})
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
	var slip *SlippageExceededError
	require.ErrorAs(t, err, &slip)
	assert.Equal(t, est.Dec(), slip.Actual.Dec())

	_, after, err := e.Listing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	res, err := e.SwapTokenForCurrency(ctx, SwapRequest{ListingID: id, Trader: trader, AmountIn: units.Ether("1000"), MinOut: est})
	require.NoError(t, err)
	assert.Equal(t, est.Dec(), res.AmountOut.Dec())

	_, err = e.AddLiquidity(ctx, LiquidityRequest{ListingID: id, Provider: trader, Currency: units.Ether("1"), MaxTokens: uint256.NewInt(1)})
	assert.ErrorIs(t, err, domain.ErrSlippageExceeded)
}

func TestEngine_ConcurrentBuys(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t, memory.New(), nil)
	ids := []domain.ListingID{
		create(t, e, tokenX),
		create(t, e, common.HexToAddress("0x0000000000000000000000000000000000007071")),
	}

	const buyers = 50
	var wg sync.WaitGroup
	for _, id := range ids {
		for i := 0; i < buyers; i++ {
			wg.Add(1)
			go func(id domain.ListingID, i int) {
				defer wg.Done()
				buyer := common.BigToAddress(uint256.NewInt(uint64(1000 + i)).ToBig())
				_, err := e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyer, Amount: units.Ether("100"), Paid: units.Ether("1")})
				assert.NoError(t, err)
			}(id, i)
		}
	}
	wg.Wait()

	for _, id := range ids {
		l, _, err := e.Listing(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, units.Ether("5000").Dec(), l.Sold.Dec())
		assert.Equal(t, units.Ether("0.5").Dec(), l.Raised.Dec())
		assert.Len(t, l.Contributors, buyers)
	}
}

// flakyStore fails the first n commits.
type flakyStore struct {
	*memory.Store
	failures atomic.Int32
	calls    atomic.Int32
}

func (s *flakyStore) Commit(ctx context.Context, change storage.Change) error {
	s.calls.Add(1)
	if s.failures.Add(-1) >= 0 {
		return fmt.Errorf("connection reset")
	}
	return s.Store.Commit(ctx, change)
}

func TestEngine_CommitRetries(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{Store: memory.New()}
	e := newTestEngine(t, store, nil)
	id := create(t, e, tokenX)

	store.failures.Store(2)
	store.calls.Store(0)
	_, err := e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyerA, Amount: units.Ether("100"), Paid: units.Ether("1")})
	require.NoError(t, err)
	assert.Equal(t, int32(3), store.calls.Load())

	store.failures.Store(10)
	_, err = e.Buy(ctx, BuyRequest{ListingID: id, Buyer: buyerA, Amount: units.Ether("100"), Paid: units.Ether("1")})
	assert.Error(t, err)

	l, _, err := e.Listing(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("100").Dec(), l.Sold.Dec())
}

func TestEngine_PublishesEvents(t *testing.T) {
	bus := events.NewBus(zap.NewNop(), 64)

	var mu sync.Mutex
	var got []events.EventType
	bus.SubscribeFunc(events.All, func(ctx context.Context, ev events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev.Type())
		return nil
	})

	e := newTestEngine(t, memory.New(), bus)
	id := create(t, e, tokenX)
	graduate(t, e, id)
	_, err := e.SwapCurrencyForToken(context.Background(), SwapRequest{ListingID: id, Trader: trader, AmountIn: units.Ether("1")})
	require.NoError(t, err)

	require.NoError(t, bus.Shutdown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []events.EventType{
		events.ListingCreated,
		events.Purchase,
		events.Graduated,
		events.PoolSeeded,
		events.Swapped,
	}, got)
}
