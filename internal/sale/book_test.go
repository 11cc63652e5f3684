package sale

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

var (
	creator = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	buyerA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	buyerB  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	token   = common.HexToAddress("0x0000000000000000000000000000000000007070")
	t0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

func newTestBook(t *testing.T) *Book {
	t.Helper()
	c, err := curve.New(curve.DefaultConfig())
	require.NoError(t, err)
	b, err := NewBook(DefaultConfig(), c)
	require.NoError(t, err)
	return b
}

func openListing(t *testing.T, b *Book) *domain.Listing {
	t.Helper()
	l, err := b.Open(1, OpenRequest{
		Token:   token,
		Creator: creator,
		Name:    "Dapp Uni",
		Symbol:  "DAPP",
		Fee:     units.Ether("0.01"),
	}, t0)
	require.NoError(t, err)
	return l
}

func TestOpen(t *testing.T) {
	b := newTestBook(t)

	_, err := b.Open(1, OpenRequest{Token: token, Creator: creator, Fee: units.Ether("0.005")}, t0)
	assert.ErrorIs(t, err, domain.ErrInsufficientListingFee)

	_, err = b.Open(1, OpenRequest{Token: token, Creator: creator}, t0)
	assert.ErrorIs(t, err, domain.ErrInsufficientListingFee)

	l := openListing(t, b)
	assert.True(t, l.IsOpen)
	assert.Equal(t, "DAPP", l.Symbol)
	assert.True(t, l.Sold.IsZero())
	assert.True(t, l.Raised.IsZero())
	assert.Equal(t, t0, l.CreatedAt)
}

func TestBuy_FirstBand(t *testing.T) {
	b := newTestBook(t)
	l := openListing(t, b)

	receipt, grad, err := b.Buy(l, buyerA, units.Ether("10000"), units.Ether("1.5"), t0)
	require.NoError(t, err)
	assert.Nil(t, grad)

	assert.Equal(t, units.Ether("1").Dec(), receipt.Cost.Dec())
	assert.Equal(t, units.Ether("0.5").Dec(), receipt.Refund.Dec())
	assert.Equal(t, units.Ether("0.0002").Dec(), receipt.Price.Dec())

	assert.Equal(t, units.Ether("10000").Dec(), l.Sold.Dec())
	assert.Equal(t, units.Ether("1").Dec(), l.Raised.Dec())
	assert.Equal(t, []common.Address{buyerA}, l.Contributors)
	assert.Equal(t, units.Ether("1").Dec(), l.Contribution(buyerA).Paid.Dec())
	assert.True(t, l.IsOpen)
}

func TestBuy_Graduates(t *testing.T) {
	b := newTestBook(t)
	l := openListing(t, b)

	_, grad, err := b.Buy(l, buyerA, units.Ether("10000"), units.Ether("1"), t0)
	require.NoError(t, err)
	require.Nil(t, grad)

	cost, err := b.CostFor(l, units.Ether("10000"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("2").Dec(), cost.Dec())

	later := t0.Add(time.Hour)
	_, grad, err = b.Buy(l, buyerB, units.Ether("10000"), units.Ether("2"), later)
	require.NoError(t, err)
	require.NotNil(t, grad)

	assert.False(t, l.IsOpen)
	assert.True(t, l.LiquidityCreated)
	assert.Equal(t, later, l.GraduatedAt)

	assert.Equal(t, units.Ether("3").Dec(), grad.Raised.Dec())
	assert.Equal(t, units.Ether("980000").Dec(), grad.Unsold.Dec())
	assert.Equal(t, units.Ether("0.09").Dec(), grad.RewardReserve.Dec())
	assert.Equal(t, units.Ether("979999.91").Dec(), grad.PoolTokens.Dec())
	assert.Equal(t, grad.RewardReserve.Dec(), l.RewardReserve.Dec())

	require.Len(t, grad.Shares, 2)
	assert.Equal(t, buyerA, grad.Shares[0].Provider)
	assert.Equal(t, units.Ether("1").Dec(), grad.Shares[0].Liquidity.Dec())
	assert.Equal(t, buyerB, grad.Shares[1].Provider)
	assert.Equal(t, units.Ether("2").Dec(), grad.Shares[1].Liquidity.Dec())

	_, _, err = b.Buy(l, buyerA, units.Ether("1"), units.Ether("1"), later)
	assert.ErrorIs(t, err, domain.ErrSaleClosed)
}

func TestBuy_OvershootClosesOnce(t *testing.T) {
	b := newTestBook(t)
	l := openListing(t, b)

	_, grad, err := b.Buy(l, buyerA, units.Ether("25000"), units.Ether("10"), t0)
	require.NoError(t, err)
	require.NotNil(t, grad)
	assert.Equal(t, units.Ether("25000").Dec(), l.Sold.Dec())
	assert.Equal(t, units.Ether("975000").Dec(), grad.Unsold.Dec())
	assert.False(t, l.IsOpen)
}

func TestBuy_Rejections(t *testing.T) {
	b := newTestBook(t)

	tests := []struct {
		name   string
		amount *uint256.Int
		paid   *uint256.Int
		want   error
	}{
		{name: "zero amount", amount: domain.Zero(), paid: units.Ether("1"), want: domain.ErrInvalidAmount},
		{name: "nil amount", amount: nil, paid: units.Ether("1"), want: domain.ErrInvalidAmount},
		{name: "over supply", amount: units.Ether("1000001"), paid: units.Ether("100000"), want: domain.ErrExceedsSupply},
		{name: "underpaid", amount: units.Ether("10000"), paid: units.Ether("0.99"), want: domain.ErrInsufficientPayment},
		{name: "no payment", amount: units.Ether("1"), paid: nil, want: domain.ErrInsufficientPayment},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := openListing(t, b)
			before := l.Clone()

			_, _, err := b.Buy(l, buyerA, tt.amount, tt.paid, t0)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, before, l)
		})
	}
}

func TestBuy_AccumulatesRepeatBuyer(t *testing.T) {
	b := newTestBook(t)
	l := openListing(t, b)

	for _, buyer := range []common.Address{buyerA, buyerB, buyerA} {
		_, _, err := b.Buy(l, buyer, units.Ether("1000"), units.Ether("1"), t0)
		require.NoError(t, err)
	}

	assert.Equal(t, []common.Address{buyerA, buyerB}, l.Contributors)
	assert.Equal(t, units.Ether("2000").Dec(), l.Contribution(buyerA).Tokens.Dec())
	assert.Equal(t, units.Ether("0.2").Dec(), l.Contribution(buyerA).Paid.Dec())

	sum := domain.Zero()
	for _, c := range l.Contributions {
		sum.Add(sum, c.Paid)
	}
	assert.Equal(t, l.Raised.Dec(), sum.Dec())
}

func TestBuyWithFunds(t *testing.T) {
	b := newTestBook(t)
	l := openListing(t, b)

	receipt, grad, err := b.BuyWithFunds(l, buyerA, units.Ether("1"), t0)
	require.NoError(t, err)
	assert.Nil(t, grad)
	assert.Equal(t, units.Ether("10000").Dec(), receipt.Amount.Dec())
	assert.True(t, receipt.Refund.IsZero())

	// one wei at 0.0002 per token buys 5000 base units
	receipt, _, err = b.BuyWithFunds(l, buyerB, uint256.NewInt(1), t0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), receipt.Amount.Uint64())
	assert.Equal(t, uint64(1), receipt.Cost.Uint64())

	_, _, err = b.BuyWithFunds(l, buyerA, domain.Zero(), t0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestClaimReward(t *testing.T) {
	b := newTestBook(t)
	l := openListing(t, b)

	_, _, err := b.Buy(l, buyerA, units.Ether("10000"), units.Ether("1"), t0)
	require.NoError(t, err)

	_, err = b.ClaimReward(l, buyerA)
	assert.ErrorIs(t, err, domain.ErrLiquidityNotCreated)

	_, _, err = b.Buy(l, buyerB, units.Ether("10000"), units.Ether("2"), t0)
	require.NoError(t, err)

	_, err = b.ClaimReward(l, creator)
	assert.ErrorIs(t, err, domain.ErrNoContribution)

	reward, err := b.ClaimReward(l, buyerA)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("0.03").Dec(), reward.Dec())
	assert.True(t, l.Contribution(buyerA).RewardClaimed)
	assert.Equal(t, units.Ether("0.06").Dec(), l.RewardReserve.Dec())

	_, err = b.ClaimReward(l, buyerA)
	assert.ErrorIs(t, err, domain.ErrRewardClaimed)

	reward, err = b.ClaimReward(l, buyerB)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("0.06").Dec(), reward.Dec())
	assert.True(t, l.RewardReserve.IsZero())
}

func TestNewBook_RejectsBadConfig(t *testing.T) {
	c, err := curve.New(curve.DefaultConfig())
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.SaleTarget = cfg.TotalSupply.Clone()
	_, err = NewBook(cfg, c)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.RewardBps = BpsDenominator
	_, err = NewBook(cfg, c)
	assert.Error(t, err)

	_, err = NewBook(DefaultConfig(), nil)
	assert.Error(t, err)
}
