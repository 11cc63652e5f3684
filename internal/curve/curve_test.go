package curve

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/units"
)

func newTestCurve(t *testing.T) *Curve {
	t.Helper()
	c, err := New(DefaultConfig())
	require.NoError(t, err)
	return c
}

func TestQuote(t *testing.T) {
	c := newTestCurve(t)

	tests := []struct {
		sold string
		want string
	}{
		{"0", "0.0001"},
		{"9999.999999999999999999", "0.0001"},
		{"10000", "0.0002"},
		{"25000", "0.0003"},
		{"1000000", "0.0101"},
	}
	for _, tt := range tests {
		t.Run(tt.sold, func(t *testing.T) {
			got, err := c.Quote(units.Ether(tt.sold))
			require.NoError(t, err)
			assert.Equal(t, units.Ether(tt.want).Dec(), got.Dec())
		})
	}
}

func TestCostFor_Bands(t *testing.T) {
	c := newTestCurve(t)

	cost, err := c.CostFor(domain.Zero(), units.Ether("10000"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("1").Dec(), cost.Dec())

	cost, err = c.CostFor(units.Ether("10000"), units.Ether("10000"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("2").Dec(), cost.Dec())

	cost, err = c.CostFor(domain.Zero(), units.Ether("20000"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("3").Dec(), cost.Dec())

	// straddles the first band boundary
	cost, err = c.CostFor(units.Ether("5000"), units.Ether("10000"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("1.5").Dec(), cost.Dec())

	cost, err = c.CostFor(units.Ether("123"), domain.Zero())
	require.NoError(t, err)
	assert.True(t, cost.IsZero())
}

func TestCostFor_Additive(t *testing.T) {
	c := newTestCurve(t)

	splits := [][]string{
		{"1", "2", "3"},
		{"0.000000000000000001", "9999.999999999999999999", "0.5"},
		{"7777.77", "4444.44", "3333.333"},
		{"10000", "10000", "10000"},
	}
	for _, parts := range splits {
		sold := domain.Zero()
		sum := domain.Zero()
		total := domain.Zero()
		for _, p := range parts {
			amount := units.Ether(p)
			cost, err := c.CostFor(sold, amount)
			require.NoError(t, err)
			sum.Add(sum, cost)
			sold.Add(sold, amount)
			total.Add(total, amount)
		}

		whole, err := c.CostFor(domain.Zero(), total)
		require.NoError(t, err)
		assert.Equal(t, whole.Dec(), sum.Dec(), "split %v", parts)
	}
}

func TestCostFor_NeverBelowExactIntegral(t *testing.T) {
	c := newTestCurve(t)

	// 3 base units at 0.0001 is 3e-4 wei exactly; the charge rounds up.
	cost, err := c.CostFor(domain.Zero(), uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), cost.Uint64())

	// 1.5 tokens at 0.0001 is exactly 1.5e14 wei.
	cost, err = c.CostFor(domain.Zero(), units.Ether("1.5"))
	require.NoError(t, err)
	assert.Equal(t, "150000000000000", cost.Dec())
}

func TestCostFor_Monotonic(t *testing.T) {
	c := newTestCurve(t)
	amount := units.Ether("100")

	prev := domain.Zero()
	for _, s := range []string{"0", "5000", "9950", "10000", "19999", "40000"} {
		cost, err := c.CostFor(units.Ether(s), amount)
		require.NoError(t, err)
		assert.False(t, cost.Lt(prev), "cost at sold=%s dropped", s)
		prev = cost
	}
}

func TestCostFor_Overflow(t *testing.T) {
	c := newTestCurve(t)
	maxAmount := new(uint256.Int).SetAllOne()

	_, err := c.CostFor(maxAmount, uint256.NewInt(1))
	assert.True(t, errors.Is(err, domain.ErrOverflow))

	_, err = c.CostFor(domain.Zero(), maxAmount)
	assert.True(t, errors.Is(err, domain.ErrOverflow))
}

func TestTokensForFunds(t *testing.T) {
	c := newTestCurve(t)
	limit := units.Ether("1000000")

	got, err := c.TokensForFunds(domain.Zero(), units.Ether("1"), limit)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("10000").Dec(), got.Dec())

	got, err = c.TokensForFunds(units.Ether("10000"), units.Ether("1"), limit)
	require.NoError(t, err)
	assert.Equal(t, units.Ether("5000").Dec(), got.Dec())

	// the amount returned must be affordable and one more unit must not be
	funds := units.Ether("0.123456789")
	got, err = c.TokensForFunds(units.Ether("3000"), funds, limit)
	require.NoError(t, err)
	cost, err := c.CostFor(units.Ether("3000"), got)
	require.NoError(t, err)
	assert.False(t, cost.Gt(funds))
	next := new(uint256.Int).Add(got, uint256.NewInt(1))
	cost, err = c.CostFor(units.Ether("3000"), next)
	require.NoError(t, err)
	assert.True(t, cost.Gt(funds))

	got, err = c.TokensForFunds(domain.Zero(), units.Ether("100"), units.Ether("50"))
	require.NoError(t, err)
	assert.Equal(t, units.Ether("50").Dec(), got.Dec())

	got, err = c.TokensForFunds(domain.Zero(), domain.Zero(), limit)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BandWidth = domain.Zero()
	_, err := New(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.FloorPrice = nil
	_, err = New(cfg)
	assert.Error(t, err)
}
