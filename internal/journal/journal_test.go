package journal

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/domain"
	"github.com/rovshanmuradov/launchpad/internal/events"
)

var (
	t0    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	alice = common.HexToAddress("0xa1")
)

func purchase(id domain.ListingID, cost uint64) events.Event {
	return events.PurchaseEvent{
		BaseEvent: events.BaseEvent{EventType: events.Purchase, EventTime: t0, ListingID: id},
		Buyer:     alice,
		Amount:    uint256.NewInt(10),
		Cost:      uint256.NewInt(cost),
		Refund:    new(uint256.Int),
		Price:     uint256.NewInt(1),
		Sold:      uint256.NewInt(10),
		Raised:    uint256.NewInt(cost),
	}
}

func swap(id domain.ListingID, dir events.Direction, in, out uint64) events.Event {
	return events.SwapEvent{
		BaseEvent:       events.BaseEvent{EventType: events.Swapped, EventTime: t0, ListingID: id},
		Trader:          alice,
		Direction:       dir,
		AmountIn:        uint256.NewInt(in),
		AmountOut:       uint256.NewInt(out),
		CurrencyReserve: uint256.NewInt(100),
		TokenReserve:    uint256.NewInt(100),
	}
}

func TestJournalRecordAndStats(t *testing.T) {
	j, err := New(10, "", time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = j.Record(purchase(1, 5))
	require.NoError(t, err)
	_, err = j.Record(purchase(2, 7))
	require.NoError(t, err)
	_, err = j.Record(swap(1, events.CurrencyToToken, 3, 40))
	require.NoError(t, err)
	_, err = j.Record(swap(1, events.TokenToCurrency, 40, 2))
	require.NoError(t, err)
	_, err = j.Record(events.GraduatedEvent{
		BaseEvent:     events.BaseEvent{EventType: events.Graduated, EventTime: t0, ListingID: 1},
		Raised:        uint256.NewInt(5),
		Unsold:        uint256.NewInt(1),
		RewardReserve: new(uint256.Int),
		PoolTokens:    uint256.NewInt(1),
		Contributors:  1,
	})
	require.NoError(t, err)

	stats := j.Statistics()
	assert.Equal(t, uint64(5), stats.Events)
	assert.Equal(t, 2, stats.Listings)
	assert.Equal(t, 2, stats.Purchases)
	assert.Equal(t, 2, stats.Swaps)
	assert.Equal(t, 1, stats.Graduations)
	// 5 + 7 purchases, 3 in, 2 out
	assert.Equal(t, uint64(17), stats.Volume.Uint64())

	assert.Len(t, j.ByListing(1), 4)
	assert.Len(t, j.ByType(events.Purchase), 2)
}

func TestJournalRingKeepsNewest(t *testing.T) {
	j, err := New(3, "", time.Second, zap.NewNop())
	require.NoError(t, err)

	for i := uint64(1); i <= 5; i++ {
		require.NoError(t, j.Handle(t.Context(), purchase(domain.ListingID(i), i)))
	}

	recent := j.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, uint64(3), recent[0].Seq)
	assert.Equal(t, uint64(5), recent[2].Seq)
	assert.Equal(t, "5", recent[2].Attr("cost"))
	assert.NotEmpty(t, recent[2].ID)

	last := j.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, uint64(5), last[0].Seq)

	// totals cover evicted entries too
	assert.Equal(t, 5, j.Statistics().Purchases)
	assert.Equal(t, uint64(15), j.Statistics().Volume.Uint64())
}

func TestJournalCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "events.csv")
	j, err := New(10, path, time.Hour, zap.NewNop())
	require.NoError(t, err)

	_, err = j.Record(purchase(4, 9))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeaders(), rows[0])
	assert.Equal(t, "1", rows[1][1])
	assert.Equal(t, string(events.Purchase), rows[1][3])
	assert.Equal(t, "4", rows[1][4])
	assert.Contains(t, rows[1][5], "cost=9")
	assert.Contains(t, rows[1][5], "buyer="+alice.Hex())
}

func TestJournalInvalidSize(t *testing.T) {
	_, err := New(0, "", time.Second, zap.NewNop())
	assert.Error(t, err)
}

func TestJournalAsBusHandler(t *testing.T) {
	j, err := New(10, "", time.Second, zap.NewNop())
	require.NoError(t, err)

	bus := events.NewBus(zap.NewNop(), 16)
	defer bus.Shutdown(context.Background())
	bus.Subscribe(events.All, j)

	require.NoError(t, bus.PublishSync(t.Context(), purchase(1, 1)))
	require.NoError(t, bus.PublishSync(t.Context(), swap(1, events.CurrencyToToken, 1, 1)))
	assert.Equal(t, uint64(2), j.Statistics().Events)
}
