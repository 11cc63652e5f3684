package ui

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/report"
	"github.com/rovshanmuradov/launchpad/internal/ui/component"
)

func snapshot() *report.Snapshot {
	return &report.Snapshot{
		Listings: []report.ListingRow{{ID: 1, Symbol: "DAPP", Sold: "20000", Raised: "3", Price: "0.0003", Progress: 100, Contributors: 2, Status: "graduated"}},
		Pools:    []report.PoolRow{{ID: 1, Symbol: "DAPP", Currency: "3", Tokens: "979999.91", Liquidity: "3", SpotPrice: "0.000003", Providers: 2}},
		Treasury: "0.01",
	}
}

func swapEvent() events.Event {
	return events.SwapEvent{
		BaseEvent:       events.BaseEvent{EventType: events.Swapped, EventTime: time.Unix(0, 0), ListingID: 1},
		Trader:          common.HexToAddress("0xd4"),
		Direction:       events.CurrencyToToken,
		AmountIn:        uint256.NewInt(7),
		AmountOut:       uint256.NewInt(9),
		CurrencyReserve: uint256.NewInt(1),
		TokenReserve:    uint256.NewInt(1),
	}
}

func newTestDashboard(t *testing.T, fw *EventForwarder, logs *component.LogPane) *Dashboard {
	t.Helper()
	src := func(context.Context) (*report.Snapshot, error) { return snapshot(), nil }
	return NewDashboard(context.Background(), src, fw, logs, time.Second)
}

func TestDashboardShowsSnapshot(t *testing.T) {
	d := newTestDashboard(t, nil, nil)
	d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	msg := d.refresh()()
	d.Update(msg)

	view := d.View()
	assert.Contains(t, view, "DAPP")
	assert.Contains(t, view, "graduated")
	assert.Contains(t, view, "treasury 0.01")
	assert.Contains(t, view, "waiting for events")
}

func TestDashboardSnapshotError(t *testing.T) {
	src := func(context.Context) (*report.Snapshot, error) { return nil, errors.New("store down") }
	d := NewDashboard(context.Background(), src, nil, nil, time.Second)
	d.Update(d.refresh()())
	assert.Contains(t, d.View(), "store down")
}

func TestDashboardEventFeed(t *testing.T) {
	fw := NewEventForwarder(4, zap.NewNop())
	d := newTestDashboard(t, fw, nil)

	require.NoError(t, fw.Handle(context.Background(), swapEvent()))
	msg := fw.Listen()()
	_, cmd := d.Update(msg)
	assert.NotNil(t, cmd)
	assert.Contains(t, d.View(), "pool.swap amount_in=7")

	for i := 0; i < 2*maxFeed; i++ {
		d.Update(EventMsg{Event: swapEvent()})
	}
	assert.Len(t, d.feed, maxFeed)
}

func TestDashboardKeys(t *testing.T) {
	d := newTestDashboard(t, nil, nil)

	d.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusPools, d.focus)
	assert.True(t, d.pools.Focused())
	assert.False(t, d.listings.Focused())

	d.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusListings, d.focus)

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDashboardScenarioDone(t *testing.T) {
	d := newTestDashboard(t, nil, nil)
	d.Update(ScenarioDoneMsg{Duration: 1500 * time.Millisecond})
	assert.Contains(t, d.View(), "done in 1.5s")

	d.Update(ScenarioDoneMsg{Err: errors.New("boom")})
	assert.Contains(t, d.View(), "failed: boom")
}

func TestDashboardLogs(t *testing.T) {
	buf, err := logger.NewLogBuffer(10, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, buf.Add("warn", "Operation rejected", map[string]any{"listing": 3}))
	require.NoError(t, buf.Add("debug", "hidden detail", nil))

	pane := component.NewLogPane(buf)
	d := newTestDashboard(t, nil, pane)
	d.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	d.Update(tickMsg(time.Now()))

	view := d.View()
	assert.Contains(t, view, "Operation rejected [listing 3]")
	assert.NotContains(t, view, "hidden detail")

	d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.Contains(t, d.View(), "hidden detail")
}

func TestEventForwarderDrops(t *testing.T) {
	fw := NewEventForwarder(2, zap.NewNop())
	for i := 0; i < 5; i++ {
		require.NoError(t, fw.Handle(context.Background(), swapEvent()))
	}
	sent, dropped := fw.Stats()
	assert.Equal(t, uint64(2), sent)
	assert.Equal(t, uint64(3), dropped)
}

type panicky struct{}

func (panicky) Init() tea.Cmd                       { return nil }
func (panicky) Update(tea.Msg) (tea.Model, tea.Cmd) { panic("update") }
func (panicky) View() string                        { panic("view") }

func TestSafeModelRecovers(t *testing.T) {
	sm := NewSafeModel(panicky{}, zap.NewNop())
	assert.NotPanics(t, func() {
		_, cmd := sm.Update(nil)
		assert.Nil(t, cmd)
	})
	assert.Contains(t, sm.View(), "view crashed")
}
