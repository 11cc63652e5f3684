// Package ui is the terminal dashboard following engine state while a
// scenario runs.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/report"
	"github.com/rovshanmuradov/launchpad/internal/ui/component"
	"github.com/rovshanmuradov/launchpad/internal/ui/style"
)

// SnapshotFunc produces the state to display.
type SnapshotFunc func(ctx context.Context) (*report.Snapshot, error)

const (
	focusListings = iota
	focusPools
)

const maxFeed = 8

// Dashboard is the root bubbletea model.
type Dashboard struct {
	ctx       context.Context
	source    SnapshotFunc
	forwarder *EventForwarder
	logs      *component.LogPane
	interval  time.Duration

	keys     KeyMap
	help     help.Model
	palette  style.Palette
	listings table.Model
	pools    table.Model
	focus    int

	snapshot *report.Snapshot
	lastErr  error
	feed     []string
	done     *ScenarioDoneMsg

	width  int
	height int
}

// NewDashboard builds the model. forwarder and logs may be nil.
func NewDashboard(ctx context.Context, source SnapshotFunc, forwarder *EventForwarder, logs *component.LogPane, interval time.Duration) *Dashboard {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	d := &Dashboard{
		ctx:       ctx,
		source:    source,
		forwarder: forwarder,
		logs:      logs,
		interval:  interval,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		palette:   style.DefaultPalette(),
		listings:  newTable(report.ListingHeaders, []int{4, 8, 14, 12, 10, 9, 7, 10}),
		pools:     newTable(report.PoolHeaders, []int{4, 8, 12, 16, 12, 10, 4, 17}),
	}
	d.listings.Focus()
	return d
}

func newTable(headers []string, widths []int) table.Model {
	cols := make([]table.Column, len(headers))
	for i, h := range headers {
		cols[i] = table.Column{Title: h, Width: widths[i]}
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(6))

	s := table.DefaultStyles()
	palette := style.DefaultPalette()
	s.Header = s.Header.Foreground(palette.Secondary).Bold(true).BorderBottom(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("#1B1D23")).Background(palette.Primary)
	t.SetStyles(s)
	return t
}

func (d *Dashboard) refresh() tea.Cmd {
	return func() tea.Msg {
		snap, err := d.source(d.ctx)
		return SnapshotMsg{Snapshot: snap, Err: err}
	}
}

func (d *Dashboard) tick() tea.Cmd {
	return tea.Tick(d.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (d *Dashboard) Init() tea.Cmd {
	cmds := []tea.Cmd{d.refresh(), d.tick()}
	if d.forwarder != nil {
		cmds = append(cmds, d.forwarder.Listen())
	}
	return tea.Batch(cmds...)
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.width, d.height = msg.Width, msg.Height
		d.resize()
		return d, nil

	case tea.KeyMsg:
		return d.handleKey(msg)

	case tickMsg:
		if d.logs != nil {
			d.logs.Refresh()
		}
		return d, tea.Batch(d.refresh(), d.tick())

	case SnapshotMsg:
		d.lastErr = msg.Err
		if msg.Err == nil && msg.Snapshot != nil {
			d.apply(msg.Snapshot)
		}
		return d, nil

	case EventMsg:
		d.feed = append(d.feed, describe(msg.Event))
		if len(d.feed) > maxFeed {
			d.feed = d.feed[len(d.feed)-maxFeed:]
		}
		if d.forwarder != nil {
			return d, d.forwarder.Listen()
		}
		return d, nil

	case ScenarioDoneMsg:
		d.done = &msg
		return d, d.refresh()
	}
	return d, nil
}

func (d *Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, d.keys.Quit):
		return d, tea.Quit
	case key.Matches(msg, d.keys.Tab):
		if d.focus == focusListings {
			d.focus = focusPools
			d.listings.Blur()
			d.pools.Focus()
		} else {
			d.focus = focusListings
			d.pools.Blur()
			d.listings.Focus()
		}
		return d, nil
	case key.Matches(msg, d.keys.Refresh):
		return d, d.refresh()
	case key.Matches(msg, d.keys.Debug):
		if d.logs != nil {
			d.logs.ToggleDebug()
			d.logs.Refresh()
		}
		return d, nil
	}

	var cmd tea.Cmd
	if d.focus == focusListings {
		d.listings, cmd = d.listings.Update(msg)
	} else {
		d.pools, cmd = d.pools.Update(msg)
	}
	return d, cmd
}

func (d *Dashboard) apply(s *report.Snapshot) {
	d.snapshot = s

	rows := make([]table.Row, 0, len(s.Listings))
	for _, r := range s.Listings {
		rows = append(rows, table.Row(report.ListingCells(r)))
	}
	d.listings.SetRows(rows)

	rows = make([]table.Row, 0, len(s.Pools))
	for _, r := range s.Pools {
		rows = append(rows, table.Row(report.PoolCells(r)))
	}
	d.pools.SetRows(rows)
}

func (d *Dashboard) resize() {
	// header, two titled tables, feed, logs and help
	tableHeight := (d.height - 20) / 2
	if tableHeight < 3 {
		tableHeight = 3
	}
	d.listings.SetHeight(tableHeight)
	d.pools.SetHeight(tableHeight)
	if d.logs != nil {
		d.logs.SetSize(d.width-4, 5)
	}
	d.help.Width = d.width
}

func describe(e events.Event) string {
	line := fmt.Sprintf("%s #%d %s", e.Timestamp().UTC().Format("15:04:05"), e.Listing(), e.Type())
	for _, a := range e.Attrs() {
		if a.Key == "amount" || a.Key == "amount_in" {
			line += " " + a.Key + "=" + a.Value
			break
		}
	}
	return line
}

func (d *Dashboard) View() string {
	var b strings.Builder
	title := d.palette.Title()

	status := "running"
	switch {
	case d.done != nil && d.done.Err != nil:
		status = lipgloss.NewStyle().Foreground(d.palette.Error).Render("failed: " + d.done.Err.Error())
	case d.done != nil:
		status = lipgloss.NewStyle().Foreground(d.palette.Success).Render(fmt.Sprintf("done in %s", d.done.Duration.Round(time.Millisecond)))
	}
	header := title.Render("launchpad") + "  " + status
	if d.snapshot != nil {
		header += fmt.Sprintf("  treasury %s", d.snapshot.Treasury)
		if st := d.snapshot.Stats; st != nil {
			header += fmt.Sprintf("  events %d  graduations %d", st.Events, st.Graduations)
		}
	}
	b.WriteString(header + "\n")
	if d.lastErr != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(d.palette.Error).Render("snapshot: "+d.lastErr.Error()) + "\n")
	}

	b.WriteString(d.palette.Pane(d.focus == focusListings).Render(title.Render("Listings") + "\n" + d.listings.View()))
	b.WriteString("\n")
	b.WriteString(d.palette.Pane(d.focus == focusPools).Render(title.Render("Pools") + "\n" + d.pools.View()))
	b.WriteString("\n")

	feed := "waiting for events"
	if len(d.feed) > 0 {
		feed = strings.Join(d.feed, "\n")
	}
	b.WriteString(d.palette.Pane(false).Render(title.Render("Events") + "\n" + feed))
	b.WriteString("\n")

	if d.snapshot != nil && len(d.snapshot.Alerts) > 0 {
		lines := make([]string, 0, len(d.snapshot.Alerts))
		for _, a := range d.snapshot.Alerts {
			lines = append(lines, report.AlertLine(a))
		}
		b.WriteString(d.palette.Pane(false).Render(title.Render("Alerts") + "\n" + strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if d.logs != nil {
		b.WriteString(d.palette.Pane(false).Render(title.Render("Logs") + "\n" + d.logs.View()))
		b.WriteString("\n")
	}
	b.WriteString(d.help.ShortHelpView(d.keys.ShortHelp()))
	return b.String()
}
