package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rovshanmuradov/launchpad/internal/monitor"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00E5FF"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF1B6B")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7280"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7280"))

	statusStyles = map[string]lipgloss.Style{
		"open":      lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB500")),
		"graduated": lipgloss.NewStyle().Foreground(lipgloss.Color("#2AFFAA")),
		"closed":    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")),
	}

	severityStyles = map[monitor.Severity]lipgloss.Style{
		monitor.SeverityInfo:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00E5FF")),
		monitor.SeverityWarning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB500")),
		monitor.SeverityCritical: lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")).Bold(true),
	}
)

// ListingHeaders are shared with the dashboard table.
var ListingHeaders = []string{"ID", "Symbol", "Sold", "Raised", "Price", "Progress", "Buyers", "Status"}

// PoolHeaders are shared with the dashboard table.
var PoolHeaders = []string{"ID", "Symbol", "Currency", "Tokens", "Liquidity", "Spot", "LPs", "Unlocks"}

// ListingCells renders one listing row as strings.
func ListingCells(r ListingRow) []string {
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		r.Symbol,
		r.Sold,
		r.Raised,
		r.Price,
		fmt.Sprintf("%.1f%%", r.Progress),
		strconv.Itoa(r.Contributors),
		r.Status,
	}
}

// PoolCells renders one pool row as strings.
func PoolCells(r PoolRow) []string {
	unlock := "-"
	if !r.LockExpiry.IsZero() {
		unlock = r.LockExpiry.UTC().Format("2006-01-02 15:04")
	}
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		r.Symbol,
		r.Currency,
		r.Tokens,
		r.Liquidity,
		r.SpotPrice,
		strconv.Itoa(r.Providers),
		unlock,
	}
}

func render(headers []string, rows [][]string, statusCol int) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				if st, ok := statusStyles[rows[row][col]]; ok {
					return st.Padding(0, 1)
				}
			}
			return cellStyle
		})
	return t.Render()
}

// Render formats the snapshot for a terminal.
func Render(s *Snapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Listings"))
	b.WriteString("\n")
	if len(s.Listings) == 0 {
		b.WriteString(mutedStyle.Render("no listings"))
	} else {
		rows := make([][]string, 0, len(s.Listings))
		for _, r := range s.Listings {
			rows = append(rows, ListingCells(r))
		}
		b.WriteString(render(ListingHeaders, rows, len(ListingHeaders)-1))
	}
	b.WriteString("\n\n")

	b.WriteString(titleStyle.Render("Pools"))
	b.WriteString("\n")
	if len(s.Pools) == 0 {
		b.WriteString(mutedStyle.Render("no seeded pools"))
	} else {
		rows := make([][]string, 0, len(s.Pools))
		for _, r := range s.Pools {
			rows = append(rows, PoolCells(r))
		}
		b.WriteString(render(PoolHeaders, rows, -1))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Treasury: %s\n", s.Treasury))
	if s.Stats != nil {
		b.WriteString(mutedStyle.Render(fmt.Sprintf(
			"events %d · purchases %d · swaps %d · graduations %d · volume %s",
			s.Stats.Events, s.Stats.Purchases, s.Stats.Swaps, s.Stats.Graduations, format(s.Stats.Volume))))
		b.WriteString("\n")
	}
	if len(s.Alerts) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Alerts"))
		b.WriteString("\n")
		for _, a := range s.Alerts {
			b.WriteString(AlertLine(a))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// AlertLine renders one alert colored by severity.
func AlertLine(a monitor.Alert) string {
	line := fmt.Sprintf("%s [%s] %s", a.Timestamp.UTC().Format("2006-01-02 15:04:05"), a.Severity, a.Message)
	if st, ok := severityStyles[a.Severity]; ok {
		return st.Render(line)
	}
	return line
}
