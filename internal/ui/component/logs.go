package component

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/ui/style"
)

// LogFilter defines what log levels to show
type LogFilter struct {
	ShowError   bool
	ShowWarning bool
	ShowInfo    bool
	ShowDebug   bool
}

func (f LogFilter) allows(level string) bool {
	switch strings.ToLower(level) {
	case "error", "dpanic", "panic", "fatal":
		return f.ShowError
	case "warn", "warning":
		return f.ShowWarning
	case "debug":
		return f.ShowDebug
	default:
		return f.ShowInfo
	}
}

// LogPane shows the tail of a LogBuffer.
type LogPane struct {
	buffer   *logger.LogBuffer
	viewport viewport.Model
	filter   LogFilter
	limit    int

	timestamp lipgloss.Style
	levels    map[string]lipgloss.Style
}

func NewLogPane(buffer *logger.LogBuffer) *LogPane {
	palette := style.DefaultPalette()
	return &LogPane{
		buffer:   buffer,
		viewport: viewport.New(60, 6),
		filter:   LogFilter{ShowError: true, ShowWarning: true, ShowInfo: true},
		limit:    200,

		timestamp: lipgloss.NewStyle().Foreground(palette.TextMuted),
		levels: map[string]lipgloss.Style{
			"error": lipgloss.NewStyle().Foreground(palette.Error).Bold(true),
			"warn":  lipgloss.NewStyle().Foreground(palette.Warning).Bold(true),
			"info":  lipgloss.NewStyle().Foreground(palette.Info),
			"debug": lipgloss.NewStyle().Foreground(palette.TextMuted),
		},
	}
}

// SetSize sets the viewport dimensions.
func (lp *LogPane) SetSize(width, height int) {
	if height < 2 {
		height = 2
	}
	lp.viewport.Width = width
	lp.viewport.Height = height
}

// ToggleDebug flips debug visibility.
func (lp *LogPane) ToggleDebug() {
	lp.filter.ShowDebug = !lp.filter.ShowDebug
}

// Refresh reloads entries from the buffer and scrolls to the newest.
func (lp *LogPane) Refresh() {
	if lp.buffer == nil {
		return
	}
	var lines []string
	for _, e := range lp.buffer.Recent(lp.limit) {
		if !lp.filter.allows(e.Level) {
			continue
		}
		lvl := strings.ToLower(e.Level)
		st, ok := lp.levels[lvl]
		if !ok {
			st = lp.levels["info"]
		}
		lines = append(lines, fmt.Sprintf("%s %s %s%s",
			lp.timestamp.Render(e.Timestamp.Format("15:04:05")),
			st.Render(fmt.Sprintf("%-5s", strings.ToUpper(lvl))),
			e.Message,
			formatFields(e.Fields)))
	}
	lp.viewport.SetContent(strings.Join(lines, "\n"))
	lp.viewport.GotoBottom()
}

// formatFields renders the listing field when present; the rest is noise
// in a compact pane.
func formatFields(fields map[string]any) string {
	if v, ok := fields["listing"]; ok {
		return fmt.Sprintf(" [listing %v]", v)
	}
	return ""
}

func (lp *LogPane) View() string {
	return lp.viewport.View()
}
