package style

import "github.com/charmbracelet/lipgloss"

var (
	Cyan    = lipgloss.Color("#00E5FF") // Primary highlight
	Magenta = lipgloss.Color("#FF1B6B") // Accent
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")
	Blue    = lipgloss.Color("#3B82F6")

	Base01 = lipgloss.Color("#6C7280") // Muted text
	Base2  = lipgloss.Color("#ECEFF4") // Primary text
)

// Palette provides a centralized color management
type Palette struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Error     lipgloss.Color
	Warning   lipgloss.Color
	Info      lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color

	// Listing states
	Open      lipgloss.Color
	Graduated lipgloss.Color
}

func DefaultPalette() Palette {
	return Palette{
		Primary:   Cyan,
		Secondary: Magenta,
		Success:   Green,
		Error:     Red,
		Warning:   Yellow,
		Info:      Blue,
		Text:      Base2,
		TextMuted: Base01,
		Open:      Yellow,
		Graduated: Green,
	}
}

// Title is the style of pane titles.
func (p Palette) Title() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(p.Primary).Bold(true)
}

// Pane frames a dashboard section; focused panes use the accent color.
func (p Palette) Pane(focused bool) lipgloss.Style {
	border := p.TextMuted
	if focused {
		border = p.Secondary
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1)
}
