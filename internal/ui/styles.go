package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorPrimary   = lipgloss.Color("205") // Pink/magenta
	ColorSecondary = lipgloss.Color("141") // Violet
	ColorSuccess   = lipgloss.Color("35")  // Green
	ColorError     = lipgloss.Color("196") // Red
	ColorDim       = lipgloss.Color("241") // Gray
	ColorAccent    = lipgloss.Color("39")  // Blue
	ColorHighlight = lipgloss.Color("212") // Light pink
	ColorBorder    = lipgloss.Color("62")  // Purple
)

const (
	SymbolPrompt  = "❯"
	SymbolArrow   = "▸"
	SymbolCheck   = "✓"
	SymbolCross   = "✗"
	SymbolSparkle = "✨"
	SymbolChat    = "💬"
	SymbolUsers   = "👥"
)

var (
	PromptStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorDim)

	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 2)

	CardTitleStyle = lipgloss.NewStyle().
			Bold(true)

	GreetingStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	BadgeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(ColorSecondary).
			Padding(0, 1)

	StatValueStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	StatValueAltStyle = lipgloss.NewStyle().
				Foreground(ColorSecondary).
				Bold(true)

	LabelStyle = lipgloss.NewStyle().
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	SelectorCursor = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SelectorItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252"))

	SelectorDim = lipgloss.NewStyle().
			Foreground(ColorDim)

	SelectorActive = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorDim)
)

// Badge renders the premium marker.
func Badge() string {
	return BadgeStyle.Render(SymbolSparkle + " Premium")
}
