// ABOUTME: Defines lipgloss styles for the canvas cells, side panels, status bar, and log formatting.
// ABOUTME: Provides StyleForStatus to map a node's generation status to its display style.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Panel borders
	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	// Title styling
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Node status colors
	IdleStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	GeneratingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompleteStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	SelectedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("170")).Bold(true)

	// Canvas decorations
	EdgeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	PortStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	PendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	MenuStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Background(lipgloss.Color("236"))
	MenuCursor   = lipgloss.NewStyle().Foreground(lipgloss.Color("236")).Background(lipgloss.Color("170"))

	// Log event colors
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogEventStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	LogSuccessStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	// Status bar
	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)

	// Detail panel labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(10)
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	// Text editor dialog
	EditStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214")).
			Padding(0, 1)
)

// StyleForStatus returns the appropriate lipgloss style for a NodeStatus.
func StyleForStatus(status NodeStatus) lipgloss.Style {
	switch status {
	case NodeGenerating:
		return GeneratingStyle
	case NodeComplete:
		return CompleteStyle
	case NodeFailed:
		return FailedStyle
	default:
		return IdleStyle
	}
}
