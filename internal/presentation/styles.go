package presentation

import "github.com/charmbracelet/lipgloss"

var (
	TextMutedColor     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	AccentColor        = lipgloss.AdaptiveColor{Light: "#1E66F5", Dark: "#89B4FA"}
	StatusSuccessColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	StatusWarningColor = lipgloss.AdaptiveColor{Light: "#DF8E1D", Dark: "#FECA57"}
	StatusErrorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}

	HeadingStyle   = lipgloss.NewStyle().Bold(true)
	SignatureStyle = lipgloss.NewStyle().Foreground(AccentColor)
	MutedStyle     = lipgloss.NewStyle().Foreground(TextMutedColor)
	SuccessStyle   = lipgloss.NewStyle().Foreground(StatusSuccessColor)
	WarningStyle   = lipgloss.NewStyle().Foreground(StatusWarningColor).Bold(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(StatusErrorColor).Bold(true)

	DiffInsertStyle = lipgloss.NewStyle().Foreground(StatusSuccessColor)
	DiffDeleteStyle = lipgloss.NewStyle().Foreground(StatusErrorColor)
)
