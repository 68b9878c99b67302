package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorLive  = lipgloss.AdaptiveColor{Light: "#2F71F2", Dark: "#4A90FF"}
	colorFree  = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#666666"}
	colorWarn  = lipgloss.AdaptiveColor{Light: "#FFA500", Dark: "#FFA500"}
	colorTitle = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#04B575"}

	styleTitle = lipgloss.NewStyle().Foreground(colorTitle).Bold(true).MarginBottom(1)
	styleLive  = lipgloss.NewStyle().Foreground(colorLive).Bold(true)
	styleFree  = lipgloss.NewStyle().Foreground(colorFree)
	styleWarn  = lipgloss.NewStyle().Foreground(colorWarn)
	styleHelp  = lipgloss.NewStyle().Foreground(colorFree).MarginTop(1)
)
