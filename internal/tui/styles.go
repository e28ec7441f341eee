package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-persona/core/presentation"
)

var (
	colorIdle      = lipgloss.Color("#7D8590")
	colorListening = lipgloss.Color("#3FB950")
	colorThinking  = lipgloss.Color("#D29922")
	colorTalking   = lipgloss.Color("#58A6FF")
	colorError     = lipgloss.Color("#F85149")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTalking)
	hintStyle  = lipgloss.NewStyle().Foreground(colorIdle)
	noteStyle  = lipgloss.NewStyle().Foreground(colorThinking)

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorListening)
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(colorTalking)
	errorStyle          = lipgloss.NewStyle().Foreground(colorError)

	messagesAreaStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(colorIdle).
				Padding(0, 1)

	inputPanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorIdle).
			Padding(0, 1)

	avatarPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				Padding(0, 2).
				Align(lipgloss.Center)
)

func stateColor(state presentation.State) lipgloss.Color {
	switch state {
	case presentation.Listening:
		return colorListening
	case presentation.Thinking:
		return colorThinking
	case presentation.Talking:
		return colorTalking
	default:
		return colorIdle
	}
}
