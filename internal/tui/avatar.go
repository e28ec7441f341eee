package tui

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/koscakluka/ema-persona/core/presentation"
)

const (
	blinkPeriod   = 4 * time.Second
	blinkDuration = 150 * time.Millisecond
	mouthFrame    = 120 * time.Millisecond
	dotsFrame     = 400 * time.Millisecond
)

var stateLabels = map[presentation.State]string{
	presentation.Idle:      "STANDBY",
	presentation.Listening: "LISTENING...",
	presentation.Thinking:  "THINKING...",
	presentation.Talking:   "TALKING",
}

var talkingMouths = []string{"▁", "▄", "█", "▄"}

// renderAvatar draws KYUROKU for one frame of state.
func renderAvatar(state presentation.State, elapsed time.Duration) string {
	eyes := "◕   ◕"
	mouth := "‿"
	aura := "       "

	switch state {
	case presentation.Listening:
		mouth = "o"
		aura = "((( )))"
	case presentation.Thinking:
		eyes = "◔   ◔"
		mouth = "～"
		aura = strings.Repeat("·", int(elapsed/dotsFrame)%4)
	case presentation.Talking:
		mouth = talkingMouths[int(elapsed/mouthFrame)%len(talkingMouths)]
		aura = "  ♪    "
	}
	if state != presentation.Thinking && elapsed%blinkPeriod < blinkDuration {
		eyes = "—   —"
	}

	face := strings.Join([]string{
		aura,
		"╭───────╮",
		"│ " + eyes + " │",
		"│   " + mouth + "   │",
		"╰───┬───╯",
		"  ╱ R4 ╲ ",
	}, "\n")

	label := lipgloss.NewStyle().Bold(true).Foreground(stateColor(state)).Render(stateLabels[state])
	return avatarPanelStyle.
		BorderForeground(stateColor(state)).
		Render(lipgloss.JoinVertical(lipgloss.Center, face, "", label))
}
