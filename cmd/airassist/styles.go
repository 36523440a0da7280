package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/harunnryd/airassist/pkg/events"
	"github.com/harunnryd/airassist/pkg/session"
	"github.com/harunnryd/airassist/pkg/transcript"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Width(20)

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

func stateStyle(s session.State) lipgloss.Style {
	switch s {
	case session.StateConnected:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	case session.StateConnecting:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	case session.StateError:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	}
}

func renderMessage(m transcript.Message) string {
	who := assistantStyle.Render("Assistant")
	if m.Role == events.RoleUser {
		who = userStyle.Render("You")
	}
	ts := timestampStyle.Render(m.CreatedAt.Local().Format("15:04:05"))
	return fmt.Sprintf("%s %s  %s", ts, who, m.Text)
}

func renderStateChange(c session.StateChange) string {
	line := fmt.Sprintf("%s %s -> %s", c.Provider, c.FromState, stateStyle(c.ToState).Render(c.ToState.String()))
	if c.Reason != "" {
		line += timestampStyle.Render(" (" + c.Reason + ")")
	}
	return line
}

func renderRow(label, value string) string {
	return labelStyle.Render(label) + value
}

func renderRows(rows ...[2]string) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, renderRow(r[0], r[1]))
	}
	return strings.Join(lines, "\n")
}
