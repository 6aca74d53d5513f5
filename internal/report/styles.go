package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/user/netrecon/internal/model"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))

	openStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	closedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	filteredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)
)

func stateStyle(s model.PortState) lipgloss.Style {
	switch s {
	case model.StateOpen:
		return openStyle
	case model.StateClosed:
		return closedStyle
	}
	return filteredStyle
}
