package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle = lipgloss.NewStyle().Width(16).Foreground(lipgloss.Color("7"))
	focusStyle = lipgloss.NewStyle().Width(16).Bold(true).Foreground(lipgloss.Color("10"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	sliderFilledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	sliderEmptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	buttonStyle         = lipgloss.NewStyle().Padding(0, 1).Border(lipgloss.RoundedBorder())
	buttonDisabledStyle = buttonStyle.Foreground(lipgloss.Color("8")).BorderForeground(lipgloss.Color("8"))

	panelStyle   = lipgloss.NewStyle().Padding(0, 1)
	previewStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8"))

	cellStyle         = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8"))
	cellSelectedStyle = lipgloss.NewStyle().Border(lipgloss.ThickBorder()).BorderForeground(lipgloss.Color("10"))

	statusStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)
