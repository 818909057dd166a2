package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	brand     lipgloss.Style
	headerBox lipgloss.Style
	headerSub lipgloss.Style
	chipInfo  lipgloss.Style
	chipWarn  lipgloss.Style

	userLine      lipgloss.Style
	assistantLine lipgloss.Style
	actionLine    lipgloss.Style
	errorLine     lipgloss.Style

	optionBox      lipgloss.Style
	optionTitle    lipgloss.Style
	optionItem     lipgloss.Style
	optionSelected lipgloss.Style
	optionRejected lipgloss.Style

	footerBox lipgloss.Style
}

func newTheme() theme {
	border := lipgloss.Color("238")
	text := lipgloss.Color("252")
	muted := lipgloss.Color("246")
	subtle := lipgloss.Color("243")
	accent := lipgloss.Color("111")
	success := lipgloss.Color("78")
	warn := lipgloss.Color("214")
	danger := lipgloss.Color("203")

	return theme{
		brand: lipgloss.NewStyle().Bold(true).Foreground(accent),
		headerBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(border).
			Padding(0, 1),
		headerSub: lipgloss.NewStyle().Foreground(muted),
		chipInfo:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		chipWarn:  lipgloss.NewStyle().Bold(true).Foreground(warn),

		userLine:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("147")),
		assistantLine: lipgloss.NewStyle().Foreground(text),
		actionLine:    lipgloss.NewStyle().Bold(true).Foreground(success),
		errorLine:     lipgloss.NewStyle().Bold(true).Foreground(danger),

		optionBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
		optionTitle:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		optionItem:     lipgloss.NewStyle().Foreground(text),
		optionSelected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Underline(true),
		optionRejected: lipgloss.NewStyle().Foreground(subtle).Strikethrough(true),

		footerBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(border).
			Padding(0, 1),
	}
}
