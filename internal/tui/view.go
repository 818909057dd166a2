package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	if m.quitting {
		return "intent-arbiter tui closed\n"
	}
	sections := []string{m.renderHeader(), m.viewport.View()}
	if options := m.renderOptions(); options != "" {
		sections = append(sections, options)
	}
	sections = append(sections, m.renderFooter())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderHeader() string {
	session := m.sessionID
	if session == "" {
		session = "new session"
	}
	scope := scopes[m.scopeIndex]
	if scope == "" {
		scope = "auto"
	}
	parts := []string{
		m.theme.brand.Render("intent-arbiter"),
		m.theme.headerSub.Render(session),
		m.theme.chipInfo.Render("scope:" + scope),
	}
	if m.lastScope != "" {
		parts = append(parts, m.theme.headerSub.Render("last:"+m.lastScope))
	}
	if m.latch != "" {
		parts = append(parts, m.theme.chipWarn.Render("latched:"+m.latch))
	}
	if m.pending {
		parts = append(parts, m.theme.chipWarn.Render("thinking..."))
	}
	return m.theme.headerBox.Render(strings.Join(parts, "  "))
}

func (m model) renderTranscript() string {
	if len(m.lines) == 0 {
		return m.theme.headerSub.Render("Ask to open something from your workspace.")
	}
	rendered := make([]string, 0, len(m.lines))
	for _, line := range m.lines {
		switch line.kind {
		case lineUser:
			rendered = append(rendered, m.theme.userLine.Render("you> "+line.text))
		case lineAction:
			rendered = append(rendered, m.theme.actionLine.Render("=> "+line.text))
		case lineError:
			rendered = append(rendered, m.theme.errorLine.Render("error: "+line.text))
		default:
			rendered = append(rendered, m.theme.assistantLine.Render(line.text))
		}
	}
	return strings.Join(rendered, "\n")
}

func (m model) renderOptions() string {
	if m.clarifier == nil || len(m.clarifier.Options) == 0 {
		return ""
	}
	rejected := make(map[string]struct{}, len(m.clarifier.Rejected))
	for _, id := range m.clarifier.Rejected {
		rejected[id] = struct{}{}
	}
	lines := []string{m.theme.optionTitle.Render(m.clarifier.Prompt)}
	for index, option := range m.clarifier.Options {
		label := fmt.Sprintf("%d. %s", index+1, option.Label)
		switch {
		case index == m.cursor:
			lines = append(lines, m.theme.optionSelected.Render("> "+label))
		case isRejected(rejected, option.ID):
			lines = append(lines, m.theme.optionRejected.Render("  "+label))
		default:
			lines = append(lines, m.theme.optionItem.Render("  "+label))
		}
	}
	return m.theme.optionBox.Render(strings.Join(lines, "\n"))
}

func isRejected(rejected map[string]struct{}, id string) bool {
	_, ok := rejected[id]
	return ok
}

func (m model) renderFooter() string {
	return m.theme.footerBox.Render(m.input.View() + "\n" + m.help.View(m.keys))
}
