package intent

import (
	"strings"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

type Scope string

const (
	ScopeChat      Scope = "chat"
	ScopeWidget    Scope = "widget"
	ScopeDashboard Scope = "dashboard"
	ScopeWorkspace Scope = "workspace"
	ScopeNone      Scope = "none"
)

// ParseScope maps free-form scope names onto a Scope, defaulting to ScopeNone.
func ParseScope(raw string) Scope {
	switch Scope(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeChat:
		return ScopeChat
	case ScopeWidget:
		return ScopeWidget
	case ScopeDashboard:
		return ScopeDashboard
	case ScopeWorkspace:
		return ScopeWorkspace
	default:
		return ScopeNone
	}
}

type ScopeCue struct {
	Scope       Scope
	Phrase      string
	WidgetLabel string
}

// scopePrecedence orders co-occurring cues. A chat cue always beats a widget
// cue, whatever the token order.
var scopePrecedence = map[Scope]int{
	ScopeChat:      0,
	ScopeWidget:    1,
	ScopeDashboard: 2,
	ScopeWorkspace: 3,
}

type cuePattern struct {
	phrase string
	scope  Scope
	widget string
}

var staticCuePatterns = []cuePattern{
	{phrase: "from chat", scope: ScopeChat},
	{phrase: "from the chat", scope: ScopeChat},
	{phrase: "in chat", scope: ScopeChat},
	{phrase: "in the chat", scope: ScopeChat},
	{phrase: "from the conversation", scope: ScopeChat},
	{phrase: "from dashboard", scope: ScopeDashboard},
	{phrase: "from the dashboard", scope: ScopeDashboard},
	{phrase: "on the dashboard", scope: ScopeDashboard},
	{phrase: "on dashboard", scope: ScopeDashboard},
	{phrase: "from workspace", scope: ScopeWorkspace},
	{phrase: "from the workspace", scope: ScopeWorkspace},
	{phrase: "in the workspace", scope: ScopeWorkspace},
	{phrase: "in workspace", scope: ScopeWorkspace},
	{phrase: "from widget", scope: ScopeWidget},
	{phrase: "from the widget", scope: ScopeWidget},
	{phrase: "from this widget", scope: ScopeWidget},
	{phrase: "in the widget", scope: ScopeWidget},
}

type cueMatcher struct {
	ac       ahocorasick.AhoCorasick
	patterns []cuePattern
}

func newCueMatcher(patterns []cuePattern) cueMatcher {
	phrases := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		phrases = append(phrases, pattern.phrase)
	}
	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  true,
		MatchKind:            ahocorasick.LeftMostLongestMatch,
	})
	return cueMatcher{ac: builder.Build(phrases), patterns: patterns}
}

func (m cueMatcher) scan(text string) []cuePattern {
	matches := m.ac.FindAll(text)
	found := make([]cuePattern, 0, len(matches))
	for _, match := range matches {
		index := match.Pattern()
		if index < 0 || index >= len(m.patterns) {
			continue
		}
		found = append(found, m.patterns[index])
	}
	return found
}

var staticCues = newCueMatcher(staticCuePatterns)

// ResolveScopeCue detects explicit scope markers ("from chat", "from
// dashboard", "from <widget label>"). widgetLabels extends the widget cues
// with the labels of the widgets currently on screen.
func ResolveScopeCue(input string, widgetLabels ...string) ScopeCue {
	normalized := Normalize(input)
	if normalized == "" {
		return ScopeCue{Scope: ScopeNone}
	}
	found := staticCues.scan(normalized)
	if len(widgetLabels) > 0 {
		found = append(found, widgetCues(widgetLabels).scan(normalized)...)
	}
	if len(found) == 0 {
		return ScopeCue{Scope: ScopeNone}
	}
	best := found[0]
	for _, candidate := range found[1:] {
		if scopePrecedence[candidate.scope] < scopePrecedence[best.scope] {
			best = candidate
		}
	}
	return ScopeCue{Scope: best.scope, Phrase: best.phrase, WidgetLabel: best.widget}
}

func widgetCues(labels []string) cueMatcher {
	patterns := make([]cuePattern, 0, len(labels)*2)
	for _, label := range labels {
		normalized := Normalize(label)
		if normalized == "" {
			continue
		}
		patterns = append(patterns,
			cuePattern{phrase: "from " + normalized, scope: ScopeWidget, widget: label},
			cuePattern{phrase: "from the " + normalized, scope: ScopeWidget, widget: label},
		)
	}
	return newCueMatcher(patterns)
}

// StripScopeCue removes the detected cue phrase so downstream matchers see
// only the selection text ("open b from chat" -> "open b"). A trailing
// question mark survives so question intent is still detectable.
func StripScopeCue(input string, cue ScopeCue) string {
	normalized := Normalize(input)
	if cue.Phrase == "" {
		return normalized
	}
	stripped := strings.Join(strings.Fields(strings.Replace(normalized, cue.Phrase, " ", 1)), " ")
	if stripped != "" && strings.HasSuffix(strings.TrimSpace(input), "?") {
		stripped += "?"
	}
	return stripped
}
