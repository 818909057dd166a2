package intent

import "strings"

var rejectionLeads = [][]string{
	{"no", "not"},
	{"not"},
	{"no", "the", "other"},
	{"dont", "want"},
	{"i", "dont", "want"},
	{"anything", "but"},
	{"except"},
}

// ParseRejection detects "not the first one" / "no, not Links Panel A" and
// returns the option index being ruled out.
func ParseRejection(input string, labels []string) (int, bool) {
	tokens := StripPolite(Tokens(input))
	if len(tokens) < 2 {
		return -1, false
	}
	var rest []string
	for _, lead := range rejectionLeads {
		if hasTokenPrefix(tokens, lead) {
			rest = tokens[len(lead):]
			break
		}
	}
	if len(rest) == 0 {
		return -1, false
	}
	phrase := strings.Join(rest, " ")
	if selection := IsSelectionOnly(phrase, len(labels), labels, ModeEmbedded); selection.IsSelection {
		return selection.Index, true
	}
	match := -1
	for index, label := range labels {
		normalizedLabel := Normalize(label)
		if normalizedLabel == "" {
			continue
		}
		if !containsPhrase(phrase, normalizedLabel) {
			continue
		}
		if match >= 0 {
			return -1, false
		}
		match = index
	}
	return match, match >= 0
}

// containsPhrase reports whether needle occurs in haystack on token
// boundaries. Both must already be normalized.
func containsPhrase(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	padded := " " + haystack + " "
	return strings.Contains(padded, " "+needle+" ")
}

// ContainsPhrase is containsPhrase over raw strings.
func ContainsPhrase(haystack, needle string) bool {
	return containsPhrase(Normalize(haystack), Normalize(needle))
}
