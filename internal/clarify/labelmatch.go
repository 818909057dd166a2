package clarify

import (
	"slices"
	"strings"

	"github.com/dwizi/intent-arbiter/internal/intent"
)

// MatchLabel is the deterministic matcher run before any model call. It
// returns an option only when exactly one candidate fits.
func MatchLabel(input string, options []Option) (Option, bool) {
	if len(options) == 0 {
		return Option{}, false
	}
	normalized := intent.Normalize(intent.NormalizeOrdinalTypos(input))
	if normalized == "" {
		return Option{}, false
	}

	labels := make([]string, 0, len(options))
	for _, option := range options {
		labels = append(labels, option.Label)
	}

	for _, option := range options {
		if intent.Normalize(option.Label) == normalized {
			return option, true
		}
	}

	if option, ok := uniqueOption(options, func(option Option) bool {
		return intent.ContainsPhrase(normalized, option.Label)
	}); ok {
		return option, true
	}

	if selection := intent.IsSelectionOnly(normalized, len(options), labels, intent.ModeEmbedded); selection.IsSelection {
		return options[selection.Index], true
	}

	content := intent.ContentTokens(normalized)
	badges := intent.LabelBadges(labels)
	for _, token := range intent.Tokens(normalized) {
		// "a" and "i" are fillers unless they are a label badge.
		if _, ok := badges[token]; ok && len(token) == 1 && !containsToken(content, token) {
			content = append(content, token)
		}
	}
	if len(content) == 0 {
		return Option{}, false
	}
	return uniqueOption(options, func(option Option) bool {
		return tokensSubset(content, intent.Tokens(option.Label))
	})
}

func uniqueOption(options []Option, match func(Option) bool) (Option, bool) {
	found := -1
	for index, option := range options {
		if !match(option) {
			continue
		}
		if found >= 0 {
			return Option{}, false
		}
		found = index
	}
	if found < 0 {
		return Option{}, false
	}
	return options[found], true
}

func containsToken(tokens []string, token string) bool {
	for _, candidate := range tokens {
		if candidate == token {
			return true
		}
	}
	return false
}

func tokensSubset(needles, haystack []string) bool {
	if len(needles) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(haystack))
	for _, token := range haystack {
		set[token] = struct{}{}
	}
	for _, needle := range needles {
		if _, ok := set[needle]; !ok {
			return false
		}
	}
	return true
}

// CandidateKey fingerprints a candidate set for the loop guard. Display order
// is ignored so a re-shown clarifier keeps the same key.
func CandidateKey(options []Option) string {
	parts := make([]string, 0, len(options))
	for _, option := range options {
		parts = append(parts, option.ID+"="+intent.Normalize(option.Label))
	}
	slices.Sort(parts)
	return strings.Join(parts, "|")
}
