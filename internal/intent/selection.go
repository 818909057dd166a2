package intent

import (
	"strconv"
	"strings"
	"unicode"
)

type SelectionMode string

const (
	// ModeStrict accepts only pure selection phrasing ("second", "option 2", "b").
	ModeStrict SelectionMode = "strict"
	// ModeEmbedded also accepts ordinals inside longer commands ("open second one").
	ModeEmbedded SelectionMode = "embedded"
)

type SelectionResult struct {
	IsSelection bool
	Index       int
}

var selectionVerbs = map[string]struct{}{
	"pick":   {},
	"select": {},
	"choose": {},
	"take":   {},
	"use":    {},
}

var selectionNouns = map[string]struct{}{
	"option": {},
	"number": {},
	"choice": {},
	"item":   {},
	"no":     {},
	"#":      {},
}

var notSelection = SelectionResult{Index: -1}

// IsSelectionOnly classifies input as a pick from a list of candidateCount
// options. labels feed letter-badge matching ("d" -> "Links Panel D"). The
// embedded mode is a strict superset of the strict mode.
func IsSelectionOnly(input string, candidateCount int, labels []string, mode SelectionMode) SelectionResult {
	if candidateCount <= 0 {
		return notSelection
	}
	tokens := strings.Fields(NormalizeOrdinalTypos(input))
	if len(tokens) == 0 {
		return notSelection
	}
	if result := strictSelection(tokens, candidateCount, labels); result.IsSelection {
		return result
	}
	if mode != ModeEmbedded {
		return notSelection
	}
	return embeddedSelection(tokens, candidateCount)
}

func strictSelection(tokens []string, candidateCount int, labels []string) SelectionResult {
	badges := LabelBadges(labels)
	picks := make([]int, 0, 2)
	letterPick := -1
	for position, token := range tokens {
		previous := ""
		if position > 0 {
			previous = tokens[position-1]
		}
		if index, ok := ordinalIndex(token, candidateCount); ok {
			picks = append(picks, index)
			continue
		}
		if index, ok := digitIndex(token); ok {
			picks = append(picks, index)
			continue
		}
		if index, ok := numberWordIndex[token]; ok && isSelectionNoun(previous) {
			picks = append(picks, index)
			continue
		}
		if isSingleLetter(token) {
			if index, ok := badges[token]; ok && position == len(tokens)-1 {
				letterPick = index
				continue
			}
		}
		if isFiller(token) || isSelectionNoun(token) {
			continue
		}
		if _, ok := selectionVerbs[token]; ok {
			continue
		}
		return notSelection
	}
	if len(picks) == 0 {
		if letterPick >= 0 {
			picks = append(picks, letterPick)
		} else if len(tokens) == 1 {
			if index, ok := numberWordIndex[tokens[0]]; ok {
				picks = append(picks, index)
			}
		}
	}
	return singlePick(picks, candidateCount)
}

func embeddedSelection(tokens []string, candidateCount int) SelectionResult {
	picks := make([]int, 0, 2)
	for position, token := range tokens {
		if index, ok := ordinalIndex(token, candidateCount); ok {
			picks = append(picks, index)
			continue
		}
		if strings.HasPrefix(token, "#") {
			if index, ok := digitIndex(token); ok {
				picks = append(picks, index)
			}
			continue
		}
		if position == 0 || !isSelectionNoun(tokens[position-1]) {
			continue
		}
		if index, ok := digitIndex(token); ok {
			picks = append(picks, index)
			continue
		}
		if index, ok := numberWordIndex[token]; ok {
			picks = append(picks, index)
		}
	}
	return singlePick(picks, candidateCount)
}

func singlePick(picks []int, candidateCount int) SelectionResult {
	if len(picks) == 0 {
		return notSelection
	}
	first := picks[0]
	for _, pick := range picks[1:] {
		if pick != first {
			return notSelection
		}
	}
	if first < 0 || first >= candidateCount {
		return notSelection
	}
	return SelectionResult{IsSelection: true, Index: first}
}

func digitIndex(token string) (int, bool) {
	trimmed := strings.TrimPrefix(token, "#")
	if trimmed == "" {
		return 0, false
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil || value < 1 {
		return 0, false
	}
	return value - 1, true
}

func isSelectionNoun(token string) bool {
	_, ok := selectionNouns[token]
	return ok
}

func isSingleLetter(token string) bool {
	runes := []rune(token)
	return len(runes) == 1 && unicode.IsLetter(runes[0])
}

// LabelBadges maps badge letters to option indexes. A trailing single-letter
// token ("Links Panel D") wins; label initials are used when every label has a
// distinct one. Colliding badges yield an empty map.
func LabelBadges(labels []string) map[string]int {
	if len(labels) == 0 {
		return map[string]int{}
	}
	if badges, ok := badgeSet(labels, trailingLetter); ok {
		return badges
	}
	if badges, ok := badgeSet(labels, initialLetter); ok {
		return badges
	}
	return map[string]int{}
}

func badgeSet(labels []string, extract func(string) string) (map[string]int, bool) {
	badges := make(map[string]int, len(labels))
	for index, label := range labels {
		badge := extract(label)
		if badge == "" {
			return nil, false
		}
		if _, exists := badges[badge]; exists {
			return nil, false
		}
		badges[badge] = index
	}
	return badges, true
}

func trailingLetter(label string) string {
	tokens := Tokens(label)
	if len(tokens) < 2 {
		return ""
	}
	last := tokens[len(tokens)-1]
	if !isSingleLetter(last) {
		return ""
	}
	return last
}

func initialLetter(label string) string {
	tokens := Tokens(label)
	if len(tokens) == 0 {
		return ""
	}
	first := []rune(tokens[0])[0]
	if !unicode.IsLetter(first) {
		return ""
	}
	return string(first)
}
