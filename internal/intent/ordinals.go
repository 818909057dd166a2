package intent

import "strings"

// CanonicalOrdinals is the closed dictionary typo correction maps onto.
var CanonicalOrdinals = []string{"first", "second", "third", "fourth", "fifth", "last"}

const minTypoTokenLen = 4

// ordinalSuffixNouns are the nouns commonly glued onto an ordinal
// ("secondoption", "firstone").
var ordinalSuffixNouns = []string{"option", "one", "choice", "item", "entry", "panel", "result"}

// protectedWords sit within edit distance 1 of an ordinal but are ordinary
// words that must not be rewritten.
var protectedWords = map[string]struct{}{
	"east":    {},
	"beast":   {},
	"feast":   {},
	"blast":   {},
	"lest":    {},
	"lash":    {},
	"fist":    {},
	"fists":   {},
	"filth":   {},
	"firth":   {},
	"fifths":  {},
	"seconds": {},
	"thirds":  {},
	"fourths": {},
	"list":    {},
	"lost":    {},
	"past":    {},
	"fast":    {},
	"cast":    {},
	"vast":    {},
	"mast":    {},
	"lust":    {},
	"least":   {},
	"lasts":   {},
	"firms":   {},
	"forth":   {},
	"fifty":   {},
}

// ordinalWordIndex maps an ordinal token to its 0-based index. "last" is
// resolved against the candidate count by the caller.
var ordinalWordIndex = map[string]int{
	"first":  0,
	"1st":    0,
	"second": 1,
	"2nd":    1,
	"third":  2,
	"3rd":    2,
	"fourth": 3,
	"4th":    3,
	"fifth":  4,
	"5th":    4,
	"sixth":  5,
	"6th":    5,
}

var numberWordIndex = map[string]int{
	"one":   0,
	"two":   1,
	"three": 2,
	"four":  3,
	"five":  4,
	"six":   5,
}

const lastOrdinal = "last"

// typoContextWords license an edit-distance repair of the neighbouring token
// ("the secnd one", "fith option").
var typoContextWords = map[string]struct{}{
	"one":    {},
	"option": {},
	"choice": {},
	"item":   {},
	"entry":  {},
	"number": {},
}

// NormalizeOrdinalTypos repairs common ordinal typos so "ffirst", "secnd" and
// "secondoption pls" become "first", "second" and "second option". Tokens
// shorter than four runes are left alone. Edit-distance repair only applies to
// a token standing alone or next to a selection noun.
func NormalizeOrdinalTypos(input string) string {
	tokens := StripPolite(Tokens(input))
	if len(tokens) == 0 {
		return ""
	}
	out := make([]string, 0, len(tokens)+1)
	for index, token := range tokens {
		out = append(out, repairOrdinalToken(token, fuzzyRepairAllowed(tokens, index))...)
	}
	return strings.Join(out, " ")
}

func fuzzyRepairAllowed(tokens []string, index int) bool {
	if len(tokens) == 1 {
		return true
	}
	if index > 0 && isTypoContextWord(tokens[index-1]) {
		return true
	}
	return index+1 < len(tokens) && isTypoContextWord(tokens[index+1])
}

func isTypoContextWord(token string) bool {
	_, ok := typoContextWords[token]
	return ok
}

func repairOrdinalToken(token string, fuzzy bool) []string {
	if len([]rune(token)) < minTypoTokenLen {
		return []string{token}
	}
	if isCanonicalOrdinal(token) {
		return []string{token}
	}
	for _, ordinal := range CanonicalOrdinals {
		if !strings.HasPrefix(token, ordinal) {
			continue
		}
		rest := token[len(ordinal):]
		for _, noun := range ordinalSuffixNouns {
			if rest == noun {
				return []string{ordinal, noun}
			}
		}
	}
	if _, protected := protectedWords[token]; protected {
		return []string{token}
	}
	collapsed := collapseRepeats(token)
	if isCanonicalOrdinal(collapsed) {
		return []string{collapsed}
	}
	if !fuzzy {
		return []string{token}
	}
	if match, ok := closestOrdinal(token); ok {
		return []string{match}
	}
	if collapsed != token {
		if match, ok := closestOrdinal(collapsed); ok {
			return []string{match}
		}
	}
	return []string{token}
}

func isCanonicalOrdinal(token string) bool {
	for _, ordinal := range CanonicalOrdinals {
		if token == ordinal {
			return true
		}
	}
	return false
}

func collapseRepeats(token string) string {
	runes := []rune(token)
	if len(runes) < 2 {
		return token
	}
	out := make([]rune, 0, len(runes))
	for index, r := range runes {
		if index > 0 && runes[index-1] == r {
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// closestOrdinal returns the single canonical ordinal within edit distance 1.
func closestOrdinal(token string) (string, bool) {
	found := ""
	for _, ordinal := range CanonicalOrdinals {
		if editDistanceAtMostOne(token, ordinal) {
			if found != "" && found != ordinal {
				return "", false
			}
			found = ordinal
		}
	}
	return found, found != ""
}

// editDistanceAtMostOne reports whether a and b differ by at most one
// insertion, deletion or substitution.
func editDistanceAtMostOne(a, b string) bool {
	ar, br := []rune(a), []rune(b)
	if len(ar) < len(br) {
		ar, br = br, ar
	}
	if len(ar)-len(br) > 1 {
		return false
	}
	i, j, edits := 0, 0, 0
	for i < len(ar) && j < len(br) {
		if ar[i] == br[j] {
			i++
			j++
			continue
		}
		edits++
		if edits > 1 {
			return false
		}
		if len(ar) == len(br) {
			i++
			j++
		} else {
			i++
		}
	}
	edits += (len(ar) - i) + (len(br) - j)
	return edits <= 1
}

// ordinalIndex resolves a single token to an option index. The bool reports
// whether the token is an ordinal at all.
func ordinalIndex(token string, candidateCount int) (int, bool) {
	if token == lastOrdinal {
		return candidateCount - 1, true
	}
	index, ok := ordinalWordIndex[token]
	return index, ok
}

// ContainsOrdinal reports whether input carries an ordinal word after typo
// repair.
func ContainsOrdinal(input string) bool {
	for _, token := range strings.Fields(NormalizeOrdinalTypos(input)) {
		if token == lastOrdinal {
			return true
		}
		if _, ok := ordinalWordIndex[token]; ok {
			return true
		}
	}
	return false
}
