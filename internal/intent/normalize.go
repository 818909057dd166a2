package intent

import (
	"strings"
	"unicode"
)

// Normalize lowercases input, turns punctuation into spaces and collapses
// whitespace. '#' survives so "#2" keeps its meaning.
func Normalize(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	if lower == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(lower))
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '#':
			builder.WriteRune(r)
		case r == '\'' || r == '’':
			// "don't" -> "dont"
		default:
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// Tokens returns the normalized whitespace-separated tokens of input.
func Tokens(input string) []string {
	normalized := Normalize(input)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

var politeTokens = map[string]struct{}{
	"please": {},
	"pls":    {},
	"plz":    {},
	"pleas":  {},
	"thanks": {},
	"thx":    {},
	"ty":     {},
}

// StripPolite removes trailing courtesy tokens ("please", "pls", "thanks")
// and a trailing "thank you".
func StripPolite(tokens []string) []string {
	out := tokens
	for len(out) > 0 {
		last := out[len(out)-1]
		if _, ok := politeTokens[last]; ok {
			out = out[:len(out)-1]
			continue
		}
		if last == "you" && len(out) > 1 && out[len(out)-2] == "thank" {
			out = out[:len(out)-2]
			continue
		}
		break
	}
	for len(out) > 0 {
		if _, ok := politeTokens[out[0]]; !ok {
			break
		}
		out = out[1:]
	}
	return out
}

var fillerTokens = map[string]struct{}{
	"a":      {},
	"an":     {},
	"the":    {},
	"one":    {},
	"that":   {},
	"this":   {},
	"i":      {},
	"id":     {},
	"want":   {},
	"like":   {},
	"would":  {},
	"lets":   {},
	"go":     {},
	"with":   {},
	"just":   {},
	"ok":     {},
	"okay":   {},
	"yes":    {},
	"yeah":   {},
	"um":     {},
	"uh":     {},
	"me":     {},
	"for":    {},
	"of":     {},
	"to":     {},
	"on":     {},
	"in":     {},
	"it":     {},
	"is":     {},
	"my":     {},
	"and":    {},
	"now":    {},
	"then":   {},
	"please": {},
	"pls":    {},
}

func isFiller(token string) bool {
	_, ok := fillerTokens[token]
	return ok
}

// ContentTokens drops filler words and command verbs, leaving the tokens that
// can discriminate between option labels.
func ContentTokens(input string) []string {
	tokens := StripPolite(Tokens(input))
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if isFiller(token) || IsCommandVerb(token) {
			continue
		}
		if _, ok := selectionVerbs[token]; ok {
			continue
		}
		out = append(out, token)
	}
	return out
}
