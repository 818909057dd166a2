package intent

import "strings"

var commandVerbs = map[string]struct{}{
	"open":     {},
	"show":     {},
	"go":       {},
	"goto":     {},
	"navigate": {},
	"switch":   {},
	"launch":   {},
	"close":    {},
	"hide":     {},
	"create":   {},
	"new":      {},
	"add":      {},
	"delete":   {},
	"remove":   {},
	"rename":   {},
	"find":     {},
	"search":   {},
	"move":     {},
	"pin":      {},
	"unpin":    {},
	"focus":    {},
	"expand":   {},
	"collapse": {},
	"view":     {},
	"display":  {},
	"jump":     {},
	"return":   {},
}

var requestLeads = [][]string{
	{"can", "you"},
	{"could", "you"},
	{"would", "you"},
	{"will", "you"},
	{"i", "want", "to"},
	{"i", "need", "to"},
	{"lets"},
	{"let", "me"},
	{"now"},
	{"just"},
}

// IsCommandVerb reports whether token is a UI command verb.
func IsCommandVerb(token string) bool {
	_, ok := commandVerbs[token]
	return ok
}

// IsExplicitCommand reports whether input is a verb-led UI command such as
// "open recent" or "go home". Ordinal-bearing input is never a command so the
// selection lane sees it first.
func IsExplicitCommand(input string) bool {
	if ContainsOrdinal(input) {
		return false
	}
	tokens := commandTokens(input)
	if len(tokens) < 2 {
		return false
	}
	return IsCommandVerb(tokens[0])
}

// CommandTarget splits an explicit command into its verb and target phrase
// ("open the links panel" -> "open", "links panel").
func CommandTarget(input string) (verb string, target string, ok bool) {
	if !IsExplicitCommand(input) {
		return "", "", false
	}
	tokens := commandTokens(input)
	verb = tokens[0]
	rest := tokens[1:]
	if verb == "go" || verb == "jump" || verb == "navigate" || verb == "switch" || verb == "return" {
		for len(rest) > 0 && (rest[0] == "to" || rest[0] == "back" || rest[0] == "into") {
			rest = rest[1:]
		}
	}
	for len(rest) > 0 && (rest[0] == "the" || rest[0] == "my" || rest[0] == "a" || rest[0] == "an" || rest[0] == "up") {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return "", "", false
	}
	return verb, strings.Join(rest, " "), true
}

func commandTokens(input string) []string {
	tokens := StripPolite(Tokens(input))
	for _, lead := range requestLeads {
		if hasTokenPrefix(tokens, lead) {
			tokens = tokens[len(lead):]
			break
		}
	}
	return StripPolite(tokens)
}

func hasTokenPrefix(tokens, prefix []string) bool {
	if len(tokens) < len(prefix) {
		return false
	}
	for index, token := range prefix {
		if tokens[index] != token {
			return false
		}
	}
	return true
}
