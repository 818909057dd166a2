package intent

import "strings"

var questionLeads = map[string]struct{}{
	"what":  {},
	"which": {},
	"where": {},
	"when":  {},
	"why":   {},
	"how":   {},
	"who":   {},
	"whose": {},
	"whats": {},
}

var auxLeads = map[string]struct{}{
	"is":     {},
	"are":    {},
	"does":   {},
	"do":     {},
	"did":    {},
	"can":    {},
	"could":  {},
	"should": {},
	"would":  {},
	"will":   {},
	"was":    {},
	"were":   {},
	"has":    {},
	"have":   {},
}

// HasQuestionIntent reports whether input asks something rather than picks
// or commands. "can you open the second one?" is a request, not a question.
func HasQuestionIntent(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}
	tokens := Tokens(trimmed)
	if len(tokens) == 0 {
		return false
	}
	if _, ok := questionLeads[tokens[0]]; ok {
		return true
	}
	if !strings.HasSuffix(trimmed, "?") {
		return false
	}
	if isPoliteRequest(tokens) {
		return false
	}
	return true
}

func isPoliteRequest(tokens []string) bool {
	if len(tokens) < 3 {
		return false
	}
	if _, ok := auxLeads[tokens[0]]; !ok {
		return false
	}
	if tokens[1] != "you" {
		return false
	}
	verb := tokens[2]
	if verb == "please" && len(tokens) > 3 {
		verb = tokens[3]
	}
	if IsCommandVerb(verb) {
		return true
	}
	_, ok := selectionVerbs[verb]
	return ok
}
