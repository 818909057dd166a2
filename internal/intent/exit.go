package intent

import "strings"

var exitPhrases = []string{
	"stop",
	"cancel",
	"never mind",
	"nevermind",
	"nvm",
	"forget it",
	"forget about it",
	"exit",
	"quit",
	"abort",
	"none of these",
	"none of those",
	"none",
	"no thanks",
	"no thank you",
}

var exitTrailers = map[string]struct{}{
	"it":     {},
	"that":   {},
	"this":   {},
	"now":    {},
	"please": {},
	"thanks": {},
	"all":    {},
}

// IsExitPhrase reports whether input asks to stop the current clarification
// ("stop", "never mind", "cancel that please").
func IsExitPhrase(input string) bool {
	tokens := StripPolite(Tokens(input))
	if len(tokens) == 0 {
		return false
	}
	for _, phrase := range exitPhrases {
		phraseTokens := strings.Fields(phrase)
		if !hasTokenPrefix(tokens, phraseTokens) {
			continue
		}
		rest := tokens[len(phraseTokens):]
		if allTrailers(rest) {
			return true
		}
	}
	return false
}

func allTrailers(tokens []string) bool {
	for _, token := range tokens {
		if _, ok := exitTrailers[token]; !ok {
			return false
		}
	}
	return true
}
