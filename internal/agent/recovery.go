package agent

import "strings"

// dismissPhrases signal that the model believes the last action opened the
// wrong thing
var dismissPhrases = []string{
	"opened a",
	"instead of",
	"instead",
	"battery menu",
	"focus menu",
	"wrong",
	"not the right",
	"that opened",
}

// NeedsDismiss reports whether assistant text suggests a stray menu or
// popup should be dismissed before acting again
func NeedsDismiss(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range dismissPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
