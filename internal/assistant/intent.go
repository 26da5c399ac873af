package assistant

import (
	"regexp"
	"strings"
)

var (
	addressPattern = regexp.MustCompile(`(?i)(^|[^\w])@?indi\b|\bassistant\b`)
	leadingVerbs   = map[string]bool{
		"add": true, "create": true, "remind": true, "complete": true, "finish": true,
		"mark": true, "delete": true, "remove": true, "assign": true, "move": true,
		"schedule": true, "what": true, "what's": true, "when": true, "who": true,
		"show": true, "list": true,
	}
)

// ShouldRespond reports whether a chat message is meant for the assistant:
// it names Indi or the assistant, asks a question, or opens with a task verb.
func ShouldRespond(content string) bool {
	s := strings.TrimSpace(content)
	if s == "" {
		return false
	}
	if addressPattern.MatchString(s) || strings.HasSuffix(s, "?") {
		return true
	}

	first := strings.ToLower(strings.Fields(s)[0])
	first = strings.TrimRight(first, ",.:!")
	return leadingVerbs[first]
}
