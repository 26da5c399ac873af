package assistant

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// Action is one directive embedded in a completion as
// [ACTION:<type>]<json object>[/ACTION].
type Action struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const closeTag = "[/ACTION]"

var (
	openPattern = regexp.MustCompile(`\[ACTION:(\w+)\]`)
	blankRuns   = regexp.MustCompile(`\n{3,}`)
)

// ParseActions splits a completion into the text shown to members and the
// directives to execute, in order of appearance. Directives whose body is
// not a JSON object are dropped; every directive span is removed from the
// text either way.
func ParseActions(text string) (string, []Action) {
	clean, actions, _ := extract(text)
	return clean, actions
}

// extract is ParseActions that also returns the raw spans it dropped.
//
// A body ends at the first close tag that leaves a JSON object, so a close tag
// quoted inside a string value does not cut the directive short. When no
// candidate parses, the span runs to the last close tag before the next
// directive so no directive syntax is left in the text.
func extract(text string) (clean string, actions []Action, malformed []string) {
	actions = []Action{}

	var b strings.Builder
	last, pos := 0, 0
	found := false
	for {
		open := openPattern.FindStringSubmatchIndex(text[pos:])
		if open == nil {
			break
		}
		start, bodyStart := pos+open[0], pos+open[1]
		kind := text[pos+open[2] : pos+open[3]]

		closes := closeTags(text, bodyStart)
		if len(closes) == 0 {
			break
		}

		end := -1
		var body []byte
		for _, c := range closes {
			candidate := bytes.TrimSpace([]byte(text[bodyStart:c]))
			if isJSONObject(candidate) {
				end, body = c, candidate
				break
			}
		}
		if end < 0 {
			end = closes[0]
			nextOpen := len(text)
			if m := openPattern.FindStringIndex(text[bodyStart:]); m != nil {
				nextOpen = bodyStart + m[0]
			}
			for _, c := range closes {
				if c < nextOpen {
					end = c
				}
			}
		}
		spanEnd := end + len(closeTag)

		found = true
		b.WriteString(text[last:start])
		if body != nil {
			actions = append(actions, Action{Type: kind, Payload: json.RawMessage(body)})
		} else {
			malformed = append(malformed, text[start:spanEnd])
		}
		last, pos = spanEnd, spanEnd
	}
	if !found {
		return strings.TrimSpace(text), actions, nil
	}
	b.WriteString(text[last:])

	clean = blankRuns.ReplaceAllString(b.String(), "\n\n")
	return strings.TrimSpace(clean), actions, malformed
}

// closeTags returns the offsets of every close tag at or after from.
func closeTags(text string, from int) []int {
	var offsets []int
	for i := from; ; {
		n := strings.Index(text[i:], closeTag)
		if n < 0 {
			return offsets
		}
		offsets = append(offsets, i+n)
		i += n + len(closeTag)
	}
}

func isJSONObject(body []byte) bool {
	if len(body) == 0 || body[0] != '{' {
		return false
	}
	var obj map[string]json.RawMessage
	return json.Unmarshal(body, &obj) == nil
}
