package assistant

import (
	"fmt"
	"strings"
)

const welcomeIntent = "welcome"

// WelcomeMessage is the first assistant message a household ever receives.
func WelcomeMessage(current string, partners []string) string {
	if current == "" {
		current = "there"
	}
	var with string
	if len(partners) > 0 {
		with = " and " + strings.Join(partners, ", ")
	}

	return fmt.Sprintf("Hey %s! I'm Indi, your household assistant. I can help you%s manage tasks, set reminders, and keep track of everything.\n\n"+
		"Try saying things like:\n"+
		"- \"Add 'buy groceries' to the shopping list\"\n"+
		"- \"What tasks are due this week?\"\n"+
		"- \"Remind me about the dentist tomorrow at 9am\"\n"+
		"- \"What's on my plate today?\"\n\n"+
		"Just chat normally. I'm here whenever you need help!", current, with)
}
