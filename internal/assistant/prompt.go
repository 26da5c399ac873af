package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

const recentlyCompletedLimit = 10

const personalitySection = `## Your Personality
- Warm, concise, and practical, like a thoughtful friend who's great at organizing
- Keep messages short: 1-3 sentences for quick answers, up to a paragraph for summaries
- Use emoji sparingly (one per message max, and only when natural)
- Never passive-aggressive or guilt-tripping
- Celebrate completions genuinely but briefly
- When referring to tasks a partner added, credit them by name`

const commandSection = `## Task Commands
When the user asks you to perform a task action, include an ACTION block in your response:

[ACTION:create_task]{"title":"...","list_id":"...","assigned_to":"user_id or null","priority":"none","urgency":"none","due_date":"YYYY-MM-DD or null","description":""}[/ACTION]

[ACTION:complete_task]{"task_id":"..."}[/ACTION]

[ACTION:update_task]{"task_id":"...","updates":{"title":"...","assigned_to":"...","due_date":"..."}}[/ACTION]

[ACTION:delete_task]{"task_id":"..."}[/ACTION]

[ACTION:create_reminder]{"task_id":"...","user_id":"...","remind_at":"ISO8601"}[/ACTION]`

const rulesSection = `## Rules
- This is a 3-way chat. Both partners see all messages, so be aware of that.
- Never show task IDs or internal IDs to users in your visible text.
- Only reference tasks that actually exist in the data above.
- If you're unsure which task the user means, ask for clarification.
- If asked to create a task but no list matches, suggest available lists.
- If no lists exist, tell the user to create a list first.
- If asked something outside household task management, be helpful but brief and redirect.
- Keep all responses under 200 words unless asked for a detailed summary.
- For recurring tasks, include the recurrence info in your response but don't set recurrence_rule via action (users can configure that in the app).`

// BuildSystemPrompt renders the household snapshot and the assistant's
// operating rules. now fixes "today" for the overdue check and the date line.
func BuildSystemPrompt(hc *HouseholdContext, now time.Time) string {
	today := now.UTC().Format(model.DateLayout)

	speaker := "Unknown"
	if m := hc.Member(hc.CurrentUserID); m != nil {
		speaker = m.DisplayName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are Indi, the AI household assistant for the %q household on IndiVisible.\n\n", hc.Household.Name)
	fmt.Fprintf(&b, "HOUSEHOLD MEMBERS: %s\n", memberDirectory(hc.Members))
	fmt.Fprintf(&b, "CURRENT SPEAKER: %s (id: %s)\n", speaker, hc.CurrentUserID)
	if partners := hc.Partners(); len(partners) > 0 {
		fmt.Fprintf(&b, "PARTNER(S): %s\n", memberDirectory(partners))
	} else {
		b.WriteString("No partner has joined yet.\n")
	}

	fmt.Fprintf(&b, "\nAVAILABLE LISTS: %s\n", orDefault(listDirectory(hc.Lists), "No lists created yet."))

	var pending, overdue, completed []string
	for _, t := range hc.Tasks {
		if t.Status == model.StatusCompleted {
			if len(completed) < recentlyCompletedLimit {
				completed = append(completed, fmt.Sprintf("- %q (list: %q)", t.Title, t.ListName))
			}
			continue
		}
		pending = append(pending, pendingLine(hc, t))
		if t.DueDate != nil && *t.DueDate < today {
			overdue = append(overdue, fmt.Sprintf("- %q due: %s assigned: %s", t.Title, *t.DueDate, memberName(hc, t.AssignedTo)))
		}
	}

	fmt.Fprintf(&b, "\nPENDING TASKS:\n%s\n", orDefault(strings.Join(pending, "\n"), "No pending tasks."))
	fmt.Fprintf(&b, "\nOVERDUE TASKS:\n%s\n", orDefault(strings.Join(overdue, "\n"), "None."))
	fmt.Fprintf(&b, "\nRECENTLY COMPLETED:\n%s\n", orDefault(strings.Join(completed, "\n"), "None recently."))
	fmt.Fprintf(&b, "\nTODAY'S DATE: %s\n", today)
	fmt.Fprintf(&b, "\nTONE: %s\n\n", hc.AgentTone)

	b.WriteString(personalitySection)
	b.WriteString("\n\n")
	b.WriteString(commandSection)
	b.WriteString("\n\n")
	b.WriteString(rulesSection)
	return b.String()
}

func pendingLine(hc *HouseholdContext, t model.TaskWithList) string {
	assigned := memberName(hc, t.AssignedTo)
	if t.SharedResponsibility {
		assigned = "shared"
	}
	due := "none"
	if t.DueDate != nil {
		due = *t.DueDate
	}
	return fmt.Sprintf("- %q [%s/%s] due: %s assigned: %s list: %q (task_id: %s, list_id: %s)",
		t.Title, t.Priority, t.Urgency, due, assigned, t.ListName, t.ID, t.ListID)
}

func memberName(hc *HouseholdContext, id *string) string {
	if id == nil {
		return "unassigned"
	}
	if m := hc.Member(*id); m != nil {
		return m.DisplayName
	}
	return "unassigned"
}

func memberDirectory(members []model.Profile) string {
	parts := make([]string, len(members))
	for i, m := range members {
		parts[i] = fmt.Sprintf("%s (id: %s)", m.DisplayName, m.ID)
	}
	return strings.Join(parts, ", ")
}

func listDirectory(lists []model.List) string {
	parts := make([]string, len(lists))
	for i, l := range lists {
		parts[i] = fmt.Sprintf("%q (id: %s)", l.Name, l.ID)
	}
	return strings.Join(parts, ", ")
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// BuildConversation turns recent messages, given newest first, into
// chronological turns. User turns carry a "[name]: " prefix so the model can
// tell household members apart. Adjacent turns of the same role are merged
// and the sequence is trimmed to start and end on a user turn, as the
// completion API requires.
func BuildConversation(newestFirst []model.Message, hc *HouseholdContext) []Turn {
	turns := make([]Turn, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		msg := newestFirst[i]
		turn := Turn{Role: msg.Role, Content: msg.Content}
		if msg.Role != model.RoleAssistant {
			turn.Role = model.RoleUser
			turn.Content = fmt.Sprintf("[%s]: %s", speakerName(msg, hc), msg.Content)
		}

		if n := len(turns); n > 0 && turns[n-1].Role == turn.Role {
			turns[n-1].Content += "\n\n" + turn.Content
			continue
		}
		turns = append(turns, turn)
	}

	for len(turns) > 0 && turns[0].Role == model.RoleAssistant {
		turns = turns[1:]
	}
	for len(turns) > 0 && turns[len(turns)-1].Role == model.RoleAssistant {
		turns = turns[:len(turns)-1]
	}
	return turns
}

func speakerName(msg model.Message, hc *HouseholdContext) string {
	if msg.UserID != nil {
		if m := hc.Member(*msg.UserID); m != nil {
			return m.DisplayName
		}
	}
	if msg.AuthorName != "" {
		return msg.AuthorName
	}
	return "User"
}
