package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a household's chat stream. UserID is nil for
// assistant messages.
type Message struct {
	ID            string    `json:"id"`
	HouseholdID   string    `json:"household_id"`
	UserID        *string   `json:"user_id"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Intent        *string   `json:"intent"`
	RelatedTaskID *string   `json:"related_task_id"`
	ReadBy        []string  `json:"read_by"`
	CreatedAt     time.Time `json:"created_at"`

	// AuthorName is the joined display name of UserID.
	AuthorName string `json:"author_name,omitempty"`
}

type NewMessage struct {
	HouseholdID   string
	UserID        *string
	Role          Role
	Content       string
	Intent        *string
	RelatedTaskID *string
}
