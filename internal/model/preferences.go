package model

import "time"

const DefaultAgentTone = "friendly"

type AssistantPreferences struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"user_id"`
	AgentTone          string    `json:"agent_tone"`
	ProactiveReminders bool      `json:"proactive_reminders"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
