package model

import (
	"encoding/json"
	"time"
)

type ActivityAction string

const (
	ActionTaskCreated     ActivityAction = "task_created"
	ActionTaskUpdated     ActivityAction = "task_updated"
	ActionTaskCompleted   ActivityAction = "task_completed"
	ActionTaskUncompleted ActivityAction = "task_uncompleted"
	ActionTaskDeleted     ActivityAction = "task_deleted"
	ActionTaskAssigned    ActivityAction = "task_assigned"
	ActionTaskUnassigned  ActivityAction = "task_unassigned"
	ActionListCreated     ActivityAction = "list_created"
	ActionListUpdated     ActivityAction = "list_updated"
	ActionListDeleted     ActivityAction = "list_deleted"
	ActionMemberJoined    ActivityAction = "member_joined"
	ActionMemberLeft      ActivityAction = "member_left"
)

// ActivityEntry is an immutable audit record of a mutation.
type ActivityEntry struct {
	ID          string          `json:"id"`
	HouseholdID string          `json:"household_id"`
	TaskID      *string         `json:"task_id"`
	ListID      *string         `json:"list_id"`
	UserID      string          `json:"user_id"`
	Action      ActivityAction  `json:"action"`
	Details     json.RawMessage `json:"details"`
	CreatedAt   time.Time       `json:"created_at"`

	// ActorName is the joined display name of UserID, empty if unknown.
	ActorName string `json:"actor_name,omitempty"`
}

type NewActivity struct {
	HouseholdID string
	TaskID      *string
	ListID      *string
	UserID      string
	Action      ActivityAction
	Details     map[string]any
}
