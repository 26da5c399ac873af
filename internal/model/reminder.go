package model

import "time"

type ReminderType string

const (
	ReminderPush  ReminderType = "push"
	ReminderEmail ReminderType = "email"
	ReminderInApp ReminderType = "in_app"
)

type Reminder struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id"`
	UserID    string       `json:"user_id"`
	RemindAt  time.Time    `json:"remind_at"`
	Type      ReminderType `json:"type"`
	Sent      bool         `json:"sent"`
	CreatedAt time.Time    `json:"created_at"`

	// TaskTitle is joined when listing due reminders.
	TaskTitle string `json:"task_title,omitempty"`
}

const NotifTypeReminder = "reminder"

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	TaskID    *string   `json:"task_id"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
