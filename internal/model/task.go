package model

import (
	"fmt"
	"strings"
	"time"
)

type Priority string

const (
	PriorityNone     Priority = "none"
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank orders priorities from none (0) to critical (4).
func (p Priority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	default:
		return 0
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

type Urgency string

const (
	UrgencyNone   Urgency = "none"
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
	UrgencyUrgent Urgency = "urgent"
)

func (u Urgency) Valid() bool {
	switch u {
	case UrgencyNone, UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// DateLayout is the storage format of Task.DueDate.
const DateLayout = "2006-01-02"

// TimeLayout is the storage format of Task.DueTime.
const TimeLayout = "15:04"

// NormalizeDueTime parses a time of day given as HH:MM or HH:MM:SS and
// returns it in TimeLayout.
func NormalizeDueTime(s string) (string, error) {
	for _, layout := range []string{TimeLayout, "15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid time of day: %q", s)
}

// Task belongs to a list. CompletedBy and CompletedAt are either both set or
// both nil.
type Task struct {
	ID                   string     `json:"id"`
	ListID               string     `json:"list_id"`
	Title                string     `json:"title"`
	Description          *string    `json:"description"`
	Priority             Priority   `json:"priority"`
	Urgency              Urgency    `json:"urgency"`
	Status               Status     `json:"status"`
	DueDate              *string    `json:"due_date"`
	DueTime              *string    `json:"due_time"`
	AssignedTo           *string    `json:"assigned_to"`
	SharedResponsibility bool       `json:"shared_responsibility"`
	RecurrenceRule       *string    `json:"recurrence_rule"`
	SortOrder            int        `json:"sort_order"`
	CreatedBy            string     `json:"created_by"`
	CompletedBy          *string    `json:"completed_by"`
	CompletedAt          *time.Time `json:"completed_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// TaskWithList is a task joined with its owning list's display name.
type TaskWithList struct {
	Task
	ListName string `json:"list_name"`
}

// NewTask holds the fields accepted when inserting a task.
type NewTask struct {
	ListID               string
	Title                string
	Description          *string
	Priority             Priority
	Urgency              Urgency
	DueDate              *string
	DueTime              *string
	AssignedTo           *string
	SharedResponsibility bool
	RecurrenceRule       *string
	SortOrder            int
	CreatedBy            string
}
