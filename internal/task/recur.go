package task

import (
	"fmt"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/recurrence"
)

// FollowUp builds the next instance of a recurring task that was just
// completed. It returns nil when the task does not recur or its series has
// ended.
func FollowUp(t model.Task, createdBy string, today time.Time) (*model.NewTask, error) {
	if t.RecurrenceRule == nil || *t.RecurrenceRule == "" {
		return nil, nil
	}
	rule, err := recurrence.Parse(*t.RecurrenceRule)
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", t.ID, err)
	}
	next, ok := recurrence.NextDueDate(t.DueDate, rule, today)
	if !ok {
		return nil, nil
	}

	return &model.NewTask{
		ListID:               t.ListID,
		Title:                t.Title,
		Description:          t.Description,
		Priority:             t.Priority,
		Urgency:              t.Urgency,
		DueDate:              &next,
		DueTime:              t.DueTime,
		AssignedTo:           t.AssignedTo,
		SharedResponsibility: t.SharedResponsibility,
		RecurrenceRule:       t.RecurrenceRule,
		SortOrder:            t.SortOrder,
		CreatedBy:            createdBy,
	}, nil
}
