package task

import (
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

type Bucket string

const (
	BucketOverdue   Bucket = "overdue"
	BucketToday     Bucket = "today"
	BucketUpcoming  Bucket = "upcoming"
	BucketNoDate    Bucket = "no_date"
	BucketCompleted Bucket = "completed"
)

// Classify places a task relative to today. An unparseable due date is
// treated as no date.
func Classify(t model.Task, today time.Time) Bucket {
	if t.Status == model.StatusCompleted {
		return BucketCompleted
	}
	if t.DueDate == nil {
		return BucketNoDate
	}
	due, err := time.Parse(model.DateLayout, *t.DueDate)
	if err != nil {
		return BucketNoDate
	}

	today = startOfDay(today)
	switch {
	case due.Before(today):
		return BucketOverdue
	case due.Equal(today):
		return BucketToday
	default:
		return BucketUpcoming
	}
}

// IsOverdue reports whether an open task's due date is before today.
func IsOverdue(t model.Task, today time.Time) bool {
	return Classify(t, today) == BucketOverdue
}

// Board groups open tasks for the dashboard.
type Board struct {
	Overdue  []model.TaskWithList `json:"overdue"`
	Today    []model.TaskWithList `json:"today"`
	Upcoming []model.TaskWithList `json:"upcoming"`
	NoDate   []model.TaskWithList `json:"no_date"`
}

// BuildBoard buckets tasks by due date, skipping completed ones. Input order
// is preserved within each bucket.
func BuildBoard(tasks []model.TaskWithList, today time.Time) Board {
	b := Board{
		Overdue:  []model.TaskWithList{},
		Today:    []model.TaskWithList{},
		Upcoming: []model.TaskWithList{},
		NoDate:   []model.TaskWithList{},
	}
	for _, t := range tasks {
		switch Classify(t.Task, today) {
		case BucketOverdue:
			b.Overdue = append(b.Overdue, t)
		case BucketToday:
			b.Today = append(b.Today, t)
		case BucketUpcoming:
			b.Upcoming = append(b.Upcoming, t)
		case BucketNoDate:
			b.NoDate = append(b.NoDate, t)
		}
	}
	return b
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
