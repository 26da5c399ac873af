package task

import "github.com/dukerupert/indivisible/internal/model"

type Filter string

const (
	FilterAll        Filter = "all"
	FilterMine       Filter = "mine"
	FilterTheirs     Filter = "theirs"
	FilterUnassigned Filter = "unassigned"
	FilterShared     Filter = "shared"
)

// Apply keeps the tasks matching f from userID's point of view. Unknown
// filters keep everything.
func Apply(tasks []model.Task, f Filter, userID string) []model.Task {
	out := make([]model.Task, 0, len(tasks))
	for _, t := range tasks {
		if matches(t, f, userID) {
			out = append(out, t)
		}
	}
	return out
}

func matches(t model.Task, f Filter, userID string) bool {
	switch f {
	case FilterMine:
		return t.AssignedTo != nil && *t.AssignedTo == userID
	case FilterTheirs:
		return t.AssignedTo != nil && *t.AssignedTo != userID
	case FilterUnassigned:
		return t.AssignedTo == nil && !t.SharedResponsibility
	case FilterShared:
		return t.SharedResponsibility
	default:
		return true
	}
}
