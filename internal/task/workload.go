package task

import "github.com/dukerupert/indivisible/internal/model"

type MemberLoad struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Pending     int    `json:"pending"`
	Completed   int    `json:"completed"`
}

// Workload summarizes how open tasks are split across the household.
type Workload struct {
	Members    []MemberLoad `json:"members"`
	Shared     int          `json:"shared"`
	Unassigned int          `json:"unassigned"`
}

// ComputeWorkload counts tasks per member in member order. Shared tasks are
// counted once under Shared rather than against their assignee. Tasks
// assigned to someone outside members are ignored.
func ComputeWorkload(tasks []model.Task, members []model.Profile) Workload {
	w := Workload{Members: make([]MemberLoad, len(members))}
	idx := make(map[string]int, len(members))
	for i, m := range members {
		w.Members[i] = MemberLoad{UserID: m.ID, DisplayName: m.DisplayName}
		idx[m.ID] = i
	}

	for _, t := range tasks {
		done := t.Status == model.StatusCompleted
		if done {
			if t.CompletedBy != nil {
				if i, ok := idx[*t.CompletedBy]; ok {
					w.Members[i].Completed++
				}
			}
			continue
		}
		switch {
		case t.SharedResponsibility:
			w.Shared++
		case t.AssignedTo == nil:
			w.Unassigned++
		default:
			if i, ok := idx[*t.AssignedTo]; ok {
				w.Members[i].Pending++
			}
		}
	}
	return w
}
