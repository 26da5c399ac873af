package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

func newTaskHandler(f *testFixture) *TaskHandler {
	h := NewTaskHandler(f.tasks, f.lists, f.profiles, f.activity, nil, discardLogger())
	h.now = func() time.Time { return time.Date(2026, 10, 7, 9, 0, 0, 0, time.UTC) }
	return h
}

func TestTaskCreateValidation(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing title", map[string]any{"title": "  "}},
		{"bad priority", map[string]any{"title": "x", "priority": "extreme"}},
		{"bad urgency", map[string]any{"title": "x", "urgency": "whenever"}},
		{"bad due date", map[string]any{"title": "x", "due_date": "10/12/2026"}},
		{"bad due time", map[string]any{"title": "x", "due_time": "whenever"}},
		{"bad recurrence", map[string]any{"title": "x", "recurrence_rule": `{"frequency":"hourly"}`}},
		{"outsider assignee", map[string]any{"title": "x", "assigned_to": f.outsider.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, "POST /api/lists/{id}/tasks", h.Create, authFor(f.alex), http.MethodPost,
				"/api/lists/"+f.list.ID+"/tasks", tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestTaskCreate(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)

	rec := serve(t, "POST /api/lists/{id}/tasks", h.Create, authFor(f.alex), http.MethodPost,
		"/api/lists/"+f.list.ID+"/tasks", map[string]any{
			"title":           "Water plants",
			"priority":        "high",
			"due_date":        "2026-10-09",
			"assigned_to":     f.sam.ID,
			"recurrence_rule": `{"frequency":"weekly","interval":2}`,
		})
	expectStatus(t, rec, http.StatusCreated)

	var got struct {
		model.Task
		RecurrenceLabel string `json:"recurrence_label"`
	}
	decodeBody(t, rec, &got)
	if got.Title != "Water plants" || got.Priority != model.PriorityHigh {
		t.Errorf("task = %+v", got.Task)
	}
	if got.Urgency != model.UrgencyNone || got.Status != model.StatusPending {
		t.Errorf("defaults: urgency %q status %q", got.Urgency, got.Status)
	}
	if got.CreatedBy != f.alex.ID {
		t.Errorf("created_by = %s, want %s", got.CreatedBy, f.alex.ID)
	}
	if got.RecurrenceLabel != "Every 2 weeks" {
		t.Errorf("recurrence label = %q, want %q", got.RecurrenceLabel, "Every 2 weeks")
	}

	entries, err := f.activity.ListByTask(context.Background(), got.ID, 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != model.ActionTaskCreated {
		t.Errorf("activity = %+v, want task_created", entries)
	}
}

func TestTaskForeignHouseholdNotFound(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	task := f.mustTask(t, "Private")

	rec := serve(t, "GET /api/tasks/{id}", h.Get, authFor(f.outsider), http.MethodGet, "/api/tasks/"+task.ID, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = serve(t, "POST /api/lists/{id}/tasks", h.Create, authFor(f.outsider), http.MethodPost,
		"/api/lists/"+f.list.ID+"/tasks", map[string]any{"title": "sneaky"})
	expectStatus(t, rec, http.StatusNotFound)
}

func TestTaskToggleRecurring(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	ctx := context.Background()

	due, rule := "2026-10-05", `{"frequency":"weekly","interval":1}`
	task, err := f.tasks.Create(ctx, model.NewTask{
		ListID: f.list.ID, Title: "Bins out", Priority: model.PriorityNone, Urgency: model.UrgencyNone,
		DueDate: &due, RecurrenceRule: &rule, CreatedBy: f.alex.ID,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	rec := serve(t, "POST /api/tasks/{id}/toggle", h.Toggle, authFor(f.sam), http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Task model.Task  `json:"task"`
		Next *model.Task `json:"next"`
	}
	decodeBody(t, rec, &resp)
	if resp.Task.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", resp.Task.Status)
	}
	if resp.Task.CompletedBy == nil || *resp.Task.CompletedBy != f.sam.ID {
		t.Errorf("completed_by = %v, want sam", resp.Task.CompletedBy)
	}
	if resp.Next == nil || resp.Next.DueDate == nil || *resp.Next.DueDate != "2026-10-12" {
		t.Fatalf("next = %+v, want follow-up due 2026-10-12", resp.Next)
	}

	rec = serve(t, "POST /api/tasks/{id}/toggle", h.Toggle, authFor(f.sam), http.MethodPost, "/api/tasks/"+task.ID+"/toggle", nil)
	expectStatus(t, rec, http.StatusOK)
	resp.Next = nil
	decodeBody(t, rec, &resp)
	if resp.Task.Status != model.StatusPending || resp.Task.CompletedAt != nil {
		t.Errorf("reopened task = %+v", resp.Task)
	}
	if resp.Next != nil {
		t.Error("reopening spawned a follow-up")
	}

	tasks, err := f.tasks.ListByList(ctx, f.list.ID, "")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("got %d tasks, want original plus one follow-up", len(tasks))
	}
}

func TestTaskUpdate(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	task := f.mustTask(t, "Vacuum")

	rec := serve(t, "PUT /api/tasks/{id}", h.Update, authFor(f.sam), http.MethodPut, "/api/tasks/"+task.ID,
		map[string]any{"title": "Vacuum upstairs", "assigned_to": f.sam.ID, "status": "completed"})
	expectStatus(t, rec, http.StatusOK)

	var got model.Task
	decodeBody(t, rec, &got)
	if got.Title != "Vacuum upstairs" {
		t.Errorf("title = %q", got.Title)
	}
	if got.CompletedBy == nil || *got.CompletedBy != f.sam.ID || got.CompletedAt == nil {
		t.Errorf("completion = %v %v, want sam", got.CompletedBy, got.CompletedAt)
	}

	entries, err := f.activity.ListByTask(context.Background(), task.ID, 10)
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	actions := map[model.ActivityAction]bool{}
	for _, e := range entries {
		actions[e.Action] = true
	}
	if !actions[model.ActionTaskUpdated] || !actions[model.ActionTaskAssigned] {
		t.Errorf("actions = %v, want task_updated and task_assigned", actions)
	}
}

func TestTaskUpdateRejects(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	task := f.mustTask(t, "Vacuum")
	foreign, err := f.lists.Create(context.Background(), f.other.ID, "Theirs", "", "", f.outsider.ID)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	tests := []struct {
		name string
		body map[string]any
	}{
		{"foreign list", map[string]any{"list_id": foreign.ID}},
		{"outsider assignee", map[string]any{"assigned_to": f.outsider.ID}},
		{"bad recurrence", map[string]any{"recurrence_rule": "every tuesday"}},
		{"unknown field", map[string]any{"household_id": f.other.ID}},
		{"bad priority", map[string]any{"priority": "extreme"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, "PUT /api/tasks/{id}", h.Update, authFor(f.alex), http.MethodPut, "/api/tasks/"+task.ID, tt.body)
			expectStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestTaskDelete(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	task := f.mustTask(t, "Old")

	rec := serve(t, "DELETE /api/tasks/{id}", h.Delete, authFor(f.alex), http.MethodDelete, "/api/tasks/"+task.ID, nil)
	expectStatus(t, rec, http.StatusNoContent)

	got, err := f.tasks.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got != nil {
		t.Error("task still exists")
	}
}

func TestTaskListByListFilter(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	ctx := context.Background()
	mine := f.mustTask(t, "Mine")
	f.mustTask(t, "Nobody's")
	if _, err := f.tasks.Update(ctx, mine.ID, map[string]any{"assigned_to": f.alex.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	rec := serve(t, "GET /api/lists/{id}/tasks", h.ListByList, authFor(f.alex), http.MethodGet,
		"/api/lists/"+f.list.ID+"/tasks?filter=mine", nil)
	expectStatus(t, rec, http.StatusOK)

	var tasks []model.Task
	decodeBody(t, rec, &tasks)
	if len(tasks) != 1 || tasks[0].ID != mine.ID {
		t.Errorf("filtered tasks = %+v, want only %s", tasks, mine.ID)
	}
}

func TestTaskReorder(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	a := f.mustTask(t, "A")
	b := f.mustTask(t, "B")

	rec := serve(t, "PUT /api/lists/{id}/tasks/order", h.Reorder, authFor(f.alex), http.MethodPut,
		"/api/lists/"+f.list.ID+"/tasks/order", map[string][]string{"ids": {b.ID, a.ID}})
	expectStatus(t, rec, http.StatusNoContent)

	tasks, err := f.tasks.ListByList(context.Background(), f.list.ID, "sort_order")
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != b.ID {
		t.Errorf("order = %v, want B first", tasks)
	}
}

func TestTaskSearchAndCalendar(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	ctx := context.Background()
	task := f.mustTask(t, "Renew passport")
	if _, err := f.tasks.Update(ctx, task.ID, map[string]any{"due_date": "2026-11-02"}); err != nil {
		t.Fatalf("set due date: %v", err)
	}

	rec := serve(t, "GET /api/tasks/search", h.Search, authFor(f.sam), http.MethodGet, "/api/tasks/search?q=passport", nil)
	expectStatus(t, rec, http.StatusOK)
	var found []model.TaskWithList
	decodeBody(t, rec, &found)
	if len(found) != 1 || found[0].ListName != "Chores" {
		t.Errorf("search = %+v", found)
	}

	rec = serve(t, "GET /api/tasks/search", h.Search, authFor(f.outsider), http.MethodGet, "/api/tasks/search?q=passport", nil)
	expectStatus(t, rec, http.StatusOK)
	found = nil
	decodeBody(t, rec, &found)
	if len(found) != 0 {
		t.Errorf("outsider search returned %d tasks", len(found))
	}

	rec = serve(t, "GET /api/tasks/calendar", h.Calendar, authFor(f.sam), http.MethodGet,
		"/api/tasks/calendar?from=2026-11-01&to=2026-11-30", nil)
	expectStatus(t, rec, http.StatusOK)
	found = nil
	decodeBody(t, rec, &found)
	if len(found) != 1 {
		t.Errorf("calendar returned %d tasks, want 1", len(found))
	}

	rec = serve(t, "GET /api/tasks/calendar", h.Calendar, authFor(f.sam), http.MethodGet,
		"/api/tasks/calendar?from=2026-11-30&to=2026-11-01", nil)
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestTaskDashboard(t *testing.T) {
	f := setupTestFixture(t)
	h := newTaskHandler(f)
	ctx := context.Background()

	overdue := f.mustTask(t, "Late")
	if _, err := f.tasks.Update(ctx, overdue.ID, map[string]any{"due_date": "2026-10-01", "assigned_to": f.sam.ID}); err != nil {
		t.Fatalf("update: %v", err)
	}
	f.mustTask(t, "Someday")

	rec := serve(t, "GET /api/dashboard", h.Dashboard, authFor(f.alex), http.MethodGet, "/api/dashboard", nil)
	expectStatus(t, rec, http.StatusOK)

	var resp struct {
		Overdue  []model.TaskWithList `json:"overdue"`
		NoDate   []model.TaskWithList `json:"no_date"`
		Workload struct {
			Members []struct {
				UserID  string `json:"user_id"`
				Pending int    `json:"pending"`
			} `json:"members"`
			Unassigned int `json:"unassigned"`
		} `json:"workload"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Overdue) != 1 || resp.Overdue[0].ID != overdue.ID {
		t.Errorf("overdue = %+v", resp.Overdue)
	}
	if len(resp.NoDate) != 1 {
		t.Errorf("no_date has %d tasks, want 1", len(resp.NoDate))
	}
	if resp.Workload.Unassigned != 1 {
		t.Errorf("unassigned = %d, want 1", resp.Workload.Unassigned)
	}
	for _, m := range resp.Workload.Members {
		if m.UserID == f.sam.ID && m.Pending != 1 {
			t.Errorf("sam pending = %d, want 1", m.Pending)
		}
	}
}
