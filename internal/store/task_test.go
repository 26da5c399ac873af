package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

func createTask(t *testing.T, f *fixture, title string, dueDate *string) *model.Task {
	t.Helper()
	task, err := NewTaskStore(f.db).Create(context.Background(), model.NewTask{
		ListID:    f.list.ID,
		Title:     title,
		DueDate:   dueDate,
		CreatedBy: f.member.ID,
	})
	if err != nil {
		t.Fatalf("create task %q: %v", title, err)
	}
	return task
}

func TestTaskCreateDefaults(t *testing.T) {
	f := setupTestDB(t)
	task := createTask(t, f, "Take out trash", nil)

	if task.Status != model.StatusPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
	if task.Priority != model.PriorityNone || task.Urgency != model.UrgencyNone {
		t.Errorf("priority/urgency = %q/%q, want none/none", task.Priority, task.Urgency)
	}
	if task.CompletedAt != nil || task.CompletedBy != nil {
		t.Error("new task should have no completion")
	}
	if task.DueDate != nil {
		t.Errorf("due_date = %v, want nil", *task.DueDate)
	}
}

func TestTaskGetByIDNotFound(t *testing.T) {
	f := setupTestDB(t)
	task, err := NewTaskStore(f.db).GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if task != nil {
		t.Error("expected nil for nonexistent task")
	}
}

func TestTaskListForHouseholdOrdersUndatedLast(t *testing.T) {
	f := setupTestDB(t)
	createTask(t, f, "undated", nil)
	createTask(t, f, "later", strPtr("2026-03-10"))
	createTask(t, f, "sooner", strPtr("2026-03-01"))

	tasks, err := NewTaskStore(f.db).ListForHousehold(context.Background(), f.household.ID, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"sooner", "later", "undated"}
	if len(tasks) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(tasks), len(want))
	}
	for i, title := range want {
		if tasks[i].Title != title {
			t.Errorf("tasks[%d] = %q, want %q", i, tasks[i].Title, title)
		}
		if tasks[i].ListName != "Chores" {
			t.Errorf("tasks[%d].ListName = %q, want Chores", i, tasks[i].ListName)
		}
	}
}

func TestTaskListForHouseholdLimit(t *testing.T) {
	f := setupTestDB(t)
	for i := 0; i < 5; i++ {
		createTask(t, f, "task", nil)
	}
	tasks, err := NewTaskStore(f.db).ListForHousehold(context.Background(), f.household.ID, 3)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Errorf("got %d tasks, want 3", len(tasks))
	}
}

func TestTaskCompleteAndReopen(t *testing.T) {
	f := setupTestDB(t)
	ts := NewTaskStore(f.db)
	ctx := context.Background()
	task := createTask(t, f, "Dishes", nil)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := ts.Complete(ctx, task.ID, f.member.ID, at); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := ts.GetByID(ctx, task.ID)
	if got.Status != model.StatusCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.CompletedBy == nil || *got.CompletedBy != f.member.ID {
		t.Errorf("completed_by = %v, want %q", got.CompletedBy, f.member.ID)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Errorf("completed_at = %v, want %v", got.CompletedAt, at)
	}

	if err := ts.Reopen(ctx, task.ID); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, _ = ts.GetByID(ctx, task.ID)
	if got.Status != model.StatusPending || got.CompletedAt != nil || got.CompletedBy != nil {
		t.Errorf("reopened task = %+v, want pending without completion", got)
	}
}

func TestTaskCompleteMissing(t *testing.T) {
	f := setupTestDB(t)
	err := NewTaskStore(f.db).Complete(context.Background(), "missing", f.member.ID, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTaskUpdate(t *testing.T) {
	f := setupTestDB(t)
	ts := NewTaskStore(f.db)
	ctx := context.Background()
	task := createTask(t, f, "Mow lawn", nil)

	got, err := ts.Update(ctx, task.ID, map[string]any{
		"priority":    "high",
		"due_date":    "2026-04-01",
		"assigned_to": f.member.ID,
		"sort_order":  float64(3),
		"due_time":    "7:05",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Priority != model.PriorityHigh {
		t.Errorf("priority = %q, want high", got.Priority)
	}
	if got.DueDate == nil || *got.DueDate != "2026-04-01" {
		t.Errorf("due_date = %v, want 2026-04-01", got.DueDate)
	}
	if got.AssignedTo == nil || *got.AssignedTo != f.member.ID {
		t.Errorf("assigned_to = %v, want %q", got.AssignedTo, f.member.ID)
	}
	if got.SortOrder != 3 {
		t.Errorf("sort_order = %d, want 3", got.SortOrder)
	}
	if got.DueTime == nil || *got.DueTime != "07:05" {
		t.Errorf("due_time = %v, want 07:05", got.DueTime)
	}

	got, err = ts.Update(ctx, task.ID, map[string]any{"assigned_to": nil})
	if err != nil {
		t.Fatalf("clear assignee: %v", err)
	}
	if got.AssignedTo != nil {
		t.Errorf("assigned_to = %v, want nil", *got.AssignedTo)
	}
}

func TestTaskUpdateStatusClearsCompletion(t *testing.T) {
	f := setupTestDB(t)
	ts := NewTaskStore(f.db)
	ctx := context.Background()
	task := createTask(t, f, "Laundry", nil)
	if err := ts.Complete(ctx, task.ID, f.member.ID, time.Now()); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, err := ts.Update(ctx, task.ID, map[string]any{"status": "in_progress"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.CompletedAt != nil || got.CompletedBy != nil {
		t.Error("completion should be cleared when leaving completed status")
	}
}

func TestTaskUpdateByCompletes(t *testing.T) {
	f := setupTestDB(t)
	ts := NewTaskStore(f.db)
	ctx := context.Background()
	task := createTask(t, f, "Mop", nil)

	if _, err := ts.Update(ctx, task.ID, map[string]any{"status": "completed"}); !errors.Is(err, ErrInvalidUpdate) {
		t.Fatalf("anonymous completion err = %v, want ErrInvalidUpdate", err)
	}

	got, err := ts.UpdateBy(ctx, task.ID, f.member.ID, map[string]any{"status": "completed"})
	if err != nil {
		t.Fatalf("UpdateBy: %v", err)
	}
	if got.Status != model.StatusCompleted || got.CompletedBy == nil || *got.CompletedBy != f.member.ID || got.CompletedAt == nil {
		t.Errorf("task = %s by %v at %v", got.Status, got.CompletedBy, got.CompletedAt)
	}
}

func TestTaskUpdateRejectsInvalid(t *testing.T) {
	f := setupTestDB(t)
	ts := NewTaskStore(f.db)
	task := createTask(t, f, "Vacuum", nil)

	tests := []struct {
		name   string
		fields map[string]any
	}{
		{"empty", map[string]any{}},
		{"unknown column", map[string]any{"created_by": "someone"}},
		{"bad priority", map[string]any{"priority": "extreme"}},
		{"bad date", map[string]any{"due_date": "next tuesday"}},
		{"bad time", map[string]any{"due_time": "whenever"}},
		{"empty title", map[string]any{"title": "  "}},
		{"wrong type", map[string]any{"shared_responsibility": "yes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Update(context.Background(), task.ID, tt.fields)
			if !errors.Is(err, ErrInvalidUpdate) {
				t.Errorf("err = %v, want ErrInvalidUpdate", err)
			}
		})
	}
}

func TestTaskUpdateMissing(t *testing.T) {
	f := setupTestDB(t)
	_, err := NewTaskStore(f.db).Update(context.Background(), "missing", map[string]any{"title": "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTaskSearch(t *testing.T) {
	f := setupTestDB(t)
	createTask(t, f, "Buy Groceries", nil)
	createTask(t, f, "Clean garage", nil)

	tasks, err := NewTaskStore(f.db).Search(context.Background(), f.household.ID, "grocer", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Buy Groceries" {
		t.Errorf("search = %+v, want only Buy Groceries", tasks)
	}
}

func TestTaskListByDueRange(t *testing.T) {
	f := setupTestDB(t)
	createTask(t, f, "in range", strPtr("2026-05-02"))
	createTask(t, f, "outside", strPtr("2026-06-01"))
	createTask(t, f, "undated", nil)

	tasks, err := NewTaskStore(f.db).ListByDueRange(context.Background(), f.household.ID, "2026-05-01", "2026-05-31")
	if err != nil {
		t.Fatalf("list by range: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "in range" {
		t.Errorf("range = %+v, want only 'in range'", tasks)
	}
}

func TestTaskReorder(t *testing.T) {
	f := setupTestDB(t)
	ts := NewTaskStore(f.db)
	ctx := context.Background()
	a := createTask(t, f, "a", nil)
	b := createTask(t, f, "b", nil)

	if err := ts.Reorder(ctx, f.list.ID, []string{b.ID, a.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	tasks, err := ts.ListByList(ctx, f.list.ID, "sort_order")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if tasks[0].ID != b.ID || tasks[1].ID != a.ID {
		t.Errorf("order = [%s %s], want [b a]", tasks[0].Title, tasks[1].Title)
	}
}

func TestTaskDeletedWithList(t *testing.T) {
	f := setupTestDB(t)
	task := createTask(t, f, "orphan", nil)
	if err := NewListStore(f.db).Delete(context.Background(), f.list.ID); err != nil {
		t.Fatalf("delete list: %v", err)
	}
	got, err := NewTaskStore(f.db).GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("task should be removed with its list")
	}
}
