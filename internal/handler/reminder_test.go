package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

func TestReminderCreateAndList(t *testing.T) {
	f := setupTestFixture(t)
	h := NewReminderHandler(f.reminders, f.tasks, discardLogger())
	task := f.mustTask(t, "Call plumber")
	at := time.Date(2026, 10, 20, 8, 30, 0, 0, time.UTC)

	rec := serve(t, "POST /api/tasks/{id}/reminders", h.Create, authFor(f.sam), http.MethodPost,
		"/api/tasks/"+task.ID+"/reminders", map[string]any{"remind_at": at})
	expectStatus(t, rec, http.StatusCreated)

	var rem model.Reminder
	decodeBody(t, rec, &rem)
	if rem.Type != model.ReminderPush || rem.UserID != f.sam.ID || !rem.RemindAt.Equal(at) {
		t.Errorf("reminder = %+v", rem)
	}

	rec = serve(t, "GET /api/tasks/{id}/reminders", h.List, authFor(f.alex), http.MethodGet,
		"/api/tasks/"+task.ID+"/reminders", nil)
	expectStatus(t, rec, http.StatusOK)
	var list []model.Reminder
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].ID != rem.ID {
		t.Errorf("reminders = %+v", list)
	}
}

func TestReminderCreateValidation(t *testing.T) {
	f := setupTestFixture(t)
	h := NewReminderHandler(f.reminders, f.tasks, discardLogger())
	task := f.mustTask(t, "Call plumber")

	for name, body := range map[string]map[string]any{
		"missing time": {"type": "push"},
		"bad type":     {"remind_at": "2026-10-20T08:30:00Z", "type": "pigeon"},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(t, "POST /api/tasks/{id}/reminders", h.Create, authFor(f.sam), http.MethodPost,
				"/api/tasks/"+task.ID+"/reminders", body)
			expectStatus(t, rec, http.StatusBadRequest)
		})
	}
}

func TestReminderDeleteScopedToHousehold(t *testing.T) {
	f := setupTestFixture(t)
	h := NewReminderHandler(f.reminders, f.tasks, discardLogger())
	task := f.mustTask(t, "Call plumber")
	rem, err := f.reminders.Create(context.Background(), task.ID, f.alex.ID, time.Now().Add(time.Hour), model.ReminderInApp)
	if err != nil {
		t.Fatalf("create reminder: %v", err)
	}

	rec := serve(t, "DELETE /api/reminders/{id}", h.Delete, authFor(f.outsider), http.MethodDelete, "/api/reminders/"+rem.ID, nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = serve(t, "DELETE /api/reminders/{id}", h.Delete, authFor(f.sam), http.MethodDelete, "/api/reminders/"+rem.ID, nil)
	expectStatus(t, rec, http.StatusNoContent)

	got, err := f.reminders.GetByID(context.Background(), rem.ID)
	if err != nil {
		t.Fatalf("get reminder: %v", err)
	}
	if got != nil {
		t.Error("reminder still exists")
	}
}
