package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/dukerupert/indivisible/internal/model"
)

func TestSubtaskLifecycle(t *testing.T) {
	f := setupTestFixture(t)
	h := NewSubtaskHandler(f.subtasks, f.tasks, nil, discardLogger())
	task := f.mustTask(t, "Plan party")

	var created []model.Subtask
	for _, title := range []string{"  Invite friends ", "Buy cake"} {
		rec := serve(t, "POST /api/tasks/{id}/subtasks", h.Create, authFor(f.alex), http.MethodPost,
			"/api/tasks/"+task.ID+"/subtasks", map[string]string{"title": title})
		expectStatus(t, rec, http.StatusCreated)
		var st model.Subtask
		decodeBody(t, rec, &st)
		created = append(created, st)
	}
	if created[0].Title != "Invite friends" || created[1].SortOrder != 1 {
		t.Errorf("created = %+v", created)
	}

	rec := serve(t, "POST /api/subtasks/{id}/toggle", h.Toggle, authFor(f.sam), http.MethodPost,
		"/api/subtasks/"+created[0].ID+"/toggle", nil)
	expectStatus(t, rec, http.StatusOK)
	var toggled model.Subtask
	decodeBody(t, rec, &toggled)
	if !toggled.Completed {
		t.Error("toggle did not complete the subtask")
	}

	rec = serve(t, "PUT /api/subtasks/{id}", h.Update, authFor(f.sam), http.MethodPut,
		"/api/subtasks/"+created[1].ID, map[string]string{"title": "Order cake"})
	expectStatus(t, rec, http.StatusOK)

	rec = serve(t, "DELETE /api/subtasks/{id}", h.Delete, authFor(f.alex), http.MethodDelete,
		"/api/subtasks/"+created[0].ID, nil)
	expectStatus(t, rec, http.StatusNoContent)

	rec = serve(t, "GET /api/tasks/{id}/subtasks", h.List, authFor(f.sam), http.MethodGet,
		"/api/tasks/"+task.ID+"/subtasks", nil)
	expectStatus(t, rec, http.StatusOK)
	var list []model.Subtask
	decodeBody(t, rec, &list)
	if len(list) != 1 || list[0].Title != "Order cake" {
		t.Errorf("subtasks = %+v", list)
	}
}

func TestSubtaskCreateValidation(t *testing.T) {
	f := setupTestFixture(t)
	h := NewSubtaskHandler(f.subtasks, f.tasks, nil, discardLogger())
	task := f.mustTask(t, "Plan party")

	rec := serve(t, "POST /api/tasks/{id}/subtasks", h.Create, authFor(f.alex), http.MethodPost,
		"/api/tasks/"+task.ID+"/subtasks", map[string]string{"title": "   "})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestSubtaskScopedToHousehold(t *testing.T) {
	f := setupTestFixture(t)
	h := NewSubtaskHandler(f.subtasks, f.tasks, nil, discardLogger())
	task := f.mustTask(t, "Plan party")
	st, err := f.subtasks.Create(context.Background(), task.ID, "Invite friends")
	if err != nil {
		t.Fatalf("create subtask: %v", err)
	}

	rec := serve(t, "GET /api/tasks/{id}/subtasks", h.List, authFor(f.outsider), http.MethodGet,
		"/api/tasks/"+task.ID+"/subtasks", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = serve(t, "POST /api/subtasks/{id}/toggle", h.Toggle, authFor(f.outsider), http.MethodPost,
		"/api/subtasks/"+st.ID+"/toggle", nil)
	expectStatus(t, rec, http.StatusNotFound)

	rec = serve(t, "DELETE /api/subtasks/{id}", h.Delete, authFor(f.outsider), http.MethodDelete,
		"/api/subtasks/"+st.ID, nil)
	expectStatus(t, rec, http.StatusNotFound)

	got, err := f.subtasks.GetByID(context.Background(), st.ID)
	if err != nil || got == nil || got.Completed {
		t.Errorf("subtask after foreign requests = %+v, %v", got, err)
	}
}
