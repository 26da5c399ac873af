package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
	"github.com/dukerupert/indivisible/internal/websocket"
)

const maxSubtaskTitle = 200

type SubtaskHandler struct {
	subtasks *store.SubtaskStore
	tasks    *store.TaskStore
	broadcaster
	logger *slog.Logger
}

func NewSubtaskHandler(ss *store.SubtaskStore, ts *store.TaskStore, hub *websocket.Hub, logger *slog.Logger) *SubtaskHandler {
	return &SubtaskHandler{subtasks: ss, tasks: ts, broadcaster: broadcaster{hub}, logger: logger}
}

// householdSubtask loads a subtask whose parent task belongs to the request's
// household. Writes the error response itself when it returns nil.
func (h *SubtaskHandler) householdSubtask(w http.ResponseWriter, r *http.Request) *model.Subtask {
	st, err := h.subtasks.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get subtask")
		return nil
	}
	if st != nil {
		hid, err := h.tasks.HouseholdOf(r.Context(), st.TaskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get subtask")
			return nil
		}
		if hid != auth.HouseholdID(r.Context()) {
			st = nil
		}
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "subtask not found")
		return nil
	}
	return st
}

func (h *SubtaskHandler) changed(r *http.Request, action string, st *model.Subtask) {
	h.broadcast(r.Context(), websocket.NewMessage("subtask", action, st.ID, map[string]any{"task_id": st.TaskID}))
}

// List handles GET /api/tasks/{id}/subtasks
func (h *SubtaskHandler) List(w http.ResponseWriter, r *http.Request) {
	t := householdTask(w, r, h.tasks, r.PathValue("id"))
	if t == nil {
		return
	}
	subtasks, err := h.subtasks.ListByTask(r.Context(), t.ID)
	if err != nil {
		h.logger.Error("list subtasks", "task_id", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subtasks")
		return
	}
	writeJSON(w, http.StatusOK, subtasks)
}

type subtaskRequest struct {
	Title string `json:"title"`
}

func (req *subtaskRequest) validate() string {
	req.Title = strings.TrimSpace(req.Title)
	switch {
	case req.Title == "":
		return "title is required"
	case len(req.Title) > maxSubtaskTitle:
		return "title is too long"
	}
	return ""
}

// Create handles POST /api/tasks/{id}/subtasks
func (h *SubtaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	t := householdTask(w, r, h.tasks, r.PathValue("id"))
	if t == nil {
		return
	}
	var req subtaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	st, err := h.subtasks.Create(r.Context(), t.ID, req.Title)
	if err != nil {
		h.logger.Error("create subtask", "task_id", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create subtask")
		return
	}
	h.changed(r, "created", st)
	writeJSON(w, http.StatusCreated, st)
}

// Update handles PUT /api/subtasks/{id}, which renames a subtask.
func (h *SubtaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	st := h.householdSubtask(w, r)
	if st == nil {
		return
	}
	var req subtaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	st, err := h.subtasks.UpdateTitle(r.Context(), st.ID, req.Title)
	if err != nil || st == nil {
		h.logger.Error("update subtask", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update subtask")
		return
	}
	h.changed(r, "updated", st)
	writeJSON(w, http.StatusOK, st)
}

// Toggle handles POST /api/subtasks/{id}/toggle
func (h *SubtaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	st := h.householdSubtask(w, r)
	if st == nil {
		return
	}
	st, err := h.subtasks.Toggle(r.Context(), st.ID)
	if err != nil || st == nil {
		h.logger.Error("toggle subtask", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to toggle subtask")
		return
	}
	h.changed(r, "updated", st)
	writeJSON(w, http.StatusOK, st)
}

// Delete handles DELETE /api/subtasks/{id}
func (h *SubtaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	st := h.householdSubtask(w, r)
	if st == nil {
		return
	}
	if err := h.subtasks.Delete(r.Context(), st.ID); err != nil && !isNotFound(err) {
		h.logger.Error("delete subtask", "id", st.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subtask")
		return
	}
	h.changed(r, "deleted", st)
	w.WriteHeader(http.StatusNoContent)
}
