package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
)

type ReminderHandler struct {
	reminders *store.ReminderStore
	tasks     *store.TaskStore
	logger    *slog.Logger
}

func NewReminderHandler(rs *store.ReminderStore, ts *store.TaskStore, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{reminders: rs, tasks: ts, logger: logger}
}

// List handles GET /api/tasks/{id}/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	t := householdTask(w, r, h.tasks, r.PathValue("id"))
	if t == nil {
		return
	}
	reminders, err := h.reminders.ListByTask(r.Context(), t.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list reminders")
		return
	}
	if reminders == nil {
		reminders = []model.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

type createReminderRequest struct {
	RemindAt time.Time          `json:"remind_at"`
	Type     model.ReminderType `json:"type"`
}

// Create handles POST /api/tasks/{id}/reminders. The reminder targets the
// requesting member.
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	t := householdTask(w, r, h.tasks, r.PathValue("id"))
	if t == nil {
		return
	}
	var req createReminderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.RemindAt.IsZero() {
		writeError(w, http.StatusBadRequest, "remind_at is required")
		return
	}
	switch req.Type {
	case "":
		req.Type = model.ReminderPush
	case model.ReminderPush, model.ReminderEmail, model.ReminderInApp:
	default:
		writeError(w, http.StatusBadRequest, "invalid reminder type")
		return
	}

	rem, err := h.reminders.Create(r.Context(), t.ID, auth.UserID(r.Context()), req.RemindAt, req.Type)
	if err != nil {
		h.logger.Error("create reminder", "task_id", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create reminder")
		return
	}
	writeJSON(w, http.StatusCreated, rem)
}

// Delete handles DELETE /api/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rem, err := h.reminders.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get reminder")
		return
	}
	if rem != nil {
		hid, err := h.tasks.HouseholdOf(r.Context(), rem.TaskID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get reminder")
			return
		}
		if hid != auth.HouseholdID(r.Context()) {
			rem = nil
		}
	}
	if rem == nil {
		writeError(w, http.StatusNotFound, "reminder not found")
		return
	}

	if err := h.reminders.Delete(r.Context(), rem.ID); err != nil && !isNotFound(err) {
		h.logger.Error("delete reminder", "id", rem.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete reminder")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
