package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
)

const (
	activityLimit    = 50
	maxActivityLimit = 200
)

type ActivityHandler struct {
	activity *store.ActivityStore
	tasks    *store.TaskStore
	logger   *slog.Logger
}

func NewActivityHandler(as *store.ActivityStore, ts *store.TaskStore, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activity: as, tasks: ts, logger: logger}
}

// List handles GET /api/activity?limit=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activity.ListByHousehold(r.Context(), auth.HouseholdID(r.Context()),
		queryInt(r, "limit", activityLimit, maxActivityLimit))
	if err != nil {
		h.logger.Error("list activity", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	writeEntries(w, entries)
}

// ListByTask handles GET /api/tasks/{id}/activity
func (h *ActivityHandler) ListByTask(w http.ResponseWriter, r *http.Request) {
	t := householdTask(w, r, h.tasks, r.PathValue("id"))
	if t == nil {
		return
	}
	entries, err := h.activity.ListByTask(r.Context(), t.ID, queryInt(r, "limit", activityLimit, maxActivityLimit))
	if err != nil {
		h.logger.Error("list task activity", "task_id", t.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	writeEntries(w, entries)
}

func writeEntries(w http.ResponseWriter, entries []model.ActivityEntry) {
	if entries == nil {
		entries = []model.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
