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

type ListHandler struct {
	lists *store.ListStore
	broadcaster
	activityLogger
	logger *slog.Logger
}

func NewListHandler(ls *store.ListStore, as *store.ActivityStore, hub *websocket.Hub, logger *slog.Logger) *ListHandler {
	return &ListHandler{
		lists:          ls,
		broadcaster:    broadcaster{hub},
		activityLogger: activityLogger{as, logger},
		logger:         logger,
	}
}

type listRequest struct {
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// List handles GET /api/lists
func (h *ListHandler) List(w http.ResponseWriter, r *http.Request) {
	lists, err := h.lists.ListByHousehold(r.Context(), auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list lists")
		return
	}
	if lists == nil {
		lists = []model.List{}
	}
	writeJSON(w, http.StatusOK, lists)
}

// Create handles POST /api/lists
func (h *ListHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	l, err := h.lists.Create(r.Context(), auth.HouseholdID(r.Context()), req.Name, req.Icon, req.Color, auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("create list", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create list")
		return
	}

	h.log(r.Context(), nil, &l.ID, model.ActionListCreated, map[string]any{"name": l.Name})
	h.broadcast(r.Context(), websocket.NewMessage("list", "created", l.ID, nil))
	writeJSON(w, http.StatusCreated, l)
}

// Update handles PUT /api/lists/{id}
func (h *ListHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := householdList(w, r, h.lists, r.PathValue("id"))
	if existing == nil {
		return
	}
	var req listRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	l, err := h.lists.Update(r.Context(), existing.ID, req.Name, req.Icon, req.Color)
	if err != nil {
		h.logger.Error("update list", "list_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update list")
		return
	}

	h.log(r.Context(), nil, &l.ID, model.ActionListUpdated, map[string]any{"name": l.Name, "icon": l.Icon, "color": l.Color})
	h.broadcast(r.Context(), websocket.NewMessage("list", "updated", l.ID, nil))
	writeJSON(w, http.StatusOK, l)
}

// Delete handles DELETE /api/lists/{id}. The list's tasks go with it.
func (h *ListHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := householdList(w, r, h.lists, r.PathValue("id"))
	if existing == nil {
		return
	}
	if err := h.lists.Delete(r.Context(), existing.ID); err != nil {
		h.logger.Error("delete list", "list_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete list")
		return
	}

	h.log(r.Context(), nil, &existing.ID, model.ActionListDeleted, map[string]any{"name": existing.Name})
	h.broadcast(r.Context(), websocket.NewMessage("list", "deleted", existing.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

type orderRequest struct {
	IDs []string `json:"ids"`
}

// Reorder handles PUT /api/lists/order
func (h *ListHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owned, err := h.lists.ListByHousehold(r.Context(), auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list lists")
		return
	}
	ids := make(map[string]bool, len(owned))
	for _, l := range owned {
		ids[l.ID] = true
	}
	for _, id := range req.IDs {
		if !ids[id] {
			writeError(w, http.StatusBadRequest, "unknown list id: "+id)
			return
		}
	}

	if err := h.lists.UpdateSortOrder(r.Context(), req.IDs); err != nil {
		h.logger.Error("reorder lists", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reorder lists")
		return
	}
	h.broadcast(r.Context(), websocket.NewMessage("list", "reordered", "", nil))
	w.WriteHeader(http.StatusNoContent)
}
