// Package handler implements the JSON HTTP API. Every handler assumes the
// auth middleware has populated the request's AuthContext.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
	"github.com/dukerupert/indivisible/internal/websocket"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// queryInt parses an optional positive integer query parameter, clamped to
// max.
func queryInt(r *http.Request, key string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

type broadcaster struct {
	hub *websocket.Hub
}

func (b broadcaster) broadcast(ctx context.Context, msg websocket.Message) {
	if b.hub != nil {
		b.hub.Broadcast(auth.HouseholdID(ctx), msg)
	}
}

// activityLogger appends timeline entries for the request's member. The
// mutation has already committed when it is called, so failures are logged.
type activityLogger struct {
	activity *store.ActivityStore
	logger   *slog.Logger
}

func (a activityLogger) log(ctx context.Context, taskID, listID *string, action model.ActivityAction, details map[string]any) {
	ac, _ := auth.FromContext(ctx)
	_, err := a.activity.Create(ctx, model.NewActivity{
		HouseholdID: ac.HouseholdID,
		TaskID:      taskID,
		ListID:      listID,
		UserID:      ac.UserID,
		Action:      action,
		Details:     details,
	})
	if err != nil {
		a.logger.Error("write activity", "action", action, "household_id", ac.HouseholdID, "error", err)
	}
}

// householdList loads a list and reports whether it belongs to the request's
// household. Writes the error response itself when it returns nil.
func householdList(w http.ResponseWriter, r *http.Request, lists *store.ListStore, id string) *model.List {
	l, err := lists.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get list")
		return nil
	}
	if l == nil || l.HouseholdID != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "list not found")
		return nil
	}
	return l
}

// householdTask is householdList for tasks.
func householdTask(w http.ResponseWriter, r *http.Request, tasks *store.TaskStore, id string) *model.Task {
	hid, err := tasks.HouseholdOf(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil
	}
	if hid == "" || hid != auth.HouseholdID(r.Context()) {
		writeError(w, http.StatusNotFound, "task not found")
		return nil
	}
	t, err := tasks.GetByID(r.Context(), id)
	if err != nil || t == nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return nil
	}
	return t
}

// isMember reports whether userID belongs to the request's household.
func isMember(ctx context.Context, profiles *store.ProfileStore, userID string) (bool, error) {
	p, err := profiles.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return p != nil && p.HouseholdID != nil && *p.HouseholdID == auth.HouseholdID(ctx), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
