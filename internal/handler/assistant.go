package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/indivisible/internal/assistant"
	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/store"
)

const maxToneLength = 50

type AssistantHandler struct {
	responder   Responder
	preferences *store.PreferencesStore
	logger      *slog.Logger
}

func NewAssistantHandler(responder Responder, ps *store.PreferencesStore, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{responder: responder, preferences: ps, logger: logger}
}

// Respond handles POST /api/assistant/respond. The request ids must name the
// authenticated member and household.
func (h *AssistantHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var req assistant.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	ac, _ := auth.FromContext(r.Context())
	if (req.HouseholdID != "" && req.HouseholdID != ac.HouseholdID) || (req.UserID != "" && req.UserID != ac.UserID) {
		writeError(w, http.StatusForbidden, "request does not match the authenticated member")
		return
	}

	resp, err := h.responder.Respond(r.Context(), req)
	if errors.Is(err, assistant.ErrInvalidRequest) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("assistant respond", "household_id", req.HouseholdID, "error", err)
		writeError(w, http.StatusInternalServerError, "assistant failed to respond")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetPreferences handles GET /api/assistant/preferences
func (h *AssistantHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.preferences.GetOrCreate(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.logger.Error("get preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

type preferencesRequest struct {
	AgentTone          *string `json:"agent_tone"`
	ProactiveReminders *bool   `json:"proactive_reminders"`
}

// UpdatePreferences handles PUT /api/assistant/preferences. Omitted fields
// keep their current values.
func (h *AssistantHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	userID := auth.UserID(r.Context())
	current, err := h.preferences.GetOrCreate(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}

	tone, proactive := current.AgentTone, current.ProactiveReminders
	if req.AgentTone != nil {
		tone = strings.TrimSpace(*req.AgentTone)
		if tone == "" || len(tone) > maxToneLength {
			writeError(w, http.StatusBadRequest, "agent_tone must be 1-50 characters")
			return
		}
	}
	if req.ProactiveReminders != nil {
		proactive = *req.ProactiveReminders
	}

	prefs, err := h.preferences.Update(r.Context(), userID, tone, proactive)
	if err != nil {
		h.logger.Error("update preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
