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

type HouseholdHandler struct {
	households *store.HouseholdStore
	profiles   *store.ProfileStore
	broadcaster
	activityLogger
	logger *slog.Logger
}

func NewHouseholdHandler(hs *store.HouseholdStore, ps *store.ProfileStore, as *store.ActivityStore, hub *websocket.Hub, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{
		households:     hs,
		profiles:       ps,
		broadcaster:    broadcaster{hub},
		activityLogger: activityLogger{as, logger},
		logger:         logger,
	}
}

type meResponse struct {
	Profile   *model.Profile   `json:"profile"`
	Household *model.Household `json:"household"`
}

// Me handles GET /api/me
func (h *HouseholdHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.profiles.GetByID(r.Context(), auth.UserID(r.Context()))
	if err != nil || p == nil {
		writeError(w, http.StatusInternalServerError, "failed to get profile")
		return
	}
	resp := meResponse{Profile: p}
	if p.HouseholdID != nil {
		resp.Household, err = h.households.GetByID(r.Context(), *p.HouseholdID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get household")
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type profileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarColor string `json:"avatar_color"`
}

// UpdateMe handles PUT /api/me
func (h *HouseholdHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "display_name is required")
		return
	}

	if req.AvatarColor == "" {
		if cur, err := h.profiles.GetByID(r.Context(), auth.UserID(r.Context())); err == nil && cur != nil {
			req.AvatarColor = cur.AvatarColor
		}
	}

	p, err := h.profiles.UpdateDisplayName(r.Context(), auth.UserID(r.Context()), req.DisplayName, req.AvatarColor)
	if err != nil {
		h.logger.Error("update profile", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update profile")
		return
	}
	h.broadcast(r.Context(), websocket.NewMessage("member", "updated", p.ID, nil))
	writeJSON(w, http.StatusOK, p)
}

type householdRequest struct {
	Name       string `json:"name"`
	InviteCode string `json:"invite_code"`
}

// Create handles POST /api/households. The caller becomes its first member.
func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	if auth.InHousehold(r.Context()) {
		writeError(w, http.StatusConflict, "already in a household")
		return
	}
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hh, err := h.households.Create(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	if _, err := h.profiles.SetHousehold(r.Context(), auth.UserID(r.Context()), &hh.ID); err != nil {
		h.logger.Error("join new household", "household_id", hh.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	writeJSON(w, http.StatusCreated, hh)
}

// Rename handles PUT /api/households
func (h *HouseholdHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	hh, err := h.households.Rename(r.Context(), auth.HouseholdID(r.Context()), req.Name)
	if err != nil {
		h.logger.Error("rename household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rename household")
		return
	}
	h.broadcast(r.Context(), websocket.NewMessage("household", "updated", hh.ID, nil))
	writeJSON(w, http.StatusOK, hh)
}

// Join handles POST /api/households/join
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	if auth.InHousehold(r.Context()) {
		writeError(w, http.StatusConflict, "already in a household")
		return
	}
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	code := strings.ToUpper(strings.TrimSpace(req.InviteCode))
	if code == "" {
		writeError(w, http.StatusBadRequest, "invite_code is required")
		return
	}

	hh, err := h.households.GetByInviteCode(r.Context(), code)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to look up invite code")
		return
	}
	if hh == nil {
		writeError(w, http.StatusNotFound, "invalid invite code")
		return
	}
	p, err := h.profiles.SetHousehold(r.Context(), auth.UserID(r.Context()), &hh.ID)
	if err != nil {
		h.logger.Error("join household", "household_id", hh.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	ac.HouseholdID = hh.ID
	ctx := auth.WithAuth(r.Context(), ac)
	h.log(ctx, nil, nil, model.ActionMemberJoined, map[string]any{"display_name": p.DisplayName})
	h.broadcast(ctx, websocket.NewMessage("member", "joined", p.ID, nil))

	writeJSON(w, http.StatusOK, hh)
}

// Members handles GET /api/members
func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	members, err := h.profiles.ListByHousehold(r.Context(), auth.HouseholdID(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Profile{}
	}
	writeJSON(w, http.StatusOK, members)
}
