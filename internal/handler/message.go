package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/indivisible/internal/assistant"
	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
	"github.com/dukerupert/indivisible/internal/websocket"
)

const (
	messageLimit     = 50
	maxMessageLimit  = 200
	maxMessageLength = 4000

	// DefaultRespondTimeout bounds a background assistant invocation.
	DefaultRespondTimeout = 90 * time.Second
)

// Responder runs the assistant for a chat message.
type Responder interface {
	Respond(ctx context.Context, req assistant.Request) (*assistant.Response, error)
}

type MessageHandler struct {
	messages  *store.MessageStore
	responder Responder
	broadcaster
	logger *slog.Logger

	respondTimeout time.Duration
	// spawn runs the background assistant call. Tests replace it to run
	// synchronously.
	spawn func(func())
}

// NewMessageHandler wires chat endpoints. A nil responder disables the
// automatic assistant reply.
func NewMessageHandler(ms *store.MessageStore, responder Responder, hub *websocket.Hub, logger *slog.Logger) *MessageHandler {
	return &MessageHandler{
		messages:       ms,
		responder:      responder,
		broadcaster:    broadcaster{hub},
		logger:         logger,
		respondTimeout: DefaultRespondTimeout,
		spawn:          func(f func()) { go f() },
	}
}

// List handles GET /api/messages?limit=
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.messages.ListByHousehold(r.Context(), auth.HouseholdID(r.Context()),
		queryInt(r, "limit", messageLimit, maxMessageLimit))
	if err != nil {
		h.logger.Error("list messages", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type createMessageRequest struct {
	Content string `json:"content"`
}

type createMessageResponse struct {
	Message          *model.Message `json:"message"`
	AssistantPending bool           `json:"assistant_pending"`
}

// Create handles POST /api/messages. Messages addressed to the assistant
// trigger a reply in the background; it arrives over the websocket feed.
func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}
	if len(content) > maxMessageLength {
		writeError(w, http.StatusBadRequest, "message is too long")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	msg, err := h.messages.Create(r.Context(), model.NewMessage{
		HouseholdID: ac.HouseholdID,
		UserID:      &ac.UserID,
		Role:        model.RoleUser,
		Content:     content,
	})
	if err != nil {
		h.logger.Error("create message", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}
	h.broadcast(r.Context(), websocket.NewMessage("message", "created", msg.ID, nil))

	pending := h.responder != nil && assistant.ShouldRespond(content)
	if pending {
		h.triggerAssistant(r.Context(), assistant.Request{
			HouseholdID:    ac.HouseholdID,
			UserID:         ac.UserID,
			MessageContent: content,
		})
	}
	writeJSON(w, http.StatusCreated, createMessageResponse{Message: msg, AssistantPending: pending})
}

func (h *MessageHandler) triggerAssistant(parent context.Context, req assistant.Request) {
	ctx := context.WithoutCancel(parent)
	h.spawn(func() {
		ctx, cancel := context.WithTimeout(ctx, h.respondTimeout)
		defer cancel()
		resp, err := h.responder.Respond(ctx, req)
		if err != nil {
			h.logger.Error("assistant reply", "household_id", req.HouseholdID, "error", err)
			return
		}
		if resp.Skipped != "" {
			h.logger.Debug("assistant skipped", "household_id", req.HouseholdID, "reason", resp.Skipped)
		}
	})
}

// Delete handles DELETE /api/messages/{id}. Members can only delete their
// own messages.
func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	msg, err := h.messages.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get message")
		return
	}
	if msg == nil || msg.HouseholdID != ac.HouseholdID {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}
	if msg.UserID == nil || *msg.UserID != ac.UserID {
		writeError(w, http.StatusForbidden, "you can only delete your own messages")
		return
	}

	if err := h.messages.Delete(r.Context(), msg.ID); err != nil && !isNotFound(err) {
		h.logger.Error("delete message", "id", msg.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	h.broadcast(r.Context(), websocket.NewMessage("message", "deleted", msg.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}

type markReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// MarkRead handles POST /api/messages/read with either {"ids": [...]} or
// {"all": true}.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ac, _ := auth.FromContext(r.Context())

	var err error
	switch {
	case req.All:
		err = h.messages.MarkAllRead(r.Context(), ac.HouseholdID, ac.UserID)
	case len(req.IDs) > 0:
		ids, lerr := h.ownIDs(r.Context(), ac.HouseholdID, req.IDs)
		if lerr != nil {
			err = lerr
			break
		}
		err = h.messages.MarkRead(r.Context(), ac.UserID, ids)
	default:
		writeError(w, http.StatusBadRequest, "ids or all is required")
		return
	}
	if err != nil {
		h.logger.Error("mark messages read", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to mark messages read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownIDs drops ids of messages outside the household.
func (h *MessageHandler) ownIDs(ctx context.Context, householdID string, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		m, err := h.messages.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if m != nil && m.HouseholdID == householdID {
			out = append(out, id)
		}
	}
	return out, nil
}

// UnreadCount handles GET /api/messages/unread-count
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	n, err := h.messages.UnreadAssistantCount(r.Context(), ac.HouseholdID, ac.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
