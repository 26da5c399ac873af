package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/indivisible/internal/assistant"
	"github.com/dukerupert/indivisible/internal/config"
	"github.com/dukerupert/indivisible/internal/handler"
	"github.com/dukerupert/indivisible/internal/middleware"
	"github.com/dukerupert/indivisible/internal/push"
	"github.com/dukerupert/indivisible/internal/store"
	ws "github.com/dukerupert/indivisible/internal/websocket"
)

const (
	assistantRateLimit = 10
	messageRateLimit   = 30
	rateWindow         = time.Minute
)

type Server struct {
	db             *sql.DB
	hub            *ws.Hub
	assistant      *assistant.Service
	householdH     *handler.HouseholdHandler
	listH          *handler.ListHandler
	taskH          *handler.TaskHandler
	activityH      *handler.ActivityHandler
	reminderH      *handler.ReminderHandler
	subtaskH       *handler.SubtaskHandler
	messageH       *handler.MessageHandler
	assistantH     *handler.AssistantHandler
	notificationH  *handler.NotificationHandler
	pushH          *handler.PushHandler
	profileStore   *store.ProfileStore
	rateLimiter    *middleware.RateLimiter
	pushScheduler  *push.Scheduler
	jwtSecret      string
	allowedOrigins []string
	logger         *slog.Logger
}

// New wires stores, the assistant pipeline and handlers. completer is the
// model backend used by the assistant.
func New(db *sql.DB, cfg config.Config, completer assistant.Completer, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	stores := assistant.NewStores(db)
	notificationStore := store.NewNotificationStore(db)
	pushStore := store.NewPushStore(db)

	svc := assistant.NewService(stores, completer, hub, logger.With("component", "assistant"), assistant.Options{
		Cooldown:           cfg.AssistantCooldown,
		SerializeHousehold: true,
	})

	// A nil *push.Service must not end up inside the Sender interface.
	var sender push.Sender
	pushCfg := cfg.Push()
	if pushCfg.Enabled() {
		sender = push.NewService(pushCfg)
	}
	sched := push.NewScheduler(sender, stores.Reminders, notificationStore, pushStore, stores.Tasks, hub,
		logger.With("component", "reminders"), cfg.ReminderInterval)

	return &Server{
		db:             db,
		hub:            hub,
		assistant:      svc,
		householdH:     handler.NewHouseholdHandler(stores.Households, stores.Profiles, stores.Activity, hub, logger.With("component", "household")),
		listH:          handler.NewListHandler(stores.Lists, stores.Activity, hub, logger.With("component", "list")),
		taskH:          handler.NewTaskHandler(stores.Tasks, stores.Lists, stores.Profiles, stores.Activity, hub, logger.With("component", "task")),
		activityH:      handler.NewActivityHandler(stores.Activity, stores.Tasks, logger.With("component", "activity")),
		reminderH:      handler.NewReminderHandler(stores.Reminders, stores.Tasks, logger.With("component", "reminder")),
		subtaskH:       handler.NewSubtaskHandler(store.NewSubtaskStore(db), stores.Tasks, hub, logger.With("component", "subtask")),
		messageH:       handler.NewMessageHandler(stores.Messages, svc, hub, logger.With("component", "message")),
		assistantH:     handler.NewAssistantHandler(svc, stores.Preferences, logger.With("component", "assistant_handler")),
		notificationH:  handler.NewNotificationHandler(notificationStore, logger.With("component", "notification")),
		pushH:          handler.NewPushHandler(pushStore, pushCfg.VAPIDPublicKey, logger.With("component", "push_handler")),
		profileStore:   stores.Profiles,
		rateLimiter:    middleware.NewRateLimiter(),
		pushScheduler:  sched,
		jwtSecret:      cfg.JWTSecret,
		allowedOrigins: cfg.AllowedOrigins,
		logger:         logger,
	}
}

// Start launches background work: the reminder scheduler and rate limiter
// cleanup. Both stop when ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	s.pushScheduler.Start(ctx)
	s.rateLimiter.StartCleanup(5*time.Minute, ctx.Done())
}

// Stop waits for the reminder scheduler to finish its current pass.
func (s *Server) Stop() {
	s.pushScheduler.Stop()
}

// Assistant returns the pipeline for callers outside HTTP.
func (s *Server) Assistant() *assistant.Service {
	return s.assistant
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret, s.profileStore, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// rateLimited keys the limiter by route and member so routes do not share a
// budget.
func (s *Server) rateLimited(route string, limit int, h http.HandlerFunc) http.Handler {
	key := func(r *http.Request) string { return route + ":" + middleware.ByUser(r) }
	return middleware.RateLimit(s.rateLimiter, key, limit, rateWindow)(h)
}

// member restricts a route to members of a household.
func member(h http.Handler) http.Handler {
	return middleware.RequireHousehold(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Identity and household membership
	mux.HandleFunc("GET /api/me", s.householdH.Me)
	mux.HandleFunc("PUT /api/me", s.householdH.UpdateMe)
	mux.HandleFunc("POST /api/households", s.householdH.Create)
	mux.HandleFunc("POST /api/households/join", s.householdH.Join)
	mux.Handle("PUT /api/households", member(http.HandlerFunc(s.householdH.Rename)))
	mux.Handle("GET /api/members", member(http.HandlerFunc(s.householdH.Members)))

	// Lists
	mux.Handle("GET /api/lists", member(http.HandlerFunc(s.listH.List)))
	mux.Handle("POST /api/lists", member(http.HandlerFunc(s.listH.Create)))
	mux.Handle("PUT /api/lists/order", member(http.HandlerFunc(s.listH.Reorder)))
	mux.Handle("PUT /api/lists/{id}", member(http.HandlerFunc(s.listH.Update)))
	mux.Handle("DELETE /api/lists/{id}", member(http.HandlerFunc(s.listH.Delete)))

	// Tasks
	mux.Handle("GET /api/lists/{id}/tasks", member(http.HandlerFunc(s.taskH.ListByList)))
	mux.Handle("POST /api/lists/{id}/tasks", member(http.HandlerFunc(s.taskH.Create)))
	mux.Handle("PUT /api/lists/{id}/tasks/order", member(http.HandlerFunc(s.taskH.Reorder)))
	mux.Handle("GET /api/tasks/search", member(http.HandlerFunc(s.taskH.Search)))
	mux.Handle("GET /api/tasks/calendar", member(http.HandlerFunc(s.taskH.Calendar)))
	mux.Handle("GET /api/tasks/{id}", member(http.HandlerFunc(s.taskH.Get)))
	mux.Handle("PUT /api/tasks/{id}", member(http.HandlerFunc(s.taskH.Update)))
	mux.Handle("DELETE /api/tasks/{id}", member(http.HandlerFunc(s.taskH.Delete)))
	mux.Handle("POST /api/tasks/{id}/toggle", member(http.HandlerFunc(s.taskH.Toggle)))
	mux.Handle("GET /api/dashboard", member(http.HandlerFunc(s.taskH.Dashboard)))

	// Activity
	mux.Handle("GET /api/activity", member(http.HandlerFunc(s.activityH.List)))
	mux.Handle("GET /api/tasks/{id}/activity", member(http.HandlerFunc(s.activityH.ListByTask)))

	// Reminders
	mux.Handle("GET /api/tasks/{id}/reminders", member(http.HandlerFunc(s.reminderH.List)))
	mux.Handle("POST /api/tasks/{id}/reminders", member(http.HandlerFunc(s.reminderH.Create)))
	mux.Handle("DELETE /api/reminders/{id}", member(http.HandlerFunc(s.reminderH.Delete)))

	// Subtasks
	mux.Handle("GET /api/tasks/{id}/subtasks", member(http.HandlerFunc(s.subtaskH.List)))
	mux.Handle("POST /api/tasks/{id}/subtasks", member(http.HandlerFunc(s.subtaskH.Create)))
	mux.Handle("PUT /api/subtasks/{id}", member(http.HandlerFunc(s.subtaskH.Update)))
	mux.Handle("POST /api/subtasks/{id}/toggle", member(http.HandlerFunc(s.subtaskH.Toggle)))
	mux.Handle("DELETE /api/subtasks/{id}", member(http.HandlerFunc(s.subtaskH.Delete)))

	// Chat
	mux.Handle("GET /api/messages", member(http.HandlerFunc(s.messageH.List)))
	mux.Handle("POST /api/messages", member(s.rateLimited("messages", messageRateLimit, s.messageH.Create)))
	mux.Handle("DELETE /api/messages/{id}", member(http.HandlerFunc(s.messageH.Delete)))
	mux.Handle("POST /api/messages/read", member(http.HandlerFunc(s.messageH.MarkRead)))
	mux.Handle("GET /api/messages/unread-count", member(http.HandlerFunc(s.messageH.UnreadCount)))

	// Assistant
	mux.Handle("POST /api/assistant/respond", member(s.rateLimited("assistant", assistantRateLimit, s.assistantH.Respond)))
	mux.HandleFunc("GET /api/assistant/preferences", s.assistantH.GetPreferences)
	mux.HandleFunc("PUT /api/assistant/preferences", s.assistantH.UpdatePreferences)

	// Notifications are per member, not per household.
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications/read-all", s.notificationH.MarkAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
	mux.HandleFunc("DELETE /api/notifications/{id}", s.notificationH.Delete)
	mux.HandleFunc("DELETE /api/notifications", s.notificationH.Clear)

	// Push
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.VAPIDKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)

	// WebSocket
	mux.Handle("GET /ws", member(ws.HandleWebSocket(s.hub, s.allowedOrigins)))
}
