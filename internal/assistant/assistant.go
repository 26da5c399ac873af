// Package assistant runs the household chat assistant: it snapshots the
// household, asks the completion model for a reply, executes the directives
// embedded in that reply and stores the visible text as a chat message.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/websocket"
)

// ErrInvalidRequest is returned when a Request is missing a required field.
var ErrInvalidRequest = errors.New("invalid request")

const (
	DefaultCooldown = 5 * time.Second

	// SkippedRateLimited is reported when the household heard from the
	// assistant within the cooldown.
	SkippedRateLimited = "rate_limited"

	fallbackReply = "I'm not sure how to help with that. Try asking me about your tasks!"
	chatIntent    = "chat"
)

type Request struct {
	HouseholdID    string `json:"household_id"`
	UserID         string `json:"user_id"`
	MessageContent string `json:"message_content"`
}

func (r Request) validate() error {
	var missing []string
	if strings.TrimSpace(r.HouseholdID) == "" {
		missing = append(missing, "household_id")
	}
	if strings.TrimSpace(r.UserID) == "" {
		missing = append(missing, "user_id")
	}
	if strings.TrimSpace(r.MessageContent) == "" {
		missing = append(missing, "message_content")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

type Response struct {
	Message         *model.Message `json:"message"`
	ActionsExecuted []ActionResult `json:"actions_executed"`
	Skipped         string         `json:"skipped,omitempty"`
}

type Options struct {
	// Cooldown is the minimum age of the latest assistant message before
	// the assistant answers again. Zero means DefaultCooldown.
	Cooldown time.Duration

	// SerializeHousehold runs at most one invocation per household at a time
	// within this process, so the cooldown check cannot be raced.
	SerializeHousehold bool
}

type Service struct {
	stores    Stores
	gatherer  *Gatherer
	executor  *Executor
	completer Completer
	hub       *websocket.Hub
	logger    *slog.Logger
	opts      Options
	now       func() time.Time

	locks sync.Map // household id -> *sync.Mutex
}

func NewService(stores Stores, completer Completer, hub *websocket.Hub, logger *slog.Logger, opts Options) *Service {
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	return &Service{
		stores:    stores,
		gatherer:  NewGatherer(stores),
		executor:  NewExecutor(stores, hub, logger),
		completer: completer,
		hub:       hub,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Service) broadcast(householdID string, msg websocket.Message) {
	if s.hub != nil {
		s.hub.Broadcast(householdID, msg)
	}
}

func (s *Service) lock(householdID string) func() {
	if !s.opts.SerializeHousehold {
		return func() {}
	}
	v, _ := s.locks.LoadOrStore(householdID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Respond runs one assistant invocation for a household. The reply message is
// written last, so a failure at any earlier step leaves no assistant message
// behind. Directive failures are reported per action and never fail the call.
func (s *Service) Respond(ctx context.Context, req Request) (*Response, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	start := s.now()
	log := s.logger.With("household_id", req.HouseholdID, "user_id", req.UserID)

	defer s.lock(req.HouseholdID)()

	latest, err := s.stores.Messages.LatestByRole(ctx, req.HouseholdID, model.RoleAssistant)
	if err != nil {
		return nil, fmt.Errorf("rate check: %w", err)
	}
	if latest != nil && s.now().Sub(latest.CreatedAt) < s.opts.Cooldown {
		log.Debug("assistant rate limited", "last_reply", latest.CreatedAt)
		return &Response{ActionsExecuted: []ActionResult{}, Skipped: SkippedRateLimited}, nil
	}

	if err := s.welcomeIfFirstContact(ctx, req); err != nil {
		return nil, err
	}

	hc, err := s.gatherer.Gather(ctx, req.HouseholdID, req.UserID)
	if err != nil {
		return nil, err
	}
	log.Debug("context gathered", "members", len(hc.Members), "lists", len(hc.Lists), "tasks", len(hc.Tasks))

	history, err := s.stores.Messages.ListRecent(ctx, req.HouseholdID, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	system := BuildSystemPrompt(hc, s.now())
	turns := withCurrentMessage(BuildConversation(history, hc), history, req, hc)

	reply, err := s.completer.Complete(ctx, system, turns)
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}
	log.Debug("completion received", "turns", len(turns), "chars", len(reply))

	clean, actions, malformed := extract(reply)
	for _, span := range malformed {
		log.Warn("dropping malformed directive", "directive", span)
	}

	results := s.executor.Execute(ctx, actions, hc)

	if clean == "" {
		clean = fallbackReply
	}
	nm := model.NewMessage{
		HouseholdID: req.HouseholdID,
		Role:        model.RoleAssistant,
		Content:     clean,
		Intent:      strPtr(chatIntent),
	}
	if len(actions) > 0 {
		nm.Intent = strPtr(actions[0].Type)
	}
	for _, r := range results {
		if r.Success && r.TaskID != "" {
			nm.RelatedTaskID = strPtr(r.TaskID)
			break
		}
	}

	msg, err := s.stores.Messages.Create(ctx, nm)
	if err != nil {
		return nil, fmt.Errorf("persist reply: %w", err)
	}
	s.broadcast(req.HouseholdID, websocket.NewMessage("message", "created", msg.ID, nil))

	log.Info("assistant replied",
		"message_id", msg.ID,
		"intent", *msg.Intent,
		"actions", len(results),
		"malformed", len(malformed),
		"duration", s.now().Sub(start),
	)
	return &Response{Message: msg, ActionsExecuted: results}, nil
}

// welcomeIfFirstContact stores the welcome message when the household has
// never heard from the assistant.
func (s *Service) welcomeIfFirstContact(ctx context.Context, req Request) error {
	n, err := s.stores.Messages.CountByRole(ctx, req.HouseholdID, model.RoleAssistant)
	if err != nil {
		return fmt.Errorf("first contact check: %w", err)
	}
	if n > 0 {
		return nil
	}

	members, err := s.stores.Profiles.ListByHousehold(ctx, req.HouseholdID)
	if err != nil {
		return fmt.Errorf("load members: %w", err)
	}
	var current string
	var partners []string
	for _, m := range members {
		if m.ID == req.UserID {
			current = m.DisplayName
		} else {
			partners = append(partners, m.DisplayName)
		}
	}

	msg, err := s.stores.Messages.Create(ctx, model.NewMessage{
		HouseholdID: req.HouseholdID,
		Role:        model.RoleAssistant,
		Content:     WelcomeMessage(current, partners),
		Intent:      strPtr(welcomeIntent),
	})
	if err != nil {
		return fmt.Errorf("persist welcome: %w", err)
	}
	s.broadcast(req.HouseholdID, websocket.NewMessage("message", "created", msg.ID, nil))
	return nil
}

// withCurrentMessage appends the triggering message when it is not the newest
// user message already stored, as happens when a caller invokes the assistant
// without posting to the chat first.
func withCurrentMessage(turns []Turn, newestFirst []model.Message, req Request, hc *HouseholdContext) []Turn {
	content := strings.TrimSpace(req.MessageContent)
	for _, m := range newestFirst {
		if m.Role == model.RoleUser {
			if strings.TrimSpace(m.Content) == content {
				return turns
			}
			break
		}
	}

	speaker := "User"
	if m := hc.Member(req.UserID); m != nil {
		speaker = m.DisplayName
	}
	line := fmt.Sprintf("[%s]: %s", speaker, content)
	if n := len(turns); n > 0 && turns[n-1].Role == model.RoleUser {
		turns[n-1].Content += "\n\n" + line
		return turns
	}
	return append(turns, Turn{Role: model.RoleUser, Content: line})
}

func strPtr(s string) *string { return &s }
