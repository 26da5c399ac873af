package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
	"github.com/dukerupert/indivisible/internal/websocket"
)

const DefaultInterval = 60 * time.Second

// RunResult summarizes one pass over the due reminders.
type RunResult struct {
	Processed  int `json:"processed"`
	PushSent   int `json:"push_sent"`
	PushFailed int `json:"push_failed"`
}

// Scheduler periodically delivers due reminders: an in-app notification for
// the reminded member plus a web push to each of their subscriptions.
type Scheduler struct {
	mu            sync.RWMutex
	sender        Sender
	reminders     *store.ReminderStore
	notifications *store.NotificationStore
	push          *store.PushStore
	tasks         *store.TaskStore
	hub           *websocket.Hub
	logger        *slog.Logger
	interval      time.Duration
	now           func() time.Time
	cancel        context.CancelFunc
	done          chan struct{}
}

// NewScheduler creates a reminder scheduler. sender may be nil, in which case
// only in-app notifications are written.
func NewScheduler(sender Sender, reminders *store.ReminderStore, notifications *store.NotificationStore,
	pushStore *store.PushStore, tasks *store.TaskStore, hub *websocket.Hub, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		sender:        sender,
		reminders:     reminders,
		notifications: notifications,
		push:          pushStore,
		tasks:         tasks,
		hub:           hub,
		logger:        logger,
		interval:      interval,
		now:           time.Now,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				res, err := s.RunOnce(ctx)
				if err != nil {
					s.logger.Error("reminder pass failed", "error", err)
					continue
				}
				if res.Processed > 0 {
					s.logger.Info("reminders delivered", "processed", res.Processed, "push_sent", res.PushSent, "push_failed", res.PushFailed)
				}
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// RunOnce processes every unsent reminder whose time has come. A reminder is
// marked sent once its notification is written, whatever happens to the push
// deliveries.
func (s *Scheduler) RunOnce(ctx context.Context) (RunResult, error) {
	var res RunResult
	due, err := s.reminders.ListDue(ctx, s.now())
	if err != nil {
		return res, err
	}

	for _, r := range due {
		if err := s.deliver(ctx, r, &res); err != nil {
			s.logger.Error("deliver reminder", "reminder_id", r.ID, "error", err)
			continue
		}
		if err := s.reminders.MarkSent(ctx, r.ID); err != nil {
			s.logger.Error("mark reminder sent", "reminder_id", r.ID, "error", err)
			continue
		}
		res.Processed++
	}
	return res, nil
}

func (s *Scheduler) deliver(ctx context.Context, r model.Reminder, res *RunResult) error {
	title := r.TaskTitle
	if title == "" {
		title = "a task"
	}

	taskID := r.TaskID
	n, err := s.notifications.Create(ctx, r.UserID, model.NotifTypeReminder, "Reminder", "Reminder for: "+title, &taskID)
	if err != nil {
		return err
	}
	if s.hub != nil {
		if hid, err := s.tasks.HouseholdOf(ctx, r.TaskID); err == nil && hid != "" {
			s.hub.Broadcast(hid, websocket.NewMessage("notification", "created", n.ID, map[string]any{"user_id": r.UserID}))
		}
	}

	if s.sender == nil {
		return nil
	}
	subs, err := s.push.ListByUser(ctx, r.UserID)
	if err != nil {
		s.logger.Warn("list push subscriptions", "user_id", r.UserID, "error", err)
		return nil
	}
	payload := Payload{
		Title: "Indivisible",
		Body:  "Reminder: " + title,
		Tag:   fmt.Sprintf("reminder-%s", r.ID),
		URL:   fmt.Sprintf("/tasks/%s", r.TaskID),
	}
	for _, sub := range subs {
		err := s.sender.Send(ctx, sub, payload)
		if err == nil {
			res.PushSent++
			continue
		}
		res.PushFailed++
		if errors.Is(err, ErrExpired) {
			if derr := s.push.DeleteByEndpoint(ctx, sub.Endpoint); derr != nil {
				s.logger.Warn("delete expired subscription", "endpoint", sub.Endpoint, "error", derr)
			}
			continue
		}
		s.logger.Warn("push failed", "subscription_id", sub.ID, "error", err)
	}
	return nil
}
