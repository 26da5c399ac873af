package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/store"
	"github.com/dukerupert/indivisible/internal/task"
	"github.com/dukerupert/indivisible/internal/websocket"
)

const (
	KindCreateTask     = "create_task"
	KindCompleteTask   = "complete_task"
	KindUpdateTask     = "update_task"
	KindDeleteTask     = "delete_task"
	KindCreateReminder = "create_reminder"
)

// assistantSortOrder places assistant-created tasks at the end of a list.
const assistantSortOrder = 999

// ActionResult reports the outcome of one directive.
type ActionResult struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	TaskID  string `json:"taskId,omitempty"`
	Error   string `json:"error,omitempty"`
}

var errTaskNotFound = errors.New("task not found")

// Executor applies directives one at a time. Each action commits on its own
// and a failure is reported in its result without affecting the others.
type Executor struct {
	stores Stores
	hub    *websocket.Hub
	logger *slog.Logger
	now    func() time.Time
}

func NewExecutor(stores Stores, hub *websocket.Hub, logger *slog.Logger) *Executor {
	return &Executor{stores: stores, hub: hub, logger: logger, now: time.Now}
}

func (e *Executor) broadcast(householdID string, msg websocket.Message) {
	if e.hub != nil {
		e.hub.Broadcast(householdID, msg)
	}
}

// Execute returns one result per action, in input order.
func (e *Executor) Execute(ctx context.Context, actions []Action, hc *HouseholdContext) []ActionResult {
	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		res := ActionResult{Type: a.Type}
		var err error
		switch a.Type {
		case KindCreateTask:
			res.TaskID, err = e.createTask(ctx, a.Payload, hc)
		case KindCompleteTask:
			res.TaskID, err = e.completeTask(ctx, a.Payload, hc)
		case KindUpdateTask:
			res.TaskID, err = e.updateTask(ctx, a.Payload, hc)
		case KindDeleteTask:
			res.TaskID, err = e.deleteTask(ctx, a.Payload, hc)
		case KindCreateReminder:
			res.TaskID, err = e.createReminder(ctx, a.Payload, hc)
		default:
			err = fmt.Errorf("unknown action type: %s", a.Type)
		}

		if err != nil {
			res.Error = err.Error()
			e.logger.Info("action failed", "type", a.Type, "household_id", hc.Household.ID, "error", err)
		} else {
			res.Success = true
		}
		results = append(results, res)
	}
	return results
}

type createTaskPayload struct {
	Title       string  `json:"title"`
	ListID      string  `json:"list_id"`
	AssignedTo  *string `json:"assigned_to"`
	Priority    *string `json:"priority"`
	Urgency     *string `json:"urgency"`
	DueDate     *string `json:"due_date"`
	DueTime     *string `json:"due_time"`
	Description *string `json:"description"`
}

type taskRefPayload struct {
	TaskID string `json:"task_id"`
}

type updateTaskPayload struct {
	TaskID  string         `json:"task_id"`
	Updates map[string]any `json:"updates"`
}

type createReminderPayload struct {
	TaskID   string `json:"task_id"`
	UserID   string `json:"user_id"`
	RemindAt string `json:"remind_at"`
}

func decodePayload(kind string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid %s payload: %w", kind, err)
	}
	return nil
}

// optional normalizes the placeholders models tend to emit for absent values.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}

func (e *Executor) createTask(ctx context.Context, raw json.RawMessage, hc *HouseholdContext) (string, error) {
	var p createTaskPayload
	if err := decodePayload(KindCreateTask, raw, &p); err != nil {
		return "", err
	}
	p.Title = strings.TrimSpace(p.Title)
	p.ListID = strings.TrimSpace(p.ListID)
	if p.Title == "" || p.ListID == "" {
		return "", errors.New("missing title or list_id")
	}

	if err := e.checkList(ctx, p.ListID, hc); err != nil {
		return "", err
	}
	assignee := optional(p.AssignedTo)
	if assignee != nil && hc.Member(*assignee) == nil {
		return "", fmt.Errorf("assignee %s is not a household member", *assignee)
	}

	priority := model.PriorityNone
	if v := optional(p.Priority); v != nil {
		priority = model.Priority(*v)
		if !priority.Valid() {
			return "", fmt.Errorf("invalid priority: %s", *v)
		}
	}
	urgency := model.UrgencyNone
	if v := optional(p.Urgency); v != nil {
		urgency = model.Urgency(*v)
		if !urgency.Valid() {
			return "", fmt.Errorf("invalid urgency: %s", *v)
		}
	}
	dueDate := optional(p.DueDate)
	if dueDate != nil {
		if _, err := time.Parse(model.DateLayout, *dueDate); err != nil {
			return "", fmt.Errorf("invalid due_date: %s", *dueDate)
		}
	}
	dueTime := optional(p.DueTime)
	if dueTime != nil {
		t, err := model.NormalizeDueTime(*dueTime)
		if err != nil {
			return "", fmt.Errorf("invalid due_time: %s", *dueTime)
		}
		dueTime = &t
	}
	description := ""
	if p.Description != nil {
		description = *p.Description
	}

	t, err := e.stores.Tasks.Create(ctx, model.NewTask{
		ListID:      p.ListID,
		Title:       p.Title,
		Description: &description,
		Priority:    priority,
		Urgency:     urgency,
		DueDate:     dueDate,
		DueTime:     dueTime,
		AssignedTo:  assignee,
		SortOrder:   assistantSortOrder,
		CreatedBy:   hc.CurrentUserID,
	})
	if err != nil {
		return "", err
	}

	e.logActivity(ctx, hc, &t.ID, &t.ListID, model.ActionTaskCreated, map[string]any{"title": t.Title, "via": "assistant"})
	e.broadcast(hc.Household.ID, websocket.NewMessage("task", "created", t.ID, map[string]any{"list_id": t.ListID}))
	return t.ID, nil
}

func (e *Executor) completeTask(ctx context.Context, raw json.RawMessage, hc *HouseholdContext) (string, error) {
	var p taskRefPayload
	if err := decodePayload(KindCompleteTask, raw, &p); err != nil {
		return "", err
	}
	if p.TaskID == "" {
		return "", errors.New("missing task_id")
	}
	if err := e.checkTask(ctx, p.TaskID, hc); err != nil {
		return p.TaskID, err
	}
	prev, err := e.stores.Tasks.GetByID(ctx, p.TaskID)
	if err != nil {
		return p.TaskID, err
	}
	if prev == nil {
		return p.TaskID, errTaskNotFound
	}

	if err := e.stores.Tasks.Complete(ctx, p.TaskID, hc.CurrentUserID, e.now()); err != nil {
		return p.TaskID, taskErr(err)
	}
	e.logActivity(ctx, hc, &p.TaskID, nil, model.ActionTaskCompleted, map[string]any{"via": "assistant"})
	e.broadcast(hc.Household.ID, websocket.NewMessage("task", "completed", p.TaskID, nil))

	if prev.Status != model.StatusCompleted {
		e.spawnFollowUp(ctx, *prev, hc)
	}
	return p.TaskID, nil
}

// spawnFollowUp creates the next instance of a recurring task. Failures are
// logged; the completion itself has already succeeded.
func (e *Executor) spawnFollowUp(ctx context.Context, done model.Task, hc *HouseholdContext) {
	nt, err := task.FollowUp(done, hc.CurrentUserID, e.now())
	if err != nil {
		e.logger.Warn("skipping recurrence", "task_id", done.ID, "error", err)
		return
	}
	if nt == nil {
		return
	}
	next, err := e.stores.Tasks.Create(ctx, *nt)
	if err != nil {
		e.logger.Error("create recurring task", "task_id", done.ID, "error", err)
		return
	}
	e.logActivity(ctx, hc, &next.ID, &next.ListID, model.ActionTaskCreated, map[string]any{"title": next.Title, "via": "recurrence"})
	e.broadcast(hc.Household.ID, websocket.NewMessage("task", "created", next.ID, map[string]any{"list_id": next.ListID}))
}

func (e *Executor) updateTask(ctx context.Context, raw json.RawMessage, hc *HouseholdContext) (string, error) {
	var p updateTaskPayload
	if err := decodePayload(KindUpdateTask, raw, &p); err != nil {
		return "", err
	}
	if p.TaskID == "" {
		return "", errors.New("missing task_id")
	}
	if len(p.Updates) == 0 {
		return p.TaskID, errors.New("missing updates")
	}
	if err := e.checkTask(ctx, p.TaskID, hc); err != nil {
		return p.TaskID, err
	}
	if listID, ok := p.Updates["list_id"].(string); ok {
		if err := e.checkList(ctx, listID, hc); err != nil {
			return p.TaskID, err
		}
	}
	if assignee, ok := p.Updates["assigned_to"].(string); ok && assignee != "" && hc.Member(assignee) == nil {
		return p.TaskID, fmt.Errorf("assignee %s is not a household member", assignee)
	}

	if _, err := e.stores.Tasks.UpdateBy(ctx, p.TaskID, hc.CurrentUserID, p.Updates); err != nil {
		return p.TaskID, taskErr(err)
	}

	details := make(map[string]any, len(p.Updates)+1)
	for k, v := range p.Updates {
		details[k] = v
	}
	details["via"] = "assistant"
	e.logActivity(ctx, hc, &p.TaskID, nil, model.ActionTaskUpdated, details)
	e.broadcast(hc.Household.ID, websocket.NewMessage("task", "updated", p.TaskID, nil))
	return p.TaskID, nil
}

func (e *Executor) deleteTask(ctx context.Context, raw json.RawMessage, hc *HouseholdContext) (string, error) {
	var p taskRefPayload
	if err := decodePayload(KindDeleteTask, raw, &p); err != nil {
		return "", err
	}
	if p.TaskID == "" {
		return "", errors.New("missing task_id")
	}
	if err := e.checkTask(ctx, p.TaskID, hc); err != nil {
		return p.TaskID, err
	}

	if err := e.stores.Tasks.Delete(ctx, p.TaskID); err != nil {
		return p.TaskID, taskErr(err)
	}
	e.logActivity(ctx, hc, &p.TaskID, nil, model.ActionTaskDeleted, map[string]any{"via": "assistant"})
	e.broadcast(hc.Household.ID, websocket.NewMessage("task", "deleted", p.TaskID, nil))
	return p.TaskID, nil
}

var remindAtLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

func parseRemindAt(s string) (time.Time, error) {
	for _, layout := range remindAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid remind_at: %s", s)
}

// createReminder writes no activity entry; reminders are not part of the
// household timeline.
func (e *Executor) createReminder(ctx context.Context, raw json.RawMessage, hc *HouseholdContext) (string, error) {
	var p createReminderPayload
	if err := decodePayload(KindCreateReminder, raw, &p); err != nil {
		return "", err
	}
	if p.TaskID == "" || p.UserID == "" || p.RemindAt == "" {
		return p.TaskID, errors.New("missing task_id, user_id or remind_at")
	}
	remindAt, err := parseRemindAt(strings.TrimSpace(p.RemindAt))
	if err != nil {
		return p.TaskID, err
	}
	if hc.Member(p.UserID) == nil {
		return p.TaskID, fmt.Errorf("user %s is not a household member", p.UserID)
	}
	if err := e.checkTask(ctx, p.TaskID, hc); err != nil {
		return p.TaskID, err
	}

	r, err := e.stores.Reminders.Create(ctx, p.TaskID, p.UserID, remindAt, model.ReminderInApp)
	if err != nil {
		return p.TaskID, err
	}
	e.broadcast(hc.Household.ID, websocket.NewMessage("reminder", "created", r.ID, map[string]any{"task_id": p.TaskID}))
	return p.TaskID, nil
}

// checkTask confirms the task exists within the invoking household.
func (e *Executor) checkTask(ctx context.Context, taskID string, hc *HouseholdContext) error {
	householdID, err := e.stores.Tasks.HouseholdOf(ctx, taskID)
	if err != nil {
		return err
	}
	if householdID != hc.Household.ID {
		return errTaskNotFound
	}
	return nil
}

func (e *Executor) checkList(ctx context.Context, listID string, hc *HouseholdContext) error {
	l, err := e.stores.Lists.GetByID(ctx, listID)
	if err != nil {
		return err
	}
	if l == nil || l.HouseholdID != hc.Household.ID {
		return fmt.Errorf("list not found: %s", listID)
	}
	return nil
}

func taskErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errTaskNotFound
	}
	return err
}

// logActivity appends to the timeline. The mutation it describes has already
// committed, so a failure here is logged rather than reported.
func (e *Executor) logActivity(ctx context.Context, hc *HouseholdContext, taskID, listID *string, action model.ActivityAction, details map[string]any) {
	_, err := e.stores.Activity.Create(ctx, model.NewActivity{
		HouseholdID: hc.Household.ID,
		TaskID:      taskID,
		ListID:      listID,
		UserID:      hc.CurrentUserID,
		Action:      action,
		Details:     details,
	})
	if err != nil {
		e.logger.Error("write activity", "action", action, "household_id", hc.Household.ID, "error", err)
	}
}
