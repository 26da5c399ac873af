package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dukerupert/indivisible/internal/auth"
	"github.com/dukerupert/indivisible/internal/model"
	"github.com/dukerupert/indivisible/internal/recurrence"
	"github.com/dukerupert/indivisible/internal/store"
	"github.com/dukerupert/indivisible/internal/task"
	"github.com/dukerupert/indivisible/internal/websocket"
)

const (
	searchLimit      = 20
	maxCalendarRange = 366 * 24 * time.Hour
)

type TaskHandler struct {
	tasks    *store.TaskStore
	lists    *store.ListStore
	profiles *store.ProfileStore
	broadcaster
	activityLogger
	logger *slog.Logger
	now    func() time.Time
}

func NewTaskHandler(ts *store.TaskStore, ls *store.ListStore, ps *store.ProfileStore, as *store.ActivityStore, hub *websocket.Hub, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{
		tasks:          ts,
		lists:          ls,
		profiles:       ps,
		broadcaster:    broadcaster{hub},
		activityLogger: activityLogger{as, logger},
		logger:         logger,
		now:            time.Now,
	}
}

type taskResponse struct {
	*model.Task
	RecurrenceLabel string `json:"recurrence_label,omitempty"`
}

func withLabel(t *model.Task) taskResponse {
	resp := taskResponse{Task: t}
	if t.RecurrenceRule != nil {
		if rule, err := recurrence.Parse(*t.RecurrenceRule); err == nil {
			resp.RecurrenceLabel = rule.Describe()
		}
	}
	return resp
}

// ListByList handles GET /api/lists/{id}/tasks?filter=&sort=
func (h *TaskHandler) ListByList(w http.ResponseWriter, r *http.Request) {
	l := householdList(w, r, h.lists, r.PathValue("id"))
	if l == nil {
		return
	}
	tasks, err := h.tasks.ListByList(r.Context(), l.ID, r.URL.Query().Get("sort"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if f := task.Filter(r.URL.Query().Get("filter")); f != "" {
		tasks = task.Apply(tasks, f, auth.UserID(r.Context()))
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title                string         `json:"title"`
	Description          *string        `json:"description"`
	Priority             model.Priority `json:"priority"`
	Urgency              model.Urgency  `json:"urgency"`
	DueDate              *string        `json:"due_date"`
	DueTime              *string        `json:"due_time"`
	AssignedTo           *string        `json:"assigned_to"`
	SharedResponsibility bool           `json:"shared_responsibility"`
	RecurrenceRule       *string        `json:"recurrence_rule"`
}

func (h *TaskHandler) validateCreate(ctx context.Context, req *createTaskRequest) (string, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return "title is required", nil
	}
	if req.Priority == "" {
		req.Priority = model.PriorityNone
	}
	if req.Urgency == "" {
		req.Urgency = model.UrgencyNone
	}
	if !req.Priority.Valid() {
		return "invalid priority", nil
	}
	if !req.Urgency.Valid() {
		return "invalid urgency", nil
	}
	if req.DueDate != nil {
		if _, err := time.Parse(model.DateLayout, *req.DueDate); err != nil {
			return "due_date must be YYYY-MM-DD", nil
		}
	}
	if req.DueTime != nil && *req.DueTime != "" {
		t, err := model.NormalizeDueTime(*req.DueTime)
		if err != nil {
			return "due_time must be HH:MM", nil
		}
		req.DueTime = &t
	}
	if req.RecurrenceRule != nil && *req.RecurrenceRule != "" {
		if _, err := recurrence.Parse(*req.RecurrenceRule); err != nil {
			return "invalid recurrence_rule: " + err.Error(), nil
		}
	}
	if req.AssignedTo != nil {
		ok, err := isMember(ctx, h.profiles, *req.AssignedTo)
		if err != nil {
			return "", err
		}
		if !ok {
			return "assignee is not a household member", nil
		}
	}
	return "", nil
}

// Create handles POST /api/lists/{id}/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	l := householdList(w, r, h.lists, r.PathValue("id"))
	if l == nil {
		return
	}
	var req createTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.validateCreate(r.Context(), &req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to validate task")
		return
	}
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	order, err := h.tasks.NextSortOrder(r.Context(), l.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}
	t, err := h.tasks.Create(r.Context(), model.NewTask{
		ListID:               l.ID,
		Title:                req.Title,
		Description:          req.Description,
		Priority:             req.Priority,
		Urgency:              req.Urgency,
		DueDate:              req.DueDate,
		DueTime:              req.DueTime,
		AssignedTo:           req.AssignedTo,
		SharedResponsibility: req.SharedResponsibility,
		RecurrenceRule:       req.RecurrenceRule,
		SortOrder:            order,
		CreatedBy:            auth.UserID(r.Context()),
	})
	if err != nil {
		h.logger.Error("create task", "list_id", l.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create task")
		return
	}

	h.log(r.Context(), &t.ID, &t.ListID, model.ActionTaskCreated, map[string]any{"title": t.Title})
	h.broadcast(r.Context(), websocket.NewMessage("task", "created", t.ID, map[string]any{"list_id": t.ListID}))
	writeJSON(w, http.StatusCreated, withLabel(t))
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := householdTask(w, r, h.tasks, r.PathValue("id"))
	if t == nil {
		return
	}
	writeJSON(w, http.StatusOK, withLabel(t))
}

// Update handles PUT /api/tasks/{id} with a partial field set.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	existing := householdTask(w, r, h.tasks, r.PathValue("id"))
	if existing == nil {
		return
	}
	var fields map[string]any
	if !decodeJSON(w, r, &fields) {
		return
	}

	if listID, ok := fields["list_id"].(string); ok {
		l, err := h.lists.GetByID(r.Context(), listID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to get list")
			return
		}
		if l == nil || l.HouseholdID != auth.HouseholdID(r.Context()) {
			writeError(w, http.StatusBadRequest, "list not found")
			return
		}
	}
	if assignee, ok := fields["assigned_to"].(string); ok && assignee != "" {
		member, err := isMember(r.Context(), h.profiles, assignee)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to check assignee")
			return
		}
		if !member {
			writeError(w, http.StatusBadRequest, "assignee is not a household member")
			return
		}
	}
	if rule, ok := fields["recurrence_rule"].(string); ok && rule != "" {
		if _, err := recurrence.Parse(rule); err != nil {
			writeError(w, http.StatusBadRequest, "invalid recurrence_rule: "+err.Error())
			return
		}
	}

	t, err := h.tasks.UpdateBy(r.Context(), existing.ID, auth.UserID(r.Context()), fields)
	if errors.Is(err, store.ErrInvalidUpdate) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("update task", "task_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	h.log(r.Context(), &t.ID, &t.ListID, model.ActionTaskUpdated, fields)
	if a, ok := fields["assigned_to"]; ok {
		action := model.ActionTaskAssigned
		if s, _ := a.(string); s == "" {
			action = model.ActionTaskUnassigned
		}
		h.log(r.Context(), &t.ID, &t.ListID, action, map[string]any{"title": t.Title, "assigned_to": a})
	}
	h.broadcast(r.Context(), websocket.NewMessage("task", "updated", t.ID, map[string]any{"list_id": t.ListID}))
	if existing.Status != model.StatusCompleted && t.Status == model.StatusCompleted {
		h.spawnFollowUp(r.Context(), *t)
	}
	writeJSON(w, http.StatusOK, withLabel(t))
}

// Delete handles DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	existing := householdTask(w, r, h.tasks, r.PathValue("id"))
	if existing == nil {
		return
	}
	if err := h.tasks.Delete(r.Context(), existing.ID); err != nil && !isNotFound(err) {
		h.logger.Error("delete task", "task_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete task")
		return
	}

	h.log(r.Context(), &existing.ID, &existing.ListID, model.ActionTaskDeleted, map[string]any{"title": existing.Title})
	h.broadcast(r.Context(), websocket.NewMessage("task", "deleted", existing.ID, map[string]any{"list_id": existing.ListID}))
	w.WriteHeader(http.StatusNoContent)
}

type toggleResponse struct {
	Task taskResponse `json:"task"`
	Next *model.Task  `json:"next,omitempty"`
}

// Toggle handles POST /api/tasks/{id}/toggle. Completing a recurring task
// creates its next instance.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	existing := householdTask(w, r, h.tasks, r.PathValue("id"))
	if existing == nil {
		return
	}
	ctx := r.Context()
	userID := auth.UserID(ctx)
	completing := existing.Status != model.StatusCompleted

	var err error
	if completing {
		err = h.tasks.Complete(ctx, existing.ID, userID, h.now())
	} else {
		err = h.tasks.Reopen(ctx, existing.ID)
	}
	if err != nil {
		h.logger.Error("toggle task", "task_id", existing.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update task")
		return
	}

	action, verb := model.ActionTaskUncompleted, "uncompleted"
	if completing {
		action, verb = model.ActionTaskCompleted, "completed"
	}
	h.log(ctx, &existing.ID, &existing.ListID, action, map[string]any{"title": existing.Title})
	h.broadcast(ctx, websocket.NewMessage("task", verb, existing.ID, map[string]any{"list_id": existing.ListID}))

	var resp toggleResponse
	if completing {
		resp.Next = h.spawnFollowUp(ctx, *existing)
	}
	t, err := h.tasks.GetByID(ctx, existing.ID)
	if err != nil || t == nil {
		writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}
	resp.Task = withLabel(t)
	writeJSON(w, http.StatusOK, resp)
}

func (h *TaskHandler) spawnFollowUp(ctx context.Context, done model.Task) *model.Task {
	nt, err := task.FollowUp(done, auth.UserID(ctx), h.now())
	if err != nil {
		h.logger.Warn("skipping recurrence", "task_id", done.ID, "error", err)
		return nil
	}
	if nt == nil {
		return nil
	}
	next, err := h.tasks.Create(ctx, *nt)
	if err != nil {
		h.logger.Error("create recurring task", "task_id", done.ID, "error", err)
		return nil
	}
	h.log(ctx, &next.ID, &next.ListID, model.ActionTaskCreated, map[string]any{"title": next.Title, "via": "recurrence"})
	h.broadcast(ctx, websocket.NewMessage("task", "created", next.ID, map[string]any{"list_id": next.ListID}))
	return next
}

// Reorder handles PUT /api/lists/{id}/tasks/order
func (h *TaskHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	l := householdList(w, r, h.lists, r.PathValue("id"))
	if l == nil {
		return
	}
	var req orderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.tasks.Reorder(r.Context(), l.ID, req.IDs); err != nil {
		h.logger.Error("reorder tasks", "list_id", l.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reorder tasks")
		return
	}
	h.broadcast(r.Context(), websocket.NewMessage("task", "reordered", "", map[string]any{"list_id": l.ID}))
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/tasks/search?q=
func (h *TaskHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []model.TaskWithList{})
		return
	}
	tasks, err := h.tasks.Search(r.Context(), auth.HouseholdID(r.Context()), q, queryInt(r, "limit", searchLimit, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search tasks")
		return
	}
	if tasks == nil {
		tasks = []model.TaskWithList{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Calendar handles GET /api/tasks/calendar?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *TaskHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse(model.DateLayout, r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse(model.DateLayout, r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
		return
	}
	if to.Before(from) || to.Sub(from) > maxCalendarRange {
		writeError(w, http.StatusBadRequest, "invalid date range")
		return
	}

	tasks, err := h.tasks.ListByDueRange(r.Context(), auth.HouseholdID(r.Context()),
		from.Format(model.DateLayout), to.Format(model.DateLayout))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	if tasks == nil {
		tasks = []model.TaskWithList{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type dashboardResponse struct {
	task.Board
	Workload task.Workload `json:"workload"`
}

// Dashboard handles GET /api/dashboard
func (h *TaskHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	hid := auth.HouseholdID(ctx)
	open, err := h.tasks.ListOpenForHousehold(ctx, hid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	members, err := h.profiles.ListByHousehold(ctx, hid)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	plain := make([]model.Task, len(open))
	for i, t := range open {
		plain[i] = t.Task
	}
	writeJSON(w, http.StatusOK, dashboardResponse{
		Board:    task.BuildBoard(open, h.now()),
		Workload: task.ComputeWorkload(plain, members),
	})
}
