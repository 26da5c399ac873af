package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

// ErrInvalidUpdate is returned when a partial task update names a field that
// cannot be written or carries a value of the wrong shape.
var ErrInvalidUpdate = errors.New("invalid task update")

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func taskScanDest(t *model.Task, nulls *taskNulls) []any {
	return []any{
		&t.ID, &t.ListID, &t.Title, &nulls.description, &t.Priority, &t.Urgency, &t.Status,
		&nulls.dueDate, &nulls.dueTime, &nulls.assignedTo, &t.SharedResponsibility,
		&nulls.recurrenceRule, &t.SortOrder, &t.CreatedBy, &nulls.completedBy, &nulls.completedAt,
		&t.CreatedAt, &t.UpdatedAt,
	}
}

type taskNulls struct {
	description    sql.NullString
	dueDate        sql.NullString
	dueTime        sql.NullString
	assignedTo     sql.NullString
	recurrenceRule sql.NullString
	completedBy    sql.NullString
	completedAt    sql.NullTime
}

func (n taskNulls) apply(t *model.Task) {
	t.Description = stringPtr(n.description)
	t.DueDate = stringPtr(n.dueDate)
	t.DueTime = stringPtr(n.dueTime)
	t.AssignedTo = stringPtr(n.assignedTo)
	t.RecurrenceRule = stringPtr(n.recurrenceRule)
	t.CompletedBy = stringPtr(n.completedBy)
	t.CompletedAt = timePtr(n.completedAt)
}

func scanTask(sc scanner) (*model.Task, error) {
	var t model.Task
	var nulls taskNulls
	if err := sc.Scan(taskScanDest(&t, &nulls)...); err != nil {
		return nil, err
	}
	nulls.apply(&t)
	return &t, nil
}

func scanTaskWithList(sc scanner) (*model.TaskWithList, error) {
	var t model.TaskWithList
	var nulls taskNulls
	dest := append(taskScanDest(&t.Task, &nulls), &t.ListName)
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	nulls.apply(&t.Task)
	return &t, nil
}

const taskCols = `t.id, t.list_id, t.title, t.description, t.priority, t.urgency, t.status,
	t.due_date, t.due_time, t.assigned_to, t.shared_responsibility,
	t.recurrence_rule, t.sort_order, t.created_by, t.completed_by, t.completed_at,
	t.created_at, t.updated_at`

// dueDateOrder sorts by due date ascending with undated tasks last.
const dueDateOrder = `t.due_date IS NULL, t.due_date ASC, t.due_time IS NULL, t.due_time ASC`

func (s *TaskStore) Create(ctx context.Context, nt model.NewTask) (*model.Task, error) {
	if nt.Priority == "" {
		nt.Priority = model.PriorityNone
	}
	if nt.Urgency == "" {
		nt.Urgency = model.UrgencyNone
	}
	id := newID()
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, list_id, title, description, priority, urgency, status,
			due_date, due_time, assigned_to, shared_responsibility, recurrence_rule,
			sort_order, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nt.ListID, nt.Title, nullString(nt.Description), nt.Priority, nt.Urgency,
		nullString(nt.DueDate), nullString(nt.DueTime), nullString(nt.AssignedTo),
		nt.SharedResponsibility, nullString(nt.RecurrenceRule), nt.SortOrder, nt.CreatedBy, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) GetByID(ctx context.Context, id string) (*model.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks t WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// HouseholdOf returns the household owning the task, or "" if the task does
// not exist.
func (s *TaskStore) HouseholdOf(ctx context.Context, id string) (string, error) {
	var householdID string
	err := s.db.QueryRowContext(ctx,
		`SELECT l.household_id FROM tasks t JOIN lists l ON l.id = t.list_id WHERE t.id = ?`, id,
	).Scan(&householdID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("task household: %w", err)
	}
	return householdID, nil
}

// ListByList returns the tasks of one list. sortBy is one of sort_order,
// due_date, priority or created_at; anything else falls back to sort_order.
func (s *TaskStore) ListByList(ctx context.Context, listID, sortBy string) ([]model.Task, error) {
	var order string
	switch sortBy {
	case "due_date":
		order = dueDateOrder
	case "priority":
		order = `CASE t.priority WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END DESC, t.sort_order ASC`
	case "created_at":
		order = `t.created_at DESC`
	default:
		order = `t.sort_order ASC, t.created_at ASC`
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+` FROM tasks t WHERE t.list_id = ? ORDER BY `+order,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (s *TaskStore) queryWithList(ctx context.Context, where, order string, args ...any) ([]model.TaskWithList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskCols+`, l.name FROM tasks t JOIN lists l ON l.id = t.list_id WHERE `+where+` ORDER BY `+order,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.TaskWithList
	for rows.Next() {
		t, err := scanTaskWithList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// ListForHousehold returns up to limit tasks across every list of the
// household, ordered by due date ascending with undated tasks last.
func (s *TaskStore) ListForHousehold(ctx context.Context, householdID string, limit int) ([]model.TaskWithList, error) {
	tasks, err := s.queryWithList(ctx, `l.household_id = ?`, dueDateOrder+` LIMIT ?`, householdID, limit)
	if err != nil {
		return nil, fmt.Errorf("list household tasks: %w", err)
	}
	return tasks, nil
}

// ListOpenForHousehold returns every task of the household that is not
// completed.
func (s *TaskStore) ListOpenForHousehold(ctx context.Context, householdID string) ([]model.TaskWithList, error) {
	tasks, err := s.queryWithList(ctx, `l.household_id = ? AND t.status != 'completed'`, dueDateOrder, householdID)
	if err != nil {
		return nil, fmt.Errorf("list open tasks: %w", err)
	}
	return tasks, nil
}

// ListByDueRange returns tasks due between from and to inclusive
// (YYYY-MM-DD).
func (s *TaskStore) ListByDueRange(ctx context.Context, householdID, from, to string) ([]model.TaskWithList, error) {
	tasks, err := s.queryWithList(ctx,
		`l.household_id = ? AND t.due_date IS NOT NULL AND t.due_date >= ? AND t.due_date <= ?`,
		dueDateOrder, householdID, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("list tasks by due range: %w", err)
	}
	return tasks, nil
}

// Search matches the query against titles and descriptions, case-insensitive.
func (s *TaskStore) Search(ctx context.Context, householdID, query string, limit int) ([]model.TaskWithList, error) {
	pattern := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	tasks, err := s.queryWithList(ctx,
		`l.household_id = ? AND (LOWER(t.title) LIKE ? OR LOWER(COALESCE(t.description, '')) LIKE ?)`,
		`t.status = 'completed', `+dueDateOrder+` LIMIT ?`,
		householdID, pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search tasks: %w", err)
	}
	return tasks, nil
}

// Complete marks a task completed by the given member. Completing an already
// completed task overwrites the completer and timestamp.
func (s *TaskStore) Complete(ctx context.Context, id, completedBy string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', completed_by = ?, completed_at = ?, updated_at = ? WHERE id = ?`,
		completedBy, at.UTC(), now(), id,
	)
	if err != nil {
		return fmt.Errorf("complete task: %w", err)
	}
	return expectAffected(result)
}

// Reopen returns a completed task to pending and clears the completion pair.
func (s *TaskStore) Reopen(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'pending', completed_by = NULL, completed_at = NULL, updated_at = ? WHERE id = ?`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("reopen task: %w", err)
	}
	return expectAffected(result)
}

type fieldConv func(any) (any, error)

func stringField(v any) (any, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("expected non-empty string")
	}
	return s, nil
}

func nullableStringField(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("expected string or null")
	}
	if s == "" {
		return nil, nil
	}
	return s, nil
}

func dateField(v any) (any, error) {
	s, err := nullableStringField(v)
	if err != nil || s == nil {
		return s, err
	}
	if _, err := time.Parse(model.DateLayout, s.(string)); err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD")
	}
	return s, nil
}

func timeField(v any) (any, error) {
	s, err := nullableStringField(v)
	if err != nil || s == nil {
		return s, err
	}
	t, err := model.NormalizeDueTime(s.(string))
	if err != nil {
		return nil, fmt.Errorf("expected HH:MM")
	}
	return t, nil
}

func enumField(valid func(string) bool) fieldConv {
	return func(v any) (any, error) {
		s, ok := v.(string)
		if !ok || !valid(s) {
			return nil, fmt.Errorf("unsupported value %v", v)
		}
		return s, nil
	}
}

func boolField(v any) (any, error) {
	b, ok := v.(bool)
	if !ok {
		return nil, fmt.Errorf("expected boolean")
	}
	return b, nil
}

func intField(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	}
	return nil, fmt.Errorf("expected number")
}

var taskUpdateFields = map[string]fieldConv{
	"title":                 stringField,
	"description":           nullableStringField,
	"priority":              enumField(func(s string) bool { return model.Priority(s).Valid() }),
	"urgency":               enumField(func(s string) bool { return model.Urgency(s).Valid() }),
	"status":                enumField(func(s string) bool { return model.Status(s).Valid() }),
	"due_date":              dateField,
	"due_time":              timeField,
	"assigned_to":           nullableStringField,
	"shared_responsibility": boolField,
	"recurrence_rule":       nullableStringField,
	"sort_order":            intField,
	"list_id":               stringField,
}

// Update applies a partial field set to a task. Keys must be task columns
// from the writable set; values are JSON-decoded shapes. Moving a task out of
// the completed status clears its completion pair.
func (s *TaskStore) Update(ctx context.Context, id string, fields map[string]any) (*model.Task, error) {
	return s.UpdateBy(ctx, id, "", fields)
}

// UpdateBy is Update on behalf of a member. Setting the status to completed
// records actorID as the completer unless the task was already completed;
// that transition is rejected when actorID is empty.
func (s *TaskStore) UpdateBy(ctx context.Context, id, actorID string, fields map[string]any) (*model.Task, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields", ErrInvalidUpdate)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys)+3)
	args := make([]any, 0, len(keys)+3)
	for _, k := range keys {
		conv, ok := taskUpdateFields[k]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported field %q", ErrInvalidUpdate, k)
		}
		v, err := conv(fields[k])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidUpdate, k, err)
		}
		sets = append(sets, k+" = ?")
		args = append(args, v)
	}
	if st, ok := fields["status"].(string); ok {
		if model.Status(st) != model.StatusCompleted {
			sets = append(sets, "completed_by = NULL", "completed_at = NULL")
		} else {
			if actorID == "" {
				return nil, fmt.Errorf("%w: completing a task requires a member", ErrInvalidUpdate)
			}
			sets = append(sets, "completed_by = COALESCE(completed_by, ?)", "completed_at = COALESCE(completed_at, ?)")
			args = append(args, actorID, now())
		}
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, now(), id)

	result, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *TaskStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectAffected(result)
}

// Reorder rewrites sort_order for the given tasks of one list in a single
// transaction.
func (s *TaskStore) Reorder(ctx context.Context, listID string, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET sort_order = ? WHERE id = ? AND list_id = ?`, i, id, listID,
		); err != nil {
			return fmt.Errorf("update sort order: %w", err)
		}
	}
	return tx.Commit()
}

func (s *TaskStore) NextSortOrder(ctx context.Context, listID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM tasks WHERE list_id = ?`, listID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("next task sort order: %w", err)
	}
	return n, nil
}
