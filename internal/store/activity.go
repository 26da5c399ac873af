package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dukerupert/indivisible/internal/model"
)

type ActivityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) *ActivityStore {
	return &ActivityStore{db: db}
}

const activityCols = `a.id, a.household_id, a.task_id, a.list_id, a.user_id, a.action, a.details, a.created_at,
	COALESCE(p.display_name, '')`

func scanActivity(sc scanner) (*model.ActivityEntry, error) {
	var e model.ActivityEntry
	var taskID, listID sql.NullString
	var details string
	if err := sc.Scan(&e.ID, &e.HouseholdID, &taskID, &listID, &e.UserID, &e.Action, &details, &e.CreatedAt, &e.ActorName); err != nil {
		return nil, err
	}
	e.TaskID = stringPtr(taskID)
	e.ListID = stringPtr(listID)
	e.Details = json.RawMessage(details)
	return &e, nil
}

// Create appends an entry to the household's activity log. Nil details are
// stored as an empty object.
func (s *ActivityStore) Create(ctx context.Context, a model.NewActivity) (*model.ActivityEntry, error) {
	details := a.Details
	if details == nil {
		details = map[string]any{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("marshal activity details: %w", err)
	}

	e := &model.ActivityEntry{
		ID:          newID(),
		HouseholdID: a.HouseholdID,
		TaskID:      a.TaskID,
		ListID:      a.ListID,
		UserID:      a.UserID,
		Action:      a.Action,
		Details:     raw,
		CreatedAt:   now(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO activity_log (id, household_id, task_id, list_id, user_id, action, details, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.HouseholdID, nullString(e.TaskID), nullString(e.ListID), e.UserID, e.Action, string(raw), e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert activity: %w", err)
	}
	return e, nil
}

func (s *ActivityStore) list(ctx context.Context, where string, args ...any) ([]model.ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+activityCols+` FROM activity_log a LEFT JOIN profiles p ON p.id = a.user_id
		 WHERE `+where+` ORDER BY a.created_at DESC LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.ActivityEntry
	for rows.Next() {
		e, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ListByHousehold returns the newest entries first.
func (s *ActivityStore) ListByHousehold(ctx context.Context, householdID string, limit int) ([]model.ActivityEntry, error) {
	entries, err := s.list(ctx, `a.household_id = ?`, householdID, limit)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return entries, nil
}

func (s *ActivityStore) ListByTask(ctx context.Context, taskID string, limit int) ([]model.ActivityEntry, error) {
	entries, err := s.list(ctx, `a.task_id = ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list task activity: %w", err)
	}
	return entries, nil
}
