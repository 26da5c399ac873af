package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/indivisible/internal/model"
)

type SubtaskStore struct {
	db *sql.DB
}

func NewSubtaskStore(db *sql.DB) *SubtaskStore {
	return &SubtaskStore{db: db}
}

const subtaskCols = `id, task_id, title, completed, sort_order, created_at`

func scanSubtask(sc scanner) (*model.Subtask, error) {
	var s model.Subtask
	if err := sc.Scan(&s.ID, &s.TaskID, &s.Title, &s.Completed, &s.SortOrder, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

// Create appends a subtask after the task's existing ones.
func (s *SubtaskStore) Create(ctx context.Context, taskID, title string) (*model.Subtask, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subtasks (id, task_id, title, completed, sort_order, created_at)
		 VALUES (?, ?, ?, 0, (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM subtasks WHERE task_id = ?), ?)`,
		id, taskID, title, taskID, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert subtask: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubtaskStore) GetByID(ctx context.Context, id string) (*model.Subtask, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subtaskCols+` FROM subtasks WHERE id = ?`, id)
	st, err := scanSubtask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subtask: %w", err)
	}
	return st, nil
}

func (s *SubtaskStore) ListByTask(ctx context.Context, taskID string) ([]model.Subtask, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subtaskCols+` FROM subtasks WHERE task_id = ? ORDER BY sort_order ASC, created_at ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	defer rows.Close()

	subtasks := []model.Subtask{}
	for rows.Next() {
		st, err := scanSubtask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		subtasks = append(subtasks, *st)
	}
	return subtasks, rows.Err()
}

// Toggle flips the completed flag and returns the updated subtask.
func (s *SubtaskStore) Toggle(ctx context.Context, id string) (*model.Subtask, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE subtasks SET completed = NOT completed WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("toggle subtask: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *SubtaskStore) UpdateTitle(ctx context.Context, id, title string) (*model.Subtask, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE subtasks SET title = ? WHERE id = ?`, title, id)
	if err != nil {
		return nil, fmt.Errorf("update subtask: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *SubtaskStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM subtasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete subtask: %w", err)
	}
	return expectAffected(result)
}
