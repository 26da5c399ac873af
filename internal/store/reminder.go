package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/indivisible/internal/model"
)

type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

const reminderCols = `r.id, r.task_id, r.user_id, r.remind_at, r.type, r.sent, r.created_at, t.title`

const reminderFrom = ` FROM reminders r JOIN tasks t ON t.id = r.task_id`

func scanReminder(sc scanner) (*model.Reminder, error) {
	var r model.Reminder
	if err := sc.Scan(&r.ID, &r.TaskID, &r.UserID, &r.RemindAt, &r.Type, &r.Sent, &r.CreatedAt, &r.TaskTitle); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *ReminderStore) Create(ctx context.Context, taskID, userID string, remindAt time.Time, typ model.ReminderType) (*model.Reminder, error) {
	if typ == "" {
		typ = model.ReminderInApp
	}
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, task_id, user_id, remind_at, type, sent, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		id, taskID, userID, remindAt.UTC(), typ, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ReminderStore) GetByID(ctx context.Context, id string) (*model.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+reminderCols+reminderFrom+` WHERE r.id = ?`, id)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) list(ctx context.Context, q string, args ...any) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

func (s *ReminderStore) ListByTask(ctx context.Context, taskID string) ([]model.Reminder, error) {
	reminders, err := s.list(ctx,
		`SELECT `+reminderCols+reminderFrom+` WHERE r.task_id = ? ORDER BY r.remind_at ASC`, taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	return reminders, nil
}

// ListDue returns unsent reminders whose remind_at is at or before asOf.
func (s *ReminderStore) ListDue(ctx context.Context, asOf time.Time) ([]model.Reminder, error) {
	reminders, err := s.list(ctx,
		`SELECT `+reminderCols+reminderFrom+` WHERE r.sent = 0 AND r.remind_at <= ? ORDER BY r.remind_at ASC`,
		asOf.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	return reminders, nil
}

func (s *ReminderStore) MarkSent(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE reminders SET sent = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark reminder sent: %w", err)
	}
	return expectAffected(result)
}

func (s *ReminderStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	return expectAffected(result)
}
