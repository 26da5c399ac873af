package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/indivisible/internal/model"
)

type MessageStore struct {
	db *sql.DB
}

func NewMessageStore(db *sql.DB) *MessageStore {
	return &MessageStore{db: db}
}

const messageCols = `m.id, m.household_id, m.user_id, m.role, m.content, m.intent, m.related_task_id, m.created_at,
	COALESCE(p.display_name, ''),
	(SELECT GROUP_CONCAT(r.user_id) FROM message_reads r WHERE r.message_id = m.id)`

const messageFrom = ` FROM messages m LEFT JOIN profiles p ON p.id = m.user_id`

func scanMessage(sc scanner) (*model.Message, error) {
	var m model.Message
	var userID, intent, related, readBy sql.NullString
	if err := sc.Scan(&m.ID, &m.HouseholdID, &userID, &m.Role, &m.Content, &intent, &related, &m.CreatedAt,
		&m.AuthorName, &readBy); err != nil {
		return nil, err
	}
	m.UserID = stringPtr(userID)
	m.Intent = stringPtr(intent)
	m.RelatedTaskID = stringPtr(related)
	m.ReadBy = splitIDs(readBy)
	return &m, nil
}

func (s *MessageStore) Create(ctx context.Context, nm model.NewMessage) (*model.Message, error) {
	if nm.Role == "" {
		nm.Role = model.RoleUser
	}
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, household_id, user_id, role, content, intent, related_task_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, nm.HouseholdID, nullString(nm.UserID), nm.Role, nm.Content, nullString(nm.Intent),
		nullString(nm.RelatedTaskID), now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *MessageStore) GetByID(ctx context.Context, id string) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageCols+messageFrom+` WHERE m.id = ?`, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) query(ctx context.Context, q string, args ...any) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// ListByHousehold returns up to limit of the newest messages in chronological
// order.
func (s *MessageStore) ListByHousehold(ctx context.Context, householdID string, limit int) ([]model.Message, error) {
	msgs, err := s.ListRecent(ctx, householdID, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListRecent returns up to limit messages newest first.
func (s *MessageStore) ListRecent(ctx context.Context, householdID string, limit int) ([]model.Message, error) {
	msgs, err := s.query(ctx,
		`SELECT `+messageCols+messageFrom+` WHERE m.household_id = ? ORDER BY m.created_at DESC, m.rowid DESC LIMIT ?`,
		householdID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent messages: %w", err)
	}
	return msgs, nil
}

// LatestByRole returns the newest message of the given role, or nil.
func (s *MessageStore) LatestByRole(ctx context.Context, householdID string, role model.Role) (*model.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageCols+messageFrom+` WHERE m.household_id = ? AND m.role = ?
		 ORDER BY m.created_at DESC, m.rowid DESC LIMIT 1`,
		householdID, role,
	)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) CountByRole(ctx context.Context, householdID string, role model.Role) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE household_id = ? AND role = ?`, householdID, role,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

func (s *MessageStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return expectAffected(result)
}

// MarkRead records that userID has read the given messages. Already read
// messages are left untouched.
func (s *MessageStore) MarkRead(ctx context.Context, userID string, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	for _, id := range messageIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at)
			 SELECT id, ?, ? FROM messages WHERE id = ?`,
			userID, ts, id,
		); err != nil {
			return fmt.Errorf("mark message read: %w", err)
		}
	}
	return tx.Commit()
}

// MarkAllRead marks every assistant message of the household read for userID.
func (s *MessageStore) MarkAllRead(ctx context.Context, householdID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO message_reads (message_id, user_id, read_at)
		 SELECT id, ?, ? FROM messages WHERE household_id = ? AND role = 'assistant'`,
		userID, now(), householdID,
	)
	if err != nil {
		return fmt.Errorf("mark all messages read: %w", err)
	}
	return nil
}

// UnreadAssistantCount counts assistant messages userID has not read.
func (s *MessageStore) UnreadAssistantCount(ctx context.Context, householdID, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages m
		 WHERE m.household_id = ? AND m.role = 'assistant'
		   AND NOT EXISTS (SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?)`,
		householdID, userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return n, nil
}
