package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/indivisible/internal/model"
)

type PreferencesStore struct {
	db *sql.DB
}

func NewPreferencesStore(db *sql.DB) *PreferencesStore {
	return &PreferencesStore{db: db}
}

const preferencesCols = `id, user_id, agent_tone, proactive_reminders, created_at, updated_at`

func scanPreferences(sc scanner) (*model.AssistantPreferences, error) {
	var p model.AssistantPreferences
	if err := sc.Scan(&p.ID, &p.UserID, &p.AgentTone, &p.ProactiveReminders, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PreferencesStore) GetByUser(ctx context.Context, userID string) (*model.AssistantPreferences, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+preferencesCols+` FROM assistant_preferences WHERE user_id = ?`, userID)
	p, err := scanPreferences(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assistant preferences: %w", err)
	}
	return p, nil
}

// GetOrCreate returns the user's preferences, inserting the defaults on
// first access.
func (s *PreferencesStore) GetOrCreate(ctx context.Context, userID string) (*model.AssistantPreferences, error) {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO assistant_preferences (id, user_id, agent_tone, proactive_reminders, created_at, updated_at)
		 VALUES (?, ?, ?, 1, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		newID(), userID, model.DefaultAgentTone, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("create assistant preferences: %w", err)
	}
	return s.GetByUser(ctx, userID)
}

func (s *PreferencesStore) Update(ctx context.Context, userID, agentTone string, proactiveReminders bool) (*model.AssistantPreferences, error) {
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE assistant_preferences SET agent_tone = ?, proactive_reminders = ?, updated_at = ? WHERE user_id = ?`,
		agentTone, proactiveReminders, now(), userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update assistant preferences: %w", err)
	}
	return s.GetByUser(ctx, userID)
}
