package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/indivisible/internal/model"
)

// ProfileStore reads and writes household members. Profiles are provisioned
// by the external identity provider; Create exists for onboarding and tests.
type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func scanProfile(sc scanner) (*model.Profile, error) {
	var p model.Profile
	var email, householdID sql.NullString
	err := sc.Scan(&p.ID, &email, &p.DisplayName, &p.AvatarColor, &householdID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Email = email.String
	p.HouseholdID = stringPtr(householdID)
	return &p, nil
}

const profileCols = `id, email, display_name, avatar_color, household_id, created_at, updated_at`

// Create inserts a profile. An empty id generates a new one; an empty email
// is stored as NULL.
func (s *ProfileStore) Create(ctx context.Context, id, email, displayName string) (*model.Profile, error) {
	if id == "" {
		id = newID()
	}
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, display_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, sql.NullString{String: email, Valid: email != ""}, displayName, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ProfileStore) GetByID(ctx context.Context, id string) (*model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id = ?`, id)
	p, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) ListByHousehold(ctx context.Context, householdID string) ([]model.Profile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileCols+` FROM profiles WHERE household_id = ? ORDER BY created_at ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []model.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		profiles = append(profiles, *p)
	}
	return profiles, rows.Err()
}

// SetHousehold moves a profile into a household, or out of any household
// when householdID is nil.
func (s *ProfileStore) SetHousehold(ctx context.Context, id string, householdID *string) (*model.Profile, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET household_id = ?, updated_at = ? WHERE id = ?`,
		nullString(householdID), now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("set household: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

func (s *ProfileStore) UpdateDisplayName(ctx context.Context, id, displayName, avatarColor string) (*model.Profile, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET display_name = ?, avatar_color = ?, updated_at = ? WHERE id = ?`,
		displayName, avatarColor, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}
