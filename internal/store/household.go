package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/indivisible/internal/model"
)

type HouseholdStore struct {
	db *sql.DB
}

func NewHouseholdStore(db *sql.DB) *HouseholdStore {
	return &HouseholdStore{db: db}
}

func scanHousehold(sc scanner) (*model.Household, error) {
	var h model.Household
	err := sc.Scan(&h.ID, &h.Name, &h.InviteCode, &h.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

const householdCols = `id, name, invite_code, created_at`

func (s *HouseholdStore) Create(ctx context.Context, name string) (*model.Household, error) {
	code, err := generateInviteCode()
	if err != nil {
		return nil, err
	}
	id := newID()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO households (id, name, invite_code, created_at) VALUES (?, ?, ?, ?)`,
		id, name, code, now(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert household: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HouseholdStore) GetByID(ctx context.Context, id string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+householdCols+` FROM households WHERE id = ?`, id)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) GetByInviteCode(ctx context.Context, code string) (*model.Household, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+householdCols+` FROM households WHERE invite_code = ?`,
		strings.ToUpper(strings.TrimSpace(code)),
	)
	h, err := scanHousehold(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get household by invite code: %w", err)
	}
	return h, nil
}

func (s *HouseholdStore) Rename(ctx context.Context, id, name string) (*model.Household, error) {
	result, err := s.db.ExecContext(ctx, `UPDATE households SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return nil, fmt.Errorf("rename household: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}
