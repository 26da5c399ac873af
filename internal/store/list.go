package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/indivisible/internal/model"
)

type ListStore struct {
	db *sql.DB
}

func NewListStore(db *sql.DB) *ListStore {
	return &ListStore{db: db}
}

func scanList(sc scanner) (*model.List, error) {
	var l model.List
	err := sc.Scan(&l.ID, &l.HouseholdID, &l.Name, &l.Icon, &l.Color, &l.SortOrder, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

const listCols = `id, household_id, name, icon, color, sort_order, created_by, created_at, updated_at`

func (s *ListStore) Create(ctx context.Context, householdID, name, icon, color string, createdBy string) (*model.List, error) {
	if icon == "" {
		icon = "list"
	}
	if color == "" {
		color = "#6366f1"
	}
	var sortOrder int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order) + 1, 0) FROM lists WHERE household_id = ?`, householdID,
	).Scan(&sortOrder); err != nil {
		return nil, fmt.Errorf("next list sort order: %w", err)
	}

	id := newID()
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lists (id, household_id, name, icon, color, sort_order, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, householdID, name, icon, color, sortOrder, createdBy, ts, ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ListStore) GetByID(ctx context.Context, id string) (*model.List, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+listCols+` FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

func (s *ListStore) ListByHousehold(ctx context.Context, householdID string) ([]model.List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listCols+` FROM lists WHERE household_id = ? ORDER BY sort_order ASC, name ASC`,
		householdID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

func (s *ListStore) Update(ctx context.Context, id, name, icon, color string) (*model.List, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE lists SET name = ?, icon = ?, color = ?, updated_at = ? WHERE id = ?`,
		name, icon, color, now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Delete removes a list and, through the foreign key cascade, its tasks.
func (s *ListStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM lists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return expectAffected(result)
}

func (s *ListStore) UpdateSortOrder(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE lists SET sort_order = ? WHERE id = ?`, i, id); err != nil {
			return fmt.Errorf("update sort order: %w", err)
		}
	}
	return tx.Commit()
}
