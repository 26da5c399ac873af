package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/indivisible/internal/database"
	"github.com/dukerupert/indivisible/internal/model"
)

type fixture struct {
	db        *sql.DB
	household *model.Household
	member    *model.Profile
	list      *model.List
}

func setupTestDB(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	h, err := NewHouseholdStore(db).Create(ctx, "Test Household")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}
	ps := NewProfileStore(db)
	p, err := ps.Create(ctx, "", "alex@example.com", "Alex")
	if err != nil {
		t.Fatalf("create profile: %v", err)
	}
	p, err = ps.SetHousehold(ctx, p.ID, &h.ID)
	if err != nil {
		t.Fatalf("join household: %v", err)
	}
	l, err := NewListStore(db).Create(ctx, h.ID, "Chores", "", "", p.ID)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	return &fixture{db: db, household: h, member: p, list: l}
}

func strPtr(s string) *string { return &s }
