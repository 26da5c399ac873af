package store

import (
	"context"
	"testing"

	"github.com/dukerupert/indivisible/internal/model"
)

func TestMessageCreateAndList(t *testing.T) {
	f := setupTestDB(t)
	ms := NewMessageStore(f.db)
	ctx := context.Background()

	if _, err := ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, UserID: &f.member.ID, Content: "first"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, Role: model.RoleAssistant, Content: "second"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	msgs, err := ms.ListByHousehold(ctx, f.household.ID, 200)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "first" || msgs[1].Content != "second" {
		t.Fatalf("list = %+v, want [first second]", msgs)
	}
	if msgs[0].Role != model.RoleUser || msgs[0].AuthorName != "Alex" {
		t.Errorf("first = role %q author %q, want user Alex", msgs[0].Role, msgs[0].AuthorName)
	}
	if msgs[1].UserID != nil {
		t.Error("assistant message should have no user")
	}

	recent, err := ms.ListRecent(ctx, f.household.ID, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 1 || recent[0].Content != "second" {
		t.Errorf("recent = %+v, want [second]", recent)
	}
}

func TestMessageLatestAndCountByRole(t *testing.T) {
	f := setupTestDB(t)
	ms := NewMessageStore(f.db)
	ctx := context.Background()

	latest, err := ms.LatestByRole(ctx, f.household.ID, model.RoleAssistant)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Error("expected no assistant message yet")
	}

	for _, c := range []string{"one", "two"} {
		if _, err := ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, Role: model.RoleAssistant, Content: c}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	latest, err = ms.LatestByRole(ctx, f.household.ID, model.RoleAssistant)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil || latest.Content != "two" {
		t.Errorf("latest = %+v, want two", latest)
	}

	n, err := ms.CountByRole(ctx, f.household.ID, model.RoleAssistant)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestMessageUnreadCount(t *testing.T) {
	f := setupTestDB(t)
	ms := NewMessageStore(f.db)
	ctx := context.Background()

	a, _ := ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, Role: model.RoleAssistant, Content: "a"})
	ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, Role: model.RoleAssistant, Content: "b"})
	ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, UserID: &f.member.ID, Content: "user text"})

	n, err := ms.UnreadAssistantCount(ctx, f.household.ID, f.member.ID)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if n != 2 {
		t.Errorf("unread = %d, want 2", n)
	}

	if err := ms.MarkRead(ctx, f.member.ID, []string{a.ID, a.ID}); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	n, _ = ms.UnreadAssistantCount(ctx, f.household.ID, f.member.ID)
	if n != 1 {
		t.Errorf("unread after mark = %d, want 1", n)
	}
	got, _ := ms.GetByID(ctx, a.ID)
	if len(got.ReadBy) != 1 || got.ReadBy[0] != f.member.ID {
		t.Errorf("read_by = %v, want [%s]", got.ReadBy, f.member.ID)
	}

	if err := ms.MarkAllRead(ctx, f.household.ID, f.member.ID); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	n, _ = ms.UnreadAssistantCount(ctx, f.household.ID, f.member.ID)
	if n != 0 {
		t.Errorf("unread after mark all = %d, want 0", n)
	}
}

func TestMessageDelete(t *testing.T) {
	f := setupTestDB(t)
	ms := NewMessageStore(f.db)
	ctx := context.Background()
	m, _ := ms.Create(ctx, model.NewMessage{HouseholdID: f.household.ID, UserID: &f.member.ID, Content: "oops"})

	if err := ms.Delete(ctx, m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := ms.Delete(ctx, m.ID); err != ErrNotFound {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
}
