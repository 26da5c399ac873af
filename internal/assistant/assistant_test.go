package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/indivisible/internal/database"
	"github.com/dukerupert/indivisible/internal/model"
)

type fixture struct {
	stores    Stores
	household *model.Household
	alex      *model.Profile
	sam       *model.Profile
	list      *model.List
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	stores := NewStores(db)
	h, err := stores.Households.Create(ctx, "Casa")
	if err != nil {
		t.Fatalf("create household: %v", err)
	}

	join := func(email, name string) *model.Profile {
		p, err := stores.Profiles.Create(ctx, "", email, name)
		if err != nil {
			t.Fatalf("create profile: %v", err)
		}
		p, err = stores.Profiles.SetHousehold(ctx, p.ID, &h.ID)
		if err != nil {
			t.Fatalf("join household: %v", err)
		}
		return p
	}
	alex := join("alex@example.com", "Alex")
	sam := join("sam@example.com", "Sam")

	l, err := stores.Lists.Create(ctx, h.ID, "Shopping", "", "", alex.ID)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	return &fixture{stores: stores, household: h, alex: alex, sam: sam, list: l}
}

// postChat stores a member's chat message the way the messages endpoint does.
func (f *fixture) postChat(t *testing.T, userID, content string) {
	t.Helper()
	_, err := f.stores.Messages.Create(context.Background(), model.NewMessage{
		HouseholdID: f.household.ID,
		UserID:      &userID,
		Role:        model.RoleUser,
		Content:     content,
	})
	if err != nil {
		t.Fatalf("post chat: %v", err)
	}
}

func fixedReply(reply string, calls *int32) Completer {
	return CompleterFunc(func(ctx context.Context, system string, turns []Turn) (string, error) {
		atomic.AddInt32(calls, 1)
		return reply, nil
	})
}

func TestRespondCreatesTask(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()

	var calls int32
	var gotSystem string
	var gotTurns []Turn
	completer := CompleterFunc(func(ctx context.Context, system string, turns []Turn) (string, error) {
		atomic.AddInt32(&calls, 1)
		gotSystem, gotTurns = system, turns
		return fmt.Sprintf(`Added "buy milk"! [ACTION:create_task]{"title":"buy milk","list_id":%q}[/ACTION]`, f.list.ID), nil
	})
	svc := NewService(f.stores, completer, nil, discardLogger(), Options{})

	f.postChat(t, f.alex.ID, "add buy milk to Shopping")
	resp, err := svc.Respond(ctx, Request{
		HouseholdID:    f.household.ID,
		UserID:         f.alex.ID,
		MessageContent: "add buy milk to Shopping",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if calls != 1 {
		t.Errorf("completer called %d times, want 1", calls)
	}

	if resp.Message.Content != `Added "buy milk"!` {
		t.Errorf("content = %q", resp.Message.Content)
	}
	if resp.Message.Intent == nil || *resp.Message.Intent != KindCreateTask {
		t.Errorf("intent = %v, want create_task", resp.Message.Intent)
	}
	if len(resp.ActionsExecuted) != 1 || !resp.ActionsExecuted[0].Success {
		t.Fatalf("actions = %+v", resp.ActionsExecuted)
	}
	taskID := resp.ActionsExecuted[0].TaskID
	if resp.Message.RelatedTaskID == nil || *resp.Message.RelatedTaskID != taskID {
		t.Errorf("related task = %v, want %s", resp.Message.RelatedTaskID, taskID)
	}

	task, err := f.stores.Tasks.GetByID(ctx, taskID)
	if err != nil || task == nil {
		t.Fatalf("created task missing: %v", err)
	}
	if task.Title != "buy milk" || task.ListID != f.list.ID || task.CreatedBy != f.alex.ID {
		t.Errorf("task = %+v", task)
	}
	if task.SortOrder != assistantSortOrder {
		t.Errorf("sort_order = %d, want %d", task.SortOrder, assistantSortOrder)
	}

	if !strings.Contains(gotSystem, `"Casa"`) || !strings.Contains(gotSystem, "CURRENT SPEAKER: Alex") {
		t.Errorf("system prompt missing household or speaker")
	}
	if len(gotTurns) != 1 || gotTurns[0].Role != model.RoleUser {
		t.Fatalf("turns = %+v, want one user turn", gotTurns)
	}
	if gotTurns[0].Content != "[Alex]: add buy milk to Shopping" {
		t.Errorf("turn content = %q", gotTurns[0].Content)
	}

	entries, err := f.stores.Activity.ListByTask(ctx, taskID, 10)
	if err != nil {
		t.Fatalf("ListByTask: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != model.ActionTaskCreated {
		t.Errorf("activity = %+v", entries)
	}
}

func TestRespondWithoutDirectivesIsChat(t *testing.T) {
	f := setupFixture(t)
	var calls int32
	svc := NewService(f.stores, fixedReply("You have nothing due today.", &calls), nil, discardLogger(), Options{})

	resp, err := svc.Respond(context.Background(), Request{
		HouseholdID:    f.household.ID,
		UserID:         f.sam.ID,
		MessageContent: "what's due today?",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if *resp.Message.Intent != chatIntent {
		t.Errorf("intent = %s, want chat", *resp.Message.Intent)
	}
	if resp.Message.RelatedTaskID != nil {
		t.Errorf("related task = %v, want nil", *resp.Message.RelatedTaskID)
	}
	if resp.ActionsExecuted == nil || len(resp.ActionsExecuted) != 0 {
		t.Errorf("actions = %#v, want empty", resp.ActionsExecuted)
	}
}

func TestRespondEmptyReplyUsesFallback(t *testing.T) {
	f := setupFixture(t)
	var calls int32
	svc := NewService(f.stores, fixedReply(`[ACTION:delete_task]{"task_id":"nope"}[/ACTION]`, &calls), nil, discardLogger(), Options{})

	resp, err := svc.Respond(context.Background(), Request{
		HouseholdID:    f.household.ID,
		UserID:         f.alex.ID,
		MessageContent: "delete it",
	})
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if resp.Message.Content != fallbackReply {
		t.Errorf("content = %q, want fallback", resp.Message.Content)
	}
	if resp.ActionsExecuted[0].Success || resp.ActionsExecuted[0].Error != "task not found" {
		t.Errorf("result = %+v", resp.ActionsExecuted[0])
	}
}

func TestRespondRateLimited(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	var calls int32
	svc := NewService(f.stores, fixedReply("On it.", &calls), nil, discardLogger(), Options{SerializeHousehold: true})

	req := Request{HouseholdID: f.household.ID, UserID: f.alex.ID, MessageContent: "hey indi"}
	if _, err := svc.Respond(ctx, req); err != nil {
		t.Fatalf("first Respond: %v", err)
	}

	resp, err := svc.Respond(ctx, req)
	if err != nil {
		t.Fatalf("second Respond: %v", err)
	}
	if resp.Skipped != SkippedRateLimited || resp.Message != nil {
		t.Errorf("second response = %+v, want rate limited", resp)
	}
	if calls != 1 {
		t.Errorf("completer called %d times, want 1", calls)
	}

	// welcome + one reply
	n, err := f.stores.Messages.CountByRole(ctx, f.household.ID, model.RoleAssistant)
	if err != nil {
		t.Fatalf("CountByRole: %v", err)
	}
	if n != 2 {
		t.Errorf("assistant messages = %d, want 2", n)
	}
}

func TestRespondWelcomesFirstContact(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	var calls int32
	svc := NewService(f.stores, fixedReply("Hi!", &calls), nil, discardLogger(), Options{})

	f.postChat(t, f.alex.ID, "hello")
	if _, err := svc.Respond(ctx, Request{HouseholdID: f.household.ID, UserID: f.alex.ID, MessageContent: "hello"}); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	msgs, err := f.stores.Messages.ListByHousehold(ctx, f.household.ID, 10)
	if err != nil {
		t.Fatalf("ListByHousehold: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	welcome := msgs[1]
	if welcome.Role != model.RoleAssistant || welcome.Intent == nil || *welcome.Intent != welcomeIntent {
		t.Fatalf("second message = %+v, want welcome", welcome)
	}
	if !strings.Contains(welcome.Content, "Hey Alex!") || !strings.Contains(welcome.Content, "Sam") {
		t.Errorf("welcome = %q", welcome.Content)
	}
	if msgs[2].Content != "Hi!" {
		t.Errorf("reply = %q", msgs[2].Content)
	}
}

func TestRespondCompletionErrorPersistsNothing(t *testing.T) {
	f := setupFixture(t)
	ctx := context.Background()
	completer := CompleterFunc(func(ctx context.Context, system string, turns []Turn) (string, error) {
		return "", fmt.Errorf("%w: upstream 500", ErrCompletion)
	})
	svc := NewService(f.stores, completer, nil, discardLogger(), Options{})

	_, err := svc.Respond(ctx, Request{HouseholdID: f.household.ID, UserID: f.alex.ID, MessageContent: "hi indi"})
	if !errors.Is(err, ErrCompletion) {
		t.Fatalf("err = %v, want ErrCompletion", err)
	}

	msgs, err := f.stores.Messages.ListRecent(ctx, f.household.ID, 10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	for _, m := range msgs {
		if m.Role == model.RoleAssistant && (m.Intent == nil || *m.Intent != welcomeIntent) {
			t.Errorf("unexpected assistant message %q", m.Content)
		}
	}
}

func TestRespondValidatesRequest(t *testing.T) {
	f := setupFixture(t)
	var calls int32
	svc := NewService(f.stores, fixedReply("x", &calls), nil, discardLogger(), Options{})

	_, err := svc.Respond(context.Background(), Request{HouseholdID: f.household.ID, MessageContent: "  "})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v, want ErrInvalidRequest", err)
	}
	if !strings.Contains(err.Error(), "user_id, message_content") {
		t.Errorf("err = %v, want missing fields listed", err)
	}
	if calls != 0 {
		t.Errorf("completer called %d times, want 0", calls)
	}
}

func TestWithCurrentMessage(t *testing.T) {
	hc := &HouseholdContext{Members: []model.Profile{{ID: "u1", DisplayName: "Alex"}}}
	uid := "u1"
	history := []model.Message{{Role: model.RoleUser, UserID: &uid, Content: "hello"}}
	turns := BuildConversation(history, hc)

	same := withCurrentMessage(turns, history, Request{UserID: "u1", MessageContent: "hello"}, hc)
	if len(same) != 1 || same[0].Content != "[Alex]: hello" {
		t.Errorf("duplicate appended: %+v", same)
	}

	turns = BuildConversation(history, hc)
	merged := withCurrentMessage(turns, history, Request{UserID: "u1", MessageContent: "also milk"}, hc)
	if len(merged) != 1 || merged[0].Content != "[Alex]: hello\n\n[Alex]: also milk" {
		t.Errorf("merged = %+v", merged)
	}

	fresh := withCurrentMessage(nil, nil, Request{UserID: "ghost", MessageContent: "hi"}, hc)
	if len(fresh) != 1 || fresh[0].Content != "[User]: hi" {
		t.Errorf("fresh = %+v", fresh)
	}
}
