package conversation_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/chansky6/deer-flow/conversation"
	"github.com/chansky6/deer-flow/store/memory"
)

func newTestService(t *testing.T) (*conversation.Service, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := memory.New()
	svc := conversation.NewService(s, conversation.WithLogger(logger))
	return svc, s
}

func TestService_CreateAndGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, ok := svc.Create(ctx, "user-1", "thread-1", "first chat")
	if !ok {
		t.Fatal("create failed")
	}
	if created.ID == "" {
		t.Error("expected generated conversation ID")
	}
	if created.ThreadID != "thread-1" {
		t.Errorf("ThreadID = %q, want %q", created.ThreadID, "thread-1")
	}
	if created.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", created.UserID, "user-1")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}

	got, ok := svc.Get(ctx, "thread-1")
	if !ok {
		t.Fatal("get failed")
	}
	if got.Title != "first chat" {
		t.Errorf("Title = %q, want %q", got.Title, "first chat")
	}
}

func TestService_CreateDuplicateThread(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, ok := svc.Create(ctx, "user-1", "thread-1", "first"); !ok {
		t.Fatal("first create failed")
	}
	if _, ok := svc.Create(ctx, "user-1", "thread-1", "second"); ok {
		t.Fatal("duplicate create must report failure")
	}

	// The original record is untouched.
	got, ok := svc.Get(ctx, "thread-1")
	if !ok || got.Title != "first" {
		t.Errorf("Get after duplicate = (%v, %v), want original record", got, ok)
	}
}

func TestService_CreateClampsTitle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	long := strings.Repeat("x", conversation.MaxTitleLen+50)
	created, ok := svc.Create(ctx, "user-1", "thread-1", long)
	if !ok {
		t.Fatal("create failed")
	}
	if got := len([]rune(created.Title)); got != conversation.MaxTitleLen {
		t.Errorf("title length = %d runes, want %d", got, conversation.MaxTitleLen)
	}
}

func TestService_GetUnknownThread(t *testing.T) {
	svc, _ := newTestService(t)

	if _, ok := svc.Get(context.Background(), "no-such-thread"); ok {
		t.Fatal("expected ok=false for unknown thread")
	}
}

func TestService_ListOrderAndPagination(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, threadID := range []string{"thread-1", "thread-2", "thread-3"} {
		if _, ok := svc.Create(ctx, "user-1", threadID, "t"); !ok {
			t.Fatalf("create %s failed", threadID)
		}
	}
	if _, ok := svc.Create(ctx, "user-2", "thread-other", "t"); !ok {
		t.Fatal("create for second user failed")
	}

	// Touching thread-1 promotes it to the top of the list.
	if !svc.Touch(ctx, "thread-1") {
		t.Fatal("touch failed")
	}

	all := svc.List(ctx, "user-1", 0, 0)
	if len(all) != 3 {
		t.Fatalf("listed %d conversations, want 3", len(all))
	}
	if all[0].ThreadID != "thread-1" {
		t.Errorf("most recent = %q, want %q", all[0].ThreadID, "thread-1")
	}

	page := svc.List(ctx, "user-1", 2, 1)
	if len(page) != 2 {
		t.Errorf("page size = %d, want 2", len(page))
	}

	if got := svc.List(ctx, "user-2", 0, 0); len(got) != 1 {
		t.Errorf("second user sees %d conversations, want 1", len(got))
	}
	if got := svc.List(ctx, "", 0, 0); got != nil {
		t.Errorf("empty user ID must list nothing, got %v", got)
	}
}

func TestService_UpdateTitle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, ok := svc.Create(ctx, "user-1", "thread-1", "before"); !ok {
		t.Fatal("create failed")
	}
	if !svc.UpdateTitle(ctx, "thread-1", "after") {
		t.Fatal("update title failed")
	}

	got, ok := svc.Get(ctx, "thread-1")
	if !ok || got.Title != "after" {
		t.Errorf("Title = %q, want %q", got.Title, "after")
	}

	if svc.UpdateTitle(ctx, "no-such-thread", "x") {
		t.Error("updating unknown thread must report failure")
	}
}

func TestService_DeleteCascadesToStream(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	if _, ok := svc.Create(ctx, "user-1", "thread-1", "doomed"); !ok {
		t.Fatal("create failed")
	}
	if err := s.AppendEvent(ctx, "thread-1", "event-1"); err != nil {
		t.Fatalf("append event: %v", err)
	}

	if !svc.Delete(ctx, "thread-1") {
		t.Fatal("delete failed")
	}
	if _, ok := svc.Get(ctx, "thread-1"); ok {
		t.Error("conversation still present after delete")
	}

	events, err := s.Events(ctx, "thread-1")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("stream events survived the cascade: %v", events)
	}

	if svc.Delete(ctx, "no-such-thread") {
		t.Error("deleting unknown thread must report failure")
	}
}

func TestService_DisabledMode(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := conversation.NewService(nil, conversation.WithLogger(logger))
	ctx := context.Background()

	if svc.Enabled() {
		t.Fatal("expected disabled service")
	}
	if _, ok := svc.Create(ctx, "user-1", "thread-1", "t"); ok {
		t.Error("create must fail when disabled")
	}
	if _, ok := svc.Get(ctx, "thread-1"); ok {
		t.Error("get must fail when disabled")
	}
	if got := svc.List(ctx, "user-1", 0, 0); got != nil {
		t.Errorf("list must be empty when disabled, got %v", got)
	}
	if svc.UpdateTitle(ctx, "thread-1", "t") {
		t.Error("update must fail when disabled")
	}
	if svc.Touch(ctx, "thread-1") {
		t.Error("touch must fail when disabled")
	}
	if svc.Delete(ctx, "thread-1") {
		t.Error("delete must fail when disabled")
	}
}

func TestService_EmptyThreadID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, ok := svc.Create(ctx, "user-1", "", "t"); ok {
		t.Error("create with empty thread ID must fail")
	}
	if _, ok := svc.Get(ctx, ""); ok {
		t.Error("get with empty thread ID must fail")
	}
	if svc.Touch(ctx, "") {
		t.Error("touch with empty thread ID must fail")
	}
}
