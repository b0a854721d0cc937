package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"practice_mentor/internal/common"
	"practice_mentor/internal/domain/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRateLimitFixedWindow(t *testing.T) {
	mr, rdb := newTestRedis(t)
	limiter := NewRateLimitService(rdb, time.Minute, time.Second)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := limiter.Allow(ctx, "ratelimit:submission:u1", 3, time.Minute); err != nil {
			t.Fatalf("call %d: unexpected error %v", i+1, err)
		}
	}
	if err := limiter.Allow(ctx, "ratelimit:submission:u1", 3, time.Minute); !errors.Is(err, common.ErrTooManyRequests) {
		t.Fatalf("expected ErrTooManyRequests, got %v", err)
	}
	if err := limiter.Allow(ctx, "ratelimit:submission:u2", 3, time.Minute); err != nil {
		t.Fatalf("other users must not share the window: %v", err)
	}

	mr.FastForward(61 * time.Second)
	if err := limiter.Allow(ctx, "ratelimit:submission:u1", 3, time.Minute); err != nil {
		t.Fatalf("expected new window to admit, got %v", err)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	limiter := NewRateLimitService(nil, time.Minute, time.Second)
	if err := limiter.Allow(context.Background(), "k", 0, time.Minute); err != nil {
		t.Fatalf("max <= 0 disables limiting, got %v", err)
	}
	if err := limiter.Allow(context.Background(), "k", 1, time.Minute); !errors.Is(err, common.ErrServiceUnavailable) {
		t.Fatalf("expected ErrServiceUnavailable without a store, got %v", err)
	}
}

func TestProgressNotifierQueuesOncePerSubmission(t *testing.T) {
	mr, rdb := newTestRedis(t)
	n := NewProgressNotifier(rdb, "progress_events_queue", time.Hour)
	ctx := context.Background()
	ev := model.ProgressEvent{
		UserID:          "u1",
		ProblemID:       "p-add",
		SubmissionID:    "s1",
		FirstAcceptedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	if err := n.NotifyAccepted(ctx, ev); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := n.NotifyAccepted(ctx, ev); err != nil {
		t.Fatalf("duplicate notify should be a no-op, got %v", err)
	}

	items, err := mr.List("progress_events_queue")
	if err != nil {
		t.Fatalf("queue missing: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 queued event, got %d", len(items))
	}
	var got model.ProgressEvent
	if err := json.Unmarshal([]byte(items[0]), &got); err != nil {
		t.Fatalf("queued payload is not JSON: %v", err)
	}
	if got.SubmissionID != "s1" || !got.FirstAcceptedAt.Equal(ev.FirstAcceptedAt) {
		t.Fatalf("unexpected queued event %+v", got)
	}
	if !mr.Exists(progressDedupePrefix + "s1") {
		t.Fatalf("expected dedupe key")
	}
}

func TestHistoryStoreCapsAndScopes(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewHistoryStore(rdb, 4, time.Hour)
	ctx := context.Background()
	scope := model.Scope{Kind: model.ScopeProblem, ID: "p-add"}

	for i, c := range []string{"q1", "a1", "q2", "a2", "q3", "a3"} {
		role := model.RoleLearner
		if i%2 == 1 {
			role = model.RoleMentor
		}
		if err := store.Append(ctx, "u1", scope, model.Turn{Role: role, Content: c}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	h, err := store.Load(ctx, "u1", scope)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	turns := h.Turns()
	if len(turns) != 4 || turns[0].Content != "q2" || turns[3].Content != "a3" {
		t.Fatalf("expected last 4 turns, got %+v", turns)
	}
	if !h.Scope().Same(scope) {
		t.Fatalf("history must carry its scope")
	}

	other, err := store.Load(ctx, "u1", model.Scope{Kind: model.ScopeLesson, ID: "p-add"})
	if err != nil {
		t.Fatalf("load other scope: %v", err)
	}
	if other.Len() != 0 {
		t.Fatalf("another scope must start empty, got %d turns", other.Len())
	}

	mr.FastForward(2 * time.Hour)
	expired, _ := store.Load(ctx, "u1", scope)
	if expired.Len() != 0 {
		t.Fatalf("expected history to expire")
	}
}

func TestHistoryStoreKeysScopesExactly(t *testing.T) {
	_, rdb := newTestRedis(t)
	store := NewHistoryStore(rdb, 4, time.Hour)
	ctx := context.Background()

	upper := model.Scope{Kind: model.ScopeProblem, ID: "P1"}
	if err := store.Append(ctx, "u1", upper, model.Turn{Role: model.RoleLearner, Content: "q1"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	for _, id := range []string{"p1", "P-1"} {
		h, err := store.Load(ctx, "u1", model.Scope{Kind: model.ScopeProblem, ID: id})
		if err != nil {
			t.Fatalf("load %s: %v", id, err)
		}
		if h.Len() != 0 {
			t.Fatalf("expected %s to have its own history, got %d turns", id, h.Len())
		}
	}
	h, _ := store.Load(ctx, "u1", upper)
	if h.Len() != 1 {
		t.Fatalf("expected 1 turn under P1, got %d", h.Len())
	}
}

func TestHistoryStoreRejectsInvalidScope(t *testing.T) {
	mr, rdb := newTestRedis(t)
	store := NewHistoryStore(rdb, 4, time.Hour)
	ctx := context.Background()
	tests := []struct {
		name   string
		userID string
		scope  model.Scope
	}{
		{name: "unknown kind", userID: "u1", scope: model.Scope{Kind: "course", ID: "x"}},
		{name: "blank id", userID: "u1", scope: model.Scope{Kind: model.ScopeLesson, ID: " "}},
		{name: "no user", userID: "", scope: model.Scope{Kind: model.ScopeLesson, ID: "loops-101"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Append(ctx, tt.userID, tt.scope, model.Turn{Role: model.RoleLearner, Content: "q"})
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("expected ErrValidation on append, got %v", err)
			}
			if _, err := store.Load(ctx, tt.userID, tt.scope); !errors.Is(err, common.ErrValidation) {
				t.Fatalf("expected ErrValidation on load, got %v", err)
			}
		})
	}
	if keys := mr.Keys(); len(keys) != 0 {
		t.Fatalf("invalid scopes must not write to redis, got %v", keys)
	}
}
