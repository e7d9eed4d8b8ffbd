package redis

import (
	"context"
	"testing"
	"time"

	"ai-quiz-service/internal/app"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)

	store.Put(app.NewSession("session-1"))
	if !mr.Exists("quiz:session:session-1") {
		t.Fatalf("expected redis key to be set")
	}
	if _, ok := store.Get("session-1"); !ok {
		t.Fatalf("expected session present")
	}
	live, err := store.Live(context.Background())
	if err != nil || live != 1 {
		t.Fatalf("expected 1 live session, got %d (%v)", live, err)
	}

	store.Delete("session-1")
	if mr.Exists("quiz:session:session-1") {
		t.Fatalf("expected redis key to be removed")
	}
	if _, ok := store.Get("session-1"); ok {
		t.Fatalf("expected session removed")
	}
}

func TestSessionStoreRefreshesLiveness(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(newClient(mr), time.Minute)
	store.Put(app.NewSession("session-1"))

	mr.FastForward(50 * time.Second)
	store.Get("session-1")
	mr.FastForward(50 * time.Second)

	if !mr.Exists("quiz:session:session-1") {
		t.Fatalf("expected access to extend the liveness marker")
	}
}
