package memory

import (
	"testing"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/session"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	store := NewSessionStore()
	sess := session.New(domain.Quiz{ID: "quiz-1"}, "u1")

	if _, ok := store.Get("quiz-1/u1"); ok {
		t.Fatal("expected miss on empty store")
	}

	store.Put("quiz-1/u1", sess)
	got, ok := store.Get("quiz-1/u1")
	if !ok || got != sess {
		t.Fatalf("expected stored session back, got %v ok=%v", got, ok)
	}

	store.Delete("quiz-1/u1")
	if _, ok := store.Get("quiz-1/u1"); ok {
		t.Fatal("expected miss after delete")
	}
}
