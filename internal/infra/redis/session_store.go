package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"quiz-session-service/internal/session"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Sessions themselves stay in a local map: the timer goroutine and the
//     submit latch are in-process state and cannot move to Redis wholesale.
//   - Redis marks session liveness per quiz/user key, which lets operators
//     see active attempts and could seed cross-instance handoff later.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*session.Session),
	}
}

func (s *SessionStore) Put(key string, sess *session.Session) {
	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(key), "1", s.ttl).Err()
}

func (s *SessionStore) Get(key string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key]
	return sess, ok
}

func (s *SessionStore) Delete(key string) {
	s.mu.Lock()
	delete(s.sessions, key)
	s.mu.Unlock()
	_ = s.client.Del(context.Background(), s.key(key)).Err()
}

func (s *SessionStore) key(key string) string {
	return "quiz:session:" + key
}
