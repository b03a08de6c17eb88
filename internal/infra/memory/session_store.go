package memory

import (
	"sync"

	"quiz-session-service/internal/session"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by quiz/user pair.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*session.Session),
	}
}

func (s *SessionStore) Put(key string, sess *session.Session) {
	s.mu.Lock()
	s.sessions[key] = sess
	s.mu.Unlock()
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
}
