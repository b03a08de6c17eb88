package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/session"
)

// SessionRepository abstracts how live sessions are stored (in-memory, Redis, etc).
type SessionRepository interface {
	Put(key string, s *session.Session)
	Get(key string) (*session.Session, bool)
	Delete(key string)
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// Scorer grades a finished attempt. Either the remote backend or the local
// grader.
type Scorer interface {
	Score(ctx context.Context, quiz domain.Quiz, attempt domain.Attempt) (domain.Result, error)
}

// autoSubmitTimeout bounds the scoring call made on behalf of an expired
// countdown, which runs without a caller context.
const autoSubmitTimeout = 30 * time.Second

// SessionService drives the quiz session lifecycle: start, answer, navigate,
// finish, reset. One live attempt per quiz/user pair.
type SessionService struct {
	sessions   SessionRepository
	quizzes    QuizRepository
	scorer     Scorer
	log        *zap.Logger
	onComplete func(quizID, userID string, result domain.Result)
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository, scorer Scorer, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SessionService{
		sessions: sessions,
		quizzes:  quizzes,
		scorer:   scorer,
		log:      log,
	}
}

// SetOnComplete registers a callback invoked after a result is committed,
// whether by manual finish or timer expiry.
func (s *SessionService) SetOnComplete(fn func(quizID, userID string, result domain.Result)) {
	s.onComplete = fn
}

func sessionKey(quizID, userID string) string {
	return quizID + "/" + userID
}

// Start loads the quiz and creates (or resumes) the session for this user.
// The countdown starts immediately for timed quizzes.
func (s *SessionService) Start(ctx context.Context, quizID, userID string) (*session.Session, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}

	key := sessionKey(quizID, userID)
	if existing, ok := s.sessions.Get(key); ok {
		return existing, nil
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if !quiz.Published {
		return nil, domain.NewAPIError(http.StatusForbidden, nil)
	}

	sess := session.New(quiz, userID)
	sess.SetOnExpire(func() {
		s.autoSubmit(quizID, userID)
	})
	s.sessions.Put(key, sess)
	sess.StartTimer()

	s.log.Info("session started",
		zap.String("quizId", quizID), zap.String("userId", userID),
		zap.Int("questions", len(quiz.Questions)))
	return sess, nil
}

// Get returns the live session for a quiz/user pair.
func (s *SessionService) Get(quizID, userID string) (*session.Session, error) {
	sess, ok := s.sessions.Get(sessionKey(quizID, userID))
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Answer records a response. Correctness is not checked here.
func (s *SessionService) Answer(quizID, userID, questionID string, answer domain.Answer) error {
	sess, err := s.Get(quizID, userID)
	if err != nil {
		return err
	}
	sess.RecordAnswer(questionID, answer)
	return nil
}

// Finish runs the submission pipeline: build the attempt, score it, commit
// the result and stop the countdown. The submitting latch makes this safe to
// call from both the finish action and the timer expiry; only the first
// caller submits, later ones get the committed result (or nil while the
// first is still in flight).
func (s *SessionService) Finish(ctx context.Context, quizID, userID, device string) (*domain.Result, error) {
	sess, err := s.Get(quizID, userID)
	if err != nil {
		return nil, err
	}

	if !sess.BeginSubmit() {
		return sess.Result(), nil
	}

	committed := false
	defer func() {
		if !committed {
			sess.FailSubmit()
		}
	}()

	attempt := sess.BuildAttempt(device)
	result, err := s.scorer.Score(ctx, sess.Quiz(), attempt)
	if err != nil {
		s.log.Warn("attempt scoring failed",
			zap.String("quizId", quizID), zap.String("userId", userID), zap.Error(err))
		return nil, err
	}

	if !sess.CompleteSubmit(result) {
		// Session was torn down while the scoring call was in flight; the
		// late result is discarded.
		committed = true
		return nil, nil
	}
	committed = true

	s.log.Info("attempt submitted",
		zap.String("quizId", quizID), zap.String("userId", userID),
		zap.Int("score", result.Score), zap.Bool("passed", result.Passed))
	if s.onComplete != nil {
		s.onComplete(quizID, userID, result)
	}
	return &result, nil
}

// autoSubmit is the timer expiry hook.
func (s *SessionService) autoSubmit(quizID, userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), autoSubmitTimeout)
	defer cancel()

	if _, err := s.Finish(ctx, quizID, userID, "timer"); err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
		s.log.Warn("auto-submit failed",
			zap.String("quizId", quizID), zap.String("userId", userID), zap.Error(err))
	}
}

// Reset discards answers and any result and restores the full time limit,
// for retries.
func (s *SessionService) Reset(quizID, userID string) error {
	sess, err := s.Get(quizID, userID)
	if err != nil {
		return err
	}
	if !sess.Quiz().Settings.AllowRetries && sess.Result() != nil {
		return domain.ErrAlreadySubmitted
	}
	sess.Reset()
	sess.StartTimer()
	return nil
}

// Close tears the session down and forgets it. In-flight responses for it are
// ignored afterwards.
func (s *SessionService) Close(quizID, userID string) {
	key := sessionKey(quizID, userID)
	if sess, ok := s.sessions.Get(key); ok {
		sess.Close()
		s.sessions.Delete(key)
	}
}
