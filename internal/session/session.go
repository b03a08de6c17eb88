// Package session holds the ephemeral state of one in-progress quiz attempt:
// current question index, recorded answers, the countdown and the final
// result. A Session is owned by a single quiz view; once closed, late fetch
// or submit results are discarded instead of mutating it.
package session

import (
	"sync"
	"time"

	"quiz-session-service/internal/domain"
)

// TickInterval is the countdown resolution. Grading does not depend on exact
// client timing, so a plain one-second ticker without drift correction is
// enough.
const TickInterval = time.Second

// Snapshot is a consistent read of the session for transports and embedding
// views. Derived values are computed here, never stored.
type Snapshot struct {
	QuizID             string         `json:"quizId"`
	UserID             string         `json:"userId"`
	CurrentIndex       int            `json:"currentIndex"`
	TotalQuestions     int            `json:"totalQuestions"`
	ProgressPercent    float64        `json:"progressPercent"`
	IsLastQuestion     bool           `json:"isLastQuestion"`
	HasAnsweredCurrent bool           `json:"hasAnsweredCurrent"`
	AnsweredCount      int            `json:"answeredCount"`
	Remaining          *int           `json:"remaining,omitempty"` // seconds; nil when untimed
	Submitting         bool           `json:"submitting"`
	Result             *domain.Result `json:"result,omitempty"`
}

// Session is the single source of truth for an in-progress attempt. All
// mutations go through the mutex; the timer's decrement-and-check-zero and
// the submit latch are atomic from the caller's perspective.
type Session struct {
	mu          sync.Mutex
	quiz        domain.Quiz
	userID      string
	index       int
	answers     map[string]domain.Answer
	remaining   *int // seconds; nil means untimed
	submitting  bool
	result      *domain.Result
	expired     bool
	closed      bool
	startedAt   time.Time
	now         func() time.Time
	timerStop   chan struct{}
	onExpire    func()
	subscribers map[chan Snapshot]struct{}
}

// New creates a session for the given quiz and user.
func New(quiz domain.Quiz, userID string) *Session {
	return NewWithClock(quiz, userID, time.Now)
}

// NewWithClock is test-only for deterministic timestamps.
func NewWithClock(quiz domain.Quiz, userID string, now func() time.Time) *Session {
	s := &Session{
		userID:      userID,
		now:         now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	s.mu.Lock()
	s.initializeLocked(quiz)
	s.mu.Unlock()
	return s
}

// SetOnExpire registers the auto-submit hook fired exactly once when the
// countdown reaches zero. Must be set before StartTimer.
func (s *Session) SetOnExpire(fn func()) {
	s.mu.Lock()
	s.onExpire = fn
	s.mu.Unlock()
}

// initializeLocked resets the session around a quiz: index 0, answers and
// result cleared, remaining time derived from the time limit.
func (s *Session) initializeLocked(quiz domain.Quiz) {
	s.quiz = quiz
	s.index = 0
	s.answers = make(map[string]domain.Answer)
	s.result = nil
	s.expired = false
	s.submitting = false
	s.startedAt = s.now()
	if limit := quiz.Settings.TimeLimit; limit > 0 {
		seconds := limit * 60
		s.remaining = &seconds
	} else {
		s.remaining = nil
	}
}

// Reset re-runs initialization with the currently loaded quiz, discarding
// in-progress answers and any result. Used for retries. The timer stops; the
// caller restarts it for the fresh attempt.
func (s *Session) Reset() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.initializeLocked(s.quiz)
	s.broadcastLocked()
	s.mu.Unlock()
}

// RecordAnswer upserts the answer for a question. Correctness is not
// validated here; scoring happens at submit time.
func (s *Session) RecordAnswer(questionID string, answer domain.Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.result != nil {
		return
	}
	s.answers[questionID] = answer
	s.broadcastLocked()
}

// Advance moves to the next question, staying in bounds.
func (s *Session) Advance() {
	s.JumpTo(s.Index() + 1)
}

// Retreat moves to the previous question, staying in bounds.
func (s *Session) Retreat() {
	s.JumpTo(s.Index() - 1)
}

// JumpTo clamps the index into [0, totalQuestions-1]. Out-of-range jumps are
// boundary no-ops, not errors.
func (s *Session) JumpTo(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	last := len(s.quiz.Questions) - 1
	if last < 0 {
		last = 0
	}
	if index < 0 {
		index = 0
	}
	if index > last {
		index = last
	}
	if index == s.index {
		return
	}
	s.index = index
	s.broadcastLocked()
}

// Index returns the current question index.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Quiz returns the quiz this session runs.
func (s *Session) Quiz() domain.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quiz
}

// Remaining reports the countdown in seconds, or nil for untimed quizzes.
func (s *Session) Remaining() *int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining == nil {
		return nil
	}
	v := *s.remaining
	return &v
}

// Result returns the finalized result, or nil before submission completes.
func (s *Session) Result() *domain.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// StartTimer launches the one-second countdown goroutine. No-op for untimed
// quizzes, closed sessions, or when a timer is already running.
func (s *Session) StartTimer() {
	s.mu.Lock()
	if s.remaining == nil || s.timerStop != nil || s.closed || s.result != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.timerStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if !s.Tick() {
					return
				}
			}
		}
	}()
}

// Tick decrements the countdown by one second, floored at zero, and fires the
// expiry hook exactly once when zero is reached. Exported so tests can drive
// the countdown synchronously; the ticker goroutine is just a Tick loop.
// Returns false once ticking should cease.
func (s *Session) Tick() bool {
	s.mu.Lock()
	if s.remaining == nil || s.closed || s.submitting || s.result != nil || s.expired {
		s.mu.Unlock()
		return false
	}
	if *s.remaining > 0 {
		*s.remaining--
	}
	fireExpire := *s.remaining == 0 && !s.expired
	if fireExpire {
		s.expired = true
	}
	s.broadcastLocked()
	onExpire := s.onExpire
	s.mu.Unlock()

	if fireExpire {
		if onExpire != nil {
			onExpire()
		}
		return false
	}
	return true
}

// StopTimer halts the countdown goroutine if one is running.
func (s *Session) StopTimer() {
	s.mu.Lock()
	s.stopTimerLocked()
	s.mu.Unlock()
}

func (s *Session) stopTimerLocked() {
	if s.timerStop != nil {
		close(s.timerStop)
		s.timerStop = nil
	}
}

// BeginSubmit acquires the submission latch. It returns false when a
// submission is already in flight or finished, which is what keeps a manual
// finish and the timer expiry from double-submitting.
func (s *Session) BeginSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.submitting || s.result != nil {
		return false
	}
	s.submitting = true
	s.stopTimerLocked()
	s.broadcastLocked()
	return true
}

// FailSubmit releases the latch after a failed submission, leaving the
// session in its pre-submit shape so the user can retry.
func (s *Session) FailSubmit() {
	s.mu.Lock()
	s.submitting = false
	s.broadcastLocked()
	s.mu.Unlock()
}

// CompleteSubmit stores the result and finalizes the session. Results arriving
// after Close are discarded; it reports whether the result was committed.
func (s *Session) CompleteSubmit(result domain.Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.result = &result
	s.submitting = false
	s.stopTimerLocked()
	s.broadcastLocked()
	return true
}

// BuildAttempt packages the current answers into an immutable submission
// payload. Answers follow question order; aggregate time spent is the elapsed
// share of the time limit, zero for untimed quizzes.
func (s *Session) BuildAttempt(device string) domain.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	answers := make([]domain.AttemptAnswer, 0, len(s.answers))
	for _, q := range s.quiz.Questions {
		answer, ok := s.answers[q.ID]
		if !ok {
			continue
		}
		answers = append(answers, domain.AttemptAnswer{
			QuestionID: q.ID,
			Answer:     answer,
			Timestamp:  now,
			TimeSpent:  0,
		})
	}

	timeSpent := 0
	if limit := s.quiz.Settings.TimeLimit; limit > 0 && s.remaining != nil {
		timeSpent = limit*60 - *s.remaining
		if timeSpent < 0 {
			timeSpent = 0
		}
	}

	metadata := map[string]string{}
	if device != "" {
		metadata["device"] = device
	}

	return domain.Attempt{
		QuizID:      s.quiz.ID,
		UserID:      s.userID,
		Answers:     answers,
		TimeSpent:   timeSpent,
		Metadata:    metadata,
		StartedAt:   s.startedAt,
		CompletedAt: now,
	}
}

// Close tears the session down: the timer stops and any in-flight responses
// are ignored from here on.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.stopTimerLocked()
	s.mu.Unlock()
}

// Subscribe returns a channel receiving state snapshots after every mutation
// and timer tick. The caller must invoke the cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	total := len(s.quiz.Questions)
	snap := Snapshot{
		QuizID:         s.quiz.ID,
		UserID:         s.userID,
		CurrentIndex:   s.index,
		TotalQuestions: total,
		AnsweredCount:  len(s.answers),
		Submitting:     s.submitting,
		Result:         s.result,
	}
	if total > 0 {
		snap.ProgressPercent = float64(s.index+1) / float64(total) * 100
		snap.IsLastQuestion = s.index == total-1
		current := s.quiz.Questions[s.index]
		if answer, ok := s.answers[current.ID]; ok {
			snap.HasAnsweredCurrent = answer.Answered()
		}
	}
	if s.remaining != nil {
		v := *s.remaining
		snap.Remaining = &v
	}
	return snap
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow consumer never blocks mutations.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
