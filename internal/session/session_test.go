package session

import (
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

func timedQuiz(questions int, limitMinutes int) domain.Quiz {
	quiz := domain.Quiz{
		ID:        "quiz-1",
		Title:     "Timed",
		Published: true,
		Settings:  domain.Settings{TimeLimit: limitMinutes, PassingScore: 70},
	}
	for i := 0; i < questions; i++ {
		quiz.Questions = append(quiz.Questions, domain.Question{
			ID:   "q" + string(rune('1'+i)),
			Type: domain.SingleChoice,
			Options: []domain.Option{
				{ID: "o1", Correct: true},
				{ID: "o2"},
			},
			CorrectAnswers: []string{"o1"},
			Points:         1,
		})
	}
	return quiz
}

func TestInitializeDerivesRemainingFromTimeLimit(t *testing.T) {
	s := New(timedQuiz(2, 3), "u1")
	remaining := s.Remaining()
	if remaining == nil || *remaining != 180 {
		t.Fatalf("expected remaining 180s for a 3 minute limit, got %v", remaining)
	}

	untimed := New(timedQuiz(2, 0), "u1")
	if untimed.Remaining() != nil {
		t.Fatalf("expected nil remaining for untimed quiz")
	}
	if untimed.Tick() {
		t.Fatalf("untimed session must never tick")
	}
}

func TestAdvanceClampsAtLastQuestion(t *testing.T) {
	s := New(timedQuiz(3, 0), "u1")

	for i := 0; i < 3; i++ {
		s.Advance()
	}
	if got := s.Index(); got != 2 {
		t.Fatalf("expected index clamped to 2, got %d", got)
	}

	s.Retreat()
	s.Retreat()
	s.Retreat()
	if got := s.Index(); got != 0 {
		t.Fatalf("expected index clamped to 0, got %d", got)
	}

	s.JumpTo(99)
	if got := s.Index(); got != 2 {
		t.Fatalf("expected jump clamped to 2, got %d", got)
	}
}

func TestHasAnsweredCurrent(t *testing.T) {
	s := New(timedQuiz(2, 0), "u1")

	if s.Snapshot().HasAnsweredCurrent {
		t.Fatalf("expected unanswered question")
	}

	s.RecordAnswer("q1", domain.SingleAnswer("o1"))
	if !s.Snapshot().HasAnsweredCurrent {
		t.Fatalf("expected single answer to count")
	}

	s.Advance()
	s.RecordAnswer("q2", domain.MultiAnswer())
	if s.Snapshot().HasAnsweredCurrent {
		t.Fatalf("empty multi-select must not count as answered")
	}

	s.RecordAnswer("q2", domain.MultiAnswer("o1", "o2"))
	if !s.Snapshot().HasAnsweredCurrent {
		t.Fatalf("non-empty multi-select must count as answered")
	}
}

func TestTickCountsDownAndFiresExpiryOnce(t *testing.T) {
	s := New(timedQuiz(1, 1), "u1")

	expires := 0
	s.SetOnExpire(func() { expires++ })

	for i := 0; i < 59; i++ {
		if !s.Tick() {
			t.Fatalf("tick %d should continue", i)
		}
	}
	if remaining := s.Remaining(); remaining == nil || *remaining != 1 {
		t.Fatalf("expected 1s left, got %v", remaining)
	}

	if s.Tick() {
		t.Fatalf("final tick should stop the countdown")
	}
	if expires != 1 {
		t.Fatalf("expected exactly one expiry, got %d", expires)
	}

	// A stray extra tick must not fire again.
	s.Tick()
	if expires != 1 {
		t.Fatalf("expiry fired twice")
	}
}

func TestSubmitLatchBlocksSecondSubmitter(t *testing.T) {
	s := New(timedQuiz(1, 1), "u1")

	if !s.BeginSubmit() {
		t.Fatalf("first submitter should win the latch")
	}
	if s.BeginSubmit() {
		t.Fatalf("second submitter must be blocked while in flight")
	}

	// A failed attempt releases the latch so the user can retry.
	s.FailSubmit()
	if !s.BeginSubmit() {
		t.Fatalf("latch must be free after a failed submission")
	}

	if !s.CompleteSubmit(domain.Result{Score: 100, Passed: true}) {
		t.Fatalf("expected result committed")
	}
	if s.BeginSubmit() {
		t.Fatalf("no submissions after a committed result")
	}
}

func TestTimerStopsTickingDuringSubmission(t *testing.T) {
	s := New(timedQuiz(1, 1), "u1")

	if !s.BeginSubmit() {
		t.Fatalf("latch")
	}
	if s.Tick() {
		t.Fatalf("timer must not tick once submission begins")
	}
}

func TestBuildAttemptAggregatesTimeSpent(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s := NewWithClock(timedQuiz(2, 1), "u1", func() time.Time { return now })

	s.RecordAnswer("q1", domain.SingleAnswer("o1"))
	s.RecordAnswer("q2", domain.SingleAnswer("o2"))

	for i := 0; i < 50; i++ {
		s.Tick()
	}

	attempt := s.BuildAttempt("test-agent")
	if attempt.TimeSpent != 50 {
		t.Fatalf("expected 50s spent, got %d", attempt.TimeSpent)
	}
	if len(attempt.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(attempt.Answers))
	}
	if attempt.Answers[0].QuestionID != "q1" || attempt.Answers[1].QuestionID != "q2" {
		t.Fatalf("answers must follow question order: %+v", attempt.Answers)
	}
	if attempt.Metadata["device"] != "test-agent" {
		t.Fatalf("expected device metadata, got %v", attempt.Metadata)
	}
	if !attempt.CompletedAt.Equal(now) {
		t.Fatalf("expected clock timestamp, got %v", attempt.CompletedAt)
	}
}

func TestResetRestoresFullState(t *testing.T) {
	s := New(timedQuiz(2, 1), "u1")

	s.RecordAnswer("q1", domain.SingleAnswer("o1"))
	s.Advance()
	for i := 0; i < 10; i++ {
		s.Tick()
	}
	s.BeginSubmit()
	s.CompleteSubmit(domain.Result{Score: 50})

	s.Reset()

	snap := s.Snapshot()
	if snap.Result != nil {
		t.Fatalf("reset must clear the result")
	}
	if snap.AnsweredCount != 0 {
		t.Fatalf("reset must clear answers, got %d", snap.AnsweredCount)
	}
	if snap.CurrentIndex != 0 {
		t.Fatalf("reset must restore index 0, got %d", snap.CurrentIndex)
	}
	if snap.Remaining == nil || *snap.Remaining != 60 {
		t.Fatalf("reset must restore the full time limit, got %v", snap.Remaining)
	}
}

func TestCloseDiscardsLateResults(t *testing.T) {
	s := New(timedQuiz(1, 0), "u1")

	s.BeginSubmit()
	s.Close()

	if s.CompleteSubmit(domain.Result{Score: 100}) {
		t.Fatalf("results arriving after close must be discarded")
	}
	if s.Result() != nil {
		t.Fatalf("closed session must not hold a result")
	}
}

func TestSubscribeReceivesSnapshots(t *testing.T) {
	s := New(timedQuiz(2, 0), "u1")

	ch, cancel := s.Subscribe()
	defer cancel()

	initial := <-ch
	if initial.TotalQuestions != 2 || initial.CurrentIndex != 0 {
		t.Fatalf("unexpected initial snapshot: %+v", initial)
	}

	s.RecordAnswer("q1", domain.SingleAnswer("o1"))
	update := <-ch
	if update.AnsweredCount != 1 {
		t.Fatalf("expected answered count 1, got %+v", update)
	}

	s.Advance()
	update = <-ch
	if update.CurrentIndex != 1 || !update.IsLastQuestion {
		t.Fatalf("expected last question snapshot, got %+v", update)
	}
	if update.ProgressPercent != 100 {
		t.Fatalf("expected progress 100, got %v", update.ProgressPercent)
	}
}
