// Package scoring grades attempts locally. It serves deployments without a
// scoring backend and keeps the session flow testable; when a backend is
// configured, grading happens there instead.
package scoring

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"quiz-session-service/internal/domain"
)

// Grader scores an attempt against the quiz's correct answers.
type Grader struct {
	now func() time.Time
}

func NewGrader() *Grader {
	return &Grader{now: time.Now}
}

// NewGraderWithClock is test-only for deterministic completion timestamps.
func NewGraderWithClock(now func() time.Time) *Grader {
	return &Grader{now: now}
}

// Score grades every question in the quiz. Unanswered questions count as
// incorrect. The percentage is points-weighted; passed compares it against
// the quiz's passing score.
func (g *Grader) Score(_ context.Context, quiz domain.Quiz, attempt domain.Attempt) (domain.Result, error) {
	given := make(map[string]domain.Answer, len(attempt.Answers))
	for _, a := range attempt.Answers {
		given[a.QuestionID] = a.Answer
	}

	var earned, possible, correctCount int
	breakdown := make([]domain.AnswerResult, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		points := q.Points
		if points == 0 {
			points = 1
		}
		possible += points

		answer, answered := given[q.ID]
		correct := answered && answerMatches(q, answer)
		awarded := 0
		if correct {
			awarded = points
			earned += points
			correctCount++
		}
		breakdown = append(breakdown, domain.AnswerResult{
			QuestionID: q.ID,
			Correct:    correct,
			Awarded:    awarded,
		})
	}

	score := 0
	if possible > 0 {
		score = int(math.Round(float64(earned) / float64(possible) * 100))
	}

	return domain.Result{
		Score:          score,
		Passed:         score >= quiz.Settings.PassingScore,
		CorrectAnswers: correctCount,
		TotalQuestions: len(quiz.Questions),
		Answers:        breakdown,
		CompletedAt:    g.now(),
	}, nil
}

// answerMatches compares a given answer against the question's correct-answer
// set. Choice questions need the exact set of option IDs; text answers match
// any accepted value, ignoring case and surrounding whitespace.
func answerMatches(q domain.Question, answer domain.Answer) bool {
	if len(q.CorrectAnswers) == 0 {
		return false
	}
	if q.Type.Choice() {
		var given []string
		if answer.Multi {
			given = answer.Values
		} else {
			given = []string{answer.Value}
		}
		return sameSet(given, q.CorrectAnswers)
	}
	value := strings.TrimSpace(answer.Value)
	for _, accepted := range q.CorrectAnswers {
		if strings.EqualFold(value, strings.TrimSpace(accepted)) {
			return true
		}
	}
	return false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
