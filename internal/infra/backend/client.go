// Package backend talks to the platform's REST API: quiz content on
// GET /quizzes/{id} and scoring on POST /quizzes/{id}/submit. Responses are
// passed through the normalizer, so the rest of the service only ever sees
// canonical quizzes.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/normalize"
)

// TokenProvider supplies the opaque bearer credential attached to every
// request. An empty string means unauthenticated.
type TokenProvider func() string

// Client is the HTTP client for the quiz backend.
type Client struct {
	base  string
	http  *http.Client
	token TokenProvider
	norm  *normalize.Normalizer
	log   *zap.Logger
}

func NewClient(base string, token TokenProvider, norm *normalize.Normalizer, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  base,
		http:  &http.Client{Timeout: 15 * time.Second},
		token: token,
		norm:  norm,
		log:   log,
	}
}

// LoadQuiz fetches and normalizes a quiz. Backend failures surface as typed
// APIErrors keyed by status code; malformed bodies degrade through the
// normalizer instead of failing.
func (c *Client) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quizID == "" {
		return domain.Quiz{}, &domain.APIError{Status: http.StatusBadRequest, Message: "no quiz id provided"}
	}

	url := fmt.Sprintf("%s/quizzes/%s", c.base, quizID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("build quiz request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Quiz{}, &domain.APIError{Status: 0, Message: "could not reach the quiz backend", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("quiz fetch rejected",
			zap.String("quizId", quizID), zap.Int("status", resp.StatusCode))
		return domain.Quiz{}, domain.NewAPIError(resp.StatusCode, nil)
	}

	var raw any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		// A body we cannot even parse degrades to defaults like any other
		// malformed payload.
		c.log.Warn("quiz body is not valid JSON, normalizing empty payload",
			zap.String("quizId", quizID), zap.Error(err))
		raw = nil
	}
	return c.norm.Quiz(raw), nil
}

// rawResult tolerates scoring responses with a missing or non-numeric score.
type rawResult struct {
	Score          *float64              `json:"score"`
	Passed         *bool                 `json:"passed"`
	CorrectAnswers int                   `json:"correctAnswers"`
	TotalQuestions int                   `json:"totalQuestions"`
	Answers        []domain.AnswerResult `json:"answers"`
	CompletedAt    time.Time             `json:"completedAt"`
}

// Score posts the attempt for grading. When the response omits the score but
// carries correct/total counts, the percentage is recomputed client-side
// rather than surfacing an error.
func (c *Client) Score(ctx context.Context, quiz domain.Quiz, attempt domain.Attempt) (domain.Result, error) {
	body, err := json.Marshal(attempt)
	if err != nil {
		return domain.Result{}, fmt.Errorf("encode attempt: %w", err)
	}

	url := fmt.Sprintf("%s/quizzes/%s/submit", c.base, attempt.QuizID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.Result{}, fmt.Errorf("build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.Result{}, &domain.APIError{Status: 0, Message: "could not reach the quiz backend", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn("attempt submission rejected",
			zap.String("quizId", attempt.QuizID), zap.Int("status", resp.StatusCode))
		return domain.Result{}, domain.NewAPIError(resp.StatusCode, nil)
	}

	var raw rawResult
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.Result{}, fmt.Errorf("decode result: %w", err)
	}
	return c.buildResult(quiz, raw), nil
}

func (c *Client) buildResult(quiz domain.Quiz, raw rawResult) domain.Result {
	score := 0
	switch {
	case raw.Score != nil && !math.IsNaN(*raw.Score):
		score = int(math.Round(*raw.Score))
	case raw.TotalQuestions > 0:
		score = int(math.Round(float64(raw.CorrectAnswers) / float64(raw.TotalQuestions) * 100))
		c.log.Warn("score missing from result, recomputed from counts",
			zap.String("quizId", quiz.ID), zap.Int("score", score))
	default:
		c.log.Warn("score missing from result and no counts to recompute it",
			zap.String("quizId", quiz.ID))
	}

	passed := score >= quiz.Settings.PassingScore
	if raw.Passed != nil {
		passed = *raw.Passed
	}

	completedAt := raw.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now()
	}

	return domain.Result{
		Score:          score,
		Passed:         passed,
		CorrectAnswers: raw.CorrectAnswers,
		TotalQuestions: raw.TotalQuestions,
		Answers:        raw.Answers,
		CompletedAt:    completedAt,
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token == nil {
		return
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
