package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/normalize"
)

// QuizLoader loads quiz JSONB documents from Postgres. Documents are stored
// raw, in whatever shape they arrived, and normalized on the way out.
type QuizLoader struct {
	pool *pgxpool.Pool
	norm *normalize.Normalizer
}

func NewQuizLoader(pool *pgxpool.Pool, norm *normalize.Normalizer) *QuizLoader {
	return &QuizLoader{pool: pool, norm: norm}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("load quiz: %w", err)
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		payload = nil
	}
	return l.norm.Quiz(payload), nil
}
