package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-session-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store.
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches whole canonical quiz documents in Redis and falls
// back to a loader on cache miss. Stored as: SET quiz:{quizID}:doc {json}
// with the freshness window as TTL, so expiry is enforced by Redis instead of
// a lazy read-side check.
type QuizRepository struct {
	client *redis.Client
	loader QuizLoader
	window time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuizRepository(client *redis.Client, loader QuizLoader, window time.Duration) *QuizRepository {
	return &QuizRepository{
		client: client,
		loader: loader,
		window: window,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	key := r.docKey(quizID)

	if quiz, ok := r.lookup(ctx, key); ok {
		return quiz, nil
	}

	result, err, _ := r.sf.Do(quizID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := r.lookup(ctx, key); ok {
			return quiz, nil
		}

		quiz, err := r.loader.LoadQuiz(ctx, quizID)
		if err != nil {
			return domain.Quiz{}, err
		}

		if doc, err := json.Marshal(quiz); err == nil {
			// Best-effort: a failed cache write must not fail the fetch.
			_ = r.client.Set(ctx, key, doc, r.windowWithJitter()).Err()
		}
		return quiz, nil
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return result.(domain.Quiz), nil
}

func (r *QuizRepository) lookup(ctx context.Context, key string) (domain.Quiz, bool) {
	doc, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return domain.Quiz{}, false
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(doc, &quiz); err != nil {
		return domain.Quiz{}, false
	}
	return quiz, true
}

func (r *QuizRepository) docKey(quizID string) string {
	return "quiz:" + quizID + ":doc"
}

// windowWithJitter stretches the TTL by up to 10%. Loads for different quiz
// ids run concurrently, so the generator gets its own lock.
func (r *QuizRepository) windowWithJitter() time.Duration {
	if r.window <= 0 {
		return 0
	}
	jitterMax := int64(r.window) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.window + time.Duration(r.rnd.Int63n(jitterMax+1))
}
