package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-session-service/internal/domain"
)

type countingLoader struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (l *countingLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.fail != nil {
		return domain.Quiz{}, l.fail
	}
	return domain.Quiz{ID: quizID, Title: "cached"}, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestGetQuizServesFromCacheWithinWindow(t *testing.T) {
	loader := &countingLoader{}
	repo := NewQuizRepository(loader, 5*time.Minute)

	for i := 0; i < 5; i++ {
		quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if quiz.Title != "cached" {
			t.Fatalf("unexpected quiz %+v", quiz)
		}
	}
	if got := loader.count(); got != 1 {
		t.Fatalf("expected a single load within the window, got %d", got)
	}
}

func TestGetQuizRefetchesAfterWindow(t *testing.T) {
	loader := &countingLoader{}
	repo := NewQuizRepository(loader, 5*time.Minute)

	now := time.Now()
	repo.clock = func() time.Time { return now }

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("first get: %v", err)
	}

	// Past the window plus the full jitter allowance.
	now = now.Add(6 * time.Minute)
	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("expected re-fetch after the window, got %d loads", got)
	}
}

func TestGetQuizConcurrentHitsAreSafe(t *testing.T) {
	loader := &countingLoader{}
	repo := NewQuizRepository(loader, 5*time.Minute)

	if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				quiz, err := repo.GetQuiz(context.Background(), "quiz-1")
				if err != nil {
					t.Errorf("get: %v", err)
					return
				}
				if quiz.Title != "cached" {
					t.Errorf("unexpected quiz %+v", quiz)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := loader.count(); got != 1 {
		t.Fatalf("warm hits must never reload, got %d loads", got)
	}
}

func TestGetQuizDoesNotCacheFailures(t *testing.T) {
	loader := &countingLoader{fail: domain.ErrQuizNotFound}
	repo := NewQuizRepository(loader, 5*time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := repo.GetQuiz(context.Background(), "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
			t.Fatalf("expected ErrQuizNotFound, got %v", err)
		}
	}
	if got := loader.count(); got != 2 {
		t.Fatalf("failures must not be cached, got %d loads", got)
	}
}

func TestGetQuizCollapsesConcurrentLoads(t *testing.T) {
	release := make(chan struct{})
	loader := &gatedLoader{release: release}
	repo := NewQuizRepository(loader, 5*time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.GetQuiz(context.Background(), "quiz-1"); err != nil {
				t.Errorf("get: %v", err)
			}
		}()
	}

	loader.waitForFirst(t)
	close(release)
	wg.Wait()

	if got := loader.count(); got != 1 {
		t.Fatalf("concurrent reads must collapse into one load, got %d", got)
	}
}

type gatedLoader struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (l *gatedLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	<-l.release
	return domain.Quiz{ID: quizID}, nil
}

func (l *gatedLoader) waitForFirst(t *testing.T) {
	t.Helper()
	// The first caller holds the singleflight slot; give the rest a moment
	// to queue behind it.
	time.Sleep(20 * time.Millisecond)
}

func (l *gatedLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func TestStaticLoaderReturnsNotFound(t *testing.T) {
	loader := NewStaticQuizLoader(map[string]domain.Quiz{"quiz-1": {ID: "quiz-1"}})

	if _, err := loader.LoadQuiz(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("known quiz: %v", err)
	}
	if _, err := loader.LoadQuiz(context.Background(), "other"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected ErrQuizNotFound, got %v", err)
	}
}
