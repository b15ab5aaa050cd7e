package redis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := newClient(mr)

	loader := &countingLoader{
		QuestionLoader: memory.NewStaticQuestionLoader(map[string][]domain.Question{
			"set-1": sampleQuestions(),
		}),
	}
	cache := NewQuestionCache(client, loader, time.Minute, nil)

	questions, err := cache.Questions(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 || questions[0].CorrectIndex != 1 {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls.Load())
	}
	if !mr.Exists("questions:set:set-1") {
		t.Fatalf("expected cached key")
	}

	// Second call should hit cache, loader not incremented.
	_, _ = cache.Questions(context.Background(), "set-1")
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls.Load())
	}
}

func TestQuestionCacheMissingSet(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	cache := NewQuestionCache(newClient(mr), memory.NewStaticQuestionLoader(nil), time.Minute, nil)
	_, err = cache.Questions(context.Background(), "missing")
	if !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected ErrQuestionSetNotFound, got %v", err)
	}
	if mr.Exists("questions:set:missing") {
		t.Fatalf("missing set must not be cached")
	}
}

func TestQuestionCacheServesSetWhenRedisFails(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()
	mr.SetError("ERR cache unavailable")

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	loader := memory.NewStaticQuestionLoader(map[string][]domain.Question{"set-1": sampleQuestions()})
	cache := NewQuestionCache(newClient(mr), loader, time.Minute, logger)

	questions, err := cache.Questions(context.Background(), "set-1")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("unexpected questions: %+v", questions)
	}
	if !strings.Contains(logs.String(), "cache question set") {
		t.Fatalf("expected failed cache write to be logged, got %q", logs.String())
	}
}

type countingLoader struct {
	memory.QuestionLoader
	calls atomic.Int32
}

func (l *countingLoader) LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	l.calls.Add(1)
	return l.QuestionLoader.LoadQuestions(ctx, setID)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4"}, CorrectIndex: 1},
		{ID: "q2", Text: "Largest planet?", Options: []string{"Jupiter", "Mars"}, CorrectIndex: 0},
	}
}

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}
