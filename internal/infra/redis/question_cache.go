package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"trivia-quiz-service/internal/domain"
)

// QuestionLoader fetches a question set from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionCache caches question sets in Redis and falls back to a loader on cache miss.
// Sets are stored as: SET questions:set:{setID} <json array of questions>
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration, logger *slog.Logger) *QuestionCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, setID string) ([]domain.Question, error) {
	key := c.key(setID)
	if questions, ok := c.cached(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if questions, ok := c.cached(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}
		// A failed cache write still serves the loaded set.
		raw, err := json.Marshal(questions)
		if err != nil {
			c.logger.Warn("encode question set", "set_id", setID, "error", err)
			return questions, nil
		}
		if err := c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err(); err != nil {
			c.logger.Warn("cache question set", "set_id", setID, "error", err)
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQuestions(result.([]domain.Question)), nil
}

func (c *QuestionCache) cached(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil || len(questions) == 0 {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(setID string) string {
	return "questions:set:" + setID
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func cloneQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}
