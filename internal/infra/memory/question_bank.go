package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"trivia-quiz-service/internal/domain"
)

// QuestionLoader fetches a question set from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionBank caches question sets with TTL to avoid repeated DB hits.
type QuestionBank struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionBank(loader QuestionLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

// Questions returns a copy of the set so callers cannot mutate the cache.
func (b *QuestionBank) Questions(ctx context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := b.cached(setID, b.clock()); ok {
		return cloneQuestions(questions), nil
	}

	result, err, _ := b.sf.Do(setID, func() (interface{}, error) {
		now := b.clock()
		if questions, ok := b.cached(setID, now); ok {
			return questions, nil
		}

		questions, err := b.loader.LoadQuestions(ctx, setID)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cache[setID] = cachedSet{
			questions: questions,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneQuestions(result.([]domain.Question)), nil
}

func (b *QuestionBank) cached(setID string, now time.Time) ([]domain.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	entry, ok := b.cache[setID]
	if !ok || !entry.expiresAt.After(now) {
		return nil, false
	}
	return entry.questions, true
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	sets map[string][]domain.Question
}

func NewStaticQuestionLoader(sets map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, setID string) ([]domain.Question, error) {
	if questions, ok := l.sets[setID]; ok {
		return cloneQuestions(questions), nil
	}
	return nil, domain.ErrQuestionSetNotFound
}

// Questions lets the static loader serve as an app.QuestionSource directly.
func (l *StaticQuestionLoader) Questions(ctx context.Context, setID string) ([]domain.Question, error) {
	return l.LoadQuestions(ctx, setID)
}

func cloneQuestions(questions []domain.Question) []domain.Question {
	out := make([]domain.Question, len(questions))
	for i, q := range questions {
		out[i] = q.Clone()
	}
	return out
}
