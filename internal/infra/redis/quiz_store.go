package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// QuizStore is a Redis-aware implementation of app.QuizStore.
// Notes:
//   - Quizzes stay in a local map; the state machine and its timers are in-process.
//   - Redis holds a liveness marker per quiz and a JSON mirror of its latest
//     snapshot, so other instances can inspect a quiz read-only.
//   - Mirroring runs on its own goroutine per quiz and is best effort.
type QuizStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	quizzes map[string]*entry
}

type entry struct {
	quiz   *app.Quiz
	cancel func()
	done   chan struct{}
}

func NewQuizStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *QuizStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuizStore{
		client:  client,
		ttl:     ttl,
		logger:  logger,
		quizzes: make(map[string]*entry),
	}
}

func (s *QuizStore) Put(quiz *app.Quiz) error {
	ctx := context.Background()
	if err := s.client.Set(ctx, s.activeKey(quiz.ID()), "1", s.ttl).Err(); err != nil {
		return err
	}

	updates, cancel := quiz.Subscribe()
	e := &entry{quiz: quiz, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if old, ok := s.quizzes[quiz.ID()]; ok {
		old.cancel()
	}
	s.quizzes[quiz.ID()] = e
	s.mu.Unlock()

	go s.mirror(quiz.ID(), updates, e.done)
	return nil
}

func (s *QuizStore) Get(quizID string) (*app.Quiz, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.quizzes[quizID]
	if !ok {
		return nil, false
	}
	return e.quiz, true
}

func (s *QuizStore) Delete(quizID string) {
	s.mu.Lock()
	e, ok := s.quizzes[quizID]
	delete(s.quizzes, quizID)
	s.mu.Unlock()
	if !ok {
		return
	}

	e.cancel()
	<-e.done
	_ = s.client.Del(context.Background(), s.activeKey(quizID), s.stateKey(quizID)).Err()
}

// List returns the local quizzes ordered by id.
func (s *QuizStore) List() []*app.Quiz {
	s.mu.RLock()
	quizzes := make([]*app.Quiz, 0, len(s.quizzes))
	for _, e := range s.quizzes {
		quizzes = append(quizzes, e.quiz)
	}
	s.mu.RUnlock()

	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID() < quizzes[j].ID() })
	return quizzes
}

// LoadState reads the mirrored snapshot of a quiz, which may be owned by another instance.
func (s *QuizStore) LoadState(ctx context.Context, quizID string) (domain.QuizState, error) {
	raw, err := s.client.Get(ctx, s.stateKey(quizID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuizState{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.QuizState{}, err
	}
	var state domain.QuizState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.QuizState{}, err
	}
	return state, nil
}

func (s *QuizStore) mirror(quizID string, updates <-chan domain.QuizState, done chan<- struct{}) {
	defer close(done)
	ctx := context.Background()
	for state := range updates {
		raw, err := json.Marshal(state)
		if err != nil {
			s.logger.Warn("encode quiz state", "quiz_id", quizID, "error", err)
			continue
		}
		pipe := s.client.Pipeline()
		pipe.Set(ctx, s.stateKey(quizID), raw, s.ttl)
		pipe.Expire(ctx, s.activeKey(quizID), s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			s.logger.Warn("mirror quiz state", "quiz_id", quizID, "version", state.Version, "error", err)
		}
	}
}

func (s *QuizStore) activeKey(quizID string) string {
	return "quiz:active:" + quizID
}

func (s *QuizStore) stateKey(quizID string) string {
	return "quiz:state:" + quizID
}
