package memory

import (
	"context"
	"sort"
	"sync"

	"trivia-quiz-service/internal/domain"
)

// ResultStore keeps quiz results in memory. It implements app.ResultStore and app.ResultHistory.
type ResultStore struct {
	mu      sync.RWMutex
	results []domain.QuizResult
	seen    map[resultKey]struct{}
}

type resultKey struct {
	quizID   string
	playerID string
}

func NewResultStore() *ResultStore {
	return &ResultStore{seen: make(map[resultKey]struct{})}
}

// ReportResults stores each (quiz, player) result once.
func (s *ResultStore) ReportResults(ctx context.Context, quizID string, results []domain.QuizResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		key := resultKey{quizID: quizID, playerID: r.PlayerID}
		if _, ok := s.seen[key]; ok {
			continue
		}
		s.seen[key] = struct{}{}
		r.QuizID = quizID
		s.results = append(s.results, r)
	}
	return nil
}

// Winners lists winning results, newest first.
func (s *ResultStore) Winners(_ context.Context, limit int) ([]domain.QuizResult, error) {
	return s.filter(limit, func(r domain.QuizResult) bool { return r.IsWinner }), nil
}

// PlayerHistory lists a player's results, newest first.
func (s *ResultStore) PlayerHistory(_ context.Context, playerID string, limit int) ([]domain.QuizResult, error) {
	return s.filter(limit, func(r domain.QuizResult) bool { return r.PlayerID == playerID }), nil
}

// QuizResults lists the results of one quiz in stored order.
func (s *ResultStore) QuizResults(quizID string) []domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.QuizResult
	for _, r := range s.results {
		if r.QuizID == quizID {
			out = append(out, r)
		}
	}
	return out
}

func (s *ResultStore) filter(limit int, keep func(domain.QuizResult) bool) []domain.QuizResult {
	s.mu.RLock()
	out := make([]domain.QuizResult, 0)
	for _, r := range s.results {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
