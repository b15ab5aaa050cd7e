package memory

import (
	"sort"
	"sync"

	"trivia-quiz-service/internal/app"
)

// QuizStore is an in-memory implementation of app.QuizStore.
type QuizStore struct {
	mu      sync.RWMutex
	quizzes map[string]*app.Quiz
}

func NewQuizStore() *QuizStore {
	return &QuizStore{
		quizzes: make(map[string]*app.Quiz),
	}
}

func (s *QuizStore) Put(quiz *app.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quizzes[quiz.ID()] = quiz
	return nil
}

func (s *QuizStore) Get(quizID string) (*app.Quiz, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	return quiz, ok
}

func (s *QuizStore) Delete(quizID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.quizzes, quizID)
}

// List returns the stored quizzes ordered by id.
func (s *QuizStore) List() []*app.Quiz {
	s.mu.RLock()
	quizzes := make([]*app.Quiz, 0, len(s.quizzes))
	for _, quiz := range s.quizzes {
		quizzes = append(quizzes, quiz)
	}
	s.mu.RUnlock()

	sort.Slice(quizzes, func(i, j int) bool { return quizzes[i].ID() < quizzes[j].ID() })
	return quizzes
}
