package http

import (
	"context"
	"testing"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

// syncReporter stores results on the completing goroutine so tests can read them right away.
type syncReporter struct {
	store *memory.ResultStore
}

func (r syncReporter) ReportResults(quizID string, results []domain.QuizResult) {
	_ = r.store.ReportResults(context.Background(), quizID, results)
}

func newTestRegistry(t *testing.T) (*app.Registry, *memory.ResultStore) {
	t.Helper()
	results := memory.NewResultStore()
	registry := app.NewRegistry(memory.NewQuizStore(), app.RegistryOptions{
		Reporter: syncReporter{store: results},
		Questions: memory.NewStaticQuestionLoader(map[string][]domain.Question{
			"set-1": sampleQuestions(),
		}),
	})
	return registry, results
}

func createSampleQuiz(t *testing.T, registry *app.Registry, questions []domain.Question) string {
	t.Helper()
	id, err := registry.CreateQuiz(context.Background(), domain.QuizConfig{
		Title:           "Sample",
		Questions:       questions,
		TimePerQuestion: time.Minute,
		CreatorID:       "host",
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	return id
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{ID: "q2", Text: "Capital of Italy?", Options: []string{"Rome", "Milan"}, CorrectIndex: 0},
	}
}
