package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"trivia-quiz-service/internal/domain"
)

const (
	DefaultTimePerQuestion = 60 * time.Second
	DefaultMaxQuestions    = 20
	DefaultRetention       = 5 * time.Minute
	DefaultSweepInterval   = 30 * time.Second
)

// QuizStore abstracts where active quizzes live (in-memory, Redis, etc).
type QuizStore interface {
	Put(quiz *Quiz) error
	Get(quizID string) (*Quiz, bool)
	Delete(quizID string)
	List() []*Quiz
}

// QuestionSource loads pre-built question sets.
type QuestionSource interface {
	Questions(ctx context.Context, setID string) ([]domain.Question, error)
}

// RegistryOptions configures a Registry. Zero values fall back to defaults.
type RegistryOptions struct {
	Clock                  Clock
	Scorer                 Scorer
	Reporter               ResultReporter
	Questions              QuestionSource
	DefaultTimePerQuestion time.Duration
	MaxQuestions           int
	Retention              time.Duration
	SweepInterval          time.Duration
	Logger                 *slog.Logger
	NewID                  func() string
}

// Registry owns the active quizzes of the process and routes operations to them.
type Registry struct {
	store     QuizStore
	clock     Clock
	scorer    Scorer
	reporter  ResultReporter
	questions QuestionSource
	logger    *slog.Logger
	tracer    trace.Tracer
	newID     func() string

	defaultTimePerQuestion time.Duration
	maxQuestions           int
	retention              time.Duration
	sweepInterval          time.Duration
}

func NewRegistry(store QuizStore, opts RegistryOptions) *Registry {
	r := &Registry{
		store:                  store,
		clock:                  opts.Clock,
		scorer:                 opts.Scorer,
		reporter:               opts.Reporter,
		questions:              opts.Questions,
		logger:                 opts.Logger,
		tracer:                 otel.Tracer("trivia-quiz-service/internal/app"),
		newID:                  opts.NewID,
		defaultTimePerQuestion: opts.DefaultTimePerQuestion,
		maxQuestions:           opts.MaxQuestions,
		retention:              opts.Retention,
		sweepInterval:          opts.SweepInterval,
	}
	if r.clock == nil {
		r.clock = SystemClock()
	}
	if r.scorer.PointsPerCorrect <= 0 {
		r.scorer = NewScorer(0)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.newID == nil {
		r.newID = uuid.NewString
	}
	if r.defaultTimePerQuestion <= 0 {
		r.defaultTimePerQuestion = DefaultTimePerQuestion
	}
	if r.maxQuestions <= 0 {
		r.maxQuestions = DefaultMaxQuestions
	}
	if r.retention <= 0 {
		r.retention = DefaultRetention
	}
	if r.sweepInterval <= 0 {
		r.sweepInterval = DefaultSweepInterval
	}
	return r
}

// CreateQuiz validates cfg and registers a new quiz in CREATED.
func (r *Registry) CreateQuiz(ctx context.Context, cfg domain.QuizConfig) (quizID string, err error) {
	_, span := r.tracer.Start(ctx, "registry.CreateQuiz")
	defer func() { endSpan(span, err) }()

	id := r.newID()
	quiz, err := NewQuiz(id, cfg, QuizOptions{
		Clock:      r.clock,
		Scorer:     r.scorer,
		OnComplete: r.complete,
		Logger:     r.logger,
	})
	if err != nil {
		return "", err
	}
	if err := r.store.Put(quiz); err != nil {
		return "", fmt.Errorf("store quiz: %w", err)
	}
	span.SetAttributes(attribute.String("quiz.id", id))

	state := quiz.Snapshot()
	r.logger.Info("quiz created",
		"quiz_id", id,
		"title", state.Title,
		"questions", state.TotalQuestions,
		"difficulty", state.Difficulty,
		"time_per_question", state.TimePerQuestion(),
	)
	return id, nil
}

// CreateQuizFromSet creates a quiz from the first QuestionCount questions of a stored set.
func (r *Registry) CreateQuizFromSet(ctx context.Context, req domain.QuizFromSet) (string, error) {
	if r.questions == nil {
		return "", fmt.Errorf("%w: no question source configured", domain.ErrQuestionSetNotFound)
	}
	if req.QuestionCount < 0 || req.QuestionCount > r.maxQuestions {
		return "", fmt.Errorf("%w: question count must be between 1 and %d", domain.ErrInvalidQuizConfig, r.maxQuestions)
	}

	questions, err := r.questions.Questions(ctx, req.SetID)
	if err != nil {
		return "", err
	}
	count := req.QuestionCount
	if count == 0 {
		count = r.maxQuestions
	}
	if count < len(questions) {
		questions = questions[:count]
	}

	timePerQuestion := req.TimePerQuestion
	if timePerQuestion == 0 {
		timePerQuestion = r.defaultTimePerQuestion
	}

	return r.CreateQuiz(ctx, domain.QuizConfig{
		Title:           req.Title,
		Questions:       questions,
		TimePerQuestion: timePerQuestion,
		Difficulty:      req.Difficulty,
		CreatorID:       req.CreatorID,
	})
}

// GetQuiz returns a snapshot of an active quiz.
func (r *Registry) GetQuiz(_ context.Context, quizID string) (domain.QuizState, error) {
	quiz, err := r.quiz(quizID)
	if err != nil {
		return domain.QuizState{}, err
	}
	return quiz.Snapshot(), nil
}

// RemoveQuiz drops a quiz that is not in progress. Removing an unknown quiz is a no-op.
func (r *Registry) RemoveQuiz(ctx context.Context, quizID string) (err error) {
	_, span := r.tracer.Start(ctx, "registry.RemoveQuiz", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer func() { endSpan(span, err) }()

	quiz, ok := r.store.Get(quizID)
	if !ok {
		return nil
	}
	if err := quiz.retire(); err != nil {
		return err
	}
	r.store.Delete(quizID)
	r.logger.Info("quiz removed", "quiz_id", quizID)
	return nil
}

// Join adds a player to a quiz that has not started.
func (r *Registry) Join(ctx context.Context, quizID, playerID, name string) (state domain.QuizState, err error) {
	_, span := r.tracer.Start(ctx, "registry.Join", trace.WithAttributes(
		attribute.String("quiz.id", quizID),
		attribute.String("player.id", playerID),
	))
	defer func() { endSpan(span, err) }()

	quiz, err := r.quiz(quizID)
	if err != nil {
		return domain.QuizState{}, err
	}
	return quiz.Join(playerID, name)
}

// Start begins a quiz on behalf of its creator.
func (r *Registry) Start(ctx context.Context, quizID, requesterID string) (state domain.QuizState, err error) {
	_, span := r.tracer.Start(ctx, "registry.Start", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer func() { endSpan(span, err) }()

	quiz, err := r.quiz(quizID)
	if err != nil {
		return domain.QuizState{}, err
	}
	return quiz.Start(requesterID)
}

// SubmitAnswer records a player's answer to the current question. An empty
// questionID answers whichever question is open.
func (r *Registry) SubmitAnswer(ctx context.Context, quizID, playerID, questionID string, option int) (outcome domain.AnswerOutcome, err error) {
	_, span := r.tracer.Start(ctx, "registry.SubmitAnswer", trace.WithAttributes(
		attribute.String("quiz.id", quizID),
		attribute.String("player.id", playerID),
	))
	defer func() { endSpan(span, err) }()

	quiz, err := r.quiz(quizID)
	if err != nil {
		return domain.AnswerOutcome{}, err
	}
	return quiz.SubmitAnswer(playerID, questionID, option)
}

// Advance skips to the next question on behalf of the creator.
func (r *Registry) Advance(ctx context.Context, quizID, requesterID string) (state domain.QuizState, err error) {
	_, span := r.tracer.Start(ctx, "registry.Advance", trace.WithAttributes(attribute.String("quiz.id", quizID)))
	defer func() { endSpan(span, err) }()

	quiz, err := r.quiz(quizID)
	if err != nil {
		return domain.QuizState{}, err
	}
	if requesterID != quiz.CreatorID() {
		return domain.QuizState{}, domain.ErrNotCreator
	}
	return quiz.Advance()
}

// Subscribe returns a channel that receives state snapshots of a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *Registry) Subscribe(_ context.Context, quizID string) (<-chan domain.QuizState, func(), error) {
	quiz, err := r.quiz(quizID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := quiz.Subscribe()
	return ch, cancel, nil
}

// Sweep removes quizzes that completed more than the retention window ago.
func (r *Registry) Sweep() int {
	cutoff := r.clock.Now().Add(-r.retention)
	removed := 0
	for _, quiz := range r.store.List() {
		if !quiz.completedBefore(cutoff) {
			continue
		}
		if err := quiz.retire(); err != nil {
			continue
		}
		r.store.Delete(quiz.ID())
		removed++
	}
	if removed > 0 {
		r.logger.Info("completed quizzes reclaimed", "removed", removed)
	}
	return removed
}

// Run sweeps completed quizzes until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep()
		}
	}
}

func (r *Registry) quiz(quizID string) (*Quiz, error) {
	quiz, ok := r.store.Get(quizID)
	if !ok {
		return nil, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (r *Registry) complete(quizID string, results []domain.QuizResult) {
	if r.reporter == nil {
		r.logger.Warn("no result reporter configured, results discarded", "quiz_id", quizID)
		return
	}
	r.reporter.ReportResults(quizID, results)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
