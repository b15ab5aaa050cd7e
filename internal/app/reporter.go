package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"trivia-quiz-service/internal/domain"
)

// ResultReporter receives the final results of each quiz exactly once.
// Implementations must return without waiting on downstream storage.
type ResultReporter interface {
	ReportResults(quizID string, results []domain.QuizResult)
}

// ResultStore persists quiz results. Writing the same (quiz, player) twice
// must store it once, so deliveries can be retried.
type ResultStore interface {
	ReportResults(ctx context.Context, quizID string, results []domain.QuizResult) error
}

// ResultHistory answers historical queries over stored results, newest first.
type ResultHistory interface {
	Winners(ctx context.Context, limit int) ([]domain.QuizResult, error)
	PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.QuizResult, error)
}

// ReporterOptions tunes delivery. Zero values fall back to defaults.
type ReporterOptions struct {
	QueueSize      int
	MaxRetries     uint64
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Timeout bounds a single store call.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Reporter hands completed quiz results to a ResultStore on its own goroutine,
// retrying failed writes with exponential backoff.
type Reporter struct {
	store  ResultStore
	opts   ReporterOptions
	logger *slog.Logger
	tracer trace.Tracer

	queue    chan resultBatch
	done     chan struct{}
	stopOnce sync.Once
}

type resultBatch struct {
	quizID  string
	results []domain.QuizResult
}

func NewReporter(store ResultStore, opts ReporterOptions) *Reporter {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Reporter{
		store:  store,
		opts:   opts,
		logger: opts.Logger,
		tracer: otel.Tracer("trivia-quiz-service/internal/app"),
		queue:  make(chan resultBatch, opts.QueueSize),
		done:   make(chan struct{}),
	}
}

// ReportResults queues results for delivery and returns immediately.
func (r *Reporter) ReportResults(quizID string, results []domain.QuizResult) {
	batch := resultBatch{quizID: quizID, results: append([]domain.QuizResult(nil), results...)}
	select {
	case r.queue <- batch:
		return
	default:
	}
	// Queue is full: wait for room off the caller's goroutine.
	go func() {
		select {
		case r.queue <- batch:
		case <-r.done:
			r.logger.Error("reporter stopped, results dropped", "quiz_id", quizID, "results", len(batch.results))
		}
	}()
}

// Run delivers queued results until ctx is done, then flushes what is still queued.
func (r *Reporter) Run(ctx context.Context) error {
	for {
		// Shutdown wins over pending batches; they are flushed below.
		if ctx.Err() != nil {
			return r.stop(ctx)
		}
		select {
		case batch := <-r.queue:
			r.deliver(ctx, batch)
		case <-ctx.Done():
			return r.stop(ctx)
		}
	}
}

func (r *Reporter) stop(ctx context.Context) error {
	r.stopOnce.Do(func() { close(r.done) })
	r.flush(context.WithoutCancel(ctx))
	return nil
}

func (r *Reporter) flush(ctx context.Context) {
	for {
		select {
		case batch := <-r.queue:
			r.deliverOnce(ctx, batch)
		default:
			return
		}
	}
}

func (r *Reporter) deliver(ctx context.Context, batch resultBatch) {
	ctx, span := r.tracer.Start(ctx, "reporter.deliver", trace.WithAttributes(
		attribute.String("quiz.id", batch.quizID),
		attribute.Int("results", len(batch.results)),
	))
	defer span.End()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = r.opts.InitialBackoff
	policy.MaxInterval = r.opts.MaxBackoff
	policy.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := r.write(ctx, batch)
		if err != nil {
			r.logger.Warn("report results failed", "quiz_id", batch.quizID, "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, r.opts.MaxRetries), ctx))
	if err != nil {
		span.RecordError(err)
		r.logger.Error("results dropped after retries", "quiz_id", batch.quizID, "attempts", attempt, "error", err)
		return
	}
	r.logger.Info("results reported", "quiz_id", batch.quizID, "results", len(batch.results), "attempts", attempt)
}

func (r *Reporter) deliverOnce(ctx context.Context, batch resultBatch) {
	if err := r.write(ctx, batch); err != nil {
		r.logger.Error("results dropped on shutdown", "quiz_id", batch.quizID, "error", err)
	}
}

func (r *Reporter) write(ctx context.Context, batch resultBatch) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()
	return r.store.ReportResults(ctx, batch.quizID, batch.results)
}
