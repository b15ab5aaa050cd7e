package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/otel"
	"trivia-quiz-service/internal/infra/postgres"
	redisstore "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/infra/sqlite"
	"trivia-quiz-service/internal/logging"
	transport "trivia-quiz-service/internal/transport/http"
)

const serviceName = "trivia-quiz-service"

// resultBackend stores results and answers history queries.
type resultBackend interface {
	app.ResultStore
	app.ResultHistory
}

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	name := cfg.Telemetry.ServiceName
	if name == "" {
		name = serviceName
	}
	shutdownTracing, err := otel.Setup(ctx, name, cfg.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing shutdown", "error", err)
		}
	}()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestionSets())
	if pool != nil {
		pgLoader := postgres.NewQuestionLoader(pool)
		for id, questions := range sampleQuestionSets() {
			if err := pgLoader.SaveQuestions(ctx, id, id, questions); err != nil {
				return err
			}
		}
		loader = pgLoader
	}

	cacheTTL := config.TTLDuration(cfg.Questions.CacheTTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewQuestionCache(redisClient, loader, cacheTTL, logger)
	} else {
		questions = memory.NewQuestionBank(loader, cacheTTL)
	}

	var results resultBackend
	switch {
	case pool != nil:
		results = postgres.NewResultStore(pool)
	case cfg.SQLite.Path != "":
		sqliteStore, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		defer sqliteStore.Close()
		results = sqliteStore
	default:
		results = memory.NewResultStore()
	}

	reporter := app.NewReporter(results, app.ReporterOptions{
		QueueSize:      cfg.Reporter.QueueSize,
		MaxRetries:     cfg.Reporter.MaxRetries,
		InitialBackoff: config.TTLDuration(cfg.Reporter.InitialBackoff, 0),
		Logger:         logger.With("component", "reporter"),
	})

	var store app.QuizStore
	if redisClient != nil {
		store = redisstore.NewQuizStore(redisClient, redisTTL, logger.With("component", "quiz_store"))
	} else {
		store = memory.NewQuizStore()
	}
	registry := app.NewRegistry(store, app.RegistryOptions{
		Scorer:                 app.NewScorer(cfg.Quiz.PointsPerCorrect),
		Reporter:               reporter,
		Questions:              questions,
		DefaultTimePerQuestion: config.TTLDuration(cfg.Quiz.TimePerQuestion, app.DefaultTimePerQuestion),
		MaxQuestions:           cfg.Quiz.MaxQuestions,
		Retention:              config.TTLDuration(cfg.Quiz.Retention, app.DefaultRetention),
		SweepInterval:          config.TTLDuration(cfg.Quiz.SweepInterval, app.DefaultSweepInterval),
		Logger:                 logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(registry, logger).ServeWS)
	transport.NewAPIHandler(registry, results, logger).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// The reporter outlives the request context so completions from the
	// final requests are still flushed.
	reporterCtx, stopReporter := context.WithCancel(context.WithoutCancel(ctx))
	defer stopReporter()
	reporterDone := make(chan error, 1)
	go func() { reporterDone <- reporter.Run(reporterCtx) }()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return registry.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = group.Wait()
	stopReporter()
	if rerr := <-reporterDone; rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// sampleQuestionSets provides a starter question set; Postgres-backed deployments get it upserted on start.
func sampleQuestionSets() map[string][]domain.Question {
	return map[string][]domain.Question{
		"personal-finance": {
			{
				ID:           "pf-1",
				Text:         "What does APR stand for?",
				Options:      []string{"Annual Percentage Rate", "Average Payment Ratio", "Applied Principal Return", "Annual Principal Rate"},
				CorrectIndex: 0,
			},
			{
				ID:           "pf-2",
				Text:         "Which account usually earns compound interest?",
				Options:      []string{"Checking account", "Savings account", "Credit card", "Prepaid card"},
				CorrectIndex: 1,
			},
			{
				ID:           "pf-3",
				Text:         "An emergency fund commonly covers how many months of expenses?",
				Options:      []string{"One week", "Three to six months", "Five years", "Ten years"},
				CorrectIndex: 1,
			},
			{
				ID:           "pf-4",
				Text:         "What is a diversified portfolio?",
				Options:      []string{"All savings in one stock", "Only cash", "Investments spread across assets", "A single bond"},
				CorrectIndex: 2,
			},
		},
	}
}
