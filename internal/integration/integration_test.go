package integration

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
	pgstore "trivia-quiz-service/internal/infra/postgres"
	pgmigrations "trivia-quiz-service/internal/infra/postgres/migrations"
	infraredis "trivia-quiz-service/internal/infra/redis"
)

func TestQuizEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateDatabase(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgstore.NewQuestionLoader(pool)
	if err := loader.SaveQuestions(ctx, "math", "Math", sampleQuestions()); err != nil {
		t.Fatalf("seed questions: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	results := pgstore.NewResultStore(pool)
	reporter := app.NewReporter(results, app.ReporterOptions{})
	runCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go func() { _ = reporter.Run(runCtx) }()

	quizStore := infraredis.NewQuizStore(redisClient, 5*time.Minute, nil)
	registry := app.NewRegistry(quizStore, app.RegistryOptions{
		Reporter:  reporter,
		Questions: infraredis.NewQuestionCache(redisClient, loader, 5*time.Minute, nil),
	})

	quizID, err := registry.CreateQuizFromSet(ctx, domain.QuizFromSet{
		SetID:     "math",
		Title:     "Math night",
		CreatorID: "host",
	})
	if err != nil {
		t.Fatalf("create quiz: %v", err)
	}
	for _, p := range [][2]string{{"u1", "Alice"}, {"u2", "Bob"}} {
		if _, err := registry.Join(ctx, quizID, p[0], p[1]); err != nil {
			t.Fatalf("join %s: %v", p[0], err)
		}
	}
	if _, err := registry.Start(ctx, quizID, "host"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// q1: Bob right, Alice wrong. q2: both right.
	answers := []struct {
		player string
		option int
	}{{"u1", 0}, {"u2", 1}, {"u1", 0}, {"u2", 0}}
	for _, a := range answers {
		if _, err := registry.SubmitAnswer(ctx, quizID, a.player, "", a.option); err != nil {
			t.Fatalf("submit %s: %v", a.player, err)
		}
	}

	state, err := registry.GetQuiz(ctx, quizID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if state.Status != domain.StatusCompleted {
		t.Fatalf("expected completed quiz, got %s", state.Status)
	}

	var winners []domain.QuizResult
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		winners, err = results.Winners(ctx, 10)
		if err == nil && len(winners) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if len(winners) != 1 || winners[0].PlayerID != "u2" || winners[0].Score != 20 || winners[0].Rank != 1 {
		t.Fatalf("expected bob to win with 20, got %+v", winners)
	}

	history, err := results.PlayerHistory(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Score != 10 || history[0].IsWinner || history[0].Rank != 2 {
		t.Fatalf("unexpected alice history: %+v", history)
	}

	// Re-delivery of the same results is ignored.
	if err := results.ReportResults(ctx, quizID, history); err != nil {
		t.Fatalf("re-report: %v", err)
	}
	if again, _ := results.PlayerHistory(ctx, "u1", 10); len(again) != 1 {
		t.Fatalf("expected duplicate results to be ignored, got %d rows", len(again))
	}

	var mirrored domain.QuizState
	for time.Now().Before(deadline) {
		mirrored, err = quizStore.LoadState(ctx, quizID)
		if err == nil && mirrored.Status == domain.StatusCompleted {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	if mirrored.Status != domain.StatusCompleted {
		t.Fatalf("expected mirrored completed state, got %+v", mirrored.Status)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateDatabase(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectIndex: 1},
		{ID: "q2", Text: "What is 3 * 3?", Options: []string{"9", "6", "12"}, CorrectIndex: 0},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
