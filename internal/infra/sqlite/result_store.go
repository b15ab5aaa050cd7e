package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
	"trivia-quiz-service/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS quiz_results (
	quiz_id         TEXT NOT NULL,
	quiz_title      TEXT NOT NULL,
	player_id       TEXT NOT NULL,
	player_name     TEXT NOT NULL,
	score           INTEGER NOT NULL,
	total_questions INTEGER NOT NULL,
	correct_answers INTEGER NOT NULL,
	completed_at    INTEGER NOT NULL,
	is_winner       INTEGER NOT NULL,
	player_rank     INTEGER NOT NULL DEFAULT 0,
	difficulty      TEXT NOT NULL,
	PRIMARY KEY (quiz_id, player_id)
);
CREATE INDEX IF NOT EXISTS quiz_results_player_idx ON quiz_results (player_id, completed_at);
`

// ResultStore provides SQLite-backed quiz result persistence.
type ResultStore struct {
	sqlDB *sql.DB
}

// Open opens a result SQLite store and creates its schema.
func Open(path string) (*ResultStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &ResultStore{sqlDB: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *ResultStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// ReportResults writes a quiz's results in one transaction, ignoring rows already stored.
func (s *ResultStore) ReportResults(ctx context.Context, quizID string, results []domain.QuizResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range results {
		_, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO quiz_results (
	quiz_id,
	quiz_title,
	player_id,
	player_name,
	score,
	total_questions,
	correct_answers,
	completed_at,
	is_winner,
	player_rank,
	difficulty
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
			quizID,
			r.QuizTitle,
			r.PlayerID,
			r.PlayerName,
			r.Score,
			r.TotalQuestions,
			r.CorrectAnswers,
			r.CompletedAt.UTC().UnixMilli(),
			r.IsWinner,
			r.Rank,
			string(r.Difficulty),
		)
		if err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

// Winners lists winning results, newest first.
func (s *ResultStore) Winners(ctx context.Context, limit int) ([]domain.QuizResult, error) {
	return s.list(ctx, `WHERE is_winner = 1`, limit)
}

// PlayerHistory lists a player's results, newest first.
func (s *ResultStore) PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.QuizResult, error) {
	return s.list(ctx, `WHERE player_id = ?`, limit, playerID)
}

func (s *ResultStore) list(ctx context.Context, where string, limit int, args ...any) ([]domain.QuizResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT quiz_id, quiz_title, player_id, player_name, score, total_questions, correct_answers, completed_at, is_winner, player_rank, difficulty
FROM quiz_results `+where+`
ORDER BY completed_at DESC, quiz_id
LIMIT ?
`, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizResult, 0)
	for rows.Next() {
		var (
			r           domain.QuizResult
			completedAt int64
			difficulty  string
		)
		if err := rows.Scan(&r.QuizID, &r.QuizTitle, &r.PlayerID, &r.PlayerName, &r.Score,
			&r.TotalQuestions, &r.CorrectAnswers, &completedAt, &r.IsWinner, &r.Rank, &difficulty); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.CompletedAt = time.UnixMilli(completedAt).UTC()
		r.Difficulty = domain.Difficulty(difficulty)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}
