package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"trivia-quiz-service/internal/domain"
)

// ResultStore persists quiz results in the quiz_results table.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// ReportResults writes a quiz's results in one transaction. Rows already
// stored for a (quiz, player) pair are left untouched.
func (s *ResultStore) ReportResults(ctx context.Context, quizID string, results []domain.QuizResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin results tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(`
			INSERT INTO quiz_results
				(quiz_id, quiz_title, player_id, player_name, score, total_questions, correct_answers, completed_at, is_winner, player_rank, difficulty)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (quiz_id, player_id) DO NOTHING`,
			quizID, r.QuizTitle, r.PlayerID, r.PlayerName, r.Score, r.TotalQuestions,
			r.CorrectAnswers, r.CompletedAt, r.IsWinner, r.Rank, string(r.Difficulty))
	}
	br := tx.SendBatch(ctx, batch)
	for range results {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert result: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close results batch: %w", err)
	}
	return tx.Commit(ctx)
}

// Winners lists winning results, newest first.
func (s *ResultStore) Winners(ctx context.Context, limit int) ([]domain.QuizResult, error) {
	return s.query(ctx, `WHERE is_winner`, limit)
}

// PlayerHistory lists a player's results, newest first.
func (s *ResultStore) PlayerHistory(ctx context.Context, playerID string, limit int) ([]domain.QuizResult, error) {
	return s.query(ctx, `WHERE player_id = $2`, limit, playerID)
}

func (s *ResultStore) query(ctx context.Context, where string, limit int, args ...interface{}) ([]domain.QuizResult, error) {
	if limit <= 0 {
		limit = 100
	}
	sql := `SELECT quiz_id, quiz_title, player_id, player_name, score, total_questions, correct_answers, completed_at, is_winner, player_rank, difficulty
		FROM quiz_results ` + where + ` ORDER BY completed_at DESC, quiz_id LIMIT $1`

	rows, err := s.pool.Query(ctx, sql, append([]interface{}{limit}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]domain.QuizResult, 0)
	for rows.Next() {
		var r domain.QuizResult
		var difficulty string
		if err := rows.Scan(&r.QuizID, &r.QuizTitle, &r.PlayerID, &r.PlayerName, &r.Score,
			&r.TotalQuestions, &r.CorrectAnswers, &r.CompletedAt, &r.IsWinner, &r.Rank, &difficulty); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Difficulty = domain.Difficulty(difficulty)
		out = append(out, r)
	}
	return out, rows.Err()
}
