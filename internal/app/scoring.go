package app

import (
	"sort"
	"time"

	"trivia-quiz-service/internal/domain"
)

// DefaultPointsPerCorrect is the flat award for a correct answer.
const DefaultPointsPerCorrect = 10

// Scorer evaluates answers and builds final results. Scoring is flat: no partial
// credit and no speed bonus. Exactly-once scoring per player and question is
// enforced by the quiz ledger, not here.
type Scorer struct {
	PointsPerCorrect int
}

// NewScorer returns a Scorer awarding points per correct answer, or the default when points <= 0.
func NewScorer(points int) Scorer {
	if points <= 0 {
		points = DefaultPointsPerCorrect
	}
	return Scorer{PointsPerCorrect: points}
}

// Score reports whether option is the correct answer to q.
func (s Scorer) Score(q domain.Question, option int) bool {
	return option == q.CorrectIndex
}

// Apply credits a player for one scored submission and returns the points awarded.
func (s Scorer) Apply(p *domain.Player, correct bool) int {
	if !correct {
		return 0
	}
	points := s.PointsPerCorrect
	if points <= 0 {
		points = DefaultPointsPerCorrect
	}
	p.Score += points
	p.CorrectAnswers++
	return points
}

// Results builds one result per player, highest score first with ties kept in
// roster order. Ranks are 1-based and tied players share one, so scores of
// 20, 20, 10 rank 1, 1, 3. Every player at rank 1 is a winner.
func (s Scorer) Results(quizID, title string, difficulty domain.Difficulty, totalQuestions int, players []*domain.Player, completedAt time.Time) []domain.QuizResult {
	if len(players) == 0 {
		return nil
	}
	standings := append([]*domain.Player(nil), players...)
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Score > standings[j].Score })

	results := make([]domain.QuizResult, 0, len(standings))
	rank := 0
	for i, p := range standings {
		if i == 0 || p.Score != standings[i-1].Score {
			rank = i + 1
		}
		results = append(results, domain.QuizResult{
			QuizID:         quizID,
			QuizTitle:      title,
			PlayerID:       p.ID,
			PlayerName:     p.Name,
			Score:          p.Score,
			TotalQuestions: totalQuestions,
			CorrectAnswers: p.CorrectAnswers,
			CompletedAt:    completedAt,
			IsWinner:       rank == 1,
			Rank:           rank,
			Difficulty:     difficulty,
		})
	}
	return results
}
