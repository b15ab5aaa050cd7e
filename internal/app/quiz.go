package app

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"trivia-quiz-service/internal/domain"
)

// CompletionFunc receives the final results of a quiz, once. It must not block.
type CompletionFunc func(quizID string, results []domain.QuizResult)

// QuizOptions carries the collaborators of a Quiz.
type QuizOptions struct {
	Clock      Clock
	Scorer     Scorer
	OnComplete CompletionFunc
	Logger     *slog.Logger
}

// Quiz is the state machine of one quiz. All mutations go through Join, Start,
// SubmitAnswer and Advance (plus timer expiry), serialized by a single lock.
type Quiz struct {
	id              string
	title           string
	creatorID       string
	difficulty      domain.Difficulty
	questions       []domain.Question
	timePerQuestion time.Duration

	clock      Clock
	scorer     Scorer
	onComplete CompletionFunc
	logger     *slog.Logger

	mu          sync.RWMutex
	status      domain.QuizStatus
	current     int
	roster      []*domain.Player
	players     map[string]*domain.Player
	ledger      map[string]int
	timer       questionTimer
	version     uint64
	createdAt   time.Time
	startedAt   time.Time
	completedAt time.Time
	retired     bool
	subscribers map[chan domain.QuizState]struct{}
}

// NewQuiz validates cfg and returns a quiz in CREATED.
func NewQuiz(id string, cfg domain.QuizConfig, opts QuizOptions) (*Quiz, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	difficulty, err := domain.ParseDifficulty(string(cfg.Difficulty))
	if err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Scorer.PointsPerCorrect <= 0 {
		opts.Scorer = NewScorer(0)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	questions := make([]domain.Question, len(cfg.Questions))
	for i, q := range cfg.Questions {
		questions[i] = q.Clone()
	}

	return &Quiz{
		id:              id,
		title:           strings.TrimSpace(cfg.Title),
		creatorID:       strings.TrimSpace(cfg.CreatorID),
		difficulty:      difficulty,
		questions:       questions,
		timePerQuestion: cfg.TimePerQuestion,
		clock:           opts.Clock,
		scorer:          opts.Scorer,
		onComplete:      opts.OnComplete,
		logger:          opts.Logger.With("quiz_id", id),
		status:          domain.StatusCreated,
		current:         -1,
		players:         make(map[string]*domain.Player),
		ledger:          make(map[string]int),
		timer:           newQuestionTimer(opts.Clock),
		createdAt:       opts.Clock.Now(),
		subscribers:     make(map[chan domain.QuizState]struct{}),
	}, nil
}

// ID returns the quiz identifier.
func (q *Quiz) ID() string {
	return q.id
}

// CreatorID returns the identifier allowed to start and skip questions.
func (q *Quiz) CreatorID() string {
	return q.creatorID
}

// Status returns the current lifecycle state.
func (q *Quiz) Status() domain.QuizStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status
}

// Snapshot returns a consistent read-only view of the quiz.
func (q *Quiz) Snapshot() domain.QuizState {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.snapshotLocked()
}

// Join appends a player to the roster. Only allowed in CREATED.
func (q *Quiz) Join(playerID, name string) (domain.QuizState, error) {
	playerID = strings.TrimSpace(playerID)
	name = strings.TrimSpace(name)
	if playerID == "" || name == "" {
		return domain.QuizState{}, domain.ErrInvalidPlayer
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.retired {
		return domain.QuizState{}, domain.ErrQuizNotFound
	}
	if q.status != domain.StatusCreated {
		return domain.QuizState{}, domain.ErrQuizAlreadyStarted
	}
	if _, ok := q.players[playerID]; ok {
		return domain.QuizState{}, domain.ErrDuplicatePlayer
	}

	p := &domain.Player{ID: playerID, Name: name, JoinedAt: q.clock.Now()}
	q.roster = append(q.roster, p)
	q.players[playerID] = p
	q.logger.Info("player joined", "player_id", playerID, "players", len(q.roster))
	return q.changedLocked(), nil
}

// Start moves the quiz to IN_PROGRESS on its first question and arms the timer.
func (q *Quiz) Start(requesterID string) (domain.QuizState, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.retired {
		return domain.QuizState{}, domain.ErrQuizNotFound
	}
	if requesterID != q.creatorID {
		return domain.QuizState{}, domain.ErrNotCreator
	}
	if q.status != domain.StatusCreated {
		return domain.QuizState{}, domain.ErrQuizAlreadyStarted
	}
	if len(q.roster) == 0 {
		return domain.QuizState{}, domain.ErrEmptyRoster
	}

	q.status = domain.StatusInProgress
	q.startedAt = q.clock.Now()
	q.current = 0
	q.ledger = make(map[string]int, len(q.roster))
	q.armLocked()
	q.logger.Info("quiz started", "players", len(q.roster), "questions", len(q.questions))
	return q.changedLocked(), nil
}

// SubmitAnswer scores a player's answer to the current question. A non-empty
// questionID must name the open question; an answer that arrives after its
// question closed fails with ErrStaleAnswer and leaves the player free to
// answer the new one. When the whole roster has answered, the quiz advances
// immediately.
func (q *Quiz) SubmitAnswer(playerID, questionID string, option int) (domain.AnswerOutcome, error) {
	q.mu.Lock()
	outcome, results, err := q.submitLocked(playerID, questionID, option)
	q.mu.Unlock()

	q.emit(results)
	return outcome, err
}

func (q *Quiz) submitLocked(playerID, questionID string, option int) (domain.AnswerOutcome, []domain.QuizResult, error) {
	if q.status != domain.StatusInProgress {
		return domain.AnswerOutcome{}, nil, domain.ErrQuizNotInProgress
	}
	player, ok := q.players[playerID]
	if !ok {
		return domain.AnswerOutcome{}, nil, domain.ErrUnknownPlayer
	}
	question := q.questions[q.current]
	if questionID != "" && questionID != question.ID {
		return domain.AnswerOutcome{}, nil, domain.ErrStaleAnswer
	}
	if _, answered := q.ledger[playerID]; answered {
		return domain.AnswerOutcome{}, nil, domain.ErrAlreadyAnswered
	}
	if !question.HasOption(option) {
		return domain.AnswerOutcome{}, nil, domain.ErrInvalidOption
	}

	correct := q.scorer.Score(question, option)
	awarded := q.scorer.Apply(player, correct)
	q.ledger[playerID] = option

	outcome := domain.AnswerOutcome{
		QuestionID:    question.ID,
		QuestionIndex: q.current,
		Correct:       correct,
		Awarded:       awarded,
		TotalScore:    player.Score,
	}

	var results []domain.QuizResult
	if len(q.ledger) == len(q.roster) {
		outcome.Advanced = true
		results = q.advanceLocked("all players answered")
	}
	q.changedLocked()
	return outcome, results, nil
}

// Advance moves to the next question, or completes the quiz after the last one.
// It is a no-op on a completed quiz.
func (q *Quiz) Advance() (domain.QuizState, error) {
	q.mu.Lock()
	switch q.status {
	case domain.StatusCreated:
		q.mu.Unlock()
		return domain.QuizState{}, domain.ErrQuizNotInProgress
	case domain.StatusCompleted:
		state := q.snapshotLocked()
		q.mu.Unlock()
		return state, nil
	}
	results := q.advanceLocked("advanced manually")
	state := q.changedLocked()
	q.mu.Unlock()

	q.emit(results)
	return state, nil
}

// expire is the question timer callback.
func (q *Quiz) expire(round uint64) {
	q.mu.Lock()
	if q.status != domain.StatusInProgress || !q.timer.current(round) {
		q.mu.Unlock()
		return
	}
	results := q.advanceLocked("time expired")
	q.changedLocked()
	q.mu.Unlock()

	q.emit(results)
}

// advanceLocked returns the final results when this advance completed the quiz.
// A panic while advancing completes the quiz rather than leaving it stuck.
func (q *Quiz) advanceLocked(reason string) (results []domain.QuizResult) {
	if q.status != domain.StatusInProgress {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("advance failed, forcing completion", "panic", r)
			results = q.completeLocked()
		}
	}()

	q.timer.cancel()
	q.ledger = make(map[string]int, len(q.roster))
	if q.current+1 < len(q.questions) {
		q.current++
		q.armLocked()
		q.logger.Info("question advanced", "reason", reason, "question", q.current+1, "of", len(q.questions))
		return nil
	}
	q.logger.Info("last question closed", "reason", reason)
	return q.completeLocked()
}

func (q *Quiz) completeLocked() []domain.QuizResult {
	if q.status == domain.StatusCompleted {
		return nil
	}
	q.timer.cancel()
	q.status = domain.StatusCompleted
	q.current = len(q.questions)
	q.completedAt = q.clock.Now()
	q.ledger = make(map[string]int)

	results := q.scorer.Results(q.id, q.title, q.difficulty, len(q.questions), q.roster, q.completedAt)
	q.logger.Info("quiz completed", "players", len(results))
	return results
}

func (q *Quiz) armLocked() {
	q.timer.arm(q.timePerQuestion, q.expire)
}

func (q *Quiz) emit(results []domain.QuizResult) {
	if results == nil || q.onComplete == nil {
		return
	}
	q.onComplete(q.id, results)
}

// completedBefore reports whether the quiz completed at or before cutoff.
func (q *Quiz) completedBefore(cutoff time.Time) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.status == domain.StatusCompleted && !q.completedAt.After(cutoff)
}

// retire marks the quiz as removed and closes its subscriptions.
// An in-progress quiz cannot be retired.
func (q *Quiz) retire() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.status == domain.StatusInProgress {
		return domain.ErrQuizStillActive
	}
	q.retired = true
	q.timer.cancel()
	for ch := range q.subscribers {
		delete(q.subscribers, ch)
		close(ch)
	}
	return nil
}

// Subscribe returns a channel of state snapshots, starting with the current
// one. Slow readers only see the latest snapshot. The caller must invoke the
// returned cancel function.
func (q *Quiz) Subscribe() (<-chan domain.QuizState, func()) {
	ch := make(chan domain.QuizState, 8)

	q.mu.Lock()
	if q.retired {
		q.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	q.subscribers[ch] = struct{}{}
	ch <- q.snapshotLocked()
	q.mu.Unlock()

	cancel := func() {
		q.mu.Lock()
		if _, ok := q.subscribers[ch]; ok {
			delete(q.subscribers, ch)
			close(ch)
		}
		q.mu.Unlock()
	}
	return ch, cancel
}

func (q *Quiz) changedLocked() domain.QuizState {
	q.version++
	state := q.snapshotLocked()
	for ch := range q.subscribers {
		select {
		case ch <- state:
		default:
			// Drop the oldest pending snapshot so the newest always lands.
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
	return state
}

func (q *Quiz) snapshotLocked() domain.QuizState {
	players := make([]domain.Player, len(q.roster))
	for i, p := range q.roster {
		players[i] = *p
	}

	state := domain.QuizState{
		QuizID:               q.id,
		Title:                q.title,
		Status:               q.status,
		Difficulty:           q.difficulty,
		CreatorID:            q.creatorID,
		CurrentQuestionIndex: q.current,
		TotalQuestions:       len(q.questions),
		TimePerQuestionMs:    q.timePerQuestion.Milliseconds(),
		QuestionDeadline:     timePtr(q.timer.deadline),
		Players:              players,
		AnsweredCount:        len(q.ledger),
		Version:              q.version,
		CreatedAt:            q.createdAt,
		StartedAt:            timePtr(q.startedAt),
		CompletedAt:          timePtr(q.completedAt),
	}
	if q.status == domain.StatusInProgress {
		current := q.questions[q.current].Sanitized()
		state.CurrentQuestion = &current
	}
	return state
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
