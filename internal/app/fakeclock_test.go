package app_test

import (
	"sort"
	"sync"
	"time"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/domain"
)

// fakeClock is a manual clock. Advance fires due callbacks outside its lock,
// in deadline order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	// ignoreStop makes Stop report success without preventing the callback,
	// like a timer that already fired while its owner was busy.
	ignoreStop bool
	// armPanics makes AfterFunc panic.
	armPanics bool
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) app.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.armPanics {
		panic("clock unavailable")
	}
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.clock.ignoreStop {
		return true
	}
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward by d and runs every callback that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

// pending counts armed callbacks that have neither fired nor been stopped.
func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// recorder collects completion callbacks per quiz.
type recorder struct {
	mu    sync.Mutex
	calls map[string][][]domain.QuizResult
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[string][][]domain.QuizResult)}
}

func (r *recorder) ReportResults(quizID string, results []domain.QuizResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[quizID] = append(r.calls[quizID], results)
}

func (r *recorder) complete(quizID string, results []domain.QuizResult) {
	r.ReportResults(quizID, results)
}

func (r *recorder) count(quizID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls[quizID])
}

func (r *recorder) results(quizID string) []domain.QuizResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	calls := r.calls[quizID]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}
