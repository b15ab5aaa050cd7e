package app

import "time"

// questionTimer is the countdown of the active question. It is owned by a Quiz
// and only touched while the quiz lock is held.
//
// Every arm starts a new round. An expiry callback carries the round it was
// armed for, so a callback that lost the race against an advance (or against
// cancel) sees a different round, or no armed timer, and does nothing.
type questionTimer struct {
	clock    Clock
	timer    Timer
	round    uint64
	deadline time.Time
}

func newQuestionTimer(clock Clock) questionTimer {
	return questionTimer{clock: clock}
}

// arm cancels any pending countdown and starts a fresh one for d.
func (t *questionTimer) arm(d time.Duration, onExpire func(round uint64)) {
	t.cancel()
	t.round++
	round := t.round
	t.deadline = t.clock.Now().Add(d)
	t.timer = t.clock.AfterFunc(d, func() { onExpire(round) })
}

func (t *questionTimer) cancel() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.deadline = time.Time{}
}

// current reports whether round is the armed, uncancelled countdown.
func (t *questionTimer) current(round uint64) bool {
	return t.timer != nil && t.round == round
}
