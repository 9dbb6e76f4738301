package session

import (
	"strconv"
	"sync"
	"time"

	"participants-bot/internal/util"
)

// Locker serializes turns per user.
type Locker struct {
	keys util.KeyedMutex
}

// Lock blocks until no other turn for userID is running.
func (l *Locker) Lock(userID int64) (unlock func()) {
	return l.keys.Lock(strconv.FormatInt(userID, 10))
}

// Timers schedules one edit timer per user. Every Schedule call returns a
// new generation; a timer whose generation is no longer current does not
// fire its callback.
type Timers struct {
	mu     sync.Mutex
	gen    uint64
	timers map[int64]*entry
}

type entry struct {
	gen   uint64
	timer *time.Timer
}

func NewTimers() *Timers {
	return &Timers{timers: make(map[int64]*entry)}
}

// Schedule cancels any timer for userID and starts a new one. fire
// receives the generation it was scheduled with.
func (t *Timers) Schedule(userID int64, after time.Duration, fire func(gen uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.timers[userID]; ok {
		e.timer.Stop()
	}
	t.gen++
	gen := t.gen
	e := &entry{gen: gen}
	e.timer = time.AfterFunc(after, func() {
		if !t.release(userID, gen) {
			return
		}
		fire(gen)
	})
	t.timers[userID] = e
	return gen
}

// release removes the timer when gen is still current.
func (t *Timers) release(userID int64, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.timers[userID]
	if !ok || e.gen != gen {
		return false
	}
	delete(t.timers, userID)
	return true
}

// Cancel stops the timer for userID.
func (t *Timers) Cancel(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.timers[userID]; ok {
		e.timer.Stop()
		delete(t.timers, userID)
	}
}

// Current reports whether gen is the live timer of userID.
func (t *Timers) Current(userID int64, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.timers[userID]
	return ok && e.gen == gen
}

// Stop cancels every timer.
func (t *Timers) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, e := range t.timers {
		e.timer.Stop()
		delete(t.timers, id)
	}
}
