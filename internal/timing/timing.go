// Package timing holds the small scheduling ports the edit-engine
// debouncers run on, so the 10s/5s timers are testable without real
// sleeps.
package timing

import (
	"sync"
	"time"
)

// Scheduler runs a single pending callback after a delay. Scheduling
// again before the callback fires replaces it (cancel + reschedule),
// which is exactly the debounce semantics the pipelines need.
type Scheduler interface {
	Schedule(delay time.Duration, fn func())
	Cancel()
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock.
var SystemClock Clock = systemClock{}

// TimerScheduler is the production Scheduler backed by time.Timer.
type TimerScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

func (s *TimerScheduler) Schedule(delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(delay, fn)
}

func (s *TimerScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
