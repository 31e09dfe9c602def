// Package autosave turns a stream of local field mutations into at most
// one save request per idle window. Coalescing only reduces write
// volume; correctness against concurrent editors still comes from the
// server's version check.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/krasl809/tradedesk/internal/session"
	"github.com/krasl809/tradedesk/internal/timing"
)

type State string

const (
	StateIdle   State = "idle"
	StateSaving State = "saving"
	StateSaved  State = "saved"
	StateError  State = "error"
)

const (
	DefaultDebounce   = 10 * time.Second
	DefaultResetAfter = 3 * time.Second
)

// Document is the pipeline's read-only view of the contract being
// edited. The guards live behind this interface so the pipeline never
// touches rendering state.
type Document interface {
	// HasServerID reports whether the contract has been created.
	HasServerID() bool
	// IsDraft reports whether the status still allows autosave.
	IsDraft() bool
	// ContentReady reports whether required parties are set and at
	// least one line item is well formed. Saves guaranteed to fail
	// validation are skipped client-side.
	ContentReady() bool
}

type Config struct {
	Debounce   time.Duration
	ResetAfter time.Duration
	Scheduler  timing.Scheduler // debounce timer
	Resetter   timing.Scheduler // saved/error indicator reset
}

type Pipeline struct {
	doc   Document
	save  func(ctx context.Context) error
	sched timing.Scheduler
	reset timing.Scheduler
	log   zerolog.Logger

	debounce   time.Duration
	resetAfter time.Duration

	mu     sync.Mutex
	state  State
	dirty  bool
	halted bool
}

// New wires a pipeline around the document view and the save function
// (typically session.Submit with the current form payload).
func New(doc Document, save func(ctx context.Context) error, log zerolog.Logger, cfg Config) *Pipeline {
	if cfg.Debounce == 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.ResetAfter == 0 {
		cfg.ResetAfter = DefaultResetAfter
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = timing.NewTimerScheduler()
	}
	if cfg.Resetter == nil {
		cfg.Resetter = timing.NewTimerScheduler()
	}
	return &Pipeline{
		doc:        doc,
		save:       save,
		sched:      cfg.Scheduler,
		reset:      cfg.Resetter,
		log:        log,
		debounce:   cfg.Debounce,
		resetAfter: cfg.ResetAfter,
		state:      StateIdle,
	}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Dirty reports whether an unsaved local mutation is recorded.
func (p *Pipeline) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// MarkDirty records a local mutation and restarts the debounce window.
// Only the last mutation in a burst causes a save.
func (p *Pipeline) MarkDirty() {
	p.mu.Lock()
	if p.halted {
		p.mu.Unlock()
		return
	}
	p.dirty = true
	p.mu.Unlock()

	p.sched.Schedule(p.debounce, func() {
		p.Flush(context.Background())
	})
}

// Flush attempts a save immediately. A trigger that lands while a save
// is in flight is dropped, not queued; the edit rides along on the next
// idle window instead.
func (p *Pipeline) Flush(ctx context.Context) {
	p.mu.Lock()
	if p.state == StateSaving {
		p.mu.Unlock()
		p.log.Debug().Msg("save already in flight, trigger dropped")
		return
	}
	if p.halted || !p.dirty {
		p.mu.Unlock()
		return
	}
	if !p.doc.HasServerID() || !p.doc.IsDraft() {
		p.mu.Unlock()
		return
	}
	if !p.doc.ContentReady() {
		p.state = StateIdle
		p.mu.Unlock()
		return
	}
	p.state = StateSaving
	p.dirty = false
	p.mu.Unlock()

	err := p.save(ctx)

	p.mu.Lock()
	switch {
	case err == nil:
		p.state = StateSaved
		p.scheduleReset()

	case errors.Is(err, session.ErrConflict):
		// Another user's write won. Re-triggering would keep losing,
		// so the dirty flag stays cleared and the pipeline halts until
		// the surrounding UI reloads the document.
		p.state = StateError
		p.halted = true
		p.dirty = false
		p.log.Warn().Msg("autosave halted on version conflict")

	default:
		p.state = StateError
		p.dirty = true
		p.scheduleReset()
		p.log.Error().Err(err).Msg("autosave failed")
	}
	p.mu.Unlock()
}

// Resume clears the conflict halt after the document has been reloaded
// with a fresh version.
func (p *Pipeline) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted = false
	p.state = StateIdle
}

// Halted reports whether a conflict has stopped further autosaves.
func (p *Pipeline) Halted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted
}

// Stop cancels the timers. An in-flight save is left to complete.
func (p *Pipeline) Stop() {
	p.sched.Cancel()
	p.reset.Cancel()
}

// scheduleReset arms the 3s indicator reset. Caller holds p.mu.
func (p *Pipeline) scheduleReset() {
	p.reset.Schedule(p.resetAfter, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.state == StateSaved || (p.state == StateError && !p.halted) {
			p.state = StateIdle
		}
	})
}
