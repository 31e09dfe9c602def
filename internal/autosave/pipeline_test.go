package autosave

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krasl809/tradedesk/internal/session"
	"github.com/krasl809/tradedesk/internal/timing"
)

type fakeDoc struct {
	hasID   bool
	draft   bool
	content bool
}

func (d *fakeDoc) HasServerID() bool  { return d.hasID }
func (d *fakeDoc) IsDraft() bool      { return d.draft }
func (d *fakeDoc) ContentReady() bool { return d.content }

func editableDoc() *fakeDoc {
	return &fakeDoc{hasID: true, draft: true, content: true}
}

func newPipeline(doc Document, save func(ctx context.Context) error) (*Pipeline, *timing.ManualScheduler, *timing.ManualScheduler) {
	sched := timing.NewManualScheduler()
	reset := timing.NewManualScheduler()
	p := New(doc, save, zerolog.Nop(), Config{Scheduler: sched, Resetter: reset})
	return p, sched, reset
}

func TestPipeline_CoalescesBurstIntoOneSave(t *testing.T) {
	var saves atomic.Int32
	p, sched, _ := newPipeline(editableDoc(), func(ctx context.Context) error {
		saves.Add(1)
		return nil
	})

	// Every mutation reschedules; only the last one fires.
	for i := 0; i < 5; i++ {
		p.MarkDirty()
	}
	assert.Equal(t, 5, sched.Scheduled)
	assert.Equal(t, DefaultDebounce, sched.LastDelay)

	sched.Fire()
	assert.Equal(t, int32(1), saves.Load())
	assert.Equal(t, StateSaved, p.State())
	assert.False(t, p.Dirty())

	// No dirty edits left, firing again is a no-op.
	sched.Fire()
	assert.Equal(t, int32(1), saves.Load())
}

func TestPipeline_SavedResetsToIdleAfterIndicatorWindow(t *testing.T) {
	p, sched, reset := newPipeline(editableDoc(), func(ctx context.Context) error { return nil })

	p.MarkDirty()
	sched.Fire()
	require.Equal(t, StateSaved, p.State())
	assert.Equal(t, DefaultResetAfter, reset.LastDelay)

	reset.Fire()
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_SkipsWithoutServerIDOrNonDraft(t *testing.T) {
	var saves atomic.Int32
	doc := &fakeDoc{hasID: false, draft: true, content: true}
	p, sched, _ := newPipeline(doc, func(ctx context.Context) error {
		saves.Add(1)
		return nil
	})

	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, int32(0), saves.Load())

	doc.hasID = true
	doc.draft = false
	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, int32(0), saves.Load())
	// The edit is still recorded for when the document becomes savable.
	assert.True(t, p.Dirty())
}

func TestPipeline_ContentGuardSkipsDoomedSave(t *testing.T) {
	var saves atomic.Int32
	doc := editableDoc()
	doc.content = false
	p, sched, _ := newPipeline(doc, func(ctx context.Context) error {
		saves.Add(1)
		return nil
	})

	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, int32(0), saves.Load())
	assert.Equal(t, StateIdle, p.State())
}

func TestPipeline_TriggerDuringSaveDropped(t *testing.T) {
	// Pins the drop-not-queue semantics: an edit made during a save is
	// not persisted until the next idle window naturally retriggers.
	var saves atomic.Int32
	block := make(chan struct{})
	p, sched, _ := newPipeline(editableDoc(), func(ctx context.Context) error {
		saves.Add(1)
		<-block
		return nil
	})

	p.MarkDirty()
	go sched.Fire()

	require.Eventually(t, func() bool { return p.State() == StateSaving }, time.Second, time.Millisecond)

	p.MarkDirty()
	sched.Fire() // lands while saving: dropped
	assert.Equal(t, int32(1), saves.Load())

	close(block)
	require.Eventually(t, func() bool { return p.State() == StateSaved }, time.Second, time.Millisecond)

	// The dropped edit is still dirty and saves on the next window.
	assert.True(t, p.Dirty())
	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, int32(2), saves.Load())
}

func TestPipeline_ConflictHaltsAndPersistsErrorState(t *testing.T) {
	p, sched, reset := newPipeline(editableDoc(), func(ctx context.Context) error {
		return session.ErrConflict
	})

	p.MarkDirty()
	sched.Fire()

	assert.Equal(t, StateError, p.State())
	assert.True(t, p.Halted())
	assert.False(t, p.Dirty())

	// Conflict indicator persists: the reset timer must not clear it.
	reset.Fire()
	assert.Equal(t, StateError, p.State())

	// New edits are ignored while halted.
	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, StateError, p.State())

	p.Resume()
	assert.Equal(t, StateIdle, p.State())
	assert.False(t, p.Halted())
}

func TestPipeline_TransientErrorKeepsDirtyAndResets(t *testing.T) {
	fail := true
	p, sched, reset := newPipeline(editableDoc(), func(ctx context.Context) error {
		if fail {
			return errors.New("connection refused")
		}
		return nil
	})

	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, StateError, p.State())
	assert.True(t, p.Dirty())

	reset.Fire()
	assert.Equal(t, StateIdle, p.State())

	// No automatic retry: only the next mutation's debounce cycle saves.
	fail = false
	p.MarkDirty()
	sched.Fire()
	assert.Equal(t, StateSaved, p.State())
}
