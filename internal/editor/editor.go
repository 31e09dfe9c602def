// Package editor coordinates the per-document machinery around one open
// contract edit surface: the versioned session, the autosave pipeline,
// the local draft snapshot and the presence channel. The pieces stay
// independently testable; the editor only routes mutations to them.
package editor

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/krasl809/tradedesk/internal/autosave"
	"github.com/krasl809/tradedesk/internal/draft"
	"github.com/krasl809/tradedesk/internal/model"
	"github.com/krasl809/tradedesk/internal/presence"
	"github.com/krasl809/tradedesk/internal/session"
)

type Config struct {
	Session  *session.Session
	Drafts   *draft.Manager    // optional, only used while uncreated
	Presence *presence.Channel // optional
	Autosave autosave.Config
	Logger   zerolog.Logger
}

type Editor struct {
	sess     *session.Session
	drafts   *draft.Manager
	channel  *presence.Channel
	pipeline *autosave.Pipeline
	log      zerolog.Logger

	mu      sync.Mutex
	id      *uuid.UUID
	status  model.ContractStatus
	form    map[string]any
	items   []model.ContractItem
	charter []model.CharterItem
}

// New returns an editor for a not-yet-created contract. Load binds it
// to an existing one.
func New(cfg Config) *Editor {
	e := &Editor{
		sess:    cfg.Session,
		drafts:  cfg.Drafts,
		channel: cfg.Presence,
		log:     cfg.Logger,
		status:  model.ContractStatusDraft,
		form:    make(map[string]any),
	}
	e.pipeline = autosave.New(e, e.saveForm, cfg.Logger, cfg.Autosave)
	return e
}

// Load populates the editor from a contract fetched off the server.
func (e *Editor) Load(c model.Contract) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := c.ID
	e.id = &id
	e.status = c.Status
	e.items = append([]model.ContractItem(nil), c.Items...)
	e.form["number"] = c.Number
	e.form["direction"] = string(c.Direction)
	e.form["incoterm"] = c.Incoterm
	e.form["currency"] = c.Currency
	if c.SellerID != nil {
		e.form["seller_id"] = c.SellerID.String()
	}
	if c.BuyerID != nil {
		e.form["buyer_id"] = c.BuyerID.String()
	}
}

// Mount restores an unexpired draft snapshot for a fresh document and
// joins the presence room for an existing one.
func (e *Editor) Mount(ctx context.Context) error {
	e.mu.Lock()
	created := e.id != nil
	e.mu.Unlock()

	if !created && e.drafts != nil {
		snap, ok, err := e.drafts.Restore()
		if err != nil {
			return err
		}
		if ok {
			e.mu.Lock()
			for k, v := range snap.FormData {
				e.form[k] = v
			}
			e.items = snap.Items
			e.charter = snap.CharterItems
			e.mu.Unlock()
			e.log.Info().Msg("draft snapshot restored")
		}
	}
	if created && e.channel != nil {
		e.channel.Start(ctx)
	}
	return nil
}

// Unmount stops the timers and announces departure. Stored draft
// snapshots survive for the next mount.
func (e *Editor) Unmount() {
	e.pipeline.Stop()
	if e.drafts != nil {
		e.drafts.Stop()
	}
	if e.channel != nil {
		e.channel.Close()
	}
}

// SetField records a single form mutation and restarts whichever
// debounce window applies to the document's lifecycle stage.
func (e *Editor) SetField(name string, value any) {
	e.mu.Lock()
	e.form[name] = value
	e.mu.Unlock()
	e.afterMutation()
}

func (e *Editor) SetItems(items []model.ContractItem) {
	e.mu.Lock()
	e.items = append([]model.ContractItem(nil), items...)
	e.mu.Unlock()
	e.afterMutation()
}

func (e *Editor) SetCharterItems(items []model.CharterItem) {
	e.mu.Lock()
	e.charter = append([]model.CharterItem(nil), items...)
	e.mu.Unlock()
	e.afterMutation()
}

func (e *Editor) afterMutation() {
	e.mu.Lock()
	created := e.id != nil
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if created {
		e.pipeline.MarkDirty()
		return
	}
	if e.drafts != nil {
		e.drafts.Touch(snap)
	}
}

// Create posts the form as a new contract. On success the editor flips
// to created mode and the local draft snapshot is discarded.
func (e *Editor) Create(ctx context.Context) (uuid.UUID, error) {
	e.mu.Lock()
	payload := e.payloadLocked()
	e.mu.Unlock()

	result, err := e.sess.Create(ctx, payload)
	if err != nil {
		return uuid.Nil, err
	}

	e.mu.Lock()
	id := result.ID
	e.id = &id
	e.status = model.ContractStatusDraft
	e.mu.Unlock()

	if e.drafts != nil {
		if err := e.drafts.Discard(); err != nil {
			e.log.Error().Err(err).Msg("discard draft after create")
		}
	}
	return result.ID, nil
}

// ReloadAfterConflict refreshes the version token and lets autosave run
// again. The caller re-renders from server state first.
func (e *Editor) ReloadAfterConflict(ctx context.Context) (int64, error) {
	version, err := e.sess.Reload(ctx)
	if err != nil {
		return 0, err
	}
	e.pipeline.Resume()
	return version, nil
}

func (e *Editor) SaveState() autosave.State { return e.pipeline.State() }

func (e *Editor) Dirty() bool { return e.pipeline.Dirty() }

func (e *Editor) Halted() bool { return e.pipeline.Halted() }

// HasServerID implements autosave.Document.
func (e *Editor) HasServerID() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id != nil
}

// IsDraft implements autosave.Document.
func (e *Editor) IsDraft() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status == model.ContractStatusDraft
}

// ContentReady implements autosave.Document: both parties picked and at
// least one line item that would survive validation.
func (e *Editor) ContentReady() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.fieldSetLocked("seller_id") || !e.fieldSetLocked("buyer_id") {
		return false
	}
	for _, item := range e.items {
		if item.WellFormed() {
			return true
		}
	}
	return false
}

func (e *Editor) saveForm(ctx context.Context) error {
	e.mu.Lock()
	payload := e.payloadLocked()
	e.mu.Unlock()
	_, err := e.sess.Submit(ctx, payload)
	return err
}

func (e *Editor) fieldSetLocked(name string) bool {
	v, ok := e.form[name]
	if !ok {
		return false
	}
	s, isString := v.(string)
	return !isString || s != ""
}

func (e *Editor) snapshotLocked() draft.Snapshot {
	form := make(map[string]any, len(e.form))
	for k, v := range e.form {
		form[k] = v
	}
	return draft.Snapshot{
		FormData:     form,
		Items:        append([]model.ContractItem(nil), e.items...),
		CharterItems: append([]model.CharterItem(nil), e.charter...),
	}
}

func (e *Editor) payloadLocked() map[string]any {
	payload := make(map[string]any, len(e.form)+1)
	for k, v := range e.form {
		payload[k] = v
	}
	items := make([]map[string]any, 0, len(e.items))
	for _, item := range e.items {
		items = append(items, map[string]any{
			"article_id":   item.ArticleID.String(),
			"qty_ton":      item.QtyTon,
			"price":        item.Price,
			"premium":      item.Premium,
			"pricing_mode": string(item.PricingMode),
		})
	}
	payload["items"] = items
	return payload
}
