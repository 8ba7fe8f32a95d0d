package annotator

import (
	"sync"

	"github.com/LokeshNardil/annotation-b-f/pkg/annotation"
	"github.com/LokeshNardil/annotation-b-f/pkg/collab"
	"github.com/LokeshNardil/annotation-b-f/pkg/config"
	"github.com/LokeshNardil/annotation-b-f/pkg/hittest"
	"github.com/LokeshNardil/annotation-b-f/pkg/history"
	"github.com/LokeshNardil/annotation-b-f/pkg/logger"
	"github.com/LokeshNardil/annotation-b-f/pkg/realtime"
	"github.com/LokeshNardil/annotation-b-f/pkg/snapshot"
	"github.com/LokeshNardil/annotation-b-f/pkg/store"
	"github.com/LokeshNardil/annotation-b-f/pkg/transform"
)

// Persister is the side effect run after every mutating operation; a
// snapshot.Store satisfies it. Failures are non-fatal: they are logged and
// the in-memory state stands.
type Persister interface {
	Save(imageURL string, snap snapshot.Snapshot) error
	Load(imageURL string) (snapshot.Snapshot, bool)
}

// Broadcaster publishes local mutations to the sync authority; a
// realtime.Client satisfies it. A nil Broadcaster means offline editing.
type Broadcaster interface {
	SendCreate(a *annotation.Annotation) error
	SendUpdate(a *annotation.Annotation) error
	SendDelete(id string, version int64) error
	SendSelection(annotationID, imageID string) error
	SendSelectionClear() error
	TrackViewport(id string)
}

// Options configures an Engine; zero values get defaults.
type Options struct {
	Config      *config.Config
	Logger      logger.Logger
	Persister   Persister
	Broadcaster Broadcaster
}

// Engine owns one open document: the annotation store, its history, the
// view transform and the remote-user registry. Local mutations flow
// store → history → persistence → broadcast; inbound sync messages flow
// into the store or the registry directly, never through history.
type Engine struct {
	mu sync.Mutex

	cfg  *config.Config
	log  logger.Logger
	anns *store.Store
	hist *history.Log
	view *transform.Engine
	prs  *collab.Registry

	persist Persister
	bcast   Broadcaster

	imageURL    string
	activeLabel string
	preview     *previewTimer
}

// New builds an Engine. localUserID is the id decoded from the session
// token; it keeps the local user out of the presence registry.
func New(localUserID string, opts Options) *Engine {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	e := &Engine{
		cfg:     opts.Config,
		log:     opts.Logger,
		anns:    store.New(opts.Config.Catalog()),
		hist:    history.NewLog(opts.Config.HistoryCap),
		view:    transform.NewEngine(),
		prs:     collab.NewRegistry(localUserID),
		persist: opts.Persister,
		bcast:   opts.Broadcaster,
	}
	e.preview = newPreviewTimer(opts.Config.LabelPreviewDelay.Std(), e.applyPreview)
	return e
}

// RealtimeOptions builds the sync client options for this engine: the
// engine handles inbound frames and the configured heartbeat interval
// applies.
func (e *Engine) RealtimeOptions() realtime.Options {
	return realtime.Options{
		Handler:   e,
		Logger:    e.log,
		Heartbeat: e.cfg.HeartbeatInterval.Std(),
	}
}

// Store exposes the annotation collection for read access and hit-testing.
func (e *Engine) Store() *store.Store { return e.anns }

// View exposes the coordinate transform engine.
func (e *Engine) View() *transform.Engine { return e.view }

// Collab exposes the remote-user registry.
func (e *Engine) Collab() *collab.Registry { return e.prs }

// SetImage switches the engine to a new document. The transform resets,
// history restarts, and any persisted working state for the image is
// restored.
func (e *Engine) SetImage(imageURL string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.preview.cancel()
	e.imageURL = imageURL
	e.view.Reset()
	e.anns.ImportSnapshot(nil) //nolint:errcheck // empty import cannot fail

	if e.persist != nil && imageURL != "" {
		if snap, ok := e.persist.Load(imageURL); ok {
			if err := e.anns.ImportSnapshot(snap.Annotations); err != nil {
				e.log.Warn("persisted snapshot rejected", "image", imageURL, "error", err)
			} else {
				e.view.SetTransform(snap.Transform)
				e.activeLabel = snap.ActiveLabel
			}
		}
	}
	e.hist.Reset(e.anns.ExportSnapshot())
	// Persist right away so the image shows up in the snapshot index even
	// before the first edit.
	e.persistNow()
}

// ImageURL returns the active document's image URL.
func (e *Engine) ImageURL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.imageURL
}

// SetActiveLabel records the label applied to newly drawn annotations.
func (e *Engine) SetActiveLabel(label string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeLabel = label
	e.persistNow()
}

// ActiveLabel returns the label applied to newly drawn annotations.
func (e *Engine) ActiveLabel() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeLabel
}

// Add inserts a locally created annotation and runs the mutation side
// effects: history snapshot, persistence and broadcast.
func (e *Engine) Add(a *annotation.Annotation) (*annotation.Annotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	added, err := e.anns.Add(a)
	if err != nil {
		return nil, err
	}
	e.commit()
	if e.bcast != nil {
		if err := e.bcast.SendCreate(added); err != nil {
			e.log.Warn("create not broadcast", "id", added.ID, "error", err)
		}
	}
	return added, nil
}

// FinishDraw completes a draw gesture given in screen coordinates: the drag
// box is converted to image space and added with the active label.
func (e *Engine) FinishDraw(sx1, sy1, sx2, sy2 float64) (*annotation.Annotation, error) {
	e.mu.Lock()
	ix1, iy1 := e.view.ScreenToImage(sx1, sy1)
	ix2, iy2 := e.view.ScreenToImage(sx2, sy2)
	label := e.activeLabel
	e.mu.Unlock()

	box := hittest.DragBox(ix1, iy1, ix2, iy2)
	return e.Add(&annotation.Annotation{Label: label, Rect: box})
}

// Update applies a partial change and runs the mutation side effects.
func (e *Engine) Update(id string, p annotation.Patch) (*annotation.Annotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.update(id, p)
}

func (e *Engine) update(id string, p annotation.Patch) (*annotation.Annotation, error) {
	updated, err := e.anns.Update(id, p)
	if err != nil {
		return nil, err
	}
	e.commit()
	if e.bcast != nil {
		if err := e.bcast.SendUpdate(updated); err != nil {
			e.log.Warn("update not broadcast", "id", id, "error", err)
		}
	}
	return updated, nil
}

// Delete removes an annotation, cascading when it is a profile, and
// broadcasts one delete per removed annotation.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed, err := e.anns.Delete(id)
	if err != nil {
		return err
	}
	e.commit()
	e.broadcastDeletes(removed)
	return nil
}

// DeleteSelected removes every selected annotation as one batch and one
// history entry.
func (e *Engine) DeleteSelected() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := e.anns.DeleteMany(e.anns.Selection())
	if len(removed) == 0 {
		return 0
	}
	e.commit()
	e.broadcastDeletes(removed)
	return len(removed)
}

func (e *Engine) broadcastDeletes(removed []*annotation.Annotation) {
	if e.bcast == nil {
		return
	}
	for _, r := range removed {
		if err := e.bcast.SendDelete(r.ID, r.Version); err != nil {
			e.log.Warn("delete not broadcast", "id", r.ID, "error", err)
		}
	}
}

// Select resolves selection semantics in the store and mirrors the result
// to the sync authority.
func (e *Engine) Select(id string, additive bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.anns.Select(id, additive); err != nil {
		return err
	}
	if e.bcast != nil {
		if err := e.bcast.SendSelection(id, e.imageURL); err != nil {
			e.log.Warn("selection not broadcast", "id", id, "error", err)
		}
	}
	return nil
}

// ClearSelection empties the selection, e.g. on the cancel key.
func (e *Engine) ClearSelection() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.anns.ClearSelection()
	if e.bcast != nil {
		if err := e.bcast.SendSelectionClear(); err != nil {
			e.log.Warn("selection clear not broadcast", "error", err)
		}
	}
}

// HitAt resolves a click at screen coordinates against the active set,
// honoring profile-first precedence.
func (e *Engine) HitAt(sx, sy float64) *annotation.Annotation {
	e.mu.Lock()
	defer e.mu.Unlock()
	ix, iy := e.view.ScreenToImage(sx, sy)
	return hittest.TopHit(e.anns.Active(), ix, iy, e.anns.SelectedProfiles())
}

// MarqueeSelect selects every annotation fully contained in the screen-space
// drag rectangle and returns the selected ids.
func (e *Engine) MarqueeSelect(sx1, sy1, sx2, sy2 float64) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ix1, iy1 := e.view.ScreenToImage(sx1, sy1)
	ix2, iy2 := e.view.ScreenToImage(sx2, sy2)
	box := hittest.DragBox(ix1, iy1, ix2, iy2)

	ids := hittest.Marquee(e.anns.Active(), box)
	e.anns.SelectExact(ids)
	return ids
}

// ActivateProfile promotes the profile's pending children, records history,
// and subscribes the sync client to the profile's annotation list.
func (e *Engine) ActivateProfile(id string) ([]*annotation.Annotation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	moved, err := e.anns.ActivateProfile(id)
	if err != nil {
		return nil, err
	}
	e.commit()
	if e.bcast != nil {
		e.bcast.TrackViewport(id)
	}
	return moved, nil
}

// Reconcile recomputes implicit parent links, after bulk imports.
func (e *Engine) Reconcile() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	changed := e.anns.Reconcile()
	if changed {
		e.persistNow()
	}
	return changed
}

// Undo steps the document back one history entry. The selection is cleared;
// nothing is broadcast, remote peers are reconciled by the authority.
func (e *Engine) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok := e.hist.Undo()
	if !ok {
		return false
	}
	e.anns.ReplaceActive(snap)
	e.anns.ClearSelection()
	e.persistNow()
	return true
}

// Redo steps the document forward one history entry.
func (e *Engine) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap, ok := e.hist.Redo()
	if !ok {
		return false
	}
	e.anns.ReplaceActive(snap)
	e.anns.ClearSelection()
	e.persistNow()
	return true
}

// commit runs the side effects of a completed local mutation with e.mu
// held: a history snapshot, then persistence.
func (e *Engine) commit() {
	e.hist.Record(e.anns.ExportSnapshot())
	e.persistNow()
}

func (e *Engine) persistNow() {
	if e.persist == nil || e.imageURL == "" {
		return
	}
	snap := snapshot.Snapshot{
		Annotations: e.anns.ExportSnapshot(),
		ActiveLabel: e.activeLabel,
		Transform:   e.view.Transform(),
	}
	if err := e.persist.Save(e.imageURL, snap); err != nil {
		e.log.Warn("working state not persisted", "image", e.imageURL, "error", err)
	}
}

// --- realtime.Handler ---

var _ realtime.Handler = (*Engine)(nil)

func (e *Engine) HandlePresenceJoin(u realtime.UserRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prs.Touch(u.ID, u.Name)
	e.prunePresence()
}

func (e *Engine) HandlePresenceLeave(u realtime.UserRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prs.Leave(u.ID)
}

func (e *Engine) HandleCursor(u realtime.UserRef, cur realtime.CursorPayload) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prs.SetCursor(u.ID, u.Name, collab.Cursor{X: cur.X, Y: cur.Y, Tool: cur.Tool})
	e.prunePresence()
}

// prunePresence drops remote users whose last event is older than the
// configured presence expiry. Called with e.mu held on presence traffic, so
// a stale user disappears on the next inbound frame at the latest.
func (e *Engine) prunePresence() {
	for _, id := range e.prs.Prune(e.cfg.PresenceExpiry.Std()) {
		e.log.Debug("remote user expired", "user", id)
	}
}

func (e *Engine) HandleSelection(u realtime.UserRef, selectionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prs.SetSelection(u.ID, u.Name, selectionID)
}

func (e *Engine) HandleSelectionClear(u realtime.UserRef) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.prs.ClearSelection(u.ID)
}

func (e *Engine) HandleAnnotationList(viewportID string, items []*annotation.Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.anns.IngestRemoteList(viewportID, items)
	e.anns.Reconcile()
	e.persistNow()
}

func (e *Engine) HandleAnnotationUpsert(a *annotation.Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.anns.UpsertRemote(a); err != nil {
		e.log.Warn("remote annotation rejected", "id", a.ID, "error", err)
		return
	}
	e.persistNow()
}

func (e *Engine) HandleAnnotationDelete(a *annotation.Annotation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.anns.RemoveRemote(a.ID)
	e.persistNow()
}

func (e *Engine) HandleProtocolError(event, message string) {
	e.log.Error("sync authority rejected event", "event", event, "message", message)
}
