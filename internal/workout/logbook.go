package workout

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/claude/replog/internal/docstore"
)

// Logbook is the client facade: it threads the normalizer, volume
// calculator, state machine, repository, and aggregator together, owns the
// single live entry subscription, and serializes every operation on one
// mutex — the Go rendering of the original's single event loop.
type Logbook struct {
	repo *Repo
	log  *slog.Logger

	mu      sync.Mutex
	tracker Tracker
	order   Order
	cancel  func()
	gen     uint64 // subscription generation; stale deliveries are dropped
	lastSeq uint64 // last applied snapshot within the current generation
	entries []Entry
	views   []SessionView

	onUpdate func([]SessionView)
}

// NewLogbook creates a logbook over the given store. Sort order starts
// descending (newest session first).
func NewLogbook(store docstore.Store, log *slog.Logger) *Logbook {
	return &Logbook{
		repo:  NewRepo(store),
		log:   log,
		order: Descending,
	}
}

// OnUpdate registers the renderer callback that receives recomputed view
// models. Set it before Watch; the callback runs outside the logbook lock.
func (l *Logbook) OnUpdate(fn func([]SessionView)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onUpdate = fn
}

// Watch establishes the live entry subscription with the current sort order.
func (l *Logbook) Watch(ctx context.Context) error {
	l.mu.Lock()
	order := l.order
	l.mu.Unlock()
	return l.resubscribe(ctx, order)
}

// SetSortOrder changes the group/query direction. The previous subscription
// is torn down before the new one is created, so at most one is ever active
// and no stale render pass can follow the switch.
func (l *Logbook) SetSortOrder(ctx context.Context, order Order) error {
	return l.resubscribe(ctx, order)
}

// Close tears down the live subscription.
func (l *Logbook) Close() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.gen++
	l.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (l *Logbook) resubscribe(ctx context.Context, order Order) error {
	l.mu.Lock()
	old := l.cancel
	l.cancel = nil
	l.gen++ // invalidates any in-flight delivery from the old subscription
	gen := l.gen
	l.order = order
	l.lastSeq = 0
	l.mu.Unlock()

	// Synchronous teardown, outside the lock: cancel blocks until an
	// in-flight delivery (which takes the lock) has finished.
	if old != nil {
		old()
	}

	cancel, err := l.repo.WatchEntries(ctx, order == Descending, func(entries []Entry, seq uint64) {
		l.apply(gen, seq, entries)
	})
	if err != nil {
		return err
	}

	l.mu.Lock()
	if l.gen != gen {
		// Replaced again while we were subscribing; this one loses.
		l.mu.Unlock()
		cancel()
		return nil
	}
	l.cancel = cancel
	l.mu.Unlock()
	return nil
}

// apply consumes one snapshot. Snapshots supersede each other: anything from
// a replaced subscription or older than the last applied one is discarded.
func (l *Logbook) apply(gen, seq uint64, entries []Entry) {
	l.mu.Lock()
	if gen != l.gen || seq <= l.lastSeq {
		l.mu.Unlock()
		return
	}
	l.lastSeq = seq
	l.entries = entries
	fn, views := l.recomputeLocked()
	l.mu.Unlock()

	if fn != nil {
		fn(views)
	}
}

// recomputeLocked rebuilds the view models from the cached snapshot and
// returns the update callback to invoke after unlocking.
func (l *Logbook) recomputeLocked() (func([]SessionView), []SessionView) {
	currentID := ""
	if s, ok := l.tracker.Current(); ok {
		currentID = s.ID
	}
	l.views = Aggregate(l.entries, l.order, currentID)
	return l.onUpdate, l.views
}

// StartSession begins a new workout session. The id is allocated client-side
// so it is known before the write completes.
func (l *Logbook) StartSession(ctx context.Context) (Session, error) {
	l.mu.Lock()
	prev := l.tracker
	s, err := l.tracker.Start(l.repo.NewSessionID(), time.Now().UTC())
	if err != nil {
		l.mu.Unlock()
		return Session{}, err
	}
	if err := l.repo.PutSession(ctx, s); err != nil {
		l.tracker = prev
		l.mu.Unlock()
		return Session{}, err
	}
	fn, views := l.recomputeLocked()
	l.mu.Unlock()

	if fn != nil {
		fn(views)
	}
	return s, nil
}

// RequestFinish opens the notes/summary step. Nothing is persisted yet.
func (l *Logbook) RequestFinish() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.RequestFinish()
}

// Finalize completes the current session with the given notes. Finalizing a
// session that has no entries requires force, so the renderer can ask the
// user first. A failed store write leaves the session active.
func (l *Logbook) Finalize(ctx context.Context, notes string, force bool) (Session, error) {
	l.mu.Lock()
	current, ok := l.tracker.Current()
	if !ok {
		l.mu.Unlock()
		return Session{}, ErrNoActiveSession
	}
	if !force {
		n, err := l.repo.CountEntries(ctx, current.ID)
		if err != nil {
			l.mu.Unlock()
			return Session{}, err
		}
		if n == 0 {
			l.mu.Unlock()
			return Session{}, ErrConfirmRequired
		}
	}

	prev := l.tracker
	s, err := l.tracker.Finalize(notes, time.Now().UTC())
	if err != nil {
		l.mu.Unlock()
		return Session{}, err
	}
	if err := l.repo.FinalizeSession(ctx, s); err != nil {
		l.tracker = prev
		l.mu.Unlock()
		return Session{}, err
	}
	fn, views := l.recomputeLocked()
	l.mu.Unlock()

	if fn != nil {
		fn(views)
	}
	return s, nil
}

// Discard deletes the current session outright. Only an empty session may be
// discarded; the entry count is confirmed against the store first.
func (l *Logbook) Discard(ctx context.Context) error {
	l.mu.Lock()
	current, ok := l.tracker.Current()
	if !ok {
		l.mu.Unlock()
		return ErrNoActiveSession
	}
	n, err := l.repo.CountEntries(ctx, current.ID)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if n > 0 {
		l.mu.Unlock()
		return ErrCannotDiscardNonEmpty
	}

	prev := l.tracker
	id, err := l.tracker.Discard()
	if err != nil {
		l.mu.Unlock()
		return err
	}
	if err := l.repo.DeleteSession(ctx, id); err != nil {
		l.tracker = prev
		l.mu.Unlock()
		return err
	}
	fn, views := l.recomputeLocked()
	l.mu.Unlock()

	if fn != nil {
		fn(views)
	}
	return nil
}

// SubmitEntry validates raw form input and persists it: a new entry against
// the ongoing session when editingID is empty, otherwise a full replace of
// the existing entry's fields. Validation failures happen before any store
// call.
func (l *Logbook) SubmitEntry(ctx context.Context, in EntryInput, editingID string) (Entry, error) {
	ne, err := NormalizeEntryInput(in)
	if err != nil {
		return Entry{}, err
	}
	if len(ne.Weights) > 1 && len(ne.Weights) != ne.Sets {
		// Known soft inconsistency: advisory only, never blocks the write.
		l.log.Warn("weight count does not match sets",
			"exercise", ne.Exercise,
			"sets", ne.Sets,
			"weights", len(ne.Weights),
		)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now().UTC()
	if editingID != "" {
		return l.repo.UpdateEntry(ctx, editingID, ne, now)
	}
	if !l.tracker.Ongoing() {
		return Entry{}, ErrNoActiveSession
	}
	current, _ := l.tracker.Current()
	return l.repo.CreateEntry(ctx, ne, current.ID, now)
}

// DeleteEntry removes one entry. Confirmation is the renderer's concern.
func (l *Logbook) DeleteEntry(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.repo.DeleteEntry(ctx, id)
}

// EntryForEdit fetches one entry to populate the edit form.
func (l *Logbook) EntryForEdit(ctx context.Context, id string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.repo.GetEntry(ctx, id)
}

// CurrentSession returns the active session, if any.
func (l *Logbook) CurrentSession() (Session, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tracker.Current()
}

// History runs a one-shot aggregation in the requested order, independent of
// the live subscription.
func (l *Logbook) History(ctx context.Context, order Order) ([]SessionView, error) {
	entries, err := l.repo.ListEntries(ctx, order == Descending)
	if err != nil {
		return nil, err
	}
	currentID := ""
	if s, ok := l.CurrentSession(); ok {
		currentID = s.ID
	}
	return Aggregate(entries, order, currentID), nil
}

// ExerciseOption is one datalist candidate for the exercise field.
type ExerciseOption struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// ExerciseNames returns the distinct exercises ever logged, freshest display
// spelling per key, sorted by key.
func (l *Logbook) ExerciseNames(ctx context.Context) ([]ExerciseOption, error) {
	entries, err := l.repo.ListEntries(ctx, false)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]string)
	for _, e := range entries {
		byKey[e.ExerciseKey] = e.Exercise
	}
	opts := make([]ExerciseOption, 0, len(byKey))
	for k, name := range byKey {
		opts = append(opts, ExerciseOption{Key: k, Name: name})
	}
	sort.Slice(opts, func(i, j int) bool { return opts[i].Key < opts[j].Key })
	return opts, nil
}
