package workout

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/replog/internal/docstore"
)

// Repo translates session and entry operations onto document store calls.
// It never retries: store failures surface to the caller unchanged.
type Repo struct {
	store docstore.Store
}

// NewRepo creates a repository over the given store.
func NewRepo(store docstore.Store) *Repo {
	return &Repo{store: store}
}

// NewSessionID pre-allocates a session id so the id is known before the
// first write completes.
func (r *Repo) NewSessionID() string {
	return r.store.NewID()
}

// PutSession writes a session record under its pre-allocated id.
func (r *Repo) PutSession(ctx context.Context, s Session) error {
	if err := r.store.Put(ctx, CollectionSessions, s.ID, s); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// FinalizeSession marks a session completed, patching only the fields the
// transition owns.
func (r *Repo) FinalizeSession(ctx context.Context, s Session) error {
	err := r.store.Patch(ctx, CollectionSessions, s.ID, map[string]any{
		"status":  s.Status,
		"endedAt": s.EndedAt,
		"notes":   s.Notes,
	})
	if err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}
	return nil
}

// DeleteSession removes a session record outright (discard).
func (r *Repo) DeleteSession(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionSessions, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CreateEntry persists a normalized entry against the active session. Volume
// is computed here, at write time, never taken from the caller. An empty
// session id is rejected: new entries always belong to a session.
func (r *Repo) CreateEntry(ctx context.Context, ne NormalizedEntry, sessionID string, now time.Time) (Entry, error) {
	if sessionID == "" {
		return Entry{}, ErrNoActiveSession
	}

	e := Entry{
		SessionID:   sessionID,
		Exercise:    ne.Exercise,
		ExerciseKey: ne.ExerciseKey,
		Sets:        ne.Sets,
		Reps:        ne.Reps,
		WeightsRaw:  ne.WeightsRaw,
		Weights:     ne.Weights,
		Volume:      ComputeVolume(ne.Sets, ne.Reps, ne.Weights),
		Failure:     ne.Failure,
		UpdatedAt:   now,
	}
	doc, err := r.store.Create(ctx, CollectionEntries, e.document())
	if err != nil {
		return Entry{}, fmt.Errorf("creating entry: %w", err)
	}
	e.ID = doc.ID
	e.CreatedAt = doc.CreatedAt
	return e, nil
}

// UpdateEntry replaces the mutable fields of an entry. The session reference
// is preserved; volume is recomputed from the new fields.
func (r *Repo) UpdateEntry(ctx context.Context, id string, ne NormalizedEntry, now time.Time) (Entry, error) {
	err := r.store.Patch(ctx, CollectionEntries, id, map[string]any{
		"exercise":      ne.Exercise,
		"exerciseKey":   ne.ExerciseKey,
		"sets":          ne.Sets,
		"reps":          ne.Reps,
		"weights":       ne.WeightsRaw,
		"weightsParsed": ne.Weights,
		"volume":        ComputeVolume(ne.Sets, ne.Reps, ne.Weights),
		"failure":       ne.Failure,
		"updatedAt":     now,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("updating entry: %w", err)
	}
	return r.GetEntry(ctx, id)
}

// DeleteEntry removes one entry unconditionally. The renderer obtains user
// confirmation before calling.
func (r *Repo) DeleteEntry(ctx context.Context, id string) error {
	if err := r.store.Delete(ctx, CollectionEntries, id); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return nil
}

// GetEntry fetches one entry, e.g. to populate the edit form.
func (r *Repo) GetEntry(ctx context.Context, id string) (Entry, error) {
	doc, err := r.store.Get(ctx, CollectionEntries, id)
	if err != nil {
		return Entry{}, err
	}
	return EntryFromDocument(doc)
}

// EntriesBySession returns a session's entries in creation order.
func (r *Repo) EntriesBySession(ctx context.Context, sessionID string) ([]Entry, error) {
	docs, err := r.store.Query(ctx, CollectionEntries, docstore.Query{
		Filter: &docstore.Filter{Field: "sessionId", Value: sessionID},
	})
	if err != nil {
		return nil, fmt.Errorf("querying session entries: %w", err)
	}
	return entriesFromDocs(docs), nil
}

// CountEntries reports how many entries reference the session. Used to
// confirm emptiness before a discard.
func (r *Repo) CountEntries(ctx context.Context, sessionID string) (int, error) {
	entries, err := r.EntriesBySession(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// ListEntries returns every entry in the store, ordered by creation time.
func (r *Repo) ListEntries(ctx context.Context, descending bool) ([]Entry, error) {
	docs, err := r.store.Query(ctx, CollectionEntries, docstore.Query{Descending: descending})
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	return entriesFromDocs(docs), nil
}

// WatchEntries subscribes to the entries collection. fn receives the full
// decoded result set and the snapshot sequence number on every change.
func (r *Repo) WatchEntries(ctx context.Context, descending bool, fn func([]Entry, uint64)) (func(), error) {
	return r.store.Subscribe(ctx, CollectionEntries, docstore.Query{Descending: descending},
		func(snap docstore.Snapshot) {
			fn(entriesFromDocs(snap.Docs), snap.Seq)
		})
}

// entriesFromDocs decodes a result set. A malformed document is skipped
// rather than invalidating the whole snapshot.
func entriesFromDocs(docs []docstore.Document) []Entry {
	entries := make([]Entry, 0, len(docs))
	for _, doc := range docs {
		e, err := EntryFromDocument(doc)
		if err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}
