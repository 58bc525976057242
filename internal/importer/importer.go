// Package importer migrates a JSON export of the old gymEntries collection
// into the document store.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/claude/replog/internal/docstore"
	"github.com/claude/replog/internal/workout"
)

// Stats tracks import progress.
type Stats struct {
	EntriesImported int
	EntriesSkipped  int
	LegacyEntries   int
	SessionsCreated int
}

// Importer reads an exported gymEntries JSON file and writes canonical
// documents into the store.
type Importer struct {
	store  docstore.Store
	log    *slog.Logger
	dryRun bool
	stats  Stats
}

// New creates a new Importer.
func New(store docstore.Store, log *slog.Logger, dryRun bool) *Importer {
	return &Importer{store: store, log: log, dryRun: dryRun}
}

// exportEntry is one record of the export file. Timestamps arrive either as
// RFC3339 strings or as the exporter's {_seconds, _nanoseconds} object.
type exportEntry struct {
	ID        string     `json:"id"`
	WorkoutID *string    `json:"workoutId"`
	Exercise  string     `json:"exercise"`
	Sets      int        `json:"sets"`
	Reps      int        `json:"reps"`
	Weights   string     `json:"weights"`
	Failure   bool       `json:"failure"`
	Volume    float64    `json:"volume"`
	CreatedAt exportTime `json:"createdAt"`
}

type exportTime struct {
	time.Time
}

func (t *exportTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
		t.Time = parsed
		return nil
	}
	var obj struct {
		Seconds int64 `json:"_seconds"`
		Nanos   int64 `json:"_nanoseconds"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	t.Time = time.Unix(obj.Seconds, obj.Nanos).UTC()
	return nil
}

// Import reads the export file and writes entries plus one completed session
// record per distinct workout id. Timestamps are preserved, so the store must
// support docstore.Importer.
func (imp *Importer) Import(ctx context.Context, path string) (*Stats, error) {
	bulk, ok := imp.store.(docstore.Importer)
	if !ok && !imp.dryRun {
		return &imp.stats, fmt.Errorf("store does not support timestamped imports")
	}

	records, err := readExport(path)
	if err != nil {
		return &imp.stats, err
	}

	sessions := map[string]*workout.Session{}

	for _, rec := range records {
		if rec.Exercise == "" {
			imp.stats.EntriesSkipped++
			continue
		}

		legacy := workout.LegacyRecord{
			ID:        rec.ID,
			Exercise:  rec.Exercise,
			Sets:      rec.Sets,
			Reps:      rec.Reps,
			Weights:   rec.Weights,
			Failure:   rec.Failure,
			Volume:    rec.Volume,
			CreatedAt: rec.CreatedAt.Time,
		}
		if rec.WorkoutID != nil {
			legacy.SessionID = *rec.WorkoutID
		}

		entry := workout.EntryFromLegacy(legacy)
		if entry.ID == "" {
			entry.ID = imp.store.NewID()
		}
		if entry.SessionID == "" {
			imp.stats.LegacyEntries++
		} else {
			trackSession(sessions, entry)
		}

		if !imp.dryRun {
			doc, err := entry.ImportDocument()
			if err != nil {
				return &imp.stats, fmt.Errorf("encoding entry %s: %w", entry.ID, err)
			}
			if err := bulk.Import(ctx, workout.CollectionEntries, doc); err != nil {
				return &imp.stats, fmt.Errorf("importing entry %s: %w", entry.ID, err)
			}
		}
		imp.stats.EntriesImported++
	}

	if err := imp.writeSessions(ctx, bulk, sessions); err != nil {
		return &imp.stats, err
	}

	return &imp.stats, nil
}

// trackSession widens the session's bounds to cover the entry.
func trackSession(sessions map[string]*workout.Session, e workout.Entry) {
	s, ok := sessions[e.SessionID]
	if !ok {
		ended := e.CreatedAt
		sessions[e.SessionID] = &workout.Session{
			ID:        e.SessionID,
			Status:    workout.StatusCompleted,
			StartedAt: e.CreatedAt,
			EndedAt:   &ended,
		}
		return
	}
	if e.CreatedAt.Before(s.StartedAt) {
		s.StartedAt = e.CreatedAt
	}
	if s.EndedAt == nil || e.CreatedAt.After(*s.EndedAt) {
		ended := e.CreatedAt
		s.EndedAt = &ended
	}
}

func (imp *Importer) writeSessions(ctx context.Context, bulk docstore.Importer, sessions map[string]*workout.Session) error {
	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := sessions[id]
		if !imp.dryRun {
			raw, err := json.Marshal(s)
			if err != nil {
				return fmt.Errorf("encoding session %s: %w", id, err)
			}
			doc := docstore.Document{
				ID:        s.ID,
				CreatedAt: s.StartedAt,
				UpdatedAt: *s.EndedAt,
				Data:      raw,
			}
			if err := bulk.Import(ctx, workout.CollectionSessions, doc); err != nil {
				return fmt.Errorf("importing session %s: %w", id, err)
			}
		}
		imp.stats.SessionsCreated++
	}
	return nil
}

// readExport parses the export file: either an array of records or a map of
// document id to record.
func readExport(path string) ([]exportEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}

	var list []exportEntry
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var byID map[string]exportEntry
	if err := json.Unmarshal(data, &byID); err != nil {
		return nil, fmt.Errorf("parsing export: %w", err)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list = make([]exportEntry, 0, len(byID))
	for _, id := range ids {
		rec := byID[id]
		rec.ID = id
		list = append(list, rec)
	}
	return list, nil
}
