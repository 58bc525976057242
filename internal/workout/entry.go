package workout

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/claude/replog/internal/docstore"
)

// Document store collections.
const (
	CollectionSessions = "sessions"
	CollectionEntries  = "entries"
)

// LegacySessionID is the synthetic bucket for entries persisted before
// sessions existed (no sessionId field). Legacy entries are displayed but
// never written.
const LegacySessionID = "legacy"

// SessionStatus is the persisted lifecycle state of a session. There is no
// discarded status: discarding deletes the record.
type SessionStatus string

const (
	StatusOngoing   SessionStatus = "ongoing"
	StatusCompleted SessionStatus = "completed"
)

// Session is one bounded workout grouping zero or more entries by reference.
type Session struct {
	ID        string        `json:"id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
	Notes     string        `json:"notes,omitempty"`
}

// Entry is a single logged exercise performance.
type Entry struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId,omitempty"`
	Exercise    string    `json:"exercise"`
	ExerciseKey string    `json:"exerciseKey,omitempty"`
	Sets        int       `json:"sets"`
	Reps        int       `json:"reps"`
	WeightsRaw  string    `json:"weights"`
	Weights     []float64 `json:"weightsParsed"`
	Volume      float64   `json:"volume"`
	Failure     bool      `json:"failure"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Legacy reports whether the entry predates sessions.
func (e Entry) Legacy() bool { return e.SessionID == "" }

// entryDoc is the persisted document body. Document id and createdAt are
// store metadata, not body fields.
type entryDoc struct {
	SessionID     string    `json:"sessionId,omitempty"`
	Exercise      string    `json:"exercise"`
	ExerciseKey   string    `json:"exerciseKey,omitempty"`
	Sets          int       `json:"sets"`
	Reps          int       `json:"reps"`
	Weights       string    `json:"weights"`
	WeightsParsed []float64 `json:"weightsParsed,omitempty"`
	Volume        float64   `json:"volume"`
	Failure       bool      `json:"failure"`
	UpdatedAt     time.Time `json:"updatedAt,omitempty"`
}

// EntryFromDocument decodes a persisted entry, tolerating the legacy schema
// variants: no sessionId, no exerciseKey, no weightsParsed (weights were
// comma-delimited in the oldest records), no precomputed volume.
func EntryFromDocument(doc docstore.Document) (Entry, error) {
	var body entryDoc
	if err := doc.Decode(&body); err != nil {
		return Entry{}, err
	}

	e := Entry{
		ID:          doc.ID,
		SessionID:   body.SessionID,
		Exercise:    body.Exercise,
		ExerciseKey: body.ExerciseKey,
		Sets:        body.Sets,
		Reps:        body.Reps,
		WeightsRaw:  body.Weights,
		Weights:     body.WeightsParsed,
		Volume:      body.Volume,
		Failure:     body.Failure,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   body.UpdatedAt,
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = doc.UpdatedAt
	}
	if e.ExerciseKey == "" {
		e.ExerciseKey = strings.ToLower(e.Exercise)
	}
	if len(e.Weights) == 0 {
		e.Weights = parseLegacyWeights(e.WeightsRaw)
	}
	if e.Volume == 0 && len(e.Weights) > 0 {
		e.Volume = ComputeVolume(e.Sets, e.Reps, e.Weights)
	}
	return e, nil
}

// LegacyRecord is one gym entry as exported from the old realtime store.
// The oldest records used comma-delimited weights and a null session id.
type LegacyRecord struct {
	ID        string
	SessionID string
	Exercise  string
	Sets      int
	Reps      int
	Weights   string
	Failure   bool
	Volume    float64
	CreatedAt time.Time
}

// EntryFromLegacy canonicalizes an exported record: the display name is
// normalized, weights are re-parsed from whichever delimiter the record used,
// and volume is recomputed. The exported volume is kept only when no weight
// parses, so the row still shows something.
func EntryFromLegacy(rec LegacyRecord) Entry {
	name := NormalizeExerciseName(rec.Exercise)
	weights := parseLegacyWeights(rec.Weights)

	raw := rec.Weights
	volume := rec.Volume
	if len(weights) > 0 {
		raw = FormatWeights(weights)
		volume = ComputeVolume(rec.Sets, rec.Reps, weights)
	}

	sessionID := rec.SessionID
	if sessionID == LegacySessionID {
		sessionID = ""
	}

	return Entry{
		ID:          rec.ID,
		SessionID:   sessionID,
		Exercise:    name,
		ExerciseKey: strings.ToLower(name),
		Sets:        rec.Sets,
		Reps:        rec.Reps,
		WeightsRaw:  raw,
		Weights:     weights,
		Volume:      volume,
		Failure:     rec.Failure,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.CreatedAt,
	}
}

// ImportDocument converts the entry to its persisted document form carrying
// the entry's own timestamps. The bulk importer writes these through
// docstore.Importer so original creation times survive the migration.
func (e Entry) ImportDocument() (docstore.Document, error) {
	raw, err := json.Marshal(e.document())
	if err != nil {
		return docstore.Document{}, err
	}
	return docstore.Document{
		ID:        e.ID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
		Data:      raw,
	}, nil
}

func (e Entry) document() entryDoc {
	return entryDoc{
		SessionID:     e.SessionID,
		Exercise:      e.Exercise,
		ExerciseKey:   e.ExerciseKey,
		Sets:          e.Sets,
		Reps:          e.Reps,
		Weights:       e.WeightsRaw,
		WeightsParsed: e.Weights,
		Volume:        e.Volume,
		Failure:       e.Failure,
		UpdatedAt:     e.UpdatedAt,
	}
}
