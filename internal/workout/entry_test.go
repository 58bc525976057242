package workout

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/claude/replog/internal/docstore"
)

func docWith(t *testing.T, id string, body map[string]any) docstore.Document {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return docstore.Document{ID: id, CreatedAt: day(10), UpdatedAt: day(10), Data: raw}
}

func TestEntryFromDocumentCanonical(t *testing.T) {
	d := docWith(t, "e1", map[string]any{
		"sessionId":     "s1",
		"exercise":      "Penkkipunnerrus",
		"exerciseKey":   "penkkipunnerrus",
		"sets":          3,
		"reps":          8,
		"weights":       "80.5;82.5",
		"weightsParsed": []float64{80.5, 82.5},
		"volume":        8 * (80.5 + 82.5),
		"failure":       true,
		"updatedAt":     day(11),
	})

	e, err := EntryFromDocument(d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if e.ID != "e1" || e.SessionID != "s1" {
		t.Errorf("ids = %q/%q", e.ID, e.SessionID)
	}
	if e.Legacy() {
		t.Error("session entry flagged legacy")
	}
	if !reflect.DeepEqual(e.Weights, []float64{80.5, 82.5}) {
		t.Errorf("weights = %v", e.Weights)
	}
	if !e.UpdatedAt.Equal(day(11)) {
		t.Errorf("updatedAt = %v", e.UpdatedAt)
	}
}

func TestEntryFromDocumentLegacySchema(t *testing.T) {
	// Oldest records: no sessionId, no exerciseKey, comma-delimited weights,
	// lowercase exercise, no weightsParsed.
	d := docWith(t, "e1", map[string]any{
		"exercise": "penkkipunnerrus",
		"sets":     3,
		"reps":     8,
		"weights":  "80, 85",
		"volume":   0,
		"failure":  false,
	})

	e, err := EntryFromDocument(d)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !e.Legacy() {
		t.Error("entry without sessionId should be legacy")
	}
	if e.ExerciseKey != "penkkipunnerrus" {
		t.Errorf("derived key = %q", e.ExerciseKey)
	}
	if !reflect.DeepEqual(e.Weights, []float64{80, 85}) {
		t.Errorf("weights = %v", e.Weights)
	}
	if want := 8 * (80.0 + 85.0); e.Volume != want {
		t.Errorf("recomputed volume = %v, want %v", e.Volume, want)
	}
	if !e.CreatedAt.Equal(day(10)) {
		t.Errorf("createdAt = %v", e.CreatedAt)
	}
	if !e.UpdatedAt.Equal(day(10)) {
		t.Errorf("updatedAt should fall back to document metadata, got %v", e.UpdatedAt)
	}
}

func TestEntryFromLegacy(t *testing.T) {
	e := EntryFromLegacy(LegacyRecord{
		ID:        "e1",
		SessionID: "workout-123",
		Exercise:  "penkkipunnerrus",
		Sets:      3,
		Reps:      8,
		Weights:   "80, 85",
		Volume:    999, // exported volume is ignored when weights parse
		CreatedAt: day(5),
	})
	if e.Exercise != "Penkkipunnerrus" || e.ExerciseKey != "penkkipunnerrus" {
		t.Errorf("name = %q, key = %q", e.Exercise, e.ExerciseKey)
	}
	if e.WeightsRaw != "80;85" {
		t.Errorf("raw = %q", e.WeightsRaw)
	}
	if want := 8 * (80.0 + 85.0); e.Volume != want {
		t.Errorf("volume = %v, want %v", e.Volume, want)
	}
	if !e.CreatedAt.Equal(day(5)) || !e.UpdatedAt.Equal(day(5)) {
		t.Errorf("timestamps = %v/%v", e.CreatedAt, e.UpdatedAt)
	}
}

func TestEntryFromLegacyNullSession(t *testing.T) {
	e := EntryFromLegacy(LegacyRecord{Exercise: "kyykky", Weights: "x", Volume: 42, CreatedAt: day(5)})
	if !e.Legacy() {
		t.Error("record without workout id should be legacy")
	}
	// Unparseable weights keep the exported raw string and volume.
	if e.WeightsRaw != "x" || e.Volume != 42 {
		t.Errorf("raw = %q, volume = %v", e.WeightsRaw, e.Volume)
	}
}

func TestEntryFromLegacyMapsLegacyID(t *testing.T) {
	e := EntryFromLegacy(LegacyRecord{Exercise: "kyykky", SessionID: LegacySessionID, Weights: "100", CreatedAt: day(5)})
	if e.SessionID != "" {
		t.Errorf("sessionId = %q, want empty", e.SessionID)
	}
}
