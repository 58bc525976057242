package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

type testBody struct {
	SessionID string `json:"sessionId,omitempty"`
	Name      string `json:"name"`
	N         int    `json:"n"`
}

func TestMemoryCreateGet(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc, err := m.Create(ctx, "things", testBody{Name: "a", N: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if doc.ID == "" || doc.CreatedAt.IsZero() {
		t.Errorf("metadata not populated: %+v", doc)
	}

	got, err := m.Get(ctx, "things", doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var body testBody
	if err := got.Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Name != "a" || body.N != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestMemoryGetMissing(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "things", "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryPatch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc, _ := m.Create(ctx, "things", testBody{Name: "a", N: 1})

	if err := m.Patch(ctx, "things", doc.ID, map[string]any{"n": 7}); err != nil {
		t.Fatalf("patch: %v", err)
	}

	got, _ := m.Get(ctx, "things", doc.ID)
	var body testBody
	got.Decode(&body)
	if body.Name != "a" {
		t.Errorf("patch clobbered untouched field: %+v", body)
	}
	if body.N != 7 {
		t.Errorf("n = %d, want 7", body.N)
	}

	if err := m.Patch(ctx, "things", "nope", map[string]any{"n": 1}); !errors.Is(err, ErrNotFound) {
		t.Errorf("patch missing: got %v", err)
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc, _ := m.Create(ctx, "things", testBody{Name: "a"})
	if err := m.Delete(ctx, "things", doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "things", doc.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("get after delete: %v", err)
	}
	// Deleting a missing document is not an error.
	if err := m.Delete(ctx, "things", doc.ID); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestMemoryQueryOrderAndFilter(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Create(ctx, "things", testBody{SessionID: "s1", Name: "first"})
	m.Create(ctx, "things", testBody{SessionID: "s2", Name: "second"})
	m.Create(ctx, "things", testBody{SessionID: "s1", Name: "third"})

	asc, err := m.Query(ctx, "things", Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(asc) != 3 {
		t.Fatalf("docs = %d", len(asc))
	}
	names := func(docs []Document) []string {
		out := make([]string, len(docs))
		for i, d := range docs {
			var b testBody
			d.Decode(&b)
			out[i] = b.Name
		}
		return out
	}
	if got := names(asc); got[0] != "first" || got[2] != "third" {
		t.Errorf("ascending = %v", got)
	}

	desc, _ := m.Query(ctx, "things", Query{Descending: true})
	if got := names(desc); got[0] != "third" || got[2] != "first" {
		t.Errorf("descending = %v", got)
	}

	filtered, _ := m.Query(ctx, "things", Query{Filter: &Filter{Field: "sessionId", Value: "s1"}})
	if got := names(filtered); len(got) != 2 || got[0] != "first" || got[1] != "third" {
		t.Errorf("filtered = %v", got)
	}
}

func TestMemoryFailWrites(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	doc, _ := m.Create(ctx, "things", testBody{Name: "a"})

	m.FailWrites = true
	if _, err := m.Create(ctx, "things", testBody{}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("create: got %v", err)
	}
	if err := m.Patch(ctx, "things", doc.ID, map[string]any{"n": 1}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("patch: got %v", err)
	}
	if err := m.Delete(ctx, "things", doc.ID); !errors.Is(err, ErrUnavailable) {
		t.Errorf("delete: got %v", err)
	}
	// Reads still work.
	if _, err := m.Get(ctx, "things", doc.ID); err != nil {
		t.Errorf("get: %v", err)
	}
}

func TestMemoryImportPreservesMetadata(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created := time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC)
	err := m.Import(ctx, "things", Document{
		ID:        "old-1",
		CreatedAt: created,
		UpdatedAt: created,
		Data:      []byte(`{"name":"imported"}`),
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := m.Get(ctx, "things", "old-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, created)
	}

	// Imported documents sort by their preserved timestamps.
	m.Create(ctx, "things", testBody{Name: "new"})
	docs, _ := m.Query(ctx, "things", Query{})
	if docs[0].ID != "old-1" {
		t.Errorf("first doc = %s, want old-1", docs[0].ID)
	}
}

// TestMemoryPutKeepsCreatedAt verifies overwriting an existing id preserves
// its creation time, matching the durable backends.
func TestMemoryPutKeepsCreatedAt(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	created := time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC)
	if err := m.Import(ctx, "things", Document{
		ID:        "keep",
		CreatedAt: created,
		UpdatedAt: created,
		Data:      []byte(`{"name":"before"}`),
	}); err != nil {
		t.Fatalf("import: %v", err)
	}

	if err := m.Put(ctx, "things", "keep", testBody{Name: "after"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := m.Get(ctx, "things", "keep")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", got.CreatedAt, created)
	}
	if !got.UpdatedAt.After(created) {
		t.Errorf("updatedAt = %v, want after %v", got.UpdatedAt, created)
	}
	var body testBody
	got.Decode(&body)
	if body.Name != "after" {
		t.Errorf("body = %+v", body)
	}
}

func TestSubscribeDeliversSnapshots(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	m.Create(ctx, "things", testBody{Name: "a"})

	snaps := make(chan Snapshot, 16)
	cancel, err := m.Subscribe(ctx, "things", Query{}, func(s Snapshot) { snaps <- s })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	first := waitSnapshot(t, snaps, "initial snapshot", func(s Snapshot) bool {
		return len(s.Docs) == 1
	})
	if first.Seq != 1 {
		t.Errorf("initial seq = %d", first.Seq)
	}

	m.Create(ctx, "things", testBody{Name: "b"})
	next := waitSnapshot(t, snaps, "second snapshot", func(s Snapshot) bool {
		return len(s.Docs) == 2
	})
	if next.Seq <= first.Seq {
		t.Errorf("seq did not advance: %d -> %d", first.Seq, next.Seq)
	}
}

func TestSubscribeCancelStopsDeliveries(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	cancel, err := m.Subscribe(ctx, "things", Query{}, func(s Snapshot) { snaps <- s })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	waitSnapshot(t, snaps, "initial snapshot", func(s Snapshot) bool { return true })

	// No delivery may happen after cancel returns.
	cancel()
	m.Create(ctx, "things", testBody{Name: "late"})

	select {
	case s := <-snaps:
		t.Errorf("delivery after cancel: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribeIgnoresOtherCollections(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	cancel, err := m.Subscribe(ctx, "things", Query{}, func(s Snapshot) { snaps <- s })
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	waitSnapshot(t, snaps, "initial snapshot", func(s Snapshot) bool { return true })

	m.Create(ctx, "other", testBody{Name: "x"})
	select {
	case s := <-snaps:
		t.Errorf("delivery for unrelated collection: %+v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func waitSnapshot(t *testing.T, ch chan Snapshot, desc string, ok func(Snapshot) bool) Snapshot {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", desc)
		}
	}
}
