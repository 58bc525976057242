package docstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store used in tests and as a scratch backend. It
// honors the same subscription semantics as the durable backends.
type Memory struct {
	mu   sync.Mutex
	cols map[string]map[string]*memDoc
	seq  int64
	hub  *hub

	// FailWrites makes every mutating call return ErrUnavailable, for
	// exercising store-failure paths in tests.
	FailWrites bool
}

type memDoc struct {
	doc Document
	seq int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{cols: make(map[string]map[string]*memDoc), hub: newHub()}
}

func (m *Memory) NewID() string { return newID() }

func (m *Memory) col(collection string) map[string]*memDoc {
	c, ok := m.cols[collection]
	if !ok {
		c = make(map[string]*memDoc)
		m.cols[collection] = c
	}
	return c
}

func (m *Memory) Create(ctx context.Context, collection string, data any) (Document, error) {
	return m.put(collection, m.NewID(), data)
}

func (m *Memory) Put(ctx context.Context, collection, id string, data any) error {
	_, err := m.put(collection, id, data)
	return err
}

func (m *Memory) put(collection, id string, data any) (Document, error) {
	raw, err := marshal(data)
	if err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	if m.FailWrites {
		m.mu.Unlock()
		return Document{}, ErrUnavailable
	}
	now := time.Now().UTC()
	m.seq++
	doc := Document{ID: id, CreatedAt: now, UpdatedAt: now, Data: raw}
	// Writing under an existing id keeps its createdAt, like the durable
	// backends.
	if prev, ok := m.col(collection)[id]; ok {
		doc.CreatedAt = prev.doc.CreatedAt
	}
	m.col(collection)[id] = &memDoc{doc: doc, seq: m.seq}
	m.mu.Unlock()
	m.hub.broadcast(collection)
	return doc, nil
}

// Import inserts a document with its metadata as given.
func (m *Memory) Import(ctx context.Context, collection string, doc Document) error {
	m.mu.Lock()
	if m.FailWrites {
		m.mu.Unlock()
		return ErrUnavailable
	}
	m.seq++
	m.col(collection)[doc.ID] = &memDoc{doc: doc, seq: m.seq}
	m.mu.Unlock()
	m.hub.broadcast(collection)
	return nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	if m.FailWrites {
		m.mu.Unlock()
		return ErrUnavailable
	}
	d, ok := m.col(collection)[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	d.doc.Data = raw
	d.doc.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.hub.broadcast(collection)
	return nil
}

func (m *Memory) Patch(ctx context.Context, collection, id string, fields map[string]any) error {
	m.mu.Lock()
	if m.FailWrites {
		m.mu.Unlock()
		return ErrUnavailable
	}
	d, ok := m.col(collection)[id]
	if !ok {
		m.mu.Unlock()
		return ErrNotFound
	}
	var body map[string]any
	if err := json.Unmarshal(d.doc.Data, &body); err != nil {
		m.mu.Unlock()
		return err
	}
	for k, v := range fields {
		body[k] = v
	}
	raw, err := marshal(body)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	d.doc.Data = raw
	d.doc.UpdatedAt = time.Now().UTC()
	m.mu.Unlock()
	m.hub.broadcast(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	m.mu.Lock()
	if m.FailWrites {
		m.mu.Unlock()
		return ErrUnavailable
	}
	delete(m.col(collection), id)
	m.mu.Unlock()
	m.hub.broadcast(collection)
	return nil
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.col(collection)[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return d.doc, nil
}

func (m *Memory) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	m.mu.Lock()
	matched := make([]*memDoc, 0, len(m.col(collection)))
	for _, d := range m.col(collection) {
		if q.Filter != nil && !matchesFilter(d.doc.Data, *q.Filter) {
			continue
		}
		matched = append(matched, d)
	}
	m.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
			if q.Descending {
				return a.doc.CreatedAt.After(b.doc.CreatedAt)
			}
			return a.doc.CreatedAt.Before(b.doc.CreatedAt)
		}
		if q.Descending {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	docs := make([]Document, len(matched))
	for i, d := range matched {
		docs[i] = d.doc
	}
	return docs, nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, q Query, fn func(Snapshot)) (func(), error) {
	fetch := func(ctx context.Context) ([]Document, error) {
		return m.Query(ctx, collection, q)
	}
	return runSubscription(ctx, m.hub, collection, fetch, fn)
}

func (m *Memory) Close() error { return nil }

func matchesFilter(data json.RawMessage, f Filter) bool {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return false
	}
	v, ok := body[f.Field].(string)
	return ok && v == f.Value
}

var _ Store = (*Memory)(nil)
