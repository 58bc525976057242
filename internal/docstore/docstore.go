// Package docstore provides a small realtime document store: schemaless JSON
// documents in named collections, with one-shot queries and live subscriptions
// that deliver the full current result set on every change.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for a missing document.
var ErrNotFound = errors.New("docstore: document not found")

// ErrUnavailable wraps backend failures (network, service down). Callers
// check it with errors.Is and surface it without retrying.
var ErrUnavailable = errors.New("docstore: store unavailable")

// Document is a stored JSON document with store-managed metadata.
type Document struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
	Data      json.RawMessage `json:"data"`
}

// Decode unmarshals the document body into v.
func (d Document) Decode(v any) error {
	return json.Unmarshal(d.Data, v)
}

// Filter is an equality match on one top-level field of the document body.
type Filter struct {
	Field string
	Value string
}

// Query selects and orders documents within a collection. Ordering is always
// by document creation time; Descending flips it to newest-first.
type Query struct {
	Filter     *Filter
	Descending bool
}

// Snapshot is a full, self-consistent result set for a subscription. Seq
// increases with every delivery on the same subscription, so consumers can
// drop a snapshot that has already been superseded.
type Snapshot struct {
	Docs []Document
	Seq  uint64
}

// Store is the document store contract shared by all backends.
type Store interface {
	// NewID returns a fresh document id so callers can know the id before
	// the first write completes.
	NewID() string

	// Create writes data under a store-assigned id and returns the stored
	// document with its metadata populated.
	Create(ctx context.Context, collection string, data any) (Document, error)

	// Put writes data under a pre-allocated id (see NewID).
	Put(ctx context.Context, collection, id string, data any) error

	// Update replaces the document body and refreshes updatedAt.
	Update(ctx context.Context, collection, id string, data any) error

	// Patch merges the given top-level fields into the document body.
	Patch(ctx context.Context, collection, id string, fields map[string]any) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Get fetches a single document, or ErrNotFound.
	Get(ctx context.Context, collection, id string) (Document, error)

	// Query runs a one-shot query.
	Query(ctx context.Context, collection string, q Query) ([]Document, error)

	// Subscribe registers fn for the query and immediately delivers the
	// current result set, then re-delivers the full set after every change
	// to the collection. Deliveries for one subscription are serialized and
	// in order. The returned cancel func tears the subscription down; no
	// delivery happens after cancel returns.
	Subscribe(ctx context.Context, collection string, q Query, fn func(Snapshot)) (cancel func(), err error)

	// Close releases backend resources.
	Close() error
}

// Importer is implemented by backends that can insert documents with
// caller-provided metadata. Bulk imports use it to preserve original
// creation times; normal writes never do.
type Importer interface {
	Import(ctx context.Context, collection string, doc Document) error
}

// newID generates a document id. Shared by all backends.
func newID() string {
	return uuid.NewString()
}

func marshal(data any) (json.RawMessage, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return b, nil
}
