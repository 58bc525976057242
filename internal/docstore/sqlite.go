package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the embedded single-machine backend. All writers share one
// process, so the in-process hub sees every change.
type SQLite struct {
	db  *sql.DB
	hub *hub
}

// OpenSQLite opens (or creates) the document database at dir/replog.db.
func OpenSQLite(dir string) (*SQLite, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "replog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening document db: %w", err)
	}
	// modernc/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent subscriptions.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		data       TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_created
		ON documents (collection, created_at)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating documents table: %w", err)
	}

	return &SQLite{db: db, hub: newHub()}, nil
}

func (s *SQLite) NewID() string { return newID() }

func (s *SQLite) Create(ctx context.Context, collection string, data any) (Document, error) {
	id := s.NewID()
	if err := s.Put(ctx, collection, id, data); err != nil {
		return Document{}, err
	}
	return s.Get(ctx, collection, id)
}

func (s *SQLite) Put(ctx context.Context, collection, id string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, created_at, updated_at, data)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, id, now, now, string(raw))
	if err != nil {
		return fmt.Errorf("%w: putting document: %v", ErrUnavailable, err)
	}
	s.hub.broadcast(collection)
	return nil
}

// Import inserts a document with its metadata as given.
func (s *SQLite) Import(ctx context.Context, collection string, doc Document) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (collection, id, created_at, updated_at, data)
		 VALUES (?, ?, ?, ?, ?)`,
		collection, doc.ID,
		doc.CreatedAt.UTC().Format(time.RFC3339Nano),
		doc.UpdatedAt.UTC().Format(time.RFC3339Nano),
		string(doc.Data))
	if err != nil {
		return fmt.Errorf("%w: importing document: %v", ErrUnavailable, err)
	}
	s.hub.broadcast(collection)
	return nil
}

func (s *SQLite) Update(ctx context.Context, collection, id string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = ?, updated_at = ? WHERE collection = ? AND id = ?`,
		string(raw), now, collection, id)
	if err != nil {
		return fmt.Errorf("%w: updating document: %v", ErrUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.hub.broadcast(collection)
	return nil
}

func (s *SQLite) Patch(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := marshal(fields)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_patch(data, ?), updated_at = ?
		 WHERE collection = ? AND id = ?`,
		string(raw), now, collection, id)
	if err != nil {
		return fmt.Errorf("%w: patching document: %v", ErrUnavailable, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.hub.broadcast(collection)
	return nil
}

func (s *SQLite) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: deleting document: %v", ErrUnavailable, err)
	}
	s.hub.broadcast(collection)
	return nil
}

func (s *SQLite) Get(ctx context.Context, collection, id string) (Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, data FROM documents
		 WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanSQLiteDoc(row.Scan)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("%w: getting document: %v", ErrUnavailable, err)
	}
	return doc, nil
}

func (s *SQLite) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	query := `SELECT id, created_at, updated_at, data FROM documents WHERE collection = ?`
	args := []any{collection}
	if q.Filter != nil {
		query += ` AND json_extract(data, ?) = ?`
		args = append(args, "$."+q.Filter.Field, q.Filter.Value)
	}
	if q.Descending {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		doc, err := scanSQLiteDoc(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *SQLite) Subscribe(ctx context.Context, collection string, q Query, fn func(Snapshot)) (func(), error) {
	fetch := func(ctx context.Context) ([]Document, error) {
		return s.Query(ctx, collection, q)
	}
	return runSubscription(ctx, s.hub, collection, fetch, fn)
}

func (s *SQLite) Close() error { return s.db.Close() }

func scanSQLiteDoc(scan func(dest ...any) error) (Document, error) {
	var doc Document
	var created, updated, data string
	if err := scan(&doc.ID, &created, &updated, &data); err != nil {
		return Document{}, err
	}
	var err error
	if doc.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Document{}, err
	}
	if doc.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return Document{}, err
	}
	doc.Data = json.RawMessage(data)
	return doc, nil
}

var _ Store = (*SQLite)(nil)
