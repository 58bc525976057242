package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// notifyChannel matches the pg_notify channel used by the trigger installed
// in migrations. The payload is the collection name.
const notifyChannel = "replog_documents"

// Postgres is the pgx-backed Store. A trigger on the documents table emits
// pg_notify for every write, so changes from other processes reach live
// subscriptions too.
type Postgres struct {
	pool *pgxpool.Pool
	hub  *hub
	log  *slog.Logger
	stop context.CancelFunc
}

// OpenPostgres creates a connection pool and starts the notification
// listener.
func OpenPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	listenCtx, stop := context.WithCancel(context.Background())
	p := &Postgres{pool: pool, hub: newHub(), log: log, stop: stop}
	go p.listen(listenCtx)
	return p, nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// listen holds a dedicated connection on LISTEN and feeds the hub. On
// connection loss it backs off and reconnects.
func (p *Postgres) listen(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := p.pool.Acquire(ctx)
		if err != nil {
			p.log.Warn("docstore listener: acquire failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
			p.log.Warn("docstore listener: LISTEN failed", "error", err)
			conn.Release()
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
			continue
		}
		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.log.Warn("docstore listener: lost connection", "error", err)
				}
				break
			}
			p.hub.broadcast(n.Payload)
		}
		conn.Release()
	}
}

func (p *Postgres) NewID() string { return newID() }

func (p *Postgres) Create(ctx context.Context, collection string, data any) (Document, error) {
	raw, err := marshal(data)
	if err != nil {
		return Document{}, err
	}
	id := p.NewID()
	row := p.pool.QueryRow(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		collection, id, raw)
	doc := Document{ID: id, Data: raw}
	if err := row.Scan(&doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return Document{}, fmt.Errorf("%w: creating document: %v", ErrUnavailable, err)
	}
	p.hub.broadcast(collection)
	return doc, nil
}

func (p *Postgres) Put(ctx context.Context, collection, id string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		collection, id, raw)
	if err != nil {
		return fmt.Errorf("%w: putting document: %v", ErrUnavailable, err)
	}
	p.hub.broadcast(collection)
	return nil
}

// Import inserts a document with its metadata as given.
func (p *Postgres) Import(ctx context.Context, collection string, doc Document) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO documents (collection, id, created_at, updated_at, data)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data,
		               created_at = EXCLUDED.created_at,
		               updated_at = EXCLUDED.updated_at`,
		collection, doc.ID, doc.CreatedAt, doc.UpdatedAt, []byte(doc.Data))
	if err != nil {
		return fmt.Errorf("%w: importing document: %v", ErrUnavailable, err)
	}
	p.hub.broadcast(collection)
	return nil
}

func (p *Postgres) Update(ctx context.Context, collection, id string, data any) error {
	raw, err := marshal(data)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET data = $1, updated_at = now()
		 WHERE collection = $2 AND id = $3`,
		raw, collection, id)
	if err != nil {
		return fmt.Errorf("%w: updating document: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.hub.broadcast(collection)
	return nil
}

func (p *Postgres) Patch(ctx context.Context, collection, id string, fields map[string]any) error {
	raw, err := marshal(fields)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx,
		`UPDATE documents SET data = data || $1::jsonb, updated_at = now()
		 WHERE collection = $2 AND id = $3`,
		raw, collection, id)
	if err != nil {
		return fmt.Errorf("%w: patching document: %v", ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	p.hub.broadcast(collection)
	return nil
}

func (p *Postgres) Delete(ctx context.Context, collection, id string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: deleting document: %v", ErrUnavailable, err)
	}
	p.hub.broadcast(collection)
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, id string) (Document, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, created_at, updated_at, data FROM documents
		 WHERE collection = $1 AND id = $2`, collection, id)

	var doc Document
	var data []byte
	err := row.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("%w: getting document: %v", ErrUnavailable, err)
	}
	doc.Data = json.RawMessage(data)
	return doc, nil
}

func (p *Postgres) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	query := `SELECT id, created_at, updated_at, data FROM documents WHERE collection = $1`
	args := []any{collection}
	if q.Filter != nil {
		query += fmt.Sprintf(` AND data->>$%d = $%d`, len(args)+1, len(args)+2)
		args = append(args, q.Filter.Field, q.Filter.Value)
	}
	if q.Descending {
		query += ` ORDER BY created_at DESC, id DESC`
	} else {
		query += ` ORDER BY created_at ASC, id ASC`
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying documents: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		var data []byte
		if err := rows.Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt, &data); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Data = json.RawMessage(data)
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *Postgres) Subscribe(ctx context.Context, collection string, q Query, fn func(Snapshot)) (func(), error) {
	fetch := func(ctx context.Context) ([]Document, error) {
		return p.Query(ctx, collection, q)
	}
	return runSubscription(ctx, p.hub, collection, fetch, fn)
}

func (p *Postgres) Close() error {
	p.stop()
	p.pool.Close()
	return nil
}

var _ Store = (*Postgres)(nil)
