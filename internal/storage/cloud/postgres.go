package cloud

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sms-storage/pkg/database"
)

const documentsSchema = `CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (collection, id)
)`

// PostgresStore is a DocumentStore over a single jsonb table, for deployments that run their
// own database instead of Firestore.
type PostgresStore struct {
	db           *sqlx.DB
	probeTimeout time.Duration
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db *sqlx.DB, probeTimeout time.Duration) *PostgresStore {
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	return &PostgresStore{db: db, probeTimeout: probeTimeout}
}

// EnsureSchema creates the documents table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, documentsSchema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

type documentRow struct {
	ID   string `db:"id"`
	Data []byte `db:"data"`
}

// Get implements DocumentStore.
func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	const query = `SELECT data FROM documents WHERE collection = $1 AND id = $2`
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, query, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("get document: %w", err)
	}
	return decodeDocument(raw)
}

// Create implements DocumentStore.
func (s *PostgresStore) Create(ctx context.Context, collection, id string, doc Document) error {
	const query = `INSERT INTO documents (collection, id, data, updated_at)
VALUES ($1, $2, $3::jsonb, NOW())
ON CONFLICT (collection, id) DO NOTHING`
	payload, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, collection, id, payload)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrDocumentExists
	}
	return nil
}

// Set implements DocumentStore.
func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc Document) error {
	const query = `INSERT INTO documents (collection, id, data, updated_at)
VALUES ($1, $2, $3::jsonb, NOW())
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	payload, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, query, collection, id, payload); err != nil {
		return fmt.Errorf("set document: %w", err)
	}
	return nil
}

// Update implements DocumentStore with a top-level jsonb merge.
func (s *PostgresStore) Update(ctx context.Context, collection, id string, fields Document) error {
	const query = `UPDATE documents SET data = data || $3::jsonb, updated_at = NOW()
WHERE collection = $1 AND id = $2`
	payload, err := encodeDocument(fields)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, collection, id, payload)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return requireAffected(res)
}

// Delete implements DocumentStore.
func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	const query = `DELETE FROM documents WHERE collection = $1 AND id = $2`
	res, err := s.db.ExecContext(ctx, query, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return requireAffected(res)
}

// List implements DocumentStore.
func (s *PostgresStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	const query = `SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`
	var rows []documentRow
	if err := s.db.SelectContext(ctx, &rows, query, collection); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	out := make([]Snapshot, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument(row.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, Snapshot{ID: row.ID, Data: doc})
	}
	return out, nil
}

// Increment implements DocumentStore as a single upsert so concurrent callers never observe
// the same value.
func (s *PostgresStore) Increment(ctx context.Context, collection, id, field string, delta int64) (int64, error) {
	const query = `INSERT INTO documents (collection, id, data, updated_at)
VALUES ($1, $2, jsonb_build_object($3::text, $4::bigint), NOW())
ON CONFLICT (collection, id) DO UPDATE
SET data = jsonb_set(documents.data, ARRAY[$3::text], to_jsonb(COALESCE((documents.data->>$3::text)::bigint, 0) + $4::bigint)),
    updated_at = NOW()
RETURNING (data->>$3::text)::bigint`
	var next int64
	if err := s.db.GetContext(ctx, &next, query, collection, id, field, delta); err != nil {
		return 0, fmt.Errorf("increment %s/%s.%s: %w", collection, id, field, err)
	}
	return next, nil
}

// Ping implements DocumentStore.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return database.Ping(ctx, s.db, s.probeTimeout)
}

// Close implements DocumentStore.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func encodeDocument(doc Document) (string, error) {
	if doc == nil {
		doc = Document{}
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(payload), nil
}

func decodeDocument(raw []byte) (Document, error) {
	doc := Document{}
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
