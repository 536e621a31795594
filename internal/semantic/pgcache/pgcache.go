// Package pgcache persists command phrase embeddings in PostgreSQL with the
// pgvector extension, so a stable catalog is embedded once rather than on
// every start. It implements [semantic.VectorStore].
package pgcache

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/varnahq/varna/internal/semantic"
)

// Cache is a pgvector-backed phrase vector store. Safe for concurrent use.
type Cache struct {
	pool *pgxpool.Pool
}

var _ semantic.VectorStore = (*Cache)(nil)

// New connects to the database at dsn, registers pgvector types on every
// connection, and ensures the phrase_vectors table exists with the given
// vector dimension. Changing the dimension after the first migration
// requires dropping the table.
func New(ctx context.Context, dsn string, dimensions int) (*Cache, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgcache: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgcache: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgcache: ping: %w", err)
	}
	if err := migrate(ctx, pool, dimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgcache: migrate: %w", err)
	}
	return &Cache{pool: pool}, nil
}

func migrate(ctx context.Context, pool *pgxpool.Pool, dimensions int) error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS phrase_vectors (
    model_id    TEXT         NOT NULL,
    phrase      TEXT         NOT NULL,
    embedding   vector(%d)   NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (model_id, phrase)
);`, dimensions)
	_, err := pool.Exec(ctx, ddl)
	return err
}

// Load implements [semantic.VectorStore].
func (c *Cache) Load(ctx context.Context, modelID string, phrases []string) (map[string][]float32, error) {
	if len(phrases) == 0 {
		return map[string][]float32{}, nil
	}
	const q = `
		SELECT phrase, embedding
		FROM   phrase_vectors
		WHERE  model_id = $1 AND phrase = ANY($2)`

	rows, err := c.pool.Query(ctx, q, modelID, phrases)
	if err != nil {
		return nil, fmt.Errorf("pgcache: load: %w", err)
	}

	type row struct {
		phrase string
		vec    pgvector.Vector
	}
	scanned, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (row, error) {
		var out row
		err := r.Scan(&out.phrase, &out.vec)
		return out, err
	})
	if err != nil {
		return nil, fmt.Errorf("pgcache: scan rows: %w", err)
	}

	vectors := make(map[string][]float32, len(scanned))
	for _, r := range scanned {
		vectors[r.phrase] = r.vec.Slice()
	}
	return vectors, nil
}

// Save implements [semantic.VectorStore]. All vectors are upserted in a
// single transaction.
func (c *Cache) Save(ctx context.Context, modelID string, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	const q = `
		INSERT INTO phrase_vectors (model_id, phrase, embedding, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (model_id, phrase) DO UPDATE SET
		    embedding  = EXCLUDED.embedding,
		    updated_at = now()`

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgcache: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for phrase, vec := range vectors {
		if _, err := tx.Exec(ctx, q, modelID, phrase, pgvector.NewVector(vec)); err != nil {
			return fmt.Errorf("pgcache: save %q: %w", phrase, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgcache: commit: %w", err)
	}
	return nil
}

// Close releases all connections held by the pool.
func (c *Cache) Close() {
	c.pool.Close()
}
