package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Index names referenced when mapping constraint violations.
func (t *TableNames) NewestIndex() string    { return t.Versions + "_one_newest" }
func (t *TableNames) PublishedIndex() string { return t.Versions + "_one_published" }

// Migrate creates the content tables for this environment's prefix and seeds the root and
// recycle bin nodes. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool, tables *TableNames, logger *slog.Logger) error {
	statements := []string{
		fmt.Sprintf(`CREATE SEQUENCE IF NOT EXISTS %s START WITH 1000`, tables.NodeIDSequence),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGINT PRIMARY KEY,
				unique_id UUID NOT NULL UNIQUE,
				parent_id BIGINT NOT NULL,
				path TEXT NOT NULL,
				level INT NOT NULL,
				sort_order INT NOT NULL DEFAULT 0,
				trashed BOOLEAN NOT NULL DEFAULT FALSE,
				kind TEXT NOT NULL,
				content_type TEXT NOT NULL DEFAULT '',
				text TEXT NOT NULL DEFAULT '',
				creator_id TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, tables.Nodes),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_parent_idx ON %s (parent_id, sort_order)`, tables.Nodes, tables.Nodes),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_path_idx ON %s (path text_pattern_ops)`, tables.Nodes, tables.Nodes),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id UUID PRIMARY KEY,
				node_id BIGINT NOT NULL REFERENCES %s (id),
				text TEXT NOT NULL DEFAULT '',
				template_id BIGINT,
				properties JSONB NOT NULL DEFAULT '[]',
				writer_id TEXT NOT NULL DEFAULT '',
				newest BOOLEAN NOT NULL DEFAULT FALSE,
				published BOOLEAN NOT NULL DEFAULT FALSE,
				release_date TIMESTAMPTZ,
				expire_date TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`, tables.Versions, tables.Nodes),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_node_idx ON %s (node_id, created_at)`, tables.Versions, tables.Versions),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (node_id) WHERE newest`, tables.NewestIndex(), tables.Versions),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (node_id) WHERE published`, tables.PublishedIndex(), tables.Versions),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				node_id BIGINT PRIMARY KEY REFERENCES %s (id),
				version_id TEXT NOT NULL,
				xml TEXT NOT NULL,
				generated_at TIMESTAMPTZ NOT NULL
			)`, tables.Snapshots, tables.Nodes),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id BIGSERIAL PRIMARY KEY,
				actor_id TEXT NOT NULL,
				action TEXT NOT NULL,
				node_id BIGINT NOT NULL,
				detail TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, tables.Audit),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_node_idx ON %s (node_id, id)`, tables.Audit, tables.Audit),
		fmt.Sprintf(`
			INSERT INTO %s (id, unique_id, parent_id, path, level, sort_order, kind, text)
			VALUES
				(-1, gen_random_uuid(), -1, '-1', 1, 0, 'system', 'Root'),
				(-20, gen_random_uuid(), -1, '-1,-20', 2, 0, 'system', 'Recycle Bin')
			ON CONFLICT (id) DO NOTHING`, tables.Nodes),
	}

	return NewTransactionManager(pool, logger).ExecTx(ctx, func(txCtx context.Context) error {
		executor := GetExecutor(txCtx, pool)
		for _, stmt := range statements {
			if _, err := executor.Exec(txCtx, stmt); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		return nil
	})
}

// DropAll drops every content table for this environment's prefix.
func DropAll(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	dropSQL := fmt.Sprintf(`
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
		DROP TABLE IF EXISTS %s CASCADE;
		DROP SEQUENCE IF EXISTS %s;
	`, tables.Audit, tables.Snapshots, tables.Versions, tables.Nodes, tables.NodeIDSequence)

	// Multiple statements need the simple protocol, which Exec uses when there are no arguments
	if _, err := pool.Exec(ctx, dropSQL); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return nil
}
