package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"folio/internal/domain/repositories"
)

// RepositoryConfig holds configuration for repository implementations
type RepositoryConfig struct {
	Pool   *pgxpool.Pool
	Tables *TableNames
	Logger *slog.Logger
}

// TableNames holds dynamically prefixed table names
type TableNames struct {
	Nodes     string
	Versions  string
	Snapshots string
	Audit     string

	// NodeIDSequence issues ids for new nodes. Well-known system nodes use negative ids.
	NodeIDSequence string
}

// NewTableNames creates table names with the given prefix
func NewTableNames(prefix string) *TableNames {
	return &TableNames{
		Nodes:          fmt.Sprintf("%snodes", prefix),
		Versions:       fmt.Sprintf("%sversions", prefix),
		Snapshots:      fmt.Sprintf("%ssnapshots", prefix),
		Audit:          fmt.Sprintf("%saudit_log", prefix),
		NodeIDSequence: fmt.Sprintf("%snodes_id_seq", prefix),
	}
}

// CreateConnectionPool creates a new pgx connection pool.
//
// Port 6543 is treated as a PgBouncer transaction pooler, which does not support prepared
// statements. In that case the pool switches to QueryExecModeCacheDescribe unless the connection
// string already sets default_query_exec_mode.
//
// Table prefixes are interpolated with fmt.Sprintf before the SQL reaches the server, so each
// environment gets its own cached statements.
func CreateConnectionPool(ctx context.Context, databaseURL string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 25
	}
	config.MaxConns = maxConns
	config.MinConns = min(5, maxConns)

	if config.ConnConfig.Port == 6543 && config.ConnConfig.DefaultQueryExecMode == pgx.QueryExecModeCacheStatement {
		config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheDescribe
		slog.Debug("auto-configured cache_describe mode for PgBouncer compatibility", "port", 6543)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// GetExecutor returns the transaction carried by ctx, or the pool outside one
func GetExecutor(ctx context.Context, pool *pgxpool.Pool) repositories.DBTX {
	if tx, ok := repositories.TxFrom(ctx); ok {
		return tx
	}
	return pool
}

// RunInTx runs fn inside the transaction already carried by ctx, or opens a new one.
// Repository methods that issue several dependent statements use it so they stay atomic when
// called outside a service-level transaction.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger, fn repositories.TxFn) error {
	return NewTransactionManager(pool, logger).ExecTx(ctx, fn)
}
