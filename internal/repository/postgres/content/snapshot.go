package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	"folio/internal/repository/postgres"
)

// PostgresSnapshotRepository implements the SnapshotRepository interface
type PostgresSnapshotRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(config *postgres.RepositoryConfig) contentRepo.SnapshotRepository {
	return &PostgresSnapshotRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Get retrieves the snapshot of a node
func (r *PostgresSnapshotRepository) Get(ctx context.Context, nodeID int64) (*models.Snapshot, error) {
	query := fmt.Sprintf(`
		SELECT node_id, version_id, xml, generated_at
		FROM %s WHERE node_id = $1
	`, r.tables.Snapshots)

	var s models.Snapshot
	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query, nodeID).Scan(&s.NodeID, &s.VersionID, &s.XML, &s.GeneratedAt)
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, fmt.Errorf("snapshot of node %d: %w", nodeID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return &s, nil
}

// Upsert replaces the snapshot of a node; the last writer wins
func (r *PostgresSnapshotRepository) Upsert(ctx context.Context, s *models.Snapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (node_id, version_id, xml, generated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (node_id) DO UPDATE
		SET version_id = EXCLUDED.version_id, xml = EXCLUDED.xml, generated_at = EXCLUDED.generated_at
	`, r.tables.Snapshots)

	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, s.NodeID, s.VersionID, s.XML, s.GeneratedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return &domain.NodeNotFoundError{NodeID: s.NodeID}
		}
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot of a node if present
func (r *PostgresSnapshotRepository) Delete(ctx context.Context, nodeID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = $1`, r.tables.Snapshots)
	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeID); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// DeleteAllDocuments clears every document snapshot ahead of a full rebuild
func (r *PostgresSnapshotRepository) DeleteAllDocuments(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`
		DELETE FROM %s s
		USING %s n
		WHERE n.id = s.node_id AND n.kind = $1
	`, r.tables.Snapshots, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, models.KindDocument)
	if err != nil {
		return 0, fmt.Errorf("delete document snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}
