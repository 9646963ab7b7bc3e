package content

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	"folio/internal/repository/postgres"
)

// PostgresAuditRepository implements the AuditRepository interface
type PostgresAuditRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(config *postgres.RepositoryConfig) contentRepo.AuditRepository {
	return &PostgresAuditRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Append writes one audit row
func (r *PostgresAuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (actor_id, action, node_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, r.tables.Audit)

	executor := postgres.GetExecutor(ctx, r.pool)
	err := executor.QueryRow(ctx, query,
		entry.ActorID,
		entry.Action,
		entry.NodeID,
		entry.Detail,
		entry.CreatedAt,
	).Scan(&entry.ID)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListForNode returns a node's audit trail
func (r *PostgresAuditRepository) ListForNode(ctx context.Context, nodeID int64) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`
		SELECT id, actor_id, action, node_id, detail, created_at
		FROM %s WHERE node_id = $1
		ORDER BY id
	`, r.tables.Audit)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.AuditEntry])
	if err != nil {
		return nil, fmt.Errorf("collect audit entries: %w", err)
	}
	return entries, nil
}
