package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	"folio/internal/repository/postgres"
)

const versionColumns = `id, node_id, text, template_id, properties, writer_id, newest, published, release_date, expire_date, created_at, updated_at`

// PostgresVersionRepository implements the VersionRepository interface
type PostgresVersionRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewVersionRepository creates a new version repository
func NewVersionRepository(config *postgres.RepositoryConfig) contentRepo.VersionRepository {
	return &PostgresVersionRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Insert stores the first version of a node
func (r *PostgresVersionRepository) Insert(ctx context.Context, version *models.Version) error {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	version.Newest = true
	version.Published = false
	version.Properties = models.CopyProperties(version.Properties)

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, FALSE, $7, $8, $9, $10)
	`, r.tables.Versions, versionColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	_, err := executor.Exec(ctx, query,
		version.ID,
		version.NodeID,
		version.Text,
		version.TemplateID,
		version.Properties, // pgx handles slice -> JSONB
		version.WriterID,
		models.NullableTime(version.ReleaseDate),
		models.NullableTime(version.ExpireDate),
		version.CreatedAt,
		version.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err, r.tables.NewestIndex()) {
			return &domain.InvalidStateError{NodeID: version.NodeID, Reason: "node already has versions"}
		}
		if postgres.IsForeignKeyViolation(err) {
			return &domain.NodeNotFoundError{NodeID: version.NodeID}
		}
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// CreateVersion demotes the newest row and inserts a copy of it as the new newest, unpublished.
func (r *PostgresVersionRepository) CreateVersion(ctx context.Context, nodeID int64, writerID string, at time.Time) (*models.Version, error) {
	var created *models.Version
	err := postgres.RunInTx(ctx, r.pool, r.logger, func(txCtx context.Context) error {
		executor := postgres.GetExecutor(txCtx, r.pool)

		var prevID uuid.UUID
		demote := fmt.Sprintf(`
			UPDATE %s SET newest = FALSE
			WHERE node_id = $1 AND newest
			RETURNING id
		`, r.tables.Versions)
		if err := executor.QueryRow(txCtx, demote, nodeID).Scan(&prevID); err != nil {
			if postgres.IsNoRows(err) {
				return fmt.Errorf("node %d has no versions: %w", nodeID, domain.ErrVersionNotFound)
			}
			return fmt.Errorf("demote newest version: %w", err)
		}

		insert := fmt.Sprintf(`
			INSERT INTO %[1]s (%[2]s)
			SELECT $1, node_id, text, template_id, properties, $2, TRUE, FALSE, release_date, expire_date, $3, $3
			FROM %[1]s WHERE id = $4
			RETURNING %[2]s
		`, r.tables.Versions, versionColumns)
		v, err := scanVersion(executor.QueryRow(txCtx, insert, uuid.New(), writerID, at, prevID))
		if err != nil {
			return fmt.Errorf("copy newest version: %w", err)
		}
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// RestoreFrom creates a new version carrying the source version's content
func (r *PostgresVersionRepository) RestoreFrom(ctx context.Context, nodeID int64, sourceID uuid.UUID, writerID string, at time.Time) (*models.Version, error) {
	var restored *models.Version
	err := postgres.RunInTx(ctx, r.pool, r.logger, func(txCtx context.Context) error {
		source, err := r.Get(txCtx, nodeID, sourceID)
		if err != nil {
			return err
		}

		created, err := r.CreateVersion(txCtx, nodeID, writerID, at)
		if err != nil {
			return err
		}

		created.Text = source.Text
		created.TemplateID = source.TemplateID
		created.Properties = models.CopyProperties(source.Properties)

		query := fmt.Sprintf(`
			UPDATE %s SET text = $1, template_id = $2, properties = $3
			WHERE id = $4
		`, r.tables.Versions)
		executor := postgres.GetExecutor(txCtx, r.pool)
		if _, err := executor.Exec(txCtx, query, created.Text, created.TemplateID, created.Properties, created.ID); err != nil {
			return fmt.Errorf("restore version content: %w", err)
		}
		restored = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// MarkPublished clears the flag everywhere else first so the one-published index never trips
func (r *PostgresVersionRepository) MarkPublished(ctx context.Context, nodeID int64, versionID uuid.UUID) error {
	return postgres.RunInTx(ctx, r.pool, r.logger, func(txCtx context.Context) error {
		executor := postgres.GetExecutor(txCtx, r.pool)

		clear := fmt.Sprintf(`UPDATE %s SET published = FALSE WHERE node_id = $1 AND published AND id <> $2`, r.tables.Versions)
		if _, err := executor.Exec(txCtx, clear, nodeID, versionID); err != nil {
			return fmt.Errorf("clear published flag: %w", err)
		}

		set := fmt.Sprintf(`UPDATE %s SET published = TRUE WHERE node_id = $1 AND id = $2`, r.tables.Versions)
		result, err := executor.Exec(txCtx, set, nodeID, versionID)
		if err != nil {
			return fmt.Errorf("set published flag: %w", err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("version %s of node %d: %w", versionID, nodeID, domain.ErrVersionNotFound)
		}
		return nil
	})
}

// MarkUnpublished clears the published flag
func (r *PostgresVersionRepository) MarkUnpublished(ctx context.Context, nodeID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET published = FALSE WHERE node_id = $1 AND published`, r.tables.Versions)
	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeID); err != nil {
		return fmt.Errorf("clear published flag: %w", err)
	}
	return nil
}

// Update writes the editable fields of a version. Zero release/expire dates clear the column.
func (r *PostgresVersionRepository) Update(ctx context.Context, version *models.Version) error {
	return r.update(ctx, version, false)
}

// UpdateNewest writes the editable fields only while the row is still flagged newest. A publish
// that demoted it after the caller read it makes the statement match nothing.
func (r *PostgresVersionRepository) UpdateNewest(ctx context.Context, version *models.Version) error {
	return r.update(ctx, version, true)
}

func (r *PostgresVersionRepository) update(ctx context.Context, version *models.Version, onlyNewest bool) error {
	where := "node_id = $8 AND id = $9"
	if onlyNewest {
		where += " AND newest"
	}
	query := fmt.Sprintf(`
		UPDATE %s SET
			text = $1, template_id = $2, properties = $3, writer_id = $4,
			release_date = $5, expire_date = $6, updated_at = $7
		WHERE %s
	`, r.tables.Versions, where)

	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query,
		version.Text,
		version.TemplateID,
		models.CopyProperties(version.Properties),
		version.WriterID,
		models.NullableTime(version.ReleaseDate),
		models.NullableTime(version.ExpireDate),
		version.UpdatedAt,
		version.NodeID,
		version.ID,
	)
	if err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	if result.RowsAffected() > 0 {
		return nil
	}
	if onlyNewest {
		// tell a demoted version apart from one that never belonged to the node
		if _, err := r.Get(ctx, version.NodeID, version.ID); err != nil {
			return err
		}
		return &domain.ConflictError{
			Message:      fmt.Sprintf("version %s of node %d is no longer the newest", version.ID, version.NodeID),
			ResourceType: "version",
			ResourceID:   version.ID.String(),
		}
	}
	return fmt.Errorf("version %s of node %d: %w", version.ID, version.NodeID, domain.ErrVersionNotFound)
}

// Get retrieves a version that belongs to the node
func (r *PostgresVersionRepository) Get(ctx context.Context, nodeID int64, versionID uuid.UUID) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE node_id = $1 AND id = $2`, versionColumns, r.tables.Versions)
	v, err := r.one(ctx, query, nodeID, versionID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("version %s of node %d: %w", versionID, nodeID, domain.ErrVersionNotFound)
	}
	return v, nil
}

// Newest retrieves the version open for editing
func (r *PostgresVersionRepository) Newest(ctx context.Context, nodeID int64) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE node_id = $1 AND newest`, versionColumns, r.tables.Versions)
	v, err := r.one(ctx, query, nodeID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("newest version of node %d: %w", nodeID, domain.ErrVersionNotFound)
	}
	return v, nil
}

// PublishedVersion returns nil without error when nothing is published
func (r *PostgresVersionRepository) PublishedVersion(ctx context.Context, nodeID int64) (*models.Version, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE node_id = $1 AND published`, versionColumns, r.tables.Versions)
	return r.one(ctx, query, nodeID)
}

// ListVersions returns the history oldest first
func (r *PostgresVersionRepository) ListVersions(ctx context.Context, nodeID int64) ([]models.Version, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE node_id = $1
		ORDER BY created_at, newest
	`, versionColumns, r.tables.Versions)

	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := []models.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return versions, nil
}

// PublishedNodeIDs returns which of ids have a published version
func (r *PostgresVersionRepository) PublishedNodeIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := fmt.Sprintf(`SELECT node_id FROM %s WHERE published AND node_id = ANY($1)`, r.tables.Versions)
	found, err := r.ids(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		result[id] = true
	}
	return result, nil
}

// AllPublishedNodeIDs lists published nodes ordered so parents come before children
func (r *PostgresVersionRepository) AllPublishedNodeIDs(ctx context.Context) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT v.node_id FROM %s v
		JOIN %s n ON n.id = v.node_id
		WHERE v.published
		ORDER BY n.level, n.sort_order, n.id
	`, r.tables.Versions, r.tables.Nodes)
	return r.ids(ctx, query)
}

// DueForRelease lists nodes whose newest version is scheduled for release at or before now
func (r *PostgresVersionRepository) DueForRelease(ctx context.Context, now time.Time) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT v.node_id FROM %s v
		JOIN %s n ON n.id = v.node_id
		WHERE v.newest AND v.release_date IS NOT NULL AND v.release_date <= $1 AND NOT n.trashed
		ORDER BY n.level, n.sort_order, n.id
	`, r.tables.Versions, r.tables.Nodes)
	return r.ids(ctx, query, now)
}

// DueForExpiration lists published nodes whose expire date has passed
func (r *PostgresVersionRepository) DueForExpiration(ctx context.Context, now time.Time) ([]int64, error) {
	query := fmt.Sprintf(`
		SELECT node_id FROM %s
		WHERE published AND expire_date IS NOT NULL AND expire_date <= $1
		ORDER BY node_id
	`, r.tables.Versions)
	return r.ids(ctx, query, now)
}

// DeleteAllForNode removes every version of a node
func (r *PostgresVersionRepository) DeleteAllForNode(ctx context.Context, nodeID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE node_id = $1`, r.tables.Versions)
	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, nodeID); err != nil {
		return fmt.Errorf("delete versions: %w", err)
	}
	return nil
}

func (r *PostgresVersionRepository) one(ctx context.Context, query string, args ...interface{}) (*models.Version, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	v, err := scanVersion(executor.QueryRow(ctx, query, args...))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return v, nil
}

func (r *PostgresVersionRepository) ids(ctx context.Context, query string, args ...interface{}) ([]int64, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list node ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect node ids: %w", err)
	}
	return ids, nil
}

func scanVersion(row pgx.Row) (*models.Version, error) {
	var v models.Version
	var releaseDate, expireDate *time.Time
	err := row.Scan(
		&v.ID,
		&v.NodeID,
		&v.Text,
		&v.TemplateID,
		&v.Properties, // pgx handles JSONB -> slice
		&v.WriterID,
		&v.Newest,
		&v.Published,
		&releaseDate,
		&expireDate,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	v.ReleaseDate = models.FromNullableTime(releaseDate)
	v.ExpireDate = models.FromNullableTime(expireDate)
	if v.Properties == nil {
		v.Properties = []models.Property{}
	}
	return &v, nil
}
