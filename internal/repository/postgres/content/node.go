package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	"folio/internal/repository/postgres"
)

const nodeColumns = `id, unique_id, parent_id, path, level, sort_order, trashed, kind, text, creator_id, created_at`

// PostgresNodeRepository implements the NodeRepository interface
type PostgresNodeRepository struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewNodeRepository creates a new node repository
func NewNodeRepository(config *postgres.RepositoryConfig) contentRepo.NodeRepository {
	return &PostgresNodeRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Create inserts a node below its parent. Path and level are derived from the parent row in the
// same statement so a concurrent move of the parent cannot leave a stale prefix.
func (r *PostgresNodeRepository) Create(ctx context.Context, node *models.Node, info *models.ContentInfo) error {
	if node.UniqueID == uuid.Nil {
		node.UniqueID = uuid.New()
	}
	contentType := ""
	if info != nil {
		contentType = info.ContentType
	}

	query := fmt.Sprintf(`
		WITH parent AS (
			SELECT path, level FROM %[1]s WHERE id = $1
		), next AS (
			SELECT CASE WHEN $2::BIGINT = 0 THEN nextval('%[2]s') ELSE $2::BIGINT END AS id
		)
		INSERT INTO %[1]s (id, unique_id, parent_id, path, level, sort_order, trashed, kind, content_type, text, creator_id, created_at)
		SELECT next.id, $3, $1, parent.path || ',' || next.id, parent.level + 1,
			(SELECT COALESCE(MAX(sort_order) + 1, 0) FROM %[1]s WHERE parent_id = $1 AND id <> $1),
			$4, $5, $6, $7, $8, $9
		FROM parent, next
		RETURNING %[3]s
	`, r.tables.Nodes, r.tables.NodeIDSequence, nodeColumns)

	executor := postgres.GetExecutor(ctx, r.pool)
	row := executor.QueryRow(ctx, query,
		node.ParentID,
		node.ID,
		node.UniqueID,
		node.Trashed,
		node.Kind,
		contentType,
		node.Text,
		node.CreatorID,
		node.CreatedAt,
	)
	created, err := scanNode(row)
	if err != nil {
		if postgres.IsNoRows(err) {
			return &domain.NodeNotFoundError{NodeID: node.ParentID}
		}
		if postgres.IsUniqueViolation(err, "") {
			return &domain.ConflictError{
				Message:      fmt.Sprintf("node %d already exists", node.ID),
				ResourceType: "node",
				ResourceID:   fmt.Sprint(node.ID),
			}
		}
		return fmt.Errorf("create node: %w", err)
	}

	*node = *created
	return nil
}

// GetByID retrieves a node by ID
func (r *PostgresNodeRepository) GetByID(ctx context.Context, id int64) (*models.Node, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, nodeColumns, r.tables.Nodes)

	executor := postgres.GetExecutor(ctx, r.pool)
	node, err := scanNode(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsNoRows(err) {
			return nil, &domain.NodeNotFoundError{NodeID: id}
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

// GetContentInfo returns the content type of a node
func (r *PostgresNodeRepository) GetContentInfo(ctx context.Context, id int64) (*models.ContentInfo, error) {
	query := fmt.Sprintf(`SELECT kind, content_type FROM %s WHERE id = $1`, r.tables.Nodes)

	var kind models.Kind
	var contentType string
	executor := postgres.GetExecutor(ctx, r.pool)
	if err := executor.QueryRow(ctx, query, id).Scan(&kind, &contentType); err != nil {
		if postgres.IsNoRows(err) {
			return nil, &domain.NodeNotFoundError{NodeID: id}
		}
		return nil, fmt.Errorf("get content info: %w", err)
	}
	if !kind.IsContent() {
		return nil, nil
	}
	return &models.ContentInfo{ContentType: contentType}, nil
}

// GetMany retrieves nodes by id in one round trip
func (r *PostgresNodeRepository) GetMany(ctx context.Context, ids []int64) ([]models.Node, error) {
	if len(ids) == 0 {
		return []models.Node{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1) ORDER BY level, sort_order`, nodeColumns, r.tables.Nodes)
	return r.list(ctx, query, ids)
}

// Children lists immediate children
func (r *PostgresNodeRepository) Children(ctx context.Context, id int64) ([]models.Node, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1 AND id <> $1
		ORDER BY sort_order, id
	`, nodeColumns, r.tables.Nodes)
	return r.list(ctx, query, id)
}

// Descendants matches the subtree by path prefix instead of walking parent links.
func (r *PostgresNodeRepository) Descendants(ctx context.Context, id int64) ([]models.Node, error) {
	parent, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE path LIKE $1
		ORDER BY level, sort_order, id
	`, nodeColumns, r.tables.Nodes)
	return r.list(ctx, query, subtreePattern(parent.Path))
}

// Move rewrites the moved node and every descendant in a single UPDATE, so the subtree is
// relocated all-or-nothing.
func (r *PostgresNodeRepository) Move(ctx context.Context, id, newParentID int64) error {
	if id == models.RootID || id == models.RecycleBinID {
		return fmt.Errorf("cannot move system node %d: %w", id, domain.ErrValidation)
	}

	return postgres.RunInTx(ctx, r.pool, r.logger, func(txCtx context.Context) error {
		node, err := r.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		parent, err := r.GetByID(txCtx, newParentID)
		if err != nil {
			return err
		}
		if parent.Path.Contains(id) {
			return fmt.Errorf("cannot move node %d below itself: %w", id, domain.ErrValidation)
		}

		oldPath := node.Path.String()
		newPath := parent.Path.Child(id).String()
		levelDelta := parent.Level + 1 - node.Level

		query := fmt.Sprintf(`
			UPDATE %[1]s SET
				path = $2 || substr(path, $3),
				level = level + $4,
				parent_id = CASE WHEN id = $1 THEN $5 ELSE parent_id END,
				sort_order = CASE WHEN id = $1
					THEN (SELECT COALESCE(MAX(sort_order) + 1, 0) FROM %[1]s WHERE parent_id = $5 AND id <> $5)
					ELSE sort_order END
			WHERE id = $1 OR path LIKE $6
		`, r.tables.Nodes)

		executor := postgres.GetExecutor(txCtx, r.pool)
		result, err := executor.Exec(txCtx, query,
			id,
			newPath,
			len(oldPath)+1,
			levelDelta,
			newParentID,
			subtreePattern(node.Path),
		)
		if err != nil {
			return fmt.Errorf("move node: %w", err)
		}

		r.logger.Debug("node moved",
			"node_id", id,
			"new_parent_id", newParentID,
			"rows", result.RowsAffected(),
		)
		return nil
	})
}

// SetTrashed flags the node and its subtree
func (r *PostgresNodeRepository) SetTrashed(ctx context.Context, id int64, trashed bool) error {
	node, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET trashed = $1 WHERE id = $2 OR path LIKE $3`, r.tables.Nodes)
	executor := postgres.GetExecutor(ctx, r.pool)
	if _, err := executor.Exec(ctx, query, trashed, id, subtreePattern(node.Path)); err != nil {
		return fmt.Errorf("set trashed: %w", err)
	}
	return nil
}

// SetSortOrder updates a node's position among its siblings
func (r *PostgresNodeRepository) SetSortOrder(ctx context.Context, id int64, sortOrder int) error {
	query := fmt.Sprintf(`UPDATE %s SET sort_order = $1 WHERE id = $2`, r.tables.Nodes)
	return r.execOne(ctx, query, id, sortOrder, id)
}

// UpdateText renames a node
func (r *PostgresNodeRepository) UpdateText(ctx context.Context, id int64, text string) error {
	query := fmt.Sprintf(`UPDATE %s SET text = $1 WHERE id = $2`, r.tables.Nodes)
	return r.execOne(ctx, query, id, text, id)
}

// Delete removes a single node row
func (r *PostgresNodeRepository) Delete(ctx context.Context, id int64) error {
	if id == models.RootID || id == models.RecycleBinID {
		return fmt.Errorf("cannot delete system node %d: %w", id, domain.ErrValidation)
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Nodes)
	err := r.execOne(ctx, query, id, id)
	if postgres.IsForeignKeyViolation(err) {
		return fmt.Errorf("node %d still has versions or snapshots: %w", id, domain.ErrConflict)
	}
	return err
}

func (r *PostgresNodeRepository) execOne(ctx context.Context, query string, id int64, args ...interface{}) error {
	executor := postgres.GetExecutor(ctx, r.pool)
	result, err := executor.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update node %d: %w", id, err)
	}
	if result.RowsAffected() == 0 {
		return &domain.NodeNotFoundError{NodeID: id}
	}
	return nil
}

func (r *PostgresNodeRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Node, error) {
	executor := postgres.GetExecutor(ctx, r.pool)
	rows, err := executor.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	nodes := []models.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nodes: %w", err)
	}
	return nodes, nil
}

func scanNode(row pgx.Row) (*models.Node, error) {
	var node models.Node
	var path string
	err := row.Scan(
		&node.ID,
		&node.UniqueID,
		&node.ParentID,
		&path,
		&node.Level,
		&node.SortOrder,
		&node.Trashed,
		&node.Kind,
		&node.Text,
		&node.CreatorID,
		&node.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if node.Path, err = models.ParsePath(path); err != nil {
		return nil, err
	}
	return &node, nil
}

// subtreePattern matches every path strictly below p. The trailing comma keeps 10 from
// matching 105.
func subtreePattern(p models.NodePath) string {
	return p.String() + ",%"
}
