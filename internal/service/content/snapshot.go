package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"folio/internal/cache"
	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/metrics"
)

// Snapshot lookup sources reported to metrics
const (
	sourceCache       = "cache"
	sourceStore       = "store"
	sourceGenerated   = "generated"
	sourceUnpublished = "unpublished"
)

type snapshotService struct {
	nodes       contentRepo.NodeRepository
	versions    contentRepo.VersionRepository
	snapshots   contentRepo.SnapshotRepository
	publication contentSvc.PublicationService
	cache       cache.SnapshotCache
	locks       *OperationLocks
	metrics     *metrics.Metrics
	now         func() time.Time
	logger      *slog.Logger
}

// NewSnapshotService creates the snapshot service. snapshotCache and m may be nil.
func NewSnapshotService(
	nodes contentRepo.NodeRepository,
	versions contentRepo.VersionRepository,
	snapshots contentRepo.SnapshotRepository,
	publication contentSvc.PublicationService,
	snapshotCache cache.SnapshotCache,
	locks *OperationLocks,
	m *metrics.Metrics,
	now func() time.Time,
	logger *slog.Logger,
) contentSvc.SnapshotService {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	if snapshotCache == nil {
		snapshotCache = cache.NewSnapshotCache(nil, "", 0)
	}
	if locks == nil {
		locks = NewOperationLocks(m)
	}
	return &snapshotService{
		nodes:       nodes,
		versions:    versions,
		snapshots:   snapshots,
		publication: publication,
		cache:       snapshotCache,
		locks:       locks,
		metrics:     m,
		now:         now,
		logger:      logger,
	}
}

// Get serves from redis, then the snapshot table, then renders on a miss
func (s *snapshotService) Get(ctx context.Context, id int64) (*models.Snapshot, error) {
	state, err := s.publication.State(ctx, id)
	if err != nil {
		return nil, err
	}
	if !state.Published {
		s.metrics.RecordSnapshotLookup(sourceUnpublished)
		return nil, fmt.Errorf("snapshot of node %d: node is not published: %w", id, domain.ErrNotFound)
	}

	if snap, ok := s.cache.Get(ctx, id); ok {
		s.metrics.RecordSnapshotLookup(sourceCache)
		return snap, nil
	}

	snap, err := s.snapshots.Get(ctx, id)
	switch {
	case err == nil:
		s.metrics.RecordSnapshotLookup(sourceStore)
	case errors.Is(err, domain.ErrNotFound):
		snap, err = s.Regenerate(ctx, id)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return nil, fmt.Errorf("snapshot of node %d: no published version: %w", id, domain.ErrNotFound)
		}
		s.metrics.RecordSnapshotLookup(sourceGenerated)
		s.logger.Debug("snapshot generated on read", "node_id", id, "version_id", snap.VersionID)
	default:
		return nil, err
	}

	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.Warn("failed to cache snapshot", "node_id", id, "error", err)
	}
	return snap, nil
}

// Regenerate may run inside a transaction, so it only invalidates redis and never fills it.
func (s *snapshotService) Regenerate(ctx context.Context, id int64) (*models.Snapshot, error) {
	defer s.invalidate(ctx, id)

	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	version, err := s.versions.PublishedVersion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load published version of node %d: %w", id, err)
	}
	if version == nil {
		if err := s.snapshots.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("delete snapshot of node %d: %w", id, err)
		}
		return nil, nil
	}

	contentType := ""
	info, err := s.nodes.GetContentInfo(ctx, id)
	if err != nil {
		return nil, err
	}
	if info != nil {
		contentType = info.ContentType
	}

	xml, err := RenderXML(RenderInput{Node: *node, ContentType: contentType, Version: *version})
	if err != nil {
		return nil, err
	}
	snap := &models.Snapshot{
		NodeID:      id,
		VersionID:   version.ID.String(),
		XML:         xml,
		GeneratedAt: s.now().UTC(),
	}
	if err := s.snapshots.Upsert(ctx, snap); err != nil {
		return nil, fmt.Errorf("store snapshot of node %d: %w", id, err)
	}
	return snap, nil
}

// RebuildAll runs behind the rebuild guard. A node that fails to render is logged and counted,
// and the rebuild continues.
func (s *snapshotService) RebuildAll(ctx context.Context) (*contentSvc.BatchResult, error) {
	release := s.locks.Acquire(LockRebuild)
	defer release()

	start := time.Now()
	deleted, err := s.snapshots.DeleteAllDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("delete document snapshots: %w", err)
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.logger.Warn("failed to flush snapshot cache", "error", err)
	}

	ids, err := s.versions.AllPublishedNodeIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list published nodes: %w", err)
	}
	nodes, err := s.nodes.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load published nodes: %w", err)
	}

	result := &contentSvc.BatchResult{}
	for _, node := range nodes {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if node.Trashed || node.Kind != models.KindDocument {
			continue
		}
		if _, err := s.Regenerate(ctx, node.ID); err != nil {
			s.logger.Error("failed to regenerate snapshot",
				"node_id", node.ID,
				"error", err,
			)
			result.Fail(node.ID, err)
			continue
		}
		result.Processed++
	}

	s.metrics.RecordRebuild(result.Processed, result.Failed, time.Since(start))
	s.logger.Info("snapshot rebuild finished",
		"deleted", deleted,
		"processed", result.Processed,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
	return result, nil
}

func (s *snapshotService) invalidate(ctx context.Context, ids ...int64) {
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("failed to invalidate cached snapshots", "node_ids", ids, "error", err)
	}
}
