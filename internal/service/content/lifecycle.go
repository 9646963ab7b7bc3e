package content

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"folio/internal/assets"
	"folio/internal/cache"
	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	"folio/internal/domain/repositories"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
	"folio/internal/metrics"
)

// LifecycleDeps collects the collaborators of the lifecycle service. Cache, Assets, Events,
// Locks, Metrics and Now are optional.
type LifecycleDeps struct {
	Nodes       contentRepo.NodeRepository
	Versions    contentRepo.VersionRepository
	Snapshots   contentRepo.SnapshotRepository
	Audit       contentRepo.AuditRepository
	Tx          repositories.TransactionManager
	Publication contentSvc.PublicationService
	Renderer    contentSvc.SnapshotService
	Cache       cache.SnapshotCache
	Assets      assets.Store
	Events      *events.Bus
	Locks       *OperationLocks
	Metrics     *metrics.Metrics
	Now         func() time.Time
	Logger      *slog.Logger
}

type lifecycleService struct {
	nodes       contentRepo.NodeRepository
	versions    contentRepo.VersionRepository
	snapshots   contentRepo.SnapshotRepository
	audit       contentRepo.AuditRepository
	txManager   repositories.TransactionManager
	publication contentSvc.PublicationService
	renderer    contentSvc.SnapshotService
	cache       cache.SnapshotCache
	assets      assets.Store
	events      *events.Bus
	locks       *OperationLocks
	metrics     *metrics.Metrics
	now         func() time.Time
	logger      *slog.Logger
}

// NewLifecycleService creates the lifecycle service
func NewLifecycleService(deps LifecycleDeps) contentSvc.LifecycleService {
	s := &lifecycleService{
		nodes:       deps.Nodes,
		versions:    deps.Versions,
		snapshots:   deps.Snapshots,
		audit:       deps.Audit,
		txManager:   deps.Tx,
		publication: deps.Publication,
		renderer:    deps.Renderer,
		cache:       deps.Cache,
		assets:      deps.Assets,
		events:      deps.Events,
		locks:       deps.Locks,
		metrics:     deps.Metrics,
		now:         deps.Now,
		logger:      deps.Logger,
	}
	if s.cache == nil {
		s.cache = cache.NewSnapshotCache(nil, "", 0)
	}
	if s.locks == nil {
		s.locks = NewOperationLocks(deps.Metrics)
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Create makes a document and its first version
func (s *lifecycleService) Create(ctx context.Context, actor models.Actor, req *contentSvc.CreateRequest) (*models.Record, bool, error) {
	if err := validateCreate(req); err != nil {
		return nil, false, err
	}
	if err := requireWriter(actor, 0); err != nil {
		return nil, false, err
	}
	if req.ParentID == 0 {
		req.ParentID = models.RootID
	}

	parent, err := s.nodes.GetByID(ctx, req.ParentID)
	if err != nil {
		return nil, false, err
	}
	if parent.IsRecycleBin() || parent.InRecycleBin() {
		return nil, false, fmt.Errorf("%w: cannot create content in the recycle bin", domain.ErrValidation)
	}

	if s.cancelled(ctx, events.Event{Kind: events.New, NodeID: req.ParentID, Actor: actor, ParentID: req.ParentID}) {
		return nil, false, nil
	}

	start := time.Now()
	now := s.now()
	node := &models.Node{
		ParentID:  req.ParentID,
		Kind:      models.KindDocument,
		Text:      req.Name,
		CreatorID: actor.ID,
		CreatedAt: now,
	}
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.Create(txCtx, node, &models.ContentInfo{ContentType: req.ContentType}); err != nil {
			return err
		}
		version := &models.Version{
			NodeID:      node.ID,
			Text:        req.Name,
			TemplateID:  req.TemplateID,
			Properties:  models.CopyProperties(req.Properties),
			WriterID:    actor.ID,
			ReleaseDate: req.ReleaseDate,
			ExpireDate:  req.ExpireDate,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.versions.Insert(txCtx, version); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditNew, node.ID, fmt.Sprintf("created under %d", req.ParentID))
	})
	s.metrics.RecordOperation(string(events.New), err, time.Since(start))
	if err != nil {
		return nil, false, fmt.Errorf("create document: %w", err)
	}

	s.logger.Info("document created",
		"id", node.ID,
		"parent_id", node.ParentID,
		"content_type", req.ContentType,
		"actor_id", actor.ID,
	)
	s.events.After(ctx, events.Event{Kind: events.New, NodeID: node.ID, Actor: actor, ParentID: req.ParentID})

	record, err := s.Get(ctx, node.ID)
	if err != nil {
		return nil, true, err
	}
	return record, true, nil
}

// Get composes the node with its extensions
func (s *lifecycleService) Get(ctx context.Context, id int64) (*models.Record, error) {
	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, *node)
}

// Children lists the records below id in sort order
func (s *lifecycleService) Children(ctx context.Context, id int64) ([]models.Record, error) {
	if _, err := s.nodes.GetByID(ctx, id); err != nil {
		return nil, err
	}
	children, err := s.nodes.Children(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(children))
	for _, child := range children {
		record, err := s.record(ctx, child)
		if err != nil {
			return nil, err
		}
		out = append(out, *record)
	}
	return out, nil
}

func (s *lifecycleService) record(ctx context.Context, node models.Node) (*models.Record, error) {
	record := &models.Record{Node: node}
	if !node.Kind.IsContent() {
		return record, nil
	}

	info, err := s.nodes.GetContentInfo(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	record.Content = info

	if node.Kind == models.KindDocument {
		newest, err := s.versions.Newest(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		published, err := s.versions.PublishedVersion(ctx, node.ID)
		if err != nil {
			return nil, err
		}
		record.Document = &models.DocumentInfo{
			Current:             newest,
			HasPublishedVersion: published != nil && !node.Trashed,
		}
	}
	return record, nil
}

// Save never edits the published version; a new version is created first when needed.
func (s *lifecycleService) Save(ctx context.Context, actor models.Actor, id int64, req *contentSvc.SaveRequest) (bool, error) {
	if err := validateSave(req); err != nil {
		return false, err
	}
	node, err := s.document(ctx, id)
	if err != nil {
		return false, err
	}
	if err := requireWriter(actor, id); err != nil {
		return false, err
	}

	if s.cancelled(ctx, events.Event{Kind: events.Save, NodeID: id, Actor: actor}) {
		return false, nil
	}

	start := time.Now()
	now := s.now()
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		newest, err := s.versions.Newest(txCtx, id)
		if err != nil {
			return err
		}
		if newest.Published {
			if newest, err = s.versions.CreateVersion(txCtx, id, actor.ID, now); err != nil {
				return err
			}
		}

		if req.Name != nil {
			newest.Text = *req.Name
			if err := s.nodes.UpdateText(txCtx, id, *req.Name); err != nil {
				return err
			}
		}
		if req.ClearTemplate {
			newest.TemplateID = nil
		} else if req.TemplateID != nil {
			templateID := *req.TemplateID
			newest.TemplateID = &templateID
		}
		for _, p := range req.Properties {
			newest.SetProperty(p)
		}
		if req.ReleaseDate != nil {
			newest.ReleaseDate = *req.ReleaseDate
		}
		if req.ExpireDate != nil {
			newest.ExpireDate = *req.ExpireDate
		}
		newest.WriterID = actor.ID
		newest.UpdatedAt = now

		if err := s.versions.UpdateNewest(txCtx, newest); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditSave, id, "")
	})
	s.metrics.RecordOperation(string(events.Save), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("save node %d: %w", id, err)
	}

	s.logger.Debug("document saved", "id", id, "actor_id", actor.ID)
	s.events.After(ctx, events.Event{Kind: events.Save, NodeID: node.ID, Actor: actor})
	return true, nil
}

// SendToPublication only notifies; approval happens elsewhere
func (s *lifecycleService) SendToPublication(ctx context.Context, actor models.Actor, id int64) (bool, error) {
	if _, err := s.document(ctx, id); err != nil {
		return false, err
	}
	if s.cancelled(ctx, events.Event{Kind: events.SendToPublish, NodeID: id, Actor: actor}) {
		return false, nil
	}
	if err := s.appendAudit(ctx, actor, models.AuditSendToPublish, id, ""); err != nil {
		return false, err
	}
	s.events.After(ctx, events.Event{Kind: events.SendToPublish, NodeID: id, Actor: actor})
	return true, nil
}

// Rollback always moves forward: the target's content is copied into a new newest version
func (s *lifecycleService) Rollback(ctx context.Context, actor models.Actor, id int64, versionID uuid.UUID) (bool, error) {
	if _, err := s.document(ctx, id); err != nil {
		return false, err
	}
	if err := requireWriter(actor, id); err != nil {
		return false, err
	}
	if _, err := s.versions.Get(ctx, id, versionID); err != nil {
		return false, err
	}

	e := events.Event{Kind: events.Rollback, NodeID: id, Actor: actor, VersionID: versionID}
	if s.cancelled(ctx, e) {
		return false, nil
	}

	start := time.Now()
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		restored, err := s.versions.RestoreFrom(txCtx, id, versionID, actor.ID, s.now())
		if err != nil {
			return err
		}
		if err := s.nodes.UpdateText(txCtx, id, restored.Text); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditRollback, id, fmt.Sprintf("rolled back to version %s", versionID))
	})
	s.metrics.RecordOperation(string(events.Rollback), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("rollback node %d: %w", id, err)
	}

	s.logger.Info("document rolled back", "id", id, "version_id", versionID, "actor_id", actor.ID)
	s.events.After(ctx, e)
	return true, nil
}

// State derives the lifecycle position from the trashed flag, the published version and the
// audit trail
func (s *lifecycleService) State(ctx context.Context, id int64) (models.LifecycleState, error) {
	node, err := s.document(ctx, id)
	if err != nil {
		return "", err
	}
	if node.Trashed {
		return models.StateTrashed, nil
	}
	published, err := s.versions.PublishedVersion(ctx, id)
	if err != nil {
		return "", err
	}
	if published != nil {
		return models.StatePublished, nil
	}
	entries, err := s.audit.ListForNode(ctx, id)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Action == models.AuditPublish {
			return models.StateUnpublished, nil
		}
	}
	return models.StateDraft, nil
}

func (s *lifecycleService) Versions(ctx context.Context, id int64) ([]models.Version, error) {
	if _, err := s.document(ctx, id); err != nil {
		return nil, err
	}
	return s.versions.ListVersions(ctx, id)
}

func (s *lifecycleService) HasPendingChanges(ctx context.Context, id int64) (bool, error) {
	if _, err := s.document(ctx, id); err != nil {
		return false, err
	}
	newest, err := s.versions.Newest(ctx, id)
	if err != nil {
		return false, err
	}
	published, err := s.versions.PublishedVersion(ctx, id)
	if err != nil {
		return false, err
	}
	return models.HasPendingChanges(newest, published), nil
}

func (s *lifecycleService) Audit(ctx context.Context, id int64) ([]models.AuditEntry, error) {
	if _, err := s.nodes.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.audit.ListForNode(ctx, id)
}

// document loads a node and checks that it is a document
func (s *lifecycleService) document(ctx context.Context, id int64) (*models.Node, error) {
	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if node.Kind != models.KindDocument {
		return nil, &domain.InvalidStateError{NodeID: id, Reason: fmt.Sprintf("%s nodes have no document lifecycle", node.Kind)}
	}
	return node, nil
}

// cancelled fires the Before handlers and records a veto
func (s *lifecycleService) cancelled(ctx context.Context, e events.Event) bool {
	if !s.events.Before(ctx, e) {
		return false
	}
	s.metrics.RecordCancelled(string(e.Kind))
	s.logger.Info("operation cancelled by event handler",
		"operation", e.Kind,
		"node_id", e.NodeID,
		"actor_id", e.Actor.ID,
	)
	return true
}

func (s *lifecycleService) appendAudit(ctx context.Context, actor models.Actor, action models.AuditAction, nodeID int64, detail string) error {
	err := s.audit.Append(ctx, &models.AuditEntry{
		ActorID:   actor.ID,
		Action:    action,
		NodeID:    nodeID,
		Detail:    detail,
		CreatedAt: s.now(),
	})
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// invalidate drops derived state for the subtrees at paths and the cached snapshots of ids.
// Call it after the transaction committed.
func (s *lifecycleService) invalidate(ctx context.Context, paths []models.NodePath, ids ...int64) {
	for _, p := range paths {
		s.publication.InvalidateSubtree(p)
	}
	if len(ids) == 0 {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.logger.Warn("failed to invalidate cached snapshots", "node_ids", ids, "error", err)
	}
}

func requireWriter(actor models.Actor, nodeID int64) error {
	if actor.ID == "" {
		return &domain.InvalidStateError{NodeID: nodeID, Reason: "a writer is required"}
	}
	return nil
}
