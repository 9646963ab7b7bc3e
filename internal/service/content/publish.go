package content

import (
	"context"
	"fmt"
	"time"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
)

// Publish copies the newest version into a new version, marks that published and renders the
// snapshot, all in one transaction behind the publish guard.
func (s *lifecycleService) Publish(ctx context.Context, actor models.Actor, id int64) (bool, error) {
	node, err := s.document(ctx, id)
	if err != nil {
		return false, err
	}
	if node.Trashed {
		return false, &domain.InvalidStateError{NodeID: id, Reason: "cannot publish content in the recycle bin"}
	}
	if err := requireWriter(actor, id); err != nil {
		return false, err
	}

	if s.cancelled(ctx, events.Event{Kind: events.Publish, NodeID: id, Actor: actor}) {
		return false, nil
	}

	start := time.Now()
	published, err := s.publish(ctx, actor, node)
	s.metrics.RecordOperation(string(events.Publish), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("publish node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{node.Path}, id)

	s.logger.Info("document published",
		"id", id,
		"version_id", published.ID,
		"actor_id", actor.ID,
	)
	s.events.After(ctx, events.Event{Kind: events.Publish, NodeID: id, Actor: actor, VersionID: published.ID})
	return true, nil
}

func (s *lifecycleService) publish(ctx context.Context, actor models.Actor, node *models.Node) (*models.Version, error) {
	release := s.locks.Acquire(LockPublish)
	defer release()

	var published *models.Version
	err := s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		version, err := s.versions.CreateVersion(txCtx, node.ID, actor.ID, s.now())
		if err != nil {
			return err
		}
		if err := s.versions.MarkPublished(txCtx, node.ID, version.ID); err != nil {
			return err
		}
		if _, err := s.renderer.Regenerate(txCtx, node.ID); err != nil {
			return err
		}
		published = version
		return s.appendAudit(txCtx, actor, models.AuditPublish, node.ID, fmt.Sprintf("published version %s", version.ID))
	})
	return published, err
}

// PublishWithSubs recurses into every child even when a publish was cancelled
func (s *lifecycleService) PublishWithSubs(ctx context.Context, actor models.Actor, id int64) (*contentSvc.CascadeResult, error) {
	result := &contentSvc.CascadeResult{Published: []int64{}, Cancelled: []int64{}}
	err := s.publishCascade(ctx, actor, id, true, result)
	return result, err
}

// PublishWithChildren stops descending below a node whose publish was cancelled
func (s *lifecycleService) PublishWithChildren(ctx context.Context, actor models.Actor, id int64) (*contentSvc.CascadeResult, error) {
	result := &contentSvc.CascadeResult{Published: []int64{}, Cancelled: []int64{}}
	err := s.publishCascade(ctx, actor, id, false, result)
	return result, err
}

// publishCascade commits node by node. The first error stops the walk and leaves already
// published nodes in place.
func (s *lifecycleService) publishCascade(ctx context.Context, actor models.Actor, id int64, unconditional bool, result *contentSvc.CascadeResult) error {
	ok, err := s.Publish(ctx, actor, id)
	if err != nil {
		return err
	}
	if ok {
		result.Published = append(result.Published, id)
	} else {
		result.Cancelled = append(result.Cancelled, id)
		if !unconditional {
			return nil
		}
	}

	children, err := s.nodes.Children(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.publishCascade(ctx, actor, child.ID, unconditional, result); err != nil {
			return err
		}
	}
	return nil
}

// Unpublish leaves descendants untouched; they stop being visible through their ancestor chain.
func (s *lifecycleService) Unpublish(ctx context.Context, actor models.Actor, id int64) (bool, error) {
	node, err := s.document(ctx, id)
	if err != nil {
		return false, err
	}

	if s.cancelled(ctx, events.Event{Kind: events.Unpublish, NodeID: id, Actor: actor}) {
		return false, nil
	}

	published, err := s.versions.PublishedVersion(ctx, id)
	if err != nil {
		return false, err
	}
	if published == nil {
		s.logger.Debug("document already unpublished", "id", id)
		return true, nil
	}

	start := time.Now()
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		return s.unpublish(txCtx, actor, id)
	})
	s.metrics.RecordOperation(string(events.Unpublish), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("unpublish node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{node.Path}, id)

	s.logger.Info("document unpublished", "id", id, "actor_id", actor.ID)
	s.events.After(ctx, events.Event{Kind: events.Unpublish, NodeID: id, Actor: actor, VersionID: published.ID})
	return true, nil
}

// unpublish clears the published flag and the snapshot row. It runs inside the caller's
// transaction and fires no events.
func (s *lifecycleService) unpublish(ctx context.Context, actor models.Actor, id int64) error {
	if err := s.versions.MarkUnpublished(ctx, id); err != nil {
		return err
	}
	if err := s.snapshots.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return s.appendAudit(ctx, actor, models.AuditUnpublish, id, "")
}
