package content

import (
	"context"
	"fmt"
	"time"

	"folio/internal/assets"
	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
)

// Move re-parents a node inside the live tree. Moving into the recycle bin goes through
// MoveToTrash instead. Snapshots of published nodes in the subtree are re-rendered since their
// path, level and sort order changed.
func (s *lifecycleService) Move(ctx context.Context, actor models.Actor, id, newParentID int64) (bool, error) {
	node, dest, err := s.moveTargets(ctx, id, newParentID)
	if err != nil {
		return false, err
	}
	if dest.IsRecycleBin() || dest.InRecycleBin() {
		return false, fmt.Errorf("%w: use move to trash to put content in the recycle bin", domain.ErrValidation)
	}

	e := events.Event{Kind: events.Move, NodeID: id, Actor: actor, ParentID: dest.ID}
	if s.cancelled(ctx, e) {
		return false, nil
	}

	start := time.Now()
	var moved *models.Node
	var regenerated []int64
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.Move(txCtx, id, dest.ID); err != nil {
			return err
		}
		if node.Trashed {
			if err := s.nodes.SetTrashed(txCtx, id, false); err != nil {
				return err
			}
		}

		var err error
		moved, err = s.nodes.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if regenerated, err = s.regenerateSubtree(txCtx, *moved); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditMove, id, fmt.Sprintf("moved from %d to %d", node.ParentID, dest.ID))
	})
	s.metrics.RecordOperation(string(events.Move), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("move node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{node.Path, moved.Path}, regenerated...)

	s.logger.Info("node moved",
		"id", id,
		"from", node.ParentID,
		"to", dest.ID,
		"regenerated", len(regenerated),
		"actor_id", actor.ID,
	)
	s.events.After(ctx, e)
	return true, nil
}

// regenerateSubtree re-renders snapshots of every locally published node in the subtree
func (s *lifecycleService) regenerateSubtree(ctx context.Context, root models.Node) ([]int64, error) {
	descendants, err := s.nodes.Descendants(ctx, root.ID)
	if err != nil {
		return nil, err
	}
	subtree := append([]models.Node{root}, descendants...)
	ids := make([]int64, len(subtree))
	for i, n := range subtree {
		ids[i] = n.ID
	}
	published, err := s.versions.PublishedNodeIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var regenerated []int64
	for _, n := range subtree {
		if !published[n.ID] || n.Trashed {
			continue
		}
		if _, err := s.renderer.Regenerate(ctx, n.ID); err != nil {
			return nil, err
		}
		regenerated = append(regenerated, n.ID)
	}
	return regenerated, nil
}

// MoveToTrash unpublishes the node and relocates its subtree under the recycle bin. Descendants
// keep their published versions; they become invisible through the trashed flag and their
// unpublished ancestor.
func (s *lifecycleService) MoveToTrash(ctx context.Context, actor models.Actor, id int64) (bool, error) {
	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if id == models.RootID || id == models.RecycleBinID {
		return false, fmt.Errorf("%w: cannot trash system node %d", domain.ErrValidation, id)
	}
	if node.InRecycleBin() {
		return false, &domain.InvalidStateError{NodeID: id, Reason: "already in the recycle bin"}
	}

	e := events.Event{Kind: events.MoveToTrash, NodeID: id, Actor: actor, ParentID: models.RecycleBinID}
	if s.cancelled(ctx, e) {
		return false, nil
	}

	start := time.Now()
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if node.Kind == models.KindDocument {
			published, err := s.versions.PublishedVersion(txCtx, id)
			if err != nil {
				return err
			}
			if published != nil {
				if err := s.unpublish(txCtx, actor, id); err != nil {
					return err
				}
			}
		}
		if err := s.nodes.Move(txCtx, id, models.RecycleBinID); err != nil {
			return err
		}
		if err := s.nodes.SetTrashed(txCtx, id, true); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditMoveToTrash, id, fmt.Sprintf("trashed from %d", node.ParentID))
	})
	s.metrics.RecordOperation(string(events.MoveToTrash), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("trash node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{node.Path, models.RecycleBinPath}, id)

	s.logger.Info("node moved to recycle bin", "id", id, "parent_id", node.ParentID, "actor_id", actor.ID)
	s.events.After(ctx, e)
	return true, nil
}

// Restore moves a trashed subtree back into the live tree. parentID 0 restores below the root.
func (s *lifecycleService) Restore(ctx context.Context, actor models.Actor, id, parentID int64) (bool, error) {
	if parentID == 0 {
		parentID = models.RootID
	}
	node, dest, err := s.moveTargets(ctx, id, parentID)
	if err != nil {
		return false, err
	}
	if !node.InRecycleBin() {
		return false, &domain.InvalidStateError{NodeID: id, Reason: "not in the recycle bin"}
	}
	if dest.IsRecycleBin() || dest.InRecycleBin() {
		return false, fmt.Errorf("%w: cannot restore into the recycle bin", domain.ErrValidation)
	}

	e := events.Event{Kind: events.Restore, NodeID: id, Actor: actor, ParentID: dest.ID}
	if s.cancelled(ctx, e) {
		return false, nil
	}

	start := time.Now()
	var restored *models.Node
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.nodes.Move(txCtx, id, dest.ID); err != nil {
			return err
		}
		if err := s.nodes.SetTrashed(txCtx, id, false); err != nil {
			return err
		}
		var err error
		if restored, err = s.nodes.GetByID(txCtx, id); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditRestore, id, fmt.Sprintf("restored to %d", dest.ID))
	})
	s.metrics.RecordOperation(string(events.Restore), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("restore node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{node.Path, restored.Path})

	s.logger.Info("node restored", "id", id, "parent_id", dest.ID, "actor_id", actor.ID)
	s.events.After(ctx, e)
	return true, nil
}

func (s *lifecycleService) moveTargets(ctx context.Context, id, parentID int64) (*models.Node, *models.Node, error) {
	if id == models.RootID || id == models.RecycleBinID {
		return nil, nil, fmt.Errorf("%w: cannot move system node %d", domain.ErrValidation, id)
	}
	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	dest, err := s.nodes.GetByID(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	if dest.Path.Contains(id) {
		return nil, nil, fmt.Errorf("%w: cannot move node %d below itself", domain.ErrValidation, id)
	}
	return node, dest, nil
}

// DeletePermanently deletes children first. When a handler vetoes the deletion of any node in
// the subtree, its ancestors are kept as well and the call reports false.
func (s *lifecycleService) DeletePermanently(ctx context.Context, actor models.Actor, id int64) (bool, error) {
	if id == models.RootID || id == models.RecycleBinID {
		return false, fmt.Errorf("%w: cannot delete system node %d", domain.ErrValidation, id)
	}
	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return false, err
	}

	e := events.Event{Kind: events.Delete, NodeID: id, Actor: actor}
	if s.cancelled(ctx, e) {
		return false, nil
	}

	children, err := s.nodes.Children(ctx, id)
	if err != nil {
		return false, err
	}
	kept := 0
	for _, child := range children {
		ok, err := s.DeletePermanently(ctx, actor, child.ID)
		if err != nil {
			return false, err
		}
		if !ok {
			kept++
		}
	}
	if kept > 0 {
		s.logger.Info("node kept because descendants were not deleted", "id", id, "kept_children", kept)
		return false, nil
	}

	start := time.Now()
	err = s.deleteNode(ctx, actor, node)
	s.metrics.RecordOperation(string(events.Delete), err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("delete node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{node.Path}, id)

	s.logger.Info("node deleted permanently", "id", id, "actor_id", actor.ID)
	s.events.After(ctx, e)
	return true, nil
}

// deleteNode removes files first. They live outside the transaction and a leftover file is
// preferable to a version that points at nothing.
func (s *lifecycleService) deleteNode(ctx context.Context, actor models.Actor, node *models.Node) error {
	versions, err := s.versions.ListVersions(ctx, node.ID)
	if err != nil {
		return err
	}
	if s.assets != nil {
		seen := make(map[string]bool)
		for _, v := range versions {
			for _, p := range v.Properties {
				if !p.IsAsset() || seen[p.Value] {
					continue
				}
				seen[p.Value] = true
				if err := assets.Remove(ctx, s.assets, p.Value); err != nil {
					return err
				}
			}
		}
	}

	return s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		if err := s.versions.DeleteAllForNode(txCtx, node.ID); err != nil {
			return err
		}
		if err := s.snapshots.Delete(txCtx, node.ID); err != nil {
			return err
		}
		if err := s.nodes.Delete(txCtx, node.ID); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditDelete, node.ID, fmt.Sprintf("deleted %q from %d", node.Text, node.ParentID))
	})
}

// EmptyRecycleBin deletes each top-level item of the recycle bin on its own. One failing item
// does not stop the others.
func (s *lifecycleService) EmptyRecycleBin(ctx context.Context, actor models.Actor) (*contentSvc.BatchResult, error) {
	items, err := s.nodes.Children(ctx, models.RecycleBinID)
	if err != nil {
		return nil, err
	}

	result := &contentSvc.BatchResult{}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		ok, err := s.DeletePermanently(ctx, actor, item.ID)
		switch {
		case err != nil:
			s.logger.Error("failed to delete recycle bin item", "id", item.ID, "error", err)
			result.Fail(item.ID, err)
		case !ok:
			s.logger.Info("recycle bin item kept", "id", item.ID)
		default:
			result.Processed++
		}
	}

	s.logger.Info("recycle bin emptied",
		"processed", result.Processed,
		"failed", result.Failed,
		"actor_id", actor.ID,
	)
	return result, nil
}
