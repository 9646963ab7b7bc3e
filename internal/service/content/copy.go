package content

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"folio/internal/assets"
	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
)

// Copy creates an unpublished duplicate of the node under the destination, then copies each
// child under the duplicate. Every node in the subtree fires its own copy events, so a handler
// can veto single children.
func (s *lifecycleService) Copy(ctx context.Context, actor models.Actor, id int64, req *contentSvc.CopyRequest) (*models.Record, bool, error) {
	source, err := s.document(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if err := requireWriter(actor, id); err != nil {
		return nil, false, err
	}
	if req.DestinationID == 0 {
		req.DestinationID = models.RootID
	}
	dest, err := s.nodes.GetByID(ctx, req.DestinationID)
	if err != nil {
		return nil, false, err
	}
	if dest.Path.Contains(source.ID) {
		return nil, false, fmt.Errorf("%w: cannot copy node %d below itself", domain.ErrValidation, id)
	}

	e := events.Event{Kind: events.Copy, NodeID: id, Actor: actor, ParentID: dest.ID}
	if s.cancelled(ctx, e) {
		return nil, false, nil
	}

	start := time.Now()
	copied, err := s.copyNode(ctx, actor, source, dest, req.RelateToOriginal)
	s.metrics.RecordOperation(string(events.Copy), err, time.Since(start))
	if err != nil {
		return nil, false, fmt.Errorf("copy node %d: %w", id, err)
	}
	s.invalidate(ctx, []models.NodePath{copied.Path})

	s.logger.Info("document copied",
		"id", id,
		"copy_id", copied.ID,
		"destination_id", dest.ID,
		"related", req.RelateToOriginal,
		"actor_id", actor.ID,
	)
	e.CopyID = copied.ID
	s.events.After(ctx, e)

	children, err := s.nodes.Children(ctx, id)
	if err != nil {
		return nil, true, err
	}
	for _, child := range children {
		if child.Kind != models.KindDocument {
			continue
		}
		childReq := &contentSvc.CopyRequest{DestinationID: copied.ID, RelateToOriginal: req.RelateToOriginal}
		if _, _, err := s.Copy(ctx, actor, child.ID, childReq); err != nil {
			return nil, true, err
		}
	}

	record, err := s.Get(ctx, copied.ID)
	if err != nil {
		return nil, true, err
	}
	return record, true, nil
}

// copyNode writes the duplicate node and its first version. Upload values point at duplicated
// files in the copy's own folders. Files duplicated by an attempt that does not commit are
// removed again.
func (s *lifecycleService) copyNode(ctx context.Context, actor models.Actor, source, dest *models.Node, relate bool) (*models.Node, error) {
	info, err := s.nodes.GetContentInfo(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	newest, err := s.versions.Newest(ctx, source.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	copied := &models.Node{
		ParentID:  dest.ID,
		Kind:      source.Kind,
		Text:      source.Text,
		Trashed:   dest.IsRecycleBin() || dest.InRecycleBin(),
		CreatorID: actor.ID,
		CreatedAt: now,
	}
	var duplicated []string
	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		s.discardAssets(ctx, duplicated)
		duplicated = nil

		if err := s.nodes.Create(txCtx, copied, info); err != nil {
			return err
		}
		if copied.Trashed {
			if err := s.nodes.SetTrashed(txCtx, copied.ID, true); err != nil {
				return err
			}
		}

		props, err := s.duplicateAssets(txCtx, copied.ID, newest.Properties, &duplicated)
		if err != nil {
			return err
		}
		version := &models.Version{
			NodeID:     copied.ID,
			Text:       newest.Text,
			TemplateID: newest.TemplateID,
			Properties: props,
			WriterID:   actor.ID,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.versions.Insert(txCtx, version); err != nil {
			return err
		}

		detail := fmt.Sprintf("copied from %d", source.ID)
		if relate {
			detail = fmt.Sprintf("copied from %d and related to original", source.ID)
		}
		if err := s.appendAudit(txCtx, actor, models.AuditCopy, copied.ID, detail); err != nil {
			return err
		}
		return s.appendAudit(txCtx, actor, models.AuditCopy, source.ID, fmt.Sprintf("copied to %d", copied.ID))
	})
	if err != nil {
		s.discardAssets(ctx, duplicated)
		return nil, err
	}
	return copied, nil
}

// duplicateAssets copies every upload file, with its thumbnails, into the new node's folder.
// A value whose file no longer exists is carried over unchanged. Every target path, including
// one whose copy failed halfway, is appended to written.
func (s *lifecycleService) duplicateAssets(ctx context.Context, nodeID int64, props []models.Property, written *[]string) ([]models.Property, error) {
	out := models.CopyProperties(props)
	if s.assets == nil {
		return out, nil
	}
	for i, p := range out {
		if !p.IsAsset() {
			continue
		}
		folder := assets.FolderFor(nodeID, p.Alias)
		dst, err := assets.Duplicate(ctx, s.assets, p.Value, folder)
		if errors.Is(err, assets.ErrNotFound) {
			s.logger.Warn("upload missing, keeping original value",
				"node_id", nodeID,
				"alias", p.Alias,
				"path", p.Value,
			)
			continue
		}
		if err != nil {
			*written = append(*written, path.Join(folder, path.Base(assets.Normalize(p.Value))))
			return nil, err
		}
		*written = append(*written, dst)
		out[i].Value = "/" + dst
	}
	return out, nil
}

// discardAssets removes files duplicated for a copy that was rolled back. Failures are logged
// and leave the orphaned file behind.
func (s *lifecycleService) discardAssets(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := assets.Remove(ctx, s.assets, p); err != nil {
			s.logger.Warn("failed to remove duplicated upload",
				"path", p,
				"error", err,
			)
		}
	}
}
