package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
)

// NodeRepository is the in-memory NodeRepository
type NodeRepository struct {
	store *Store
}

// NewNodeRepository creates a node repository over the store
func NewNodeRepository(store *Store) contentRepo.NodeRepository {
	return &NodeRepository{store: store}
}

// Create inserts a node below its parent
func (r *NodeRepository) Create(ctx context.Context, node *models.Node, info *models.ContentInfo) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := s.nodes[node.ParentID]
	if !ok {
		return &domain.NodeNotFoundError{NodeID: node.ParentID}
	}
	if node.ID == 0 {
		node.ID = s.nextNodeID
		s.nextNodeID++
	} else if _, exists := s.nodes[node.ID]; exists {
		return &domain.ConflictError{
			Message:      fmt.Sprintf("node %d already exists", node.ID),
			ResourceType: "node",
			ResourceID:   fmt.Sprint(node.ID),
		}
	}
	if node.UniqueID == uuid.Nil {
		node.UniqueID = uuid.New()
	}

	node.Path = parent.Path.Child(node.ID)
	node.Level = len(node.Path)
	node.SortOrder = s.nextSortOrder(node.ParentID)
	node.CreatedAt = truncate(node.CreatedAt)

	s.nodes[node.ID] = cloneNode(*node)
	if info != nil {
		s.contentTypes[node.ID] = info.ContentType
	}
	return nil
}

// GetByID retrieves a node by ID
func (r *NodeRepository) GetByID(ctx context.Context, id int64) (*models.Node, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, &domain.NodeNotFoundError{NodeID: id}
	}
	out := cloneNode(node)
	return &out, nil
}

// GetContentInfo returns the content extension of a node
func (r *NodeRepository) GetContentInfo(ctx context.Context, id int64) (*models.ContentInfo, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, &domain.NodeNotFoundError{NodeID: id}
	}
	if !node.Kind.IsContent() {
		return nil, nil
	}
	return &models.ContentInfo{ContentType: s.contentTypes[id]}, nil
}

// GetMany retrieves the nodes that exist among ids
func (r *NodeRepository) GetMany(ctx context.Context, ids []int64) ([]models.Node, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Node{}
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			out = append(out, cloneNode(node))
		}
	}
	sortByLevel(out)
	return out, nil
}

// Children lists immediate children
func (r *NodeRepository) Children(ctx context.Context, id int64) ([]models.Node, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Node{}
	for _, node := range s.nodes {
		if node.ParentID == id && node.ID != id {
			out = append(out, cloneNode(node))
		}
	}
	sortByLevel(out)
	return out, nil
}

// Descendants matches by path prefix
func (r *NodeRepository) Descendants(ctx context.Context, id int64) ([]models.Node, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	parent, ok := s.nodes[id]
	if !ok {
		return nil, &domain.NodeNotFoundError{NodeID: id}
	}
	return s.below(parent.Path), nil
}

// Move relocates the node and rewrites its subtree under one lock
func (r *NodeRepository) Move(ctx context.Context, id, newParentID int64) error {
	if id == models.RootID || id == models.RecycleBinID {
		return fmt.Errorf("cannot move system node %d: %w", id, domain.ErrValidation)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return &domain.NodeNotFoundError{NodeID: id}
	}
	parent, ok := s.nodes[newParentID]
	if !ok {
		return &domain.NodeNotFoundError{NodeID: newParentID}
	}
	if parent.Path.Contains(id) {
		return fmt.Errorf("cannot move node %d below itself: %w", id, domain.ErrValidation)
	}

	oldPath := node.Path
	newPath := parent.Path.Child(id)

	for _, d := range s.below(oldPath) {
		d.Path = d.Path.Rebase(oldPath, newPath)
		d.Level = len(d.Path)
		s.nodes[d.ID] = d
	}

	node.SortOrder = s.nextSortOrder(newParentID)
	node.ParentID = newParentID
	node.Path = newPath
	node.Level = len(newPath)
	s.nodes[id] = node
	return nil
}

// SetTrashed flags the node and its subtree
func (r *NodeRepository) SetTrashed(ctx context.Context, id int64, trashed bool) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return &domain.NodeNotFoundError{NodeID: id}
	}
	for _, d := range s.below(node.Path) {
		d.Trashed = trashed
		s.nodes[d.ID] = d
	}
	node.Trashed = trashed
	s.nodes[id] = node
	return nil
}

// SetSortOrder updates a node's position among its siblings
func (r *NodeRepository) SetSortOrder(ctx context.Context, id int64, sortOrder int) error {
	return r.update(id, func(n *models.Node) { n.SortOrder = sortOrder })
}

// UpdateText renames a node
func (r *NodeRepository) UpdateText(ctx context.Context, id int64, text string) error {
	return r.update(id, func(n *models.Node) { n.Text = text })
}

// Delete removes a single node. Like the foreign keys in postgres, it refuses while versions or a
// snapshot still reference the node.
func (r *NodeRepository) Delete(ctx context.Context, id int64) error {
	if id == models.RootID || id == models.RecycleBinID {
		return fmt.Errorf("cannot delete system node %d: %w", id, domain.ErrValidation)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[id]; !ok {
		return &domain.NodeNotFoundError{NodeID: id}
	}
	_, hasSnapshot := s.snapshots[id]
	if len(s.versions[id]) > 0 || hasSnapshot {
		return fmt.Errorf("node %d still has versions or snapshots: %w", id, domain.ErrConflict)
	}
	delete(s.nodes, id)
	delete(s.contentTypes, id)
	return nil
}

func (r *NodeRepository) update(id int64, fn func(*models.Node)) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return &domain.NodeNotFoundError{NodeID: id}
	}
	fn(&node)
	s.nodes[id] = node
	return nil
}

// below returns copies of every node strictly under path. Callers hold mu.
func (s *Store) below(path models.NodePath) []models.Node {
	out := []models.Node{}
	for _, node := range s.nodes {
		if len(node.Path) > len(path) && node.Path.HasPrefix(path) {
			out = append(out, cloneNode(node))
		}
	}
	sortByLevel(out)
	return out
}

// nextSortOrder appends after the last sibling. Callers hold mu.
func (s *Store) nextSortOrder(parentID int64) int {
	next := 0
	for _, node := range s.nodes {
		if node.ParentID == parentID && node.ID != parentID && node.SortOrder >= next {
			next = node.SortOrder + 1
		}
	}
	return next
}

func sortByLevel(nodes []models.Node) {
	slices.SortFunc(nodes, func(a, b models.Node) int {
		if a.Level != b.Level {
			return a.Level - b.Level
		}
		if a.SortOrder != b.SortOrder {
			return a.SortOrder - b.SortOrder
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
