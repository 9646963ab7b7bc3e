package content

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
)

// ResolveDescendants computes Published and PathPublished for every state in descendants, in
// place. root must already be resolved. Each state needs NodeID, ParentID, Path and
// HasPublishedVersion filled in.
//
// States are visited by increasing path length so a parent is always resolved before its
// children. A state whose parent is neither root nor in descendants is marked unresolved and not
// published, and its id is returned.
func ResolveDescendants(root *models.PublicationState, descendants []models.PublicationState) []int64 {
	order := make([]int, len(descendants))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return len(descendants[a].Path) - len(descendants[b].Path)
	})

	resolved := make(map[int64]*models.PublicationState, len(descendants)+1)
	resolved[root.NodeID] = root

	var unresolved []int64
	for _, i := range order {
		d := &descendants[i]
		parent, ok := resolved[d.ParentID]
		if !ok || len(parent.Path) >= len(d.Path) {
			d.Resolved = false
			d.PathPublished = false
			d.Published = false
			unresolved = append(unresolved, d.NodeID)
		} else {
			d.Resolved = true
			d.PathPublished = parent.Published
			d.Published = parent.Published && d.HasPublishedVersion
		}
		resolved[d.NodeID] = d
	}
	return unresolved
}

// StateCache holds computed publication states until a mutation invalidates them. Every
// invalidation bumps a generation; a put computed under an older generation is dropped so a read
// racing a mutation cannot write pre-mutation states back.
type StateCache struct {
	mu     sync.RWMutex
	gen    uint64
	states map[int64]models.PublicationState
}

// NewStateCache creates an empty cache
func NewStateCache() *StateCache {
	return &StateCache{states: make(map[int64]models.PublicationState)}
}

func (c *StateCache) get(id int64) (models.PublicationState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.states[id]
	return st, ok
}

// generation is read before loading the rows a later put is computed from
func (c *StateCache) generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gen
}

// put stores resolved states unless an invalidation happened since gen was read
func (c *StateCache) put(gen uint64, states ...models.PublicationState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	for _, st := range states {
		if st.Resolved {
			c.states[st.NodeID] = st
		}
	}
	return true
}

// InvalidateSubtree drops the state at path and every state below it
func (c *StateCache) InvalidateSubtree(path models.NodePath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	for id, st := range c.states {
		if st.Path.HasPrefix(path) {
			delete(c.states, id)
		}
	}
}

// InvalidateAll empties the cache
func (c *StateCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	clear(c.states)
}

// Len returns the number of cached states
func (c *StateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.states)
}

type publicationService struct {
	nodes    contentRepo.NodeRepository
	versions contentRepo.VersionRepository
	cache    *StateCache
	logger   *slog.Logger
}

// NewPublicationService creates a publication service
func NewPublicationService(
	nodes contentRepo.NodeRepository,
	versions contentRepo.VersionRepository,
	cache *StateCache,
	logger *slog.Logger,
) contentSvc.PublicationService {
	if cache == nil {
		cache = NewStateCache()
	}
	return &publicationService{
		nodes:    nodes,
		versions: versions,
		cache:    cache,
		logger:   logger,
	}
}

// State loads the ancestor chain named by the node's path in one fetch and resolves it top-down
func (s *publicationService) State(ctx context.Context, id int64) (*models.PublicationState, error) {
	if id == models.RootID {
		return models.RootPublicationState(), nil
	}
	if st, ok := s.cache.get(id); ok {
		return &st, nil
	}
	gen := s.cache.generation()

	node, err := s.nodes.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	chain, err := s.nodes.GetMany(ctx, node.Path)
	if err != nil {
		return nil, fmt.Errorf("load ancestors of node %d: %w", id, err)
	}
	published, err := s.versions.PublishedNodeIDs(ctx, node.Path)
	if err != nil {
		return nil, fmt.Errorf("load published flags of node %d: %w", id, err)
	}

	states := make([]models.PublicationState, 0, len(chain))
	for _, n := range chain {
		if n.ID == models.RootID {
			continue
		}
		states = append(states, localState(n, published))
	}
	if unresolved := ResolveDescendants(models.RootPublicationState(), states); len(unresolved) > 0 {
		s.logger.Warn("incomplete ancestor chain",
			"node_id", id,
			"path", node.Path.String(),
			"unresolved", unresolved,
		)
	}
	s.cache.put(gen, states...)

	for _, st := range states {
		if st.NodeID == id {
			return &st, nil
		}
	}
	// the node itself was not returned by GetMany
	st := localState(*node, published)
	return &st, nil
}

// Subtree returns the node's state followed by its descendants ordered by level
func (s *publicationService) Subtree(ctx context.Context, id int64) ([]models.PublicationState, error) {
	gen := s.cache.generation()
	root, err := s.State(ctx, id)
	if err != nil {
		return nil, err
	}

	descendants, err := s.nodes.Descendants(ctx, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(descendants))
	for i, d := range descendants {
		ids[i] = d.ID
	}
	published, err := s.versions.PublishedNodeIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load published flags below node %d: %w", id, err)
	}

	states := make([]models.PublicationState, len(descendants))
	for i, d := range descendants {
		states[i] = localState(d, published)
	}
	if unresolved := ResolveDescendants(root, states); len(unresolved) > 0 {
		s.logger.Warn("descendants with unresolved parents",
			"node_id", id,
			"unresolved", unresolved,
		)
	}
	s.cache.put(gen, states...)

	return append([]models.PublicationState{*root}, states...), nil
}

// PublishedDescendants filters Subtree to the effectively published descendants
func (s *publicationService) PublishedDescendants(ctx context.Context, id int64) ([]int64, error) {
	states, err := s.Subtree(ctx, id)
	if err != nil {
		return nil, err
	}
	out := []int64{}
	for _, st := range states[1:] {
		if st.Published {
			out = append(out, st.NodeID)
		}
	}
	return out, nil
}

func (s *publicationService) InvalidateSubtree(path models.NodePath) {
	s.cache.InvalidateSubtree(path)
}

func (s *publicationService) InvalidateAll() {
	s.cache.InvalidateAll()
}

// localState fills the facts known without looking at ancestors
func localState(n models.Node, published map[int64]bool) models.PublicationState {
	return models.PublicationState{
		NodeID:              n.ID,
		ParentID:            n.ParentID,
		Path:                n.Path,
		HasPublishedVersion: published[n.ID] && !n.Trashed,
	}
}
