package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"folio/internal/domain"
	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
)

// VersionRepository is the in-memory VersionRepository
type VersionRepository struct {
	store *Store
}

// NewVersionRepository creates a version repository over the store
func NewVersionRepository(store *Store) contentRepo.VersionRepository {
	return &VersionRepository{store: store}
}

// Insert stores the first version of a node
func (r *VersionRepository) Insert(ctx context.Context, version *models.Version) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[version.NodeID]; !ok {
		return &domain.NodeNotFoundError{NodeID: version.NodeID}
	}
	if len(s.versions[version.NodeID]) > 0 {
		return &domain.InvalidStateError{NodeID: version.NodeID, Reason: "node already has versions"}
	}
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	version.Newest = true
	version.Published = false
	version.Properties = models.CopyProperties(version.Properties)
	version.CreatedAt = truncate(version.CreatedAt)
	version.UpdatedAt = truncate(version.UpdatedAt)

	s.versions[version.NodeID] = []models.Version{cloneVersion(*version)}
	return nil
}

// CreateVersion demotes the newest version and appends a copy of it
func (r *VersionRepository) CreateVersion(ctx context.Context, nodeID int64, writerID string, at time.Time) (*models.Version, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	created, err := s.createVersion(nodeID, writerID, at)
	if err != nil {
		return nil, err
	}
	out := cloneVersion(*created)
	return &out, nil
}

// RestoreFrom creates a new version carrying the source version's content
func (r *VersionRepository) RestoreFrom(ctx context.Context, nodeID int64, sourceID uuid.UUID, writerID string, at time.Time) (*models.Version, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(nodeID, sourceID)
	if i < 0 {
		return nil, fmt.Errorf("version %s of node %d: %w", sourceID, nodeID, domain.ErrVersionNotFound)
	}
	source := cloneVersion(s.versions[nodeID][i])

	created, err := s.createVersion(nodeID, writerID, at)
	if err != nil {
		return nil, err
	}
	created.Text = source.Text
	created.TemplateID = source.TemplateID
	created.Properties = source.Properties

	out := cloneVersion(*created)
	return &out, nil
}

// MarkPublished moves the published flag to versionID
func (r *VersionRepository) MarkPublished(ctx context.Context, nodeID int64, versionID uuid.UUID) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.indexOf(nodeID, versionID)
	if target < 0 {
		return fmt.Errorf("version %s of node %d: %w", versionID, nodeID, domain.ErrVersionNotFound)
	}
	list := s.versions[nodeID]
	for i := range list {
		list[i].Published = i == target
	}
	return nil
}

// MarkUnpublished clears the published flag
func (r *VersionRepository) MarkUnpublished(ctx context.Context, nodeID int64) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.versions[nodeID]
	for i := range list {
		list[i].Published = false
	}
	return nil
}

// Update writes the editable fields of a version
func (r *VersionRepository) Update(ctx context.Context, version *models.Version) error {
	return r.update(version, false)
}

// UpdateNewest writes the editable fields only while version is still the newest
func (r *VersionRepository) UpdateNewest(ctx context.Context, version *models.Version) error {
	return r.update(version, true)
}

func (r *VersionRepository) update(version *models.Version, onlyNewest bool) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(version.NodeID, version.ID)
	if i < 0 {
		return fmt.Errorf("version %s of node %d: %w", version.ID, version.NodeID, domain.ErrVersionNotFound)
	}
	stored := &s.versions[version.NodeID][i]
	if onlyNewest && !stored.Newest {
		return staleVersionError(version)
	}
	update := cloneVersion(*version)
	stored.Text = update.Text
	stored.TemplateID = update.TemplateID
	stored.Properties = update.Properties
	stored.WriterID = update.WriterID
	stored.ReleaseDate = truncate(update.ReleaseDate)
	stored.ExpireDate = truncate(update.ExpireDate)
	stored.UpdatedAt = truncate(update.UpdatedAt)
	return nil
}

// Get retrieves a version that belongs to the node
func (r *VersionRepository) Get(ctx context.Context, nodeID int64, versionID uuid.UUID) (*models.Version, error) {
	return r.find(nodeID, func(v models.Version) bool { return v.ID == versionID },
		fmt.Errorf("version %s of node %d: %w", versionID, nodeID, domain.ErrVersionNotFound))
}

// Newest retrieves the version open for editing
func (r *VersionRepository) Newest(ctx context.Context, nodeID int64) (*models.Version, error) {
	return r.find(nodeID, func(v models.Version) bool { return v.Newest },
		fmt.Errorf("newest version of node %d: %w", nodeID, domain.ErrVersionNotFound))
}

// PublishedVersion returns nil without error when nothing is published
func (r *VersionRepository) PublishedVersion(ctx context.Context, nodeID int64) (*models.Version, error) {
	return r.find(nodeID, func(v models.Version) bool { return v.Published }, nil)
}

// ListVersions returns the history oldest first
func (r *VersionRepository) ListVersions(ctx context.Context, nodeID int64) ([]models.Version, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneVersions(s.versions[nodeID]), nil
}

// PublishedNodeIDs returns which of ids have a published version
func (r *VersionRepository) PublishedNodeIDs(ctx context.Context, ids []int64) (map[int64]bool, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if s.hasPublished(id) {
			out[id] = true
		}
	}
	return out, nil
}

// AllPublishedNodeIDs lists published nodes, parents before children
func (r *VersionRepository) AllPublishedNodeIDs(ctx context.Context) ([]int64, error) {
	return r.nodeIDs(func(n models.Node, list []models.Version) bool {
		return versionList(list).published() != nil
	}), nil
}

// DueForRelease lists untrashed nodes whose newest version is due for release
func (r *VersionRepository) DueForRelease(ctx context.Context, now time.Time) ([]int64, error) {
	return r.nodeIDs(func(n models.Node, list []models.Version) bool {
		newest := versionList(list).newest()
		return !n.Trashed && newest != nil && !newest.ReleaseDate.IsZero() && !newest.ReleaseDate.After(now)
	}), nil
}

// DueForExpiration lists published nodes whose expire date has passed
func (r *VersionRepository) DueForExpiration(ctx context.Context, now time.Time) ([]int64, error) {
	ids := r.nodeIDs(func(n models.Node, list []models.Version) bool {
		published := versionList(list).published()
		return published != nil && !published.ExpireDate.IsZero() && !published.ExpireDate.After(now)
	})
	slices.Sort(ids)
	return ids, nil
}

// DeleteAllForNode removes every version of a node
func (r *VersionRepository) DeleteAllForNode(ctx context.Context, nodeID int64) error {
	st := r.store
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.versions, nodeID)
	return nil
}

func (r *VersionRepository) find(nodeID int64, match func(models.Version) bool, notFound error) (*models.Version, error) {
	st := r.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, v := range st.versions[nodeID] {
		if match(v) {
			out := cloneVersion(v)
			return &out, nil
		}
	}
	return nil, notFound
}

func (r *VersionRepository) nodeIDs(match func(models.Node, []models.Version) bool) []int64 {
	st := r.store
	st.mu.RLock()
	defer st.mu.RUnlock()

	nodes := []models.Node{}
	for id, list := range st.versions {
		node, ok := st.nodes[id]
		if ok && match(node, list) {
			nodes = append(nodes, node)
		}
	}
	sortByLevel(nodes)

	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}

// createVersion appends a copy of the newest version. Callers hold mu.
func (s *Store) createVersion(nodeID int64, writerID string, at time.Time) (*models.Version, error) {
	list := s.versions[nodeID]
	prev := -1
	for i := range list {
		if list[i].Newest {
			prev = i
		}
	}
	if prev < 0 {
		return nil, fmt.Errorf("node %d has no versions: %w", nodeID, domain.ErrVersionNotFound)
	}

	created := cloneVersion(list[prev])
	created.ID = uuid.New()
	created.WriterID = writerID
	created.Newest = true
	created.Published = false
	created.CreatedAt = truncate(at)
	created.UpdatedAt = truncate(at)

	list[prev].Newest = false
	s.versions[nodeID] = append(list, created)
	return &s.versions[nodeID][len(s.versions[nodeID])-1], nil
}

// indexOf locates a version of the node. Callers hold mu.
func (s *Store) indexOf(nodeID int64, versionID uuid.UUID) int {
	for i, v := range s.versions[nodeID] {
		if v.ID == versionID {
			return i
		}
	}
	return -1
}

// hasPublished reports a published version. Callers hold mu.
func (s *Store) hasPublished(nodeID int64) bool {
	return versionList(s.versions[nodeID]).published() != nil
}

type versionList []models.Version

func (l versionList) published() *models.Version {
	for i := range l {
		if l[i].Published {
			return &l[i]
		}
	}
	return nil
}

func (l versionList) newest() *models.Version {
	for i := range l {
		if l[i].Newest {
			return &l[i]
		}
	}
	return nil
}

func staleVersionError(v *models.Version) error {
	return &domain.ConflictError{
		Message:      fmt.Sprintf("version %s of node %d is no longer the newest", v.ID, v.NodeID),
		ResourceType: "version",
		ResourceID:   v.ID.String(),
	}
}
