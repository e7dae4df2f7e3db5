package tree

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"drive-api/internal/models"
)

// MemoryStore is a Store kept in process memory. The parent and the uniqueness
// of (owner, parent, kind, name) are checked under the same lock as the write.
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string]models.Node
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]models.Node),
		now:   time.Now,
	}
}

func (m *MemoryStore) CreateNode(ctx context.Context, node *models.Node) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nodes[node.ID]; exists {
		return nil, ErrConflict
	}
	if err := m.parentLocked(node.OwnerID, node.ParentID); err != nil {
		return nil, err
	}
	if m.siblingLocked(node.OwnerID, node.ParentID, node.Kind, node.Name) != nil {
		return nil, ErrConflict
	}

	n := *node
	n.ParentID = NormalizeParent(n.ParentID)
	n.CreatedAt = m.now()
	n.UpdatedAt = n.CreatedAt
	m.nodes[n.ID] = n
	return cloneNode(n), nil
}

func (m *MemoryStore) UpsertFile(ctx context.Context, arg UpsertFileParams) (*UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.parentLocked(arg.OwnerID, arg.ParentID); err != nil {
		return nil, err
	}

	ref, mediaType, size := arg.ContentRef, arg.MediaType, arg.SizeBytes
	now := m.now()

	if existing := m.siblingLocked(arg.OwnerID, arg.ParentID, models.KindFile, arg.Name); existing != nil {
		previous := existing.ContentRef
		existing.ContentRef = &ref
		existing.MediaType = &mediaType
		existing.SizeBytes = &size
		existing.UpdatedAt = now
		m.nodes[existing.ID] = *existing
		return &UpsertResult{Node: cloneNode(*existing), Replaced: true, PreviousRef: previous}, nil
	}

	if _, exists := m.nodes[arg.ID]; exists {
		return nil, ErrConflict
	}
	n := models.Node{
		ID:         arg.ID,
		OwnerID:    arg.OwnerID,
		ParentID:   NormalizeParent(arg.ParentID),
		Name:       arg.Name,
		Kind:       models.KindFile,
		ContentRef: &ref,
		MediaType:  &mediaType,
		SizeBytes:  &size,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	m.nodes[n.ID] = n
	return &UpsertResult{Node: cloneNode(n)}, nil
}

func (m *MemoryStore) GetNode(ctx context.Context, ownerID int64, id string) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return nil, nil
	}
	return cloneNode(n), nil
}

func (m *MemoryStore) FindChild(ctx context.Context, ownerID int64, parentID *string, kind models.NodeKind, name string) (*models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := m.siblingLocked(ownerID, parentID, kind, name); n != nil {
		return cloneNode(*n), nil
	}
	return nil, nil
}

func (m *MemoryStore) ListChildren(ctx context.Context, ownerID int64, parentID *string) ([]models.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nodes := []models.Node{}
	for _, n := range m.nodes {
		if n.OwnerID == ownerID && sameParent(n.ParentID, parentID) {
			nodes = append(nodes, *cloneNode(n))
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}

func (m *MemoryStore) DeleteNode(ctx context.Context, ownerID int64, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return false, nil
	}
	for _, other := range m.nodes {
		if other.ParentID != nil && *other.ParentID == id {
			return false, ErrFolderNotEmpty
		}
	}
	delete(m.nodes, id)
	return true, nil
}

func (m *MemoryStore) RenameNode(ctx context.Context, ownerID int64, id string, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return false, nil
	}
	if s := m.siblingLocked(ownerID, n.ParentID, n.Kind, name); s != nil && s.ID != id {
		return false, ErrConflict
	}
	n.Name = name
	n.UpdatedAt = m.now()
	m.nodes[id] = n
	return true, nil
}

func (m *MemoryStore) MoveNode(ctx context.Context, ownerID int64, id string, parentID *string, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok || n.OwnerID != ownerID {
		return false, nil
	}
	parentID = NormalizeParent(parentID)
	if err := m.parentLocked(ownerID, parentID); err != nil {
		return false, err
	}
	if s := m.siblingLocked(ownerID, parentID, n.Kind, name); s != nil && s.ID != id {
		return false, ErrConflict
	}
	n.ParentID = parentID
	n.Name = name
	n.UpdatedAt = m.now()
	m.nodes[id] = n
	return true, nil
}

// Len reports how many nodes the owner has.
func (m *MemoryStore) Len(ownerID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, n := range m.nodes {
		if n.OwnerID == ownerID {
			count++
		}
	}
	return count
}

// parentLocked checks that parentID is the root or a folder of the owner.
func (m *MemoryStore) parentLocked(ownerID int64, parentID *string) error {
	parentID = NormalizeParent(parentID)
	if parentID == nil {
		return nil
	}
	p, ok := m.nodes[*parentID]
	if !ok || p.OwnerID != ownerID {
		return fmt.Errorf("parent folder: %w", ErrNotFound)
	}
	if !p.IsFolder() {
		return ErrNotAFolder
	}
	return nil
}

func (m *MemoryStore) siblingLocked(ownerID int64, parentID *string, kind models.NodeKind, name string) *models.Node {
	for _, n := range m.nodes {
		if n.OwnerID == ownerID && n.Kind == kind && n.Name == name && sameParent(n.ParentID, parentID) {
			found := n
			return &found
		}
	}
	return nil
}

func cloneNode(n models.Node) *models.Node {
	c := n
	if n.ParentID != nil {
		p := *n.ParentID
		c.ParentID = &p
	}
	if n.ContentRef != nil {
		r := *n.ContentRef
		c.ContentRef = &r
	}
	if n.MediaType != nil {
		t := *n.MediaType
		c.MediaType = &t
	}
	if n.SizeBytes != nil {
		s := *n.SizeBytes
		c.SizeBytes = &s
	}
	return &c
}
