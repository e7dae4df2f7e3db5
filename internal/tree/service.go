package tree

import (
	"context"
	"fmt"
	"io"

	"drive-api/internal/logging"
	"drive-api/internal/models"

	"github.com/jaevor/go-nanoid"
)

const (
	DefaultMaxDepth  = 256
	defaultMediaType = "application/octet-stream"
)

// Service implements folder creation, uploads, listing and deletion on top
// of a Store and a BlobStore.
type Service struct {
	store    Store
	blobs    BlobStore
	notifier Notifier
	orphans  OrphanRecorder
	maxDepth int
	newID    func() string
	log      logging.Logger
}

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithOrphanRecorder(r OrphanRecorder) Option {
	return func(s *Service) { s.orphans = r }
}

func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(store Store, blobs BlobStore, opts ...Option) (*Service, error) {
	generateID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	s := &Service{
		store:    store,
		blobs:    blobs,
		maxDepth: DefaultMaxDepth,
		newID:    generateID,
		log:      logging.Component("tree"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateFolder creates an empty folder. A sibling folder with the same name
// yields ErrConflict and nothing is written.
func (s *Service) CreateFolder(ctx context.Context, ownerID int64, parentID *string, name string) (*Projection, error) {
	parentID = NormalizeParent(parentID)
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.requireFolder(ctx, ownerID, parentID); err != nil {
		return nil, err
	}
	if err := s.checkSibling(ctx, ownerID, parentID, models.KindFolder, name, ""); err != nil {
		return nil, err
	}

	node, err := s.store.CreateNode(ctx, &models.Node{
		ID:       s.newID(),
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     name,
		Kind:     models.KindFolder,
	})
	if err != nil {
		return nil, err
	}

	p := s.project(node)
	s.notify(ctx, ownerID, "node_created", p)
	return &p, nil
}

type UploadResult struct {
	Node     Projection
	Replaced bool
}

// Upload stores r as the file called name under parentID. An existing file
// with that name is replaced in place and keeps its id.
func (s *Service) Upload(ctx context.Context, ownerID int64, parentID *string, name, mediaType string, r io.Reader) (*UploadResult, error) {
	parentID = NormalizeParent(parentID)
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}
	if err := s.requireFolder(ctx, ownerID, parentID); err != nil {
		return nil, err
	}
	if mediaType == "" {
		mediaType = defaultMediaType
	}

	ref, size, err := s.blobs.Put(ctx, ownerID, name, r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}

	res, err := s.store.UpsertFile(ctx, UpsertFileParams{
		ID:         s.newID(),
		OwnerID:    ownerID,
		ParentID:   parentID,
		Name:       name,
		ContentRef: ref,
		MediaType:  mediaType,
		SizeBytes:  size,
	})
	if err != nil {
		s.discardBlob(ctx, ownerID, "", ref)
		return nil, err
	}

	if res.Replaced && res.PreviousRef != nil && *res.PreviousRef != ref {
		s.discardBlob(ctx, ownerID, res.Node.ID, *res.PreviousRef)
	}

	p := s.project(res.Node)
	if res.Replaced {
		s.notify(ctx, ownerID, "node_replaced", p)
	} else {
		s.notify(ctx, ownerID, "node_created", p)
	}
	return &UploadResult{Node: p, Replaced: res.Replaced}, nil
}

// List returns the direct children of parentID in no particular order.
func (s *Service) List(ctx context.Context, ownerID int64, parentID *string) ([]Projection, error) {
	parentID = NormalizeParent(parentID)
	if err := s.requireFolder(ctx, ownerID, parentID); err != nil {
		return nil, err
	}

	nodes, err := s.store.ListChildren(ctx, ownerID, parentID)
	if err != nil {
		return nil, err
	}

	projections := make([]Projection, 0, len(nodes))
	for i := range nodes {
		projections = append(projections, s.project(&nodes[i]))
	}
	return projections, nil
}

func (s *Service) Get(ctx context.Context, ownerID int64, id string) (*Projection, error) {
	node, err := s.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	p := s.project(node)
	return &p, nil
}

// Open returns the file node and a reader for its content. The caller closes
// the reader.
func (s *Service) Open(ctx context.Context, ownerID int64, id string) (*models.Node, io.ReadCloser, error) {
	node, err := s.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	if node.IsFolder() || node.ContentRef == nil {
		return nil, nil, ErrNotAFile
	}

	rc, err := s.blobs.Open(ctx, *node.ContentRef)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrStorageFailure, err)
	}
	return node, rc, nil
}

// NodeChange is a rename, a move, or both. A nil Name keeps the current name.
// When Move is set the node goes to ParentID, nil being the root.
type NodeChange struct {
	Name     *string
	Move     bool
	ParentID *string
}

func (s *Service) Rename(ctx context.Context, ownerID int64, id string, name string) (*Projection, error) {
	return s.Update(ctx, ownerID, id, NodeChange{Name: &name})
}

// Move reparents a node. Moving a folder into itself or into one of its
// descendants fails with ErrCycleDetected.
func (s *Service) Move(ctx context.Context, ownerID int64, id string, parentID *string) (*Projection, error) {
	return s.Update(ctx, ownerID, id, NodeChange{Move: true, ParentID: parentID})
}

// Update applies a NodeChange in a single store write. The name and the
// destination are validated together, so a change is applied whole or not at
// all.
func (s *Service) Update(ctx context.Context, ownerID int64, id string, change NodeChange) (*Projection, error) {
	node, err := s.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	name := node.Name
	if change.Name != nil {
		if name, err = cleanName(*change.Name); err != nil {
			return nil, err
		}
	}

	parentID := node.ParentID
	moving := change.Move && !sameParent(node.ParentID, NormalizeParent(change.ParentID))
	if moving {
		parentID = NormalizeParent(change.ParentID)
		if err := s.requireFolder(ctx, ownerID, parentID); err != nil {
			return nil, err
		}
		if err := s.checkAncestry(ctx, ownerID, node.ID, parentID); err != nil {
			return nil, err
		}
	}

	if !moving && name == node.Name {
		p := s.project(node)
		return &p, nil
	}
	if err := s.checkSibling(ctx, ownerID, parentID, node.Kind, name, node.ID); err != nil {
		return nil, err
	}

	var ok bool
	if moving {
		ok, err = s.store.MoveNode(ctx, ownerID, id, parentID, name)
	} else {
		ok, err = s.store.RenameNode(ctx, ownerID, id, name)
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return s.updated(ctx, ownerID, id)
}

func (s *Service) updated(ctx context.Context, ownerID int64, id string) (*Projection, error) {
	node, err := s.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	p := s.project(node)
	s.notify(ctx, ownerID, "node_updated", p)
	return &p, nil
}

func (s *Service) getNode(ctx context.Context, ownerID int64, id string) (*models.Node, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	node, err := s.store.GetNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNotFound
	}
	return node, nil
}

// discardBlob removes content no node points at anymore. Cancellation of ctx
// is ignored.
func (s *Service) discardBlob(ctx context.Context, ownerID int64, nodeID, ref string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.blobs.Remove(ctx, ref); err != nil {
		s.blobRemovalFailed(ctx, ownerID, nodeID, ref, err)
	}
}

func (s *Service) notify(ctx context.Context, ownerID int64, eventType string, payload any) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, ownerID, eventType, payload)
	}
}
