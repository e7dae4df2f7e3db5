package tree

import (
	"context"
	"io"

	"drive-api/internal/models"
)

// Store persists tree nodes. Every method is scoped by owner; a nil parent
// means the owner's root. Lookups return (nil, nil) when nothing matches.
type Store interface {
	CreateNode(ctx context.Context, node *models.Node) (*models.Node, error)
	UpsertFile(ctx context.Context, arg UpsertFileParams) (*UpsertResult, error)
	GetNode(ctx context.Context, ownerID int64, id string) (*models.Node, error)
	FindChild(ctx context.Context, ownerID int64, parentID *string, kind models.NodeKind, name string) (*models.Node, error)
	ListChildren(ctx context.Context, ownerID int64, parentID *string) ([]models.Node, error)
	DeleteNode(ctx context.Context, ownerID int64, id string) (bool, error)
	RenameNode(ctx context.Context, ownerID int64, id string, name string) (bool, error)
	// MoveNode sets the parent and the name of a node in one write.
	MoveNode(ctx context.Context, ownerID int64, id string, parentID *string, name string) (bool, error)
}

// UpsertFileParams describes a file keyed by (owner, parent, name). ID is only
// used when no such file exists yet.
type UpsertFileParams struct {
	ID         string
	OwnerID    int64
	ParentID   *string
	Name       string
	ContentRef string
	MediaType  string
	SizeBytes  int64
}

type UpsertResult struct {
	Node        *models.Node
	Replaced    bool
	PreviousRef *string
}

// BlobStore holds file contents. Remove of an absent ref is not an error.
type BlobStore interface {
	Put(ctx context.Context, ownerID int64, suggestedName string, r io.Reader) (ref string, size int64, err error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Remove(ctx context.Context, ref string) error
	URL(ref string) string
}

type Notifier interface {
	Notify(ctx context.Context, ownerID int64, eventType string, payload any)
}

// OrphanRecorder keeps track of blobs whose removal failed so they can be
// retried later.
type OrphanRecorder interface {
	RecordOrphanBlob(ctx context.Context, ownerID int64, ref string, cause error) error
}

// NormalizeParent maps both nil and "" to the root scope.
func NormalizeParent(parentID *string) *string {
	if parentID == nil || *parentID == "" {
		return nil
	}
	p := *parentID
	return &p
}

func sameParent(a, b *string) bool {
	a, b = NormalizeParent(a), NormalizeParent(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
