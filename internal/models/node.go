package models

import "time"

type NodeKind string

const (
	KindFolder NodeKind = "folder"
	KindFile   NodeKind = "file"
)

func (k NodeKind) Valid() bool {
	return k == KindFolder || k == KindFile
}

// Node is a single entry of an owner's tree. ContentRef, MediaType and
// SizeBytes are only set for files.
type Node struct {
	ID         string    `json:"id" bson:"_id"`
	OwnerID    int64     `json:"owner_id" bson:"owner_id"`
	ParentID   *string   `json:"parent_id" bson:"parent_id"`
	Name       string    `json:"name" bson:"name"`
	Kind       NodeKind  `json:"kind" bson:"kind"`
	ContentRef *string   `json:"-" bson:"content_ref,omitempty"`
	MediaType  *string   `json:"media_type,omitempty" bson:"media_type,omitempty"`
	SizeBytes  *int64    `json:"size_bytes,omitempty" bson:"size_bytes,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

func (n *Node) IsFolder() bool {
	return n.Kind == KindFolder
}
