package tree

import "errors"

var (
	// ErrNotFound covers both missing nodes and nodes owned by someone else.
	ErrNotFound       = errors.New("node not found")
	ErrConflict       = errors.New("a node with the same name already exists in this folder")
	ErrCycleDetected  = errors.New("folder hierarchy contains a cycle")
	ErrInvalidName    = errors.New("invalid node name")
	ErrNotAFolder     = errors.New("node is not a folder")
	ErrNotAFile       = errors.New("node is not a file")
	ErrStorageFailure = errors.New("blob storage failure")
	// ErrFolderNotEmpty is returned by a Store asked to delete a folder that
	// still has children.
	ErrFolderNotEmpty = errors.New("folder still has children")
)
