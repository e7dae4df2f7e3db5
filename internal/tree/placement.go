package tree

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"drive-api/internal/models"
)

const maxNameLength = 255

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	case name == "." || name == "..":
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidName, name)
	case utf8.RuneCountInString(name) > maxNameLength:
		return "", fmt.Errorf("%w: name longer than %d characters", ErrInvalidName, maxNameLength)
	case strings.ContainsAny(name, "/\\\x00"):
		return "", fmt.Errorf("%w: name cannot contain path separators", ErrInvalidName)
	}
	return name, nil
}

// requireFolder checks that parentID is the root or an existing folder of
// the owner.
func (s *Service) requireFolder(ctx context.Context, ownerID int64, parentID *string) error {
	if parentID == nil {
		return nil
	}
	parent, err := s.store.GetNode(ctx, ownerID, *parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("parent folder %s: %w", *parentID, ErrNotFound)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("parent %s: %w", *parentID, ErrNotAFolder)
	}
	return nil
}

// checkSibling reports ErrConflict when another node of the same kind already
// uses name under parentID. selfID is ignored so renames to the current name pass.
func (s *Service) checkSibling(ctx context.Context, ownerID int64, parentID *string, kind models.NodeKind, name, selfID string) error {
	existing, err := s.store.FindChild(ctx, ownerID, parentID, kind, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrConflict
	}
	return nil
}

// checkAncestry walks up from parentID and fails if nodeID is on the way.
func (s *Service) checkAncestry(ctx context.Context, ownerID int64, nodeID string, parentID *string) error {
	seen := make(map[string]struct{})
	for cur := parentID; cur != nil; {
		if *cur == nodeID {
			return fmt.Errorf("%w: cannot move %s into its own subtree", ErrCycleDetected, nodeID)
		}
		if _, ok := seen[*cur]; ok || len(seen) >= s.maxDepth {
			return fmt.Errorf("%w: ancestry of %s does not reach the root", ErrCycleDetected, *parentID)
		}
		seen[*cur] = struct{}{}

		n, err := s.store.GetNode(ctx, ownerID, *cur)
		if err != nil {
			return err
		}
		if n == nil {
			return nil
		}
		cur = NormalizeParent(n.ParentID)
	}
	return nil
}
