package tree

import (
	"context"
	"errors"
	"fmt"

	"drive-api/internal/metrics"
	"drive-api/internal/models"
)

type BlobFailure struct {
	NodeID     string `json:"node_id"`
	ContentRef string `json:"-"`
	Error      string `json:"error"`
}

// DeleteResult reports what a delete removed. BlobFailures lists files whose
// metadata is gone but whose content could not be removed.
type DeleteResult struct {
	Nodes        int           `json:"deleted_nodes"`
	Files        int           `json:"deleted_files"`
	BlobFailures []BlobFailure `json:"blob_failures"`
}

func (r *DeleteResult) merge(o *DeleteResult) {
	if o == nil {
		return
	}
	r.Nodes += o.Nodes
	r.Files += o.Files
	r.BlobFailures = append(r.BlobFailures, o.BlobFailures...)
}

// Delete removes the node and, for folders, its whole subtree.
//
// The subtree is collected first, so a cyclic or too deep hierarchy fails with
// ErrCycleDetected before anything is removed. Nodes are then removed
// children first, which keeps every remaining node attached to an existing
// parent if the process stops halfway. Blob removal failures do not stop the
// metadata deletion.
func (s *Service) Delete(ctx context.Context, ownerID int64, id string) (*DeleteResult, error) {
	root, err := s.getNode(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	plan, err := s.collectSubtree(ctx, root)
	if err != nil {
		return nil, err
	}

	// Once removal starts it runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)

	res := &DeleteResult{BlobFailures: []BlobFailure{}}
	for i := range plan {
		if err := s.removeNode(ctx, &plan[i], res); err != nil {
			return res, err
		}
	}

	metrics.DeletedNodes.Add(float64(res.Nodes))
	s.log.Info().
		Int64("owner_id", ownerID).
		Str("node_id", root.ID).
		Int("nodes", res.Nodes).
		Int("files", res.Files).
		Int("blob_failures", len(res.BlobFailures)).
		Msg("Subtree deleted")

	s.notify(ctx, ownerID, "node_deleted", map[string]any{
		"id":            root.ID,
		"parent_id":     root.ParentID,
		"deleted_nodes": res.Nodes,
	})
	return res, nil
}

// DeleteAll removes every node the owner has.
func (s *Service) DeleteAll(ctx context.Context, ownerID int64) (*DeleteResult, error) {
	roots, err := s.store.ListChildren(ctx, ownerID, nil)
	if err != nil {
		return nil, err
	}

	total := &DeleteResult{BlobFailures: []BlobFailure{}}
	for _, n := range roots {
		res, err := s.Delete(ctx, ownerID, n.ID)
		total.merge(res)
		if err != nil && !isGone(err) {
			return total, err
		}
	}
	return total, nil
}

// collectSubtree returns root and all of its descendants in post-order.
func (s *Service) collectSubtree(ctx context.Context, root *models.Node) ([]models.Node, error) {
	visited := map[string]struct{}{root.ID: {}}
	var order []models.Node

	var walk func(n models.Node, depth int) error
	walk = func(n models.Node, depth int) error {
		if n.IsFolder() {
			if depth >= s.maxDepth {
				return fmt.Errorf("%w: subtree of %s is deeper than %d levels", ErrCycleDetected, root.ID, s.maxDepth)
			}
			children, err := s.store.ListChildren(ctx, n.OwnerID, &n.ID)
			if err != nil {
				return fmt.Errorf("list children of %s: %w", n.ID, err)
			}
			for _, child := range children {
				if _, seen := visited[child.ID]; seen {
					return fmt.Errorf("%w: node %s reached twice below %s", ErrCycleDetected, child.ID, root.ID)
				}
				visited[child.ID] = struct{}{}
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
		}
		order = append(order, n)
		return nil
	}

	if err := walk(*root, 0); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) removeNode(ctx context.Context, n *models.Node, res *DeleteResult) error {
	if !n.IsFolder() && n.ContentRef != nil {
		if err := s.blobs.Remove(ctx, *n.ContentRef); err != nil {
			s.blobRemovalFailed(ctx, n.OwnerID, n.ID, *n.ContentRef, err)
			res.BlobFailures = append(res.BlobFailures, BlobFailure{
				NodeID:     n.ID,
				ContentRef: *n.ContentRef,
				Error:      err.Error(),
			})
		}
	}

	deleted, err := s.store.DeleteNode(ctx, n.OwnerID, n.ID)
	if err != nil {
		return fmt.Errorf("delete node %s: %w", n.ID, err)
	}
	// Already removed by a concurrent delete.
	if !deleted {
		return nil
	}

	res.Nodes++
	if !n.IsFolder() {
		res.Files++
	}
	return nil
}

func (s *Service) blobRemovalFailed(ctx context.Context, ownerID int64, nodeID, ref string, cause error) {
	metrics.BlobCleanupFailures.Inc()
	s.log.Warn().
		Err(cause).
		Int64("owner_id", ownerID).
		Str("node_id", nodeID).
		Str("content_ref", ref).
		Msg("Failed to remove blob, leaving it orphaned")

	if s.orphans == nil {
		return
	}
	if err := s.orphans.RecordOrphanBlob(ctx, ownerID, ref, cause); err != nil {
		s.log.Error().Err(err).Str("content_ref", ref).Msg("Failed to record orphaned blob")
	}
}

func isGone(err error) bool {
	return errors.Is(err, ErrNotFound)
}
