// Package cleanup retries the removal of blobs that were left behind when
// their node was deleted or replaced.
package cleanup

import (
	"context"
	"fmt"

	"drive-api/internal/database"
	"drive-api/internal/logging"
	"drive-api/internal/metrics"
)

type OrphanQueue interface {
	ListOrphanBlobs(ctx context.Context, limit int) ([]database.OrphanBlob, error)
	DeleteOrphanBlob(ctx context.Context, id int64) error
	MarkOrphanAttempt(ctx context.Context, id int64, cause error) error
}

type BlobRemover interface {
	Remove(ctx context.Context, ref string) error
}

// Sweeper only ever touches blobs and their orphan records, never node
// metadata.
type Sweeper struct {
	queue     OrphanQueue
	blobs     BlobRemover
	batchSize int
	log       logging.Logger
}

type SweepResult struct {
	Removed int
	Failed  int
}

func NewSweeper(queue OrphanQueue, blobs BlobRemover, batchSize int) *Sweeper {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Sweeper{
		queue:     queue,
		blobs:     blobs,
		batchSize: batchSize,
		log:       logging.Component("orphan-sweeper"),
	}
}

// Sweep makes one pass over at most batchSize orphans.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult

	orphans, err := s.queue.ListOrphanBlobs(ctx, s.batchSize)
	if err != nil {
		return res, fmt.Errorf("list orphan blobs: %w", err)
	}

	for _, o := range orphans {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if err := s.blobs.Remove(ctx, o.ContentRef); err != nil {
			res.Failed++
			metrics.OrphanSweeps.WithLabelValues("failed").Inc()
			s.log.Warn().
				Err(err).
				Int64("orphan_id", o.ID).
				Int("attempts", o.Attempts+1).
				Msg("Orphan blob still cannot be removed")
			if err := s.queue.MarkOrphanAttempt(ctx, o.ID, err); err != nil {
				return res, fmt.Errorf("mark orphan %d: %w", o.ID, err)
			}
			continue
		}

		if err := s.queue.DeleteOrphanBlob(ctx, o.ID); err != nil {
			return res, fmt.Errorf("drop orphan %d: %w", o.ID, err)
		}
		res.Removed++
		metrics.OrphanSweeps.WithLabelValues("removed").Inc()
	}

	if len(orphans) > 0 {
		s.log.Info().Int("removed", res.Removed).Int("failed", res.Failed).Msg("Orphan sweep finished")
	}
	return res, nil
}
