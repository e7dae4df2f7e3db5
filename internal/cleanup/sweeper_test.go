package cleanup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"drive-api/internal/database"

	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu       sync.Mutex
	orphans  []database.OrphanBlob
	attempts map[int64]int
}

func (q *fakeQueue) ListOrphanBlobs(ctx context.Context, limit int) ([]database.OrphanBlob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.orphans) < limit {
		limit = len(q.orphans)
	}
	return append([]database.OrphanBlob(nil), q.orphans[:limit]...), nil
}

func (q *fakeQueue) DeleteOrphanBlob(ctx context.Context, id int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, o := range q.orphans {
		if o.ID == id {
			q.orphans = append(q.orphans[:i], q.orphans[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *fakeQueue) MarkOrphanAttempt(ctx context.Context, id int64, cause error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.attempts[id]++
	return nil
}

type fakeBlobs struct {
	failing map[string]bool
	removed []string
}

func (b *fakeBlobs) Remove(ctx context.Context, ref string) error {
	if b.failing[ref] {
		return errors.New("still locked")
	}
	b.removed = append(b.removed, ref)
	return nil
}

func TestSweep(t *testing.T) {
	queue := &fakeQueue{
		orphans: []database.OrphanBlob{
			{ID: 1, OwnerID: 1, ContentRef: "1/a"},
			{ID: 2, OwnerID: 1, ContentRef: "1/b"},
			{ID: 3, OwnerID: 2, ContentRef: "2/c"},
		},
		attempts: map[int64]int{},
	}
	blobs := &fakeBlobs{failing: map[string]bool{"1/b": true}}

	res, err := NewSweeper(queue, blobs, 10).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Removed: 2, Failed: 1}, res)
	require.ElementsMatch(t, []string{"1/a", "2/c"}, blobs.removed)
	require.Len(t, queue.orphans, 1)
	require.Equal(t, int64(2), queue.orphans[0].ID)
	require.Equal(t, 1, queue.attempts[2])

	delete(blobs.failing, "1/b")
	res, err = NewSweeper(queue, blobs, 10).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, SweepResult{Removed: 1}, res)
	require.Empty(t, queue.orphans)
}

func TestSweep_BatchSize(t *testing.T) {
	queue := &fakeQueue{attempts: map[int64]int{}}
	for i := int64(1); i <= 5; i++ {
		queue.orphans = append(queue.orphans, database.OrphanBlob{ID: i, ContentRef: "x"})
	}

	res, err := NewSweeper(queue, &fakeBlobs{}, 2).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, res.Removed)
	require.Len(t, queue.orphans, 3)
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := NewScheduler(time.Second)
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", "@every 1s", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, s.Add("disabled", "", func(ctx context.Context) error {
		t.Error("disabled job must not run")
		return nil
	}))
	require.Error(t, s.Add("broken", "not a schedule", func(ctx context.Context) error { return nil }))

	s.Start()
	require.Eventually(t, func() bool { return runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
