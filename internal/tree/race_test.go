package tree

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload_ParentDeletedWhileStoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.folder(t, owner1, nil, "dir")

	f.blobs.hold()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Upload(ctx, owner1, &dir.ID, "late.txt", "", strings.NewReader("late"))
		done <- err
	}()
	<-f.blobs.entered

	res, err := f.svc.Delete(ctx, owner1, dir.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Nodes)

	close(f.blobs.gate)
	require.ErrorIs(t, <-done, ErrNotFound)

	assert.Equal(t, 0, f.store.Len(owner1), "no node may point at the deleted folder")
	assert.Equal(t, 0, f.blobs.stored(), "the fresh blob is discarded")
}

func TestUpload_DiscardSurvivesCancelledCaller(t *testing.T) {
	f := newFixture(t)
	dir := f.folder(t, owner1, nil, "dir")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.blobs.hold()
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Upload(ctx, owner1, &dir.ID, "gone.txt", "", strings.NewReader("gone"))
		done <- err
	}()
	<-f.blobs.entered

	cancel()
	_, err := f.svc.Delete(context.Background(), owner1, dir.ID)
	require.NoError(t, err)

	close(f.blobs.gate)
	require.ErrorIs(t, <-done, ErrNotFound)

	assert.Equal(t, 0, f.blobs.stored())
	assert.Equal(t, 0, f.orphans.len(), "removal succeeded, nothing to record")
}

func TestCreateFolder_ConcurrentSameName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const workers = 50

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.CreateFolder(ctx, owner1, nil, "dup")
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	created := 0
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		require.ErrorIs(t, err, ErrConflict)
	}
	require.Equal(t, 1, created)
	require.Equal(t, 1, f.store.Len(owner1))
}

func TestUpload_ConcurrentSameName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := f.folder(t, owner1, nil, "dir")
	const workers = 20

	var wg sync.WaitGroup
	results := make(chan *UploadResult, workers)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			res, err := f.svc.Upload(ctx, owner1, &dir.ID, "same.txt", "", strings.NewReader(fmt.Sprintf("v%d", i)))
			assert.NoError(t, err)
			results <- res
		}(i)
	}
	close(start)
	wg.Wait()
	close(results)

	fresh := 0
	ids := map[string]struct{}{}
	for res := range results {
		require.NotNil(t, res)
		if !res.Replaced {
			fresh++
		}
		ids[res.Node.ID] = struct{}{}
	}
	require.Equal(t, 1, fresh, "exactly one upload creates the file")
	require.Len(t, ids, 1, "every upload lands on the same node")

	children, err := f.store.ListChildren(ctx, owner1, &dir.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	require.Equal(t, 1, f.blobs.stored(), "every replaced blob is removed")
	f.blobs.content(t, *children[0].ContentRef)
}

func TestDelete_Overlapping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.folder(t, owner1, nil, "root")
	sub := f.folder(t, owner1, &root.ID, "sub")
	f.file(t, owner1, &root.ID, "a.txt", "a")
	f.file(t, owner1, &sub.ID, "b.txt", "b")
	f.file(t, owner1, &sub.ID, "c.txt", "c")
	const workers = 8

	var wg sync.WaitGroup
	var mu sync.Mutex
	removed := 0
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.svc.Delete(ctx, owner1, root.ID)
			if err != nil {
				assert.ErrorIs(t, err, ErrNotFound)
				return
			}
			assert.Empty(t, res.BlobFailures)
			mu.Lock()
			removed += res.Nodes
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 5, removed, "each node is counted by exactly one delete")
	assert.Equal(t, 0, f.store.Len(owner1))
	assert.Equal(t, 0, f.blobs.stored())
}
