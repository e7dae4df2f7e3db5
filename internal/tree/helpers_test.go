package tree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memBlobs is an in-memory BlobStore that counts removals and can be told
// to fail. When gate is set, Put signals entered and waits for gate to close
// before storing anything.
type memBlobs struct {
	mu        sync.Mutex
	seq       int
	data      map[string][]byte
	removed   []string
	failPut   bool
	failRemov map[string]bool

	gate    chan struct{}
	entered chan struct{}
}

func (b *memBlobs) hold() {
	b.gate = make(chan struct{})
	b.entered = make(chan struct{}, 16)
}

func (b *memBlobs) stored() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

func newMemBlobs() *memBlobs {
	return &memBlobs{data: make(map[string][]byte), failRemov: make(map[string]bool)}
}

func (b *memBlobs) Put(ctx context.Context, ownerID int64, suggestedName string, r io.Reader) (string, int64, error) {
	if b.gate != nil {
		b.entered <- struct{}{}
		<-b.gate
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failPut {
		return "", 0, errors.New("disk full")
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return "", 0, err
	}
	b.seq++
	ref := fmt.Sprintf("%d/blob-%d", ownerID, b.seq)
	b.data[ref] = content
	return ref, int64(len(content)), nil
}

func (b *memBlobs) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.data[ref]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (b *memBlobs) Remove(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removed = append(b.removed, ref)
	if b.failRemov[ref] {
		return errors.New("permission denied")
	}
	delete(b.data, ref)
	return nil
}

func (b *memBlobs) URL(ref string) string {
	return "https://files.example.com/uploads/" + ref
}

func (b *memBlobs) content(t *testing.T, ref string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	content, ok := b.data[ref]
	require.True(t, ok, "blob %s should exist", ref)
	return string(content)
}

type recordedOrphan struct {
	ownerID int64
	ref     string
}

type orphanLog struct {
	mu      sync.Mutex
	entries []recordedOrphan
}

func (o *orphanLog) RecordOrphanBlob(ctx context.Context, ownerID int64, ref string, cause error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.entries = append(o.entries, recordedOrphan{ownerID: ownerID, ref: ref})
	return nil
}

func (o *orphanLog) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.entries)
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) Notify(ctx context.Context, ownerID int64, eventType string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, eventType)
}

type fixture struct {
	store   *MemoryStore
	blobs   *memBlobs
	orphans *orphanLog
	events  *eventLog
	svc     *Service
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		store:   NewMemoryStore(),
		blobs:   newMemBlobs(),
		orphans: &orphanLog{},
		events:  &eventLog{},
	}
	opts = append([]Option{WithOrphanRecorder(f.orphans), WithNotifier(f.events)}, opts...)
	svc, err := NewService(f.store, f.blobs, opts...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) folder(t *testing.T, owner int64, parent *string, name string) *Projection {
	t.Helper()
	p, err := f.svc.CreateFolder(context.Background(), owner, parent, name)
	require.NoError(t, err)
	return p
}

func (f *fixture) file(t *testing.T, owner int64, parent *string, name, content string) *UploadResult {
	t.Helper()
	res, err := f.svc.Upload(context.Background(), owner, parent, name, "text/plain", strings.NewReader(content))
	require.NoError(t, err)
	return res
}
