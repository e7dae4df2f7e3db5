package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	tempDir := t.TempDir() + "/blobs"

	storage, err := NewLocalStorage(tempDir, "http://localhost:8080/")
	require.NoError(t, err)
	require.NotNil(t, storage)
	require.Equal(t, tempDir, storage.basePath)

	_, err = os.Stat(tempDir)
	require.NoError(t, err, "Base directory should be created")
}

func TestLocalStorage_PutOpenRemove(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLocalStorage(t.TempDir(), "http://localhost:8080")
	require.NoError(t, err)

	content := "Hello, world!"
	ref, size, err := storage.Put(ctx, 42, "hello.txt", strings.NewReader(content))
	require.NoError(t, err)
	require.Equal(t, int64(len(content)), size)
	require.True(t, strings.HasPrefix(ref, "42/"))
	require.NotContains(t, ref, "hello.txt", "the upload name must not leak into the key")

	expectedPath, err := storage.pathFromRef(ref)
	require.NoError(t, err)
	fileInfo, err := os.Stat(expectedPath)
	require.NoError(t, err, "File should exist after put")
	require.Equal(t, int64(len(content)), fileInfo.Size())

	readCloser, err := storage.Open(ctx, ref)
	require.NoError(t, err)
	retrieved, err := io.ReadAll(readCloser)
	require.NoError(t, err)
	readCloser.Close()
	require.Equal(t, content, string(retrieved))

	require.Equal(t, "http://localhost:8080/uploads/"+ref, storage.URL(ref))

	require.NoError(t, storage.Remove(ctx, ref))
	_, err = os.Stat(expectedPath)
	require.True(t, os.IsNotExist(err), "File should not exist after remove")

	// Removing twice is fine.
	require.NoError(t, storage.Remove(ctx, ref))
}

func TestLocalStorage_DistinctRefsPerUpload(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	first, _, err := storage.Put(ctx, 1, "a.txt", strings.NewReader("one"))
	require.NoError(t, err)
	second, _, err := storage.Put(ctx, 1, "a.txt", strings.NewReader("two"))
	require.NoError(t, err)
	require.NotEqual(t, first, second)
}

func TestLocalStorage_OpenMissing(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	_, err = storage.Open(context.Background(), "1/0b6f3a52-3c4e-4a7b-9d8e-0123456789ab")
	require.Error(t, err)
}

func TestLocalStorage_RejectsMalformedRefs(t *testing.T) {
	ctx := context.Background()
	storage, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	for _, ref := range []string{"", "../etc/passwd", "1/../../x", "abc/0b6f3a52-3c4e-4a7b-9d8e-0123456789ab", "1"} {
		_, err := storage.Open(ctx, ref)
		require.ErrorIs(t, err, ErrInvalidRef, "ref %q", ref)
		require.ErrorIs(t, storage.Remove(ctx, ref), ErrInvalidRef, "ref %q", ref)
	}
}

func TestLocalStorage_PutWithLargeData(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	largeContent := bytes.Repeat([]byte{'a'}, 1024*1024)
	ref, size, err := storage.Put(context.Background(), 7, "big.bin", bytes.NewReader(largeContent))
	require.NoError(t, err)
	require.Equal(t, int64(len(largeContent)), size)

	expectedPath, err := storage.pathFromRef(ref)
	require.NoError(t, err)
	fileInfo, err := os.Stat(expectedPath)
	require.NoError(t, err)
	require.Equal(t, int64(len(largeContent)), fileInfo.Size())
}

func TestLocalStorage_PutCancelled(t *testing.T) {
	storage, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = storage.Put(ctx, 1, "a.txt", strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestOwnerOf(t *testing.T) {
	owner, err := OwnerOf(newRef(9))
	require.NoError(t, err)
	require.Equal(t, int64(9), owner)

	_, err = OwnerOf("nope")
	require.ErrorIs(t, err, ErrInvalidRef)
}
