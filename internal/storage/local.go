package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LocalStorage keeps blobs on the local disk under basePath, sharded by owner
// and the first two characters of the blob id.
type LocalStorage struct {
	basePath  string
	publicURL string
}

func NewLocalStorage(basePath, host string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &LocalStorage{
		basePath:  basePath,
		publicURL: strings.TrimRight(host, "/") + "/uploads/",
	}, nil
}

func (ls *LocalStorage) pathFromRef(ref string) (string, error) {
	ownerID, blob, err := parseRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(ls.basePath, strconv.FormatInt(ownerID, 10), blob[:2], blob), nil
}

// Put writes r to a temporary file first and renames it into place, so a
// failed upload never leaves a partial blob under a valid ref.
func (ls *LocalStorage) Put(ctx context.Context, ownerID int64, suggestedName string, r io.Reader) (string, int64, error) {
	ref := newRef(ownerID)
	filePath, err := ls.pathFromRef(ref)
	if err != nil {
		return "", 0, err
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, err
	}

	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", 0, err
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", 0, fmt.Errorf("write blob: %w", err)
	}

	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return "", 0, err
	}
	return ref, size, nil
}

func (ls *LocalStorage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	filePath, err := ls.pathFromRef(ref)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s not found: %w", ref, err)
		}
		return nil, err
	}
	return file, nil
}

func (ls *LocalStorage) Remove(ctx context.Context, ref string) error {
	filePath, err := ls.pathFromRef(ref)
	if err != nil {
		return err
	}

	err = os.Remove(filePath)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (ls *LocalStorage) URL(ref string) string {
	return ls.publicURL + ref
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
