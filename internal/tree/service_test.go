package tree

import (
	"context"
	"io"
	"strings"
	"testing"

	"drive-api/internal/models"

	"github.com/stretchr/testify/require"
)

const (
	owner1 int64 = 1
	owner2 int64 = 2
)

func TestCreateFolder_ConflictOnSecondCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docs := f.folder(t, owner1, nil, "docs")

	for _, parent := range []*string{nil, &docs.ID} {
		_, err := f.svc.CreateFolder(ctx, owner1, parent, "reports")
		require.NoError(t, err)

		_, err = f.svc.CreateFolder(ctx, owner1, parent, "reports")
		require.ErrorIs(t, err, ErrConflict)

		children, err := f.store.ListChildren(ctx, owner1, parent)
		require.NoError(t, err)
		count := 0
		for _, c := range children {
			if c.Name == "reports" && c.Kind == models.KindFolder {
				count++
			}
		}
		require.Equal(t, 1, count)
	}
}

func TestCreateFolder_SameNameForOtherOwner(t *testing.T) {
	f := newFixture(t)
	f.folder(t, owner1, nil, "docs")

	_, err := f.svc.CreateFolder(context.Background(), owner2, nil, "docs")
	require.NoError(t, err)
}

func TestCreateFolder_EmptyStringParentIsRoot(t *testing.T) {
	f := newFixture(t)
	empty := ""
	f.folder(t, owner1, nil, "docs")

	_, err := f.svc.CreateFolder(context.Background(), owner1, &empty, "docs")
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreateFolder_InvalidPlacement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	file := f.file(t, owner1, nil, "a.txt", "x")
	foreign := f.folder(t, owner2, nil, "theirs")
	missing := "does-not-exist"

	_, err := f.svc.CreateFolder(ctx, owner1, &missing, "x")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.CreateFolder(ctx, owner1, &foreign.ID, "x")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.CreateFolder(ctx, owner1, &file.Node.ID, "x")
	require.ErrorIs(t, err, ErrNotAFolder)

	for _, name := range []string{"", "   ", "a/b", "..", strings.Repeat("x", 256)} {
		_, err = f.svc.CreateFolder(ctx, owner1, nil, name)
		require.ErrorIs(t, err, ErrInvalidName, "name %q", name)
	}

	require.Equal(t, 2, f.store.Len(owner1)+f.store.Len(owner2))
}

func TestUpload_ReplacesExistingFile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docs := f.folder(t, owner1, nil, "docs")

	first := f.file(t, owner1, &docs.ID, "a.txt", "first")
	require.False(t, first.Replaced)

	second := f.file(t, owner1, &docs.ID, "a.txt", "second payload")
	require.True(t, second.Replaced)
	require.Equal(t, first.Node.ID, second.Node.ID)
	require.Equal(t, int64(len("second payload")), *second.Node.SizeBytes)

	children, err := f.store.ListChildren(ctx, owner1, &docs.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)

	stored := children[0]
	require.Equal(t, "second payload", f.blobs.content(t, *stored.ContentRef))
	require.Len(t, f.blobs.removed, 1, "the replaced blob should be removed")
	require.NotEqual(t, *stored.ContentRef, f.blobs.removed[0])
	require.Equal(t, []string{"node_created", "node_created", "node_replaced"}, f.events.events)
}

func TestUpload_FileAndFolderMayShareName(t *testing.T) {
	f := newFixture(t)
	f.folder(t, owner1, nil, "notes")
	res := f.file(t, owner1, nil, "notes", "content")
	require.False(t, res.Replaced)
	require.Equal(t, 2, f.store.Len(owner1))

	_, err := f.svc.CreateFolder(context.Background(), owner1, nil, "notes")
	require.ErrorIs(t, err, ErrConflict)
}

func TestUpload_StorageFailureLeavesNoMetadata(t *testing.T) {
	f := newFixture(t)
	f.blobs.failPut = true

	_, err := f.svc.Upload(context.Background(), owner1, nil, "a.txt", "", strings.NewReader("x"))
	require.ErrorIs(t, err, ErrStorageFailure)
	require.Equal(t, 0, f.store.Len(owner1))
}

func TestUpload_DefaultMediaType(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Upload(context.Background(), owner1, nil, "blob.bin", "", strings.NewReader("x"))
	require.NoError(t, err)
	require.Equal(t, "application/octet-stream", *res.Node.MediaType)
}

func TestList_RootScope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.folder(t, owner1, nil, "A")
	b := f.file(t, owner1, nil, "B", "b")
	c := f.file(t, owner1, &a.ID, "C", "c")
	f.folder(t, owner2, nil, "other")

	root, err := f.svc.List(ctx, owner1, nil)
	require.NoError(t, err)
	require.Len(t, root, 2)

	ids := map[string]Projection{}
	for _, p := range root {
		ids[p.ID] = p
	}
	require.Contains(t, ids, a.ID)
	require.Contains(t, ids, b.Node.ID)
	require.NotContains(t, ids, c.Node.ID)

	require.Nil(t, ids[a.ID].URL, "folders have no url")
	require.NotNil(t, ids[b.Node.ID].URL)
	require.True(t, strings.HasPrefix(*ids[b.Node.ID].URL, "https://files.example.com/uploads/"))

	inA, err := f.svc.List(ctx, owner1, &a.ID)
	require.NoError(t, err)
	require.Len(t, inA, 1)
	require.Equal(t, c.Node.ID, inA[0].ID)

	_, err = f.svc.List(ctx, owner2, &a.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSortForDisplay(t *testing.T) {
	items := []Projection{
		{Name: "zeta.txt", Kind: models.KindFile},
		{Name: "beta", Kind: models.KindFolder},
		{Name: "Alpha.txt", Kind: models.KindFile},
		{Name: "alpha", Kind: models.KindFolder},
	}
	SortForDisplay(items)

	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	require.Equal(t, []string{"alpha", "beta", "Alpha.txt", "zeta.txt"}, names)
}

func TestOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	docs := f.folder(t, owner1, nil, "docs")
	res := f.file(t, owner1, &docs.ID, "a.txt", "hello")

	node, rc, err := f.svc.Open(ctx, owner1, res.Node.ID)
	require.NoError(t, err)
	defer rc.Close()
	content, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
	require.Equal(t, "a.txt", node.Name)

	_, _, err = f.svc.Open(ctx, owner1, docs.ID)
	require.ErrorIs(t, err, ErrNotAFile)

	_, _, err = f.svc.Open(ctx, owner2, res.Node.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.folder(t, owner1, nil, "taken")
	target := f.folder(t, owner1, nil, "old")
	f.file(t, owner1, nil, "file-name", "x")

	_, err := f.svc.Rename(ctx, owner1, target.ID, "taken")
	require.ErrorIs(t, err, ErrConflict)

	renamed, err := f.svc.Rename(ctx, owner1, target.ID, "  file-name ")
	require.NoError(t, err)
	require.Equal(t, "file-name", renamed.Name)

	_, err = f.svc.Rename(ctx, owner2, target.ID, "mine")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.folder(t, owner1, nil, "a")
	b := f.folder(t, owner1, &a.ID, "b")
	c := f.folder(t, owner1, &b.ID, "c")
	other := f.folder(t, owner1, nil, "other")
	doc := f.file(t, owner1, &a.ID, "doc.txt", "x")

	_, err := f.svc.Move(ctx, owner1, a.ID, &c.ID)
	require.ErrorIs(t, err, ErrCycleDetected)

	_, err = f.svc.Move(ctx, owner1, a.ID, &a.ID)
	require.ErrorIs(t, err, ErrCycleDetected)

	moved, err := f.svc.Move(ctx, owner1, doc.Node.ID, &other.ID)
	require.NoError(t, err)
	require.Equal(t, other.ID, *moved.ParentID)

	f.file(t, owner1, &a.ID, "doc.txt", "y")
	_, err = f.svc.Move(ctx, owner1, doc.Node.ID, &a.ID)
	require.ErrorIs(t, err, ErrConflict)

	toRoot, err := f.svc.Move(ctx, owner1, b.ID, nil)
	require.NoError(t, err)
	require.Nil(t, toRoot.ParentID)
}

func TestUpdate_MoveAndRenameTogether(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	src := f.folder(t, owner1, nil, "src")
	dst := f.folder(t, owner1, nil, "dst")
	a := f.file(t, owner1, &src.ID, "a.txt", "a")
	b := f.file(t, owner1, &src.ID, "b.txt", "b")
	f.file(t, owner1, &dst.ID, "a.txt", "taken")

	// Only the final placement counts: dst already has a.txt but not c.txt.
	name := "c.txt"
	moved, err := f.svc.Update(ctx, owner1, a.Node.ID, NodeChange{Name: &name, Move: true, ParentID: &dst.ID})
	require.NoError(t, err)
	require.Equal(t, dst.ID, *moved.ParentID)
	require.Equal(t, "c.txt", moved.Name)

	clash := "a.txt"
	_, err = f.svc.Update(ctx, owner1, b.Node.ID, NodeChange{Name: &clash, Move: true, ParentID: &dst.ID})
	require.ErrorIs(t, err, ErrConflict)

	unchanged, err := f.svc.Get(ctx, owner1, b.Node.ID)
	require.NoError(t, err)
	require.Equal(t, src.ID, *unchanged.ParentID, "a rejected change leaves the node where it was")
	require.Equal(t, "b.txt", unchanged.Name)
}
