package tree

import (
	"context"
	"testing"

	"drive-api/internal/models"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_SiblingUniqueness(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	_, err := m.CreateNode(ctx, &models.Node{ID: "a", OwnerID: 1, Name: "x", Kind: models.KindFolder})
	require.NoError(t, err)

	_, err = m.CreateNode(ctx, &models.Node{ID: "b", OwnerID: 1, Name: "x", Kind: models.KindFolder})
	require.ErrorIs(t, err, ErrConflict)

	_, err = m.CreateNode(ctx, &models.Node{ID: "a", OwnerID: 2, Name: "y", Kind: models.KindFolder})
	require.ErrorIs(t, err, ErrConflict, "ids are global")

	_, err = m.CreateNode(ctx, &models.Node{ID: "c", OwnerID: 2, Name: "x", Kind: models.KindFolder})
	require.NoError(t, err)
}

func TestMemoryStore_UpsertFile(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	res, err := m.UpsertFile(ctx, UpsertFileParams{ID: "f1", OwnerID: 1, Name: "a.txt", ContentRef: "r1", MediaType: "text/plain", SizeBytes: 1})
	require.NoError(t, err)
	require.False(t, res.Replaced)

	res, err = m.UpsertFile(ctx, UpsertFileParams{ID: "f2", OwnerID: 1, Name: "a.txt", ContentRef: "r2", MediaType: "text/plain", SizeBytes: 2})
	require.NoError(t, err)
	require.True(t, res.Replaced)
	require.Equal(t, "f1", res.Node.ID)
	require.Equal(t, "r1", *res.PreviousRef)
	require.Equal(t, "r2", *res.Node.ContentRef)

	// The returned node is a copy.
	*res.Node.ContentRef = "mutated"
	stored, err := m.GetNode(ctx, 1, "f1")
	require.NoError(t, err)
	require.Equal(t, "r2", *stored.ContentRef)
}

func TestMemoryStore_DeleteNonEmptyFolder(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	parent := "p"

	_, err := m.CreateNode(ctx, &models.Node{ID: parent, OwnerID: 1, Name: "p", Kind: models.KindFolder})
	require.NoError(t, err)
	_, err = m.CreateNode(ctx, &models.Node{ID: "c", OwnerID: 1, ParentID: &parent, Name: "c", Kind: models.KindFolder})
	require.NoError(t, err)

	_, err = m.DeleteNode(ctx, 1, parent)
	require.ErrorIs(t, err, ErrFolderNotEmpty)

	ok, err := m.DeleteNode(ctx, 2, "c")
	require.NoError(t, err)
	require.False(t, ok, "foreign owner")

	ok, err = m.DeleteNode(ctx, 1, "c")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = m.DeleteNode(ctx, 1, parent)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryStore_WritesRequireLiveParent(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	dir, file, missing := "dir", "file", "missing"

	_, err := m.CreateNode(ctx, &models.Node{ID: dir, OwnerID: 1, Name: "dir", Kind: models.KindFolder})
	require.NoError(t, err)
	_, err = m.UpsertFile(ctx, UpsertFileParams{ID: file, OwnerID: 1, Name: "f.txt", ContentRef: "r1"})
	require.NoError(t, err)

	_, err = m.CreateNode(ctx, &models.Node{ID: "x", OwnerID: 1, ParentID: &missing, Name: "x", Kind: models.KindFolder})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpsertFile(ctx, UpsertFileParams{ID: "y", OwnerID: 1, ParentID: &missing, Name: "y", ContentRef: "r2"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = m.UpsertFile(ctx, UpsertFileParams{ID: "y", OwnerID: 2, ParentID: &dir, Name: "y", ContentRef: "r2"})
	require.ErrorIs(t, err, ErrNotFound, "a folder of another owner is not a parent")
	_, err = m.UpsertFile(ctx, UpsertFileParams{ID: "y", OwnerID: 1, ParentID: &file, Name: "y", ContentRef: "r2"})
	require.ErrorIs(t, err, ErrNotAFolder)
	_, err = m.MoveNode(ctx, 1, dir, &file, "dir")
	require.ErrorIs(t, err, ErrNotAFolder)

	require.Equal(t, 2, m.Len(1))
}
