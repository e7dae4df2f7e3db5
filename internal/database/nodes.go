package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"drive-api/internal/models"
	"drive-api/internal/tree"

	"github.com/jackc/pgx/v5"
)

var _ tree.Store = (*Queries)(nil)

const nodeColumns = `id, owner_id, parent_id, name, kind, content_ref, media_type, size_bytes, created_at, updated_at`

func qualifiedNodeColumns(alias string) string {
	cols := strings.Split(nodeColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanNode(row pgx.Row, extra ...any) (*models.Node, error) {
	var node models.Node
	dest := []any{
		&node.ID,
		&node.OwnerID,
		&node.ParentID,
		&node.Name,
		&node.Kind,
		&node.ContentRef,
		&node.MediaType,
		&node.SizeBytes,
		&node.CreatedAt,
		&node.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &node, nil
}

// nodeWriteError maps constraint violations of a node write to tree errors.
func nodeWriteError(err error) error {
	switch pgErrorCode(err) {
	case uniqueViolation:
		return tree.ErrConflict
	case foreignKeyViolation:
		return fmt.Errorf("parent folder: %w", tree.ErrNotFound)
	}
	return err
}

func (q *Queries) CreateNode(ctx context.Context, node *models.Node) (*models.Node, error) {
	query := `
		INSERT INTO nodes (id, owner_id, parent_id, name, kind, content_ref, media_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + nodeColumns

	created, err := scanNode(q.db.QueryRow(ctx, query,
		node.ID,
		node.OwnerID,
		tree.NormalizeParent(node.ParentID),
		node.Name,
		node.Kind,
		node.ContentRef,
		node.MediaType,
		node.SizeBytes,
	))
	if err != nil {
		return nil, nodeWriteError(err)
	}
	return created, nil
}

// upsertAttempts bounds how often UpsertFile alternates between replacing and
// inserting while concurrent uploads of the same name keep racing it.
const upsertAttempts = 3

// UpsertFile points an existing file with the same name at the new content,
// or inserts the file. The replace locks the existing row, so PreviousRef is
// the content that was actually overwritten even under concurrent uploads.
func (q *Queries) UpsertFile(ctx context.Context, arg tree.UpsertFileParams) (*tree.UpsertResult, error) {
	for attempt := 0; attempt < upsertAttempts; attempt++ {
		node, previous, err := q.replaceFile(ctx, arg)
		if err != nil {
			return nil, nodeWriteError(err)
		}
		if node != nil {
			return &tree.UpsertResult{Node: node, Replaced: true, PreviousRef: previous}, nil
		}

		node, err = q.insertFile(ctx, arg)
		if err != nil {
			return nil, nodeWriteError(err)
		}
		if node != nil {
			return &tree.UpsertResult{Node: node}, nil
		}
		// Another upload inserted the name in between; replace that one.
	}
	return nil, fmt.Errorf("upsert of %q lost %d races: %w", arg.Name, upsertAttempts, tree.ErrConflict)
}

func (q *Queries) replaceFile(ctx context.Context, arg tree.UpsertFileParams) (*models.Node, *string, error) {
	query := `
		UPDATE nodes n
		SET content_ref = $4, media_type = $5, size_bytes = $6, updated_at = NOW()
		FROM (
			SELECT id, content_ref FROM nodes
			WHERE owner_id = $1 AND COALESCE(parent_id, '') = COALESCE($2::text, '')
			  AND kind = 'file' AND name = $3
			FOR UPDATE
		) old
		WHERE n.id = old.id
		RETURNING ` + qualifiedNodeColumns("n") + `, old.content_ref`

	var previous *string
	node, err := scanNode(q.db.QueryRow(ctx, query,
		arg.OwnerID,
		tree.NormalizeParent(arg.ParentID),
		arg.Name,
		arg.ContentRef,
		arg.MediaType,
		arg.SizeBytes,
	), &previous)
	return node, previous, err
}

func (q *Queries) insertFile(ctx context.Context, arg tree.UpsertFileParams) (*models.Node, error) {
	query := `
		INSERT INTO nodes (id, owner_id, parent_id, name, kind, content_ref, media_type, size_bytes)
		VALUES ($1, $2, $3, $4, 'file', $5, $6, $7)
		ON CONFLICT (owner_id, (COALESCE(parent_id, '')), kind, name) DO NOTHING
		RETURNING ` + nodeColumns

	return scanNode(q.db.QueryRow(ctx, query,
		arg.ID,
		arg.OwnerID,
		tree.NormalizeParent(arg.ParentID),
		arg.Name,
		arg.ContentRef,
		arg.MediaType,
		arg.SizeBytes,
	))
}

func (q *Queries) GetNode(ctx context.Context, ownerID int64, id string) (*models.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = $1 AND owner_id = $2`
	return scanNode(q.db.QueryRow(ctx, query, id, ownerID))
}

func (q *Queries) FindChild(ctx context.Context, ownerID int64, parentID *string, kind models.NodeKind, name string) (*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE owner_id = $1 AND COALESCE(parent_id, '') = COALESCE($2::text, '')
		  AND kind = $3 AND name = $4
	`
	return scanNode(q.db.QueryRow(ctx, query, ownerID, tree.NormalizeParent(parentID), kind, name))
}

func (q *Queries) ListChildren(ctx context.Context, ownerID int64, parentID *string) ([]models.Node, error) {
	query := `
		SELECT ` + nodeColumns + ` FROM nodes
		WHERE owner_id = $1 AND COALESCE(parent_id, '') = COALESCE($2::text, '')
		ORDER BY id
	`
	rows, err := q.db.Query(ctx, query, ownerID, tree.NormalizeParent(parentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []models.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return nodes, nil
}

// DeleteNode removes a single node. Folders must be empty.
func (q *Queries) DeleteNode(ctx context.Context, ownerID int64, id string) (bool, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM nodes WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		if pgErrorCode(err) == foreignKeyViolation {
			return false, fmt.Errorf("node %s: %w", id, tree.ErrFolderNotEmpty)
		}
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) RenameNode(ctx context.Context, ownerID int64, id string, name string) (bool, error) {
	query := `UPDATE nodes SET name = $1, updated_at = NOW() WHERE id = $2 AND owner_id = $3`
	tag, err := q.db.Exec(ctx, query, name, id, ownerID)
	if err != nil {
		return false, nodeWriteError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (q *Queries) MoveNode(ctx context.Context, ownerID int64, id string, parentID *string, name string) (bool, error) {
	query := `UPDATE nodes SET parent_id = $1, name = $2, updated_at = NOW() WHERE id = $3 AND owner_id = $4`
	tag, err := q.db.Exec(ctx, query, tree.NormalizeParent(parentID), name, id, ownerID)
	if err != nil {
		return false, nodeWriteError(err)
	}
	return tag.RowsAffected() > 0, nil
}
