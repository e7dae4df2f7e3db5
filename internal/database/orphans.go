package database

import (
	"context"
	"time"

	"drive-api/internal/tree"
)

var _ tree.OrphanRecorder = (*Queries)(nil)

type OrphanBlob struct {
	ID            int64      `json:"id"`
	OwnerID       int64      `json:"owner_id"`
	ContentRef    string     `json:"content_ref"`
	LastError     string     `json:"last_error"`
	Attempts      int        `json:"attempts"`
	CreatedAt     time.Time  `json:"created_at"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
}

// RecordOrphanBlob remembers a blob that could not be removed. Recording the
// same ref twice keeps one row with the latest error.
func (q *Queries) RecordOrphanBlob(ctx context.Context, ownerID int64, ref string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	query := `
		INSERT INTO orphan_blobs (owner_id, content_ref, last_error)
		VALUES ($1, $2, $3)
		ON CONFLICT (content_ref) DO UPDATE SET last_error = EXCLUDED.last_error
	`
	_, err := q.db.Exec(ctx, query, ownerID, ref, msg)
	return err
}

// ListOrphanBlobs returns the least recently attempted orphans first.
func (q *Queries) ListOrphanBlobs(ctx context.Context, limit int) ([]OrphanBlob, error) {
	query := `
		SELECT id, owner_id, content_ref, last_error, attempts, created_at, last_attempt_at
		FROM orphan_blobs
		ORDER BY last_attempt_at NULLS FIRST, id
		LIMIT $1
	`
	rows, err := q.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orphans := []OrphanBlob{}
	for rows.Next() {
		var o OrphanBlob
		if err := rows.Scan(&o.ID, &o.OwnerID, &o.ContentRef, &o.LastError, &o.Attempts, &o.CreatedAt, &o.LastAttemptAt); err != nil {
			return nil, err
		}
		orphans = append(orphans, o)
	}
	return orphans, rows.Err()
}

func (q *Queries) DeleteOrphanBlob(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, `DELETE FROM orphan_blobs WHERE id = $1`, id)
	return err
}

func (q *Queries) MarkOrphanAttempt(ctx context.Context, id int64, cause error) error {
	query := `
		UPDATE orphan_blobs
		SET attempts = attempts + 1, last_attempt_at = NOW(), last_error = $2
		WHERE id = $1
	`
	_, err := q.db.Exec(ctx, query, id, cause.Error())
	return err
}
