package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postfold/postfold/internal/blog/storage"
)

// GetSnapshot returns the stored write-side snapshot for a post.
func (s *Store) GetSnapshot(ctx context.Context, postID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(postID) == "" {
		return storage.Snapshot{}, fmt.Errorf("post id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT post_id, seq, state_json, updated_at FROM snapshots WHERE post_id = ?`,
		postID,
	)

	var snapshot storage.Snapshot
	var seq, updatedAt int64
	if err := row.Scan(&snapshot.PostID, &seq, &snapshot.StateJSON, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Snapshot{}, storage.ErrNotFound
		}
		return storage.Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	snapshot.Seq = uint64(seq)
	snapshot.UpdatedAt = fromMillis(updatedAt)
	return snapshot, nil
}

// PutSnapshot stores or replaces the snapshot for a post.
// Snapshots are an optimization; a stale or missing snapshot only means a
// longer replay, so writes overwrite unconditionally.
func (s *Store) PutSnapshot(ctx context.Context, snapshot storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snapshot.PostID) == "" {
		return fmt.Errorf("post id is required")
	}
	if snapshot.Seq == 0 {
		return fmt.Errorf("snapshot seq is required")
	}
	updatedAt := snapshot.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO snapshots (post_id, seq, state_json, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (post_id) DO UPDATE SET
		   seq = excluded.seq,
		   state_json = excluded.state_json,
		   updated_at = excluded.updated_at`,
		snapshot.PostID,
		int64(snapshot.Seq),
		snapshot.StateJSON,
		toMillis(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}
