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

// GetCursor returns the committed projection position for a shard.
func (s *Store) GetCursor(ctx context.Context, tag string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tag) == "" {
		return 0, fmt.Errorf("tag is required")
	}

	var position int64
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT position FROM projection_offsets WHERE tag = ?`,
		tag,
	)
	if err := row.Scan(&position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return uint64(position), nil
}

// ApplyProjection runs mutate and advances the shard cursor in one
// transaction. The cursor check happens inside the transaction, so crash
// recovery can safely re-deliver an already-applied event: the whole call
// becomes a no-op and the view is never mutated twice.
func (s *Store) ApplyProjection(ctx context.Context, tag string, position uint64, mutate func(tx storage.PostTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tag) == "" {
		return fmt.Errorf("tag is required")
	}
	if position == 0 {
		return fmt.Errorf("position is required")
	}
	if mutate == nil {
		return fmt.Errorf("mutate func is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var committed int64
	row := tx.QueryRowContext(ctx, `SELECT position FROM projection_offsets WHERE tag = ?`, tag)
	if err := row.Scan(&committed); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read cursor: %w", err)
	}
	if uint64(committed) >= position {
		return nil
	}

	if err := mutate(&postTx{tx: tx}); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO projection_offsets (tag, position, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (tag) DO UPDATE SET
		   position = excluded.position,
		   updated_at = excluded.updated_at`,
		tag,
		int64(position),
		toMillis(time.Now().UTC()),
	); err != nil {
		return fmt.Errorf("advance cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit projection: %w", err)
	}
	return nil
}

// postTx applies read-model mutations within an open projection transaction.
type postTx struct {
	tx *sql.Tx
}

func (p *postTx) UpsertPost(ctx context.Context, record storage.PostRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("post id is required")
	}
	_, err := p.tx.ExecContext(
		ctx,
		`INSERT INTO posts (id, title, body, author, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   body = excluded.body,
		   author = excluded.author,
		   created_at = excluded.created_at,
		   updated_at = excluded.updated_at`,
		record.ID,
		record.Title,
		record.Body,
		record.Author,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert post: %w", err)
	}
	return nil
}

func (p *postTx) UpdatePost(ctx context.Context, record storage.PostRecord) error {
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("post id is required")
	}
	_, err := p.tx.ExecContext(
		ctx,
		`INSERT INTO posts (id, title, body, author, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   title = excluded.title,
		   body = excluded.body,
		   author = excluded.author,
		   updated_at = excluded.updated_at`,
		record.ID,
		record.Title,
		record.Body,
		record.Author,
		toMillis(record.CreatedAt),
		toMillis(record.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	return nil
}

func (p *postTx) DeletePost(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("post id is required")
	}
	// Deleting an already-deleted post is fine; replay must stay idempotent.
	if _, err := p.tx.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}
