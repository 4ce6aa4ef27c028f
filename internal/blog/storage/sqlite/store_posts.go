package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/postfold/postfold/internal/blog/storage"
)

const maxPostPageSize = 100

// GetPost returns one post row from the read model.
func (s *Store) GetPost(ctx context.Context, id string) (storage.PostRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.PostRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PostRecord{}, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.PostRecord{}, fmt.Errorf("post id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT id, title, body, author, created_at, updated_at FROM posts WHERE id = ?`,
		id,
	)
	record, err := scanPost(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.PostRecord{}, storage.ErrNotFound
		}
		return storage.PostRecord{}, fmt.Errorf("get post: %w", err)
	}
	return record, nil
}

// ListPosts returns one page of posts ordered by ID.
func (s *Store) ListPosts(ctx context.Context, pageSize int, pageToken string) (storage.PostPage, error) {
	return s.listPosts(ctx, "", pageSize, pageToken)
}

// ListPostsByAuthor returns one page of posts by one author, ordered by ID.
func (s *Store) ListPostsByAuthor(ctx context.Context, author string, pageSize int, pageToken string) (storage.PostPage, error) {
	author = strings.TrimSpace(author)
	if author == "" {
		return storage.PostPage{}, fmt.Errorf("author is required")
	}
	return s.listPosts(ctx, author, pageSize, pageToken)
}

func (s *Store) listPosts(ctx context.Context, author string, pageSize int, pageToken string) (storage.PostPage, error) {
	if err := ctx.Err(); err != nil {
		return storage.PostPage{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PostPage{}, fmt.Errorf("storage is not configured")
	}
	if pageSize <= 0 || pageSize > maxPostPageSize {
		pageSize = maxPostPageSize
	}
	pageToken = strings.TrimSpace(pageToken)

	query := `SELECT id, title, body, author, created_at, updated_at
	            FROM posts
	           WHERE id > ?`
	args := []any{pageToken}
	if author != "" {
		query += ` AND author = ?`
		args = append(args, author)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, pageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return storage.PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	page := storage.PostPage{Posts: make([]storage.PostRecord, 0, pageSize)}
	for rows.Next() {
		record, err := scanPost(rows.Scan)
		if err != nil {
			return storage.PostPage{}, fmt.Errorf("scan post: %w", err)
		}
		page.Posts = append(page.Posts, record)
	}
	if err := rows.Err(); err != nil {
		return storage.PostPage{}, fmt.Errorf("read posts: %w", err)
	}

	// One extra row was fetched to detect whether another page exists.
	if len(page.Posts) > pageSize {
		page.Posts = page.Posts[:pageSize]
		page.NextPageToken = page.Posts[len(page.Posts)-1].ID
	}
	return page, nil
}

func scanPost(scan func(dest ...any) error) (storage.PostRecord, error) {
	var record storage.PostRecord
	var createdAt, updatedAt int64
	if err := scan(
		&record.ID,
		&record.Title,
		&record.Body,
		&record.Author,
		&createdAt,
		&updatedAt,
	); err != nil {
		return storage.PostRecord{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}
