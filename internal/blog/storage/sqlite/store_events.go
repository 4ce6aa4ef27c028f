package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/event"
	"github.com/postfold/postfold/internal/blog/storage"
)

const maxEventPageSize = 500

// AppendEvent appends evt at sequence expectedVersion+1.
//
// The UNIQUE (post_id, seq) constraint is the optimistic concurrency check:
// when a concurrent writer took the sequence first, the insert fails and the
// caller gets ErrVersionConflict to reload and retry.
func (s *Store) AppendEvent(ctx context.Context, evt event.Event, expectedVersion uint64) (event.Event, error) {
	if err := ctx.Err(); err != nil {
		return event.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return event.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.PostID) == "" {
		return event.Event{}, fmt.Errorf("post id is required")
	}
	if strings.TrimSpace(evt.Tag) == "" {
		return event.Event{}, fmt.Errorf("event tag is required")
	}
	if !event.Known(evt.Type) {
		return event.Event{}, fmt.Errorf("unknown event type %q", evt.Type)
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)
	evt.Seq = expectedVersion + 1

	result, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO events (post_id, seq, tag, event_type, timestamp, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		evt.PostID,
		int64(evt.Seq),
		evt.Tag,
		string(evt.Type),
		toMillis(evt.Timestamp),
		evt.PayloadJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return event.Event{}, storage.ErrVersionConflict
		}
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}

	position, err := result.LastInsertId()
	if err != nil {
		return event.Event{}, fmt.Errorf("read event position: %w", err)
	}
	evt.Position = uint64(position)
	return evt, nil
}

// ListEvents returns up to limit events for one post after the given sequence.
func (s *Store) ListEvents(ctx context.Context, postID string, afterSeq uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(postID) == "" {
		return nil, fmt.Errorf("post id is required")
	}
	limit = clampEventLimit(limit)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT post_id, seq, position, tag, event_type, timestamp, payload_json
		   FROM events
		  WHERE post_id = ? AND seq > ?
		  ORDER BY seq ASC
		  LIMIT ?`,
		postID,
		int64(afterSeq),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListEventsByTag returns up to limit events in one shard after the given
// journal position.
func (s *Store) ListEventsByTag(ctx context.Context, tag string, afterPosition uint64, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tag) == "" {
		return nil, fmt.Errorf("tag is required")
	}
	limit = clampEventLimit(limit)

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT post_id, seq, position, tag, event_type, timestamp, payload_json
		   FROM events
		  WHERE tag = ? AND position > ?
		  ORDER BY position ASC
		  LIMIT ?`,
		tag,
		int64(afterPosition),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events by tag: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// LatestSeq returns the highest sequence stored for a post, 0 when none.
func (s *Store) LatestSeq(ctx context.Context, postID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(postID) == "" {
		return 0, fmt.Errorf("post id is required")
	}

	var seq sql.NullInt64
	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT MAX(seq) FROM events WHERE post_id = ?`,
		postID,
	)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return uint64(seq.Int64), nil
}

func scanEvents(rows *sql.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var evt event.Event
		var seq, position, timestamp int64
		var eventType string
		if err := rows.Scan(
			&evt.PostID,
			&seq,
			&position,
			&evt.Tag,
			&eventType,
			&timestamp,
			&evt.PayloadJSON,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		evt.Seq = uint64(seq)
		evt.Position = uint64(position)
		evt.Type = event.Type(eventType)
		evt.Timestamp = fromMillis(timestamp)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

func clampEventLimit(limit int) int {
	if limit <= 0 || limit > maxEventPageSize {
		return maxEventPageSize
	}
	return limit
}
