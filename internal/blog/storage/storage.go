// Package storage defines persistence contracts for the blog service.
//
// The write side appends to an event journal with optimistic concurrency; the
// read side maintains a posts view and per-shard cursors. The two live in
// separate databases, so read-model mutations and cursor advances share a
// transaction with each other but never with journal appends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/event"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict indicates an append lost an optimistic concurrency
	// race: another writer appended at the expected sequence first.
	ErrVersionConflict = errors.New("version conflict")
)

// PostRecord stores one denormalized post row in the read model.
type PostRecord struct {
	ID        string
	Title     string
	Body      string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PostPage stores one page of post records.
type PostPage struct {
	Posts         []PostRecord
	NextPageToken string
}

// Snapshot stores a serialized write-side state at a known sequence, so
// command handling replays only the journal tail.
type Snapshot struct {
	PostID    string
	Seq       uint64
	StateJSON []byte
	UpdatedAt time.Time
}

// EventStore persists the append-only event journal.
type EventStore interface {
	// AppendEvent appends evt at sequence expectedVersion+1 and returns it
	// with Seq, Position, and Timestamp set. It returns ErrVersionConflict
	// when the post already has an event at that sequence.
	AppendEvent(ctx context.Context, evt event.Event, expectedVersion uint64) (event.Event, error)
	// ListEvents returns up to limit events for one post with Seq > afterSeq,
	// in sequence order.
	ListEvents(ctx context.Context, postID string, afterSeq uint64, limit int) ([]event.Event, error)
	// ListEventsByTag returns up to limit events in one shard with
	// Position > afterPosition, in position order.
	ListEventsByTag(ctx context.Context, tag string, afterPosition uint64, limit int) ([]event.Event, error)
	// LatestSeq returns the highest sequence for a post, 0 when none exist.
	LatestSeq(ctx context.Context, postID string) (uint64, error)
}

// SnapshotStore persists write-side state snapshots.
type SnapshotStore interface {
	// GetSnapshot returns the stored snapshot, or ErrNotFound.
	GetSnapshot(ctx context.Context, postID string) (Snapshot, error)
	// PutSnapshot stores or replaces the snapshot for a post.
	PutSnapshot(ctx context.Context, snapshot Snapshot) error
}

// PostStore reads the denormalized posts view.
type PostStore interface {
	// GetPost returns one post row, or ErrNotFound.
	GetPost(ctx context.Context, id string) (PostRecord, error)
	// ListPosts returns one page of posts ordered by ID.
	ListPosts(ctx context.Context, pageSize int, pageToken string) (PostPage, error)
	// ListPostsByAuthor returns one page of posts by one author, ordered by ID.
	ListPostsByAuthor(ctx context.Context, author string, pageSize int, pageToken string) (PostPage, error)
}

// PostTx mutates the posts view inside a projection transaction.
type PostTx interface {
	// UpsertPost inserts or fully replaces one post row.
	UpsertPost(ctx context.Context, record PostRecord) error
	// UpdatePost replaces a post's content but keeps its created_at when the
	// row already exists.
	UpdatePost(ctx context.Context, record PostRecord) error
	// DeletePost removes one post row; deleting a missing row is a no-op.
	DeletePost(ctx context.Context, id string) error
}

// CursorStore persists per-shard projection cursors and applies read-model
// mutations atomically with cursor advances.
type CursorStore interface {
	// GetCursor returns the committed position for a shard, 0 when none.
	GetCursor(ctx context.Context, tag string) (uint64, error)
	// ApplyProjection runs mutate and advances the shard cursor to position
	// in one transaction. When position is at or below the committed cursor
	// the call is a no-op, so replaying already-applied events is safe.
	ApplyProjection(ctx context.Context, tag string, position uint64, mutate func(tx PostTx) error) error
}
