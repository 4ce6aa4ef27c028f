// Package event defines the canonical event envelope persisted to the journal.
//
// Events are immutable once appended. Each event belongs to exactly one post
// and carries a per-post sequence number assigned on append, plus a global
// journal position used by the read side for shard-ordered consumption.
package event

import (
	"time"
)

// Type identifies an event variant.
type Type string

const (
	// TypePostCreated records a new post with its full content.
	TypePostCreated Type = "post.created"
	// TypePostUpdated records replacement content for an existing post.
	TypePostUpdated Type = "post.updated"
	// TypePostDeleted records removal of a post.
	TypePostDeleted Type = "post.deleted"
)

// Known reports whether t is a variant this codebase understands.
// Unknown variants in the journal are a programming error, not data to skip.
func Known(t Type) bool {
	switch t {
	case TypePostCreated, TypePostUpdated, TypePostDeleted:
		return true
	default:
		return false
	}
}

// Event is the persisted journal entry.
type Event struct {
	// PostID identifies the owning post.
	PostID string
	// Seq is the 1-based per-post sequence number, assigned by the journal.
	Seq uint64
	// Position is the global journal position, assigned by the journal.
	// Tag-filtered reads are ordered by Position.
	Position uint64
	// Tag is the shard label the event was assigned to on append.
	Tag string
	// Type discriminates the payload.
	Type Type
	// Timestamp is the UTC event time, truncated to milliseconds on append.
	Timestamp time.Time
	// PayloadJSON holds the type-specific payload as JSON.
	PayloadJSON []byte
}

// CreatedPayload is the payload of a post.created event.
type CreatedPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// UpdatedPayload is the payload of a post.updated event.
type UpdatedPayload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// DeletedPayload is the payload of a post.deleted event.
type DeletedPayload struct {
	Author string `json:"author"`
}
