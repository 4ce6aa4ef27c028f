// Package post implements the write-side state machine for a single post.
//
// State is never persisted directly. It is rebuilt by folding the post's
// events in sequence order, optionally starting from a snapshot. Decide is a
// pure function from (state, command) to a decision, so the same journal
// always replays to the same state.
package post

import (
	"time"

	"github.com/postfold/postfold/internal/blog/domain/content"
)

// State is the current write-side view of one post.
// The zero value means the post has never been created (or was deleted).
type State struct {
	// Created reports whether the post currently exists.
	Created bool
	// Content holds the post's current content.
	Content content.Content
	// CreatedAt is the timestamp of the creating event.
	CreatedAt time.Time
	// UpdatedAt is the timestamp of the most recent content change.
	UpdatedAt time.Time
}
