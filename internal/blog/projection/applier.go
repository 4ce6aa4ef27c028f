// Package projection maintains the posts read model from the event journal.
//
// Each shard is consumed by one Runner, which applies events through an
// Applier. Every apply runs the view mutation and the cursor advance in one
// transaction, so a crash between the two cannot happen and redelivered
// events are no-ops.
package projection

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/postfold/postfold/internal/blog/domain/event"
	"github.com/postfold/postfold/internal/blog/storage"
)

// Applier maps journal events onto posts-view mutations.
type Applier struct {
	cursors storage.CursorStore
}

// NewApplier creates an Applier over the given cursor store.
func NewApplier(cursors storage.CursorStore) (*Applier, error) {
	if cursors == nil {
		return nil, fmt.Errorf("cursor store is required")
	}
	return &Applier{cursors: cursors}, nil
}

// Apply projects one event. Unknown event types are an error so a
// misdeployed projector halts instead of silently skipping journal entries.
func (a *Applier) Apply(ctx context.Context, evt event.Event) error {
	if a == nil || a.cursors == nil {
		return fmt.Errorf("applier is not configured")
	}

	mutate, err := a.mutation(ctx, evt)
	if err != nil {
		return err
	}
	if err := a.cursors.ApplyProjection(ctx, evt.Tag, evt.Position, mutate); err != nil {
		return fmt.Errorf("apply %s position %d: %w", evt.Type, evt.Position, err)
	}
	return nil
}

func (a *Applier) mutation(ctx context.Context, evt event.Event) (func(tx storage.PostTx) error, error) {
	switch evt.Type {
	case event.TypePostCreated:
		var payload event.CreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal created payload: %w", err)
		}
		record := storage.PostRecord{
			ID:        evt.PostID,
			Title:     payload.Title,
			Body:      payload.Body,
			Author:    payload.Author,
			CreatedAt: evt.Timestamp,
			UpdatedAt: evt.Timestamp,
		}
		return func(tx storage.PostTx) error {
			return tx.UpsertPost(ctx, record)
		}, nil
	case event.TypePostUpdated:
		var payload event.UpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("unmarshal updated payload: %w", err)
		}
		record := storage.PostRecord{
			ID:        evt.PostID,
			Title:     payload.Title,
			Body:      payload.Body,
			Author:    payload.Author,
			CreatedAt: evt.Timestamp,
			UpdatedAt: evt.Timestamp,
		}
		return func(tx storage.PostTx) error {
			return tx.UpdatePost(ctx, record)
		}, nil
	case event.TypePostDeleted:
		return func(tx storage.PostTx) error {
			return tx.DeletePost(ctx, evt.PostID)
		}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q at position %d", evt.Type, evt.Position)
	}
}
