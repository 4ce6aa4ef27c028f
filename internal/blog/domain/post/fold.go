package post

import (
	"encoding/json"
	"fmt"

	"github.com/postfold/postfold/internal/blog/domain/content"
	"github.com/postfold/postfold/internal/blog/domain/event"
)

// Fold applies one event to the state and returns the next state.
// It is defined for every event variant; deletion resets to the zero state
// so a later create starts a fresh lifecycle.
func Fold(state State, evt event.Event) (State, error) {
	switch evt.Type {
	case event.TypePostCreated:
		var payload event.CreatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("unmarshal created payload: %w", err)
		}
		return State{
			Created: true,
			Content: content.Content{
				Title:  payload.Title,
				Body:   payload.Body,
				Author: payload.Author,
			},
			CreatedAt: evt.Timestamp,
			UpdatedAt: evt.Timestamp,
		}, nil
	case event.TypePostUpdated:
		var payload event.UpdatedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err != nil {
			return state, fmt.Errorf("unmarshal updated payload: %w", err)
		}
		next := state
		next.Content = content.Content{
			Title:  payload.Title,
			Body:   payload.Body,
			Author: payload.Author,
		}
		next.UpdatedAt = evt.Timestamp
		return next, nil
	case event.TypePostDeleted:
		return State{}, nil
	default:
		return state, fmt.Errorf("fold: unknown event type %q", evt.Type)
	}
}

// Replay folds a sequence of events onto the state.
func Replay(state State, events []event.Event) (State, error) {
	for _, evt := range events {
		next, err := Fold(state, evt)
		if err != nil {
			return state, fmt.Errorf("replay event seq %d: %w", evt.Seq, err)
		}
		state = next
	}
	return state, nil
}
