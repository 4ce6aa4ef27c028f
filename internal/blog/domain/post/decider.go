package post

import (
	"encoding/json"
	"fmt"

	"github.com/postfold/postfold/internal/blog/domain/command"
	"github.com/postfold/postfold/internal/blog/domain/content"
	"github.com/postfold/postfold/internal/blog/domain/event"
	apperrors "github.com/postfold/postfold/internal/platform/errors"
)

// Policy configures decider behavior that is deployment-specific rather
// than intrinsic to the post lifecycle.
type Policy struct {
	// StrictCreate rejects create commands targeting a post that already
	// exists. When false, a repeated create overwrites the post's content.
	StrictCreate bool
}

// Decide evaluates a command against the current state and returns the
// resulting decision. It is pure: no clock, no IO, no mutation of state.
func Decide(state State, cmd command.Command, policy Policy) command.Decision {
	switch cmd.Type {
	case command.TypePostCreate:
		return decideCreate(state, cmd, policy)
	case command.TypePostUpdate:
		return decideUpdate(state, cmd)
	case command.TypePostDelete:
		return decideDelete(state)
	default:
		return command.Reject(string(apperrors.CodePostCommandInvalid),
			fmt.Sprintf("unknown command type %q", cmd.Type))
	}
}

func decideCreate(state State, cmd command.Command, policy Policy) command.Decision {
	if state.Created && policy.StrictCreate {
		return command.Reject(string(apperrors.CodePostAlreadyExists), "post already exists")
	}

	body, rejection := contentPayload(cmd)
	if rejection != nil {
		return command.Decision{Rejections: []command.Rejection{*rejection}}
	}
	if rejection := validateContent(body); rejection != nil {
		return command.Decision{Rejections: []command.Rejection{*rejection}}
	}

	payload, err := json.Marshal(event.CreatedPayload{
		Title:  body.Title,
		Body:   body.Body,
		Author: body.Author,
	})
	if err != nil {
		return command.Reject(string(apperrors.CodePostCommandInvalid),
			fmt.Sprintf("marshal created payload: %v", err))
	}
	return command.Accept(command.PendingEvent{
		Type:        string(event.TypePostCreated),
		PayloadJSON: payload,
	})
}

func decideUpdate(state State, cmd command.Command) command.Decision {
	if !state.Created {
		return command.Reject(string(apperrors.CodePostNotCreated), "post does not exist")
	}

	body, rejection := contentPayload(cmd)
	if rejection != nil {
		return command.Decision{Rejections: []command.Rejection{*rejection}}
	}
	// An update may omit the author; the existing author is kept.
	if body.Author == "" {
		body.Author = state.Content.Author
	}
	if rejection := validateContent(body); rejection != nil {
		return command.Decision{Rejections: []command.Rejection{*rejection}}
	}

	payload, err := json.Marshal(event.UpdatedPayload{
		Title:  body.Title,
		Body:   body.Body,
		Author: body.Author,
	})
	if err != nil {
		return command.Reject(string(apperrors.CodePostCommandInvalid),
			fmt.Sprintf("marshal updated payload: %v", err))
	}
	return command.Accept(command.PendingEvent{
		Type:        string(event.TypePostUpdated),
		PayloadJSON: payload,
	})
}

func decideDelete(state State) command.Decision {
	if !state.Created {
		return command.Reject(string(apperrors.CodePostNotCreated), "post does not exist")
	}

	payload, err := json.Marshal(event.DeletedPayload{Author: state.Content.Author})
	if err != nil {
		return command.Reject(string(apperrors.CodePostCommandInvalid),
			fmt.Sprintf("marshal deleted payload: %v", err))
	}
	return command.Accept(command.PendingEvent{
		Type:        string(event.TypePostDeleted),
		PayloadJSON: payload,
	})
}

func contentPayload(cmd command.Command) (content.Content, *command.Rejection) {
	var body content.Content
	if err := json.Unmarshal(cmd.PayloadJSON, &body); err != nil {
		return content.Content{}, &command.Rejection{
			Code:    string(apperrors.CodePostCommandInvalid),
			Message: fmt.Sprintf("unmarshal command payload: %v", err),
		}
	}
	return body.Normalize(), nil
}

func validateContent(body content.Content) *command.Rejection {
	if err := body.Validate(); err != nil {
		return &command.Rejection{
			Code:    string(apperrors.CodeOf(err)),
			Message: err.Error(),
		}
	}
	return nil
}
