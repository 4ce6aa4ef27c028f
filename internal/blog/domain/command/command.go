// Package command defines the command envelope handled by the write side.
//
// Commands express intent. They are not persisted; the decider turns each
// accepted command into one or more events, and rejections carry a stable
// code so callers can map them to API errors.
package command

// Type identifies a command variant.
type Type string

const (
	// TypePostCreate requests creation of a post.
	TypePostCreate Type = "post.create"
	// TypePostUpdate requests replacement of a post's content.
	TypePostUpdate Type = "post.update"
	// TypePostDelete requests removal of a post.
	TypePostDelete Type = "post.delete"
)

// Known reports whether t is a variant this codebase understands.
func Known(t Type) bool {
	switch t {
	case TypePostCreate, TypePostUpdate, TypePostDelete:
		return true
	default:
		return false
	}
}

// Command is the write-side request envelope for a single post.
type Command struct {
	// PostID identifies the target post.
	PostID string
	// Type discriminates the payload.
	Type Type
	// RequestID correlates the command with API-level logging.
	RequestID string
	// PayloadJSON holds command-specific data as JSON.
	PayloadJSON []byte
}

// Rejection explains why a command was refused.
type Rejection struct {
	// Code is a stable machine-readable reason.
	Code string
	// Message is a human-readable explanation.
	Message string
}

// Decision is the outcome of deciding a command against current state.
// Exactly one of Events or Rejections is non-empty.
type Decision struct {
	// Events are the facts to append when the command is accepted.
	Events []PendingEvent
	// Rejections are the reasons the command was refused.
	Rejections []Rejection
}

// Accepted reports whether the decision produced events.
func (d Decision) Accepted() bool {
	return len(d.Rejections) == 0 && len(d.Events) > 0
}

// PendingEvent is an event produced by the decider before the journal
// assigns sequence and position.
type PendingEvent struct {
	// Type discriminates the payload.
	Type string
	// PayloadJSON holds event-specific data as JSON.
	PayloadJSON []byte
}

// Accept builds a decision carrying the given events.
func Accept(events ...PendingEvent) Decision {
	return Decision{Events: events}
}

// Reject builds a decision carrying a single rejection.
func Reject(code, message string) Decision {
	return Decision{Rejections: []Rejection{{Code: code, Message: message}}}
}
