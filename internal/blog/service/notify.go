package service

import (
	"github.com/postfold/postfold/internal/blog/domain/event"
	"github.com/postfold/postfold/internal/blog/engine"
)

// Notifiers fans engine notifications out to several listeners, typically
// the projection waker and the watch hub.
type Notifiers []engine.Notifier

// EventAppended forwards the event to every listener.
func (n Notifiers) EventAppended(evt event.Event) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.EventAppended(evt)
		}
	}
}
