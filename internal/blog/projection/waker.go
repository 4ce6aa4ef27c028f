package projection

import (
	"github.com/postfold/postfold/internal/blog/domain/event"
	"github.com/postfold/postfold/internal/blog/tag"
)

// Waker nudges shard runners when the write side appends an event, so
// in-process projections pick up new events without waiting a poll interval.
// It implements the engine's Notifier.
type Waker struct {
	shards map[string]chan struct{}
}

// NewWaker creates a Waker with one signal channel per shard.
func NewWaker() *Waker {
	shards := make(map[string]chan struct{}, tag.Count)
	for _, tg := range tag.All() {
		shards[string(tg)] = make(chan struct{}, 1)
	}
	return &Waker{shards: shards}
}

// EventAppended signals the event's shard. It never blocks; a pending signal
// already covers the new event.
func (w *Waker) EventAppended(evt event.Event) {
	if w == nil {
		return
	}
	ch, ok := w.shards[evt.Tag]
	if !ok {
		return
	}
	select {
	case ch <- struct{}{}:
	default:
	}
}

// Wake returns the signal channel for one shard.
func (w *Waker) Wake(shard string) <-chan struct{} {
	if w == nil {
		return nil
	}
	return w.shards[shard]
}
