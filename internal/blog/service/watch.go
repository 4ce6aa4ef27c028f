package service

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/content"
	"github.com/postfold/postfold/internal/blog/domain/event"
)

const subscriberBuffer = 16

// WatchEvent is one live post change delivered to subscribers.
type WatchEvent struct {
	PostID    string     `json:"postId"`
	Type      event.Type `json:"type"`
	Seq       uint64     `json:"seq"`
	Timestamp time.Time  `json:"timestamp"`
	// Author is the post author on record for the change, including deletes.
	Author string `json:"author"`
	// Content is set for creates and updates, nil for deletes.
	Content *content.Content `json:"content,omitempty"`
}

// Hub fans appended events out to live subscribers. It implements the
// engine's Notifier. Slow subscribers are disconnected rather than allowed
// to stall the write path; SSE clients reconnect and re-read the view.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan WatchEvent]struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan WatchEvent]struct{})}
}

// Subscribe registers a subscriber that lives until ctx is canceled or the
// subscriber lags. The returned channel closes when the subscription ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan WatchEvent {
	ch := make(chan WatchEvent, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.drop(ch)
	}()
	return ch
}

// EventAppended delivers one appended event to every subscriber without
// blocking the caller.
func (h *Hub) EventAppended(evt event.Event) {
	if h == nil {
		return
	}
	watchEvt := toWatchEvent(evt)

	h.mu.Lock()
	var lagging []chan WatchEvent
	for ch := range h.subscribers {
		select {
		case ch <- watchEvt:
		default:
			lagging = append(lagging, ch)
		}
	}
	for _, ch := range lagging {
		delete(h.subscribers, ch)
		close(ch)
	}
	h.mu.Unlock()

	if len(lagging) > 0 {
		log.Printf("watch: dropped %d lagging subscriber(s)", len(lagging))
	}
}

// SubscriberCount reports the current number of subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) drop(ch chan WatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; ok {
		delete(h.subscribers, ch)
		close(ch)
	}
}

func toWatchEvent(evt event.Event) WatchEvent {
	watchEvt := WatchEvent{
		PostID:    evt.PostID,
		Type:      evt.Type,
		Seq:       evt.Seq,
		Timestamp: evt.Timestamp,
	}
	switch evt.Type {
	case event.TypePostCreated, event.TypePostUpdated:
		var payload content.Content
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err == nil {
			watchEvt.Content = &payload
			watchEvt.Author = payload.Author
		}
	case event.TypePostDeleted:
		var payload event.DeletedPayload
		if err := json.Unmarshal(evt.PayloadJSON, &payload); err == nil {
			watchEvt.Author = payload.Author
		}
	}
	return watchEvt
}
