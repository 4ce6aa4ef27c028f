package engine

import "sync"

// lockRegistry hands out one mutex per post ID so command handling for a
// given post is single-writer within this process. Entries are reference
// counted and removed once the last holder releases, keeping the map bounded
// by the number of in-flight commands rather than the number of posts.
type lockRegistry struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the caller holds the lock for key and returns the
// release func.
func (r *lockRegistry) acquire(key string) func() {
	r.mu.Lock()
	entry, ok := r.entries[key]
	if !ok {
		entry = &lockEntry{}
		r.entries[key] = entry
	}
	entry.refs++
	r.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			r.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(r.entries, key)
			}
			r.mu.Unlock()
		})
	}
}
