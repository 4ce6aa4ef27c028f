// Package tag shards the event journal for parallel read-side consumption.
//
// Every event for a given post carries the same tag, so per-post ordering is
// preserved within a shard. The shard count is fixed: changing it would
// reassign existing posts to different shards and strand projector cursors,
// so treat Count as part of the journal's on-disk format.
package tag

import (
	"fmt"
	"hash/fnv"
)

// Count is the fixed number of shards.
const Count = 4

// Tag labels one shard of the event journal.
type Tag string

// ForPost returns the shard tag for a post ID. The mapping is a pure
// function of the ID and never changes across restarts or versions.
func ForPost(postID string) Tag {
	h := fnv.New32a()
	h.Write([]byte(postID))
	return Tag(fmt.Sprintf("posts-%d", h.Sum32()%Count))
}

// All returns every shard tag in stable order.
func All() []Tag {
	tags := make([]Tag, Count)
	for i := range tags {
		tags[i] = Tag(fmt.Sprintf("posts-%d", i))
	}
	return tags
}
