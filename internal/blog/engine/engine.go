// Package engine executes commands against the post state machine.
//
// For each command it replays the post's journal tail on top of the latest
// snapshot, runs the pure decider, and appends the resulting events with
// optimistic concurrency. A per-post lock keeps command handling for one ID
// single-writer inside the process; the journal's version check covers writers
// in other processes.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/command"
	"github.com/postfold/postfold/internal/blog/domain/event"
	"github.com/postfold/postfold/internal/blog/domain/post"
	"github.com/postfold/postfold/internal/blog/storage"
	"github.com/postfold/postfold/internal/blog/tag"
	apperrors "github.com/postfold/postfold/internal/platform/errors"
)

const (
	defaultConflictRetries = 3
	defaultSnapshotEvery   = 50
	replayPageSize         = 200
)

// Notifier is told about appended events, for waking projector loops and
// live subscribers. Implementations must not block.
type Notifier interface {
	EventAppended(evt event.Event)
}

// Config configures an Engine.
type Config struct {
	Events    storage.EventStore
	Snapshots storage.SnapshotStore
	// Policy is passed through to the decider.
	Policy post.Policy
	// ConflictRetries bounds reload-and-retry cycles after a lost append
	// race. Zero means the default.
	ConflictRetries int
	// SnapshotEvery stores a snapshot when a post's sequence crosses a
	// multiple of this value. Zero means the default; negative disables.
	SnapshotEvery int
	// Notifier is optional.
	Notifier Notifier
	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Engine applies commands to posts.
type Engine struct {
	events          storage.EventStore
	snapshots       storage.SnapshotStore
	policy          post.Policy
	conflictRetries int
	snapshotEvery   int
	notifier        Notifier
	clock           func() time.Time
	locks           *lockRegistry
}

// New creates an Engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	retries := cfg.ConflictRetries
	if retries <= 0 {
		retries = defaultConflictRetries
	}
	every := cfg.SnapshotEvery
	if every == 0 {
		every = defaultSnapshotEvery
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		events:          cfg.Events,
		snapshots:       cfg.Snapshots,
		policy:          cfg.Policy,
		conflictRetries: retries,
		snapshotEvery:   every,
		notifier:        cfg.Notifier,
		clock:           clock,
		locks:           newLockRegistry(),
	}, nil
}

// Result reports the outcome of one accepted command.
type Result struct {
	// Events are the appended events in order.
	Events []event.Event
	// State is the write-side state after the appended events, so callers
	// can build a reply without re-reading the journal.
	State post.State
	// Version is the post's sequence after the append.
	Version uint64
}

// Execute handles one command and returns the appended events and the
// resulting state. Rejections surface as coded errors; version conflicts are
// retried with a fresh replay before giving up.
func (e *Engine) Execute(ctx context.Context, cmd command.Command) (Result, error) {
	if e == nil {
		return Result{}, fmt.Errorf("engine is not configured")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	cmd.PostID = strings.TrimSpace(cmd.PostID)
	if cmd.PostID == "" {
		return Result{}, apperrors.New(apperrors.CodeInvalidArgument, "post id is required")
	}
	if !command.Known(cmd.Type) {
		return Result{}, apperrors.New(apperrors.CodePostCommandInvalid,
			fmt.Sprintf("unknown command type %q", cmd.Type))
	}

	release := e.locks.acquire(cmd.PostID)
	defer release()

	var lastErr error
	for attempt := 0; attempt < e.conflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		state, version, err := e.loadLocked(ctx, cmd.PostID)
		if err != nil {
			return Result{}, err
		}

		decision := post.Decide(state, cmd, e.policy)
		if !decision.Accepted() {
			return Result{}, rejectionError(decision)
		}

		appended, err := e.appendAll(ctx, cmd.PostID, decision.Events, version)
		if err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return Result{}, err
		}

		next, err := post.Replay(state, appended)
		if err != nil {
			return Result{}, err
		}

		e.maybeSnapshot(ctx, next, appended)
		if e.notifier != nil {
			for _, evt := range appended {
				e.notifier.EventAppended(evt)
			}
		}
		return Result{
			Events:  appended,
			State:   next,
			Version: appended[len(appended)-1].Seq,
		}, nil
	}

	return Result{}, apperrors.Wrap(apperrors.CodeVersionConflict,
		fmt.Sprintf("command lost %d append races for post %s", e.conflictRetries, cmd.PostID), lastErr)
}

// Load replays the current write-side state of a post and its version.
// The caller sees every event the journal holds, including ones the read
// model has not projected yet.
func (e *Engine) Load(ctx context.Context, postID string) (post.State, uint64, error) {
	if e == nil {
		return post.State{}, 0, fmt.Errorf("engine is not configured")
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return post.State{}, 0, apperrors.New(apperrors.CodeInvalidArgument, "post id is required")
	}

	release := e.locks.acquire(postID)
	defer release()
	return e.loadLocked(ctx, postID)
}

// loadLocked rebuilds state from the latest snapshot plus the journal tail.
// Callers must hold the post's lock.
func (e *Engine) loadLocked(ctx context.Context, postID string) (post.State, uint64, error) {
	var state post.State
	var version uint64

	if e.snapshots != nil {
		snapshot, err := e.snapshots.GetSnapshot(ctx, postID)
		switch {
		case err == nil:
			if unmarshalErr := json.Unmarshal(snapshot.StateJSON, &state); unmarshalErr != nil {
				// A corrupt snapshot falls back to full replay.
				log.Printf("engine: discard snapshot post_id=%s seq=%d: %v", postID, snapshot.Seq, unmarshalErr)
				state = post.State{}
			} else {
				version = snapshot.Seq
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return post.State{}, 0, fmt.Errorf("load snapshot: %w", err)
		}
	}

	for {
		events, err := e.events.ListEvents(ctx, postID, version, replayPageSize)
		if err != nil {
			return post.State{}, 0, fmt.Errorf("list events: %w", err)
		}
		if len(events) == 0 {
			return state, version, nil
		}
		next, err := post.Replay(state, events)
		if err != nil {
			return post.State{}, 0, err
		}
		state = next
		version = events[len(events)-1].Seq
	}
}

func (e *Engine) appendAll(ctx context.Context, postID string, pending []command.PendingEvent, version uint64) ([]event.Event, error) {
	shard := string(tag.ForPost(postID))
	now := e.clock().UTC()

	appended := make([]event.Event, 0, len(pending))
	for _, p := range pending {
		evt := event.Event{
			PostID:      postID,
			Tag:         shard,
			Type:        event.Type(p.Type),
			Timestamp:   now,
			PayloadJSON: p.PayloadJSON,
		}
		stored, err := e.events.AppendEvent(ctx, evt, version)
		if err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				return nil, err
			}
			return nil, fmt.Errorf("append event: %w", err)
		}
		appended = append(appended, stored)
		version = stored.Seq
	}
	return appended, nil
}

// maybeSnapshot stores the post-append state when the sequence crosses a
// snapshot boundary. Failures are logged and swallowed: snapshots only
// shorten future replays.
func (e *Engine) maybeSnapshot(ctx context.Context, state post.State, appended []event.Event) {
	if e.snapshots == nil || e.snapshotEvery <= 0 || len(appended) == 0 {
		return
	}
	last := appended[len(appended)-1]
	if last.Seq%uint64(e.snapshotEvery) != 0 {
		return
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		log.Printf("engine: skip snapshot post_id=%s: %v", last.PostID, err)
		return
	}
	if err := e.snapshots.PutSnapshot(ctx, storage.Snapshot{
		PostID:    last.PostID,
		Seq:       last.Seq,
		StateJSON: stateJSON,
		UpdatedAt: e.clock().UTC(),
	}); err != nil {
		log.Printf("engine: store snapshot post_id=%s: %v", last.PostID, err)
	}
}

func rejectionError(decision command.Decision) error {
	rejection := decision.Rejections[0]
	code := apperrors.Code(rejection.Code)
	if code == "" {
		code = apperrors.CodeUnknown
	}
	return apperrors.New(code, rejection.Message)
}
