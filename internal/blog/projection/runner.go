package projection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/postfold/postfold/internal/blog/domain/event"
	"github.com/postfold/postfold/internal/blog/storage"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 200 * time.Millisecond
	retryBaseDelay      = 100 * time.Millisecond
	retryMaxDelay       = 5 * time.Minute
)

// RunnerConfig configures one shard consumer.
type RunnerConfig struct {
	// Tag is the shard this runner owns.
	Tag string
	// Events is the journal to consume.
	Events storage.EventStore
	// Cursors loads the committed cursor at startup.
	Cursors storage.CursorStore
	// Applier projects events.
	Applier *Applier
	// BatchSize bounds each fetch. Zero means the default.
	BatchSize int
	// PollInterval is the idle sleep between empty fetches. Zero means the
	// default.
	PollInterval time.Duration
	// Wake optionally interrupts the idle sleep when new events arrive.
	Wake <-chan struct{}
}

// Runner consumes one shard of the journal and keeps the read model current.
type Runner struct {
	tag          string
	events       storage.EventStore
	cursors      storage.CursorStore
	applier      *Applier
	batchSize    int
	pollInterval time.Duration
	wake         <-chan struct{}
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) (*Runner, error) {
	if cfg.Tag == "" {
		return nil, fmt.Errorf("tag is required")
	}
	if cfg.Events == nil {
		return nil, fmt.Errorf("event store is required")
	}
	if cfg.Cursors == nil {
		return nil, fmt.Errorf("cursor store is required")
	}
	if cfg.Applier == nil {
		return nil, fmt.Errorf("applier is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Runner{
		tag:          cfg.Tag,
		events:       cfg.Events,
		cursors:      cfg.Cursors,
		applier:      cfg.Applier,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		wake:         cfg.Wake,
	}, nil
}

// Run consumes the shard until ctx is canceled. It resumes from the
// committed cursor, so restarts re-process at most the events of one
// interrupted batch, and those replays are absorbed by the idempotent apply.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil {
		return fmt.Errorf("runner is not configured")
	}

	position, err := r.cursors.GetCursor(ctx, r.tag)
	if err != nil {
		return fmt.Errorf("load cursor for %s: %w", r.tag, err)
	}
	log.Printf("projection: runner starting tag=%s position=%d", r.tag, position)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := r.events.ListEventsByTag(ctx, r.tag, position, r.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("projection: fetch failed tag=%s position=%d: %v", r.tag, position, err)
			if err := r.sleep(ctx, r.pollInterval); err != nil {
				return err
			}
			continue
		}

		if len(batch) == 0 {
			if err := r.sleep(ctx, r.pollInterval); err != nil {
				return err
			}
			continue
		}

		for _, evt := range batch {
			if err := r.applyWithRetry(ctx, evt); err != nil {
				return err
			}
			position = evt.Position
		}
	}
}

// applyWithRetry retries one event with exponential backoff until it applies
// or ctx ends. The same event is retried, never skipped: the view must not
// develop holes just because storage had a bad moment.
func (r *Runner) applyWithRetry(ctx context.Context, evt event.Event) error {
	delay := retryBaseDelay
	for {
		err := r.applier.Apply(ctx, evt)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		log.Printf("projection: apply failed tag=%s position=%d retry_in=%s: %v", r.tag, evt.Position, delay, err)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
		if delay > retryMaxDelay {
			delay = retryMaxDelay
		}
	}
}

// sleep waits for d, a wake signal, or cancellation, whichever comes first.
func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-r.wake:
		return nil
	}
}
