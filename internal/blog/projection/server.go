package projection

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/postfold/postfold/internal/blog/storage/sqlite"
	"github.com/postfold/postfold/internal/blog/tag"
)

// ServerConfig configures a standalone projector process.
type ServerConfig struct {
	// EventsDBPath is the SQLite file holding the event journal.
	EventsDBPath string
	// ViewsDBPath is the SQLite file holding the read model.
	ViewsDBPath string
	// Tags restricts this process to a subset of shards. Empty means all,
	// so several projector processes can split the shards between them.
	Tags []string
	// PollInterval is the idle poll between empty fetches. Zero means the
	// default. A standalone projector has no wake signal from the write
	// side and relies on polling alone.
	PollInterval time.Duration
	// BatchSize bounds each fetch. Zero means the default.
	BatchSize int
}

// RunServer consumes the configured shards until ctx is canceled.
func RunServer(ctx context.Context, cfg ServerConfig) error {
	shards := cfg.Tags
	if len(shards) == 0 {
		for _, tg := range tag.All() {
			shards = append(shards, string(tg))
		}
	}

	events, err := sqlite.OpenEvents(cfg.EventsDBPath)
	if err != nil {
		return fmt.Errorf("open events db: %w", err)
	}
	defer func() {
		if err := events.Close(); err != nil {
			log.Printf("projector: close events db: %v", err)
		}
	}()
	views, err := sqlite.OpenViews(cfg.ViewsDBPath)
	if err != nil {
		return fmt.Errorf("open views db: %w", err)
	}
	defer func() {
		if err := views.Close(); err != nil {
			log.Printf("projector: close views db: %v", err)
		}
	}()

	applier, err := NewApplier(views)
	if err != nil {
		return fmt.Errorf("build applier: %w", err)
	}

	runners := make([]*Runner, 0, len(shards))
	for _, shard := range shards {
		runner, err := NewRunner(RunnerConfig{
			Tag:          shard,
			Events:       events,
			Cursors:      views,
			Applier:      applier,
			BatchSize:    cfg.BatchSize,
			PollInterval: cfg.PollInterval,
		})
		if err != nil {
			return fmt.Errorf("build runner for %s: %w", shard, err)
		}
		runners = append(runners, runner)
	}

	log.Printf("projector consuming %d shard(s)", len(runners))
	var wg sync.WaitGroup
	for _, runner := range runners {
		wg.Add(1)
		go func(runner *Runner) {
			defer wg.Done()
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("projector: runner stopped: %v", err)
			}
		}(runner)
	}
	wg.Wait()
	return nil
}
