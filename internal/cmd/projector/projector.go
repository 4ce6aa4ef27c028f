// Package projector parses projector flags and launches the read-side worker.
package projector

import (
	"context"
	"flag"
	"strings"
	"time"

	"github.com/postfold/postfold/internal/blog/projection"
	entrypoint "github.com/postfold/postfold/internal/platform/cmd"
)

// Config holds projector command configuration.
type Config struct {
	EventsDBPath string        `env:"POSTFOLD_PROJECTOR_EVENTS_DB_PATH" envDefault:"data/events.db"`
	ViewsDBPath  string        `env:"POSTFOLD_PROJECTOR_VIEWS_DB_PATH" envDefault:"data/views.db"`
	PollInterval time.Duration `env:"POSTFOLD_PROJECTOR_POLL_INTERVAL" envDefault:"0s"`
	BatchSize    int           `env:"POSTFOLD_PROJECTOR_BATCH_SIZE" envDefault:"0"`
	// Tags is a comma-separated shard subset, empty for all shards.
	Tags string `env:"POSTFOLD_PROJECTOR_TAGS" envDefault:""`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.EventsDBPath, "events-db", cfg.EventsDBPath, "Path to the events SQLite database")
	fs.StringVar(&cfg.ViewsDBPath, "views-db", cfg.ViewsDBPath, "Path to the views SQLite database")
	fs.StringVar(&cfg.Tags, "tags", cfg.Tags, "Comma-separated shard tags to consume (empty for all)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SplitTags parses the comma-separated tag list.
func SplitTags(raw string) []string {
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

// Run starts the projector worker.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProjector, func(context.Context) error {
		return projection.RunServer(ctx, projection.ServerConfig{
			EventsDBPath: cfg.EventsDBPath,
			ViewsDBPath:  cfg.ViewsDBPath,
			Tags:         SplitTags(cfg.Tags),
			PollInterval: cfg.PollInterval,
			BatchSize:    cfg.BatchSize,
		})
	})
}
