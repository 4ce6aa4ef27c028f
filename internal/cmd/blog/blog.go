// Package blog parses blog service flags and launches the service.
package blog

import (
	"context"
	"flag"
	"time"

	"github.com/postfold/postfold/internal/blog/app"
	entrypoint "github.com/postfold/postfold/internal/platform/cmd"
)

// Config holds blog command configuration.
type Config struct {
	Addr          string        `env:"POSTFOLD_BLOG_ADDR" envDefault:":8080"`
	EventsDBPath  string        `env:"POSTFOLD_BLOG_EVENTS_DB_PATH" envDefault:"data/events.db"`
	ViewsDBPath   string        `env:"POSTFOLD_BLOG_VIEWS_DB_PATH" envDefault:"data/views.db"`
	StrictCreate  bool          `env:"POSTFOLD_BLOG_STRICT_CREATE" envDefault:"false"`
	SnapshotEvery int           `env:"POSTFOLD_BLOG_SNAPSHOT_EVERY" envDefault:"0"`
	PollInterval  time.Duration `env:"POSTFOLD_BLOG_POLL_INTERVAL" envDefault:"0s"`
	BatchSize     int           `env:"POSTFOLD_BLOG_BATCH_SIZE" envDefault:"0"`
	// NoProjector turns off the in-process shard runners, for deployments
	// running the dedicated projector binary.
	NoProjector bool `env:"POSTFOLD_BLOG_NO_PROJECTOR" envDefault:"false"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The blog HTTP listen address")
	fs.StringVar(&cfg.EventsDBPath, "events-db", cfg.EventsDBPath, "Path to the events SQLite database")
	fs.StringVar(&cfg.ViewsDBPath, "views-db", cfg.ViewsDBPath, "Path to the views SQLite database")
	fs.BoolVar(&cfg.StrictCreate, "strict-create", cfg.StrictCreate, "Reject creates for posts that already exist")
	fs.BoolVar(&cfg.NoProjector, "no-projector", cfg.NoProjector, "Disable the in-process projector")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the blog HTTP API service.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceBlog, func(context.Context) error {
		return app.RunServer(ctx, app.ServerConfig{
			Addr:             cfg.Addr,
			EventsDBPath:     cfg.EventsDBPath,
			ViewsDBPath:      cfg.ViewsDBPath,
			StrictCreate:     cfg.StrictCreate,
			SnapshotEvery:    cfg.SnapshotEvery,
			PollInterval:     cfg.PollInterval,
			BatchSize:        cfg.BatchSize,
			DisableProjector: cfg.NoProjector,
		})
	})
}
