// Package app composes the blog runtime: storage, engine, service, HTTP
// API, and the in-process projector shards.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/postfold/postfold/internal/blog/api/httpapi"
	"github.com/postfold/postfold/internal/blog/domain/post"
	"github.com/postfold/postfold/internal/blog/engine"
	"github.com/postfold/postfold/internal/blog/projection"
	blogservice "github.com/postfold/postfold/internal/blog/service"
	"github.com/postfold/postfold/internal/blog/storage/sqlite"
	"github.com/postfold/postfold/internal/blog/tag"
)

const serverShutdownTimeout = 10 * time.Second

// ServerConfig configures the blog server runtime.
type ServerConfig struct {
	// Addr is the HTTP listen address, e.g. ":8080".
	Addr string
	// EventsDBPath is the SQLite file backing the event journal.
	EventsDBPath string
	// ViewsDBPath is the SQLite file backing the read model.
	ViewsDBPath string
	// StrictCreate rejects creates for posts that already exist.
	StrictCreate bool
	// SnapshotEvery controls write-side snapshot frequency. Zero means the
	// engine default.
	SnapshotEvery int
	// PollInterval is the projector idle poll. Zero means the default.
	PollInterval time.Duration
	// BatchSize bounds projector fetches. Zero means the default.
	BatchSize int
	// DisableProjector skips the in-process shard runners, for deployments
	// that run a dedicated projector binary instead.
	DisableProjector bool
}

// Server hosts the blog HTTP API, the in-process projector shards, and the
// storage lifecycle.
type Server struct {
	listener   net.Listener
	httpServer *http.Server
	events     *sqlite.Store
	views      *sqlite.Store
	runners    []*projection.Runner
	closeOnce  sync.Once
}

// NewServer creates a configured blog server listening on cfg.Addr.
func NewServer(cfg ServerConfig) (*Server, error) {
	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}

	events, err := sqlite.OpenEvents(cfg.EventsDBPath)
	if err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("open events db: %w", err)
	}
	views, err := sqlite.OpenViews(cfg.ViewsDBPath)
	if err != nil {
		_ = listener.Close()
		_ = events.Close()
		return nil, fmt.Errorf("open views db: %w", err)
	}

	hub := blogservice.NewHub()
	waker := projection.NewWaker()
	eng, err := engine.New(engine.Config{
		Events:        events,
		Snapshots:     events,
		Policy:        post.Policy{StrictCreate: cfg.StrictCreate},
		SnapshotEvery: cfg.SnapshotEvery,
		Notifier:      blogservice.Notifiers{waker, hub},
	})
	if err != nil {
		_ = listener.Close()
		_ = events.Close()
		_ = views.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	service, err := blogservice.NewService(blogservice.Config{Engine: eng, Posts: views, Hub: hub})
	if err != nil {
		_ = listener.Close()
		_ = events.Close()
		_ = views.Close()
		return nil, fmt.Errorf("build service: %w", err)
	}
	handler, err := httpapi.NewHandler(service)
	if err != nil {
		_ = listener.Close()
		_ = events.Close()
		_ = views.Close()
		return nil, fmt.Errorf("build handler: %w", err)
	}

	var runners []*projection.Runner
	if !cfg.DisableProjector {
		applier, err := projection.NewApplier(views)
		if err != nil {
			_ = listener.Close()
			_ = events.Close()
			_ = views.Close()
			return nil, fmt.Errorf("build applier: %w", err)
		}
		for _, tg := range tag.All() {
			runner, err := projection.NewRunner(projection.RunnerConfig{
				Tag:          string(tg),
				Events:       events,
				Cursors:      views,
				Applier:      applier,
				BatchSize:    cfg.BatchSize,
				PollInterval: cfg.PollInterval,
				Wake:         waker.Wake(string(tg)),
			})
			if err != nil {
				_ = listener.Close()
				_ = events.Close()
				_ = views.Close()
				return nil, fmt.Errorf("build runner for %s: %w", tg, err)
			}
			runners = append(runners, runner)
		}
	}

	mux := http.NewServeMux()
	httpapi.RegisterRoutes(mux, handler)

	return &Server{
		listener:   listener,
		httpServer: &http.Server{Handler: mux},
		events:     events,
		views:      views,
		runners:    runners,
	}, nil
}

// Addr returns the listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// RunServer creates and serves a blog server until context cancellation.
func RunServer(ctx context.Context, cfg ServerConfig) error {
	server, err := NewServer(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve runs the HTTP server and shard runners until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, runner := range s.runners {
		wg.Add(1)
		go func(runner *projection.Runner) {
			defer wg.Done()
			if err := runner.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("blog server: projection runner stopped: %v", err)
			}
		}(runner)
	}

	log.Printf("blog server listening at %v", s.listener.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer shutdownCancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("blog server: shutdown: %v", err)
		}
		<-serveErr
		cancel()
		wg.Wait()
		return nil
	case err := <-serveErr:
		cancel()
		wg.Wait()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		if s.httpServer != nil {
			_ = s.httpServer.Close()
		}
		if s.listener != nil {
			_ = s.listener.Close()
		}
		if s.events != nil {
			if err := s.events.Close(); err != nil {
				log.Printf("blog server: close events db: %v", err)
			}
		}
		if s.views != nil {
			if err := s.views.Close(); err != nil {
				log.Printf("blog server: close views db: %v", err)
			}
		}
	})
}
