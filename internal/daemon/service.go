// Package daemon keeps resolved assemblies fresh: a file watcher
// re-resolves after topic changes, and an optional schedule forces
// periodic full re-resolutions. Results stay exposed through the
// adapter; run summaries go out over NATS when configured.
package daemon

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bonzini/db4sphinx/internal/adapter"
	"github.com/bonzini/db4sphinx/internal/config"
	"github.com/bonzini/db4sphinx/internal/events"
	"github.com/bonzini/db4sphinx/internal/inventory"
)

// Service owns the watch/schedule loop for one configuration.
type Service struct {
	cfg       *config.Config
	adapter   *adapter.Adapter
	store     *inventory.Store  // optional
	publisher *events.Publisher // optional

	watcher   *Watcher
	scheduler *Scheduler

	mu        sync.Mutex
	resolving bool
}

// NewService wires a daemon service. store and publisher may be nil.
func NewService(cfg *config.Config, ad *adapter.Adapter, store *inventory.Store, publisher *events.Publisher) *Service {
	return &Service{cfg: cfg, adapter: ad, store: store, publisher: publisher}
}

// Run resolves every configured assembly once, then watches until ctx is
// canceled.
func (s *Service) Run(ctx context.Context) error {
	s.resolveAll(ctx)

	watcher, err := NewWatcher(s.cfg.BaseDir, s.cfg.Watch.Debounce, func() {
		s.resolveAll(ctx)
	})
	if err != nil {
		return err
	}
	s.watcher = watcher
	if err := s.watcher.Start(ctx); err != nil {
		return err
	}
	defer s.watcher.Stop()

	if s.cfg.Watch.FullResolveInterval > 0 {
		scheduler, err := NewScheduler()
		if err != nil {
			return err
		}
		s.scheduler = scheduler
		if _, err := scheduler.SchedulePeriodicResolve(s.cfg.Watch.FullResolveInterval, func() {
			s.resolveAll(ctx)
		}); err != nil {
			return err
		}
		scheduler.Start()
		defer func() { _ = scheduler.Stop() }()
	}

	<-ctx.Done()
	return ctx.Err()
}

// resolveAll re-resolves every configured assembly. Overlapping triggers
// collapse: a resolution already in flight swallows the new one, the
// next debounced change will catch up.
func (s *Service) resolveAll(ctx context.Context) {
	s.mu.Lock()
	if s.resolving {
		s.mu.Unlock()
		return
	}
	s.resolving = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.resolving = false
		s.mu.Unlock()
	}()

	for _, manifest := range s.cfg.ManifestPaths() {
		run, err := s.adapter.ResolveAssembly(ctx, manifest)
		if err != nil {
			slog.Error("assembly re-resolution failed", "manifest", manifest, "error", err)
		} else if s.store != nil {
			if err := s.store.Replace(ctx, manifest, run.Result.Registry); err != nil {
				slog.Warn("failed to update inventory", "manifest", manifest, "error", err)
			}
		}
		if s.publisher != nil {
			ev := events.RunEvent{
				RunID:     run.ID,
				Manifest:  manifest,
				Timestamp: time.Now().UTC(),
				Failed:    err != nil,
			}
			if run.Result != nil {
				ev.Documents = len(run.Result.Documents)
				ev.Diagnostics = len(run.Result.Diags.All())
				ev.Resolved = run.Resolved
				ev.Unresolved = run.Unresolved
			}
			s.publisher.Publish(ev)
		}
	}
}
