// Command db4sphinx resolves DocBook assemblies into document trees and
// TOC trees for a documentation toolchain.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/bonzini/db4sphinx/internal/adapter"
	"github.com/bonzini/db4sphinx/internal/assembly"
	"github.com/bonzini/db4sphinx/internal/build"
	"github.com/bonzini/db4sphinx/internal/config"
	"github.com/bonzini/db4sphinx/internal/daemon"
	"github.com/bonzini/db4sphinx/internal/events"
	"github.com/bonzini/db4sphinx/internal/inventory"
	"github.com/bonzini/db4sphinx/internal/mapping"
	"github.com/bonzini/db4sphinx/internal/metrics"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"db4sphinx.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Resolve struct {
	} `cmd:"" help:"Resolve the configured assemblies once and report diagnostics"`

	Lookup struct {
		ID string `arg:"" help:"Declared id to look up in the persistent inventory"`
	} `cmd:"" help:"Look up an id in the persistent inventory"`

	Daemon struct {
		MetricsAddr string `help:"Listen address for Prometheus metrics (empty disables)"`
	} `cmd:"" help:"Watch the base directory and keep assemblies resolved"`
}

func main() {
	kctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	var exitCode int
	switch kctx.Command() {
	case "resolve":
		exitCode = runResolve(cfg)
	case "lookup <id>":
		exitCode = runLookup(cfg, CLI.Lookup.ID)
	case "daemon":
		exitCode = runDaemon(cfg, CLI.Daemon.MetricsAddr)
	}
	os.Exit(exitCode)
}

func newAdapter(cfg *config.Config, rec metrics.Recorder) *adapter.Adapter {
	builder := build.New(mapping.DocBook(),
		build.WithPassthroughPolicy(build.PassthroughPolicy(cfg.Passthrough)))
	resolver := assembly.NewResolver(cfg.BaseDir, builder,
		assembly.WithConcurrency(cfg.Concurrency),
		assembly.WithRecorder(rec))
	return adapter.New(resolver)
}

func runResolve(cfg *config.Config) int {
	ctx := context.Background()
	ad := newAdapter(cfg, metrics.NoopRecorder{})

	var store *inventory.Store
	if cfg.InventoryPath != "" {
		var err error
		store, err = inventory.Open(cfg.InventoryPath)
		if err != nil {
			slog.Error("failed to open inventory", "error", err)
			return 1
		}
		defer store.Close()
	}

	failed := false
	for _, manifest := range cfg.ManifestPaths() {
		run, err := ad.ResolveAssembly(ctx, manifest)
		if err != nil {
			failed = true
			continue
		}
		printTOC(run.Result.TOC, 0)
		if store != nil {
			if err := store.Replace(ctx, manifest, run.Result.Registry); err != nil {
				slog.Warn("failed to update inventory", "manifest", manifest, "error", err)
			}
		}
	}

	for _, d := range ad.Diagnostics() {
		fmt.Fprintln(os.Stderr, d.String())
	}
	if failed {
		return 1
	}
	return 0
}

func printTOC(entry *assembly.TOCEntry, depth int) {
	for i := 0; i < depth; i++ {
		fmt.Print("  ")
	}
	switch {
	case entry.Broken:
		fmt.Printf("- %s (missing)\n", entry.Title)
	case entry.Path != "":
		fmt.Printf("- %s (%s)\n", entry.Title, entry.Path)
	default:
		fmt.Printf("- %s\n", entry.Title)
	}
	for _, c := range entry.Children {
		printTOC(c, depth+1)
	}
}

func runLookup(cfg *config.Config, id string) int {
	if cfg.InventoryPath == "" {
		slog.Error("no inventory_path configured")
		return 1
	}
	store, err := inventory.Open(cfg.InventoryPath)
	if err != nil {
		slog.Error("failed to open inventory", "error", err)
		return 1
	}
	defer store.Close()

	entry, ok, err := store.Lookup(context.Background(), id)
	if err != nil {
		slog.Error("inventory lookup failed", "error", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "id %q not found\n", id)
		return 1
	}
	fmt.Printf("%s\t%s\n", entry.ID, entry.File)
	return 0
}

func runDaemon(cfg *config.Config, metricsAddr string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rec := metrics.Recorder(metrics.NoopRecorder{})
	if metricsAddr != "" {
		registry := prom.NewRegistry()
		rec = metrics.NewPrometheusRecorder(registry)
		go func() {
			slog.Info("serving metrics", "addr", metricsAddr)
			if err := http.ListenAndServe(metricsAddr, metrics.HTTPHandler(registry)); err != nil {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	ad := newAdapter(cfg, rec)

	var store *inventory.Store
	if cfg.InventoryPath != "" {
		var err error
		store, err = inventory.Open(cfg.InventoryPath)
		if err != nil {
			slog.Error("failed to open inventory", "error", err)
			return 1
		}
		defer store.Close()
	}

	var publisher *events.Publisher
	if cfg.Events.Enabled {
		var err error
		publisher, err = events.NewPublisher(cfg.Events)
		if err != nil {
			slog.Error("failed to connect event publisher", "error", err)
			return 1
		}
		defer publisher.Close()
	}

	svc := daemon.NewService(cfg, ad, store, publisher)
	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		slog.Error("daemon failed", "error", err)
		return 1
	}
	return 0
}
