// Command lunasim runs the Luna behavioral simulation engine.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/talgya/luna-sim/internal/analytics"
	"github.com/talgya/luna-sim/internal/api"
	"github.com/talgya/luna-sim/internal/config"
	"github.com/talgya/luna-sim/internal/domain"
	"github.com/talgya/luna-sim/internal/engine"
	"github.com/talgya/luna-sim/internal/environment"
	"github.com/talgya/luna-sim/internal/persistence"
	"github.com/talgya/luna-sim/internal/stream"
)

const simStateKey = "sim_state"

func main() {
	configPath := flag.String("config", "", "path to simulation.yaml (empty = defaults)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg.Logging)

	slog.Info("Luna behavioral simulation engine")

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if cfg.Stream.DBPath != "" {
		os.MkdirAll(filepath.Dir(cfg.Stream.DBPath), 0755)
		db, err = persistence.Open(cfg.Stream.DBPath)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("database opened", "path", cfg.Stream.DBPath)
	}

	// ── Event bus ─────────────────────────────────────────────────────
	var (
		backend stream.Backend
		source  analytics.EventSource
	)
	switch cfg.Stream.Backend {
	case "sqlite":
		sb := persistence.NewStreamBackend(db, cfg.Stream.SQLiteCap)
		backend, source = sb, sb
	default:
		mb := stream.NewMemoryBackend(cfg.Stream.MemoryCap)
		backend, source = mb, mb
	}
	bus := stream.NewBus(backend)
	slog.Info("event bus ready", "backend", cfg.Stream.Backend, "channels", len(stream.Channels))

	// ── Archive ───────────────────────────────────────────────────────
	archCtx, stopArchive := context.WithCancel(context.Background())
	defer stopArchive()
	if dir := cfg.Stream.ArchiveDir; dir != "" {
		os.MkdirAll(dir, 0755)
		arch := stream.NewArchive(dir)
		defer arch.Close()
		for _, ch := range stream.Channels {
			sub, err := bus.Subscribe(ch.Name)
			if err != nil {
				slog.Error("archive subscribe failed", "channel", ch.Name, "error", err)
				continue
			}
			go arch.Pump(archCtx, sub)
		}
		slog.Info("event archive enabled", "dir", dir)
	}

	// ── Orchestrator ──────────────────────────────────────────────────
	var snapshots engine.SnapshotStore
	if db != nil {
		snapshots = db
	}
	orch := engine.New(cfg.Engine(), bus, domain.NewStore(), environment.NewProvider(cfg.Simulation.Seed), snapshots)

	// Resume from the last saved state when one exists.
	if db != nil {
		if state, err := db.GetMeta(simStateKey); err == nil {
			if err := orch.RestoreState([]byte(state)); err != nil {
				slog.Error("failed to restore saved state", "error", err)
			} else {
				sum := orch.Summary()
				slog.Info("state restored", "tick", sum.Tick, "sim_time", sum.SimTime, "actors", sum.TotalActors)
			}
		} else {
			slog.Info("no saved state, starting fresh")
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	adminKey := cfg.Server.AdminKey
	if env := os.Getenv("LUNASIM_ADMIN_KEY"); env != "" {
		adminKey = env
	}
	if adminKey == "" {
		slog.Warn("no admin key configured, command endpoints disabled")
	}
	relayKey := os.Getenv("LUNASIM_RELAY_KEY")
	if relayKey == "" {
		slog.Warn("LUNASIM_RELAY_KEY not set, SSE streaming disabled")
	}

	apiServer := &api.Server{
		Orch:          orch,
		Bus:           bus,
		Source:        source,
		Port:          cfg.Server.Port,
		AdminKey:      adminKey,
		RelayKey:      relayKey,
		RatePerSecond: cfg.Server.RatePerSecond,
		RateBurst:     cfg.Server.RateBurst,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		orch.Shutdown()
	}()

	fmt.Printf("Luna is live: POST {\"command\":\"start\"} to begin.\n")
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Running... (Ctrl+C to stop)")

	orch.Run()
	stopArchive()

	// Final save on shutdown.
	if db != nil {
		state, err := orch.SnapshotState()
		if err != nil {
			slog.Error("final snapshot failed", "error", err)
		} else if err := db.SaveMeta(simStateKey, string(state)); err != nil {
			slog.Error("final save failed", "error", err)
		} else {
			slog.Info("state saved")
		}
	}

	fmt.Println("Simulation stopped.")
}

func setupLogging(lc config.LoggingConfig) {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
