// Command workshopd serves the planner over HTTP and keeps the session in
// sync with the island snapshot.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/isle-planner/internal/api"
	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/engine"
	"github.com/talgya/isle-planner/internal/persistence"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "planner.yaml", "options file")
	poll := flag.Duration("poll", time.Minute, "snapshot poll interval")
	flag.Parse()

	// ── Configuration ─────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		slog.Error("invalid environment", "error", err)
		os.Exit(1)
	}
	if cfg.Server.AdminKey == "" {
		slog.Warn("WORKSHOP_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}

	// ── Database ──────────────────────────────────────────────────────
	db, err := persistence.Open(cfg.Server.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Server.DBPath)

	// ── Planner ───────────────────────────────────────────────────────
	cat, err := engine.LoadCatalog(cfg)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog loaded", "items", len(cat.Items), "materials", len(cat.Materials))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	planner, err := engine.New(ctx, cfg, cat, engine.NewReader(cfg, cat), db)
	if err != nil {
		slog.Error("failed to start planner", "error", err)
		os.Exit(1)
	}
	st := planner.Status()

	apiServer := &api.Server{
		Planner:         planner,
		Port:            cfg.Server.Port,
		AdminKey:        cfg.Server.AdminKey,
		SolvesPerMinute: cfg.Server.SolvesPerMinute,
	}
	apiServer.Start()

	fmt.Printf("\nPlanning %d workshop(s) x %d slots, cycle %d day %d.\n",
		st.Layout.Workshops, st.Layout.Slots, st.Totals.Cycle, st.Totals.Day)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	fmt.Println("Watching snapshots... (Ctrl+C to stop)")

	engine.WatchSnapshots(planner, *poll).Run(ctx)

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", "error", err)
	}
	fmt.Println("Planner stopped. Session saved.")
}
