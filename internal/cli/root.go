// Package cli implements the workshop planner commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/engine"
	"github.com/talgya/isle-planner/internal/persistence"
)

var (
	configPath string
	dbPath     string
	formatFlag string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "workshop",
	Short:         "Island workshop schedule planner",
	Long:          "Ranks workshop schedules against a simulated market and tracks the week's progress. SQLite-backed, single binary.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "planner.yaml", "Options file")
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $WORKSHOP_DB or server.db_path)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "text", "Output format: json or text")
}

// openPlanner loads the options and resumes the stored session.
func openPlanner(ctx context.Context) (*engine.Planner, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, nil, err
	}
	if dbPath != "" {
		cfg.Server.DBPath = dbPath
	}

	db, err := persistence.Open(cfg.Server.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cat, err := engine.LoadCatalog(cfg)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	p, err := engine.New(ctx, cfg, cat, engine.NewReader(cfg, cat), db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return p, func() { db.Close() }, nil
}

func jsonOutput() bool {
	return formatFlag == "json"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
