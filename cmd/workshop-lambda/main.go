// Command workshop-lambda serves stateless solves from an AWS Lambda
// function URL.
package main

import (
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/engine"
	"github.com/talgya/isle-planner/internal/lambdafn"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(os.Getenv("WORKSHOP_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cat, err := engine.LoadCatalog(cfg)
	if err != nil {
		slog.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	h := &lambdafn.Handler{Config: cfg, Catalog: cat}
	lambda.Start(h.Handle)
}
