// Package lambdafn exposes a stateless solve as an AWS Lambda function URL.
// Each call carries its own snapshot export; nothing is stored.
package lambdafn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/engine"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/snapshot"
	"github.com/talgya/isle-planner/internal/solver"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

type solveRequest struct {
	Snapshot json.RawMessage `json:"snapshot"`
	Hints    map[string]bool `json:"hints"`
	Groove   int             `json:"groove"`

	// Optional overrides of the deployed options.
	Suggestions    int      `json:"suggestions"`
	MaterialWeight *float64 `json:"material_weight"`
	Lookahead      *int     `json:"lookahead_days"`
}

type solveResponse struct {
	Day     int              `json:"day"`
	Pending []string         `json:"pending_hints"`
	Days    []engine.DayView `json:"days"`
}

// Handler solves one snapshot per request.
type Handler struct {
	Config  config.Config
	Catalog *catalog.Catalog
}

// Handle serves a function URL invocation.
func (h *Handler) Handle(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(400, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req solveRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errResp(400, "invalid JSON: "+err.Error())
	}
	if len(req.Snapshot) == 0 {
		return errResp(400, "missing snapshot field")
	}

	cfg := h.Config
	if req.Suggestions > 0 {
		cfg.Suggestions = min(req.Suggestions, 20)
	}
	if req.MaterialWeight != nil {
		cfg.MaterialWeight = *req.MaterialWeight
	}
	if req.Lookahead != nil {
		cfg.LookaheadDays = *req.Lookahead
	}
	if err := cfg.Validate(); err != nil {
		return errResp(400, err.Error())
	}

	snap, err := snapshot.Parse(req.Snapshot, h.Catalog)
	if err != nil {
		return errResp(422, err.Error())
	}
	hints := make(market.Hints, len(req.Hints))
	for name, strong := range req.Hints {
		id, ok := h.Catalog.ItemByName(name)
		if !ok {
			return errResp(400, fmt.Sprintf("unknown product %q", name))
		}
		hints[id] = strong
	}

	resp, err := h.solve(cfg, snap, hints, req.Groove)
	switch {
	case errors.Is(err, market.ErrNoMarketData):
		return errResp(422, "snapshot has no supply readings")
	case errors.Is(err, combo.ErrSearchTooLarge):
		return errResp(422, err.Error())
	case err != nil:
		slog.Error("solve failed", "error", err)
		return errResp(500, "solve failed")
	}

	respJSON, _ := json.Marshal(resp)
	return events.LambdaFunctionURLResponse{StatusCode: 200, Headers: jsonHeader, Body: string(respJSON)}, nil
}

func (h *Handler) solve(cfg config.Config, snap *snapshot.Snapshot, hints market.Hints, groove int) (solveResponse, error) {
	model := market.NewModel(h.Catalog, cfg.Market)
	state, pending, err := model.Initialize(snap, hints)
	if err != nil {
		return solveResponse{}, err
	}

	workshops := cfg.Workshops
	if workshops == 0 {
		workshops = max(snap.Workshops, 1)
	}
	maxGroove := cfg.MaxGroove
	if snap.MaxGroove > 0 {
		maxGroove = snap.MaxGroove
	}
	var inventory map[catalog.MaterialID]int
	if snap.HasInventory() {
		inventory = snap.Inventory
	}

	slv := solver.New(evaluate.New(model, cfg.Slots), cfg.SolverOptions(workshops))
	days, err := slv.Solve(solver.Request{
		Day:       snap.Day,
		State:     state,
		Modifiers: evaluate.Modifiers{WorkshopBonus: snap.WorkshopBonus, Groove: min(max(groove, 0), maxGroove)},
		MaxGroove: maxGroove,
		Inventory: inventory,
	})
	if err != nil {
		return solveResponse{}, err
	}
	return solveResponse{
		Day:     snap.Day,
		Pending: h.Catalog.ItemNames(pending),
		Days:    engine.Present(cfg, h.Catalog, days),
	}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}
