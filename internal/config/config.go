// Package config loads the planner options file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/market"
	"github.com/talgya/isle-planner/internal/session"
	"github.com/talgya/isle-planner/internal/solver"
)

// SnapshotConfig selects where island readings come from.
type SnapshotConfig struct {
	// Source is "file", "http" or "synthetic".
	Source   string        `yaml:"source"`
	Path     string        `yaml:"path,omitempty"`
	URL      string        `yaml:"url,omitempty"`
	Token    string        `yaml:"-"` // environment only
	CacheTTL time.Duration `yaml:"cache_ttl,omitempty"`
	Seed     int64         `yaml:"seed,omitempty"`
}

// ServerConfig holds the HTTP daemon settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	AdminKey string `yaml:"-"` // environment only
	// SolvesPerMinute rate-limits the solve endpoint per client.
	SolvesPerMinute int `yaml:"solves_per_minute"`
}

// Config models planner.yaml.
type Config struct {
	Workshops             int      `yaml:"workshops"` // 0 takes the count from the snapshot
	SlotsPerWorkshop      int      `yaml:"slots_per_workshop"`
	Suggestions           int      `yaml:"suggestions"`
	MaterialWeight        float64  `yaml:"material_weight"`
	ShowNet               bool     `yaml:"show_net"`
	RankBy                string   `yaml:"rank_by"`
	LookaheadDays         int      `yaml:"lookahead_days"`
	RequireOwnedMaterials bool     `yaml:"require_owned_materials"`
	EnforceRestDay        bool     `yaml:"enforce_rest_day"`
	AllowOverwritingDays  bool     `yaml:"allow_overwriting_days"`
	HiddenKeywords        []string `yaml:"hidden_keywords"`
	MirrorWorkshops       bool     `yaml:"mirror_workshops"`
	MaxCombinations       int      `yaml:"max_combinations"`
	MaxGroove             int      `yaml:"max_groove"`
	WorkshopBonus         int      `yaml:"workshop_bonus"`

	// Catalog is an optional YAML catalog replacing the built-in one.
	Catalog  string           `yaml:"catalog,omitempty"`
	Snapshot SnapshotConfig   `yaml:"snapshot"`
	Server   ServerConfig     `yaml:"server"`
	Market   market.Policy    `yaml:"market"`
	Slots    combo.SlotPolicy `yaml:"slots"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Workshops:        3,
		SlotsPerWorkshop: 6,
		Suggestions:      5,
		MaterialWeight:   0.5,
		ShowNet:          true,
		RankBy:           string(solver.RankNet),
		LookaheadDays:    2,
		EnforceRestDay:   true,
		MirrorWorkshops:  true,
		MaxCombinations:  250000,
		MaxGroove:        35,
		WorkshopBonus:    100,
		Snapshot:         SnapshotConfig{Source: "synthetic", Seed: 42},
		Server: ServerConfig{
			Port:            8080,
			DBPath:          "data/planner.db",
			SolvesPerMinute: 30,
		},
		Market: market.DefaultPolicy(),
		Slots:  combo.DefaultSlotPolicy(),
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides settings from WORKSHOP_* environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("WORKSHOP_DB"); v != "" {
		c.Server.DBPath = v
	}
	if v := getenv("WORKSHOP_ADMIN_KEY"); v != "" {
		c.Server.AdminKey = v
	}
	if v := getenv("WORKSHOP_SNAPSHOT"); v != "" {
		c.Snapshot.Source = "file"
		c.Snapshot.Path = v
	}
	if v := getenv("WORKSHOP_SNAPSHOT_URL"); v != "" {
		c.Snapshot.Source = "http"
		c.Snapshot.URL = v
	}
	if v := getenv("WORKSHOP_SNAPSHOT_TOKEN"); v != "" {
		c.Snapshot.Token = v
	}
	if v := getenv("WORKSHOP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: WORKSHOP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return c.Validate()
}

func (c *Config) normalize() {
	c.RankBy = strings.ToLower(strings.TrimSpace(c.RankBy))
	c.Snapshot.Source = strings.ToLower(strings.TrimSpace(c.Snapshot.Source))
	for i, k := range c.HiddenKeywords {
		c.HiddenKeywords[i] = strings.ToLower(strings.TrimSpace(k))
	}
}

// Validate checks every option range.
func (c Config) Validate() error {
	if c.Workshops < 0 || c.Workshops > 6 {
		return fmt.Errorf("workshops must be between 0 and 6")
	}
	if c.SlotsPerWorkshop < 1 || c.SlotsPerWorkshop > 12 {
		return fmt.Errorf("slots_per_workshop must be between 1 and 12")
	}
	if c.Suggestions < 1 {
		return fmt.Errorf("suggestions must be >= 1")
	}
	if c.MaterialWeight < 0 || c.MaterialWeight > 1 {
		return fmt.Errorf("material_weight must be within [0,1]")
	}
	switch solver.RankBy(c.RankBy) {
	case solver.RankNet, solver.RankGross:
	default:
		return fmt.Errorf("rank_by must be 'net' or 'gross'")
	}
	if c.LookaheadDays < 0 || c.LookaheadDays > market.DaysPerCycle-1 {
		return fmt.Errorf("lookahead_days must be between 0 and 6")
	}
	if c.MaxCombinations < 0 {
		return fmt.Errorf("max_combinations must be >= 0")
	}
	switch c.Snapshot.Source {
	case "synthetic":
	case "file":
		if c.Snapshot.Path == "" {
			return fmt.Errorf("snapshot.path is required for file snapshots")
		}
	case "http":
		if !strings.HasPrefix(c.Snapshot.URL, "http://") && !strings.HasPrefix(c.Snapshot.URL, "https://") {
			return fmt.Errorf("snapshot.url must be an http(s) URL for http snapshots")
		}
	default:
		return fmt.Errorf("snapshot.source must be 'file', 'http' or 'synthetic'")
	}
	if c.Slots.FirstYield <= 0 || c.Slots.LaterYield <= c.Slots.FirstYield {
		return fmt.Errorf("slots: first_yield must be positive and below later_yield")
	}
	switch c.Slots.Scope {
	case combo.BatchPerWorkshop, combo.BatchPerDay:
	default:
		return fmt.Errorf("slots.batch_scope must be 'workshop' or 'day'")
	}
	switch c.Slots.Chain {
	case combo.ChainNone, combo.ChainCategory:
	default:
		return fmt.Errorf("slots.chain must be 'none' or 'category'")
	}
	if r := c.Market.RecoveryRate; r <= 0 || r > 1 {
		return fmt.Errorf("market.recovery_rate must be within (0,1]")
	}
	if c.Market.SupplyFloor > c.Market.SupplyCeiling {
		return fmt.Errorf("market.supply_floor must not exceed supply_ceiling")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range")
	}
	return nil
}

// SolverOptions converts the config for a layout of workshops.
func (c Config) SolverOptions(workshops int) solver.Options {
	return solver.Options{
		Workshops:       workshops,
		Slots:           c.SlotsPerWorkshop,
		Suggestions:     c.Suggestions,
		MaterialWeight:  c.MaterialWeight,
		RankBy:          solver.RankBy(c.RankBy),
		Lookahead:       c.LookaheadDays,
		EnforceRestDay:  c.EnforceRestDay,
		RequireOwned:    c.RequireOwnedMaterials,
		Mirror:          c.MirrorWorkshops,
		MaxCombinations: c.MaxCombinations,
	}
}

// SessionOptions converts the config for a session.
func (c Config) SessionOptions(workshops int) session.Options {
	return session.Options{
		Solver:          c.SolverOptions(workshops),
		AllowOverwrite:  c.AllowOverwritingDays,
		MaxGroove:       c.MaxGroove,
		DefaultBonusPct: c.WorkshopBonus,
	}
}

// Hidden reports whether a product name matches a hidden keyword. Only the
// presentation layer uses it.
func (c Config) Hidden(name string) bool {
	lower := strings.ToLower(name)
	for _, k := range c.HiddenKeywords {
		if k != "" && strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
