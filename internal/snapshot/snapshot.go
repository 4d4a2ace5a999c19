// Package snapshot defines the boundary with the external game-state reader:
// supply readings, workshop/rank data and rare-material inventory.
package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/talgya/isle-planner/internal/catalog"
)

// ErrMalformed is returned when an export cannot be parsed.
var ErrMalformed = errors.New("malformed snapshot")

// Popularity is the in-game popularity reading for a product.
type Popularity uint8

const (
	PopularityLow Popularity = iota
	PopularityAverage
	PopularityHigh
	PopularityVeryHigh
)

// SupplyLevel is the in-game supply reading for a product.
type SupplyLevel uint8

const (
	SupplyNonexistent SupplyLevel = iota
	SupplyInsufficient
	SupplySufficient
	SupplySurplus
	SupplyOverflowing
)

// DemandShift is the in-game demand shift reading for a product.
type DemandShift uint8

const (
	ShiftPlummeting DemandShift = iota
	ShiftDecreasing
	ShiftNone
	ShiftIncreasing
	ShiftSkyrocketing
)

// ItemReading is one product's row of the supply/demand board.
type ItemReading struct {
	Item       catalog.ItemID `json:"item"`
	Popularity Popularity     `json:"popularity"`
	Supply     SupplyLevel    `json:"supply"`
	Shift      DemandShift    `json:"shift"`
	PeakDay    int            `json:"peak_day"` // -1 when the export carries no peak
	Peak       string         `json:"peak"`     // "strong", "weak" or "" when unknown
}

// Snapshot is a point-in-time read of the island.
type Snapshot struct {
	Day           int                        `json:"day"`
	IslandRank    int                        `json:"rank"`
	Workshops     int                        `json:"workshops"`
	WorkshopBonus int                        `json:"workshop_bonus"` // percent, 100/110/120
	MaxGroove     int                        `json:"max_groove"`
	Items         []ItemReading              `json:"items"`
	Inventory     map[catalog.MaterialID]int `json:"inventory"`
	ReadAt        time.Time                  `json:"read_at"`
}

// Empty reports whether the snapshot carries no usable supply data.
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Items) == 0
}

// HasInventory reports whether any inventory counts were read.
func (s *Snapshot) HasInventory() bool {
	return s != nil && len(s.Inventory) > 0
}

// Reader supplies snapshots on demand. Implementations may return stale data;
// callers re-read at the start of every day.
type Reader interface {
	Read(ctx context.Context) (*Snapshot, error)
}

// Static is a Reader that always returns the same snapshot.
type Static struct {
	Snap *Snapshot
}

// Read returns the stored snapshot.
func (s Static) Read(ctx context.Context) (*Snapshot, error) {
	if s.Snap == nil {
		return nil, ErrMalformed
	}
	return s.Snap, nil
}

// ParsePopularity maps an export string to a Popularity, defaulting to average.
func ParsePopularity(s string) Popularity {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "low":
		return PopularityLow
	case "high":
		return PopularityHigh
	case "veryhigh":
		return PopularityVeryHigh
	default:
		return PopularityAverage
	}
}

// ParseSupply maps an export string to a SupplyLevel, defaulting to sufficient.
func ParseSupply(s string) SupplyLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nonexistent":
		return SupplyNonexistent
	case "insufficient":
		return SupplyInsufficient
	case "surplus":
		return SupplySurplus
	case "overflowing":
		return SupplyOverflowing
	default:
		return SupplySufficient
	}
}

// ParseShift maps an export string to a DemandShift, defaulting to none.
func ParseShift(s string) DemandShift {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plummeting":
		return ShiftPlummeting
	case "decreasing":
		return ShiftDecreasing
	case "increasing":
		return ShiftIncreasing
	case "skyrocketing":
		return ShiftSkyrocketing
	default:
		return ShiftNone
	}
}
