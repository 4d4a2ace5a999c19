// Package market models how each product's value evolves from day to day:
// a supply level that our own crafting depletes and idle days recover, and a
// weekly demand cycle whose peak strength may be unknown until the player hints it.
package market

import (
	"errors"
	"math"
	"slices"

	"github.com/talgya/isle-planner/internal/catalog"
)

// DaysPerCycle is the length of the workshop week.
const DaysPerCycle = 7

// ErrNoMarketData is returned when no usable supply reading is available.
var ErrNoMarketData = errors.New("no market data")

// Cycle is the tri-state knowledge of an item's demand peak strength.
type Cycle uint8

const (
	CycleUnresolved Cycle = iota
	CycleWeak
	CycleStrong
)

func (c Cycle) String() string {
	switch c {
	case CycleWeak:
		return "weak"
	case CycleStrong:
		return "strong"
	default:
		return "unresolved"
	}
}

// Policy holds the calibrated curve constants. The in-game values are not
// documented, so every number here is a tunable.
type Policy struct {
	// Supply multiplier = clamp(SupplyCeiling - SupplyStep*units, SupplyFloor, SupplyCeiling).
	SupplyCeiling float64 `yaml:"supply_ceiling" json:"supply_ceiling"`
	SupplyStep    float64 `yaml:"supply_step" json:"supply_step"`
	SupplyFloor   float64 `yaml:"supply_floor" json:"supply_floor"`

	// BaselineSupply is the level an idle item drifts back to.
	BaselineSupply float64 `yaml:"baseline_supply" json:"baseline_supply"`
	// DepletionPerUnit is the supply added per unit we craft.
	DepletionPerUnit float64 `yaml:"depletion_per_unit" json:"depletion_per_unit"`
	// RecoveryRate is the fraction of the gap to baseline closed per idle day, in (0,1].
	RecoveryRate float64 `yaml:"recovery_rate" json:"recovery_rate"`

	// Demand curves indexed by days since the peak (0 = peak day).
	StrongCurve [DaysPerCycle]float64 `yaml:"strong_curve" json:"strong_curve"`
	WeakCurve   [DaysPerCycle]float64 `yaml:"weak_curve" json:"weak_curve"`

	// Popularity multipliers for low, average, high and very high.
	Popularity [4]float64 `yaml:"popularity" json:"popularity"`
	// SupplyUnits converts the five supply readings to supply units.
	SupplyUnits [5]float64 `yaml:"supply_units" json:"supply_units"`
}

// DefaultPolicy returns the default calibration.
func DefaultPolicy() Policy {
	return Policy{
		SupplyCeiling:    1.6,
		SupplyStep:       0.1,
		SupplyFloor:      0.6,
		BaselineSupply:   6,
		DepletionPerUnit: 0.5,
		RecoveryRate:     0.5,
		StrongCurve:      [DaysPerCycle]float64{1.5, 0.7, 0.85, 1.0, 1.0, 1.0, 1.1},
		WeakCurve:        [DaysPerCycle]float64{1.25, 0.85, 0.95, 1.0, 1.0, 1.0, 1.05},
		Popularity:       [4]float64{0.8, 1.0, 1.2, 1.4},
		SupplyUnits:      [5]float64{0, 3, 6, 8, 10},
	}
}

// Entry is the market state of one item.
type Entry struct {
	Supply     float64 `json:"supply"`
	Popularity float64 `json:"popularity"`
	PeakDay    int     `json:"peak_day"` // 0-6, or -1 when no peak is expected
	Cycle      Cycle   `json:"cycle"`
}

// State is the market for every catalog item on one day. It is treated as an
// immutable value: Advance and WithHint return new States.
type State struct {
	Day     int     `json:"day"`
	Entries []Entry `json:"entries"`
}

// Clone returns a deep copy.
func (s State) Clone() State {
	return State{Day: s.Day, Entries: slices.Clone(s.Entries)}
}

// Valid reports whether the state carries an entry per item of a catalog of n items.
func (s State) Valid(n int) bool {
	return n > 0 && len(s.Entries) == n
}

// Phase returns the day index within the weekly cycle.
func (s State) Phase() int {
	return ((s.Day % DaysPerCycle) + DaysPerCycle) % DaysPerCycle
}

// Unresolved returns items with an expected peak whose strength is unknown.
func (s State) Unresolved() []catalog.ItemID {
	var ids []catalog.ItemID
	for i, e := range s.Entries {
		if e.PeakDay >= 0 && e.Cycle == CycleUnresolved {
			ids = append(ids, catalog.ItemID(i))
		}
	}
	return ids
}

// Production is the number of units crafted per item on one day.
type Production map[catalog.ItemID]int

// Model evaluates and advances market states for a catalog.
type Model struct {
	Catalog *catalog.Catalog
	Policy  Policy
}

// NewModel returns a Model with the given policy.
func NewModel(cat *catalog.Catalog, pol Policy) *Model {
	return &Model{Catalog: cat, Policy: pol}
}

// ValueOf returns the predicted value per unit of item in state. It is pure.
func (m *Model) ValueOf(item catalog.ItemID, s State) float64 {
	it := m.Catalog.Item(item)
	if it == nil || int(item) >= len(s.Entries) {
		return 0
	}
	e := s.Entries[item]
	return it.BaseValue * e.Popularity * m.SupplyMultiplier(e.Supply) * m.DemandMultiplier(e, s.Phase())
}

// RecoveredValue is ValueOf with the item's supply back at baseline.
func (m *Model) RecoveredValue(item catalog.ItemID, s State) float64 {
	it := m.Catalog.Item(item)
	if it == nil || int(item) >= len(s.Entries) {
		return 0
	}
	e := s.Entries[item]
	return it.BaseValue * e.Popularity * m.SupplyMultiplier(m.Policy.BaselineSupply) * m.DemandMultiplier(e, s.Phase())
}

// SupplyMultiplier converts supply units to a value multiplier.
func (m *Model) SupplyMultiplier(units float64) float64 {
	p := m.Policy
	v := p.SupplyCeiling - p.SupplyStep*units
	return math.Max(p.SupplyFloor, math.Min(p.SupplyCeiling, v))
}

// DemandMultiplier returns the demand-cycle multiplier for an entry on a phase
// day. Unresolved peaks use the weak curve.
func (m *Model) DemandMultiplier(e Entry, phase int) float64 {
	if e.PeakDay < 0 {
		return 1
	}
	offset := ((phase-e.PeakDay)%DaysPerCycle + DaysPerCycle) % DaysPerCycle
	if e.Cycle == CycleStrong {
		return m.Policy.StrongCurve[offset]
	}
	return m.Policy.WeakCurve[offset]
}

// Advance returns the state one day later. Crafted items gain supply in
// proportion to the quantity produced; every other item closes part of its
// gap to the baseline supply.
func (m *Model) Advance(s State, produced Production) State {
	next := State{Day: s.Day + 1, Entries: make([]Entry, len(s.Entries))}
	p := m.Policy
	for i, e := range s.Entries {
		if qty := produced[catalog.ItemID(i)]; qty > 0 {
			e.Supply += float64(qty) * p.DepletionPerUnit
		} else {
			e.Supply = p.BaselineSupply + (e.Supply-p.BaselineSupply)*(1-p.RecoveryRate)
		}
		next.Entries[i] = e
	}
	return next
}

// WithHint returns a copy of s with item's peak strength resolved.
func (m *Model) WithHint(s State, item catalog.ItemID, strong bool) State {
	next := s.Clone()
	if int(item) < 0 || int(item) >= len(next.Entries) {
		return next
	}
	next.Entries[item].Cycle = CycleWeak
	if strong {
		next.Entries[item].Cycle = CycleStrong
	}
	return next
}
