// Package evaluate scores one day's combination against a market state.
package evaluate

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/market"
)

// ErrInsufficientMaterials annotates a combination whose rare material need
// exceeds the owned inventory. It is advisory and never rejects a score.
var ErrInsufficientMaterials = errors.New("insufficient materials")

// Modifiers are the per-day multipliers read from the island.
type Modifiers struct {
	// WorkshopBonus is the upgrade bonus in percent; zero means 100.
	WorkshopBonus int `json:"workshop_bonus"`
	// Groove is the groove held at the start of the day, in percent.
	Groove int `json:"groove"`
}

func (m Modifiers) factor() float64 {
	bonus := m.WorkshopBonus
	if bonus <= 0 {
		bonus = 100
	}
	return float64(bonus) / 100 * (1 + float64(max(m.Groove, 0))/100)
}

// Line is one occupied slot of a scored combination.
type Line struct {
	Workshop  int            `json:"workshop"`
	Slot      int            `json:"slot"`
	Item      catalog.ItemID `json:"item"`
	Qty       int            `json:"qty"`
	UnitValue float64        `json:"unit_value"`
	Value     float64        `json:"value"`
}

// Scored is a combination with its value and material needs.
type Scored struct {
	Combination combo.DayCombination       `json:"combination"`
	Key         string                     `json:"key"`
	Gross       float64                    `json:"gross"`
	Net         float64                    `json:"net"`
	RareCost    float64                    `json:"rare_cost"` // unweighted opportunity cost
	Materials   map[catalog.MaterialID]int `json:"materials"`
	RareKinds   int                        `json:"rare_kinds"`
	Lines       []Line                     `json:"lines"`
	GrooveGain  int                        `json:"groove_gain"`
	Shortfall   map[catalog.MaterialID]int `json:"shortfall,omitempty"`
	Warnings    []string                   `json:"warnings,omitempty"`
	// Order is the position in generation order, the final ranking tiebreak.
	Order int `json:"order"`
}

// Insufficient reports whether owned materials do not cover the combination.
func (s Scored) Insufficient() bool { return len(s.Shortfall) > 0 }

// Evaluator scores combinations. It holds no mutable state.
type Evaluator struct {
	Model  *market.Model
	Policy combo.SlotPolicy
}

// New returns an Evaluator.
func New(model *market.Model, pol combo.SlotPolicy) *Evaluator {
	return &Evaluator{Model: model, Policy: pol}
}

// Score values c in state. weight is clamped to [0,1]. A nil inventory skips
// the shortfall check. Score is pure: neither state nor inventory is modified.
func (e *Evaluator) Score(c combo.DayCombination, state market.State, weight float64, mods Modifiers, inventory map[catalog.MaterialID]int) Scored {
	weight = min(max(weight, 0), 1)
	cat := e.Model.Catalog
	factor := mods.factor()

	sc := Scored{
		Combination: c,
		Key:         c.Key(),
		Materials:   make(map[catalog.MaterialID]int),
	}
	for _, cr := range c.Crafts(e.Policy) {
		unit := e.Model.ValueOf(cr.Item, state) * factor
		sc.Lines = append(sc.Lines, Line{
			Workshop:  cr.Workshop,
			Slot:      cr.Slot,
			Item:      cr.Item,
			Qty:       cr.Qty,
			UnitValue: unit,
			Value:     unit * float64(cr.Qty),
		})
		sc.Gross += unit * float64(cr.Qty)
		if e.Policy.Efficient(cr.Slot) {
			sc.GrooveGain++
		}
		for _, mq := range cat.RequiredMaterials(cr.Item, cr.Slot) {
			sc.Materials[mq.Material] += mq.Qty
		}
	}

	for _, id := range slices.Sorted(maps.Keys(sc.Materials)) {
		qty := sc.Materials[id]
		m := cat.Material(id)
		if m == nil || !m.Rare {
			continue
		}
		sc.RareKinds++
		sc.RareCost += float64(qty) * m.Value
		if inventory == nil {
			continue
		}
		if short := qty - inventory[id]; short > 0 {
			if sc.Shortfall == nil {
				sc.Shortfall = make(map[catalog.MaterialID]int)
			}
			sc.Shortfall[id] = short
		}
	}
	sc.Net = sc.Gross - weight*sc.RareCost

	if sc.Insufficient() {
		for _, id := range slices.Sorted(maps.Keys(sc.Shortfall)) {
			sc.Warnings = append(sc.Warnings, fmt.Sprintf("%v: %s short by %d", ErrInsufficientMaterials, cat.Materials[id].Name, sc.Shortfall[id]))
		}
	}
	return sc
}

// RareNeed returns just the rare entries of a material map.
func RareNeed(cat *catalog.Catalog, materials map[catalog.MaterialID]int) map[catalog.MaterialID]int {
	out := make(map[catalog.MaterialID]int)
	for id, qty := range materials {
		if m := cat.Material(id); m != nil && m.Rare {
			out[id] = qty
		}
	}
	return out
}
