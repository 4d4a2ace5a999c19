package engine

import (
	"slices"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/config"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/solver"
)

// SuggestionView is one suggestion with names resolved for display.
type SuggestionView struct {
	Rank       int            `json:"rank"`
	Key        string         `json:"key"`
	Workshops  [][]string     `json:"workshops"`
	Value      float64        `json:"value"` // net or gross per show_net
	Gross      float64        `json:"gross"`
	Net        float64        `json:"net"`
	RareCost   float64        `json:"rare_cost"`
	GrooveGain int            `json:"groove_gain"`
	Materials  map[string]int `json:"materials,omitempty"`
	Owned      map[string]int `json:"owned,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// DayView is one day of the schedule prepared for display.
type DayView struct {
	Day         int              `json:"day"`
	Projected   bool             `json:"projected"`
	Considered  int              `json:"considered"`
	Hidden      int              `json:"hidden"`
	Suggestions []SuggestionView `json:"suggestions"`
}

// Present resolves names with the planner's catalog and options.
func (p *Planner) Present(days []solver.DaySchedule) []DayView {
	return Present(p.Config, p.Catalog, days)
}

// Present resolves names and applies the hidden keywords. A suggestion that
// crafts a hidden product is left out; ranks keep their original positions so
// they can still be committed by rank.
func Present(cfg config.Config, cat *catalog.Catalog, days []solver.DaySchedule) []DayView {
	pr := presenter{cfg: cfg, cat: cat}
	out := make([]DayView, 0, len(days))
	for _, d := range days {
		view := DayView{Day: d.Day, Projected: d.Projected, Considered: d.Considered, Suggestions: []SuggestionView{}}
		for i, sc := range d.Suggestions {
			if pr.hides(sc) {
				view.Hidden++
				continue
			}
			view.Suggestions = append(view.Suggestions, pr.suggestionView(i+1, sc))
		}
		out = append(out, view)
	}
	return out
}

type presenter struct {
	cfg config.Config
	cat *catalog.Catalog
}

func (p presenter) hides(sc evaluate.Scored) bool {
	if len(p.cfg.HiddenKeywords) == 0 {
		return false
	}
	return slices.ContainsFunc(sc.Combination.Items(), func(id catalog.ItemID) bool {
		return p.cfg.Hidden(p.cat.Item(id).Name)
	})
}

func (p presenter) suggestionView(rank int, sc evaluate.Scored) SuggestionView {
	v := SuggestionView{
		Rank:       rank,
		Key:        sc.Key,
		Value:      sc.Net,
		Gross:      sc.Gross,
		Net:        sc.Net,
		RareCost:   sc.RareCost,
		GrooveGain: sc.GrooveGain,
		Warnings:   sc.Warnings,
	}
	if !p.cfg.ShowNet {
		v.Value = sc.Gross
	}
	c := sc.Combination
	for w := range c.Workshops() {
		v.Workshops = append(v.Workshops, p.cat.ItemNames(c.Row(w)))
	}
	if len(sc.Materials) > 0 {
		v.Materials = make(map[string]int, len(sc.Materials))
		for id, qty := range sc.Materials {
			v.Materials[p.cat.Material(id).Name] = qty
		}
	}
	if len(sc.Shortfall) > 0 {
		v.Owned = make(map[string]int, len(sc.Shortfall))
		for id, short := range sc.Shortfall {
			v.Owned[p.cat.Material(id).Name] = sc.Materials[id] - short
		}
	}
	return v
}
