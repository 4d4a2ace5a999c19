// Package solver ranks the combinations of the current day and projects a
// bounded number of following days.
package solver

import (
	"fmt"
	"iter"
	"log/slog"
	"maps"
	"sort"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/combo"
	"github.com/talgya/isle-planner/internal/evaluate"
	"github.com/talgya/isle-planner/internal/market"
)

// RankBy selects the ranking metric.
type RankBy string

const (
	RankNet   RankBy = "net"
	RankGross RankBy = "gross"
)

// Options are the search knobs of one session.
type Options struct {
	Workshops       int     `json:"workshops"`
	Slots           int     `json:"slots"`
	Suggestions     int     `json:"suggestions"`
	MaterialWeight  float64 `json:"material_weight"`
	RankBy          RankBy  `json:"rank_by"`
	Lookahead       int     `json:"lookahead"`
	EnforceRestDay  bool    `json:"enforce_rest_day"`
	RequireOwned    bool    `json:"require_owned_materials"`
	Mirror          bool    `json:"mirror"`
	MaxCombinations int     `json:"max_combinations"`
}

// Request is the input of one solve.
type Request struct {
	Day       int
	State     market.State
	Modifiers evaluate.Modifiers
	MaxGroove int
	// Inventory is the owned rare material count, nil when unknown.
	Inventory map[catalog.MaterialID]int
}

// DaySchedule is the ranked suggestion list of one day.
type DaySchedule struct {
	Day         int               `json:"day"`
	Projected   bool              `json:"projected"`
	Suggestions []evaluate.Scored `json:"suggestions"`
	Considered  int               `json:"considered"`
}

// Best returns the top suggestion, or false when the list is empty.
func (d DaySchedule) Best() (evaluate.Scored, bool) {
	if len(d.Suggestions) == 0 {
		return evaluate.Scored{}, false
	}
	return d.Suggestions[0], true
}

// Find returns the suggestion with the given combination key.
func (d DaySchedule) Find(key string) (evaluate.Scored, int, bool) {
	for i, s := range d.Suggestions {
		if s.Key == key {
			return s, i, true
		}
	}
	return evaluate.Scored{}, -1, false
}

// Solver drives the generator and evaluator.
type Solver struct {
	Evaluator *evaluate.Evaluator
	Options   Options
}

// New returns a Solver.
func New(ev *evaluate.Evaluator, opts Options) *Solver {
	return &Solver{Evaluator: ev, Options: opts}
}

// Solve ranks req.Day and projects up to Lookahead following days, stopping
// at the end of the cycle. Projections assume the best suggestion of the
// previous day is taken and never touch req.State.
func (s *Solver) Solve(req Request) ([]DaySchedule, error) {
	if !req.State.Valid(len(s.Evaluator.Model.Catalog.Items)) {
		return nil, market.ErrNoMarketData
	}
	if req.Day < 0 || req.Day >= market.DaysPerCycle {
		return nil, fmt.Errorf("solve: day %d outside the cycle", req.Day)
	}

	last := min(req.Day+max(s.Options.Lookahead, 0), market.DaysPerCycle-1)
	out := make([]DaySchedule, 0, last-req.Day+1)

	state := req.State
	mods := req.Modifiers
	inv := cloneInventory(req.Inventory)
	for day := req.Day; day <= last; day++ {
		sched, err := s.RankDay(day, state, mods, inv)
		if err != nil {
			if day == req.Day {
				return nil, err
			}
			slog.Warn("solver: projection stopped", "day", day, "error", err)
			break
		}
		sched.Projected = day != req.Day
		out = append(out, sched)

		best, ok := sched.Best()
		if !ok {
			break
		}
		state = s.Evaluator.Model.Advance(state, best.Combination.Production(s.Evaluator.Policy))
		mods.Groove += best.GrooveGain
		if req.MaxGroove > 0 {
			mods.Groove = min(mods.Groove, req.MaxGroove)
		}
		if inv != nil {
			for id, qty := range best.Materials {
				inv[id] = max(inv[id]-qty, 0)
			}
		}
	}
	return out, nil
}

// RankDay scores every candidate of one day in a single flat pass and keeps
// the top Suggestions entries.
func (s *Solver) RankDay(day int, state market.State, mods evaluate.Modifiers, inventory map[catalog.MaterialID]int) (DaySchedule, error) {
	opts := s.Options
	k := max(opts.Suggestions, 1)

	var seq iter.Seq[combo.DayCombination]
	if day == 0 && opts.EnforceRestDay {
		seq = combo.RestOnly(opts.Workshops, opts.Slots)
	} else {
		g := &combo.Generator{
			Catalog:   s.Evaluator.Model.Catalog,
			Workshops: opts.Workshops,
			Slots:     opts.Slots,
			Policy:    s.Evaluator.Policy,
			Mirror:    opts.Mirror,
		}
		if opts.RequireOwned {
			g.Inventory = inventory
			if g.Inventory == nil {
				g.Inventory = map[catalog.MaterialID]int{}
			}
		}
		seq = g.Seq()
	}

	sched := DaySchedule{Day: day}
	top := make([]evaluate.Scored, 0, k+1)
	for c := range seq {
		if opts.MaxCombinations > 0 && sched.Considered >= opts.MaxCombinations {
			return DaySchedule{}, fmt.Errorf("day %d: %w (limit %d)", day, combo.ErrSearchTooLarge, opts.MaxCombinations)
		}
		sc := s.Evaluator.Score(c, state, opts.MaterialWeight, mods, inventory)
		sc.Order = sched.Considered
		sched.Considered++
		top = s.insert(top, sc, k)
	}
	sched.Suggestions = top
	return sched, nil
}

// insert places sc into the sorted top list, after any equal entries so that
// generation order breaks remaining ties, and trims it to k.
func (s *Solver) insert(top []evaluate.Scored, sc evaluate.Scored, k int) []evaluate.Scored {
	if len(top) == k && !s.Less(sc, top[len(top)-1]) {
		return top
	}
	i := sort.Search(len(top), func(i int) bool { return s.Less(sc, top[i]) })
	top = append(top, evaluate.Scored{})
	copy(top[i+1:], top[i:])
	top[i] = sc
	if len(top) > k {
		top = top[:k]
	}
	return top
}

// Less reports whether a ranks strictly before b: higher metric, then fewer
// distinct rare materials, then earlier generation.
func (s *Solver) Less(a, b evaluate.Scored) bool {
	va, vb := a.Net, b.Net
	if s.Options.RankBy == RankGross {
		va, vb = a.Gross, b.Gross
	}
	if va != vb {
		return va > vb
	}
	if a.RareKinds != b.RareKinds {
		return a.RareKinds < b.RareKinds
	}
	return a.Order < b.Order
}

func cloneInventory(inv map[catalog.MaterialID]int) map[catalog.MaterialID]int {
	if inv == nil {
		return nil
	}
	return maps.Clone(inv)
}
