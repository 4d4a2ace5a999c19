package market

import (
	"fmt"
	"strings"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/snapshot"
)

// Hints records player answers for peaks whose strength could not be read.
// true means strong.
type Hints map[catalog.ItemID]bool

// Initialize builds the market state from a supply snapshot. Items whose peak
// strength cannot be derived stay CycleUnresolved (valued with the weak curve)
// and are returned as pending hint requests.
func (m *Model) Initialize(snap *snapshot.Snapshot, hints Hints) (State, []catalog.ItemID, error) {
	if snap.Empty() {
		return State{}, nil, ErrNoMarketData
	}
	if snap.Day < 0 || snap.Day >= DaysPerCycle {
		return State{}, nil, fmt.Errorf("%w: day %d out of range", ErrNoMarketData, snap.Day)
	}

	p := m.Policy
	s := State{Day: snap.Day, Entries: make([]Entry, len(m.Catalog.Items))}
	for i := range s.Entries {
		s.Entries[i] = Entry{
			Supply:     p.BaselineSupply,
			Popularity: p.Popularity[snapshot.PopularityAverage],
			PeakDay:    -1,
			Cycle:      CycleWeak,
		}
	}

	for _, r := range snap.Items {
		if int(r.Item) < 0 || int(r.Item) >= len(s.Entries) {
			continue
		}
		e := Entry{
			Supply:     p.SupplyUnits[min(int(r.Supply), len(p.SupplyUnits)-1)],
			Popularity: p.Popularity[min(int(r.Popularity), len(p.Popularity)-1)],
		}
		e.PeakDay, e.Cycle = derivePeak(r, snap.Day)
		if e.Cycle == CycleUnresolved {
			if strong, ok := hints[r.Item]; ok {
				e.Cycle = CycleWeak
				if strong {
					e.Cycle = CycleStrong
				}
			}
		}
		s.Entries[r.Item] = e
	}

	return s, s.Unresolved(), nil
}

// derivePeak reads the expected peak day and strength from one reading.
// An explicit peak in the export wins; otherwise a scarce item whose demand is
// climbing peaks tomorrow, and a scarce item with flat demand is peaking today.
func derivePeak(r snapshot.ItemReading, day int) (int, Cycle) {
	if r.PeakDay >= 0 && r.PeakDay < DaysPerCycle {
		switch strings.ToLower(strings.TrimSpace(r.Peak)) {
		case "strong":
			return r.PeakDay, CycleStrong
		case "weak":
			return r.PeakDay, CycleWeak
		default:
			return r.PeakDay, CycleUnresolved
		}
	}

	tomorrow := (day + 1) % DaysPerCycle
	switch {
	case r.Shift == snapshot.ShiftSkyrocketing && r.Supply <= snapshot.SupplyInsufficient:
		return tomorrow, CycleStrong
	case r.Shift == snapshot.ShiftIncreasing && r.Supply == snapshot.SupplyInsufficient:
		return tomorrow, CycleWeak
	case r.Shift == snapshot.ShiftIncreasing && r.Supply == snapshot.SupplyNonexistent:
		return tomorrow, CycleUnresolved
	case r.Shift == snapshot.ShiftNone && r.Supply == snapshot.SupplyNonexistent:
		return day, CycleStrong
	}
	return -1, CycleWeak
}
