package snapshot

import (
	"context"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/isle-planner/internal/catalog"
)

// SyntheticReader produces deterministic demo snapshots from seeded noise so the
// planner can run without a live game session.
type SyntheticReader struct {
	Catalog   *catalog.Catalog
	Seed      int64
	Day       int
	Workshops int
	MaxGroove int
}

// Read builds the snapshot for r.Day.
func (r *SyntheticReader) Read(ctx context.Context) (*Snapshot, error) {
	popNoise := opensimplex.NewNormalized(r.Seed)
	peakNoise := opensimplex.NewNormalized(r.Seed + 1)
	strengthNoise := opensimplex.NewNormalized(r.Seed + 2)
	invNoise := opensimplex.NewNormalized(r.Seed + 3)

	workshops := r.Workshops
	if workshops <= 0 {
		workshops = 3
	}
	maxGroove := r.MaxGroove
	if maxGroove <= 0 {
		maxGroove = 35
	}

	snap := &Snapshot{
		Day:           r.Day,
		IslandRank:    16,
		Workshops:     workshops,
		WorkshopBonus: 120,
		MaxGroove:     maxGroove,
		Inventory:     make(map[catalog.MaterialID]int),
		ReadAt:        time.Now().UTC(),
	}

	for i, it := range r.Catalog.Items {
		x := float64(i) * 0.61
		pop := Popularity(popNoise.Eval2(x, 0.3) * 4)
		// Peaks land on days 1-6; day 0 is the rest day.
		peakDay := 1 + int(peakNoise.Eval2(x, 1.7)*6)
		strong := strengthNoise.Eval2(x, 2.9) >= 0.5

		reading := ItemReading{
			Item:       it.ID,
			Popularity: pop,
			Supply:     SupplySufficient,
			Shift:      ShiftNone,
			PeakDay:    -1,
		}
		switch {
		case r.Day == peakDay-1:
			reading.Supply = SupplyInsufficient
			reading.Shift = ShiftIncreasing
			if strong {
				reading.Shift = ShiftSkyrocketing
			}
		case r.Day == peakDay:
			reading.Supply = SupplyNonexistent
			if !strong {
				reading.Supply = SupplyInsufficient
			}
		case r.Day == peakDay+1:
			reading.Supply = SupplySurplus
			reading.Shift = ShiftDecreasing
		}
		// Early in the cycle the export already announces later peaks, except
		// the strength of day-2 peaks which needs a hint.
		if r.Day < peakDay-1 {
			reading.PeakDay = peakDay
			reading.Peak = "weak"
			if strong {
				reading.Peak = "strong"
			}
			if peakDay == 2 {
				reading.Peak = ""
			}
		}
		snap.Items = append(snap.Items, reading)
	}

	for _, m := range r.Catalog.Materials {
		if !m.Rare {
			continue
		}
		snap.Inventory[m.ID] = int(invNoise.Eval2(float64(m.ID)*0.83, float64(r.Day)) * 40)
	}
	return snap, nil
}
