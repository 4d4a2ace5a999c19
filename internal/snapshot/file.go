package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tidwall/gjson"

	"github.com/talgya/isle-planner/internal/catalog"
)

// FileReader reads a JSON export written by the in-game reader.
//
//	{"day":1,"rank":16,"workshops":3,"workshop_bonus":120,"max_groove":35,
//	 "items":[{"name":"Potion","popularity":"high","supply":"insufficient",
//	           "shift":"increasing","peak_day":2,"peak":"strong"}],
//	 "inventory":{"Sanctuary Milk":12}}
type FileReader struct {
	Path    string
	Catalog *catalog.Catalog
}

// Read loads and parses the export file.
func (r FileReader) Read(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return Parse(data, r.Catalog)
}

// Parse decodes a JSON export. Unknown product or material names are skipped
// with a warning; a document with no items parses to an empty snapshot.
func Parse(data []byte, cat *catalog.Catalog) (*Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: expected object", ErrMalformed)
	}

	snap := &Snapshot{
		Day:           int(root.Get("day").Int()),
		IslandRank:    int(root.Get("rank").Int()),
		Workshops:     int(root.Get("workshops").Int()),
		WorkshopBonus: int(root.Get("workshop_bonus").Int()),
		MaxGroove:     int(root.Get("max_groove").Int()),
		Inventory:     make(map[catalog.MaterialID]int),
		ReadAt:        time.Now().UTC(),
	}
	if snap.Day < 0 || snap.Day > 6 {
		return nil, fmt.Errorf("%w: day %d out of range", ErrMalformed, snap.Day)
	}
	if snap.WorkshopBonus == 0 {
		snap.WorkshopBonus = 100
	}

	root.Get("items").ForEach(func(_, v gjson.Result) bool {
		name := v.Get("name").String()
		id, ok := cat.ItemByName(name)
		if !ok {
			slog.Warn("snapshot: unknown product", "name", name)
			return true
		}
		peakDay := -1
		if pd := v.Get("peak_day"); pd.Exists() {
			peakDay = int(pd.Int())
		}
		snap.Items = append(snap.Items, ItemReading{
			Item:       id,
			Popularity: ParsePopularity(v.Get("popularity").String()),
			Supply:     ParseSupply(v.Get("supply").String()),
			Shift:      ParseShift(v.Get("shift").String()),
			PeakDay:    peakDay,
			Peak:       v.Get("peak").String(),
		})
		return true
	})

	root.Get("inventory").ForEach(func(k, v gjson.Result) bool {
		id, ok := cat.MaterialByName(k.String())
		if !ok {
			slog.Debug("snapshot: ignoring unknown material", "name", k.String())
			return true
		}
		snap.Inventory[id] = int(v.Int())
		return true
	})

	return snap, nil
}
