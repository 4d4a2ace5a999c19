package combo

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/talgya/isle-planner/internal/catalog"
)

// newTestCatalog returns A and B (sharing "wood"), C ("stone") and D (8h,
// "wood"). A consumes one rare R per craft.
func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	mats := []catalog.Material{
		{Name: "Rare Resin", Rare: true, Value: 20},
		{Name: "Log"},
	}
	items := []catalog.Item{
		{Name: "A", BaseValue: 100, CraftHours: 4, Categories: []string{"wood"},
			Materials: []catalog.MaterialQty{{Material: 0, Qty: 1}, {Material: 1, Qty: 2}}},
		{Name: "B", BaseValue: 50, CraftHours: 4, Categories: []string{"wood"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 3}}},
		{Name: "C", BaseValue: 60, CraftHours: 6, Categories: []string{"stone"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 1}}},
		{Name: "D", BaseValue: 90, CraftHours: 8, Categories: []string{"wood"},
			Materials: []catalog.MaterialQty{{Material: 1, Qty: 4}}},
	}
	cat, err := catalog.New(items, mats)
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func collect(g *Generator) []DayCombination {
	var out []DayCombination
	for c := range g.Seq() {
		out = append(out, c)
	}
	return out
}

func TestGeneratorLayoutAndFirstSlotYield(t *testing.T) {
	cat := newTestCatalog(t)
	pol := DefaultSlotPolicy()

	for _, mirror := range []bool{true, false} {
		for workshops := 1; workshops <= 3; workshops++ {
			for slots := 1; slots <= 4; slots++ {
				g := &Generator{Catalog: cat, Workshops: workshops, Slots: slots, Policy: pol, Mirror: mirror}
				n := 0
				for c := range g.Seq() {
					n++
					if !c.Fits(workshops, slots) {
						t.Fatalf("%dx%d mirror=%v: combination %s has wrong layout", workshops, slots, mirror, c.Key())
					}
					for _, cr := range c.Crafts(pol) {
						if cr.Slot == 0 && cr.Qty != pol.FirstYield {
							t.Fatalf("%dx%d: first slot of workshop %d yields %d", workshops, slots, cr.Workshop, cr.Qty)
						}
						if cr.Slot > 0 && cr.Qty != pol.LaterYield {
							t.Fatalf("%dx%d: later slot yields %d", workshops, slots, cr.Qty)
						}
					}
				}
				if n == 0 {
					t.Fatalf("%dx%d mirror=%v: no combinations", workshops, slots, mirror)
				}
			}
		}
	}
}

func TestGeneratorRestFirst(t *testing.T) {
	cat := newTestCatalog(t)
	for c := range (&Generator{Catalog: cat, Workshops: 2, Slots: 3, Policy: DefaultSlotPolicy()}).Seq() {
		if !c.IsRest() {
			t.Fatalf("first combination should be rest, got %s", c.Key())
		}
		break
	}
}

func TestGeneratorChainRule(t *testing.T) {
	cat := newTestCatalog(t)
	g := &Generator{Catalog: cat, Workshops: 1, Slots: 4, Policy: DefaultSlotPolicy(), Mirror: true}
	for _, c := range collect(g) {
		row := c.Row(0)
		for i := 1; i < len(row); i++ {
			if row[i] == row[i-1] || !cat.SharesCategory(row[i], row[i-1]) {
				t.Fatalf("chain rule broken in %s", c.Key())
			}
		}
	}
}

func TestGeneratorHoursCap(t *testing.T) {
	cat := newTestCatalog(t)
	pol := DefaultSlotPolicy()
	pol.Chain = ChainNone
	d, _ := cat.ItemByName("D")

	g := &Generator{Catalog: cat, Workshops: 1, Slots: 6, Policy: pol, Mirror: true, Items: []catalog.ItemID{d}}
	longest := 0
	for _, c := range collect(g) {
		longest = max(longest, len(c.Row(0)))
	}
	if longest != 3 {
		t.Errorf("three 8h crafts fill 24h, got longest row %d", longest)
	}
}

func TestGeneratorNonMirrorCounts(t *testing.T) {
	cat := newTestCatalog(t)
	pol := DefaultSlotPolicy()
	pol.Chain = ChainNone
	items := []catalog.ItemID{0, 1, 2}

	tests := []struct {
		scope BatchScope
		want  int
	}{
		// rows per workshop: idle, A, B, C. Interchangeable workshops give
		// multisets of two; a distinguished first workshop gives ordered pairs.
		{BatchPerWorkshop, 10},
		{BatchPerDay, 16},
	}
	for _, tt := range tests {
		pol.Scope = tt.scope
		g := &Generator{Catalog: cat, Workshops: 2, Slots: 1, Policy: pol, Items: items}
		n, err := g.Count(0)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != tt.want {
			t.Errorf("scope %s: expected %d combinations, got %d", tt.scope, tt.want, n)
		}
		seen := make(map[string]bool)
		for _, c := range collect(g) {
			if seen[c.Key()] {
				t.Errorf("scope %s: duplicate %s", tt.scope, c.Key())
			}
			seen[c.Key()] = true
		}
	}
}

func TestGeneratorInventoryPruning(t *testing.T) {
	cat := newTestCatalog(t)
	pol := DefaultSlotPolicy()
	pol.Chain = ChainNone
	resin, _ := cat.MaterialByName("Rare Resin")
	a, _ := cat.ItemByName("A")

	free := &Generator{Catalog: cat, Workshops: 2, Slots: 3, Policy: pol, Mirror: true}
	gated := &Generator{Catalog: cat, Workshops: 2, Slots: 3, Policy: pol, Mirror: true,
		Inventory: map[catalog.MaterialID]int{resin: 2}}

	all, _ := free.Count(0)
	kept := collect(gated)
	if len(kept) >= all {
		t.Fatalf("inventory should prune: %d vs %d", len(kept), all)
	}
	for _, c := range kept {
		crafts := 0
		for _, cr := range c.Crafts(pol) {
			if cr.Item == a {
				crafts++
			}
		}
		if crafts > 2 {
			t.Fatalf("%s needs %d resin, only 2 owned", c.Key(), crafts)
		}
	}

	// Zero inventory still allows crafts without rare materials.
	none := &Generator{Catalog: cat, Workshops: 1, Slots: 2, Policy: pol, Mirror: true,
		Inventory: map[catalog.MaterialID]int{}}
	for _, c := range collect(none) {
		if slices.Contains(c.Items(), a) {
			t.Fatalf("%s uses A without resin", c.Key())
		}
	}
}

func TestGeneratorCountLimit(t *testing.T) {
	cat := newTestCatalog(t)
	pol := DefaultSlotPolicy()
	pol.Chain = ChainNone
	g := &Generator{Catalog: cat, Workshops: 3, Slots: 3, Policy: pol}
	if _, err := g.Count(5); !errors.Is(err, ErrSearchTooLarge) {
		t.Errorf("expected ErrSearchTooLarge, got %v", err)
	}
}

func TestGeneratorRestartable(t *testing.T) {
	cat := newTestCatalog(t)
	g := &Generator{Catalog: cat, Workshops: 2, Slots: 3, Policy: DefaultSlotPolicy(), Mirror: true}

	keys := func() []string {
		var out []string
		for c := range g.Seq() {
			out = append(out, c.Key())
		}
		return out
	}
	first, second := keys(), keys()
	if !slices.Equal(first, second) {
		t.Error("sequence should be identical on every walk")
	}

	n := 0
	for range g.Seq() {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("early break not honoured, n=%d", n)
	}
}

func TestRestOnly(t *testing.T) {
	n := 0
	for c := range RestOnly(3, 4) {
		n++
		if !c.IsRest() || !c.Fits(3, 4) {
			t.Errorf("unexpected %s", c.Key())
		}
	}
	if n != 1 {
		t.Errorf("expected one combination, got %d", n)
	}
}

func TestNewRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		rows [][]Slot
	}{
		{"craft after idle", [][]Slot{{Craft(0), Idle(), Craft(1)}, {}}},
		{"too many slots", [][]Slot{{Craft(0), Craft(1), Craft(0), Craft(1)}, {}}},
		{"wrong workshop count", [][]Slot{{Craft(0)}}},
	}
	for _, tt := range tests {
		if _, err := New(2, 3, tt.rows); !errors.Is(err, ErrInvalidCombination) {
			t.Errorf("%s: expected ErrInvalidCombination, got %v", tt.name, err)
		}
	}
}

func TestKeyAndJSON(t *testing.T) {
	c, err := New(2, 3, [][]Slot{{Craft(2), Craft(0)}, {Craft(1)}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Key() != "2.0.-|1.-.-" {
		t.Errorf("unexpected key %q", c.Key())
	}
	parsed, err := ParseKey(c.Key())
	if err != nil || parsed.Key() != c.Key() {
		t.Errorf("ParseKey: %v %q", err, parsed.Key())
	}

	data, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "[[2,0,-1],[1,-1,-1]]" {
		t.Errorf("unexpected JSON %s", data)
	}
	var back DayCombination
	if err := json.Unmarshal([]byte("[[0,-1],[1,1]]"), &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back.Key() != "0.-|1.1" {
		t.Errorf("unexpected key %q", back.Key())
	}
	if err := json.Unmarshal([]byte("[[-1,1]]"), &back); !errors.Is(err, ErrInvalidCombination) {
		t.Errorf("expected ErrInvalidCombination, got %v", err)
	}
}

func TestProductionUsesScope(t *testing.T) {
	c, _ := Mirrored(2, 2, []catalog.ItemID{0, 0})
	pol := DefaultSlotPolicy()
	if got := c.Production(pol)[0]; got != 18 {
		t.Errorf("per-workshop batches: expected 18 units, got %d", got)
	}
	pol.Scope = BatchPerDay
	if got := c.Production(pol)[0]; got != 21 {
		t.Errorf("per-day batch: expected 21 units, got %d", got)
	}
}
