package combo

import (
	"iter"
	"slices"

	"github.com/talgya/isle-planner/internal/catalog"
)

// Chain selects which items may follow the previous craft in a workshop.
type Chain string

const (
	// ChainNone allows any item in any slot.
	ChainNone Chain = "none"
	// ChainCategory requires a later craft to share a category with the
	// previous one and differ from it, the efficiency rule of the workshops.
	ChainCategory Chain = "category"
)

// BatchScope selects which slots produce the smaller first batch.
type BatchScope string

const (
	// BatchPerWorkshop gives the first slot of every workshop the first yield.
	BatchPerWorkshop BatchScope = "workshop"
	// BatchPerDay gives only the first slot of the first workshop the first yield.
	BatchPerDay BatchScope = "day"
)

// SlotPolicy is the calibrated batch and eligibility rule for slots.
type SlotPolicy struct {
	FirstYield  int        `yaml:"first_yield" json:"first_yield"`
	LaterYield  int        `yaml:"later_yield" json:"later_yield"`
	Scope       BatchScope `yaml:"batch_scope" json:"batch_scope"`
	Chain       Chain      `yaml:"chain" json:"chain"`
	HoursPerDay int        `yaml:"hours_per_day" json:"hours_per_day"`
}

// DefaultSlotPolicy returns the default batch rule.
func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{
		FirstYield:  3,
		LaterYield:  6,
		Scope:       BatchPerWorkshop,
		Chain:       ChainCategory,
		HoursPerDay: 24,
	}
}

// Yield returns the batch size of workshop w, slot s.
func (p SlotPolicy) Yield(w, s int) int {
	if s == 0 && (p.Scope != BatchPerDay || w == 0) {
		return p.FirstYield
	}
	return p.LaterYield
}

// Efficient reports whether slot s is a later, full-yield craft.
func (p SlotPolicy) Efficient(s int) bool { return s > 0 }

// eligible reports whether next may follow prev under the chain rule.
func (p SlotPolicy) eligible(cat *catalog.Catalog, prev, next catalog.ItemID) bool {
	if p.Chain != ChainCategory {
		return true
	}
	return prev != next && cat.SharesCategory(prev, next)
}

// Generator enumerates the legal day combinations for a layout. The zero
// Inventory means no material gating.
type Generator struct {
	Catalog   *catalog.Catalog
	Workshops int
	Slots     int
	Policy    SlotPolicy
	// Items restricts the candidate items; nil means the whole catalog.
	Items []catalog.ItemID
	// Mirror makes every workshop run the same sequence.
	Mirror bool
	// Inventory, when non-nil, prunes any branch whose rare material need
	// exceeds the owned counts.
	Inventory map[catalog.MaterialID]int
}

// Seq returns a lazy, restartable sequence of combinations. The all-idle
// combination is always first. Order is deterministic but carries no meaning.
func (g *Generator) Seq() iter.Seq[DayCombination] {
	return func(yield func(DayCombination) bool) {
		if g.Workshops <= 0 || g.Slots <= 0 {
			return
		}
		items := g.candidates()
		w := &walker{g: g, items: items, used: make(map[catalog.MaterialID]int), yield: yield}
		if g.Mirror {
			w.mirror(make([]catalog.ItemID, 0, g.Slots), 0)
			return
		}
		w.rows = make([][]catalog.ItemID, g.Workshops)
		w.rank = make(map[catalog.ItemID]int, len(items))
		for i, id := range items {
			w.rank[id] = i
		}
		w.workshop(0, make([]catalog.ItemID, 0, g.Slots), 0)
	}
}

// Count walks the sequence and returns its length, or ErrSearchTooLarge once
// it passes limit. A limit of zero or less counts everything.
func (g *Generator) Count(limit int) (int, error) {
	n := 0
	for range g.Seq() {
		n++
		if limit > 0 && n > limit {
			return n, ErrSearchTooLarge
		}
	}
	return n, nil
}

// RestOnly yields just the all-idle combination.
func RestOnly(workshops, slots int) iter.Seq[DayCombination] {
	return func(yield func(DayCombination) bool) {
		yield(Rest(workshops, slots))
	}
}

func (g *Generator) candidates() []catalog.ItemID {
	if g.Items != nil {
		out := slices.Clone(g.Items)
		return slices.DeleteFunc(out, func(id catalog.ItemID) bool { return g.Catalog.Item(id) == nil })
	}
	out := make([]catalog.ItemID, len(g.Catalog.Items))
	for i := range out {
		out[i] = catalog.ItemID(i)
	}
	return out
}

type walker struct {
	g     *Generator
	items []catalog.ItemID
	used  map[catalog.MaterialID]int
	rows  [][]catalog.ItemID
	// position of each candidate in items
	rank    map[catalog.ItemID]int
	stopped bool
	yield   func(DayCombination) bool
}

// take reserves the rare materials of crafting item in slot s times copies.
// It returns false, reserving nothing, if the inventory cannot cover it.
func (w *walker) take(item catalog.ItemID, s, copies int) bool {
	if w.g.Inventory == nil {
		return true
	}
	need := w.g.Catalog.RequiredMaterials(item, s)
	for _, mq := range need {
		if !w.g.Catalog.Materials[mq.Material].Rare {
			continue
		}
		if w.used[mq.Material]+mq.Qty*copies > w.g.Inventory[mq.Material] {
			return false
		}
	}
	for _, mq := range need {
		if w.g.Catalog.Materials[mq.Material].Rare {
			w.used[mq.Material] += mq.Qty * copies
		}
	}
	return true
}

func (w *walker) release(item catalog.ItemID, s, copies int) {
	if w.g.Inventory == nil {
		return
	}
	for _, mq := range w.g.Catalog.RequiredMaterials(item, s) {
		if w.g.Catalog.Materials[mq.Material].Rare {
			w.used[mq.Material] -= mq.Qty * copies
		}
	}
}

// next lists the items that may follow seq in a workshop with hours used.
func (w *walker) next(seq []catalog.ItemID, hours int) iter.Seq[catalog.ItemID] {
	return func(yield func(catalog.ItemID) bool) {
		if len(seq) >= w.g.Slots {
			return
		}
		for _, id := range w.items {
			if limit := w.g.Policy.HoursPerDay; limit > 0 && hours+w.g.Catalog.Items[id].CraftHours > limit {
				continue
			}
			if len(seq) > 0 && !w.g.Policy.eligible(w.g.Catalog, seq[len(seq)-1], id) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

func (w *walker) emit(c DayCombination) bool {
	if w.stopped {
		return false
	}
	if !w.yield(c) {
		w.stopped = true
	}
	return !w.stopped
}

// mirror emits every sequence prefix, shared by all workshops.
func (w *walker) mirror(seq []catalog.ItemID, hours int) bool {
	c, err := Mirrored(w.g.Workshops, w.g.Slots, seq)
	if err != nil || !w.emit(c) {
		return false
	}
	for id := range w.next(seq, hours) {
		if !w.take(id, len(seq), w.g.Workshops) {
			continue
		}
		ok := w.mirror(append(seq, id), hours+w.g.Catalog.Items[id].CraftHours)
		w.release(id, len(seq), w.g.Workshops)
		if !ok {
			return false
		}
	}
	return true
}

// workshop enumerates the sequences of workshop k; each one is offered to
// choose, which recurses into workshop k+1.
func (w *walker) workshop(k int, seq []catalog.ItemID, hours int) bool {
	if !w.choose(k, seq) {
		return false
	}
	for id := range w.next(seq, hours) {
		if !w.take(id, len(seq), 1) {
			continue
		}
		ok := w.workshop(k, append(seq, id), hours+w.g.Catalog.Items[id].CraftHours)
		w.release(id, len(seq), 1)
		if !ok {
			return false
		}
	}
	return true
}

// choose fixes seq as workshop k's row and continues. With per-workshop
// batches the workshops are interchangeable, so rows are kept in
// non-decreasing DFS order to skip permutations.
func (w *walker) choose(k int, seq []catalog.ItemID) bool {
	if w.g.Policy.Scope != BatchPerDay && k > 0 && w.before(seq, w.rows[k-1]) {
		return true
	}
	w.rows[k] = seq
	if k == w.g.Workshops-1 {
		rows := make([][]Slot, len(w.rows))
		for i, r := range w.rows {
			rows[i] = make([]Slot, len(r))
			for s, id := range r {
				rows[i][s] = Craft(id)
			}
		}
		c, err := New(w.g.Workshops, w.g.Slots, rows)
		if err != nil {
			return true
		}
		return w.emit(c)
	}
	return w.workshop(k+1, make([]catalog.ItemID, 0, w.g.Slots), 0)
}

// before reports whether a precedes b in DFS preorder.
func (w *walker) before(a, b []catalog.ItemID) bool {
	for i := range min(len(a), len(b)) {
		if a[i] != b[i] {
			return w.rank[a[i]] < w.rank[b[i]]
		}
	}
	return len(a) < len(b)
}
