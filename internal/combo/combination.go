// Package combo enumerates the legal ways to fill a day's workshop slots.
package combo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/talgya/isle-planner/internal/catalog"
	"github.com/talgya/isle-planner/internal/market"
)

var (
	// ErrInvalidCombination is returned when a combination does not fit the
	// session's workshop layout.
	ErrInvalidCombination = errors.New("invalid combination")
	// ErrSearchTooLarge is returned when enumeration exceeds the configured bound.
	ErrSearchTooLarge = errors.New("combination search too large")
)

// Slot is one workshop time slot: idle, or crafting one item.
type Slot struct {
	item  catalog.ItemID
	craft bool
}

// Idle returns an empty slot.
func Idle() Slot { return Slot{} }

// Craft returns a slot crafting item.
func Craft(item catalog.ItemID) Slot { return Slot{item: item, craft: true} }

// IsIdle reports whether the slot crafts nothing.
func (s Slot) IsIdle() bool { return !s.craft }

// Item returns the crafted item and true, or false for an idle slot.
func (s Slot) Item() (catalog.ItemID, bool) { return s.item, s.craft }

// DayCombination is a fixed workshops × slots assignment for one day. Once a
// workshop's slot is idle every later slot of that workshop is idle too.
type DayCombination struct {
	workshops int
	slots     int
	cells     []Slot
}

// New validates rows (one per workshop) against the layout and returns the
// combination. Short rows are padded with idle slots.
func New(workshops, slots int, rows [][]Slot) (DayCombination, error) {
	if workshops <= 0 || slots <= 0 {
		return DayCombination{}, fmt.Errorf("%w: layout %dx%d", ErrInvalidCombination, workshops, slots)
	}
	if len(rows) != workshops {
		return DayCombination{}, fmt.Errorf("%w: %d workshops, want %d", ErrInvalidCombination, len(rows), workshops)
	}
	c := DayCombination{workshops: workshops, slots: slots, cells: make([]Slot, workshops*slots)}
	for w, row := range rows {
		if len(row) > slots {
			return DayCombination{}, fmt.Errorf("%w: workshop %d has %d slots, want %d", ErrInvalidCombination, w, len(row), slots)
		}
		idle := false
		for s, slot := range row {
			if slot.IsIdle() {
				idle = true
				continue
			}
			if idle {
				return DayCombination{}, fmt.Errorf("%w: workshop %d crafts after an idle slot", ErrInvalidCombination, w)
			}
			if slot.item < 0 {
				return DayCombination{}, fmt.Errorf("%w: negative item id", ErrInvalidCombination)
			}
			c.cells[w*slots+s] = slot
		}
	}
	return c, nil
}

// Rest returns the all-idle combination for a layout.
func Rest(workshops, slots int) DayCombination {
	return DayCombination{workshops: workshops, slots: slots, cells: make([]Slot, workshops*slots)}
}

// Mirrored returns a combination where every workshop runs seq.
func Mirrored(workshops, slots int, seq []catalog.ItemID) (DayCombination, error) {
	row := make([]Slot, len(seq))
	for i, id := range seq {
		row[i] = Craft(id)
	}
	rows := make([][]Slot, workshops)
	for w := range rows {
		rows[w] = row
	}
	return New(workshops, slots, rows)
}

// Workshops returns the number of workshops.
func (c DayCombination) Workshops() int { return c.workshops }

// Slots returns the number of slots per workshop.
func (c DayCombination) Slots() int { return c.slots }

// At returns the slot at workshop w, position s.
func (c DayCombination) At(w, s int) Slot {
	if w < 0 || w >= c.workshops || s < 0 || s >= c.slots {
		return Idle()
	}
	return c.cells[w*c.slots+s]
}

// Row returns the crafted items of workshop w in slot order.
func (c DayCombination) Row(w int) []catalog.ItemID {
	var ids []catalog.ItemID
	for s := 0; s < c.slots; s++ {
		id, ok := c.At(w, s).Item()
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	return ids
}

// IsRest reports whether nothing is crafted.
func (c DayCombination) IsRest() bool {
	for _, s := range c.cells {
		if !s.IsIdle() {
			return false
		}
	}
	return true
}

// Fits reports whether the combination has the given layout.
func (c DayCombination) Fits(workshops, slots int) bool {
	return c.workshops == workshops && c.slots == slots && len(c.cells) == workshops*slots
}

// Items returns the distinct crafted items in order of first appearance.
func (c DayCombination) Items() []catalog.ItemID {
	seen := make(map[catalog.ItemID]bool)
	var ids []catalog.ItemID
	for _, s := range c.cells {
		if id, ok := s.Item(); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Key is a stable identity used to match commitments against suggestions.
// Workshops are separated by "|", slots by ".", idle slots are "-".
func (c DayCombination) Key() string {
	var b strings.Builder
	for w := 0; w < c.workshops; w++ {
		if w > 0 {
			b.WriteByte('|')
		}
		for s := 0; s < c.slots; s++ {
			if s > 0 {
				b.WriteByte('.')
			}
			if id, ok := c.At(w, s).Item(); ok {
				b.WriteString(strconv.Itoa(int(id)))
			} else {
				b.WriteByte('-')
			}
		}
	}
	return b.String()
}

// ParseKey rebuilds a combination from Key output.
func ParseKey(key string) (DayCombination, error) {
	parts := strings.Split(key, "|")
	rows := make([][]Slot, len(parts))
	slots := -1
	for w, part := range parts {
		fields := strings.Split(part, ".")
		if slots >= 0 && len(fields) != slots {
			return DayCombination{}, fmt.Errorf("%w: ragged key %q", ErrInvalidCombination, key)
		}
		slots = len(fields)
		row := make([]Slot, len(fields))
		for s, f := range fields {
			if f == "-" {
				continue
			}
			id, err := strconv.Atoi(f)
			if err != nil {
				return DayCombination{}, fmt.Errorf("%w: bad slot %q", ErrInvalidCombination, f)
			}
			row[s] = Craft(catalog.ItemID(id))
		}
		rows[w] = row
	}
	return New(len(parts), slots, rows)
}

// Crafted is one occupied slot with its batch yield.
type Crafted struct {
	Workshop int            `json:"workshop"`
	Slot     int            `json:"slot"`
	Item     catalog.ItemID `json:"item"`
	Qty      int            `json:"qty"`
}

// Crafts lists every occupied slot with the yield the policy assigns it.
func (c DayCombination) Crafts(p SlotPolicy) []Crafted {
	var out []Crafted
	for w := 0; w < c.workshops; w++ {
		for s := 0; s < c.slots; s++ {
			id, ok := c.At(w, s).Item()
			if !ok {
				break
			}
			out = append(out, Crafted{Workshop: w, Slot: s, Item: id, Qty: p.Yield(w, s)})
		}
	}
	return out
}

// Production sums yields per item, the input to market.Model.Advance.
func (c DayCombination) Production(p SlotPolicy) market.Production {
	prod := make(market.Production)
	for _, cr := range c.Crafts(p) {
		prod[cr.Item] += cr.Qty
	}
	return prod
}

// MarshalJSON encodes the combination as rows of item ids with -1 for idle.
func (c DayCombination) MarshalJSON() ([]byte, error) {
	rows := make([][]int, c.workshops)
	for w := range rows {
		rows[w] = make([]int, c.slots)
		for s := range rows[w] {
			if id, ok := c.At(w, s).Item(); ok {
				rows[w][s] = int(id)
			} else {
				rows[w][s] = -1
			}
		}
	}
	return json.Marshal(rows)
}

// UnmarshalJSON decodes MarshalJSON output and validates it.
func (c *DayCombination) UnmarshalJSON(data []byte) error {
	var raw [][]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCombination, err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: no workshops", ErrInvalidCombination)
	}
	rows := make([][]Slot, len(raw))
	for w, r := range raw {
		rows[w] = make([]Slot, len(r))
		for s, v := range r {
			if v >= 0 {
				rows[w][s] = Craft(catalog.ItemID(v))
			}
		}
	}
	parsed, err := New(len(raw), len(raw[0]), rows)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
