// Package catalog holds the immutable island product and material reference data.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidCatalog is returned when reference data fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// ItemID is a dense index into Catalog.Items.
type ItemID int

// MaterialID is a dense index into Catalog.Materials.
type MaterialID int

// MaterialQty is a quantity of one material consumed by a single craft.
type MaterialQty struct {
	Material MaterialID `json:"material"`
	Qty      int        `json:"qty"`
}

// Material is a raw crafting input.
type Material struct {
	ID    MaterialID `json:"id"`
	Name  string     `json:"name"`
	Rare  bool       `json:"rare"`
	Value float64    `json:"value"` // Export value if sold instead of crafted
}

// Item is a craftable workshop product.
type Item struct {
	ID         ItemID        `json:"id"`
	Name       string        `json:"name"`
	BaseValue  float64       `json:"base_value"`
	CraftHours int           `json:"craft_hours"`
	Categories []string      `json:"categories"`
	Rare       bool          `json:"rare"` // Consumes at least one rare material
	Materials  []MaterialQty `json:"materials"`
}

// Catalog is the full set of items and materials known to the planner.
type Catalog struct {
	Items     []Item
	Materials []Material

	itemByName     map[string]ItemID
	materialByName map[string]MaterialID
}

// New validates items and materials and assigns dense IDs in slice order.
// Item.Materials must reference materials by their position in the materials slice.
func New(items []Item, materials []Material) (*Catalog, error) {
	c := &Catalog{
		Items:          make([]Item, len(items)),
		Materials:      make([]Material, len(materials)),
		itemByName:     make(map[string]ItemID, len(items)),
		materialByName: make(map[string]MaterialID, len(materials)),
	}

	for i, m := range materials {
		key := normalize(m.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: material %d has no name", ErrInvalidCatalog, i)
		}
		if _, dup := c.materialByName[key]; dup {
			return nil, fmt.Errorf("%w: duplicate material %q", ErrInvalidCatalog, m.Name)
		}
		if m.Value < 0 {
			return nil, fmt.Errorf("%w: material %q has negative value", ErrInvalidCatalog, m.Name)
		}
		m.ID = MaterialID(i)
		c.Materials[i] = m
		c.materialByName[key] = m.ID
	}

	for i, it := range items {
		key := normalize(it.Name)
		if key == "" {
			return nil, fmt.Errorf("%w: item %d has no name", ErrInvalidCatalog, i)
		}
		if _, dup := c.itemByName[key]; dup {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrInvalidCatalog, it.Name)
		}
		if it.BaseValue <= 0 {
			return nil, fmt.Errorf("%w: item %q needs a positive base value", ErrInvalidCatalog, it.Name)
		}
		if it.CraftHours <= 0 {
			return nil, fmt.Errorf("%w: item %q needs positive craft hours", ErrInvalidCatalog, it.Name)
		}
		it.ID = ItemID(i)
		it.Rare = false
		it.Materials = slices.Clone(it.Materials)
		it.Categories = slices.Clone(it.Categories)
		for _, mq := range it.Materials {
			if int(mq.Material) < 0 || int(mq.Material) >= len(c.Materials) {
				return nil, fmt.Errorf("%w: item %q references unknown material %d", ErrInvalidCatalog, it.Name, mq.Material)
			}
			if mq.Qty <= 0 {
				return nil, fmt.Errorf("%w: item %q has non-positive material quantity", ErrInvalidCatalog, it.Name)
			}
			if c.Materials[mq.Material].Rare {
				it.Rare = true
			}
		}
		c.Items[i] = it
		c.itemByName[key] = it.ID
	}

	return c, nil
}

// Item returns the item with the given ID, or nil if out of range.
func (c *Catalog) Item(id ItemID) *Item {
	if int(id) < 0 || int(id) >= len(c.Items) {
		return nil
	}
	return &c.Items[id]
}

// Material returns the material with the given ID, or nil if out of range.
func (c *Catalog) Material(id MaterialID) *Material {
	if int(id) < 0 || int(id) >= len(c.Materials) {
		return nil
	}
	return &c.Materials[id]
}

// ItemByName looks up an item ignoring case and the "Isleworks" prefix.
func (c *Catalog) ItemByName(name string) (ItemID, bool) {
	id, ok := c.itemByName[normalize(name)]
	return id, ok
}

// MaterialByName looks up a material ignoring case and the "Island"/"Isleworks" prefix.
func (c *Catalog) MaterialByName(name string) (MaterialID, bool) {
	id, ok := c.materialByName[normalize(name)]
	return id, ok
}

// RequiredMaterials returns the materials one craft of item consumes in the given
// slot position. Slot position does not change the recipe today; it is part of the
// signature so batch policies can vary it.
func (c *Catalog) RequiredMaterials(id ItemID, slot int) []MaterialQty {
	it := c.Item(id)
	if it == nil || slot < 0 {
		return nil
	}
	return it.Materials
}

// SharesCategory reports whether two items have at least one category in common.
func (c *Catalog) SharesCategory(a, b ItemID) bool {
	ia, ib := c.Item(a), c.Item(b)
	if ia == nil || ib == nil {
		return false
	}
	for _, ca := range ia.Categories {
		if slices.Contains(ib.Categories, ca) {
			return true
		}
	}
	return false
}

// ItemNames returns the names of the given items.
func (c *Catalog) ItemNames(ids []ItemID) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if it := c.Item(id); it != nil {
			names = append(names, it.Name)
		}
	}
	return names
}

func normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, prefix := range []string{"isleworks ", "island "} {
		n = strings.TrimPrefix(n, prefix)
	}
	return strings.Join(strings.Fields(n), " ")
}
