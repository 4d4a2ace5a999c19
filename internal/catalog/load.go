package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// File models a catalog YAML document. Item materials are referenced by name.
type File struct {
	Materials []MaterialSpec `yaml:"materials"`
	Items     []ItemSpec     `yaml:"items"`
}

// MaterialSpec is one material entry in a catalog file.
type MaterialSpec struct {
	Name  string  `yaml:"name"`
	Rare  bool    `yaml:"rare,omitempty"`
	Value float64 `yaml:"value,omitempty"`
}

// ItemSpec is one item entry in a catalog file.
type ItemSpec struct {
	Name       string         `yaml:"name"`
	Value      float64        `yaml:"value"`
	Hours      int            `yaml:"hours"`
	Categories []string       `yaml:"categories"`
	Materials  map[string]int `yaml:"materials"`
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog YAML document.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return f.Build()
}

// Build resolves material names and validates the result.
func (f File) Build() (*Catalog, error) {
	materials := make([]Material, len(f.Materials))
	index := make(map[string]MaterialID, len(f.Materials))
	for i, ms := range f.Materials {
		materials[i] = Material{Name: ms.Name, Rare: ms.Rare, Value: ms.Value}
		index[normalize(ms.Name)] = MaterialID(i)
	}

	items := make([]Item, len(f.Items))
	for i, is := range f.Items {
		// Sorted for a deterministic recipe order; map order is random.
		names := make([]string, 0, len(is.Materials))
		for name := range is.Materials {
			names = append(names, name)
		}
		sort.Strings(names)

		mats := make([]MaterialQty, 0, len(names))
		for _, name := range names {
			id, ok := index[normalize(name)]
			if !ok {
				return nil, fmt.Errorf("%w: item %q uses unknown material %q", ErrInvalidCatalog, is.Name, name)
			}
			mats = append(mats, MaterialQty{Material: id, Qty: is.Materials[name]})
		}
		items[i] = Item{
			Name:       is.Name,
			BaseValue:  is.Value,
			CraftHours: is.Hours,
			Categories: is.Categories,
			Materials:  mats,
		}
	}

	return New(items, materials)
}
