package catalog

// defaultFile is the built-in island workshop catalog. Values are base values
// before popularity, supply and groove modifiers.
var defaultFile = File{
	Materials: []MaterialSpec{
		{Name: "Island Palm Leaf"},
		{Name: "Island Sap"},
		{Name: "Island Sand"},
		{Name: "Island Limestone"},
		{Name: "Islewort"},
		{Name: "Island Log"},
		{Name: "Island Vine"},
		{Name: "Island Clam"},
		{Name: "Island Laver"},
		{Name: "Island Branch"},
		{Name: "Island Coral"},
		{Name: "Island Copper Ore"},
		{Name: "Island Palm Log"},
		{Name: "Island Stone"},
		{Name: "Island Rock Salt"},
		{Name: "Island Hemp"},
		{Name: "Isleworks Cabbage", Rare: true, Value: 4},
		{Name: "Isleworks Pumpkin", Rare: true, Value: 4},
		{Name: "Sanctuary Fleece", Rare: true, Value: 8},
		{Name: "Sanctuary Claw", Rare: true, Value: 8},
		{Name: "Sanctuary Fur", Rare: true, Value: 8},
		{Name: "Sanctuary Egg", Rare: true, Value: 6},
		{Name: "Sanctuary Fang", Rare: true, Value: 8},
		{Name: "Sanctuary Milk", Rare: true, Value: 6},
	},
	Items: []ItemSpec{
		{Name: "Isleworks Potion", Value: 28, Hours: 4, Categories: []string{"concoctions"},
			Materials: map[string]int{"Island Sap": 2, "Island Palm Leaf": 2}},
		{Name: "Isleworks Firesand", Value: 28, Hours: 4, Categories: []string{"concoctions", "unburied treasures"},
			Materials: map[string]int{"Island Sand": 2, "Island Limestone": 1, "Islewort": 1}},
		{Name: "Isleworks Wooden Chair", Value: 42, Hours: 6, Categories: []string{"furnishings", "woodworks"},
			Materials: map[string]int{"Island Log": 4, "Island Vine": 2}},
		{Name: "Isleworks Grilled Clam", Value: 28, Hours: 4, Categories: []string{"foodstuffs", "marine merchandise"},
			Materials: map[string]int{"Island Clam": 2, "Island Laver": 2}},
		{Name: "Isleworks Necklace", Value: 28, Hours: 4, Categories: []string{"accessories", "woodworks"},
			Materials: map[string]int{"Island Branch": 3, "Island Vine": 1}},
		{Name: "Isleworks Coral Ring", Value: 42, Hours: 6, Categories: []string{"accessories", "marine merchandise"},
			Materials: map[string]int{"Island Coral": 3, "Island Hemp": 3}},
		{Name: "Isleworks Barbut", Value: 42, Hours: 6, Categories: []string{"attire", "metalworks"},
			Materials: map[string]int{"Island Copper Ore": 3, "Island Sand": 3}},
		{Name: "Isleworks Macuahuitl", Value: 42, Hours: 6, Categories: []string{"arms", "woodworks"},
			Materials: map[string]int{"Island Palm Log": 3, "Island Stone": 3}},
		{Name: "Isleworks Sauerkraut", Value: 40, Hours: 4, Categories: []string{"preserved food"},
			Materials: map[string]int{"Isleworks Cabbage": 1, "Island Rock Salt": 3}},
		{Name: "Isleworks Baked Pumpkin", Value: 40, Hours: 4, Categories: []string{"foodstuffs"},
			Materials: map[string]int{"Isleworks Pumpkin": 1, "Island Sap": 3}},
		{Name: "Isleworks Tunic", Value: 72, Hours: 6, Categories: []string{"attire", "textiles"},
			Materials: map[string]int{"Sanctuary Fleece": 2, "Island Vine": 4}},
		{Name: "Isleworks Culinary Knife", Value: 44, Hours: 4, Categories: []string{"sundries", "creature creations"},
			Materials: map[string]int{"Sanctuary Claw": 1, "Island Palm Log": 3}},
		{Name: "Isleworks Brush", Value: 44, Hours: 4, Categories: []string{"sundries", "woodworks"},
			Materials: map[string]int{"Sanctuary Fur": 1, "Island Palm Leaf": 3}},
		{Name: "Isleworks Boiled Egg", Value: 44, Hours: 4, Categories: []string{"foodstuffs", "creature creations"},
			Materials: map[string]int{"Sanctuary Egg": 1, "Island Laver": 3}},
		{Name: "Isleworks Hora", Value: 72, Hours: 6, Categories: []string{"arms", "creature creations"},
			Materials: map[string]int{"Sanctuary Fang": 2, "Island Stone": 4}},
		{Name: "Isleworks Earrings", Value: 44, Hours: 4, Categories: []string{"accessories", "creature creations"},
			Materials: map[string]int{"Sanctuary Fang": 1, "Island Vine": 3}},
		{Name: "Isleworks Butter", Value: 44, Hours: 4, Categories: []string{"ingredients", "creature creations"},
			Materials: map[string]int{"Sanctuary Milk": 1, "Island Rock Salt": 3}},
		{Name: "Isleworks Silver Ear Cuffs", Value: 34, Hours: 4, Categories: []string{"accessories", "metalworks"},
			Materials: map[string]int{"Island Copper Ore": 2, "Island Limestone": 2}},
	},
}

// Default returns the built-in catalog. It panics only if the embedded data is broken.
func Default() *Catalog {
	c, err := defaultFile.Build()
	if err != nil {
		panic(err)
	}
	return c
}
