// Package taxonomy derives the animal/flavor/protein classification of a
// product from its storefront tags, falling back to keywords in the title
// and product type. Explicit tag prefixes always win:
//
//	animal:venison  flavor:teriyaki  protein:game
package taxonomy

import "strings"

// Taxonomy is the derived classification for one product.
type Taxonomy struct {
	AnimalType      string
	AnimalDisplay   string
	AnimalIcon      string
	FlavorPrimary   string
	FlavorSecondary string
	FlavorDisplay   string
	FlavorIcon      string
	ProteinCategory string
}

type animalInfo struct {
	display string
	icon    string
	protein string
}

var animals = map[string]animalInfo{
	"beef":    {display: "Beef", icon: "🐄", protein: "red_meat"},
	"pork":    {display: "Pork", icon: "🐖", protein: "red_meat"},
	"bison":   {display: "Bison", icon: "🦬", protein: "game"},
	"venison": {display: "Venison", icon: "🦌", protein: "game"},
	"elk":     {display: "Elk", icon: "🫎", protein: "game"},
	"boar":    {display: "Wild Boar", icon: "🐗", protein: "game"},
	"turkey":  {display: "Turkey", icon: "🦃", protein: "poultry"},
	"chicken": {display: "Chicken", icon: "🐓", protein: "poultry"},
	"duck":    {display: "Duck", icon: "🦆", protein: "poultry"},
	"salmon":  {display: "Salmon", icon: "🐟", protein: "seafood"},
	"ahi":     {display: "Ahi Tuna", icon: "🐟", protein: "seafood"},
}

type flavorInfo struct {
	display string
	icon    string
}

var flavors = map[string]flavorInfo{
	"original": {display: "Original", icon: "🧂"},
	"peppered": {display: "Peppered", icon: "🌶️"},
	"teriyaki": {display: "Teriyaki", icon: "🥢"},
	"sweet":    {display: "Sweet", icon: "🍯"},
	"spicy":    {display: "Spicy", icon: "🔥"},
	"bbq":      {display: "BBQ", icon: "♨️"},
	"honey":    {display: "Honey Glazed", icon: "🍯"},
	"garlic":   {display: "Garlic", icon: "🧄"},
	"jalapeno": {display: "Jalapeño", icon: "🌶️"},
	"sriracha": {display: "Sriracha", icon: "🌶️"},
	"smoked":   {display: "Smoked", icon: "💨"},
	"maple":    {display: "Maple", icon: "🍁"},
}

// Derive classifies a product. Tag prefixes override keyword matches; the
// first flavor keyword becomes primary and the second, when present,
// secondary.
func Derive(title, productType string, tags []string) Taxonomy {
	var t Taxonomy

	// Pass 1: explicit prefixes.
	for _, raw := range tags {
		tag := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case strings.HasPrefix(tag, "animal:"):
			t.setAnimal(strings.TrimPrefix(tag, "animal:"))
		case strings.HasPrefix(tag, "flavor:"):
			t.addFlavor(strings.TrimPrefix(tag, "flavor:"))
		case strings.HasPrefix(tag, "protein:"):
			t.ProteinCategory = strings.TrimPrefix(tag, "protein:")
		}
	}

	// Pass 2: keyword scan over tags, then title and product type.
	corpus := make([]string, 0, len(tags)+2)
	for _, tag := range tags {
		corpus = append(corpus, strings.ToLower(tag))
	}
	corpus = append(corpus, strings.ToLower(title), strings.ToLower(productType))

	for _, text := range corpus {
		for _, word := range strings.FieldsFunc(text, splitWord) {
			if t.AnimalType == "" {
				if _, ok := animals[word]; ok {
					t.setAnimal(word)
					continue
				}
			}
			if _, ok := flavors[word]; ok {
				t.addFlavor(word)
			}
		}
	}
	return t
}

func (t *Taxonomy) setAnimal(key string) {
	key = strings.TrimSpace(key)
	if key == "" || t.AnimalType != "" {
		return
	}
	t.AnimalType = key
	if info, ok := animals[key]; ok {
		t.AnimalDisplay = info.display
		t.AnimalIcon = info.icon
		if t.ProteinCategory == "" {
			t.ProteinCategory = info.protein
		}
	} else {
		t.AnimalDisplay = titleCase(key)
	}
}

func (t *Taxonomy) addFlavor(key string) {
	key = strings.TrimSpace(key)
	if key == "" || key == t.FlavorPrimary {
		return
	}
	if t.FlavorPrimary == "" {
		t.FlavorPrimary = key
		if info, ok := flavors[key]; ok {
			t.FlavorDisplay = info.display
			t.FlavorIcon = info.icon
		} else {
			t.FlavorDisplay = titleCase(key)
		}
		return
	}
	if t.FlavorSecondary == "" {
		t.FlavorSecondary = key
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func splitWord(r rune) bool {
	return r == ' ' || r == '-' || r == '_' || r == ',' || r == '/'
}
