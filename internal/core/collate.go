package core

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Locale is the collation used for item names.
var Locale = language.BrazilianPortuguese

// SortItems sorts items in place by name using pt-BR collation, so accented
// names sit next to their unaccented counterparts.
func SortItems(items []Item) {
	// A Collator is not safe for concurrent use; build one per sort.
	c := collate.New(Locale)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(items[i].Name, items[j].Name) < 0
	})
}

// ItemsSorted reports whether items are in collated order.
func ItemsSorted(items []Item) bool {
	c := collate.New(Locale)
	for i := 1; i < len(items); i++ {
		if c.CompareString(items[i-1].Name, items[i].Name) > 0 {
			return false
		}
	}
	return true
}
