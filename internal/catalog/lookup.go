package catalog

import (
	"strings"

	"compras/internal/core"
)

// Lookup maps lower-cased catalog item names to their category. It only
// knows catalog items, never names typed by the user.
type Lookup struct {
	exact map[string]core.CatalogRef
	// bare holds names with the unit suffix removed; nil marks ambiguity.
	bare map[string]*core.CatalogRef
}

var _ core.Lookup = (*Lookup)(nil)

// Lookup builds the name index. The first occurrence of a name wins.
func (c *Catalog) Lookup() *Lookup {
	l := &Lookup{
		exact: map[string]core.CatalogRef{},
		bare:  map[string]*core.CatalogRef{},
	}
	for _, cat := range c.Categories {
		for _, it := range cat.Items {
			ref := core.CatalogRef{CategoryID: cat.ID, CategoryName: cat.Name, ItemName: it.Name}
			key := normalize(it.Name)
			if _, ok := l.exact[key]; !ok {
				l.exact[key] = ref
			}
			b := stripUnit(key)
			if b == key {
				continue
			}
			if prev, seen := l.bare[b]; seen {
				if prev != nil && prev.ItemName != ref.ItemName {
					l.bare[b] = nil
				}
				continue
			}
			r := ref
			l.bare[b] = &r
		}
	}
	return l
}

// Resolve looks name up in an index built on first use. Categories must
// not be modified afterwards.
func (c *Catalog) Resolve(name string) (core.CatalogRef, bool) {
	c.lookupOnce.Do(func() { c.lookup = c.Lookup() })
	return c.lookup.Resolve(name)
}

// Resolve finds the catalog entry for name.
func (l *Lookup) Resolve(name string) (core.CatalogRef, bool) {
	key := normalize(name)
	if ref, ok := l.exact[key]; ok {
		return ref, true
	}
	if ref := l.bare[stripUnit(key)]; ref != nil {
		return *ref, true
	}
	return core.CatalogRef{}, false
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// stripUnit drops a trailing parenthesised unit such as "(kg)".
func stripUnit(s string) string {
	if i := strings.LastIndex(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		return s[:i]
	}
	return s
}
