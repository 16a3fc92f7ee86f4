package core

import (
	"fmt"
	"strings"
)

// Lookup resolves an estimation name to its place in the default catalog.
type Lookup interface {
	Resolve(name string) (CatalogRef, bool)
}

// CatalogRef locates an item in the default catalog.
type CatalogRef struct {
	CategoryID   int64
	CategoryName string
	ItemName     string
}

// ImportReport describes what ImportEstimations did with its input.
type ImportReport struct {
	Updated    int      `json:"updated"`
	Added      int      `json:"added"`
	Skipped    int      `json:"skipped"`
	Unresolved []string `json:"unresolved"`
}

// UpdateItemField sets one field of the first item with itemID. Quantity and
// price values go through Sanitize. An unknown id or field returns t as is.
func UpdateItemField(t Tree, itemID int64, field Field, value any) Tree {
	ci, ii, ok := t.FindItem(itemID)
	if !ok {
		return t
	}
	out := t.Clone()
	it := &out[ci].Items[ii]
	switch field {
	case FieldName:
		if value == nil {
			it.Name = ""
		} else {
			it.Name = fmt.Sprint(value)
		}
	case FieldQuantity:
		it.Quantity = Sanitize(value)
		it.Price = Sanitize(it.Price)
	case FieldPrice:
		it.Price = Sanitize(value)
		it.Quantity = Sanitize(it.Quantity)
	default:
		return t
	}
	return out
}

// DeleteItem removes the item with itemID and drops every category left
// without items. Surviving categories keep their order.
func DeleteItem(t Tree, itemID int64) Tree {
	if _, _, ok := t.FindItem(itemID); !ok {
		return t
	}
	out := make(Tree, 0, len(t))
	for _, c := range t {
		items := make([]Item, 0, len(c.Items))
		for _, it := range c.Items {
			if it.ID != itemID {
				items = append(items, it)
			}
		}
		if len(items) == 0 {
			continue
		}
		c.Items = items
		out = append(out, c)
	}
	return out
}

// AddItem inserts a new item into the category matching categoryName
// ignoring case, then re-sorts that category. When no category matches, a
// new one is appended at the end of the tree; categories are never sorted.
func AddItem(t Tree, n NewItem, categoryName string, ids IDSource) Tree {
	categoryName = strings.TrimSpace(categoryName)
	out := t.Clone()
	item := Item{
		ID:       freshID(out, ids),
		Name:     strings.TrimSpace(n.Name),
		Quantity: Sanitize(n.Quantity),
		Price:    Sanitize(n.Price),
	}
	if i := out.CategoryIndex(categoryName); i >= 0 {
		out[i].Items = append(out[i].Items, item)
		SortItems(out[i].Items)
		return out
	}
	return append(out, Category{
		ID:    freshID(out, ids, item.ID),
		Name:  categoryName,
		Items: []Item{item},
	})
}

// ImportEstimations merges accepted estimations into t.
//
// Selections with a quantity <= 0 are skipped. Names the lookup cannot
// place are skipped and listed in the report. A missing category is created
// with its catalog id. An existing item (same name ignoring case) has its
// quantity overwritten and its price kept; otherwise a new item with price
// zero is appended and the category re-sorted. Applying the same input
// twice yields the same tree as applying it once.
func ImportEstimations(t Tree, selections []Selection, lookup Lookup, ids IDSource) (Tree, ImportReport) {
	var rep ImportReport
	out := t.Clone()
	changed := false
	for _, s := range selections {
		qty := Sanitize(s.Quantity)
		if qty <= 0 {
			rep.Skipped++
			continue
		}
		ref, ok := lookup.Resolve(s.Name)
		if !ok {
			rep.Unresolved = append(rep.Unresolved, s.Name)
			continue
		}
		ci := out.CategoryIndex(ref.CategoryName)
		if ci < 0 {
			id := ref.CategoryID
			if id == 0 || out.hasCategoryID(id) {
				id = freshID(out, ids)
			}
			out = append(out, Category{ID: id, Name: ref.CategoryName, Items: []Item{}})
			ci = len(out) - 1
		}
		name := ref.ItemName
		if name == "" {
			name = strings.TrimSpace(s.Name)
		}
		if ii := out[ci].itemIndex(name); ii >= 0 {
			out[ci].Items[ii].Quantity = qty
			rep.Updated++
		} else {
			out[ci].Items = append(out[ci].Items, Item{ID: freshID(out, ids), Name: name, Quantity: qty})
			SortItems(out[ci].Items)
			rep.Added++
		}
		changed = true
	}
	if !changed {
		return t, rep
	}
	return out, rep
}

func (t Tree) hasCategoryID(id int64) bool {
	for _, c := range t {
		if c.ID == id {
			return true
		}
	}
	return false
}
