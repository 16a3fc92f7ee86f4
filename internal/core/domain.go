package core

import (
	"errors"
	"strings"
)

type (
	// Item is a single line of a monthly shopping list. Subtotal is derived.
	Item struct {
		ID       int64   `json:"id" yaml:"id"`
		Name     string  `json:"name" yaml:"name"`
		Quantity float64 `json:"quantity" yaml:"quantity"`
		Price    float64 `json:"price" yaml:"price"`
	}

	// Category groups items. Names are unique within a tree ignoring case.
	Category struct {
		ID    int64  `json:"id" yaml:"id"`
		Name  string `json:"name" yaml:"name"`
		Items []Item `json:"items" yaml:"items"`
	}

	// Tree is the full categorized list for one month. Category order is
	// insertion order; items inside a category are kept collated by name.
	Tree []Category

	// Document is the shape stored remotely, one per month key.
	Document struct {
		Categories Tree `json:"categories"`
	}

	// NewItem carries the user supplied values for AddItem.
	NewItem struct {
		Name     string
		Quantity any
		Price    any
	}

	// Estimation is a transient suggestion returned by the estimation service.
	Estimation struct {
		Name              string  `json:"name"`
		EstimatedQuantity float64 `json:"estimatedQuantity"`
		Unit              string  `json:"unit"`
	}

	// Selection is an estimation the user accepted, possibly with an edited quantity.
	Selection struct {
		Name     string `json:"name"`
		Quantity any    `json:"quantity"`
	}
)

// Field names an editable item attribute.
type Field string

const (
	FieldName     Field = "name"
	FieldQuantity Field = "quantity"
	FieldPrice    Field = "price"
)

var (
	ErrUnknownField = errors.New("unknown item field")
	ErrInvalidMonth = errors.New("invalid month")
)

// ParseField maps a wire name to a Field.
func ParseField(s string) (Field, error) {
	switch Field(strings.ToLower(strings.TrimSpace(s))) {
	case FieldName:
		return FieldName, nil
	case FieldQuantity:
		return FieldQuantity, nil
	case FieldPrice:
		return FieldPrice, nil
	}
	return "", ErrUnknownField
}

// Subtotal returns quantity times price.
func (i Item) Subtotal() float64 {
	return i.Quantity * i.Price
}

// Clone returns a deep copy of the tree.
func (t Tree) Clone() Tree {
	if t == nil {
		return nil
	}
	out := make(Tree, len(t))
	for i, c := range t {
		out[i] = c.clone()
	}
	return out
}

func (c Category) clone() Category {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// FindItem returns the category and item index of the first item with id.
func (t Tree) FindItem(id int64) (ci, ii int, ok bool) {
	for ci, c := range t {
		for ii, it := range c.Items {
			if it.ID == id {
				return ci, ii, true
			}
		}
	}
	return -1, -1, false
}

// CategoryIndex finds a category by name ignoring case.
func (t Tree) CategoryIndex(name string) int {
	for i, c := range t {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// ItemCount returns the number of items across all categories.
func (t Tree) ItemCount() int {
	n := 0
	for _, c := range t {
		n += len(c.Items)
	}
	return n
}

// hasID reports whether id is used by any category or item.
func (t Tree) hasID(id int64) bool {
	for _, c := range t {
		if c.ID == id {
			return true
		}
		for _, it := range c.Items {
			if it.ID == id {
				return true
			}
		}
	}
	return false
}

func (c Category) itemIndex(name string) int {
	for i, it := range c.Items {
		if strings.EqualFold(it.Name, name) {
			return i
		}
	}
	return -1
}
