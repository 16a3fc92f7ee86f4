// Package catalog holds the default list every new month starts from and
// the name lookup used to place estimated items into categories.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"compras/internal/core"
)

//go:embed catalog.yaml
var defaultYAML []byte

type (
	// Catalog is the parsed seed dataset.
	Catalog struct {
		Version    int               `yaml:"version"`
		Defaults   Defaults          `yaml:"defaults"`
		Categories []CatalogCategory `yaml:"categories"`

		lookupOnce sync.Once
		lookup     *Lookup
	}

	Defaults struct {
		Quantity float64 `yaml:"quantity"`
		Price    float64 `yaml:"price"`
	}

	CatalogCategory struct {
		ID    int64         `yaml:"id"`
		Name  string        `yaml:"name"`
		Items []CatalogItem `yaml:"items"`
	}

	// CatalogItem overrides the defaults when Quantity or Price are set.
	CatalogItem struct {
		Name     string   `yaml:"name"`
		Quantity *float64 `yaml:"quantity,omitempty"`
		Price    *float64 `yaml:"price,omitempty"`
	}
)

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the embedded catalog, parsed once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(defaultYAML)
	})
	return defaultCat, defaultErr
}

// MustDefault is Default for program start-up.
func MustDefault() *Catalog {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads and validates a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks category ids and names are unique and items are named.
func (c *Catalog) Validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	ids := map[int64]bool{}
	names := map[string]bool{}
	for _, cat := range c.Categories {
		if cat.ID <= 0 {
			return fmt.Errorf("category %q: id must be positive", cat.Name)
		}
		if ids[cat.ID] {
			return fmt.Errorf("duplicate category id %d", cat.ID)
		}
		ids[cat.ID] = true
		key := strings.ToLower(strings.TrimSpace(cat.Name))
		if key == "" {
			return fmt.Errorf("category %d: empty name", cat.ID)
		}
		if names[key] {
			return fmt.Errorf("duplicate category name %q", cat.Name)
		}
		names[key] = true
		for i, it := range cat.Items {
			if strings.TrimSpace(it.Name) == "" {
				return fmt.Errorf("category %q item %d: empty name", cat.Name, i)
			}
		}
	}
	return nil
}

// Seed builds a fresh tree for a month never seen before. Item ids are
// numbered from 1 in catalog order, so every call returns the same tree.
func (c *Catalog) Seed() core.Tree {
	ids := core.NewSequenceIDs(1)
	tree := make(core.Tree, 0, len(c.Categories))
	for _, cat := range c.Categories {
		items := make([]core.Item, 0, len(cat.Items))
		for _, it := range cat.Items {
			qty, price := c.Defaults.Quantity, c.Defaults.Price
			if it.Quantity != nil {
				qty = *it.Quantity
			}
			if it.Price != nil {
				price = *it.Price
			}
			items = append(items, core.Item{
				ID:       ids.NextID(),
				Name:     it.Name,
				Quantity: core.Sanitize(qty),
				Price:    core.Sanitize(price),
			})
		}
		tree = append(tree, core.Category{ID: cat.ID, Name: cat.Name, Items: items})
	}
	return tree
}

// ItemNames lists every catalog item in catalog order.
func (c *Catalog) ItemNames() []string {
	var out []string
	for _, cat := range c.Categories {
		for _, it := range cat.Items {
			out = append(out, it.Name)
		}
	}
	return out
}

// CategoryNames lists the catalog categories in order.
func (c *Catalog) CategoryNames() []string {
	out := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = cat.Name
	}
	return out
}
