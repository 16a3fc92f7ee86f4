package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/core"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 1, c.Version)
	assert.Equal(t, []string{
		"Grãos e Derivados", "Limpeza", "Carnes", "Ovos",
		"Laticínios", "Verduras e Legumes", "Frutas",
	}, c.CategoryNames())
	assert.Len(t, c.ItemNames(), 100)
}

func TestSeedIsReproducible(t *testing.T) {
	c := MustDefault()
	a, b := c.Seed(), c.Seed()
	assert.Equal(t, a, b)

	a[0].Items[0].Quantity = 42
	assert.Equal(t, 1.0, c.Seed()[0].Items[0].Quantity, "seed must not share state between calls")
}

func TestSeedAssignsSequentialIDsAndDefaults(t *testing.T) {
	tree := MustDefault().Seed()
	require.NotEmpty(t, tree)
	assert.Equal(t, int64(1), tree[0].ID)
	assert.Equal(t, core.Item{ID: 1, Name: "Arroz", Quantity: 1, Price: 0}, tree[0].Items[0])

	seen := map[int64]bool{}
	var next int64 = 1
	for _, cat := range tree {
		assert.NotEmpty(t, cat.Items, cat.Name)
		for _, it := range cat.Items {
			assert.Equal(t, next, it.ID)
			assert.False(t, seen[it.ID])
			seen[it.ID] = true
			next++
		}
	}
	assert.Equal(t, 0.0, core.TotalCost(tree))
}

func TestParseOverridesAndValidation(t *testing.T) {
	c, err := Parse([]byte(`
version: 2
defaults: {quantity: 1, price: 0}
categories:
  - id: 3
    name: Frutas
    items:
      - name: Banana (Kg)
        price: 5.5
      - name: Kiwi
        quantity: 4
`))
	require.NoError(t, err)
	tree := c.Seed()
	assert.Equal(t, core.Tree{{ID: 3, Name: "Frutas", Items: []core.Item{
		{ID: 1, Name: "Banana (Kg)", Quantity: 1, Price: 5.5},
		{ID: 2, Name: "Kiwi", Quantity: 4, Price: 0},
	}}}, tree)

	bad := []string{
		`categories: []`,
		"categories:\n  - {id: 1, name: A}\n  - {id: 1, name: B}",
		"categories:\n  - {id: 1, name: A}\n  - {id: 2, name: a}",
		"categories:\n  - {id: 0, name: A}",
		"categories:\n  - {id: 1, name: A, items: [{name: ''}]}",
		"categories: [",
	}
	for _, doc := range bad {
		_, err := Parse([]byte(doc))
		assert.Error(t, err, doc)
	}
}

func TestLookupResolve(t *testing.T) {
	l := MustDefault().Lookup()

	ref, ok := l.Resolve("ARROZ")
	require.True(t, ok)
	assert.Equal(t, core.CatalogRef{CategoryID: 1, CategoryName: "Grãos e Derivados", ItemName: "Arroz"}, ref)

	ref, ok = l.Resolve("banana")
	require.True(t, ok)
	assert.Equal(t, "Banana (Kg)", ref.ItemName)
	assert.Equal(t, "Frutas", ref.CategoryName)

	ref, ok = l.Resolve("  ovos   (dúzia) ")
	require.True(t, ok)
	assert.Equal(t, int64(4), ref.CategoryID)

	_, ok = l.Resolve("Caviar")
	assert.False(t, ok)
}

func TestLookupAmbiguousBareNameDoesNotResolve(t *testing.T) {
	c, err := Parse([]byte(`
categories:
  - id: 1
    name: A
    items: [{name: Leite (L)}, {name: Leite (Cx)}]
`))
	require.NoError(t, err)
	_, ok := c.Lookup().Resolve("leite")
	assert.False(t, ok)
	_, ok = c.Lookup().Resolve("leite (cx)")
	assert.True(t, ok)
}

func TestImportWithCatalogLookupIsIdempotent(t *testing.T) {
	c := MustDefault()
	sel := []core.Selection{{Name: "arroz", Quantity: 5}, {Name: "Ovos (Dúzia)", Quantity: 2}}
	ids := core.NewSequenceIDs(1000)
	tree := core.DeleteItem(c.Seed(), 47) // some id in Limpeza
	once, _ := core.ImportEstimations(tree, sel, c.Lookup(), ids)
	twice, _ := core.ImportEstimations(once, sel, c.Lookup(), ids)
	assert.Equal(t, once, twice)
}
