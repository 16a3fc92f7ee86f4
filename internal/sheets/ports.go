// Package sheets renders month trees as spreadsheet rows and defines the
// exporter port implemented by the Google and in-memory adapters.
package sheets

import (
	"context"

	"compras/internal/core"
)

// MonthExporter writes a full month to its own tab, replacing whatever
// the tab held before.
type MonthExporter interface {
	ExportMonth(ctx context.Context, month string, tree core.Tree) error
}

// Header is the first row of every exported tab.
var Header = []any{"Categoria", "Item", "Quantidade", "Preço", "Subtotal"}

// TabName is the tab a month is exported to.
func TabName(month string) string {
	return core.MonthLabel(month)
}

// Rows renders tree as a header, one row per item in tree order and a
// closing TOTAL row.
func Rows(tree core.Tree) [][]any {
	rows := make([][]any, 0, tree.ItemCount()+2)
	rows = append(rows, Header)
	for _, c := range tree {
		for _, it := range c.Items {
			rows = append(rows, []any{c.Name, it.Name, it.Quantity, it.Price, it.Subtotal()})
		}
	}
	rows = append(rows, []any{"TOTAL", "", "", "", core.TotalCost(tree)})
	return rows
}
