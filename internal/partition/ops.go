package partition

import (
	"context"

	"compras/internal/core"
	"compras/internal/log"
)

// UpdateItem sets one field of an item. Unknown ids leave the tree as is.
func (m *Manager) UpdateItem(ctx context.Context, month string, id int64, field core.Field, value any) (core.Tree, error) {
	tree, err := m.Apply(ctx, month, func(t core.Tree) core.Tree {
		return core.UpdateItemField(t, id, field, value)
	})
	if err == nil {
		m.metrics.RecordMutation(log.OpUpdate)
		m.logger.DebugContext(ctx, "Item updated",
			log.NewFields().WithItem(month, id, "").ToSlice()...)
	}
	return tree, err
}

// DeleteItem removes an item and prunes its category if it becomes empty.
func (m *Manager) DeleteItem(ctx context.Context, month string, id int64) (core.Tree, error) {
	tree, err := m.Apply(ctx, month, func(t core.Tree) core.Tree {
		return core.DeleteItem(t, id)
	})
	if err == nil {
		m.metrics.RecordMutation(log.OpDelete)
		m.logger.InfoContext(ctx, "Item deleted",
			log.NewFields().WithItem(month, id, "").ToSlice()...)
	}
	return tree, err
}

// AddItem appends an item to categoryName, creating the category if needed.
func (m *Manager) AddItem(ctx context.Context, month string, item core.NewItem, categoryName string) (core.Tree, error) {
	tree, err := m.Apply(ctx, month, func(t core.Tree) core.Tree {
		return core.AddItem(t, item, categoryName, m.ids)
	})
	if err == nil {
		m.metrics.RecordMutation(log.OpAdd)
		m.logger.InfoContext(ctx, "Item added",
			append(log.NewFields().WithItem(month, 0, item.Name).ToSlice(), log.FieldCategory, categoryName)...)
	}
	return tree, err
}

// ImportEstimations merges accepted estimations into month. Names the
// catalog cannot place are reported and skipped.
func (m *Manager) ImportEstimations(ctx context.Context, month string, selections []core.Selection) (core.Tree, core.ImportReport, error) {
	var report core.ImportReport
	tree, err := m.Apply(ctx, month, func(t core.Tree) core.Tree {
		next, r := core.ImportEstimations(t, selections, m.catalog, m.ids)
		report = r
		return next
	})
	if err != nil {
		return nil, report, err
	}
	m.metrics.RecordMutation(log.OpImport)
	for _, name := range report.Unresolved {
		m.logger.WarnContext(ctx, "Estimation has no catalog category, skipped",
			log.FieldMonth, month, log.FieldItemName, name)
	}
	m.logger.InfoContext(ctx, "Estimations imported",
		log.FieldMonth, month,
		"updated", report.Updated,
		"added", report.Added,
		"skipped", report.Skipped)
	return tree, report, nil
}

// Summary returns the aggregate view of month.
func (m *Manager) Summary(ctx context.Context, month string) (core.Tree, core.MonthSummary, error) {
	tree, err := m.Snapshot(ctx, month)
	if err != nil {
		return nil, core.MonthSummary{}, err
	}
	return tree, core.Summarize(month, tree), nil
}
