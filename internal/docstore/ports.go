// Package docstore defines the remote document store the month partitions
// are persisted to: one document per month key, shaped {categories: Tree}.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"compras/internal/core"
)

var ErrClosed = errors.New("document store closed")

// FirstVersion is the version of a freshly created document. Every later
// write increments it.
const FirstVersion int64 = 1

type (
	// Snapshot is the state of a month document at some version. Exists is
	// false when no document has been created for the month yet.
	Snapshot struct {
		Month   string
		Exists  bool
		Tree    core.Tree
		Version int64
	}

	// Unsubscribe stops a subscription. It is safe to call more than once.
	Unsubscribe func()

	// Store is the outbound port to the document store. Only whole-tree
	// writes are offered.
	Store interface {
		// Subscribe delivers the current snapshot and every later change of
		// month until unsubscribed. Callbacks run on a goroutine owned by
		// the store; snapshots may be coalesced, the latest always wins.
		Subscribe(ctx context.Context, month string, onSnapshot func(Snapshot), onError func(error)) (Unsubscribe, error)
		// Create stores tree only if month has no document yet. A created
		// document is at FirstVersion.
		Create(ctx context.Context, month string, tree core.Tree) (created bool, err error)
		// Replace overwrites the whole month document and returns the
		// version it produced.
		Replace(ctx context.Context, month string, tree core.Tree) (int64, error)
		// Get reads the current snapshot.
		Get(ctx context.Context, month string) (Snapshot, error)
	}
)

// Encode serializes a tree as a month document.
func Encode(tree core.Tree) ([]byte, error) {
	if tree == nil {
		tree = core.Tree{}
	}
	b, err := json.Marshal(core.Document{Categories: tree})
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return b, nil
}

// Decode parses a month document. Numbers are sanitized and every category
// gets a non-nil item slice so decoded trees compare equal to built ones.
func Decode(data []byte) (core.Tree, error) {
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	tree := doc.Categories
	if tree == nil {
		tree = core.Tree{}
	}
	for ci := range tree {
		if tree[ci].Items == nil {
			tree[ci].Items = []core.Item{}
		}
		for ii := range tree[ci].Items {
			it := &tree[ci].Items[ii]
			it.Quantity = core.Sanitize(it.Quantity)
			it.Price = core.Sanitize(it.Price)
		}
	}
	return tree, nil
}
