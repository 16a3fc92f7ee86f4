package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/catalog"
	"compras/internal/core"
	"compras/internal/docstore"
	"compras/internal/docstore/memory"
	"compras/internal/docsync"
)

func newManager(t *testing.T, store *memory.Store) *Manager {
	t.Helper()
	adapter := docsync.New(store, docsync.Options{})
	m := New(adapter, catalog.MustDefault(), core.NewSequenceIDs(1000), nil, nil)
	adapter.SetWriteErrorHandler(m.HandleWriteError)
	t.Cleanup(func() {
		m.Close(context.Background())
		store.Close()
	})
	return m
}

func TestMissingDocumentIsSeeded(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()

	tree, err := m.Snapshot(ctx, "May")
	require.NoError(t, err)
	assert.Equal(t, catalog.MustDefault().Seed(), tree)
	assert.Equal(t, Ready, m.Status("May").State)

	require.NoError(t, m.Flush(ctx))
	snap, err := store.Get(ctx, "May")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, tree.ItemCount(), snap.Tree.ItemCount())
}

func TestExistingDocumentIsLoaded(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	existing := core.Tree{{ID: 7, Name: "Frutas", Items: []core.Item{{ID: 70, Name: "Banana", Quantity: 2, Price: 3}}}}
	_, err := store.Create(ctx, "June", existing)
	require.NoError(t, err)

	m := newManager(t, store)
	tree, err := m.Snapshot(ctx, "June")
	require.NoError(t, err)
	assert.Equal(t, existing, tree)
	assert.Equal(t, int64(1), m.Status("June").Version)
}

func TestEditsWhileLoadingWaitForReady(t *testing.T) {
	store := memory.New()
	gate := make(chan struct{})
	store.HoldSnapshots(gate)
	m := newManager(t, store)
	ctx := context.Background()

	require.NoError(t, m.Activate(ctx, "March"))
	assert.Equal(t, Loading, m.Status("March").State)

	done := make(chan core.Tree, 1)
	go func() {
		tree, err := m.UpdateItem(ctx, "March", 1, core.FieldQuantity, 5)
		if err != nil {
			t.Error(err)
		}
		done <- tree
	}()

	select {
	case <-done:
		t.Fatal("edit applied before the month was ready")
	case <-time.After(50 * time.Millisecond):
	}

	close(gate)
	select {
	case tree := <-done:
		ci, ii, ok := tree.FindItem(1)
		require.True(t, ok)
		assert.Equal(t, 5.0, tree[ci].Items[ii].Quantity)
	case <-time.After(2 * time.Second):
		t.Fatal("edit never applied")
	}
}

func TestWaitHonoursContext(t *testing.T) {
	store := memory.New()
	store.HoldSnapshots(make(chan struct{}))
	m := newManager(t, store)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := m.Snapshot(ctx, "April")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSubscribeFailureThenRetry(t *testing.T) {
	store := memory.New()
	store.SetFailure("subscribe", errors.New("network unreachable"))
	m := newManager(t, store)
	ctx := context.Background()

	err := m.Activate(ctx, "July")
	require.ErrorIs(t, err, ErrLoadFailed)
	st := m.Status("July")
	assert.Equal(t, Failed, st.State)
	assert.Contains(t, st.LoadError, "network unreachable")

	_, err = m.AddItem(ctx, "July", core.NewItem{Name: "Café"}, "Bebidas")
	assert.ErrorIs(t, err, ErrLoadFailed)

	store.SetFailure("subscribe", nil)
	require.NoError(t, m.Retry(ctx, "July"))
	tree, err := m.Snapshot(ctx, "July")
	require.NoError(t, err)
	assert.NotEmpty(t, tree)
	assert.Equal(t, Ready, m.Status("July").State)
}

func TestSwitchingMonthsUnloadsPrevious(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()

	_, err := m.Snapshot(ctx, "January")
	require.NoError(t, err)
	_, err = m.Snapshot(ctx, "February")
	require.NoError(t, err)

	assert.Equal(t, "February", m.Active())
	assert.Equal(t, Unloaded, m.Status("January").State)
	assert.Equal(t, Ready, m.Status("February").State)
	assert.Equal(t, 0, store.Subscribers("January"))
	assert.Equal(t, 1, store.Subscribers("February"))
}

func TestConcurrentEditsAreNotLost(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()
	_, err := m.Snapshot(ctx, "August")
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.AddItem(ctx, "August", core.NewItem{Name: fmt.Sprintf("Extra %02d", i), Quantity: 1, Price: 1}, "Extras")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	require.NoError(t, m.Flush(ctx))

	require.Eventually(t, func() bool {
		tree, err := m.Snapshot(ctx, "August")
		if err != nil {
			return false
		}
		ci := tree.CategoryIndex("Extras")
		return ci >= 0 && len(tree[ci].Items) == n
	}, 2*time.Second, 10*time.Millisecond)

	snap, err := store.Get(ctx, "August")
	require.NoError(t, err)
	ci := snap.Tree.CategoryIndex("Extras")
	require.GreaterOrEqual(t, ci, 0)
	assert.Len(t, snap.Tree[ci].Items, n)
}

func TestRemoteSnapshotReplacesTree(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()
	_, err := m.Snapshot(ctx, "September")
	require.NoError(t, err)
	require.NoError(t, m.Flush(ctx))

	remote := core.Tree{{ID: 3, Name: "Carnes", Items: []core.Item{{ID: 9, Name: "Frango", Quantity: 2, Price: 12}}}}
	_, err = store.Replace(ctx, "September", remote)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		tree, err := m.Snapshot(ctx, "September")
		return err == nil && tree.ItemCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, summary, err := m.Summary(ctx, "September")
	require.NoError(t, err)
	assert.Equal(t, 24.0, summary.Total)
}

// scriptedSyncer lets a test decide when snapshots arrive and when writes
// complete.
type scriptedSyncer struct {
	mu         sync.Mutex
	onSnapshot func(docstore.Snapshot)
	writes     []core.Tree
}

func (s *scriptedSyncer) Subscribe(_ context.Context, _ string, onSnapshot func(docstore.Snapshot), _ func(error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSnapshot = onSnapshot
	return nil
}

func (s *scriptedSyncer) Unsubscribe(string)           {}
func (s *scriptedSyncer) Seed(string, core.Tree) error { return nil }
func (s *scriptedSyncer) Flush(context.Context) error  { return nil }
func (s *scriptedSyncer) Close(context.Context) error  { return nil }

func (s *scriptedSyncer) Write(_ string, tree core.Tree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, tree.Clone())
	return nil
}

func (s *scriptedSyncer) deliver(snap docstore.Snapshot) {
	s.mu.Lock()
	fn := s.onSnapshot
	s.mu.Unlock()
	fn(snap)
}

func (s *scriptedSyncer) lastWrite() core.Tree {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes[len(s.writes)-1]
}

func bananaTree(qty, price float64) core.Tree {
	return core.Tree{{ID: 1, Name: "Frutas", Items: []core.Item{{ID: 10, Name: "Banana", Quantity: qty, Price: price}}}}
}

func bananaSnapshot(qty, price float64, version int64) docstore.Snapshot {
	return docstore.Snapshot{Month: "May", Exists: true, Tree: bananaTree(qty, price), Version: version}
}

func TestStaleEchoDoesNotUndoAcknowledgedWrite(t *testing.T) {
	s := &scriptedSyncer{}
	m := New(s, catalog.MustDefault(), core.NewSequenceIDs(1000), nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Activate(ctx, "May"))
	s.deliver(bananaSnapshot(1, 2, 1))

	_, err := m.UpdateItem(ctx, "May", 10, core.FieldQuantity, 5)
	require.NoError(t, err)
	_, err = m.UpdateItem(ctx, "May", 10, core.FieldPrice, 9)
	require.NoError(t, err)

	// The echo of the first write arrives before the second one completes.
	s.deliver(bananaSnapshot(5, 2, 2))
	m.HandleWriteDone("May", docsync.WriteReplace, 2)
	m.HandleWriteDone("May", docsync.WriteReplace, 3)

	tree, err := m.Snapshot(ctx, "May")
	require.NoError(t, err)
	assert.Equal(t, bananaTree(5, 9), tree)

	_, err = m.UpdateItem(ctx, "May", 10, core.FieldQuantity, 6)
	require.NoError(t, err)
	assert.Equal(t, bananaTree(6, 9), s.lastWrite())
	m.HandleWriteDone("May", docsync.WriteReplace, 4)

	// Late echoes below the acknowledged version are ignored.
	s.deliver(bananaSnapshot(5, 9, 3))
	tree, err = m.Snapshot(ctx, "May")
	require.NoError(t, err)
	assert.Equal(t, bananaTree(6, 9), tree)

	// Newer writes from elsewhere still win.
	s.deliver(bananaSnapshot(2, 1, 5))
	tree, err = m.Snapshot(ctx, "May")
	require.NoError(t, err)
	assert.Equal(t, bananaTree(2, 1), tree)
}

func TestWriteFailureKeepsTreeAndIsReported(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()
	_, err := m.Snapshot(ctx, "October")
	require.NoError(t, err)
	require.NoError(t, m.Flush(ctx))

	store.SetFailure("replace", errors.New("quota exceeded"))
	tree, err := m.UpdateItem(ctx, "October", 1, core.FieldPrice, "7,5")
	require.NoError(t, err)
	require.NoError(t, m.Flush(ctx))

	ci, ii, _ := tree.FindItem(1)
	assert.Equal(t, 7.5, tree[ci].Items[ii].Price)
	assert.Contains(t, m.Status("October").LastWriteError, "quota exceeded")

	current, err := m.Snapshot(ctx, "October")
	require.NoError(t, err)
	assert.Equal(t, tree, current)
}

func TestNoOpEditDoesNotWrite(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()
	_, err := m.Snapshot(ctx, "November")
	require.NoError(t, err)
	require.NoError(t, m.Flush(ctx))

	_, err = m.DeleteItem(ctx, "November", 999999)
	require.NoError(t, err)
	require.NoError(t, m.Flush(ctx))

	snap, err := store.Get(ctx, "November")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
}

func TestImportEstimationsReportsUnresolved(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	ctx := context.Background()

	tree, report, err := m.ImportEstimations(ctx, "December", []core.Selection{
		{Name: "Arroz", Quantity: 3},
		{Name: "Caviar", Quantity: 1},
		{Name: "Feijão", Quantity: 0},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, []string{"Caviar"}, report.Unresolved)

	ci, ii, ok := tree.FindItem(1)
	require.True(t, ok)
	assert.Equal(t, 3.0, tree[ci].Items[ii].Quantity)
}

func TestClosedManagerRejectsCalls(t *testing.T) {
	store := memory.New()
	m := newManager(t, store)
	require.NoError(t, m.Close(context.Background()))

	_, err := m.Snapshot(context.Background(), "May")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStateNames(t *testing.T) {
	b, err := Failed.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "failed", string(b))
	assert.Equal(t, "unknown", State(42).String())
}
