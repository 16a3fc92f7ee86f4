package docsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/core"
	"compras/internal/docstore"
	"compras/internal/docstore/memory"
)

// slowStore delays every Replace and records the order of the writes.
type slowStore struct {
	*memory.Store
	delay time.Duration

	mu     sync.Mutex
	writes []float64
}

func (s *slowStore) Replace(ctx context.Context, month string, tree core.Tree) (int64, error) {
	time.Sleep(s.delay)
	s.mu.Lock()
	s.writes = append(s.writes, tree[0].Items[0].Quantity)
	s.mu.Unlock()
	return s.Store.Replace(ctx, month, tree)
}

func treeWithQty(q float64) core.Tree {
	return core.Tree{{ID: 1, Name: "Grãos", Items: []core.Item{{ID: 2, Name: "Arroz", Quantity: q, Price: 4}}}}
}

func TestWritesAreFIFO(t *testing.T) {
	store := &slowStore{Store: memory.New(), delay: 5 * time.Millisecond}
	a := New(store, Options{})

	for i := 1; i <= 5; i++ {
		require.NoError(t, a.Write("May", treeWithQty(float64(i))))
	}
	require.NoError(t, a.Flush(context.Background()))

	assert.Equal(t, []float64{1, 2, 3, 4, 5}, store.writes)
	snap, err := store.Get(context.Background(), "May")
	require.NoError(t, err)
	assert.Equal(t, 5.0, snap.Tree[0].Items[0].Quantity)
}

func TestWriteCopiesTree(t *testing.T) {
	store := &slowStore{Store: memory.New(), delay: 10 * time.Millisecond}
	a := New(store, Options{})

	tree := treeWithQty(1)
	require.NoError(t, a.Write("May", tree))
	tree[0].Items[0].Quantity = 42
	require.NoError(t, a.Flush(context.Background()))

	assert.Equal(t, []float64{1}, store.writes)
}

func TestSeedDoesNotOverwrite(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	_, err := store.Create(ctx, "June", treeWithQty(9))
	require.NoError(t, err)

	a := New(store, Options{})
	require.NoError(t, a.Seed("June", treeWithQty(1)))
	require.NoError(t, a.Flush(ctx))

	snap, err := store.Get(ctx, "June")
	require.NoError(t, err)
	assert.Equal(t, 9.0, snap.Tree[0].Items[0].Quantity)
}

func TestWriteDoneReportsVersions(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	type done struct {
		kind    WriteKind
		version int64
	}
	var (
		mu  sync.Mutex
		got []done
	)
	a := New(store, Options{OnWriteDone: func(month string, kind WriteKind, version int64) {
		mu.Lock()
		got = append(got, done{kind, version})
		mu.Unlock()
	}})

	require.NoError(t, a.Seed("August", treeWithQty(1)))
	require.NoError(t, a.Write("August", treeWithQty(2)))
	require.NoError(t, a.Seed("August", treeWithQty(3)))
	require.NoError(t, a.Write("August", treeWithQty(4)))
	require.NoError(t, a.Flush(ctx))

	store.SetFailure("replace", errors.New("offline"))
	require.NoError(t, a.Write("August", treeWithQty(5)))
	require.NoError(t, a.Flush(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []done{
		{WriteSeed, 1},
		{WriteReplace, 2},
		{WriteSeed, 0},
		{WriteReplace, 3},
		{WriteReplace, 0},
	}, got)
}

func TestWriteErrorsReachHook(t *testing.T) {
	store := memory.New()
	boom := errors.New("permission denied")
	store.SetFailure("replace", boom)

	var got []*WriteError
	var mu sync.Mutex
	a := New(store, Options{OnWriteError: func(e *WriteError) {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
	}})

	require.NoError(t, a.Write("July", treeWithQty(1)))
	require.NoError(t, a.Flush(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "July", got[0].Month)
	assert.Equal(t, WriteReplace, got[0].Kind)
	assert.ErrorIs(t, got[0], boom)
}

func TestOneSubscriptionPerMonth(t *testing.T) {
	store := memory.New()
	defer store.Close()
	a := New(store, Options{})
	ctx := context.Background()

	first := make(chan docstore.Snapshot, 4)
	second := make(chan docstore.Snapshot, 4)
	require.NoError(t, a.Subscribe(ctx, "March", func(s docstore.Snapshot) { first <- s }, nil))
	require.NoError(t, a.Subscribe(ctx, "March", func(s docstore.Snapshot) { second <- s }, nil))
	assert.Equal(t, 1, store.Subscribers("March"))
	assert.True(t, a.Subscribed("March"))

	<-second
	_, err := store.Replace(ctx, "March", treeWithQty(3))
	require.NoError(t, err)
	select {
	case snap := <-second:
		assert.True(t, snap.Exists)
	case <-time.After(2 * time.Second):
		t.Fatal("second subscription got no update")
	}

	a.Unsubscribe("March")
	assert.Equal(t, 0, store.Subscribers("March"))
	assert.False(t, a.Subscribed("March"))
}

func TestSubscribeFailure(t *testing.T) {
	store := memory.New()
	store.SetFailure("subscribe", errors.New("offline"))
	a := New(store, Options{})

	err := a.Subscribe(context.Background(), "April", func(docstore.Snapshot) {}, nil)
	assert.Error(t, err)
	assert.False(t, a.Subscribed("April"))
}

func TestCloseRejectsWrites(t *testing.T) {
	store := memory.New()
	a := New(store, Options{})
	require.NoError(t, a.Subscribe(context.Background(), "May", func(docstore.Snapshot) {}, nil))

	require.NoError(t, a.Close(context.Background()))
	assert.Equal(t, 0, store.Subscribers("May"))
	assert.ErrorIs(t, a.Write("May", treeWithQty(1)), ErrClosed)
	assert.ErrorIs(t, a.Subscribe(context.Background(), "May", nil, nil), ErrClosed)
}

func TestFlushHonoursContext(t *testing.T) {
	store := &slowStore{Store: memory.New(), delay: 200 * time.Millisecond}
	a := New(store, Options{})
	require.NoError(t, a.Write("May", treeWithQty(1)))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Flush(ctx), context.DeadlineExceeded)
	require.NoError(t, a.Flush(context.Background()))
}
