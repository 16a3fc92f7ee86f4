package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/core"
	"compras/internal/docstore"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (r *recordingNotifier) NotifyMonthChanged(_ context.Context, origin, month string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, month)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func openStore(t *testing.T, n Notifier) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "compras.db"), n)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sample() core.Tree {
	return core.Tree{{ID: 7, Name: "Frutas", Items: []core.Item{{ID: 8, Name: "Banana (Kg)", Quantity: 1.5, Price: 6.99}}}}
}

func TestCreateAndReplace(t *testing.T) {
	n := &recordingNotifier{}
	s := openStore(t, n)
	ctx := context.Background()

	created, err := s.Create(ctx, "March", sample())
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.Create(ctx, "March", core.Tree{})
	require.NoError(t, err)
	assert.False(t, created, "existing document must not be overwritten")

	snap, err := s.Get(ctx, "March")
	require.NoError(t, err)
	assert.True(t, snap.Exists)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, sample(), snap.Tree)

	updated := sample()
	updated[0].Items[0].Quantity = 3
	version, err := s.Replace(ctx, "March", updated)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	snap, err = s.Get(ctx, "March")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	assert.Equal(t, 3.0, snap.Tree[0].Items[0].Quantity)
	assert.Equal(t, 2, n.count())
}

func TestGetMissing(t *testing.T) {
	s := openStore(t, nil)
	snap, err := s.Get(context.Background(), "October")
	require.NoError(t, err)
	assert.False(t, snap.Exists)
}

func TestReplaceCreatesMissing(t *testing.T) {
	s := openStore(t, nil)
	ctx := context.Background()
	version, err := s.Replace(ctx, "May", sample())
	require.NoError(t, err)
	assert.Equal(t, docstore.FirstVersion, version)

	months, err := s.Months(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"May"}, months)
}

func TestSubscribeDeliversChanges(t *testing.T) {
	s := openStore(t, nil)
	ctx := context.Background()
	ch := make(chan docstore.Snapshot, 4)

	unsub, err := s.Subscribe(ctx, "April", func(snap docstore.Snapshot) { ch <- snap }, nil)
	require.NoError(t, err)
	defer unsub()

	select {
	case snap := <-ch:
		assert.False(t, snap.Exists)
	case <-time.After(2 * time.Second):
		t.Fatal("no initial snapshot")
	}

	_, err = s.Replace(ctx, "April", sample())
	require.NoError(t, err)
	select {
	case snap := <-ch:
		assert.True(t, snap.Exists)
		assert.Equal(t, int64(1), snap.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no change snapshot")
	}
}

func TestNotifierFailureDoesNotFailWrite(t *testing.T) {
	n := &recordingNotifier{err: errors.New("broker down")}
	s := openStore(t, n)
	_, err := s.Replace(context.Background(), "June", sample())
	require.NoError(t, err)
	assert.Equal(t, 1, n.count())
}

func TestRefreshSeesOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(path, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(path, nil)
	require.NoError(t, err)
	defer b.Close()
	assert.NotEqual(t, a.Origin(), b.Origin())

	ctx := context.Background()
	ch := make(chan docstore.Snapshot, 4)
	unsub, err := a.Subscribe(ctx, "July", func(snap docstore.Snapshot) { ch <- snap }, nil)
	require.NoError(t, err)
	defer unsub()
	<-ch

	_, err = b.Replace(ctx, "July", sample())
	require.NoError(t, err)
	require.NoError(t, a.Refresh(ctx, "July"))

	select {
	case snap := <-ch:
		assert.True(t, snap.Exists)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not notify subscriber")
	}
}
