package worker

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/amqp"
	"compras/internal/docstore"
	"compras/internal/docstore/sqlite"
)

type recordingRefresh struct {
	origin string
	months []string
}

func (r *recordingRefresh) Origin() string { return r.origin }

func (r *recordingRefresh) Refresh(_ context.Context, month string) error {
	r.months = append(r.months, month)
	return nil
}

func TestRefresherSkipsOwnMessages(t *testing.T) {
	store := &recordingRefresh{origin: "self"}
	r := NewRefresher(store, nil)
	ctx := context.Background()

	require.NoError(t, r.HandleMonthChanged(ctx, amqp.NewMonthChangedMessage("self", "May", 2)))
	require.NoError(t, r.HandleMonthChanged(ctx, amqp.NewMonthChangedMessage("other", "June", 3)))

	assert.Equal(t, []string{"June"}, store.months)
}

func TestRefresherDeliversChangesAcrossStores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compras.db")
	writer, err := sqlite.Open(path, nil)
	require.NoError(t, err)
	defer writer.Close()
	reader, err := sqlite.Open(path, nil)
	require.NoError(t, err)
	defer reader.Close()

	ctx := context.Background()
	var mu sync.Mutex
	var versions []int64
	unsub, err := reader.Subscribe(ctx, "May", func(s docstore.Snapshot) {
		mu.Lock()
		versions = append(versions, s.Version)
		mu.Unlock()
	}, func(error) {})
	require.NoError(t, err)
	defer unsub()

	version := replace(t, writer, "May", tree(2))

	r := NewRefresher(reader, nil)
	require.NoError(t, r.HandleMonthChanged(ctx, amqp.NewMonthChangedMessage(writer.Origin(), "May", version)))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(versions) > 0 && versions[len(versions)-1] == 1
	}, time.Second, 10*time.Millisecond)
}
