package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"compras/internal/config"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:   "sqlite",
		SQLiteDBPath:  "/tmp/x.db",
		AMQPURL:       "amqp://localhost:5672/",
		AMQPExchange:  "compras",
		AMQPQueue:     "export_months",
		MemoryDataDir: "data",
	}
	bc, err := FromAppConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, SQLiteBackend, bc.Type)
	assert.Equal(t, "compras", bc.AMQPExchange)
	assert.Empty(t, bc.AMQPQueue, "server instances use an exclusive queue")

	_, err = FromAppConfig(&config.Config{DataBackend: "sheets"})
	assert.Error(t, err)
	_, err = FromAppConfig(nil)
	assert.Error(t, err)
}

func TestCreateMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "May.json"),
		[]byte(`{"categories":[{"id":1,"name":"Grãos","items":[]}]}`), 0o644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Cleanup()

	assert.Nil(t, res.SQLite)
	months, err := res.Months(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"May"}, months)
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "compras.db")

	res, err := NewFactory(nil).CreateBackend(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	defer res.Cleanup()

	require.NotNil(t, res.SQLite)
	assert.Nil(t, res.AMQP)

	created, err := res.Store.Create(ctx, "June", nil)
	require.NoError(t, err)
	assert.True(t, created)

	months, err := res.Months(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"June"}, months)
}

func TestCreateBackendValidates(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.ErrorContains(t, err, "invalid backend type: sheets (valid: sqlite, memory)")

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, AMQPURL: "amqp://x"})
	assert.Error(t, err)
}
