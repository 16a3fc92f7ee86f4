// Package sqlite persists month documents in a SQLite database and fans
// changes out to local subscribers and, optionally, to other processes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"compras/internal/core"
	"compras/internal/docstore"
)

// Notifier announces that a month document changed. The AMQP client
// implements it.
type Notifier interface {
	NotifyMonthChanged(ctx context.Context, origin, month string, version int64) error
}

type Store struct {
	db       *sql.DB
	hub      *docstore.Hub
	notifier Notifier
	origin   string
}

var _ docstore.Store = (*Store)(nil)

// Open opens (creating if needed) the database at dbPath and runs the
// migrations. notifier may be nil.
func Open(dbPath string, notifier Notifier) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:       db,
		hub:      docstore.NewHub(),
		notifier: notifier,
		origin:   uuid.NewString(),
	}, nil
}

// Origin identifies this store instance in change notifications.
func (s *Store) Origin() string { return s.origin }

// SetNotifier replaces the change notifier. Call before the store is used.
func (s *Store) SetNotifier(n Notifier) { s.notifier = n }

func (s *Store) Close() error {
	s.hub.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Subscribe implements docstore.Store.
func (s *Store) Subscribe(ctx context.Context, month string, onSnapshot func(docstore.Snapshot), onError func(error)) (docstore.Unsubscribe, error) {
	sub, err := s.hub.Add(month, onSnapshot, onError)
	if err != nil {
		return nil, err
	}
	snap, err := s.Get(ctx, month)
	if err != nil {
		sub.Close()
		return nil, err
	}
	sub.Push(snap)
	return sub.Close, nil
}

// Create implements docstore.Store.
func (s *Store) Create(ctx context.Context, month string, tree core.Tree) (bool, error) {
	data, err := docstore.Encode(tree)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (month_key, categories, version) VALUES (?, ?, 1)
		 ON CONFLICT(month_key) DO NOTHING`, month, string(data))
	if err != nil {
		return false, fmt.Errorf("create document %s: %w", month, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create document %s: %w", month, err)
	}
	if n == 0 {
		return false, nil
	}
	s.changed(ctx, month)
	return true, nil
}

// Replace implements docstore.Store.
func (s *Store) Replace(ctx context.Context, month string, tree core.Tree) (int64, error) {
	data, err := docstore.Encode(tree)
	if err != nil {
		return 0, err
	}
	var version int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO documents (month_key, categories, version) VALUES (?, ?, 1)
		 ON CONFLICT(month_key) DO UPDATE SET
		   categories = excluded.categories,
		   version = documents.version + 1,
		   updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		 RETURNING version`, month, string(data)).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("replace document %s: %w", month, err)
	}
	s.changed(ctx, month)
	return version, nil
}

// Get implements docstore.Store.
func (s *Store) Get(ctx context.Context, month string) (docstore.Snapshot, error) {
	var (
		data    string
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT categories, version FROM documents WHERE month_key = ?`, month).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Snapshot{Month: month}, nil
	}
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get document %s: %w", month, err)
	}
	tree, err := docstore.Decode([]byte(data))
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("get document %s: %w", month, err)
	}
	return docstore.Snapshot{Month: month, Exists: true, Tree: tree, Version: version}, nil
}

// Months lists the months that have a document in calendar order.
func (s *Store) Months(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT month_key FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	present := map[string]bool{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan document key: %w", err)
		}
		present[m] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	var out []string
	for _, m := range core.Months {
		if present[m] {
			out = append(out, m)
		}
	}
	return out, nil
}

// Refresh re-reads month and pushes it to local subscribers. It is used
// when another process reports a change.
func (s *Store) Refresh(ctx context.Context, month string) error {
	snap, err := s.Get(ctx, month)
	if err != nil {
		s.hub.Fail(month, err)
		return err
	}
	s.hub.Publish(snap)
	return nil
}

func (s *Store) changed(ctx context.Context, month string) {
	snap, err := s.Get(ctx, month)
	if err != nil {
		s.hub.Fail(month, err)
		return
	}
	s.hub.Publish(snap)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyMonthChanged(ctx, s.origin, month, snap.Version); err != nil {
		slog.WarnContext(ctx, "Failed to publish month change",
			"month", month,
			"version", snap.Version,
			"error", err)
	}
}
