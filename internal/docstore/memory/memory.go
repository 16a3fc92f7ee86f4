package memory

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"compras/internal/core"
	"compras/internal/docstore"
)

type document struct {
	data    []byte
	version int64
}

// Store keeps month documents in process. Trees are stored encoded so
// callers never share memory with the store.
type Store struct {
	mu       sync.Mutex
	docs     map[string]document
	hub      *docstore.Hub
	failures map[string]error
	gate     <-chan struct{}
}

var _ docstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		docs:     map[string]document{},
		hub:      docstore.NewHub(),
		failures: map[string]error{},
	}
}

// NewFromDir seeds the store with every <Month>.json document found in
// dir. Missing or unreadable files are ignored.
func NewFromDir(dir string) *Store {
	s := New()
	for _, month := range core.Months {
		data, err := os.ReadFile(filepath.Join(dir, month+".json"))
		if err != nil {
			continue
		}
		tree, err := docstore.Decode(data)
		if err != nil {
			continue
		}
		if _, err := s.Create(context.Background(), month, tree); err != nil {
			continue
		}
	}
	return s
}

// SetFailure makes every later call of op ("subscribe", "create",
// "replace", "get") fail with err. A nil err clears it.
func (s *Store) SetFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, op)
		return
	}
	s.failures[op] = err
}

// HoldSnapshots delays the initial snapshot of new subscriptions until
// gate is closed. A nil gate delivers immediately.
func (s *Store) HoldSnapshots(gate <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate = gate
}

// Subscribers returns the number of live subscriptions for month.
func (s *Store) Subscribers(month string) int {
	return s.hub.Len(month)
}

// Subscribe implements docstore.Store.
func (s *Store) Subscribe(_ context.Context, month string, onSnapshot func(docstore.Snapshot), onError func(error)) (docstore.Unsubscribe, error) {
	s.mu.Lock()
	if err := s.failures["subscribe"]; err != nil {
		s.mu.Unlock()
		return nil, err
	}
	gate := s.gate
	s.mu.Unlock()

	sub, err := s.hub.Add(month, onSnapshot, onError)
	if err != nil {
		return nil, err
	}
	deliver := func() {
		snap, err := s.Get(context.Background(), month)
		if err != nil {
			sub.Fail(err)
			return
		}
		sub.Push(snap)
	}
	if gate == nil {
		deliver()
	} else {
		go func() {
			<-gate
			deliver()
		}()
	}
	return sub.Close, nil
}

// Create implements docstore.Store.
func (s *Store) Create(_ context.Context, month string, tree core.Tree) (bool, error) {
	data, err := docstore.Encode(tree)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["create"]; err != nil {
		return false, err
	}
	if _, ok := s.docs[month]; ok {
		return false, nil
	}
	s.docs[month] = document{data: data, version: docstore.FirstVersion}
	s.publishLocked(month)
	return true, nil
}

// Replace implements docstore.Store.
func (s *Store) Replace(_ context.Context, month string, tree core.Tree) (int64, error) {
	data, err := docstore.Encode(tree)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["replace"]; err != nil {
		return 0, err
	}
	version := s.docs[month].version + 1
	s.docs[month] = document{data: data, version: version}
	s.publishLocked(month)
	return version, nil
}

// Get implements docstore.Store.
func (s *Store) Get(_ context.Context, month string) (docstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failures["get"]; err != nil {
		return docstore.Snapshot{}, err
	}
	return s.snapshotLocked(month)
}

// Months lists the months that have a document in calendar order.
func (s *Store) Months() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, m := range core.Months {
		if _, ok := s.docs[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Close stops all subscriptions.
func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) snapshotLocked(month string) (docstore.Snapshot, error) {
	doc, ok := s.docs[month]
	if !ok {
		return docstore.Snapshot{Month: month}, nil
	}
	tree, err := docstore.Decode(doc.data)
	if err != nil {
		return docstore.Snapshot{}, fmt.Errorf("month %s: %w", month, err)
	}
	return docstore.Snapshot{Month: month, Exists: true, Tree: tree, Version: doc.version}, nil
}

func (s *Store) publishLocked(month string) {
	snap, err := s.snapshotLocked(month)
	if err != nil {
		s.hub.Fail(month, err)
		return
	}
	s.hub.Publish(snap)
}
