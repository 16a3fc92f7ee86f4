// Package docsync binds month partitions to the document store. It keeps
// at most one live subscription per month and serializes each month's
// writes through a FIFO queue drained by a single goroutine.
package docsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"compras/internal/core"
	"compras/internal/docstore"
	"compras/internal/log"
	"compras/internal/metrics"
)

var ErrClosed = errors.New("sync adapter closed")

// WriteKind tells the write error hook which operation failed.
type WriteKind string

const (
	WriteSeed    WriteKind = "seed"
	WriteReplace WriteKind = "replace"
)

// WriteError describes a queued write that the store rejected.
type WriteError struct {
	Month string
	Kind  WriteKind
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Month, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

type job struct {
	kind WriteKind
	tree core.Tree
}

type queue struct {
	jobs    []job
	running bool
}

// Options configures an Adapter.
type Options struct {
	// WriteTimeout bounds each store call made by the write queue.
	WriteTimeout time.Duration
	// OnWriteError is called from the queue goroutine for every failed write.
	OnWriteError func(*WriteError)
	// OnWriteDone is called from the queue goroutine after every write,
	// successful or not, with the document version the write produced. The
	// version is 0 when the write failed or the seed found a document.
	OnWriteDone func(month string, kind WriteKind, version int64)
	Logger       *log.Logger
	Metrics      *metrics.Collector
}

type Adapter struct {
	store   docstore.Store
	opts    Options
	logger  *log.Logger
	metrics *metrics.Collector

	mu      sync.Mutex
	onError func(*WriteError)
	onDone  func(month string, kind WriteKind, version int64)
	subs    map[string]docstore.Unsubscribe
	queues  map[string]*queue
	pending int
	idle    chan struct{}
	closed  bool
}

func New(store docstore.Store, opts Options) *Adapter {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Adapter{
		store:   store,
		opts:    opts,
		logger:  logger.WithComponent(log.ComponentDocSync),
		metrics: opts.Metrics,
		onError: opts.OnWriteError,
		onDone:  opts.OnWriteDone,
		subs:    map[string]docstore.Unsubscribe{},
		queues:  map[string]*queue{},
	}
}

// SetWriteErrorHandler replaces the hook called for failed writes.
func (a *Adapter) SetWriteErrorHandler(fn func(*WriteError)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onError = fn
}

// SetWriteDoneHandler replaces the hook called after every write.
func (a *Adapter) SetWriteDoneHandler(fn func(month string, kind WriteKind, version int64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onDone = fn
}

// Subscribe opens the subscription for month, cancelling any previous one
// for the same key first.
func (a *Adapter) Subscribe(ctx context.Context, month string, onSnapshot func(docstore.Snapshot), onError func(error)) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	prev := a.subs[month]
	delete(a.subs, month)
	a.mu.Unlock()
	if prev != nil {
		prev()
	}

	unsub, err := a.store.Subscribe(ctx, month, onSnapshot, onError)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", month, err)
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		unsub()
		return ErrClosed
	}
	// A concurrent Subscribe for the same month may have won the race.
	if other := a.subs[month]; other != nil {
		other()
	}
	a.subs[month] = unsub
	a.mu.Unlock()

	a.logger.Debug("Subscribed", log.FieldMonth, month)
	return nil
}

// Unsubscribe cancels the subscription for month if there is one.
func (a *Adapter) Unsubscribe(month string) {
	a.mu.Lock()
	unsub := a.subs[month]
	delete(a.subs, month)
	a.mu.Unlock()
	if unsub != nil {
		unsub()
		a.logger.Debug("Unsubscribed", log.FieldMonth, month)
	}
}

// Subscribed reports whether month has a live subscription.
func (a *Adapter) Subscribed(month string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.subs[month] != nil
}

// Seed queues a create-if-absent of tree. It does not wait for the store.
func (a *Adapter) Seed(month string, tree core.Tree) error {
	return a.enqueue(month, job{kind: WriteSeed, tree: tree.Clone()})
}

// Write queues a whole-tree replacement of month. It does not wait for the
// store.
func (a *Adapter) Write(month string, tree core.Tree) error {
	return a.enqueue(month, job{kind: WriteReplace, tree: tree.Clone()})
}

// Flush waits until every queued write has been attempted.
func (a *Adapter) Flush(ctx context.Context) error {
	for {
		a.mu.Lock()
		if a.pending == 0 {
			a.mu.Unlock()
			return nil
		}
		if a.idle == nil {
			a.idle = make(chan struct{})
		}
		idle := a.idle
		a.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels every subscription, refuses new writes and waits for the
// queued ones.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	subs := a.subs
	a.subs = map[string]docstore.Unsubscribe{}
	a.mu.Unlock()

	for _, unsub := range subs {
		unsub()
	}
	return a.Flush(ctx)
}

func (a *Adapter) enqueue(month string, j job) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	q := a.queues[month]
	if q == nil {
		q = &queue{}
		a.queues[month] = q
	}
	q.jobs = append(q.jobs, j)
	a.pending++
	if !q.running {
		q.running = true
		go a.drain(month, q)
	}
	return nil
}

func (a *Adapter) drain(month string, q *queue) {
	for {
		a.mu.Lock()
		if len(q.jobs) == 0 {
			q.running = false
			a.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs[0] = job{}
		q.jobs = q.jobs[1:]
		a.mu.Unlock()

		version := a.run(month, j)

		a.mu.Lock()
		done := a.onDone
		a.mu.Unlock()
		if done != nil {
			done(month, j.kind, version)
		}

		a.mu.Lock()
		a.pending--
		if a.pending == 0 && a.idle != nil {
			close(a.idle)
			a.idle = nil
		}
		a.mu.Unlock()
	}
}

func (a *Adapter) run(month string, j job) int64 {
	ctx, cancel := context.WithTimeout(context.Background(), a.opts.WriteTimeout)
	defer cancel()

	var (
		version int64
		err     error
	)
	switch j.kind {
	case WriteSeed:
		var created bool
		created, err = a.store.Create(ctx, month, j.tree)
		if err == nil && created {
			version = docstore.FirstVersion
			a.logger.Info("Seeded month document", log.FieldMonth, month, log.FieldCount, j.tree.ItemCount())
		}
	case WriteReplace:
		version, err = a.store.Replace(ctx, month, j.tree)
	}
	if err == nil {
		return version
	}

	a.metrics.RecordWriteFailure(string(j.kind))
	a.logger.LogError(ctx, "Document write failed", err, log.OpWrite, log.FieldMonth, month, "kind", j.kind)
	a.mu.Lock()
	hook := a.onError
	a.mu.Unlock()
	if hook != nil {
		hook(&WriteError{Month: month, Kind: j.kind, Err: err})
	}
	return 0
}
