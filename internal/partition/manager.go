// Package partition keeps one in-memory tree per month and serializes every
// mutation of it. Only one month is active at a time; switching months
// drops the previous month's subscription and tree.
package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"compras/internal/core"
	"compras/internal/docstore"
	"compras/internal/docsync"
	"compras/internal/log"
	"compras/internal/metrics"
)

var (
	ErrLoadFailed = errors.New("month failed to load")
	ErrClosed     = errors.New("partition manager closed")
	// ErrSwitched is returned to callers waiting on a month that was
	// deactivated before it became ready.
	ErrSwitched = errors.New("month was deactivated while loading")
)

// Op computes a new tree from the current one. It must not modify its
// argument.
type Op func(core.Tree) core.Tree

// Syncer is the subset of the sync adapter the manager drives.
type Syncer interface {
	Subscribe(ctx context.Context, month string, onSnapshot func(docstore.Snapshot), onError func(error)) error
	Unsubscribe(month string)
	Seed(month string, tree core.Tree) error
	Write(month string, tree core.Tree) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}

// writeHooks is implemented by syncers that report write completion, such
// as *docsync.Adapter. New registers the manager with them.
type writeHooks interface {
	SetWriteErrorHandler(func(*docsync.WriteError))
	SetWriteDoneHandler(func(month string, kind docsync.WriteKind, version int64))
}

// Catalog supplies the seed tree for new months and the name lookup used
// when importing estimations.
type Catalog interface {
	Seed() core.Tree
	Resolve(name string) (core.CatalogRef, bool)
}

type partition struct {
	month string

	mu       sync.Mutex
	state    State
	tree     core.Tree
	version  int64
	gen      uint64
	ready    chan struct{}
	loadErr  error
	writeErr error

	// inflight counts queued writes of this month. Snapshots that arrive
	// while it is non-zero are echoes older than the local tree; the newest
	// one is held and applied once the queue drains.
	inflight int
	held     *heldSnapshot
	// acked is the newest document version produced by our own writes.
	// Snapshots below it predate a write the local tree already holds.
	acked int64
}

type heldSnapshot struct {
	gen  uint64
	snap docstore.Snapshot
}

type Manager struct {
	sync    Syncer
	catalog Catalog
	ids     core.IDSource
	logger  *log.Logger
	metrics *metrics.Collector

	mu     sync.Mutex
	parts  map[string]*partition
	active string
	closed bool
}

func New(s Syncer, catalog Catalog, ids core.IDSource, logger *log.Logger, m *metrics.Collector) *Manager {
	if ids == nil {
		ids = core.NewClockIDs(nil)
	}
	if logger == nil {
		logger = log.Discard()
	}
	mgr := &Manager{
		sync:    s,
		catalog: catalog,
		ids:     ids,
		logger:  logger.WithComponent(log.ComponentPartition),
		metrics: m,
		parts:   map[string]*partition{},
	}
	if h, ok := s.(writeHooks); ok {
		h.SetWriteErrorHandler(mgr.HandleWriteError)
		h.SetWriteDoneHandler(mgr.HandleWriteDone)
	}
	return mgr
}

// HandleWriteError records a failed write so Status can report it. The
// in-memory tree is left untouched.
func (m *Manager) HandleWriteError(e *docsync.WriteError) {
	p := m.lookup(e.Month)
	if p == nil {
		return
	}
	p.mu.Lock()
	p.writeErr = e
	p.mu.Unlock()
}

// HandleWriteDone releases a queued write and applies the snapshot held
// back while writes were pending, unless a later write of ours already
// superseded it.
func (m *Manager) HandleWriteDone(month string, _ docsync.WriteKind, version int64) {
	p := m.lookup(month)
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.inflight > 0 {
		p.inflight--
	}
	if version > p.acked {
		p.acked = version
	}
	var held *heldSnapshot
	if p.inflight == 0 && p.held != nil {
		if p.held.snap.Version >= p.acked {
			held = p.held
		} else {
			m.logger.Debug("Dropping stale snapshot",
				log.FieldMonth, month,
				log.FieldVersion, p.held.snap.Version,
				"acked", p.acked)
		}
		p.held = nil
	}
	p.mu.Unlock()

	if held != nil {
		m.onSnapshot(p, held.gen, held.snap)
	}
}

// Active returns the active month key, or "" before the first activation.
func (m *Manager) Active() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Activate makes month the active partition. It returns once the
// subscription is open; the tree becomes available when the first
// snapshot arrives.
func (m *Manager) Activate(ctx context.Context, month string) error {
	return m.activate(ctx, month, false)
}

// Retry resubscribes month, typically after it reached Failed.
func (m *Manager) Retry(ctx context.Context, month string) error {
	return m.activate(ctx, month, true)
}

func (m *Manager) activate(ctx context.Context, month string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	p := m.parts[month]
	if p == nil {
		p = &partition{month: month}
		m.parts[month] = p
	}
	// Failed months stay failed until Retry.
	if !force && m.active == month && p.currentState() != Unloaded {
		return nil
	}

	if prev := m.active; prev != "" && prev != month {
		m.sync.Unsubscribe(prev)
		if pp := m.parts[prev]; pp != nil {
			pp.unload()
			m.metrics.SetPartitionState(prev, Unloaded.String(), stateNames)
		}
		m.logger.Info("Month deactivated", log.FieldMonth, prev)
	}
	m.active = month

	gen := p.startLoading()
	m.metrics.SetPartitionState(month, Loading.String(), stateNames)
	m.logger.Info("Loading month", log.FieldMonth, month)

	err := m.sync.Subscribe(ctx, month,
		func(s docstore.Snapshot) { m.onSnapshot(p, gen, s) },
		func(err error) { m.onError(p, gen, err) },
	)
	if err != nil {
		m.onError(p, gen, err)
		return fmt.Errorf("%w: %s: %v", ErrLoadFailed, month, err)
	}
	return nil
}

func (m *Manager) onSnapshot(p *partition, gen uint64, s docstore.Snapshot) {
	p.mu.Lock()
	if p.gen != gen || p.state == Unloaded {
		p.mu.Unlock()
		return
	}
	wasLoading := p.state != Ready
	if !wasLoading && p.inflight > 0 {
		if p.held == nil || s.Version >= p.held.snap.Version {
			p.held = &heldSnapshot{gen: gen, snap: s}
		}
		p.mu.Unlock()
		return
	}
	if !wasLoading && s.Exists && s.Version < p.acked {
		p.mu.Unlock()
		return
	}

	seeded := false
	switch {
	case s.Exists:
		p.tree = s.Tree
		p.version = s.Version
	case wasLoading:
		p.tree = m.catalog.Seed()
		seeded = true
		// Queued under the lock so the create precedes any edit's write
		// and its echo is held back like one.
		p.inflight++
		if err := m.sync.Seed(p.month, p.tree); err != nil {
			p.inflight--
			m.logger.LogError(context.Background(), "Failed to queue seed", err, log.OpSeed, log.FieldMonth, p.month)
		}
	default:
		p.mu.Unlock()
		m.logger.Warn("Month document missing, keeping local tree", log.FieldMonth, p.month)
		return
	}
	if wasLoading {
		p.state = Ready
		p.loadErr = nil
		close(p.ready)
	}
	items := p.tree.ItemCount()
	p.mu.Unlock()

	m.metrics.RecordSnapshot(p.month)
	if wasLoading {
		m.metrics.SetPartitionState(p.month, Ready.String(), stateNames)
		m.logger.Info("Month ready",
			log.FieldMonth, p.month,
			log.FieldCount, items,
			log.FieldVersion, s.Version,
			"seeded", seeded)
	}
}

func (m *Manager) onError(p *partition, gen uint64, err error) {
	p.mu.Lock()
	if p.gen != gen {
		p.mu.Unlock()
		return
	}
	if p.state == Loading {
		p.state = Failed
		p.loadErr = err
		close(p.ready)
		p.mu.Unlock()
		m.metrics.SetPartitionState(p.month, Failed.String(), stateNames)
		m.logger.LogError(context.Background(), "Month failed to load", err, log.OpActivate, log.FieldMonth, p.month)
		return
	}
	p.mu.Unlock()
	m.logger.LogError(context.Background(), "Subscription error", err, log.OpSnapshot, log.FieldMonth, p.month)
}

// Apply runs op against the current tree of month, activating it first if
// needed. Calls made while the month is loading wait for it to become
// ready. The new tree is queued for writing before Apply returns.
func (m *Manager) Apply(ctx context.Context, month string, op Op) (core.Tree, error) {
	p, err := m.waitReady(ctx, month)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return nil, ErrSwitched
	}
	next := op(p.tree)
	if sameTree(p.tree, next) {
		return p.tree.Clone(), nil
	}
	p.tree = next
	p.inflight++
	if err := m.sync.Write(month, next); err != nil {
		p.inflight--
		m.logger.LogError(ctx, "Failed to queue write", err, log.OpWrite, log.FieldMonth, month)
	}
	return next.Clone(), nil
}

// Snapshot returns a copy of the current tree of month once it is ready.
func (m *Manager) Snapshot(ctx context.Context, month string) (core.Tree, error) {
	p, err := m.waitReady(ctx, month)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Ready {
		return nil, ErrSwitched
	}
	return p.tree.Clone(), nil
}

// Status reports the state of month without activating it.
func (m *Manager) Status(month string) Status {
	m.mu.Lock()
	p := m.parts[month]
	active := m.active == month
	m.mu.Unlock()

	st := Status{Month: month, Active: active}
	if p == nil {
		return st
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st.State = p.state
	st.Version = p.version
	st.ItemCount = p.tree.ItemCount()
	if p.loadErr != nil {
		st.LoadError = p.loadErr.Error()
	}
	if p.writeErr != nil {
		st.LastWriteError = p.writeErr.Error()
	}
	return st
}

// Flush waits for queued writes.
func (m *Manager) Flush(ctx context.Context) error {
	return m.sync.Flush(ctx)
}

// Close unsubscribes the active month and waits for queued writes.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	active := m.active
	m.mu.Unlock()

	if active != "" {
		m.sync.Unsubscribe(active)
	}
	return m.sync.Close(ctx)
}

func (m *Manager) waitReady(ctx context.Context, month string) (*partition, error) {
	if err := m.Activate(ctx, month); err != nil {
		return nil, err
	}
	p := m.lookup(month)
	for {
		p.mu.Lock()
		state, ready, loadErr := p.state, p.ready, p.loadErr
		p.mu.Unlock()

		switch state {
		case Ready:
			return p, nil
		case Failed:
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, month, loadErr)
		case Unloaded:
			return nil, ErrSwitched
		}
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Manager) lookup(month string) *partition {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.parts[month]
}

func (p *partition) currentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *partition) startLoading() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Loading {
		close(p.ready)
	}
	p.gen++
	p.state = Loading
	p.held = nil
	p.tree = nil
	p.version = 0
	p.loadErr = nil
	p.ready = make(chan struct{})
	return p.gen
}

func (p *partition) unload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Loading {
		close(p.ready)
	}
	p.gen++
	p.state = Unloaded
	p.held = nil
	p.tree = nil
	p.version = 0
}

// sameTree reports whether next is the very tree op received, which is
// how the merge functions signal a no-op.
func sameTree(cur, next core.Tree) bool {
	if len(cur) != len(next) {
		return false
	}
	return len(cur) == 0 || &cur[0] == &next[0]
}
