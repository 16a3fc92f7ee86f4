package docstore

import "sync"

// Hub fans snapshots of a month out to its subscribers. Each subscriber is
// served by its own goroutine and only ever sees the latest pending
// snapshot, so a slow subscriber never blocks the store.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

// Subscription is one registered listener.
type Subscription struct {
	hub        *Hub
	month      string
	onSnapshot func(Snapshot)
	onError    func(error)

	mu      sync.Mutex
	pending *Snapshot
	err     error
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[*Subscription]struct{}{}}
}

// Add registers a listener for month and starts its delivery goroutine.
func (h *Hub) Add(month string, onSnapshot func(Snapshot), onError func(error)) (*Subscription, error) {
	s := &Subscription{
		hub:        h,
		month:      month,
		onSnapshot: onSnapshot,
		onError:    onError,
		wake:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	if h.subs[month] == nil {
		h.subs[month] = map[*Subscription]struct{}{}
	}
	h.subs[month][s] = struct{}{}
	h.mu.Unlock()
	go s.run()
	return s, nil
}

// Publish queues snap for every subscriber of snap.Month.
func (h *Hub) Publish(snap Snapshot) {
	for _, s := range h.listeners(snap.Month) {
		s.Push(snap)
	}
}

// Fail queues err for every subscriber of month.
func (h *Hub) Fail(month string, err error) {
	for _, s := range h.listeners(month) {
		s.Fail(err)
	}
}

// Len returns the number of live subscriptions for month.
func (h *Hub) Len(month string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[month])
}

// Close stops every subscription and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, m := range h.subs {
		for s := range m {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}

func (h *Hub) listeners(month string) []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Subscription, 0, len(h.subs[month]))
	for s := range h.subs[month] {
		out = append(out, s)
	}
	return out
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.subs[s.month]; m != nil {
		delete(m, s)
		if len(m) == 0 {
			delete(h.subs, s.month)
		}
	}
}

// Push replaces the pending snapshot unless it is older than the one
// already waiting.
func (s *Subscription) Push(snap Snapshot) {
	s.mu.Lock()
	if s.pending == nil || snap.Version >= s.pending.Version {
		cp := snap
		cp.Tree = snap.Tree.Clone()
		s.pending = &cp
	}
	s.mu.Unlock()
	s.signal()
}

// Fail queues an error for the subscriber.
func (s *Subscription) Fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.signal()
}

// Close stops delivery. No callback starts after Close returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		s.mu.Unlock()
		s.hub.remove(s)
	})
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		s.mu.Lock()
		select {
		case <-s.done:
			s.mu.Unlock()
			return
		default:
		}
		snap, err := s.pending, s.err
		s.pending, s.err = nil, nil
		s.mu.Unlock()

		if snap != nil && s.onSnapshot != nil {
			s.onSnapshot(*snap)
		}
		if err != nil && s.onError != nil {
			s.onError(err)
		}
	}
}
