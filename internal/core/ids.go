package core

import (
	"sync"
	"time"
)

// IDSource hands out identifiers for new items and categories.
type IDSource interface {
	NextID() int64
}

// ClockIDs derives ids from creation time in milliseconds. Ids are strictly
// increasing even when several are requested within the same millisecond.
type ClockIDs struct {
	mu   sync.Mutex
	now  func() time.Time
	last int64
}

// NewClockIDs returns a clock based source. A nil now uses time.Now.
func NewClockIDs(now func() time.Time) *ClockIDs {
	if now == nil {
		now = time.Now
	}
	return &ClockIDs{now: now}
}

func (c *ClockIDs) NextID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.now().UnixMilli()
	if id <= c.last {
		id = c.last + 1
	}
	c.last = id
	return id
}

// SequenceIDs counts up from a start value.
type SequenceIDs struct {
	mu   sync.Mutex
	next int64
}

func NewSequenceIDs(start int64) *SequenceIDs {
	return &SequenceIDs{next: start}
}

func (s *SequenceIDs) NextID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	return id
}

// freshID draws ids until one is not already present in t.
func freshID(t Tree, ids IDSource, reserved ...int64) int64 {
	for {
		id := ids.NextID()
		if t.hasID(id) {
			continue
		}
		clash := false
		for _, r := range reserved {
			if r == id {
				clash = true
				break
			}
		}
		if !clash {
			return id
		}
	}
}
