// Package cache provides a small generic LRU cache with per-entry expiry
// and a janitor that sweeps expired entries in the background.
package cache

import (
	"context"
	"time"

	"compras/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Len() int
}

// Sweeper is implemented by caches that can drop expired entries.
type Sweeper interface {
	Sweep() int
}

// Janitor periodically sweeps a set of caches until its context ends.
type Janitor struct {
	interval time.Duration
	caches   []Sweeper
	logger   *log.Logger
}

func NewJanitor(interval time.Duration, logger *log.Logger, caches ...Sweeper) *Janitor {
	if logger == nil {
		logger = log.Discard()
	}
	return &Janitor{interval: interval, caches: caches, logger: logger}
}

// Run blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := j.SweepOnce(); n > 0 {
				j.logger.Debug("Swept expired cache entries", log.FieldCount, n)
			}
		}
	}
}

// SweepOnce sweeps every cache and returns the number of dropped entries.
func (j *Janitor) SweepOnce() int {
	total := 0
	for _, c := range j.caches {
		total += c.Sweep()
	}
	return total
}
