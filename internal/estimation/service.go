package estimation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"compras/internal/cache"
	"compras/internal/log"
	"compras/internal/metrics"
)

// ErrUnavailable wraps every estimation failure. Callers show it as a
// notice; the estimation set simply stays empty.
var ErrUnavailable = errors.New("estimation service unavailable")

// Service builds the prompt from the catalog, de-duplicates concurrent
// requests for the same month and caches the results.
type Service struct {
	estimator Estimator
	names     []string
	profile   string
	cache     *cache.LRU[Set]
	timeout   time.Duration
	group     singleflight.Group
	logger    *log.Logger
	metrics   *metrics.Collector
}

type ServiceConfig struct {
	Profile  string
	CacheTTL time.Duration
	// Timeout bounds one shared estimator call. Callers that give up early
	// do not cancel it for the others.
	Timeout time.Duration
	Logger  *log.Logger
	Metrics *metrics.Collector
}

// NewService creates a service estimating the given catalog item names.
func NewService(est Estimator, names []string, cfg ServiceConfig) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 6 * time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}
	return &Service{
		estimator: est,
		names:     append([]string(nil), names...),
		profile:   cfg.Profile,
		cache:     cache.NewLRU[Set](12, cfg.CacheTTL),
		timeout:   cfg.Timeout,
		logger:    logger.WithComponent(log.ComponentEstimation),
		metrics:   cfg.Metrics,
	}
}

// Cache exposes the result cache so it can be swept.
func (s *Service) Cache() *cache.LRU[Set] { return s.cache }

// Estimate returns the estimation set for month, from cache when possible.
func (s *Service) Estimate(ctx context.Context, month string) (Set, error) {
	if set, ok := s.cache.Get(month); ok {
		s.metrics.RecordCache(true)
		s.metrics.RecordEstimation("cached")
		return set, nil
	}
	s.metrics.RecordCache(false)

	ch := s.group.DoChan(month, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		prompt := BuildPrompt(s.profile, s.names)
		list, err := s.estimator.Estimate(callCtx, prompt)
		if err != nil {
			return nil, err
		}
		set := NewSet(list)
		s.cache.Set(month, set)
		return set, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return Set{}, ctx.Err()
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		s.metrics.RecordEstimation("error")
		s.logger.LogError(ctx, "Estimation failed", err, log.OpEstimate, log.FieldMonth, month)
		return Set{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	set := v.(Set)
	s.metrics.RecordEstimation("ok")
	s.logger.InfoContext(ctx, "Estimations ready",
		log.FieldMonth, month,
		log.FieldCount, len(set),
		"shared", shared)
	return set, nil
}

// Forget drops the cached result for month.
func (s *Service) Forget(month string) {
	s.cache.Delete(month)
}
