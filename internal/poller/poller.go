// Package poller keeps the snapshot cache fresh in the background.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Refresher is the cache being kept fresh.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Dependencies holds all dependencies for the poller service
type Dependencies struct {
	Cache  Refresher
	Logger *slog.Logger

	// Interval between refreshes while the backend is healthy.
	Interval time.Duration
	// RetryInterval between refreshes after a failure.
	RetryInterval time.Duration
	// Limit and Burst cap how often refreshes run, whatever triggered them.
	Limit rate.Limit
	Burst int

	// OnResult, if set, is called after every refresh attempt.
	OnResult func(err error)
}

// Service runs periodic and on-demand refreshes on one goroutine, so refreshes
// never overlap and bursts of triggers collapse into one.
type Service struct {
	deps    Dependencies
	limiter *rate.Limiter

	mu        sync.RWMutex
	isRunning bool
	stopChan  chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	trigger chan struct{}
}

// NewService creates a new poller service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 30 * time.Second
	}
	if deps.RetryInterval <= 0 {
		deps.RetryInterval = 5 * time.Second
	}
	if deps.Limit <= 0 {
		deps.Limit = rate.Every(time.Second)
	}
	if deps.Burst <= 0 {
		deps.Burst = 1
	}
	return &Service{
		deps:     deps,
		limiter:  rate.NewLimiter(deps.Limit, deps.Burst),
		stopChan: make(chan struct{}),
		trigger:  make(chan struct{}, 1),
	}
}

// IsRunning returns whether the poller is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Trigger requests a refresh as soon as the rate limit allows. Triggers that
// arrive while one is pending are merged.
func (s *Service) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Start starts the poller goroutine. The first refresh happens immediately.
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()
		s.run(ctx)
	}()
	return nil
}

func (s *Service) run(ctx context.Context) {
	logger := s.deps.Logger
	logger.Debug("Starting snapshot poller", "interval", s.deps.Interval)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-s.trigger:
		case <-timer.C:
		}

		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		err := s.deps.Cache.Refresh(ctx)
		next := s.deps.Interval
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			next = s.deps.RetryInterval
			logger.Warn("Snapshot refresh failed, retry scheduled", "retry_in", next, "error", err)
		}
		if s.deps.OnResult != nil {
			s.deps.OnResult(err)
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)
	}
}

// Stop stops the poller and waits for an in-flight refresh to return.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.isRunning {
		s.isRunning = false
		close(s.stopChan)
		s.cancel()
	}
	s.mu.Unlock()
	s.wg.Wait()
}
