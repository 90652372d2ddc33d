package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/qakkaio/qakka/pkg/log"
)

// Target is the subset of *actor.Actor the sweeper depends on. Kept as an
// interface so this package does not import internal/actor.
type Target interface {
	SweepExpired(leaseMs int64) (int, error)
}

// Config tunes how often the sweeper scans and the default lease it
// enforces when a registered queue does not override it.
type Config struct {
	// Interval is how often every registered target is swept.
	Interval time.Duration
	// DefaultLeaseSeconds is used for targets registered without their
	// own lease override.
	DefaultLeaseSeconds int
}

type registration struct {
	target       Target
	leaseSeconds int
}

// Sweeper periodically calls SweepExpired on every registered actor.
type Sweeper struct {
	interval     time.Duration
	defaultLease int
	logger       log.Logger

	mu      sync.RWMutex
	targets map[string]registration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Sweeper. Call Start to begin ticking.
func New(cfg Config, logger log.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.DefaultLeaseSeconds <= 0 {
		cfg.DefaultLeaseSeconds = 30
	}
	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		interval:     cfg.Interval,
		defaultLease: cfg.DefaultLeaseSeconds,
		logger:       logger.WithComponent("sweeper"),
		targets:      make(map[string]registration),
		ctx:          ctx, cancel: cancel,
	}
}

// Start begins the sweeper's ticker loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()
}

// Stop halts the sweeper and waits for the current sweep, if any, to finish.
func (s *Sweeper) Stop() {
	s.cancel()
	s.wg.Wait()
}

// Register adds a (queue, region) actor to the sweep rotation. leaseSeconds
// of 0 uses the sweeper's configured default.
func (s *Sweeper) Register(key string, target Target, leaseSeconds int) {
	if leaseSeconds <= 0 {
		leaseSeconds = s.defaultLease
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets[key] = registration{target: target, leaseSeconds: leaseSeconds}
}

// Unregister removes a (queue, region) actor from the sweep rotation, e.g.
// on queue deletion.
func (s *Sweeper) Unregister(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.targets, key)
}

// SetDefaultLeaseSeconds updates the lease used for targets registered
// without their own override. Existing registrations keep the lease they
// were registered with; this only affects Register calls from this point
// on, which is the scope cmd/qakka's config hot-reload documents.
func (s *Sweeper) SetDefaultLeaseSeconds(seconds int) {
	if seconds <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultLease = seconds
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweeper started", log.F("intervalMs", s.interval.Milliseconds()))
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info("sweeper stopped")
			return
		case <-ticker.C:
			s.sweepAll()
		}
	}
}

func (s *Sweeper) sweepAll() {
	s.mu.RLock()
	snapshot := make(map[string]registration, len(s.targets))
	for k, v := range s.targets {
		snapshot[k] = v
	}
	s.mu.RUnlock()

	for key, reg := range snapshot {
		leaseMs := int64(reg.leaseSeconds) * 1000
		swept, err := reg.target.SweepExpired(leaseMs)
		if err != nil {
			s.logger.Error("sweep failed", log.Str("target", key), log.Err(err))
			continue
		}
		if swept > 0 {
			s.logger.Info("swept expired leases", log.Str("target", key), log.F("count", swept))
		}
	}
}
