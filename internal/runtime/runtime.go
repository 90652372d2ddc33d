package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	cfgpkg "github.com/qakkaio/qakka/internal/config"
	"github.com/qakkaio/qakka/internal/deadletter"
	"github.com/qakkaio/qakka/internal/facade"
	"github.com/qakkaio/qakka/internal/metrics"
	"github.com/qakkaio/qakka/internal/shard"
	"github.com/qakkaio/qakka/internal/store"
	pebblestore "github.com/qakkaio/qakka/internal/storage/pebble"
	"github.com/qakkaio/qakka/internal/sweeper"
	transporthttp "github.com/qakkaio/qakka/internal/transport/http"
	"github.com/qakkaio/qakka/pkg/log"
)

// Options configures a single-node Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval time.Duration
	Config        cfgpkg.Config
}

// Runtime wires storage, the shard allocator, the sweeper, the facade, and
// the body-GC job into one process, per §4.5's Process. It is the single
// place constructor wiring happens, per §9's "no process-wide registry
// beyond a startup wiring function" note.
type Runtime struct {
	db        *pebblestore.DB
	store     *store.Store
	allocator *shard.Allocator
	sweeper   *sweeper.Sweeper
	facade    *facade.Facade
	bodyGC    *deadletter.BodyGC
	metrics   *metrics.Metrics
	logger    log.Logger

	cfgMu  sync.RWMutex
	config cfgpkg.Config

	gcStop chan struct{}
	gcDone chan struct{}
}

// Open opens the underlying Pebble database and wires every collaborator
// a Process needs, but does not start background loops or begin serving
// traffic — call Start for that.
func Open(opts Options, logger log.Logger) (*Runtime, error) {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: opts.FsyncInterval,
	})
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.NewLogger(log.WithLevel(log.InfoLevel))
	}

	cfg := opts.Config
	s := store.New(db)
	m := metrics.New()

	allocator := shard.New(s, shard.Config{
		MaxShardSize:  cfg.MaxShardSize,
		AdvanceWindow: time.Duration(cfg.ShardAllocationAdvanceMs) * time.Millisecond,
		Interval:      time.Duration(cfg.AllocatorIntervalMs) * time.Millisecond,
	}, logger.WithComponent("allocator"), m)

	sw := sweeper.New(sweeper.Config{
		Interval:            time.Duration(cfg.SweeperIntervalMs) * time.Millisecond,
		DefaultLeaseSeconds: cfg.LeaseSeconds,
	}, logger.WithComponent("sweeper"))

	forwarder := transporthttp.NewClient(cfg.Peers, 5*time.Second)

	f := facade.New(db, s, allocator, sw, forwarder, m, facade.Config{
		LocalRegion:        cfg.LocalRegion,
		RefreshBatch:       cfg.RefreshBatch,
		BufferTarget:       cfg.BufferTarget,
		LeaseSeconds:       cfg.LeaseSeconds,
		MaxRedeliveries:    cfg.MaxRedeliveries,
		BufferRefreshRate:  rate.Limit(cfg.BufferRefreshRate),
		BufferRefreshBurst: cfg.BufferRefreshBurst,
	}, logger)

	gc := deadletter.NewBodyGC(s, time.Duration(cfg.BodyGCGraceMs)*time.Millisecond)

	return &Runtime{
		db:        db,
		store:     s,
		allocator: allocator,
		sweeper:   sw,
		config:    cfg,
		facade:    f,
		bodyGC:    gc,
		metrics:   m,
		logger:    logger.WithComponent("runtime"),
		gcStop:    make(chan struct{}),
		gcDone:    make(chan struct{}),
	}, nil
}

// Start brings up the facade's background loops, re-attaches actors for
// every locally hosted queue found in the registry, and begins the body-GC
// ticker.
func (r *Runtime) Start() error {
	r.facade.Start()
	if err := r.facade.RestoreQueues(); err != nil {
		return err
	}
	go r.runBodyGC()
	return nil
}

// Close stops background loops and closes the underlying database.
func (r *Runtime) Close() error {
	close(r.gcStop)
	<-r.gcDone
	r.facade.Stop()
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple storage liveness check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Facade returns the wired facade, the surface internal/transport/http
// and cmd/qakka drive.
func (r *Runtime) Facade() *facade.Facade { return r.facade }

// Metrics returns the process's Prometheus registry wrapper.
func (r *Runtime) Metrics() *metrics.Metrics { return r.metrics }

// Config returns the runtime's current configuration.
func (r *Runtime) Config() cfgpkg.Config {
	r.cfgMu.RLock()
	defer r.cfgMu.RUnlock()
	return r.config
}

// DB exposes the underlying database for advanced/administrative use.
func (r *Runtime) DB() *pebblestore.DB { return r.db }

// ApplyConfig is the hot-reload entry point cmd/qakka's serve command wires
// config.Watch into: it pushes a freshly loaded Config's tunables into the
// facade, allocator, and sweeper. LocalRegion and Peers are process
// identity/topology, not runtime tunables, so they are intentionally left
// alone — changing them live would require re-registering every actor and
// is out of scope for a config hot-reload.
func (r *Runtime) ApplyConfig(cfg cfgpkg.Config) {
	r.cfgMu.Lock()
	r.config.MaxShardSize = cfg.MaxShardSize
	r.config.ShardAllocationAdvanceMs = cfg.ShardAllocationAdvanceMs
	r.config.LeaseSeconds = cfg.LeaseSeconds
	r.config.MaxRedeliveries = cfg.MaxRedeliveries
	r.config.RefreshBatch = cfg.RefreshBatch
	r.config.BufferTarget = cfg.BufferTarget
	r.config.BodyGCGraceMs = cfg.BodyGCGraceMs
	r.config.BufferRefreshRate = cfg.BufferRefreshRate
	r.config.BufferRefreshBurst = cfg.BufferRefreshBurst
	r.cfgMu.Unlock()

	r.allocator.SetMaxShardSize(cfg.MaxShardSize)
	r.sweeper.SetDefaultLeaseSeconds(cfg.LeaseSeconds)
	r.facade.UpdateTunables(cfg.RefreshBatch, cfg.BufferTarget, cfg.LeaseSeconds, cfg.MaxRedeliveries,
		rate.Limit(cfg.BufferRefreshRate), cfg.BufferRefreshBurst)
	r.logger.Info("config reloaded",
		log.Int("leaseSeconds", cfg.LeaseSeconds),
		log.Int("maxRedeliveries", cfg.MaxRedeliveries),
	)
}

func (r *Runtime) runBodyGC() {
	defer close(r.gcDone)
	interval := time.Duration(r.Config().BodyGCGraceMs) * time.Millisecond / 2
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.gcStop:
			return
		case <-ticker.C:
			hosted, err := r.hostedQueues()
			if err != nil {
				r.logger.Error("body gc: list hosted queues failed", log.Err(err))
				continue
			}
			reclaimed, err := r.bodyGC.Sweep(hosted)
			if err != nil {
				r.logger.Error("body gc sweep failed", log.Err(err))
				continue
			}
			if reclaimed > 0 {
				r.logger.Info("body gc reclaimed orphaned bodies", log.Int("count", reclaimed))
			}
		}
	}
}

func (r *Runtime) hostedQueues() ([]deadletter.Hosted, error) {
	queues, err := r.facade.ListQueues()
	if err != nil {
		return nil, err
	}
	localRegion := r.Config().LocalRegion
	hosted := make([]deadletter.Hosted, 0, len(queues))
	for _, q := range queues {
		if q.LocalRegion != localRegion {
			continue
		}
		hosted = append(hosted, deadletter.Hosted{Queue: q.Name, Region: q.LocalRegion})
	}
	return hosted, nil
}
