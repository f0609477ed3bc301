// Package syncloop drives the two threads described by the reconciliation
// core: an event thread that forwards Docker container lifecycle events
// onto a bounded queue, and a sync thread that folds those events into the
// state tracker and periodically reconciles the tracker's desired records
// against the cluster-wide registry.
package syncloop

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kprice-io/dnssync/internal/dockerevents"
	"github.com/kprice-io/dnssync/internal/errs"
	"github.com/kprice-io/dnssync/internal/labels"
	"github.com/kprice-io/dnssync/internal/localfilter"
	"github.com/kprice-io/dnssync/internal/metrics"
	"github.com/kprice-io/dnssync/internal/reconcile"
	"github.com/kprice-io/dnssync/internal/registry"
	"github.com/kprice-io/dnssync/internal/state"
)

// DefaultLockKey is the well-known lock key reconcile passes serialize
// on across the whole cluster.
const DefaultLockKey = "__global__"

// eventQueueSize bounds the queue between the event thread and the sync
// thread. The event thread only ever enqueues; the sync thread is the
// queue's sole consumer and the only goroutine that mutates the tracker.
const eventQueueSize = 256

// Config configures a SyncLoop.
type Config struct {
	Hostname      string
	PollInterval  time.Duration
	StaleTTL      time.Duration
	LockKey       string
}

// DefaultConfig returns the spec's defaults: a 5s poll interval and a
// 60s stale-container grace period.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		StaleTTL:     60 * time.Second,
		LockKey:      DefaultLockKey,
	}
}

// SyncLoop is the daemon's core scheduling loop.
type SyncLoop struct {
	source     dockerevents.EventSource
	builder    *labels.Builder
	tracker    *state.Tracker
	reconciler *reconcile.Reconciler
	registry   registry.Registry
	cfg        Config
	logger     *slog.Logger

	nowFn func() time.Time

	// events is the bounded queue the event thread pushes onto and the
	// sync thread alone drains and applies to the tracker.
	events chan dockerevents.ContainerEvent

	statusMu    sync.Mutex
	lastSuccess time.Time
	lastErr     error
}

// Option configures a SyncLoop.
type Option func(*SyncLoop)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SyncLoop) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNowFunc overrides the clock used for tracker staleness and for the
// last-successful-pass time reported by Status. Intent creation times come
// from the container event, not from this clock. Tests use this to make
// timing deterministic.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *SyncLoop) { s.nowFn = fn }
}

// New wires the daemon's collaborators into a SyncLoop.
func New(source dockerevents.EventSource, builder *labels.Builder, tracker *state.Tracker,
	reconciler *reconcile.Reconciler, reg registry.Registry, cfg Config, opts ...Option) *SyncLoop {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	if cfg.StaleTTL == 0 {
		cfg.StaleTTL = DefaultConfig().StaleTTL
	}
	if cfg.LockKey == "" {
		cfg.LockKey = DefaultLockKey
	}
	s := &SyncLoop{
		source:     source,
		builder:    builder,
		tracker:    tracker,
		reconciler: reconciler,
		registry:   reg,
		cfg:        cfg,
		logger:     slog.Default(),
		nowFn:      time.Now,
		events:     make(chan dockerevents.ContainerEvent, eventQueueSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run subscribes to the event source and runs the periodic reconcile
// pass until ctx is cancelled. It blocks until both threads have
// returned.
func (s *SyncLoop) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.runEventThread(ctx)
	}()
	go func() {
		defer wg.Done()
		s.runSyncThread(ctx)
	}()

	wg.Wait()
}

// runEventThread only forwards events from the Docker event source onto
// the bounded queue. It never touches the tracker itself — the sync
// thread is the queue's sole consumer, so the tracker is only ever
// mutated from one goroutine.
func (s *SyncLoop) runEventThread(ctx context.Context) {
	events, errc := s.source.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		case err, ok := <-errc:
			if !ok {
				continue
			}
			if err != nil {
				s.logger.Error("event source terminated", slog.String("error", err.Error()))
			}
		}
	}
}

// runSyncThread is the sole consumer of the event queue and the sole
// owner of the periodic reconcile ticker, so it is also the only
// goroutine that ever mutates the tracker.
func (s *SyncLoop) runSyncThread(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.HandleEvent(ev)
		case <-ticker.C:
			err := s.ReconcileOnce(ctx)
			s.recordOutcome(err)
			if err != nil {
				s.logger.Warn("reconcile pass skipped", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *SyncLoop) recordOutcome(err error) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.lastErr = err
	if err == nil {
		s.lastSuccess = s.nowFn()
	}
}

// Status reports the outcome of the most recent periodic reconcile pass:
// the error it returned (nil on success) and the time of the last
// successful pass. Health checks use this to decide readiness/degradation
// without coupling to the registry or reconciler directly.
func (s *SyncLoop) Status() (lastErr error, lastSuccess time.Time) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.lastErr, s.lastSuccess
}

// HandleEvent folds a single ContainerEvent into the tracker. It is safe
// to call directly in tests without running Run.
func (s *SyncLoop) HandleEvent(ev dockerevents.ContainerEvent) {
	now := s.nowFn().UTC()
	switch ev.Status {
	case dockerevents.StatusStart:
		intents := s.builder.Build(ev.Labels, ev.ID, ev.Name, ev.Created)
		if len(intents) > 0 {
			s.tracker.Upsert(ev.ID, ev.Name, ev.Created, intents, state.StatusRunning, now)
			metrics.TrackedContainers.Set(float64(s.tracker.Len()))
		}
	case dockerevents.StatusDie, dockerevents.StatusStop, dockerevents.StatusDestroy:
		s.tracker.MarkRemoved(ev.ID, now)
		metrics.TrackedContainers.Set(float64(s.tracker.Len()))
	default:
		s.logger.Debug("ignoring unrecognized container event status", slog.String("status", ev.Status))
	}
}

// ReconcileOnce runs a single periodic pass: acquire the global lock,
// list actual records, filter and reconcile the desired set, and apply
// removes then adds. It is exported so the periodic ticker and tests
// share one code path.
func (s *SyncLoop) ReconcileOnce(ctx context.Context) error {
	start := s.nowFn()
	evicted := s.tracker.RemoveStale(start, s.cfg.StaleTTL)
	if evicted > 0 {
		s.logger.Debug("evicted stale tracker entries", slog.Int("count", evicted))
		metrics.StaleContainersEvictedTotal.Add(float64(evicted))
	}
	metrics.TrackedContainers.Set(float64(s.tracker.Len()))

	err := s.registry.LockTransaction(ctx, []string{s.cfg.LockKey}, func(ctx context.Context) error {
		actual, err := s.registry.List(ctx)
		if err != nil {
			return err
		}

		desired := localfilter.Apply(s.tracker.DesiredIntents())
		result := s.reconciler.Reconcile(desired, actual, s.cfg.Hostname)

		for _, r := range result.ToRemove {
			if err := s.registry.Remove(ctx, r); err != nil {
				s.logger.Error("failed to remove registry entry",
					slog.String("record", r.Record.Render()), slog.String("error", err.Error()))
			}
		}
		for _, a := range result.ToAdd {
			if err := s.registry.Register(ctx, a); err != nil {
				s.logger.Error("failed to add registry entry",
					slog.String("record", a.Record.Render()), slog.String("error", err.Error()))
			}
		}
		return nil
	})

	metrics.ReconciliationDuration.Observe(s.nowFn().Sub(start).Seconds())
	switch {
	case err == nil:
		metrics.ReconciliationsTotal.WithLabelValues("success").Inc()
	case errs.IsLockAcquisition(err):
		metrics.LockAcquisitionFailuresTotal.Inc()
		metrics.ReconciliationsTotal.WithLabelValues("lock_timeout").Inc()
	default:
		metrics.ReconciliationsTotal.WithLabelValues("registry_error").Inc()
	}
	return err
}
