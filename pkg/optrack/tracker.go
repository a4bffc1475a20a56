// © 2025 optrack authors. MIT License.
package optrack

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/justincmoy/optrack/internal/emit"
	"github.com/justincmoy/optrack/internal/history"
	"github.com/justincmoy/optrack/internal/intern"
)

// OpTracker composes a LiveRegistry and an OpHistory behind a single
// reader-writer lifecycle lock: every public operation takes it in shared
// mode, so Register/Unregister/Dump* on different ops never block each
// other, while Close takes it exclusive to assert a clean teardown.
type OpTracker struct {
	lifecycle sync.RWMutex

	registry *LiveRegistry
	history  *OpHistory

	cfg     *config
	logger  *zap.Logger
	clock   Clock
	pool    *intern.Pool
	metrics metricsSink

	closed bool
}

// New constructs an OpTracker with sensible out-of-the-box defaults,
// validated and overridden by any supplied Option.
func New(opts ...Option) (*OpTracker, error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	metrics := newMetricsSink(cfg.registry)
	historyCfg := history.Config{
		HistorySize:     cfg.historySize,
		HistoryDuration: cfg.historyDuration,
		SlowThreshold:   cfg.slowThreshold,
		SlowHistorySize: cfg.slowHistorySize,
	}

	return &OpTracker{
		registry: newLiveRegistry(cfg.shards, metrics),
		history:  newOpHistory(historyCfg, metrics),
		cfg:      cfg,
		logger:   cfg.logger,
		clock:    cfg.clock,
		pool:     intern.NewPool(),
		metrics:  metrics,
	}, nil
}

// RegisterInflight wraps handle in a TrackedOp and admits it to the live
// registry. Returns (nil, false) if tracking is disabled.
func (t *OpTracker) RegisterInflight(handle TrackedOpHandle) (*TrackedOp, bool) {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if !t.cfg.trackingEnabled {
		return nil, false
	}
	op := newTrackedOp(handle, t.logger, t.pool)
	t.registry.Register(op, t.clock.Now())
	return op, true
}

// UnregisterInflight removes op from the live registry, invokes its
// OnUnregistered hook, and either inserts it into history (tracking
// enabled) or discards it. Returns ErrNotRegistered if op was never
// registered with this tracker.
func (t *OpTracker) UnregisterInflight(op *TrackedOp) error {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if !t.registry.Unregister(op) {
		return ErrNotRegistered
	}
	if t.cfg.trackingEnabled {
		t.history.Insert(t.clock.Now(), op)
	}
	return nil
}

// DumpOpsInFlight writes a structured dump of live ops to emitter. Returns
// false if tracking is disabled.
func (t *OpTracker) DumpOpsInFlight(emitter emit.Emitter, onlyBlocked bool, filters []string) bool {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if !t.cfg.trackingEnabled {
		return false
	}
	now := t.clock.Now()
	numOps := t.registry.DumpInFlight(now, emitter, onlyBlocked, filters, t.cfg.complaintTime)
	if onlyBlocked {
		emitter.DumpFloat("complaint_time", t.cfg.complaintTime.Seconds())
		emitter.DumpInt("num_blocked_ops", int64(numOps))
	} else {
		emitter.DumpInt("num_ops", int64(numOps))
	}
	return true
}

// DumpHistoricOps writes a structured dump of completed ops to emitter,
// ordered by arrival (default) or by duration (slowest-first). Returns
// false if tracking is disabled.
func (t *OpTracker) DumpHistoricOps(emitter emit.Emitter, byDuration bool, filters []string) bool {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if !t.cfg.trackingEnabled {
		return false
	}
	now := t.clock.Now()
	if byDuration {
		t.history.DumpByDuration(now, emitter, filters)
	} else {
		t.history.Dump(now, emitter, filters)
	}
	return true
}

// DumpHistoricSlowOps writes the slow sub-history to emitter. Returns false
// if tracking is disabled.
func (t *OpTracker) DumpHistoricSlowOps(emitter emit.Emitter, filters []string) bool {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if !t.cfg.trackingEnabled {
		return false
	}
	t.history.DumpSlow(t.clock.Now(), emitter, filters)
	return true
}

// VisitOpsInFlight walks every live op via visitor. Returns ok=false if
// there are no live ops, or if the oldest one is younger than
// complaint_time (nothing worth reporting).
func (t *OpTracker) VisitOpsInFlight(visitor Visitor) (oldest time.Time, ok bool) {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	now := t.clock.Now()
	oldestFound, _, hasLive := t.registry.Visit(visitor)
	if !hasLive {
		return time.Time{}, false
	}
	if now.Sub(oldestFound) < t.cfg.complaintTime {
		return time.Time{}, false
	}
	return oldestFound, true
}

// AgeMsHistogram returns a power-of-two histogram of live-op ages in
// milliseconds.
func (t *OpTracker) AgeMsHistogram() map[string]uint64 {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()
	return t.registry.AgeHistogram(t.clock.Now())
}

// Close performs the teardown contract: takes the lifecycle lock
// exclusive, asserts every shard is empty, and shuts down OpHistory. It
// returns ErrShardsNotEmpty (after logging a zap.Error) rather than
// panicking, since a library embedded in a long-running daemon should not
// crash the host process on a caller's misuse — but it must refuse to
// pretend teardown succeeded.
func (t *OpTracker) Close() error {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	if t.closed {
		return nil
	}
	if !t.registry.Empty() {
		t.logger.Error("optrack: close called with live ops still registered")
		return ErrShardsNotEmpty
	}
	t.history.Shutdown()
	t.closed = true
	return nil
}
