// © 2025 optrack authors. MIT License.
package optrack

// config.go defines the internal configuration object and the set of
// functional options New accepts: all fields get sensible defaults in
// defaultConfig, options only ever capture external collaborators
// (logger, registry, clock) or plain tunables, and the struct itself is
// never exported — callers influence construction only through Option.

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/justincmoy/optrack/internal/intern"
)

// Option is a functional option passed to New.
type Option func(*config)

type config struct {
	shards          int
	trackingEnabled bool

	complaintTime time.Duration
	logThreshold  int

	historySize     int
	historyDuration time.Duration
	slowThreshold   time.Duration
	slowHistorySize int

	logger   *zap.Logger
	registry *prometheus.Registry
	clock    Clock
}

func defaultConfig() *config {
	shards := intern.NextPowerOfTwo(uint32(runtime.GOMAXPROCS(0)))
	return &config{
		shards:          int(shards),
		trackingEnabled: true,
		complaintTime:   30 * time.Second,
		logThreshold:    10,
		historySize:     1000,
		historyDuration: 10 * time.Minute,
		slowThreshold:   time.Second,
		slowHistorySize: 100,
		logger:          zap.NewNop(),
		registry:        nil, // user must opt in to metrics
		clock:           SystemClock{},
	}
}

// WithShards sets the number of live-registry shards. Must be a power of
// two; defaults to GOMAXPROCS rounded up to the next power of two.
func WithShards(n int) Option {
	return func(c *config) { c.shards = n }
}

// WithTrackingEnabled toggles the tracker on or off. When disabled,
// RegisterInflight returns (nil, false) and the Dump* calls and
// CheckOpsInFlight return false without doing any work — useful for
// disabling the feature in production builds that still link the package.
func WithTrackingEnabled(enabled bool) Option {
	return func(c *config) { c.trackingEnabled = enabled }
}

// WithComplaintTime sets the age beyond which a live op is considered
// "blocked" by DumpInFlight(onlyBlocked) and a candidate for a slow-op
// warning.
func WithComplaintTime(d time.Duration) Option {
	return func(c *config) { c.complaintTime = d }
}

// WithLogThreshold caps how many slow-op warnings CheckOpsInFlight emits
// per call; ops beyond the cap are still counted in slow_count.
func WithLogThreshold(n int) Option {
	return func(c *config) { c.logThreshold = n }
}

// WithHistorySize caps the number of completed ops retained in
// by_arrival/by_duration. Must be > 0.
func WithHistorySize(n int) Option {
	return func(c *config) { c.historySize = n }
}

// WithHistoryDuration caps how long a completed op may remain in history
// regardless of size pressure. Must be > 0.
func WithHistoryDuration(d time.Duration) Option {
	return func(c *config) { c.historyDuration = d }
}

// WithSlowThreshold sets the duration at or above which a completed op is
// also retained in the slow sub-history.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *config) { c.slowThreshold = d }
}

// WithSlowHistorySize caps the number of entries retained in the slow
// sub-history. Must be > 0.
func WithSlowHistorySize(n int) Option {
	return func(c *config) { c.slowHistorySize = n }
}

// WithLogger plugs an external zap.Logger. The tracker never logs on the
// hot path except a Debug line per MarkEvent; the only other line is an
// Error from Close when live ops are still registered. Slow-op detections
// are returned by CheckOpsInFlight, not logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection, registered against
// reg. Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithClock overrides the time source, primarily for tests.
func WithClock(clock Clock) Option {
	return func(c *config) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// applyOptions copies user-supplied options into cfg and validates
// invariants.
func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.shards <= 0 || !intern.IsPowerOfTwo(uint32(cfg.shards)) {
		return errInvalidShards
	}
	if cfg.historySize <= 0 {
		return errInvalidHistorySize
	}
	if cfg.historyDuration <= 0 {
		return errInvalidHistoryDuration
	}
	if cfg.slowHistorySize <= 0 {
		return errInvalidSlowHistorySize
	}
	if cfg.slowThreshold < 0 {
		return errInvalidSlowThreshold
	}
	return nil
}
