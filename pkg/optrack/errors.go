// © 2025 optrack authors. MIT License.
package optrack

import "errors"

// Contract-violation errors. Both are recoverable: the caller embedded
// optrack in a long-running process and should be able to log-and-continue
// rather than crash the host on a caller-side bug.
var (
	// ErrNotRegistered is returned by UnregisterInflight when called with an
	// op the registry has no record of (never registered, or already
	// unregistered once).
	ErrNotRegistered = errors.New("optrack: op not registered")

	// ErrShardsNotEmpty is returned by Close when one or more shards still
	// hold live ops at teardown time.
	ErrShardsNotEmpty = errors.New("optrack: close called with non-empty shards")
)

var (
	errInvalidShards          = errors.New("optrack: num_shards must be power-of-two and > 0")
	errInvalidHistorySize     = errors.New("optrack: history_size must be > 0")
	errInvalidHistoryDuration = errors.New("optrack: history_duration must be > 0")
	errInvalidSlowHistorySize = errors.New("optrack: slow_history_size must be > 0")
	errInvalidSlowThreshold   = errors.New("optrack: slow_threshold must be >= 0")
)
