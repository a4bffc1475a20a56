// © 2025 optrack authors. MIT License.
package optrack

import (
	"fmt"
	"time"
)

// slowOpDetector is a stateless policy built on LiveRegistry.Visit: it never
// holds state of its own between calls, relying entirely on each
// TrackedOp's warnIntervalMultiplier for backoff.
type slowOpDetector struct {
	complaintTime time.Duration
	logThreshold  int
}

// run walks every live op, invoking onWarn for each one due a warning
// (respecting per-op exponential backoff) up to logThreshold warnings, and
// returns the total count of ops older than complaintTime (which may exceed
// the number of onWarn invocations).
func (d slowOpDetector) run(now time.Time, registry *LiveRegistry, onWarn func(*TrackedOp)) (slowCount int) {
	tooOld := now.Add(-d.complaintTime)
	warnedCount := 0

	registry.Visit(func(op *TrackedOp) bool {
		if !op.initiatedAt.Before(tooOld) {
			return false // this shard's FIFO order means everything after is younger still
		}
		slowCount++

		if warnedCount >= d.logThreshold {
			return true // keep counting, stop emitting
		}
		nextComplaint := op.initiatedAt.Add(d.complaintTime * time.Duration(op.warnMultiplier()))
		if !nextComplaint.Before(now) {
			return true
		}
		onWarn(op)
		op.doubleWarnMultiplier()
		warnedCount++
		return true
	})
	return slowCount
}

// CheckOpsInFlight runs the slow-op detector over every live op and formats
// a human-readable summary plus the list of individual warning lines.
// ok is false when there is nothing to report (no live ops, or the oldest
// is younger than complaint_time).
func (t *OpTracker) CheckOpsInFlight() (summary string, warnings []string, numSlow int, ok bool) {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()

	if !t.cfg.trackingEnabled {
		return "", nil, 0, false
	}

	now := t.clock.Now()
	oldest, _, hasLive := t.registry.Visit(func(*TrackedOp) bool { return true })
	if !hasLive {
		return "", nil, 0, false
	}
	oldestAge := now.Sub(oldest)
	if oldestAge < t.cfg.complaintTime {
		return "", nil, 0, false
	}

	detector := slowOpDetector{complaintTime: t.cfg.complaintTime, logThreshold: t.cfg.logThreshold}
	warnedCount := 0
	numSlow = detector.run(now, t.registry, func(op *TrackedOp) {
		warnings = append(warnings, op.eventLine(now))
		t.metrics.incSlowWarning()
		warnedCount++
	})

	summary = fmt.Sprintf("%d slow requests, %d included below; oldest blocked for > %.0f secs",
		numSlow, warnedCount, oldestAge.Seconds())
	return summary, warnings, numSlow, true
}
