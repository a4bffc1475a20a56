// © 2025 optrack authors. MIT License.
package optrack

import (
	"time"

	"github.com/justincmoy/optrack/internal/emit"
	"github.com/justincmoy/optrack/internal/history"
)

// OpHistory is the facade over internal/history.History[*TrackedOp],
// translating the generic (value, initiatedAt, duration, seq) shape into
// named dump operations and emitter-shaped output.
type OpHistory struct {
	h       *history.History[*TrackedOp]
	metrics metricsSink
}

func newOpHistory(cfg history.Config, metrics metricsSink) *OpHistory {
	return &OpHistory{h: history.New[*TrackedOp](cfg), metrics: metrics}
}

// Insert records a just-completed op.
func (oh *OpHistory) Insert(now time.Time, op *TrackedOp) {
	op.completedAt = now
	op.duration = now.Sub(op.initiatedAt)
	op.setState(stateHistory)

	evicted := oh.h.Insert(now, op, op.initiatedAt, op.duration, op.seq)
	oh.metrics.incHistoryEviction(evicted)
	mainLen, _ := oh.h.Len()
	oh.metrics.setHistorySize(mainLen)
}

// Dump emits {size, duration, ops: [...]} for by_arrival, ascending by
// arrival time.
func (oh *OpHistory) Dump(now time.Time, emitter emit.Emitter, filters []string) int {
	mainLen, _ := oh.h.Len()
	emitter.DumpInt("size", int64(mainLen))
	emitter.DumpInt("duration", int64(oh.cfg().HistoryDuration.Seconds()))
	return dumpOps(emitter, "ops", oh.h.Dump(now), now, filters)
}

// DumpByDuration emits {size, duration, ops: [...]} for by_duration,
// descending (slowest first).
func (oh *OpHistory) DumpByDuration(now time.Time, emitter emit.Emitter, filters []string) int {
	mainLen, _ := oh.h.Len()
	emitter.DumpInt("size", int64(mainLen))
	emitter.DumpInt("duration", int64(oh.cfg().HistoryDuration.Seconds()))
	return dumpOps(emitter, "ops", oh.h.DumpByDuration(now), now, filters)
}

// DumpSlow emits the slow sub-history ascending by arrival, plus the
// legacy-cased "num to keep"/"threshold to keep"/"Ops" fields.
func (oh *OpHistory) DumpSlow(now time.Time, emitter emit.Emitter, filters []string) int {
	ops, numToKeep, thresholdToKeep := oh.h.DumpSlow(now)

	emitter.DumpInt("num to keep", int64(numToKeep))
	emitter.DumpInt("threshold to keep", int64(thresholdToKeep.Seconds()))
	return dumpOps(emitter, "Ops", ops, now, filters)
}

func (oh *OpHistory) cfg() history.Config { return oh.h.CurrentConfig() }

// dumpOps writes ops into an array named key under emitter, skipping any op
// excluded by filters, and returns the count actually written.
func dumpOps(emitter emit.Emitter, key string, ops []*TrackedOp, now time.Time, filters []string) int {
	n := 0
	emitter.OpenArray(key)
	for _, op := range ops {
		if op.FilterOut(filters) {
			continue
		}
		emitter.OpenObject("")
		op.Dump(now, emitter)
		emitter.CloseSection()
		n++
	}
	emitter.CloseSection()
	return n
}

// Shutdown marks the history as shut down and clears all three indices.
func (oh *OpHistory) Shutdown() {
	oh.h.Shutdown()
	oh.metrics.setHistorySize(0)
}

// Len returns (main history size, slow history size).
func (oh *OpHistory) Len() (mainLen, slowLen int) {
	return oh.h.Len()
}
