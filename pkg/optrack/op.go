// © 2025 optrack authors. MIT License.
package optrack

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/justincmoy/optrack/internal/emit"
	"github.com/justincmoy/optrack/internal/intern"
	"github.com/justincmoy/optrack/internal/shardlist"
)

// TrackedOpHandle is the capability contract a concrete operation type
// implements so that TrackedOp can dump and filter it without the tracker
// ever constructing or knowing about concrete op types. The tracker only
// ever calls hooks on this interface; see GenericOp for a ready-made
// implementation.
type TrackedOpHandle interface {
	// Describe returns a short human-readable summary of the operation,
	// computed on demand (it may be expensive; callers should not call it
	// on every MarkEvent).
	Describe() string

	// DumpTypeData writes the operation's type-specific fields into a
	// nested section of the emitter. The tracker has already opened the
	// section; the handle only fills it in.
	DumpTypeData(emitter emit.Emitter)

	// FilterMatch reports whether the operation matches the given set of
	// filter strings. An empty filter set always matches.
	FilterMatch(filters []string) bool

	// OnEvent is invoked after MarkEvent records label, in case the handle
	// wants to react (e.g. update its own counters).
	OnEvent(label string)

	// OnUnregistered is invoked once, when the tracker removes the op from
	// the live registry.
	OnUnregistered()
}

// state is the lifecycle state of a TrackedOp.
type state int32

const (
	stateUninitialized state = iota
	stateLive
	stateHistory
)

type opEvent struct {
	at    time.Time
	label string
}

// TrackedOp is the per-operation record the tracker manages: identity,
// timestamps, an append-only event log, and the intrusive membership hook
// that lets LiveRegistry remove it in O(1). The embedded TrackedOpHandle
// supplies everything operation-type-specific.
type TrackedOp struct {
	handle TrackedOpHandle
	logger *zap.Logger
	pool   *intern.Pool

	seq         uint64
	initiatedAt time.Time
	completedAt time.Time
	duration    time.Duration

	st state

	mu      sync.Mutex
	events  []opEvent
	current string

	warnIntervalMultiplier atomic.Uint32

	// node is the membership hook into whichever ShardSlot list currently
	// holds this op, nil while not live.
	node *shardlist.Node[*TrackedOp]
}

// newTrackedOp constructs an op in the UNINITIALIZED state. The tracker
// transitions it to LIVE as part of RegisterInflight.
func newTrackedOp(handle TrackedOpHandle, logger *zap.Logger, pool *intern.Pool) *TrackedOp {
	op := &TrackedOp{handle: handle, logger: logger, pool: pool, st: stateUninitialized}
	op.warnIntervalMultiplier.Store(1)
	return op
}

// Seq returns the op's registration sequence number. Zero before
// registration.
func (op *TrackedOp) Seq() uint64 { return op.seq }

// InitiatedAt returns the timestamp the op was registered at.
func (op *TrackedOp) InitiatedAt() time.Time { return op.initiatedAt }

// Duration returns completed_at - initiated_at once the op has moved to
// history; for a still-live op it returns now - initiated_at.
func (op *TrackedOp) Duration(now time.Time) time.Duration {
	if op.isHistory() {
		return op.duration
	}
	return now.Sub(op.initiatedAt)
}

// Description returns the handle's on-demand description.
func (op *TrackedOp) Description() string { return op.handle.Describe() }

// Current returns the label of the most recently marked event, or "" if
// none has been marked yet.
func (op *TrackedOp) Current() string {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.current
}

// Handle returns the underlying TrackedOpHandle, for callers that need to
// type-assert back to their concrete op type.
func (op *TrackedOp) Handle() TrackedOpHandle { return op.handle }

func (op *TrackedOp) isLive() bool    { return state(atomic.LoadInt32((*int32)(&op.st))) == stateLive }
func (op *TrackedOp) isHistory() bool { return state(atomic.LoadInt32((*int32)(&op.st))) == stateHistory }

func (op *TrackedOp) setState(s state) {
	atomic.StoreInt32((*int32)(&op.st), int32(s))
}

// MarkEvent appends (stamp, label) to the event log and updates current.
// No-op if the op is UNINITIALIZED. Safe for concurrent callers; emits a
// zap.Debug line, never Info, since this runs on a hot path.
func (op *TrackedOp) MarkEvent(label string, stamp time.Time) {
	if state(atomic.LoadInt32((*int32)(&op.st))) == stateUninitialized {
		return
	}
	canon := op.pool.Intern(label)

	op.mu.Lock()
	op.events = append(op.events, opEvent{at: stamp, label: canon})
	op.current = canon
	op.mu.Unlock()

	op.handle.OnEvent(canon)
	if op.logger != nil {
		op.logger.Debug("optrack: event marked", zap.Uint64("seq", op.seq), zap.String("label", canon))
	}
}

// FilterOut reports whether filters excludes this op (the inverse of
// handle.FilterMatch, named to match the "filtered ops are skipped" dump
// contract).
func (op *TrackedOp) FilterOut(filters []string) bool {
	if len(filters) == 0 {
		return false
	}
	return !op.handle.FilterMatch(filters)
}

// warnMultiplier returns the current backoff multiplier.
func (op *TrackedOp) warnMultiplier() uint32 { return op.warnIntervalMultiplier.Load() }

// doubleWarnMultiplier doubles the backoff multiplier, called once per
// emitted slow-op warning.
func (op *TrackedOp) doubleWarnMultiplier() {
	for {
		old := op.warnIntervalMultiplier.Load()
		next := old * 2
		if next == 0 { // overflow guard; backoff saturates instead of wrapping
			next = old
		}
		if op.warnIntervalMultiplier.CompareAndSwap(old, next) {
			return
		}
	}
}

// Dump emits the op's description, timestamps, and a nested type-specific
// section populated by the handle.
func (op *TrackedOp) Dump(now time.Time, emitter emit.Emitter) {
	emitter.DumpString("description", op.handle.Describe())
	emitter.DumpString("initiated_at", op.initiatedAt.Format(time.RFC3339Nano))
	age := now.Sub(op.initiatedAt)
	emitter.DumpFloat("age", age.Seconds())
	emitter.DumpFloat("duration", op.Duration(now).Seconds())

	emitter.OpenObject("type_data")
	op.handle.DumpTypeData(emitter)
	emitter.CloseSection()
}

// eventLine formats the per-warning line emitted by the slow-op detector:
// "slow request <age> seconds old, received at <initiated_at>: <description>
// currently <current-or-state>".
func (op *TrackedOp) eventLine(now time.Time) string {
	age := now.Sub(op.initiatedAt)
	current := op.Current()
	if current == "" {
		switch state(atomic.LoadInt32((*int32)(&op.st))) {
		case stateLive:
			current = "live"
		case stateHistory:
			current = "history"
		default:
			current = "uninitialized"
		}
	}
	return formatSlowLine(age, op.initiatedAt, op.handle.Describe(), current)
}

// GenericOp is a ready-made TrackedOpHandle for callers who just want a
// description string and a flat map of type-specific fields, without
// writing their own handle type.
type GenericOp struct {
	mu       sync.Mutex
	desc     string
	typeData map[string]string
	tags     map[string]struct{}
}

// NewGenericOp constructs a GenericOp with the given description and an
// optional set of filter tags it will match against.
func NewGenericOp(description string, tags ...string) *GenericOp {
	g := &GenericOp{desc: description, typeData: map[string]string{}}
	if len(tags) > 0 {
		g.tags = make(map[string]struct{}, len(tags))
		for _, t := range tags {
			g.tags[t] = struct{}{}
		}
	}
	return g
}

// Set records a type-specific key/value pair, surfaced under type_data on
// Dump.
func (g *GenericOp) Set(key, value string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.typeData[key] = value
}

// Describe implements TrackedOpHandle.
func (g *GenericOp) Describe() string { return g.desc }

// DumpTypeData implements TrackedOpHandle.
func (g *GenericOp) DumpTypeData(emitter emit.Emitter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, v := range g.typeData {
		emitter.DumpString(k, v)
	}
}

// FilterMatch implements TrackedOpHandle: matches if any tag is present in
// filters, or filters is empty.
func (g *GenericOp) FilterMatch(filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if _, ok := g.tags[f]; ok {
			return true
		}
	}
	return false
}

// OnEvent implements TrackedOpHandle; GenericOp has no extra bookkeeping.
func (g *GenericOp) OnEvent(label string) {}

// OnUnregistered implements TrackedOpHandle; GenericOp has no teardown work.
func (g *GenericOp) OnUnregistered() {}
