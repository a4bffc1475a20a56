// © 2025 optrack authors. MIT License.
package optrack

import (
	"sync"
	"time"

	"github.com/justincmoy/optrack/internal/emit"
	"github.com/justincmoy/optrack/internal/shardlist"
)

// ShardSlot is one shard of the live registry: a lock and an intrusive
// FIFO list of TrackedOps, preserving registration order within the shard.
type ShardSlot struct {
	mu   sync.Mutex
	list *shardlist.List[*TrackedOp]
}

func newShardSlot() *ShardSlot {
	return &ShardSlot{list: shardlist.New[*TrackedOp]()}
}

// Visitor is invoked for each live op during a registry walk. Return false
// to stop the current shard's iteration early.
type Visitor func(*TrackedOp) (cont bool)

// LiveRegistry is the N-way sharded set of live operations. Shard selection
// is `seq mod N`: seq is dense and globally monotonic, so shards receive
// approximately uniform load, and front-of-shard FIFO makes onlyBlocked
// dumps and oldest-op queries cheap without sorting.
type LiveRegistry struct {
	shards  []*ShardSlot
	seq     atomicCounter
	metrics metricsSink
}

func newLiveRegistry(n int, metrics metricsSink) *LiveRegistry {
	shards := make([]*ShardSlot, n)
	for i := range shards {
		shards[i] = newShardSlot()
	}
	return &LiveRegistry{shards: shards, metrics: metrics}
}

func (r *LiveRegistry) shardFor(seq uint64) *ShardSlot {
	return r.shards[int(seq%uint64(len(r.shards)))]
}

// Register assigns the next sequence number, selects a shard by
// `seq mod N`, and appends op to the back of that shard's list. Always
// succeeds (the tracker decides whether tracking is enabled before
// calling).
func (r *LiveRegistry) Register(op *TrackedOp, now time.Time) {
	seq := r.seq.next()
	op.seq = seq
	op.initiatedAt = now
	op.setState(stateLive)

	shard := r.shardFor(seq)
	shardIdx := int(seq % uint64(len(r.shards)))
	shard.mu.Lock()
	op.node = shard.list.PushBack(op)
	n := shard.list.Len()
	shard.mu.Unlock()

	r.metrics.incRegistered(shardIdx)
	r.metrics.setInFlight(shardIdx, n)
}

// Unregister removes op from its shard's list in O(1) via its intrusive
// node, releases the lock, then calls op.OnUnregistered(). Returns false if
// op was never registered with this registry (node is nil).
func (r *LiveRegistry) Unregister(op *TrackedOp) bool {
	if op.node == nil {
		return false
	}
	shardIdx := int(op.seq % uint64(len(r.shards)))
	shard := r.shards[shardIdx]

	shard.mu.Lock()
	shard.list.Remove(op.node)
	op.node = nil
	n := shard.list.Len()
	shard.mu.Unlock()

	r.metrics.incUnregistered(shardIdx)
	r.metrics.setInFlight(shardIdx, n)

	op.handle.OnUnregistered()
	return true
}

// Visit walks shards 0..N-1, acquiring each shard's lock in turn and
// iterating front-to-back. The visitor may stop a shard's iteration early
// by returning false; the outer loop always continues to the next shard.
// Returns the true minimum initiated_at across all shard fronts (not a
// single-shard heuristic), the total in-flight count, and ok=false if no
// live ops exist anywhere.
func (r *LiveRegistry) Visit(visit Visitor) (oldest time.Time, total int, ok bool) {
	for _, shard := range r.shards {
		shard.mu.Lock()
		count := shard.list.Len()
		if front, hasFront := shard.list.Front(); hasFront {
			if !ok || front.initiatedAt.Before(oldest) {
				oldest = front.initiatedAt
				ok = true
			}
		}
		total += count
		shard.list.Walk(func(op *TrackedOp) bool {
			return visit(op)
		})
		shard.mu.Unlock()
	}
	return oldest, total, ok
}

// DumpInFlight writes a structured dump of live ops into emitter. When
// onlyBlocked, a shard's iteration stops as soon as it reaches an op whose
// age is not greater than complaintTime (shards are FIFO, so everything
// after it is younger still). Filtered-out ops are skipped but never stop iteration.
func (r *LiveRegistry) DumpInFlight(now time.Time, emitter emit.Emitter, onlyBlocked bool, filters []string, complaintTime time.Duration) int {
	numOps := 0
	emitter.OpenArray("ops")
	for _, shard := range r.shards {
		shard.mu.Lock()
		shard.list.Walk(func(op *TrackedOp) bool {
			if onlyBlocked && now.Sub(op.initiatedAt) <= complaintTime {
				return false
			}
			if op.FilterOut(filters) {
				return true
			}
			emitter.OpenObject("")
			op.Dump(now, emitter)
			emitter.CloseSection()
			numOps++
			return true
		})
		shard.mu.Unlock()
	}
	emitter.CloseSection()
	return numOps
}

// AgeHistogram returns a power-of-two histogram (bucket label -> count) of
// now - initiated_at in milliseconds across all live ops.
func (r *LiveRegistry) AgeHistogram(now time.Time) map[string]uint64 {
	hist := map[string]uint64{}
	for _, shard := range r.shards {
		shard.mu.Lock()
		shard.list.Walk(func(op *TrackedOp) bool {
			ms := now.Sub(op.initiatedAt).Milliseconds()
			hist[powerOfTwoBucket(ms)]++
			return true
		})
		shard.mu.Unlock()
	}
	return hist
}

// Empty reports whether every shard is currently empty, used by Close's
// teardown assertion.
func (r *LiveRegistry) Empty() bool {
	for _, shard := range r.shards {
		shard.mu.Lock()
		n := shard.list.Len()
		shard.mu.Unlock()
		if n != 0 {
			return false
		}
	}
	return true
}
