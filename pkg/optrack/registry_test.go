package optrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsShardBySeqModN(t *testing.T) {
	reg := newLiveRegistry(4, noopMetrics{})
	clock := NewFakeClock(time.Unix(0, 0))

	var ops []*TrackedOp
	for i := 0; i < 100; i++ {
		op := newTrackedOp(NewGenericOp("op"), nil, newTestPool())
		reg.Register(op, clock.Now())
		ops = append(ops, op)
		clock.Advance(time.Millisecond)
	}

	counts := make([]int, 4)
	for _, op := range ops {
		shardIdx := int(op.seq % 4)
		counts[shardIdx]++
		// invariant 4: shardFor selects the shard at index seq mod N.
		require.Same(t, reg.shards[shardIdx], reg.shardFor(op.seq))
	}
	for _, c := range counts {
		require.InDelta(t, 25, c, 1)
	}

	// within each shard, initiated_at must be non-decreasing (FIFO).
	for _, shard := range reg.shards {
		var last time.Time
		first := true
		shard.list.Walk(func(op *TrackedOp) bool {
			if !first {
				require.False(t, op.initiatedAt.Before(last))
			}
			last = op.initiatedAt
			first = false
			return true
		})
	}
}

func TestUnregisterRemovesFromShard(t *testing.T) {
	reg := newLiveRegistry(4, noopMetrics{})
	now := time.Unix(0, 0)

	op := newTrackedOp(NewGenericOp("op"), nil, newTestPool())
	reg.Register(op, now)
	require.NotNil(t, op.node)

	ok := reg.Unregister(op)
	require.True(t, ok)
	require.Nil(t, op.node)

	// invariant 5: after unregister, the op is in no shard.
	require.True(t, reg.Empty())
}

func TestUnregisterUnknownOpReturnsFalse(t *testing.T) {
	reg := newLiveRegistry(4, noopMetrics{})
	op := newTrackedOp(NewGenericOp("never registered"), nil, newTestPool())
	require.False(t, reg.Unregister(op))
}

func TestDumpInFlightOnlyBlockedStopsEarly(t *testing.T) {
	reg := newLiveRegistry(1, noopMetrics{})
	base := time.Unix(0, 0)

	a := newTrackedOp(NewGenericOp("A"), nil, newTestPool())
	reg.Register(a, base) // t=0

	b := newTrackedOp(NewGenericOp("B"), nil, newTestPool())
	reg.Register(b, base.Add(50*time.Second)) // t=50

	c := newTrackedOp(NewGenericOp("C"), nil, newTestPool())
	reg.Register(c, base.Add(70*time.Second)) // t=70

	now := base.Add(80 * time.Second) // A age=80, B age=30, C age=10
	j := newTestJSON()
	numOps := reg.DumpInFlight(now, j, true, nil, 30*time.Second)

	// invariant 8 / S6: only A (age 80 > complaint_time 30) is emitted;
	// iteration stops at B (age 30, not > 30) before reaching C.
	require.Equal(t, 1, numOps)
}

func TestDumpInFlightFullIterationIgnoresComplaintTime(t *testing.T) {
	reg := newLiveRegistry(1, noopMetrics{})
	base := time.Unix(0, 0)
	for i := 0; i < 3; i++ {
		op := newTrackedOp(NewGenericOp("op"), nil, newTestPool())
		reg.Register(op, base.Add(time.Duration(i)*time.Second))
	}

	j := newTestJSON()
	numOps := reg.DumpInFlight(base.Add(time.Hour), j, false, nil, 30*time.Second)
	require.Equal(t, 3, numOps)
}
