package optrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	tracker, err := New(WithShards(4), WithClock(clock))
	require.NoError(t, err)

	op, ok := tracker.RegisterInflight(NewGenericOp("write"))
	require.True(t, ok)
	require.Equal(t, uint64(1), op.Seq())

	clock.Advance(time.Second)
	require.NoError(t, tracker.UnregisterInflight(op))

	require.NoError(t, tracker.Close())
}

func TestUnregisterNeverRegisteredReturnsError(t *testing.T) {
	tracker, err := New(WithShards(2))
	require.NoError(t, err)
	defer tracker.Close()

	op := newTrackedOp(NewGenericOp("ghost"), nil, newTestPool())
	require.ErrorIs(t, tracker.UnregisterInflight(op), ErrNotRegistered)
}

func TestCloseRefusesWhenShardsNonEmpty(t *testing.T) {
	tracker, err := New(WithShards(2))
	require.NoError(t, err)

	_, ok := tracker.RegisterInflight(NewGenericOp("still running"))
	require.True(t, ok)

	require.ErrorIs(t, tracker.Close(), ErrShardsNotEmpty)
}

func TestRegisterInflightDisabledWhenTrackingOff(t *testing.T) {
	tracker, err := New(WithTrackingEnabled(false))
	require.NoError(t, err)

	op, ok := tracker.RegisterInflight(NewGenericOp("x"))
	require.False(t, ok)
	require.Nil(t, op)
}

func TestDumpOpsInFlightAndDumpHistoricOps(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	tracker, err := New(WithShards(2), WithClock(clock), WithHistorySize(10), WithHistoryDuration(time.Hour))
	require.NoError(t, err)

	op, _ := tracker.RegisterInflight(NewGenericOp("job"))

	j := newTestJSON()
	require.True(t, tracker.DumpOpsInFlight(j, false, nil))
	require.Equal(t, int64(1), j.Map()["num_ops"])

	clock.Advance(time.Second)
	require.NoError(t, tracker.UnregisterInflight(op))

	jh := newTestJSON()
	require.True(t, tracker.DumpHistoricOps(jh, false, nil))
	ops := jh.Map()["ops"].([]any)
	require.Len(t, ops, 1)
}

func TestVisitOpsInFlightExposesUnderlyingHandle(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	tracker, err := New(WithShards(2), WithClock(clock), WithComplaintTime(time.Hour))
	require.NoError(t, err)
	defer tracker.Close()

	op, ok := tracker.RegisterInflight(NewGenericOp("compact", "maintenance"))
	require.True(t, ok)
	defer tracker.UnregisterInflight(op)

	var sawTag bool
	_, visitedOk := tracker.VisitOpsInFlight(func(visited *TrackedOp) bool {
		generic, isGeneric := visited.Handle().(*GenericOp)
		require.True(t, isGeneric)
		sawTag = generic.FilterMatch([]string{"maintenance"})
		return true
	})
	require.False(t, visitedOk) // oldest age (0) is below the 1h complaint_time
	require.True(t, sawTag)
}

func TestConcurrentRegisterUnregisterStress(t *testing.T) {
	tracker, err := New(WithShards(8))
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			op, ok := tracker.RegisterInflight(NewGenericOp("concurrent"))
			if !ok {
				return nil
			}
			op.MarkEvent("working", time.Now())
			return tracker.UnregisterInflight(op)
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, tracker.Close())
}
