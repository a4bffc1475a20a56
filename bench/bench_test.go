// Package bench provides reproducible micro‑benchmarks for optrack.
// Run via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// We measure:
//  1. RegisterUnregister — register+unregister round trip (unregister also
//     inserts the op into history)
//  2. MarkEvent          — per-event overhead on an already-registered op
//  3. RegisterParallel   — highly concurrent register/unregister (b.RunParallel)
//  4. DumpInFlight       — snapshot cost with N ops live
//  5. HistoryInsert      — completed-op insertion into the bounded history
//
// Results are printed in ns/op + alloc/op so CI can diff via benchstat.
//
// NOTE: Unit tests live alongside the package; this file is *only* for
// performance.
//
// © 2025 optrack authors. MIT License.

package bench

import (
	"math/rand"
	"runtime"
	"testing"
	"time"

	"github.com/justincmoy/optrack/internal/emit"
	"github.com/justincmoy/optrack/pkg/optrack"
)

const (
	shards = 16
	keys   = 1 << 16 // dataset length; entries cycle through four op kinds
)

func newTestTracker(b *testing.B) *optrack.OpTracker {
	tr, err := optrack.New(
		optrack.WithShards(shards),
		optrack.WithHistorySize(10_000),
		optrack.WithSlowHistorySize(1_000),
	)
	if err != nil {
		b.Fatalf("optrack.New: %v", err)
	}
	return tr
}

// global dataset of op kinds reused across benches to avoid reallocating
// large slices.
var ds = func() []string {
	arr := make([]string, keys)
	for i := range arr {
		arr[i] = kindFor(i)
	}
	return arr
}()

func kindFor(i int) string {
	switch i % 4 {
	case 0:
		return "read"
	case 1:
		return "write"
	case 2:
		return "compact"
	default:
		return "snapshot"
	}
}

func BenchmarkRegisterUnregister(b *testing.B) {
	tr := newTestTracker(b)
	defer tr.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kind := ds[i&(keys-1)]
		op, ok := tr.RegisterInflight(optrack.NewGenericOp(kind+" op", kind))
		if !ok {
			b.Fatal("tracking disabled")
		}
		_ = tr.UnregisterInflight(op)
	}
}

func BenchmarkMarkEvent(b *testing.B) {
	tr := newTestTracker(b)
	defer tr.Close()

	op, ok := tr.RegisterInflight(optrack.NewGenericOp("bench op", "bench"))
	if !ok {
		b.Fatal("tracking disabled")
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		op.MarkEvent(ds[i&(keys-1)], time.Now())
	}
	b.StopTimer()
	_ = tr.UnregisterInflight(op)
}

func BenchmarkRegisterParallel(b *testing.B) {
	tr := newTestTracker(b)
	defer tr.Close()

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			kind := ds[idx]
			op, ok := tr.RegisterInflight(optrack.NewGenericOp(kind+" op", kind))
			if !ok {
				continue
			}
			_ = tr.UnregisterInflight(op)
		}
	})
}

func BenchmarkDumpInFlight(b *testing.B) {
	tr := newTestTracker(b)
	defer tr.Close()

	const numLive = 10_000
	ops := make([]*optrack.TrackedOp, numLive)
	for i := 0; i < numLive; i++ {
		kind := ds[i&(keys-1)]
		op, ok := tr.RegisterInflight(optrack.NewGenericOp(kind+" op", kind))
		if !ok {
			b.Fatal("tracking disabled")
		}
		ops[i] = op
	}
	defer func() {
		for _, op := range ops {
			_ = tr.UnregisterInflight(op)
		}
	}()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := emit.NewJSON()
		tr.DumpOpsInFlight(j, false, nil)
	}
}

func BenchmarkHistoryInsert(b *testing.B) {
	tr := newTestTracker(b)
	defer tr.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kind := ds[i&(keys-1)]
		op, ok := tr.RegisterInflight(optrack.NewGenericOp(kind+" op", kind))
		if !ok {
			b.Fatal("tracking disabled")
		}
		op.MarkEvent("done", time.Now())
		_ = tr.UnregisterInflight(op)
	}
}

func init() {
	rand.Seed(42)
	runtime.GOMAXPROCS(runtime.NumCPU())
}
