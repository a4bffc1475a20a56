package main

// workload_gen is a tiny helper utility to generate synthetic op
// workload descriptions for offline soak-testing of optrack, outside
// `go test`. It emits newline-separated "kind,duration_ms" records which
// can be fed into a driver that replays them against a live OpTracker.
//
// Usage:
//
//	go run ./tools/workload_gen -n 100000 -dist=zipf -seed=42 -out workload.csv
//
// Flags:
//
//	-n       number of ops to generate (default 100000)
//	-dist    distribution: "uniform" or "zipf" (default uniform)
//	-zipfs   Zipf s parameter (>1)  (default 1.2)
//	-zipfv   Zipf v parameter (>=1) (default 1.0)
//	-maxms   maximum duration in milliseconds (default 5000)
//	-seed    RNG seed (default current time)
//	-out     output file (default stdout)
//
// © 2025 optrack authors. MIT License.

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"
)

var kinds = []string{"read", "write", "compact", "snapshot", "gc"}

func main() {
	var (
		n       = flag.Int("n", 100_000, "number of ops to generate")
		dist    = flag.String("dist", "uniform", "distribution: uniform or zipf")
		zipfS   = flag.Float64("zipfs", 1.2, "zipf s parameter (>1)")
		zipfV   = flag.Float64("zipfv", 1.0, "zipf v parameter (>=1)")
		maxMs   = flag.Int64("maxms", 5000, "maximum duration in milliseconds")
		seedVal = flag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = flag.String("out", "", "output file (default stdout)")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var durGen func() uint64
	switch *dist {
	case "uniform":
		durGen = func() uint64 { return uint64(rnd.Int63n(*maxMs)) + 1 }
	case "zipf":
		if *zipfS <= 1.0 || *zipfV < 1 {
			fmt.Fprintln(os.Stderr, "zipfs must be >1 and zipfv >=1")
			os.Exit(1)
		}
		z := rand.NewZipf(rnd, *zipfS, *zipfV, uint64(*maxMs-1))
		durGen = func() uint64 { return z.Uint64() + 1 }
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		kind := kinds[rnd.Intn(len(kinds))]
		fmt.Fprintf(w, "%s,%d\n", kind, durGen())
	}
}
