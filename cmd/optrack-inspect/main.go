package main

// main.go implements the optrack inspector CLI: it parses command-line
// flags, polls one or more target processes exposing /debug/optrack/*, and
// prints the result either as pretty text or raw JSON. It also supports
// periodic watch mode and pprof snapshot download.
//
// When more than one -target is given, snapshots are fetched concurrently
// via golang.org/x/sync/errgroup, bounding the fan-out to the number of
// targets supplied rather than spawning unbounded goroutines.
//
// © 2025 optrack authors. MIT License.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	opts := parseFlags()

	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if opts.heapProfile != "" {
		if err := downloadProfile(ctx, opts.targets[0], "heap", opts.heapProfile); err != nil {
			fatal(err)
		}
		return
	}
	if opts.goroutineProfile != "" {
		if err := downloadProfile(ctx, opts.targets[0], "goroutine", opts.goroutineProfile); err != nil {
			fatal(err)
		}
		return
	}

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		for {
			if err := dumpOnce(ctx, opts); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
			select {
			case <-ticker.C:
				continue
			case <-ctx.Done():
				return
			}
		}
	}

	if err := dumpOnce(ctx, opts); err != nil {
		fatal(err)
	}
}

type targetSnapshot struct {
	target string
	data   map[string]any
}

func dumpOnce(ctx context.Context, opts *options) error {
	path, err := opts.endpointPath()
	if err != nil {
		return err
	}

	snapshots := make([]targetSnapshot, len(opts.targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range opts.targets {
		i, target := i, target
		g.Go(func() error {
			data, err := fetchSnapshot(gctx, target, path)
			if err != nil {
				return fmt.Errorf("%s: %w", target, err)
			}
			snapshots[i] = targetSnapshot{target: target, data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, snap := range snapshots {
		if opts.json {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(snap.data); err != nil {
				return err
			}
			continue
		}
		fmt.Printf("== %s ==\n", snap.target)
		if err := prettyPrint(opts.endpoint, snap.data); err != nil {
			return err
		}
	}
	return nil
}

func fetchSnapshot(ctx context.Context, base, path string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return nil, err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}
	var data map[string]any
	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		return nil, err
	}
	return data, nil
}

func prettyPrint(endpoint string, data map[string]any) error {
	switch endpoint {
	case "in_flight":
		if n, ok := data["num_ops"]; ok {
			fmt.Printf("ops in flight: %v\n", n)
		} else {
			fmt.Printf("blocked ops:   %v (complaint_time=%v)\n", data["num_blocked_ops"], data["complaint_time"])
		}
	case "historic":
		fmt.Printf("history size:    %v\n", data["size"])
		fmt.Printf("history window:  %v secs\n", data["duration"])
	case "historic_slow":
		fmt.Printf("num to keep:       %v\n", data["num to keep"])
		fmt.Printf("threshold to keep: %v secs\n", data["threshold to keep"])
	case "check":
		fmt.Printf("summary: %v\n", data["summary"])
	}
	ops, _ := data["ops"].([]any)
	if ops == nil {
		ops, _ = data["Ops"].([]any)
	}
	for _, raw := range ops {
		op, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fmt.Printf("  - %v (age=%.1fs duration=%.1fs)\n", op["description"], toFloat(op["age"]), toFloat(op["duration"]))
	}
	if warnings, ok := data["warnings"].([]any); ok {
		for _, w := range warnings {
			fmt.Printf("  ! %v\n", w)
		}
	}
	return nil
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func downloadProfile(ctx context.Context, base, name, path string) error {
	url := fmt.Sprintf("%s/debug/pprof/%s", base, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return err
	}
	fmt.Printf("%s profile saved to %s\n", name, path)
	return nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "optrack-inspect:", err)
	os.Exit(1)
}
