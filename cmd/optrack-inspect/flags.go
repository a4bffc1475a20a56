package main

// flags.go defines the command-line surface for optrack-inspect.
//
// © 2025 optrack authors. MIT License.

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

type targetList []string

func (t *targetList) String() string { return strings.Join(*t, ",") }
func (t *targetList) Set(v string) error {
	*t = append(*t, v)
	return nil
}

type options struct {
	targets targetList
	endpoint string

	onlyBlocked bool
	byDuration  bool
	filter      string

	json  bool
	watch bool

	interval time.Duration

	heapProfile      string
	goroutineProfile string

	version bool
}

func parseFlags() *options {
	opts := &options{}

	fs := flag.NewFlagSet("optrack-inspect", flag.ExitOnError)
	fs.Var(&opts.targets, "target", "base URL of a process exposing /debug/optrack/* (repeatable)")
	fs.StringVar(&opts.endpoint, "endpoint", "in_flight", "one of: in_flight, historic, historic_slow, check")
	fs.BoolVar(&opts.onlyBlocked, "only-blocked", false, "for -endpoint=in_flight, dump only blocked ops")
	fs.BoolVar(&opts.byDuration, "by-duration", false, "for -endpoint=historic, order by duration (slowest first)")
	fs.StringVar(&opts.filter, "filter", "", "comma-separated filter tags")
	fs.BoolVar(&opts.json, "json", false, "emit raw JSON instead of pretty-printed text")
	fs.BoolVar(&opts.watch, "watch", false, "poll repeatedly at -interval instead of a one-shot fetch")
	fs.DurationVar(&opts.interval, "interval", 5*time.Second, "poll interval in watch mode")
	fs.StringVar(&opts.heapProfile, "heap-profile", "", "download /debug/pprof/heap to this path and exit")
	fs.StringVar(&opts.goroutineProfile, "goroutine-profile", "", "download /debug/pprof/goroutine to this path and exit")
	fs.BoolVar(&opts.version, "version", false, "print version and exit")

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if len(opts.targets) == 0 {
		opts.targets = targetList{"http://localhost:6060"}
	}
	return opts
}

func (o *options) endpointPath() (string, error) {
	q := url.Values{}
	if o.filter != "" {
		q.Set("filter", o.filter)
	}

	var path string
	switch o.endpoint {
	case "in_flight":
		path = "/debug/optrack/in_flight"
		if o.onlyBlocked {
			q.Set("only_blocked", "1")
		}
	case "historic":
		path = "/debug/optrack/historic"
		if o.byDuration {
			q.Set("by_duration", "1")
		}
	case "historic_slow":
		path = "/debug/optrack/historic_slow"
	case "check":
		path = "/debug/optrack/check"
	default:
		return "", fmt.Errorf("unknown -endpoint %q", o.endpoint)
	}

	if len(q) == 0 {
		return path, nil
	}
	return path + "?" + q.Encode(), nil
}
