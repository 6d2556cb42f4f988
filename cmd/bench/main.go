// Command bench runs a synthetic Zipf workload against the cache and exposes
// optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "bench"
	app.Usage = "drive a read/write workload against an LRU cache and report throughput and hit rate"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to a YAML or JSON config file; flags override it",
		},
		&cli.StringFlag{Name: "impl", Usage: "implementation: lru | sharded | golang-lru"},
		&cli.IntFlag{Name: "cap", Usage: "cache capacity (entries)"},
		&cli.IntFlag{Name: "shards", Usage: "number of shards (0=auto), sharded only"},
		&cli.IntFlag{Name: "workers", Usage: "number of worker goroutines"},
		&cli.DurationFlag{Name: "duration", Usage: "benchmark duration"},
		&cli.IntFlag{Name: "reads", Usage: "read percentage [0..100]"},
		&cli.IntFlag{Name: "keys", Usage: "keyspace size"},
		&cli.Float64Flag{Name: "zipf_s", Usage: "Zipf s > 1 (skew)"},
		&cli.Float64Flag{Name: "zipf_v", Usage: "Zipf v >= 1"},
		&cli.Int64Flag{Name: "seed", Usage: "random seed"},
		&cli.BoolFlag{Name: "preload", Usage: "fill half of the capacity before measuring"},
		&cli.StringFlag{Name: "pprof", Usage: "serve pprof at addr (e.g. :6060); empty = disabled"},
		&cli.StringFlag{Name: "metrics", Usage: "serve Prometheus metrics at addr (e.g. :8080); empty = disabled"},
		&cli.StringFlag{Name: "log-level", Usage: "debug | info | warn | error"},
	}
	app.Action = run

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "bench:", err)
		os.Exit(1)
	}
}
