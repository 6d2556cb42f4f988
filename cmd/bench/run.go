package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"strconv"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/ssgreg/logf"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/lrucache/internal/config"
	"github.com/IvanBrykalov/lrucache/internal/logger"
	pmet "github.com/IvanBrykalov/lrucache/metrics/prom"
)

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closeLog()
	log = log.With(logf.String("run", xid.New().String()))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := pmet.New(reg, "lru", "bench", prometheus.Labels{"impl": cfg.Impl})

	if cfg.PprofAddr != "" {
		stopPprof := serve(log, "pprof", cfg.PprofAddr, http.DefaultServeMux)
		defer stopPprof()
	}
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		stopMetrics := serve(log, "metrics", cfg.MetricsAddr, mux)
		defer stopMetrics()
	}

	t, err := newTarget(cfg, metrics, log)
	if err != nil {
		return err
	}
	metrics.SetCapacity(t.Cap())

	log.Info("starting workload",
		logf.String("impl", cfg.Impl),
		logf.Int("capacity", t.Cap()),
		logf.Int("shards", cfg.Shards),
		logf.Int("workers", cfg.Workers),
		logf.Int("keys", cfg.Keys),
		logf.Duration("duration", cfg.Duration),
		logf.Int64("seed", cfg.Seed),
	)

	res, err := runWorkload(c.Context, t, cfg)
	if err != nil {
		return err
	}

	log.Info("workload finished",
		logf.Uint64("ops", res.Ops),
		logf.Float64("ops_per_sec", res.OpsPerSec()),
		logf.Float64("hit_rate", res.HitRate()),
		logf.Int("len", t.Len()),
	)
	fmt.Fprintf(c.App.Writer, "impl=%s cap=%d shards=%d workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Impl, cfg.Capacity, cfg.Shards, cfg.Workers, cfg.Keys, res.Elapsed, cfg.Seed)
	fmt.Fprintf(c.App.Writer, "ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		res.Ops, res.OpsPerSec(), res.Reads, res.Writes)
	fmt.Fprintf(c.App.Writer, "hits=%d  misses=%d  hit-rate=%.2f%%\n", res.Hits, res.Misses, res.HitRate()*100)
	fmt.Fprintf(c.App.Writer, "Len()=%d\n", t.Len())
	return nil
}

// loadConfig reads the config file (or defaults) and applies any flags the
// user set explicitly.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cfg, err
	}
	if c.IsSet("impl") {
		cfg.Impl = c.String("impl")
	}
	if c.IsSet("cap") {
		cfg.Capacity = c.Int("cap")
	}
	if c.IsSet("shards") {
		cfg.Shards = c.Int("shards")
	}
	if c.IsSet("workers") {
		cfg.Workers = c.Int("workers")
	}
	if c.IsSet("duration") {
		cfg.Duration = c.Duration("duration")
	}
	if c.IsSet("reads") {
		cfg.Reads = c.Int("reads")
	}
	if c.IsSet("keys") {
		cfg.Keys = c.Int("keys")
	}
	if c.IsSet("zipf_s") {
		cfg.ZipfS = c.Float64("zipf_s")
	}
	if c.IsSet("zipf_v") {
		cfg.ZipfV = c.Float64("zipf_v")
	}
	if c.IsSet("seed") {
		cfg.Seed = c.Int64("seed")
	}
	if c.IsSet("preload") {
		cfg.Preload = c.Bool("preload")
	}
	if c.IsSet("pprof") {
		cfg.PprofAddr = c.String("pprof")
	}
	if c.IsSet("metrics") {
		cfg.MetricsAddr = c.String("metrics")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	if err = cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "invalid flags")
	}
	return cfg, nil
}

// serve runs an HTTP server in the background and returns its shutdown func.
func serve(log *logf.Logger, name, addr string, h http.Handler) func() {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("serving", logf.String("endpoint", name), logf.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", logf.String("endpoint", name), logf.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

type result struct {
	Ops, Reads, Writes, Hits, Misses uint64
	Elapsed                          time.Duration
}

func (r result) OpsPerSec() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

func (r result) HitRate() float64 {
	if r.Reads == 0 {
		return 0
	}
	return float64(r.Hits) / float64(r.Reads)
}

// runWorkload preloads t (if configured) and hammers it from cfg.Workers
// goroutines until cfg.Duration elapses or ctx is cancelled.
func runWorkload(ctx context.Context, t target, cfg config.Config) (result, error) {
	if cfg.Preload {
		for i := 0; i < cfg.Capacity/2 && i < cfg.Keys; i++ {
			k := "k:" + strconv.Itoa(i)
			t.Set(k, "v"+strconv.Itoa(i))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var res result
	keysMax := uint64(cfg.Keys - 1)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		id := w
		g.Go(func() error {
			// rand.Rand is not goroutine-safe: one RNG + Zipf per worker.
			r := rand.New(rand.NewSource(cfg.Seed + int64(id)*9973))
			zipf := rand.NewZipf(r, cfg.ZipfS, cfg.ZipfV, keysMax)

			var local result
			for gctx.Err() == nil {
				k := "k:" + strconv.FormatUint(zipf.Uint64(), 10)
				local.Ops++
				if int(r.Int31n(100)) < cfg.Reads {
					local.Reads++
					if _, ok := t.Get(k); ok {
						local.Hits++
					} else {
						local.Misses++
					}
				} else {
					local.Writes++
					t.Set(k, "v"+strconv.Itoa(r.Int()))
				}
			}
			atomic.AddUint64(&res.Ops, local.Ops)
			atomic.AddUint64(&res.Reads, local.Reads)
			atomic.AddUint64(&res.Writes, local.Writes)
			atomic.AddUint64(&res.Hits, local.Hits)
			atomic.AddUint64(&res.Misses, local.Misses)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	res.Elapsed = time.Since(start)
	return res, nil
}
