// Command rig-simulator runs the control tower, the car and the harvesters
// in one process over an in-memory mesh.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/indicator"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	rigsim "github.com/LeonardoBeccarini/aquarius/internal/rig-simulator"
	"github.com/LeonardoBeccarini/aquarius/internal/services/persistence"
)

func main() {
	configPath := flag.StringP("config", "c", "", "rig configuration file, defaults to the deployed rig timings")
	fast := flag.Bool("fast", false, "shrink every timing so a cycle takes about a second")
	cycles := flag.IntP("cycles", "n", 0, "cycles to run, 0 runs until interrupted")
	drop := flag.Float64("drop", 0, "probability that a mesh write is lost")
	fillRate := flag.Float64("fill-rate", 1, "tank fill rate while pumping, cm/s")
	persistURL := flag.String("persist", "memory://", "persistence sink url")
	httpAddr := flag.String("http", ":8080", "address for /metrics and /data/latest, empty to disable")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("rig: %v", err)
	}
	if *fast {
		cfg = rigsim.FastConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := persistence.Open(ctx, *persistURL, cfg.Tower.Influx, nil)
	if err != nil {
		log.Fatalf("rig: %v", err)
	}
	defer func() { _ = closeSink() }()
	cache := persistence.NewCache(sink)

	reg := prometheus.NewRegistry()
	rig, err := rigsim.New(cfg, rigsim.Options{
		TankFillRate: *fillRate,
		DropRate:     *drop,
		Seed:         time.Now().UnixNano(),
		Sink:         cache,
		Indicator:    indicator.NewConsole(os.Stdout),
		Metrics:      metrics.New(reg),
	})
	if err != nil {
		log.Fatalf("rig: %v", err)
	}

	if *httpAddr != "" {
		mux := persistence.NewHTTPMux(cache)
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *httpAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("rig: HTTP listening on %s", *httpAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("rig: http server: %v", err)
			}
		}()
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	rig.Start(ctx)
	if *cycles > 0 {
		err = rig.RunCycles(ctx, *cycles)
	} else {
		err = rig.Tower.Run(ctx)
	}
	if err != nil && ctx.Err() == nil {
		log.Printf("rig: %v", err)
	}
	stop()
	rig.Wait()
	log.Printf("rig: %d patrols completed", len(rig.Patrols()))
}
