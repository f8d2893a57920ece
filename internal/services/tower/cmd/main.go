package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/indicator"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/internal/node"
	"github.com/LeonardoBeccarini/aquarius/internal/services/event"
	"github.com/LeonardoBeccarini/aquarius/internal/services/persistence"
	"github.com/LeonardoBeccarini/aquarius/internal/services/tower"
)

func main() {
	configPath := flag.StringP("config", "c", "", "rig configuration file")
	persistURL := flag.String("persist", "", "persistence sink url, overrides the configuration")
	httpAddr := flag.String("http", "", "HTTP address for /metrics, /healthz and /data/latest")
	grpcAddr := flag.String("grpc", "", "gRPC address of the tower service")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("tower: %v", err)
	}
	if *persistURL != "" {
		cfg.Tower.PersistURL = *persistURL
	}
	if *httpAddr != "" {
		cfg.Tower.HTTPAddr = *httpAddr
	}
	if *grpcAddr != "" {
		cfg.Tower.GRPCAddr = *grpcAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	n, err := node.Connect(ctx, cfg, model.NodeControlTower, reg, nil)
	if err != nil {
		log.Fatalf("tower: %v", err)
	}
	defer n.Close()

	sink, closeSink, err := persistence.Open(ctx, cfg.Tower.PersistURL, cfg.Tower.Influx, nil)
	if err != nil {
		log.Fatalf("tower: %v", err)
	}
	defer func() {
		if err := closeSink(); err != nil {
			log.Printf("tower: close sink: %v", err)
		}
	}()
	cache := persistence.NewCache(sink)

	t := tower.New(tower.Config{
		Layout:           cfg.Shared.Layout,
		Policy:           model.Policy{MoistureThreshold: cfg.Shared.MoistureThreshold},
		MaxRefill:        cfg.Shared.MaxRefill,
		RefillStopSettle: cfg.Tower.RefillStopSettle,
		InterPhaseDelay:  cfg.Shared.InterPhaseDelay,
	}, tower.Deps{
		Channel:   n.Channel,
		Sink:      cache,
		Pump:      &sim.Pump{},
		Indicator: indicator.NewConsole(os.Stdout),
		Events:    event.NewPublisher(n.Publisher(event.Topic(cfg.Broker.Prefix)), nil),
		Metrics:   m,
	})

	mux := http.NewServeMux()
	persistence.RegisterRoutes(mux, cache)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := t.Status()
		w.Header().Set("Content-Type", "application/json")
		if st.Halted || !n.Client.IsConnectionOpen() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"phase":          st.Phase.String(),
			"halted":         st.Halted,
			"last_error":     st.LastError,
			"cycle_id":       st.CycleID,
			"cycles":         st.Cycles,
			"mqtt_connected": n.Client.IsConnectionOpen(),
		})
	})
	srv := &http.Server{Addr: cfg.Tower.HTTPAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("tower: HTTP listening on %s", cfg.Tower.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("tower: http server: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.Tower.GRPCAddr)
	if err != nil {
		log.Fatalf("tower: listen %s: %v", cfg.Tower.GRPCAddr, err)
	}
	gs := grpc.NewServer()
	tower.RegisterService(gs, t)
	go func() {
		log.Printf("tower: gRPC listening on %s", cfg.Tower.GRPCAddr)
		if err := gs.Serve(lis); err != nil {
			log.Printf("tower: grpc server: %v", err)
		}
	}()

	if err := t.Run(ctx); err != nil && ctx.Err() == nil {
		log.Printf("tower: %v", err)
	}

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	gs.GracefulStop()
	log.Println("tower: shutdown complete")
}
