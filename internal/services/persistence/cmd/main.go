package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/services/persistence"
)

// The data endpoint the control tower posts readings to when its persist
// url is http(s)://.
func main() {
	configPath := flag.StringP("config", "c", "", "rig configuration file")
	addr := flag.String("addr", ":8090", "listen address")
	store := flag.String("store", "sqlite://aquarius.db", "where readings are kept: influx://, sqlite://path or memory://")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("persistence: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, closeSink, err := persistence.Open(ctx, *store, cfg.Tower.Influx, nil)
	if err != nil {
		log.Fatalf("persistence init failed: %v", err)
	}
	defer func() {
		if err := closeSink(); err != nil {
			log.Printf("persistence: close: %v", err)
		}
	}()
	cache := persistence.NewCache(sink)

	mux := persistence.NewHTTPMux(cache)
	mux.Handle("/data", persistence.NewIngestHandler(cache))
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ready": true})
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("persistence HTTP listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()
	stop()

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	log.Println("persistence: shutdown complete")
}
