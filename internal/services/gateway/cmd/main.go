// Command gateway serves the dashboard view of one rig.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/aquarius/internal/services/gateway/app"
)

func main() {
	cfg := loadConfig()
	g := app.NewGateway(cfg.Config)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.Addr, Handler: g.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Printf("gateway: listening on %s (tower=%s events=%s)", cfg.Addr, cfg.TowerBaseURL, cfg.EventsBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("gateway: %v", err)
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
}
