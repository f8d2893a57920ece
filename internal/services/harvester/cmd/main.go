package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/internal/node"
	"github.com/LeonardoBeccarini/aquarius/internal/services/harvester"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

func main() {
	configPath := flag.StringP("config", "c", "", "rig configuration file")
	index := flag.IntP("index", "i", -1, "harvester index, overrides the configuration")
	drift := flag.Bool("drift", false, "simulate drying soil instead of static readings")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("harvester: %v", err)
	}
	if *index >= 0 {
		cfg.Harvester.Index = *index
	}
	if *drift {
		cfg.Harvester.Drift = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("harvester: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	self := model.HarvesterAddress(cfg.Harvester.Index)
	n, err := node.Connect(ctx, cfg, self, nil, nil)
	if err != nil {
		log.Fatalf("harvester: %v", err)
	}
	defer n.Close()

	readings := cfg.Harvester.Readings
	if len(readings) == 0 {
		readings = harvester.DefaultReadings
	}
	probes := harvester.StaticProbes(readings)
	if cfg.Harvester.Drift {
		probes = make([]hw.MoistureProbe, len(readings))
		for i, v := range readings {
			probes[i] = sim.NewDryingProbe(clock.Real(), float64(v)/255, cfg.Harvester.DecayPerMinute)
		}
	}

	r := harvester.NewResponder(n.Channel, probes, nil)
	if err := r.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("harvester: %v", err)
	}
	log.Printf("harvester %s: shutdown complete", self)
}
