package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/aquarius/internal/calibration"
	"github.com/LeonardoBeccarini/aquarius/internal/config"
	"github.com/LeonardoBeccarini/aquarius/internal/hw"
	"github.com/LeonardoBeccarini/aquarius/internal/hw/sim"
	"github.com/LeonardoBeccarini/aquarius/internal/metrics"
	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/internal/node"
	"github.com/LeonardoBeccarini/aquarius/internal/services/car"
	"github.com/LeonardoBeccarini/aquarius/pkg/clock"
)

// The car runs against simulated hardware: a 13-stop grid track, a tank that
// starts half empty and a steady battery.
func main() {
	configPath := flag.StringP("config", "c", "", "rig configuration file")
	metricsAddr := flag.String("metrics", ":9101", "address serving /metrics, empty to disable")
	battery := flag.Float64("battery", 12.0, "simulated battery voltage")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("car: %v", err)
	}

	cal := calibration.Default()
	if cfg.Car.CalibrationFile != "" {
		if cal, err = calibration.Load(cfg.Car.CalibrationFile); err != nil {
			log.Fatalf("car: %v", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	n, err := node.Connect(ctx, cfg, model.NodeCar, reg, nil)
	if err != nil {
		log.Fatalf("car: %v", err)
	}
	defer n.Close()
	ch := n.Channel

	clk := clock.Real()
	track := sim.GridTrack(3*car.StopsPerColumn+1, 20, 5)
	line, err := calibration.NewClassifier(sim.Reflectance{Line: track, Dark: 900, Light: 100}, cal)
	if err != nil {
		log.Fatalf("car: %v", err)
	}
	tank := sim.NewTank(clk, 15, 1).WithFloor(cfg.Shared.MinEmptyDist - 1)
	arm := &hw.Arm{
		Stepper:      sim.NewStepper(),
		Valve:        sim.NewValve(clk),
		Clock:        clk,
		Steps:        cfg.Car.ArmSteps,
		StepInterval: cfg.Car.StepInterval,
		WateringTime: cfg.Car.WateringTime,
	}

	gauge := &car.TankGauge{Sensor: tank, Samples: cfg.Car.TankSamples, MaxPlausible: cfg.Car.MaxPlausible}
	refill := car.NewRefillController(ch, gauge, tank, track, car.RefillConfig{
		MinEmptyDist:   cfg.Shared.MinEmptyDist,
		NearFullMargin: cfg.Shared.NearFullMargin,
		SettleAfterAck: cfg.Car.SettleAfterAck,
		Ceiling:        cfg.RefillCeiling(),
		PollInterval:   cfg.Shared.PollInterval,
		Nudge:          cfg.Car.OverfillNudge,
		NudgeSpeed:     cfg.Car.MaxSpeed,
	}, m, nil)
	nav := car.NewNavigator(line, track, arm, clk, car.NavigatorConfig{
		MinSpeed:           cfg.Car.MinSpeed,
		MaxSpeed:           cfg.Car.MaxSpeed,
		RollOut:            cfg.Car.RollOut,
		PauseAfterWatering: cfg.Car.PauseAfterWatering,
		SampleInterval:     cfg.Shared.PollInterval,
	}, m, nil)

	c := car.New(ch, refill, nav, sim.Battery(*battery), cfg.Shared.Layout, m, nil)
	c.LowBattery = cfg.Car.LowBattery
	// back at the depot: the track restarts and the tank is as empty as it
	// was at start-up
	c.OnPatrolDone = func(car.PatrolReport) {
		track.Rewind()
		tank.Set(15)
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			log.Printf("car: metrics on %s", *metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("car: metrics server: %v", err)
			}
		}()
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()
	}

	if err := c.Serve(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("car: %v", err)
	}
	log.Println("car: shutdown complete")
}
