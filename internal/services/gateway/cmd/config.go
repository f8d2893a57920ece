package main

import (
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/LeonardoBeccarini/aquarius/internal/services/gateway/app"
)

type Config struct {
	Addr string
	app.Config
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return d
}

// loadConfig reads the environment first; flags override it.
func loadConfig() Config {
	var cfg Config
	var timeoutMs, openMs, intervalMs, dry int
	flag.StringVar(&cfg.Addr, "addr", ":"+getenv("PORT", "5009"), "listen address")
	flag.StringVar(&cfg.TowerBaseURL, "tower", getenv("TOWER_URL", "http://localhost:8080"), "tower HTTP base url")
	flag.StringVar(&cfg.EventsBaseURL, "events", getenv("EVENT_URL", "http://localhost:8081"), "event service base url, empty to disable")
	flag.IntVar(&timeoutMs, "timeout-ms", getenvInt("TIMEOUT_MS", 3000), "upstream timeout")
	flag.IntVar(&cfg.BreakerFailures, "cb-fails", getenvInt("CB_FAILS", 3), "consecutive failures that open a breaker")
	flag.IntVar(&openMs, "cb-open-ms", getenvInt("CB_OPEN_MS", 10000), "how long an open breaker rejects calls")
	flag.IntVar(&intervalMs, "cb-interval-ms", getenvInt("CB_INTERVAL_MS", 60000), "closed-state count reset interval")
	flag.IntVar(&dry, "dry-threshold", getenvInt("DRY_THRESHOLD", 30), "moisture below which a pot is dry")
	flag.Parse()

	cfg.HTTPTimeout = time.Duration(timeoutMs) * time.Millisecond
	cfg.BreakerOpenFor = time.Duration(openMs) * time.Millisecond
	cfg.BreakerInterval = time.Duration(intervalMs) * time.Millisecond
	if dry > 0 && dry < 256 {
		cfg.DryThreshold = byte(dry)
	}
	return cfg
}
