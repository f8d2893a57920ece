// Package config loads the rig configuration: one YAML file shared by every
// node, plus a few environment overrides for credentials and node identity.
//
// The shared section holds the constants every node must agree on. Loading
// the same file on all nodes is how they stay identical.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LeonardoBeccarini/aquarius/internal/model"
	"github.com/LeonardoBeccarini/aquarius/pkg/rabbitmq"
)

type Config struct {
	Shared    Shared                  `yaml:"shared"`
	Broker    rabbitmq.RabbitMQConfig `yaml:"broker"`
	Tower     Tower                   `yaml:"tower"`
	Car       Car                     `yaml:"car"`
	Harvester Harvester               `yaml:"harvester"`
}

// Shared are the constants that must be identical across nodes.
type Shared struct {
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	MaxRefill       time.Duration `yaml:"max_refill"`
	InterPhaseDelay time.Duration `yaml:"inter_phase_delay"`

	MoistureThreshold byte         `yaml:"moisture_threshold"`
	MinEmptyDist      float64      `yaml:"min_empty_dist"`
	NearFullMargin    float64      `yaml:"near_full_margin"`
	Layout            model.Layout `yaml:"layout"`
}

type Tower struct {
	// PersistURL selects the sink: http(s)://, influx://, sqlite://, memory://
	PersistURL string `yaml:"persist_url"`

	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`

	// RefillStopSettle is how long the tower waits when it could not tell
	// the car to stop, so the car's own ceiling expires first.
	RefillStopSettle time.Duration `yaml:"refill_stop_settle"`

	Influx Influx `yaml:"influx"`
}

type Influx struct {
	URL          string `yaml:"url"`
	Token        string `yaml:"token"`
	Org          string `yaml:"org"`
	Bucket       string `yaml:"bucket"`
	EventsBucket string `yaml:"events_bucket"`
}

type Car struct {
	SettleAfterAck time.Duration `yaml:"settle_after_ack"`
	// RefillGrace is added to MaxRefill to get the car's hard pump ceiling.
	RefillGrace time.Duration `yaml:"refill_grace"`

	TankSamples   int           `yaml:"tank_samples"`
	MaxPlausible  float64       `yaml:"max_plausible_dist"`
	OverfillNudge time.Duration `yaml:"overfill_nudge"`

	WateringTime       time.Duration `yaml:"watering_time"`
	ArmSteps           int           `yaml:"arm_steps"`
	StepInterval       time.Duration `yaml:"step_interval"`
	PauseAfterWatering time.Duration `yaml:"pause_after_watering"`
	RollOut            time.Duration `yaml:"roll_out"`

	MinSpeed int `yaml:"min_speed"`
	MaxSpeed int `yaml:"max_speed"`

	LowBattery float64 `yaml:"low_battery"`

	CalibrationFile string `yaml:"calibration_file"`
}

type Harvester struct {
	Index int `yaml:"index"`
	// Readings are the static moisture values reported, one per pot.
	Readings []byte `yaml:"readings"`
	// Drift replaces the static readings with a slowly drying probe.
	Drift          bool    `yaml:"drift"`
	DecayPerMinute float64 `yaml:"decay_per_minute"`
}

// RefillCeiling is the car's hard pump budget.
func (c *Config) RefillCeiling() time.Duration {
	return c.Shared.MaxRefill + c.Car.RefillGrace
}

// Default holds the timings of a deployed rig.
func Default() *Config {
	return &Config{
		Shared: Shared{
			ReadTimeout:       3 * time.Second,
			WriteTimeout:      time.Second,
			PollInterval:      5 * time.Millisecond,
			MaxRefill:         5000 * time.Millisecond,
			InterPhaseDelay:   3000 * time.Millisecond,
			MoistureThreshold: model.DefaultMoistureThreshold,
			MinEmptyDist:      4,
			NearFullMargin:    0.3,
			Layout:            model.DefaultLayout,
		},
		Broker: rabbitmq.RabbitMQConfig{
			Host:     "localhost",
			Port:     1883,
			User:     "guest",
			Password: "guest",
			Prefix:   "aquarius",
		},
		Tower: Tower{
			PersistURL:       "memory://",
			HTTPAddr:         ":8080",
			GRPCAddr:         ":50051",
			RefillStopSettle: 6000 * time.Millisecond,
			Influx: Influx{
				URL:          "http://localhost:8086",
				Org:          "aquarius",
				Bucket:       "garden",
				EventsBucket: "events",
			},
		},
		Car: Car{
			SettleAfterAck:     1000 * time.Millisecond,
			RefillGrace:        6000 * time.Millisecond,
			TankSamples:        1024,
			MaxPlausible:       20,
			OverfillNudge:      300 * time.Millisecond,
			WateringTime:       4000 * time.Millisecond,
			ArmSteps:           512,
			StepInterval:       2 * time.Millisecond,
			PauseAfterWatering: 500 * time.Millisecond,
			RollOut:            500 * time.Millisecond,
			MinSpeed:           100,
			MaxSpeed:           220,
			LowBattery:         11.1,
		},
		Harvester: Harvester{
			DecayPerMinute: 0.5,
		},
	}
}

// Load reads path over the defaults, then applies the environment. An empty
// path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Broker.Host = env("AQUARIUS_BROKER_HOST", c.Broker.Host)
	c.Broker.Port = envInt("AQUARIUS_BROKER_PORT", c.Broker.Port)
	c.Broker.User = env("AQUARIUS_BROKER_USER", c.Broker.User)
	c.Broker.Password = env("AQUARIUS_BROKER_PASSWORD", c.Broker.Password)

	c.Tower.PersistURL = env("AQUARIUS_PERSIST_URL", c.Tower.PersistURL)
	c.Tower.Influx.Token = env("INFLUX_TOKEN", c.Tower.Influx.Token)
	c.Tower.Influx.URL = env("INFLUX_URL", c.Tower.Influx.URL)

	c.Car.LowBattery = envFloat("AQUARIUS_LOW_BATTERY", c.Car.LowBattery)
	c.Shared.ReadTimeout = envDuration("AQUARIUS_READ_TIMEOUT", c.Shared.ReadTimeout)
	c.Harvester.Index = envInt("AQUARIUS_HARVESTER_INDEX", c.Harvester.Index)
}

// Validate rejects configurations the nodes cannot run with.
func (c *Config) Validate() error {
	var errs []error
	s := c.Shared
	if s.ReadTimeout <= 0 || s.WriteTimeout <= 0 {
		errs = append(errs, errors.New("read and write timeouts must be positive"))
	}
	if s.PollInterval < 0 || s.PollInterval >= s.ReadTimeout {
		errs = append(errs, fmt.Errorf("poll interval %v must be below the read timeout", s.PollInterval))
	}
	if s.MaxRefill <= 0 {
		errs = append(errs, errors.New("max_refill must be positive"))
	}
	if s.MinEmptyDist <= 0 || s.NearFullMargin < 0 {
		errs = append(errs, errors.New("min_empty_dist must be positive and near_full_margin not negative"))
	}
	if err := s.Layout.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Car.TankSamples <= 0 || c.Car.MaxPlausible <= s.MinEmptyDist {
		errs = append(errs, errors.New("tank sampling must take samples and accept distances above min_empty_dist"))
	}
	if c.Car.MinSpeed <= 0 || c.Car.MaxSpeed < c.Car.MinSpeed {
		errs = append(errs, fmt.Errorf("speeds %d..%d out of order", c.Car.MinSpeed, c.Car.MaxSpeed))
	}
	if h := c.Harvester; h.Index < 0 || h.Index >= s.Layout.Harvesters {
		errs = append(errs, fmt.Errorf("harvester index %d outside 0..%d", h.Index, s.Layout.Harvesters-1))
	}
	if n := len(c.Harvester.Readings); n != 0 && n != s.Layout.PotsPerHarvester {
		errs = append(errs, fmt.Errorf("harvester readings: %d values for %d pots", n, s.Layout.PotsPerHarvester))
	}
	return errors.Join(errs...)
}

// ClientID is the MQTT client id of one service of the rig:
// <client_id or prefix>-<service>-<host>. Two nodes on one broker never share
// it, even when they run on the same host from the same file.
func (c *Config) ClientID(service string) string {
	base := c.Broker.ClientID
	if base == "" {
		base = c.Broker.Prefix
	}
	return fmt.Sprintf("%s-%s-%s", base, service, hostname())
}

func hostname() string {
	if h := env("HOSTNAME", ""); h != "" {
		return h
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "local"
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
