package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steelstack/millwatch/internal/models"
	"github.com/steelstack/millwatch/internal/riskmodel"
)

// Config captures the settings required to boot the mill engine.
type Config struct {
	Server     ServerConfig           `yaml:"server"`
	Logging    LoggingConfig          `yaml:"logging"`
	Plant      PlantConfig            `yaml:"plant"`
	Model      riskmodel.Config       `yaml:"model"`
	Explainer  ExplainerConfig        `yaml:"explainer"`
	Simulation SimulationConfig       `yaml:"simulation"`
	Thresholds models.AlertThresholds `yaml:"thresholds"`
	Cache      CacheConfig            `yaml:"cache"`
	Database   DatabaseConfig         `yaml:"database"`
	Webhook    WebhookConfig          `yaml:"webhook"`
	Events     EventsConfig           `yaml:"events"`
}

// ServerConfig controls HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// PlantConfig controls synthetic plant generation.
type PlantConfig struct {
	Seed         int64 `yaml:"seed"`
	HistoryHours int   `yaml:"historyHours"`
}

// ExplainerConfig controls the permutation attribution engine.
type ExplainerConfig struct {
	Permutations int   `yaml:"permutations"`
	Background   int   `yaml:"background"`
	Seed         int64 `yaml:"seed"`
}

// SimulationConfig controls the live telemetry loop.
type SimulationConfig struct {
	TickInterval time.Duration `yaml:"tickInterval"`
	UsageStep    float64       `yaml:"usageStep"`
	Jitter       float64       `yaml:"jitter"`
}

// CacheConfig controls Valkey-backed caching of assessment lookups.
type CacheConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addr          string        `yaml:"addr"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	DialTimeout   time.Duration `yaml:"dialTimeout"`
	ReadTimeout   time.Duration `yaml:"readTimeout"`
	WriteTimeout  time.Duration `yaml:"writeTimeout"`
	MaxRetries    int           `yaml:"maxRetries"`
	TLS           bool          `yaml:"tls"`
	AssessmentTTL time.Duration `yaml:"assessmentTTL"`
}

// DatabaseConfig controls the Postgres history recorder. An empty DSN
// disables recording.
type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	QueueSize int    `yaml:"queueSize"`
}

// WebhookConfig controls outbound alert notifications. An empty URL
// disables delivery.
type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// EventsConfig controls the Kafka event publisher.
type EventsConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Brokers   []string `yaml:"brokers"`
	Topic     string   `yaml:"topic"`
	QueueSize int      `yaml:"queueSize"`
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("MILLWATCH_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8000",
			GracefulTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
		Plant: PlantConfig{
			Seed:         42,
			HistoryHours: 24,
		},
		Model: riskmodel.Config{
			Seed:            42,
			Samples:         1000,
			Trees:           100,
			MaxDepth:        10,
			MinSamplesSplit: 5,
		},
		Explainer: ExplainerConfig{
			Permutations: 20,
			Background:   25,
			Seed:         42,
		},
		Simulation: SimulationConfig{
			TickInterval: 15 * time.Second,
			UsageStep:    0.0042,
			Jitter:       0.5,
		},
		Thresholds: models.AlertThresholds{Medium: 0.30, High: 0.55},
		Cache: CacheConfig{
			Enabled:       false,
			DialTimeout:   2 * time.Second,
			ReadTimeout:   500 * time.Millisecond,
			WriteTimeout:  500 * time.Millisecond,
			MaxRetries:    2,
			AssessmentTTL: 15 * time.Second,
		},
		Database: DatabaseConfig{QueueSize: 256},
		Webhook:  WebhookConfig{Timeout: 5 * time.Second},
		Events: EventsConfig{
			Enabled:   false,
			Topic:     "millwatch.alerts",
			QueueSize: 256,
		},
	}
}

// Validate rejects configurations the engine cannot run with. It is called
// after file and environment merging so every path through Load returns a
// usable config.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return errors.New("config: server address must not be empty")
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Simulation.TickInterval <= 0 {
		return errors.New("config: simulation tick interval must be positive")
	}
	if c.Simulation.UsageStep < 0 {
		return errors.New("config: simulation usage step must not be negative")
	}
	if c.Simulation.Jitter < 0 {
		return errors.New("config: simulation jitter must not be negative")
	}
	if c.Plant.HistoryHours <= 0 {
		return errors.New("config: plant history hours must be positive")
	}
	if c.Explainer.Permutations <= 0 {
		return errors.New("config: explainer permutations must be positive")
	}
	if c.Explainer.Background <= 0 {
		return errors.New("config: explainer background size must be positive")
	}
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return errors.New("config: cache enabled without an address")
	}
	if c.Events.Enabled && len(c.Events.Brokers) == 0 {
		return errors.New("config: events enabled without brokers")
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MILLWATCH_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("MILLWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MILLWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("MILLWATCH_PLANT_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Plant.Seed = seed
		}
	}
	if v := os.Getenv("MILLWATCH_PLANT_HISTORY_HOURS"); v != "" {
		if hours, err := strconv.Atoi(v); err == nil {
			cfg.Plant.HistoryHours = hours
		}
	}
	if v := os.Getenv("MILLWATCH_MODEL_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Model.Seed = seed
		}
	}
	if v := os.Getenv("MILLWATCH_SIM_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Simulation.TickInterval = d
		}
	}
	if v := os.Getenv("MILLWATCH_SIM_USAGE_STEP"); v != "" {
		if step, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.UsageStep = step
		}
	}
	if v := os.Getenv("MILLWATCH_SIM_JITTER"); v != "" {
		if jitter, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Simulation.Jitter = jitter
		}
	}
	if v := os.Getenv("MILLWATCH_THRESHOLD_MEDIUM"); v != "" {
		if medium, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Thresholds.Medium = medium
		}
	}
	if v := os.Getenv("MILLWATCH_THRESHOLD_HIGH"); v != "" {
		if high, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Thresholds.High = high
		}
	}
	if v := os.Getenv("MILLWATCH_CACHE_ADDR"); v != "" {
		cfg.Cache.Addr = v
	}
	if v := os.Getenv("MILLWATCH_CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("MILLWATCH_CACHE_USERNAME"); v != "" {
		cfg.Cache.Username = v
	}
	if v := os.Getenv("MILLWATCH_CACHE_PASSWORD"); v != "" {
		cfg.Cache.Password = v
	}
	if v := os.Getenv("MILLWATCH_CACHE_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Cache.DB = db
		}
	}
	if v := os.Getenv("MILLWATCH_CACHE_TLS"); strings.EqualFold(v, "true") || strings.EqualFold(v, "1") {
		cfg.Cache.TLS = true
	}
	if v := os.Getenv("MILLWATCH_CACHE_ASSESSMENT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.AssessmentTTL = d
		}
	}
	if v := os.Getenv("MILLWATCH_DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("MILLWATCH_DATABASE_QUEUE_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil {
			cfg.Database.QueueSize = size
		}
	}
	if v := os.Getenv("MILLWATCH_WEBHOOK_URL"); v != "" {
		cfg.Webhook.URL = v
	}
	if v := os.Getenv("MILLWATCH_WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Webhook.Timeout = d
		}
	}
	if v := os.Getenv("MILLWATCH_EVENTS_ENABLED"); v != "" {
		cfg.Events.Enabled = strings.EqualFold(v, "true") || strings.EqualFold(v, "1")
	}
	if v := os.Getenv("MILLWATCH_EVENTS_BROKERS"); v != "" {
		parts := strings.Split(v, ",")
		brokers := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				brokers = append(brokers, p)
			}
		}
		if len(brokers) > 0 {
			cfg.Events.Brokers = brokers
		}
	}
	if v := os.Getenv("MILLWATCH_EVENTS_TOPIC"); v != "" {
		cfg.Events.Topic = v
	}
}
