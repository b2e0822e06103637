package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
		Output string `yaml:"output"`
	} `yaml:"logging"`
	Ticker struct {
		FlushInterval time.Duration `yaml:"flush_interval"`
		Horizons      []int         `yaml:"horizons"`
	} `yaml:"ticker"`
	Stream struct {
		Path       string `yaml:"path"`
		SendBuffer int    `yaml:"send_buffer"`
	} `yaml:"stream"`
	Poloniex struct {
		RestURL        string        `yaml:"rest_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		Pull           struct {
			MaxConcurrent  int     `yaml:"max_concurrent"`
			RequestsPerSec float64 `yaml:"requests_per_sec"`
		} `yaml:"pull"`
		Backfill struct {
			Pairs  []string      `yaml:"pairs"`
			Period time.Duration `yaml:"period"`
			Depth  time.Duration `yaml:"depth"`
		} `yaml:"backfill"`
	} `yaml:"poloniex"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		Topic        string   `yaml:"topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
	} `yaml:"kafka"`
	Cache struct {
		Backend string        `yaml:"backend"`
		TTL     time.Duration `yaml:"ttl"`
		Redis   struct {
			Host     string `yaml:"host"`
			Port     int    `yaml:"port"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"cache"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Two-step decode so duration fields accept "10s" style values.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var c Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
		Result:     &c,
		TagName:    "yaml",
	})
	if err != nil {
		return nil, fmt.Errorf("config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	c.applyDefaults()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("POLONIEX_REST_URL"); v != "" {
		c.Poloniex.RestURL = v
	}
	if v := os.Getenv("POLONIEX_WEBSOCKET_URL"); v != "" {
		c.Poloniex.WebSocketURL = v
	}
	if v := os.Getenv("BACKFILL_PAIRS"); v != "" {
		c.Poloniex.Backfill.Pairs = strings.Split(v, ",")
	}
	if v := os.Getenv("FLUSH_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse FLUSH_INTERVAL: %w", err)
		}
		c.Ticker.FlushInterval = d
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("parse PORT: %w", err)
		}
		c.Server.Port = p
	}

	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Ticker.FlushInterval == 0 {
		c.Ticker.FlushInterval = time.Minute
	}
	if len(c.Ticker.Horizons) == 0 {
		c.Ticker.Horizons = []int{1, 5, 15, 60, 360, 720, 1440, 2880}
	}
	if c.Stream.Path == "" {
		c.Stream.Path = "/ws"
	}
	if c.Stream.SendBuffer == 0 {
		c.Stream.SendBuffer = 64
	}
	if c.Poloniex.ReconnectDelay == 0 {
		c.Poloniex.ReconnectDelay = 5 * time.Second
	}
	if c.Poloniex.PingInterval == 0 {
		c.Poloniex.PingInterval = 30 * time.Second
	}
	if c.Poloniex.Pull.MaxConcurrent == 0 {
		c.Poloniex.Pull.MaxConcurrent = 5
	}
	if c.Poloniex.Pull.RequestsPerSec == 0 {
		c.Poloniex.Pull.RequestsPerSec = 6
	}
	if c.Poloniex.Backfill.Period == 0 {
		c.Poloniex.Backfill.Period = 5 * time.Minute
	}
	if c.Cache.Backend == "" {
		c.Cache.Backend = "memory"
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 5 * time.Second
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Ticker.FlushInterval <= 0 {
		return fmt.Errorf("ticker.flush_interval must be positive")
	}
	for _, h := range c.Ticker.Horizons {
		if h <= 0 {
			return fmt.Errorf("ticker.horizons must be positive, got %d", h)
		}
	}
	if c.Poloniex.RestURL == "" {
		return fmt.Errorf("poloniex.rest_url is required")
	}
	if c.Poloniex.WebSocketURL == "" {
		return fmt.Errorf("poloniex.websocket_url is required")
	}
	if c.Poloniex.Backfill.Period%c.Ticker.FlushInterval != 0 {
		return fmt.Errorf("poloniex.backfill.period must be a multiple of ticker.flush_interval")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka.topic is required when kafka is enabled")
		}
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("cache.backend must be 'memory' or 'redis', got '%s'", c.Cache.Backend)
	}
	return nil
}
