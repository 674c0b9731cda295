package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"watchsync/pkg/validation"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Relay struct {
		Path                string        `yaml:"path"`
		PingInterval        time.Duration `yaml:"ping_interval"`
		PongTimeout         time.Duration `yaml:"pong_timeout"`
		WriteTimeout        time.Duration `yaml:"write_timeout"`
		SendBuffer          int           `yaml:"send_buffer"`
		MaxMessageSizeBytes int64         `yaml:"max_message_size_bytes"`
		AnnounceDisconnect  bool          `yaml:"announce_disconnect"`
		AllowedOrigins      []string      `yaml:"allowed_origins"`
	} `yaml:"relay"`

	Storage struct {
		Driver     string `yaml:"driver"` // memory, redis or pebble
		PebblePath string `yaml:"pebble_path"`
	} `yaml:"storage"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`
	} `yaml:"redis"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`

	Client struct {
		RelayURL         string        `yaml:"relay_url"`
		APIURL           string        `yaml:"api_url"`
		ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`
		PollInterval     time.Duration `yaml:"poll_interval"`
		SendQueue        int           `yaml:"send_queue"`
	} `yaml:"client"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Relay
	if c.Relay.Path == "" || c.Relay.Path[0] != '/' {
		return fmt.Errorf("relay.path must start with '/'")
	}
	if c.Relay.PingInterval <= 0 {
		return fmt.Errorf("relay.ping_interval must be > 0")
	}
	if c.Relay.PongTimeout <= c.Relay.PingInterval {
		return fmt.Errorf("relay.pong_timeout must be greater than relay.ping_interval")
	}
	if c.Relay.WriteTimeout <= 0 {
		return fmt.Errorf("relay.write_timeout must be > 0")
	}
	if c.Relay.SendBuffer <= 0 {
		return fmt.Errorf("relay.send_buffer must be > 0")
	}
	if c.Relay.MaxMessageSizeBytes < 0 {
		return fmt.Errorf("relay.max_message_size_bytes must be >= 0")
	}

	// Storage
	switch c.Storage.Driver {
	case "memory":
	case "redis":
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when storage.driver=redis")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when storage.driver=redis")
		}
	case "pebble":
		if c.Storage.PebblePath == "" {
			return fmt.Errorf("storage.pebble_path must not be empty when storage.driver=pebble")
		}
	default:
		return fmt.Errorf("storage.driver must be one of memory, redis, pebble (got %q)", c.Storage.Driver)
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing is enabled")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
	}

	// Client
	if err := validation.ValidateURL(c.Client.RelayURL, "ws", "wss"); err != nil {
		return fmt.Errorf("client.relay_url: %w", err)
	}
	if err := validation.ValidateURL(c.Client.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("client.api_url: %w", err)
	}
	if c.Client.ReconnectBackoff <= 0 {
		return fmt.Errorf("client.reconnect_backoff must be > 0")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be > 0")
	}
	if c.Client.SendQueue <= 0 {
		return fmt.Errorf("client.send_queue must be > 0")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 15 * time.Second

	cfg.Relay.Path = "/ws"
	cfg.Relay.PingInterval = 30 * time.Second
	cfg.Relay.PongTimeout = 60 * time.Second
	cfg.Relay.WriteTimeout = 10 * time.Second
	cfg.Relay.SendBuffer = 64
	cfg.Relay.MaxMessageSizeBytes = 64 * 1024
	cfg.Relay.AnnounceDisconnect = true
	cfg.Relay.AllowedOrigins = []string{"*"}

	cfg.Storage.Driver = "memory"
	cfg.Storage.PebblePath = "data/rooms"

	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "watchsync"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 20
	cfg.RateLimiting.HTTP.Burst = 40
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 20
	cfg.RateLimiting.WebSocket.Burst = 40

	cfg.Client.RelayURL = "ws://localhost:8080/ws"
	cfg.Client.APIURL = "http://localhost:8080"
	cfg.Client.ReconnectBackoff = 5 * time.Second
	cfg.Client.PollInterval = time.Second
	cfg.Client.SendQueue = 64

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("WATCHSYNC_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("WATCHSYNC_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if driver := os.Getenv("WATCHSYNC_STORAGE_DRIVER"); driver != "" {
		c.Storage.Driver = driver
	}
	if addr := os.Getenv("WATCHSYNC_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if url := os.Getenv("WATCHSYNC_RELAY_URL"); url != "" {
		c.Client.RelayURL = url
	}
	if url := os.Getenv("WATCHSYNC_API_URL"); url != "" {
		c.Client.APIURL = url
	}
}
