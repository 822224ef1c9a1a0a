// Package config provides functionality for loading and accessing application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. HONGEET_SERVER_PORT.
const EnvPrefix = "HONGEET"

// Config represents the application configuration
type Config struct {
	// Environment is the current running environment (development, staging, production)
	Environment string `mapstructure:"environment"`

	// Server configuration
	Server struct {
		// Host is the HTTP server host
		Host string `mapstructure:"host"`
		// Port is the HTTP server port
		Port int `mapstructure:"port"`
		// ReadTimeout is the maximum duration for reading the entire request
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
		// WriteTimeout is the maximum duration before timing out writes of the response.
		// Zero disables it, which the stream proxy relies on.
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		// IdleTimeout is the maximum amount of time to wait for the next request
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
		// ShutdownTimeout bounds graceful shutdown
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
		// AllowedOrigins is the list of allowed CORS origins
		AllowedOrigins []string `mapstructure:"allowed_origins"`
	} `mapstructure:"server"`

	// Extractor configures the yt-dlp process backend
	Extractor struct {
		// Binary is the yt-dlp executable name or path
		Binary string `mapstructure:"binary"`
		// ExtraPath entries are prepended to PATH for the process
		ExtraPath []string `mapstructure:"extra_path"`
		// ProcessTimeout bounds one process run
		ProcessTimeout time.Duration `mapstructure:"process_timeout"`
		// SpawnRate is the number of process starts allowed per second, 0 for unlimited
		SpawnRate float64 `mapstructure:"spawn_rate"`
		// SpawnBurst is the spawn limiter burst
		SpawnBurst int `mapstructure:"spawn_burst"`
		// AutoUpdate runs a self-update in the background on startup
		AutoUpdate bool `mapstructure:"auto_update"`
	} `mapstructure:"extractor"`

	// Search configuration
	Search struct {
		// DefaultTake is used when a search request carries no take
		DefaultTake int `mapstructure:"default_take"`
		// RelatedTake is used when a related request carries no take
		RelatedTake int `mapstructure:"related_take"`
		// CandidateSource is "ytdlp" or "youtube_api"
		CandidateSource string `mapstructure:"candidate_source"`
	} `mapstructure:"search"`

	// Workers configures the pool dispatch operations run on
	Workers struct {
		MaxConcurrent int           `mapstructure:"max_concurrent"`
		QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
	} `mapstructure:"workers"`

	// Download configuration
	Download struct {
		// Dir is where downloaded files are saved
		Dir string `mapstructure:"dir"`
		// MaxParallel is the number of concurrent transfers
		MaxParallel int `mapstructure:"max_parallel"`
		// ProgressStep is the minimum progress advance in percent between updates
		ProgressStep int `mapstructure:"progress_step"`
		// ResponseTimeout bounds the wait for upstream response headers
		ResponseTimeout time.Duration `mapstructure:"response_timeout"`
	} `mapstructure:"download"`

	// Stream proxy configuration
	Stream struct {
		// CacheTTL is how long a resolved locator is reused; zero disables the cache
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
		// CacheSize caps the number of cached locators
		CacheSize int `mapstructure:"cache_size"`
	} `mapstructure:"stream"`

	// YouTube Data API configuration
	YouTube struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"youtube"`

	// Saavn configuration
	Saavn struct {
		BaseURL        string        `mapstructure:"base_url"`
		ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
		ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	} `mapstructure:"saavn"`

	// Redis configuration
	Redis struct {
		// Enabled switches rate limiting to the shared Redis store
		Enabled bool `mapstructure:"enabled"`
		// Address is the Redis server address
		Address string `mapstructure:"address"`
		// Password is the Redis password
		Password string `mapstructure:"password"`
		// Database is the Redis database index
		Database int `mapstructure:"database"`
		// PoolSize is the Redis connection pool size
		PoolSize int `mapstructure:"pool_size"`
		// DialTimeout is the timeout for establishing new connections
		DialTimeout time.Duration `mapstructure:"dial_timeout"`
		// ReadTimeout is the timeout for Redis reads
		ReadTimeout time.Duration `mapstructure:"read_timeout"`
		// WriteTimeout is the timeout for Redis writes
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"redis"`

	// RateLimit configures per-client request limiting
	RateLimit struct {
		Enabled  bool          `mapstructure:"enabled"`
		Requests int           `mapstructure:"requests"`
		Window   time.Duration `mapstructure:"window"`
	} `mapstructure:"rate_limit"`

	// WebSocket configuration
	WebSocket struct {
		// MaxMessageSize is the maximum message size
		MaxMessageSize int64 `mapstructure:"max_message_size"`
		// WriteWait is the time allowed to write a message to the peer
		WriteWait time.Duration `mapstructure:"write_wait"`
		// PongWait is the time allowed to read the next pong message from the peer
		PongWait time.Duration `mapstructure:"pong_wait"`
		// PingPeriod is the time between ping messages
		PingPeriod time.Duration `mapstructure:"ping_period"`
	} `mapstructure:"websocket"`

	// Logging configuration
	Logging struct {
		// Level is the logging level
		Level string `mapstructure:"level"`
		// Development switches to the console encoder
		Development bool `mapstructure:"development"`
		// OutputPaths is the list of output paths for logs
		OutputPaths []string `mapstructure:"output_paths"`
	} `mapstructure:"logging"`

	// Feature flags
	Features struct {
		Downloads   bool `mapstructure:"downloads"`
		StreamProxy bool `mapstructure:"stream_proxy"`
		Saavn       bool `mapstructure:"saavn"`
		Metrics     bool `mapstructure:"metrics"`
		WebSocket   bool `mapstructure:"websocket"`
	} `mapstructure:"features"`
}

// New returns a viper instance with defaults and environment overrides applied.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads the configuration into v and decodes it.
// It looks for a configuration file in the following locations:
// 1. configFile, when not empty
// 2. Path specified in the CONFIG_FILE environment variable
// 3. ./configs directory
// 4. the working directory
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	v.SetConfigName("app")
	v.SetConfigType("yaml")

	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	if used := v.ConfigFileUsed(); used != "" {
		overlay := filepath.Join(filepath.Dir(used), fmt.Sprintf("app.%s.yaml", env))
		if _, err := os.Stat(overlay); err == nil {
			v.SetConfigFile(overlay)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to merge environment config file: %w", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.Environment = env

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets the default values for the configuration
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "0s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Extractor defaults
	v.SetDefault("extractor.binary", "yt-dlp")
	v.SetDefault("extractor.extra_path", []string{})
	v.SetDefault("extractor.process_timeout", "45s")
	v.SetDefault("extractor.spawn_rate", 4.0)
	v.SetDefault("extractor.spawn_burst", 8)
	v.SetDefault("extractor.auto_update", false)

	// Search defaults
	v.SetDefault("search.default_take", 30)
	v.SetDefault("search.related_take", 10)
	v.SetDefault("search.candidate_source", "ytdlp")

	// Worker defaults
	v.SetDefault("workers.max_concurrent", 8)
	v.SetDefault("workers.queue_timeout", "30s")

	// Download defaults
	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.max_parallel", 2)
	v.SetDefault("download.progress_step", 2)
	v.SetDefault("download.response_timeout", "30s")

	// Stream defaults
	v.SetDefault("stream.cache_ttl", "20m")
	v.SetDefault("stream.cache_size", 512)

	v.SetDefault("youtube.api_key", "")

	// Saavn defaults
	v.SetDefault("saavn.base_url", "https://saavn.sumit.co")
	v.SetDefault("saavn.connect_timeout", "10s")
	v.SetDefault("saavn.read_timeout", "15s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.database", 0)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 120)
	v.SetDefault("rate_limit.window", "1m")

	// WebSocket defaults
	v.SetDefault("websocket.max_message_size", 65536)
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.ping_period", "54s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.output_paths", []string{"stderr"})

	// Feature flags defaults
	v.SetDefault("features.downloads", true)
	v.SetDefault("features.stream_proxy", true)
	v.SetDefault("features.saavn", true)
	v.SetDefault("features.metrics", true)
	v.SetDefault("features.websocket", true)
}

// validateConfig rejects configurations the server cannot start with
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.New("server port must be between 1 and 65535")
	}

	if strings.TrimSpace(config.Extractor.Binary) == "" {
		return errors.New("extractor binary must be set")
	}

	switch config.Search.CandidateSource {
	case "ytdlp":
	case "youtube_api":
		if config.YouTube.APIKey == "" {
			return errors.New("youtube.api_key must be set when search.candidate_source is youtube_api")
		}
	default:
		return fmt.Errorf("unknown search candidate source %q", config.Search.CandidateSource)
	}

	if config.Features.Downloads && strings.TrimSpace(config.Download.Dir) == "" {
		return errors.New("download directory must be set when downloads are enabled")
	}

	if config.Redis.Enabled && config.Redis.Address == "" {
		return errors.New("redis address must be set when redis is enabled")
	}

	return nil
}

// GetConfigString returns a formatted string with the current configuration
func GetConfigString(config *Config) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Environment: %s\n", config.Environment)
	fmt.Fprintf(&sb, "Server: %s:%d\n", config.Server.Host, config.Server.Port)
	fmt.Fprintf(&sb, "Extractor: %s (timeout %s)\n", config.Extractor.Binary, config.Extractor.ProcessTimeout)
	fmt.Fprintf(&sb, "Search Source: %s\n", config.Search.CandidateSource)
	fmt.Fprintf(&sb, "Workers: %d\n", config.Workers.MaxConcurrent)
	fmt.Fprintf(&sb, "Download Dir: %s\n", config.Download.Dir)
	fmt.Fprintf(&sb, "Redis Enabled: %t\n", config.Redis.Enabled)
	sb.WriteString("Features:\n")
	fmt.Fprintf(&sb, "  Downloads: %t\n", config.Features.Downloads)
	fmt.Fprintf(&sb, "  Stream Proxy: %t\n", config.Features.StreamProxy)
	fmt.Fprintf(&sb, "  Saavn: %t\n", config.Features.Saavn)
	fmt.Fprintf(&sb, "  Metrics: %t\n", config.Features.Metrics)
	fmt.Fprintf(&sb, "  WebSocket: %t\n", config.Features.WebSocket)

	return sb.String()
}

const defaultConfig = `# Hongeet backend configuration

server:
  host: "127.0.0.1"
  port: 8080
  read_timeout: "15s"
  write_timeout: "0s" # streaming responses
  idle_timeout: "60s"
  shutdown_timeout: "15s"
  allowed_origins: ["*"]

extractor:
  binary: "yt-dlp"
  extra_path: [] # e.g. ["~/.deno/bin"]
  process_timeout: "45s"
  spawn_rate: 4
  spawn_burst: 8
  auto_update: false

search:
  default_take: 30
  related_take: 10
  candidate_source: "ytdlp" # or youtube_api

workers:
  max_concurrent: 8
  queue_timeout: "30s"

download:
  dir: "./downloads"
  max_parallel: 2
  progress_step: 2
  response_timeout: "30s"

stream:
  cache_ttl: "20m"
  cache_size: 512

youtube:
  api_key: "" # required for candidate_source youtube_api

saavn:
  base_url: "https://saavn.sumit.co"
  connect_timeout: "10s"
  read_timeout: "15s"

redis:
  enabled: false
  address: "localhost:6379"
  password: ""
  database: 0
  pool_size: 20

rate_limit:
  enabled: true
  requests: 120
  window: "1m"

websocket:
  max_message_size: 65536
  write_wait: "10s"
  pong_wait: "60s"
  ping_period: "54s"

logging:
  level: "info"
  development: false
  output_paths: ["stderr"]

features:
  downloads: true
  stream_proxy: true
  saavn: true
  metrics: true
  websocket: true
`

// WriteDefaultConfig writes the default configuration file to path. An
// existing file is left untouched unless force is set.
func WriteDefaultConfig(path string, force bool) error {
	if path == "" {
		path = filepath.Join("./configs", "app.yaml")
	}
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("failed to write default config file: %w", err)
	}
	return nil
}
