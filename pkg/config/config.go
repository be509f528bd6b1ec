package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string          `yaml:"environment" env:"APP_ENV" default:"development" validate:"required"`
	Server      ServerConfig    `yaml:"server"`
	Log         LogConfig       `yaml:"log"`
	Metrics     MetricsConfig   `yaml:"metrics"`
	Kalshi      KalshiConfig    `yaml:"kalshi"`
	Ranking     RankingConfig   `yaml:"ranking"`
	Flow        FlowConfig      `yaml:"flow"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Redis       RedisConfig     `yaml:"redis"`
	Kafka       KafkaConfig     `yaml:"kafka"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" env:"HOST" default:"0.0.0.0"`
	Port            int           `yaml:"port" env:"PORT" default:"8000" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	StaticDir       string        `yaml:"static_dir" env:"STATIC_DIR"`
	CORS            bool          `yaml:"cors" default:"true"`
}

type LogConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`
	Format     string `yaml:"format" env:"LOG_FORMAT" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" env:"LOG_OUTPUT" default:"stdout"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"100"`
	MaxAgeDays int    `yaml:"max_age_days" default:"7"`
	Compress   bool   `yaml:"compress" default:"true"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

// KalshiConfig holds the upstream API settings and credentials. Credentials are optional:
// without them the service still starts and reports has_api_keys=false.
type KalshiConfig struct {
	BaseURL        string        `yaml:"base_url" env:"KALSHI_BASE_URL" default:"https://api.elections.kalshi.com" validate:"required,url"`
	MarketsPath    string        `yaml:"markets_path" default:"/trade-api/v2/markets" validate:"required,startswith=/"`
	APIKeyID       string        `yaml:"api_key_id" env:"KALSHI_API_KEY_ID"`
	PrivateKeyPEM  string        `yaml:"private_key" env:"KALSHI_PRIVATE_KEY"`
	PrivateKeyPath string        `yaml:"private_key_path" env:"KALSHI_PRIVATE_KEY_PATH"`
	Timeout        time.Duration `yaml:"timeout" default:"30s"`
	PageLimit      int           `yaml:"page_limit" default:"1000" validate:"gte=1,lte=1000"`
	MaxPages       int           `yaml:"max_pages" default:"3" validate:"gte=1"`
}

type RankingConfig struct {
	MinVolume float64 `yaml:"min_volume" default:"5000" validate:"gte=0"`
	TopN      int     `yaml:"top_n" default:"50" validate:"gte=1"`
}

// FlowConfig exposes the flow heuristics as tunable policy. Defaults are the historical values.
type FlowConfig struct {
	TightSpreadMax      float64 `yaml:"tight_spread_max" default:"0.04" validate:"gt=0"`
	ImbalanceRatio      float64 `yaml:"imbalance_ratio" default:"0.3" validate:"gt=0"`
	TightSpreadBonus    float64 `yaml:"tight_spread_bonus" default:"40" validate:"gte=0"`
	VolumeDivisor       float64 `yaml:"volume_divisor" default:"100" validate:"gt=0"`
	OpenInterestDivisor float64 `yaml:"open_interest_divisor" default:"50" validate:"gt=0"`
	WhaleVolume         float64 `yaml:"whale_volume" default:"100000" validate:"gte=0"`
	TightActiveVolume   float64 `yaml:"tight_active_volume" default:"50000" validate:"gte=0"`
	ImbalanceVolume     float64 `yaml:"imbalance_volume" default:"30000" validate:"gte=0"`
	MaxPriceChange      float64 `yaml:"max_price_change" default:"1000" validate:"gt=0"`
}

// RateLimitConfig guards /api/markets. The memory backend is a token bucket
// (RPS, Burst); the redis backend allows WindowRequests per Window.
type RateLimitConfig struct {
	Enabled        bool          `yaml:"enabled" env:"RATE_LIMIT_ENABLED" default:"true"`
	Backend        string        `yaml:"backend" env:"RATE_LIMIT_BACKEND" default:"memory" validate:"oneof=memory redis"`
	RPS            float64       `yaml:"rps" default:"1" validate:"gt=0"`
	Burst          int           `yaml:"burst" default:"5" validate:"gte=1"`
	Window         time.Duration `yaml:"window" default:"1m"`
	WindowRequests int           `yaml:"window_requests" default:"60" validate:"gte=1"`
}

type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" default:"localhost"`
	Port     int    `yaml:"port" env:"REDIS_PORT" default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" default:"0"`
	Prefix   string `yaml:"prefix" default:"kalshiflow"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled" env:"KAFKA_ENABLED"`
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" envSeparator:","`
	Topic        string   `yaml:"topic" env:"KAFKA_TOPIC" default:"kalshiflow.markets"`
	LogTopic     string   `yaml:"log_topic" default:"kalshiflow.logs"`
	RequiredAcks int      `yaml:"required_acks" default:"-1"`
	Compression  string   `yaml:"compression" default:"gzip" validate:"oneof=gzip snappy lz4 zstd"`
	Producer     struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		Linger       time.Duration `yaml:"linger" default:"500ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
}

var validate = validator.New()

// Load builds the configuration from struct defaults overlaid with the YAML file at path.
// A missing file is not an error; the service can run from defaults and environment alone.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides it with environment variables,
// reading a local .env file first when present.
func LoadWithEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	for i := range c.Kafka.Brokers {
		c.Kafka.Brokers[i] = strings.TrimSpace(c.Kafka.Brokers[i])
	}

	if err := c.resolvePrivateKey(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// resolvePrivateKey reads the key file when no inline PEM is set and normalises
// escaped newlines, which is how PEM blocks usually survive a single-line env var.
func (c *Config) resolvePrivateKey() error {
	if c.Kalshi.PrivateKeyPEM == "" && c.Kalshi.PrivateKeyPath != "" {
		b, err := os.ReadFile(c.Kalshi.PrivateKeyPath)
		if err != nil {
			return fmt.Errorf("read private key: %w", err)
		}
		c.Kalshi.PrivateKeyPEM = string(b)
	}
	c.Kalshi.PrivateKeyPEM = strings.ReplaceAll(c.Kalshi.PrivateKeyPEM, `\n`, "\n")
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.Backend == "redis" && c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive for the redis backend")
	}
	return nil
}

// HasCredentials reports whether both halves of the API credentials are present.
func (c *Config) HasCredentials() bool {
	return c.Kalshi.APIKeyID != "" && c.Kalshi.PrivateKeyPEM != ""
}

// MaskedAPIKeyID returns the key id with most characters hidden for logging.
func (c *Config) MaskedAPIKeyID() string {
	return maskSecret(c.Kalshi.APIKeyID)
}

func maskSecret(s string) string {
	if len(s) <= 8 {
		if len(s) == 0 {
			return "(not set)"
		}
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
