package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"PriceCast/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"oneof=development staging production test"`

	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
	} `yaml:"log"`

	Server struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORS            bool          `yaml:"cors"`
		RateLimit       struct {
			PerSecond float64 `yaml:"per_second" validate:"gte=0"`
			Burst     int     `yaml:"burst" default:"20" validate:"gte=1"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	Marketstack struct {
		BaseURL       string        `yaml:"base_url" default:"http://api.marketstack.com/v1/" validate:"url"`
		APIKey        string        `yaml:"api_key"`
		Timeout       time.Duration `yaml:"timeout" default:"15s"`
		RatePerSecond float64       `yaml:"rate_per_second" default:"5" validate:"gte=0"`
		Burst         int           `yaml:"burst" default:"5" validate:"gte=1"`
	} `yaml:"marketstack"`

	Model struct {
		Estimators   int     `yaml:"estimators" default:"100" validate:"gte=1"`
		Seed         uint64  `yaml:"seed" default:"42"`
		Workers      int     `yaml:"workers" validate:"gte=0"`
		MaxDepth     int     `yaml:"max_depth" validate:"gte=0"`
		MinLeaf      int     `yaml:"min_samples_leaf" default:"1" validate:"gte=1"`
		Lookback     int     `yaml:"lookback" default:"10" validate:"gte=1"`
		TestFraction float64 `yaml:"test_fraction" default:"0.2" validate:"gt=0,lt=1"`
		HistoryDays  int     `yaml:"history_days" default:"365" validate:"gte=30"`
		MaxHorizon   int     `yaml:"max_horizon" default:"365" validate:"gte=1"`
	} `yaml:"model"`

	Store struct {
		Backend        string `yaml:"backend" default:"fs" validate:"oneof=fs redis s3"`
		Dir            string `yaml:"dir" default:"saved_models"`
		RedisNamespace string `yaml:"redis_namespace" default:"model"`
		S3             struct {
			Endpoint       string `yaml:"endpoint"`
			Region         string `yaml:"region" default:"us-east-1"`
			Bucket         string `yaml:"bucket"`
			Prefix         string `yaml:"prefix" default:"models"`
			AccessKey      string `yaml:"access_key"`
			SecretKey      string `yaml:"secret_key"`
			ForcePathStyle bool   `yaml:"force_path_style"`
		} `yaml:"s3"`
	} `yaml:"store"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"pricecast"`
		PoolSize int    `yaml:"pool_size" default:"10"`
	} `yaml:"redis"`

	Cache struct {
		ForecastTTL time.Duration `yaml:"forecast_ttl" default:"15m"`
		MaxEntries  int           `yaml:"max_entries" default:"1000"`
	} `yaml:"cache"`

	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"1" validate:"gte=1"`
		RetryLimit int           `yaml:"retry_limit" default:"3" validate:"gte=0"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"pricecast:queue"`
	} `yaml:"queue"`

	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"pricecast"`
		Table            string        `yaml:"table" default:"bars_daily"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`

	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		EventsTopic  string   `yaml:"events_topic" default:"pricecast.events"`
		TrainTopic   string   `yaml:"train_topic" default:"pricecast.train"`
		DLQTopic     string   `yaml:"dlq_topic" default:"pricecast.train.dlq"`
		GroupID      string   `yaml:"group_id" default:"pricecast-trainer"`
		Workers      int      `yaml:"workers" default:"2" validate:"gte=1"`
		RetryMax     int      `yaml:"retry_max" default:"3" validate:"gte=0"`
		Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`

		MaxAttempts  int           `yaml:"max_attempts" default:"3" validate:"gte=1"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		BufferSize   int           `yaml:"buffer_size" default:"16" validate:"gte=1"`
		MinBytes     int           `yaml:"min_bytes" default:"1" validate:"gte=1"`
		MaxBytes     int           `yaml:"max_bytes" default:"10485760" validate:"gtefield=MinBytes"`
	} `yaml:"kafka"`
}

// Load builds the configuration in layers: struct defaults, then the YAML file
// at path (skipped when path is empty), then .env and process environment.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	// CORS defaults on; a bool tag default cannot be overridden by false in YAML
	c.Server.CORS = true

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			*dst = util.ParseIntDefault(v, *dst)
		}
	}
	setBool := func(key string, dst *bool) {
		if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
			*dst = b
		}
	}

	setString("APP_ENV", &c.Environment)
	setString("LOG_LEVEL", &c.Log.Level)
	setInt("HTTP_PORT", &c.Server.Port)
	setString("MARKETSTACK_API_KEY", &c.Marketstack.APIKey)
	setString("STORE_BACKEND", &c.Store.Backend)
	setString("STORE_DIR", &c.Store.Dir)
	setString("S3_BUCKET", &c.Store.S3.Bucket)
	setString("S3_ENDPOINT", &c.Store.S3.Endpoint)
	setString("AWS_REGION", &c.Store.S3.Region)
	setString("AWS_ACCESS_KEY_ID", &c.Store.S3.AccessKey)
	setString("AWS_SECRET_ACCESS_KEY", &c.Store.S3.SecretKey)
	setBool("REDIS_ENABLED", &c.Redis.Enabled)
	setString("REDIS_HOST", &c.Redis.Host)
	setInt("REDIS_PORT", &c.Redis.Port)
	setString("REDIS_PASSWORD", &c.Redis.Password)
	setBool("QUEUE_ENABLED", &c.Queue.Enabled)
	setBool("CLICKHOUSE_ENABLED", &c.ClickHouse.Enabled)
	setString("CLICKHOUSE_HOST", &c.ClickHouse.Host)
	setString("CLICKHOUSE_PASSWORD", &c.ClickHouse.Password)
	setBool("KAFKA_ENABLED", &c.Kafka.Enabled)
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
	}
}

var validate = validator.New()

// Validate checks field rules and the combinations between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Store.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("store.backend redis requires redis.enabled")
	}
	if c.Store.Backend == "s3" && c.Store.S3.Bucket == "" {
		return fmt.Errorf("store.s3.bucket is required for the s3 backend")
	}
	if c.Queue.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("queue.enabled requires redis.enabled")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// RedisAddr returns host:port for the Redis client.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
