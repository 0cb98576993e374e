package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration shared by the API server and the worker
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Redis      RedisConfig      `yaml:"redis"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Coupon     CouponConfig     `yaml:"coupon"`
	CouponBook CouponBookConfig `yaml:"coupon_book"`
	Log        LogConfig        `yaml:"log"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

type ServerConfig struct {
	Port        string `yaml:"port"`
	MetricsPort string `yaml:"metrics_port"`
}

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers"`
	GenerationTopic string   `yaml:"generation_topic"`
	ConsumerGroup   string   `yaml:"consumer_group"`
	MaxAttempts     int      `yaml:"max_attempts"`
	Concurrency     int      `yaml:"concurrency"`
}

type CouponConfig struct {
	LockDurationSeconds int `yaml:"lock_duration_seconds"`
}

// LockDuration is the TTL of a redemption lock.
func (c CouponConfig) LockDuration() time.Duration {
	return time.Duration(c.LockDurationSeconds) * time.Second
}

type CouponBookConfig struct {
	// MaxSyncGenerator is the largest quantity generated on the request path.
	MaxSyncGenerator int `yaml:"max_sync_generator"`
	BatchSize        int `yaml:"batch_size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

type TracingConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ServiceName    string `yaml:"service_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

// Default returns the configuration used when no file or env override is present.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: "8080", MetricsPort: "9090"},
		Mongo:  MongoConfig{URI: "mongodb://localhost:27017/?replicaSet=rs0", Database: "coupon_system"},
		Redis:  RedisConfig{Addr: "localhost:6379"},
		Kafka: KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			GenerationTopic: "coupon-service.code-generation",
			ConsumerGroup:   "coupon-service.code-generation-workers",
			MaxAttempts:     5,
			Concurrency:     1,
		},
		Coupon:     CouponConfig{LockDurationSeconds: 30},
		CouponBook: CouponBookConfig{MaxSyncGenerator: 1000, BatchSize: 1000},
		Log:        LogConfig{Level: "info"},
		Tracing: TracingConfig{
			ServiceName:    "coupon-service",
			JaegerEndpoint: "http://localhost:14268/api/traces",
		},
	}
}

// Load reads the YAML file at path (if it exists) over the defaults and then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside a component.
func (c Config) Validate() error {
	if c.Coupon.LockDurationSeconds <= 0 {
		return fmt.Errorf("coupon.lock_duration_seconds must be positive")
	}
	if c.CouponBook.BatchSize <= 0 {
		return fmt.Errorf("coupon_book.batch_size must be positive")
	}
	if c.CouponBook.MaxSyncGenerator < 0 {
		return fmt.Errorf("coupon_book.max_sync_generator must not be negative")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers must not be empty")
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = GetEnv("PORT", cfg.Server.Port)
	cfg.Server.MetricsPort = GetEnv("METRICS_PORT", cfg.Server.MetricsPort)
	cfg.Mongo.URI = GetEnv("MONGO_URI", cfg.Mongo.URI)
	cfg.Mongo.Database = GetEnv("MONGO_DB", cfg.Mongo.Database)
	cfg.Redis.Addr = GetEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = GetEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)
	if brokers := GetEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.GenerationTopic = GetEnv("KAFKA_GENERATION_TOPIC", cfg.Kafka.GenerationTopic)
	cfg.Kafka.ConsumerGroup = GetEnv("KAFKA_CONSUMER_GROUP", cfg.Kafka.ConsumerGroup)
	cfg.Kafka.Concurrency = getEnvInt("WORKER_CONCURRENCY", cfg.Kafka.Concurrency)
	cfg.Coupon.LockDurationSeconds = getEnvInt("COUPON_LOCK_DURATION_SECONDS", cfg.Coupon.LockDurationSeconds)
	cfg.CouponBook.MaxSyncGenerator = getEnvInt("COUPON_BOOK_MAX_SYNC_GENERATOR", cfg.CouponBook.MaxSyncGenerator)
	cfg.CouponBook.BatchSize = getEnvInt("COUPON_BOOK_BATCH_SIZE", cfg.CouponBook.BatchSize)
	cfg.Log.Level = GetEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Tracing.JaegerEndpoint = GetEnv("JAEGER_ENDPOINT", cfg.Tracing.JaegerEndpoint)
	if v, ok := os.LookupEnv("TRACING_ENABLED"); ok {
		cfg.Tracing.Enabled, _ = strconv.ParseBool(v)
	}
}

// GetEnv returns the value of the environment variable key, or fallback when unset.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}
