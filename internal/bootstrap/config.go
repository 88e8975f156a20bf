package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"ephemeral-chat/internal/infra/setup"
)

// Config 存储应用配置。
// 加载顺序: 默认值 -> CONFIG_PATH 指向的 YAML 文件 -> 环境变量 (.env 会先被加载到环境变量中)。
type Config struct {
	// DBDriver 为空表示不启用持久化存储，只使用 Redis
	DBDriver   string `yaml:"db_driver"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBHost     string `yaml:"db_host"`
	DBPort     string `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	SQLitePath string `yaml:"sqlite_path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	KeyPrefix     string `yaml:"redis_key_prefix"`

	ServerPort        string `yaml:"server_port"`
	LogLevel          string `yaml:"log_level"`
	AppEnv            string `yaml:"app_env"` // development / production
	CORSAllowedOrigin string `yaml:"cors_allowed_origin"`

	CronSecret    string `yaml:"cron_secret"`
	SweepSchedule string `yaml:"sweep_schedule"`

	AsyncArchive           bool `yaml:"async_archive"`
	StrictJoin             bool `yaml:"strict_join"`
	MaxExtendMinutes       int  `yaml:"max_extend_minutes"`
	MaxRoomLifetimeMinutes int  `yaml:"max_room_lifetime_minutes"`
	WorkerConcurrency      int  `yaml:"worker_concurrency"`

	RateLimitMax           int `yaml:"rate_limit_max"`
	RateLimitWindowSeconds int `yaml:"rate_limit_window_seconds"`

	KafkaBrokers string `yaml:"kafka_brokers"` // 逗号分隔，为空时不启用
	KafkaTopic   string `yaml:"kafka_topic"`

	OTLPEndpoint     string  `yaml:"otlp_endpoint"`
	TraceSampleRatio float64 `yaml:"trace_sample_ratio"`
}

// RateLimitWindow 返回限流窗口
func (c *Config) RateLimitWindow() time.Duration {
	return time.Duration(c.RateLimitWindowSeconds) * time.Second
}

// DBOptions 转换为 setup.DBOptions
func (c *Config) DBOptions() setup.DBOptions {
	return setup.DBOptions{
		Driver:     c.DBDriver,
		User:       c.DBUser,
		Password:   c.DBPassword,
		Host:       c.DBHost,
		Port:       c.DBPort,
		Name:       c.DBName,
		SQLitePath: c.SQLitePath,
	}
}

func defaultConfig() *Config {
	return &Config{
		KeyPrefix:              "chat:",
		ServerPort:             "8080",
		LogLevel:               "info",
		AppEnv:                 "development",
		CORSAllowedOrigin:      "http://localhost:3000",
		SweepSchedule:          "@every 1h",
		MaxExtendMinutes:       1440,
		WorkerConcurrency:      10,
		RateLimitMax:           100,
		RateLimitWindowSeconds: 1,
		KafkaTopic:             "chat-messages",
		TraceSampleRatio:       1,
	}
}

// LoadConfig 加载并校验配置
func LoadConfig() (*Config, error) {
	// 忽略错误，允许只使用环境变量
	_ = godotenv.Load()

	cfg := defaultConfig()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envString(&cfg.DBDriver, "DB_DRIVER")
	envString(&cfg.DBUser, "DB_USER")
	envString(&cfg.DBPassword, "DB_PASSWORD")
	envString(&cfg.DBHost, "DB_HOST")
	envString(&cfg.DBPort, "DB_PORT")
	envString(&cfg.DBName, "DB_NAME")
	envString(&cfg.SQLitePath, "SQLITE_PATH")
	envString(&cfg.RedisAddr, "REDIS_ADDR")
	envString(&cfg.RedisPassword, "REDIS_PASSWORD")
	envString(&cfg.KeyPrefix, "REDIS_KEY_PREFIX")
	envString(&cfg.ServerPort, "SERVER_PORT")
	envString(&cfg.LogLevel, "LOG_LEVEL")
	envString(&cfg.AppEnv, "APP_ENV")
	envString(&cfg.CORSAllowedOrigin, "CORS_ALLOWED_ORIGIN")
	envString(&cfg.CronSecret, "CRON_SECRET")
	envString(&cfg.SweepSchedule, "SWEEP_SCHEDULE")
	envString(&cfg.KafkaBrokers, "KAFKA_BROKERS")
	envString(&cfg.KafkaTopic, "KAFKA_TOPIC")
	envString(&cfg.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	ints := []struct {
		dst *int
		key string
	}{
		{&cfg.RedisDB, "REDIS_DB"},
		{&cfg.MaxExtendMinutes, "MAX_EXTEND_MINUTES"},
		{&cfg.MaxRoomLifetimeMinutes, "MAX_ROOM_LIFETIME_MINUTES"},
		{&cfg.WorkerConcurrency, "WORKER_CONCURRENCY"},
		{&cfg.RateLimitMax, "RATE_LIMIT_MAX"},
		{&cfg.RateLimitWindowSeconds, "RATE_LIMIT_WINDOW_SECONDS"},
	}
	for _, item := range ints {
		if err := envInt(item.dst, item.key); err != nil {
			return err
		}
	}
	if err := envBool(&cfg.AsyncArchive, "ASYNC_ARCHIVE"); err != nil {
		return err
	}
	if err := envBool(&cfg.StrictJoin, "STRICT_JOIN"); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("OTEL_TRACE_SAMPLE_RATIO"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("environment variable OTEL_TRACE_SAMPLE_RATIO must be a number: %w", err)
		}
		cfg.TraceSampleRatio = f
	}
	return nil
}

func (c *Config) validate() error {
	c.DBDriver = strings.ToLower(strings.TrimSpace(c.DBDriver))
	switch c.DBDriver {
	case "":
	case setup.DriverSQLite:
	case setup.DriverMySQL, setup.DriverPostgres:
		if c.DBHost == "" || c.DBName == "" {
			return fmt.Errorf("DB_HOST and DB_NAME must be set for driver %s", c.DBDriver)
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	if c.RedisAddr == "" {
		return fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if c.AppEnv == "production" && c.CronSecret == "" {
		return fmt.Errorf("environment variable CRON_SECRET must be set in production")
	}
	if c.MaxExtendMinutes < 0 || c.MaxRoomLifetimeMinutes < 0 {
		return fmt.Errorf("extend limits cannot be negative")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindowSeconds <= 0 {
		return fmt.Errorf("rate limit max and window must be positive")
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "chat:"
	}
	if c.SweepSchedule == "" {
		c.SweepSchedule = "@every 1h"
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", c.LogLevel)
		c.LogLevel = "info"
	}
	return nil
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("environment variable %s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("environment variable %s must be a boolean: %w", key, err)
	}
	*dst = b
	return nil
}
