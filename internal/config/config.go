package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Password    string        `yaml:"password"`
	DB          int           `yaml:"db"`
	PoolSize    int           `yaml:"pool_size"`
	ArchiveSize int64         `yaml:"archive_size"`
	ArchiveTTL  time.Duration `yaml:"archive_ttl"`
}

type AnalyticsConfig struct {
	Timezone              string        `yaml:"timezone"`
	FetchTimeout          time.Duration `yaml:"fetch_timeout"`
	DefaultRange          time.Duration `yaml:"default_range"`
	MaxRange              time.Duration `yaml:"max_range"`
	TopAlerts             int           `yaml:"top_alerts"`
	AnomalyCap            int           `yaml:"anomaly_cap"`
	AnomalyFactor         float64       `yaml:"anomaly_factor"`
	UptimeThreshold       float64       `yaml:"uptime_threshold"`
	StorageThreshold      float64       `yaml:"storage_threshold"`
	AverageResponseTime   float64       `yaml:"average_response_time"`
	AverageLatency        float64       `yaml:"average_latency"`
	DefaultStorageUsedGB  float64       `yaml:"default_storage_used_gb"`
	DefaultStorageTotalGB float64       `yaml:"default_storage_total_gb"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "analytics",
			Password: "analytics",
			Name:     "security",
			SSLMode:  "disable",
			MaxConns: 25,
			MaxIdle:  10,
		},
		Redis: RedisConfig{
			Addr:        "localhost:6379",
			PoolSize:    100,
			ArchiveSize: 50,
			ArchiveTTL:  24 * time.Hour,
		},
		Analytics: AnalyticsConfig{
			Timezone:              "UTC",
			FetchTimeout:          10 * time.Second,
			DefaultRange:          30 * 24 * time.Hour,
			MaxRange:              366 * 24 * time.Hour,
			TopAlerts:             5,
			AnomalyCap:            5,
			AnomalyFactor:         3,
			UptimeThreshold:       95,
			StorageThreshold:      0.8,
			AverageResponseTime:   2.5,
			AverageLatency:        150,
			DefaultStorageUsedGB:  750,
			DefaultStorageTotalGB: 1000,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load starts from Default, applies the YAML file at path (if path is not
// empty) and then environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Analytics.Timezone); err != nil {
		return fmt.Errorf("invalid analytics.timezone %q: %w", c.Analytics.Timezone, err)
	}
	if c.Analytics.FetchTimeout <= 0 {
		return fmt.Errorf("analytics.fetch_timeout must be positive")
	}
	if c.Analytics.DefaultRange <= 0 {
		return fmt.Errorf("analytics.default_range must be positive")
	}
	if c.Analytics.MaxRange <= 0 {
		return fmt.Errorf("analytics.max_range must be positive")
	}
	if c.Analytics.DefaultRange > c.Analytics.MaxRange {
		return fmt.Errorf("analytics.default_range must not exceed analytics.max_range")
	}
	if c.Analytics.TopAlerts <= 0 {
		return fmt.Errorf("analytics.top_alerts must be positive")
	}
	if c.Analytics.AnomalyCap <= 0 {
		return fmt.Errorf("analytics.anomaly_cap must be positive")
	}
	if c.Analytics.AnomalyFactor <= 0 {
		return fmt.Errorf("analytics.anomaly_factor must be positive")
	}
	if c.Analytics.UptimeThreshold <= 0 || c.Analytics.UptimeThreshold > 100 {
		return fmt.Errorf("analytics.uptime_threshold must be in (0, 100]")
	}
	if c.Analytics.StorageThreshold <= 0 || c.Analytics.StorageThreshold > 1 {
		return fmt.Errorf("analytics.storage_threshold must be in (0, 1]")
	}
	return nil
}

func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Analytics.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c *Config) applyEnv() error {
	setString(&c.Server.Addr, "SERVER_ADDR")
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}

	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	setString(&c.Analytics.Timezone, "ANALYTICS_TIMEZONE")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setDuration(&c.Analytics.FetchTimeout, "ANALYTICS_FETCH_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Analytics.MaxRange, "ANALYTICS_MAX_RANGE"); err != nil {
		return err
	}
	if err := setFloat(&c.Analytics.DefaultStorageUsedGB, "STORAGE_USED_GB"); err != nil {
		return err
	}
	return setFloat(&c.Analytics.DefaultStorageTotalGB, "STORAGE_TOTAL_GB")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = f
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
