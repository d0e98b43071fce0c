// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Provider  ProviderConfig
	Discovery DiscoveryConfig
	Quota     QuotaConfig
	Worker    WorkerConfig
	Logging   LoggingConfig
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int
	APIKeys         []string
	ShutdownTimeout time.Duration
}

// DatabaseConfig contains database connection configuration.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DatabaseConfig struct {
	Host           string
	Name           string
	User           string
	Password       string
	SSLMode        string
	Port           int
	MaxConnections int
	MinConnections int
	MaxIdleTime    time.Duration
	MaxLifetime    time.Duration
}

// RedisConfig contains the connection settings shared by the feed cache and
// the refresh queue.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ProviderConfig contains the video search/statistics provider settings.
type ProviderConfig struct {
	APIKey         string
	MaxRetries     int
	InitialBackoff time.Duration
}

// DiscoveryConfig contains the tunables of the discovery flow.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type DiscoveryConfig struct {
	PageSize         int
	LookbackDays     int
	SnapshotInterval time.Duration
	SnapshotHistory  int
	CacheTTL         time.Duration
	CacheMaxAge      time.Duration
}

// QuotaConfig contains daily provider quota accounting settings.
type QuotaConfig struct {
	DailyLimit       int
	ThresholdPercent int
}

// WorkerConfig contains refresh worker settings.
type WorkerConfig struct {
	Concurrency int
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level string
	File  string
}

// Load loads configuration from file and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.shutdowntimeout", 30*time.Second)

	// Database
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "signalengine")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxconnections", 25)
	viper.SetDefault("database.minconnections", 5)
	viper.SetDefault("database.maxidletime", 30*time.Minute)
	viper.SetDefault("database.maxlifetime", 1*time.Hour)

	// Redis
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Provider
	viper.SetDefault("provider.apikey", "")
	viper.SetDefault("provider.maxretries", 3)
	viper.SetDefault("provider.initialbackoff", 500*time.Millisecond)

	// Discovery
	viper.SetDefault("discovery.pagesize", 50)
	viper.SetDefault("discovery.lookbackdays", 90)
	viper.SetDefault("discovery.snapshotinterval", 6*time.Hour)
	viper.SetDefault("discovery.snapshothistory", 10)
	viper.SetDefault("discovery.cachettl", 12*time.Hour)
	viper.SetDefault("discovery.cachemaxage", 24*time.Hour)

	// Quota
	viper.SetDefault("quota.dailylimit", 10000)
	viper.SetDefault("quota.thresholdpercent", 90)

	// Worker
	viper.SetDefault("worker.concurrency", 2)

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.file", "")
}
