package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL    MySQLConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Log      LogConfig
	Migrate  bool
	HTTPAddr string
	Mass     MassConfig
	Executor ExecutorConfig
	Estimate EstimateConfig
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT configuration. An empty secret disables operator auth.
type JWTConfig struct {
	Secret        string
	ExpireMinutes int
	Issuer        string
}

// LogConfig holds logrus settings
type LogConfig struct {
	Level  string
	Format string // text or json
}

// MassConfig holds campaign defaults applied when a task omits a field
type MassConfig struct {
	DefaultBatchSize   int
	DefaultQPSLimit    int
	DefaultConcurrency int
	DefaultTargetLimit int
	InsertChunkSize    int
}

// ExecutorConfig holds the wave executor configuration
type ExecutorConfig struct {
	Enabled     bool
	IntervalSec int
}

// EstimateConfig holds the coverage estimate cache configuration
type EstimateConfig struct {
	CacheTTLSec int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Enabled:  getEnv("REDIS_ENABLED", "1") == "1",
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        os.Getenv("JWT_SECRET"),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", 1440),
			Issuer:        getEnv("JWT_ISSUER", "wecom_ops"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		Mass: MassConfig{
			DefaultBatchSize:   getEnvInt("DISPATCH_BATCH_SIZE", 300),
			DefaultQPSLimit:    getEnvInt("DISPATCH_QPS_LIMIT", 100),
			DefaultConcurrency: getEnvInt("GLOBAL_CONCURRENCY", 50),
			DefaultTargetLimit: getEnvInt("MASS_TARGET_LIMIT", 50000),
			InsertChunkSize:    getEnvInt("MASS_INSERT_CHUNK", 1000),
		},
		Executor: ExecutorConfig{
			Enabled:     getEnv("MASS_EXECUTOR_ENABLED", "0") == "1",
			IntervalSec: getEnvInt("MASS_EXECUTOR_INTERVAL_SEC", 5),
		},
		Estimate: EstimateConfig{
			CacheTTLSec: getEnvInt("ESTIMATE_CACHE_TTL_SEC", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.Mass.DefaultBatchSize <= 0 {
		return fmt.Errorf("DISPATCH_BATCH_SIZE must be positive")
	}
	if c.Mass.InsertChunkSize <= 0 {
		return fmt.Errorf("MASS_INSERT_CHUNK must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Enabled:  getValueBool("REDIS_ENABLED", "redis", "enabled", true),
			Addr:     getValue("REDIS_ADDR", "redis", "addr", "localhost:6379"),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		JWT: JWTConfig{
			Secret:        getValue("JWT_SECRET", "jwt", "secret", ""),
			ExpireMinutes: getEnvInt("JWT_EXPIRE_MINUTES", getValueInt("", "jwt", "expire_seconds", 86400)/60), // env 为分钟, ini 为秒
			Issuer:        getValue("JWT_ISSUER", "jwt", "issuer", "wecom_ops"),
		},
		Log: LogConfig{
			Level:  getValue("LOG_LEVEL", "log", "level", "info"),
			Format: getValue("LOG_FORMAT", "log", "format", "text"),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
		Mass: MassConfig{
			DefaultBatchSize:   getValueInt("DISPATCH_BATCH_SIZE", "mass", "batch_size", 300),
			DefaultQPSLimit:    getValueInt("DISPATCH_QPS_LIMIT", "mass", "qps_limit", 100),
			DefaultConcurrency: getValueInt("GLOBAL_CONCURRENCY", "mass", "concurrency_limit", 50),
			DefaultTargetLimit: getValueInt("MASS_TARGET_LIMIT", "mass", "target_limit", 50000),
			InsertChunkSize:    getValueInt("MASS_INSERT_CHUNK", "mass", "insert_chunk", 1000),
		},
		Executor: ExecutorConfig{
			Enabled:     getValueBool("MASS_EXECUTOR_ENABLED", "executor", "enabled", false),
			IntervalSec: getValueInt("MASS_EXECUTOR_INTERVAL_SEC", "executor", "interval_sec", 5),
		},
		Estimate: EstimateConfig{
			CacheTTLSec: getValueInt("ESTIMATE_CACHE_TTL_SEC", "estimate", "cache_ttl_sec", 60),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
