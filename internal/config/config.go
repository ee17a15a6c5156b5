package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Log       LogConfig
	Storage   StorageConfig
	DB        DBConfig
	Redis     RedisConfig
	Registry  RegistryConfig
	ShortCode ShortCodeConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Metrics   MetricsConfig
}

type AppConfig struct {
	Port    string
	BaseURL string // Базовый адрес для shortUrl
}

type LogConfig struct {
	Level       string
	Encoding    string
	Development bool
}

// StorageConfig выбор бэкенда хранения и имя записи с коллекцией
type StorageConfig struct {
	Driver     string // file | memory | redis | postgres | sqlite
	Key        string
	Dir        string
	SQLitePath string
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RegistryConfig struct {
	PruneInterval   time.Duration
	MaxCodeAttempts int
	ClickMetadata   string // mock | request
}

type ShortCodeConfig struct {
	Generator string // nanoid | sqids
	Length    int
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

type MetricsConfig struct {
	Enabled bool
}

// Load читает конфигурацию из .env (если есть) и переменных окружения
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("APP_BASE_URL"), "/")

	cfg.Log.Level = v.GetString("LOG_LEVEL")
	cfg.Log.Encoding = v.GetString("LOG_ENCODING")
	cfg.Log.Development = v.GetBool("LOG_DEVELOPMENT")

	cfg.Storage.Driver = strings.ToLower(v.GetString("STORAGE_DRIVER"))
	cfg.Storage.Key = v.GetString("STORAGE_KEY")
	cfg.Storage.Dir = v.GetString("STORAGE_DIR")
	cfg.Storage.SQLitePath = v.GetString("SQLITE_PATH")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Registry.PruneInterval = v.GetDuration("PRUNE_INTERVAL")
	cfg.Registry.MaxCodeAttempts = v.GetInt("SHORTCODE_MAX_ATTEMPTS")
	cfg.Registry.ClickMetadata = strings.ToLower(v.GetString("CLICK_METADATA"))

	cfg.ShortCode.Generator = strings.ToLower(v.GetString("SHORTCODE_GENERATOR"))
	cfg.ShortCode.Length = v.GetInt("SHORTCODE_LENGTH")

	// Auth config - parse API keys from comma-separated string
	// Format: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")

	cfg.Metrics.Enabled = v.GetBool("METRICS_ENABLED")

	if cfg.Registry.ClickMetadata != "mock" && cfg.Registry.ClickMetadata != "request" {
		return nil, fmt.Errorf("CLICK_METADATA must be mock or request, got %q", cfg.Registry.ClickMetadata)
	}
	if cfg.Registry.PruneInterval <= 0 {
		return nil, fmt.Errorf("PRUNE_INTERVAL must be positive, got %s", cfg.Registry.PruneInterval)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("APP_BASE_URL", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_ENCODING", "json")
	v.SetDefault("STORAGE_DRIVER", "file")
	v.SetDefault("STORAGE_KEY", "shortenedUrls")
	v.SetDefault("STORAGE_DIR", "./data")
	v.SetDefault("SQLITE_PATH", "./data/shortlinks.db")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("PRUNE_INTERVAL", time.Minute)
	v.SetDefault("SHORTCODE_GENERATOR", "nanoid")
	v.SetDefault("SHORTCODE_LENGTH", 6)
	v.SetDefault("SHORTCODE_MAX_ATTEMPTS", 10)
	v.SetDefault("CLICK_METADATA", "mock")
	v.SetDefault("RATE_LIMIT_RPS", 10)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("METRICS_ENABLED", true)
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
