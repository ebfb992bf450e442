// Package config собирает настройки сервиса из значений по умолчанию, файла config.yaml,
// переменных окружения (FICTION_*) и флагов командной строки.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type Config struct {
	Port             string `mapstructure:"port"`
	Storage          string `mapstructure:"storage"`
	DatabaseURL      string `mapstructure:"database_url"`
	SQLitePath       string `mapstructure:"sqlite_path"`
	JWTSecret        string `mapstructure:"jwt_secret"`
	RedisAddr        string `mapstructure:"redis_addr"`
	RedisPassword    string `mapstructure:"redis_password"`
	RedisDB          int    `mapstructure:"redis_db"`
	RatingsPerMinute int    `mapstructure:"ratings_per_minute"`
	LogLevel         string `mapstructure:"log_level"`
	LogFormat        string `mapstructure:"log_format"`
	Seed             bool   `mapstructure:"seed"`
}

// New создает viper с значениями по умолчанию и привязкой к окружению.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("FICTION")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// PORT и DATABASE_URL без префикса, как принято у хостингов
	_ = v.BindEnv("port", "FICTION_PORT", "PORT")
	_ = v.BindEnv("database_url", "FICTION_DATABASE_URL", "DATABASE_URL")

	v.SetDefault("port", "8080")
	v.SetDefault("storage", "")
	v.SetDefault("database_url", "")
	v.SetDefault("sqlite_path", "fiction.db")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("ratings_per_minute", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("seed", false)
	return v
}

// Load читает необязательный файл конфигурации и проверяет итоговые значения.
// Если хранилище не указано, выбирается postgres при заданном database_url, иначе in-memory.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Storage == "" {
		cfg.Storage = StorageInMemory
		if cfg.DatabaseURL != "" {
			cfg.Storage = StoragePostgres
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Storage {
	case StorageInMemory, StorageSQLite:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database_url must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q (want in-memory, postgres or sqlite)", c.Storage)
	}
	if c.Storage == StorageSQLite && c.SQLitePath == "" {
		return errors.New("sqlite_path must be set for sqlite storage")
	}
	if c.RatingsPerMinute < 0 {
		return errors.New("ratings_per_minute must not be negative")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log_format %q (want text or json)", c.LogFormat)
	}
	return nil
}

// SlogLevel разбирает log_level (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("unknown log_level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
