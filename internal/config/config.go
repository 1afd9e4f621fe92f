package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
	Forecast    ForecastConfig `mapstructure:"forecast"`
	Retrain     RetrainConfig  `mapstructure:"retrain"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	DatabaseURL     string `mapstructure:"database_url"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime string `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// ForecastConfig tunes the trend forecaster.
type ForecastConfig struct {
	DefaultHorizonDays int     `mapstructure:"default_horizon_days"`
	LookbackDays       int     `mapstructure:"lookback_days"`
	SmoothingFactor    float64 `mapstructure:"smoothing_factor"`
}

// RetrainConfig tunes the scheduled retrain sweep.
type RetrainConfig struct {
	SweepInterval string `mapstructure:"sweep_interval"`
	MaxRows       int    `mapstructure:"max_rows"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	// Environment variables override file values: MFGSIGHT_DATABASE_HOST etc.
	viper.SetEnvPrefix("mfgsight")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Retrain.SweepInterval != "" {
		if _, err := time.ParseDuration(config.Retrain.SweepInterval); err != nil {
			return nil, fmt.Errorf("invalid retrain sweep interval: %w", err)
		}
	}
	if config.Forecast.SmoothingFactor <= 0 || config.Forecast.SmoothingFactor > 1 {
		return nil, fmt.Errorf("forecast smoothing factor must be in (0,1], got %v", config.Forecast.SmoothingFactor)
	}

	return &config, nil
}

// SweepIntervalDuration parses the configured sweep interval; Load already
// validated the format.
func (c *Config) SweepIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Retrain.SweepInterval)
	if err != nil {
		return time.Hour
	}
	return d
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "mfgsight_ai")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "300s")
	viper.SetDefault("database.conn_max_idle_time", "60s")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", "")

	viper.SetDefault("forecast.default_horizon_days", 7)
	viper.SetDefault("forecast.lookback_days", 60)
	viper.SetDefault("forecast.smoothing_factor", 0.3)

	viper.SetDefault("retrain.sweep_interval", "1h")
	viper.SetDefault("retrain.max_rows", 10000)
}
