package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

type ForecastConfig struct {
	// MinMonths is the number of monthly buckets required before a
	// best-month prediction is attempted.
	MinMonths       int           `yaml:"min_months"`
	HorizonMonths   int           `yaml:"horizon_months"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// Timezone decides calendar day boundaries for staleness and bucketing.
	Timezone string `yaml:"timezone"`
}

type PaginationConfig struct {
	PerPage          int `yaml:"per_page"`
	ChartDaysPerPage int `yaml:"chart_days_per_page"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"` // "mysql" or "memory"
}

type HTTPConfig struct {
	Addr        string  `yaml:"addr"`
	IngestRate  float64 `yaml:"ingest_rate"` // readings per second accepted over HTTP
	IngestBurst int     `yaml:"ingest_burst"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Forecast   ForecastConfig   `yaml:"forecast"`
	Pagination PaginationConfig `yaml:"pagination"`
	Storage    StorageConfig    `yaml:"storage"`
	Redis      RedisConfig      `yaml:"redis"`
	HTTP       HTTPConfig       `yaml:"http"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		Forecast: ForecastConfig{
			MinMonths:       6,
			HorizonMonths:   12,
			RefreshInterval: 24 * time.Hour,
			Timezone:        "Local",
		},
		Pagination: PaginationConfig{
			PerPage:          10,
			ChartDaysPerPage: 7,
		},
		Storage: StorageConfig{Driver: "mysql"},
		Redis:   defaultRedisConfig(),
		HTTP: HTTPConfig{
			Addr:        ":8080",
			IngestRate:  20,
			IngestBurst: 40,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

func Load(configPath string) (*Config, error) {
	var err error
	once.Do(func() {
		instance = Default()

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file %s: %w", configPath, readErr)
			return
		}

		if parseErr := yaml.Unmarshal(data, instance); parseErr != nil {
			err = fmt.Errorf("failed to parse config: %w", parseErr)
			return
		}

		instance.Redis = instance.Redis.WithEnv()

		if validateErr := instance.validate(); validateErr != nil {
			err = validateErr
			return
		}
	})

	return instance, err
}

func Get() *Config {
	if instance == nil {
		panic("config not loaded - call config.Load() first")
	}
	return instance
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Forecast.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Forecast.Timezone)
	}
}

func (c *Config) validate() error {
	if c.Forecast.MinMonths < 1 {
		return fmt.Errorf("forecast.min_months must be at least 1, got %d", c.Forecast.MinMonths)
	}
	if c.Forecast.HorizonMonths < 1 {
		return fmt.Errorf("forecast.horizon_months must be at least 1, got %d", c.Forecast.HorizonMonths)
	}
	if c.Forecast.RefreshInterval <= 0 {
		return fmt.Errorf("forecast.refresh_interval must be positive")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("forecast.timezone: %w", err)
	}
	if c.Pagination.PerPage <= 0 || c.Pagination.ChartDaysPerPage <= 0 {
		return fmt.Errorf("pagination sizes must be positive")
	}
	switch c.Storage.Driver {
	case "mysql", "memory":
	default:
		return fmt.Errorf("storage.driver must be mysql or memory, got %q", c.Storage.Driver)
	}
	return nil
}
