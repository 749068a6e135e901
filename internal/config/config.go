package config

import (
	"errors"
	"fmt"
	"os"

	"kassa/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backend    BackendConfig    `yaml:"backend"`
	Store      StoreConfig      `yaml:"store"`
	Loyalty    LoyaltyConfig    `yaml:"loyalty"`
	Stock      StockConfig      `yaml:"stock"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Refresh    RefreshConfig    `yaml:"refresh"`
	Exports    ExportsConfig    `yaml:"exports"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackendConfig struct {
	BaseURL        string  `yaml:"base_url"`
	APIKey         string  `yaml:"api_key"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	RPS            float64 `yaml:"rps"`
	Burst          int     `yaml:"burst"`
	ProbeInterval  int     `yaml:"probe_interval_seconds"`
}

type StoreConfig struct {
	ID         int64 `yaml:"id"`
	EmployeeID int64 `yaml:"employee_id"`
}

type LoyaltyConfig struct {
	Enabled           bool    `yaml:"enabled"`
	PointsPerCurrency float64 `yaml:"points_per_currency"`
}

type StockConfig struct {
	LowStockThreshold int `yaml:"low_stock_threshold"`
}

type AlertsConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Recipient  string `yaml:"recipient"`
}

type RefreshConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
	MaxAttempts     int `yaml:"max_attempts"`
	InitialDelaySec int `yaml:"initial_delay_seconds"`
}

type ExportsConfig struct {
	Path string `yaml:"path"`
}

type MonitoringConfig struct {
	HTTPPort int `yaml:"http_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен, но если есть — подхватываем
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend base_url is required")
	}

	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Store.ID == 0 {
		return errors.New("store id is required")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Backend.TimeoutSeconds == 0 {
		c.Backend.TimeoutSeconds = 15
	}
	if c.Backend.RPS == 0 {
		c.Backend.RPS = 10
	}
	if c.Backend.Burst == 0 {
		c.Backend.Burst = 20
	}
	if c.Backend.ProbeInterval == 0 {
		c.Backend.ProbeInterval = models.DefaultProbeIntervalSeconds
	}
	if c.Stock.LowStockThreshold == 0 {
		c.Stock.LowStockThreshold = models.DefaultLowStockThreshold
	}
	if c.Loyalty.PointsPerCurrency == 0 {
		c.Loyalty.PointsPerCurrency = models.DefaultPointsPerCurrency
	}
	if c.Refresh.IntervalSeconds == 0 {
		c.Refresh.IntervalSeconds = models.DefaultRefreshIntervalSeconds
	}
	if c.Refresh.MaxAttempts == 0 {
		c.Refresh.MaxAttempts = models.RefreshMaxAttempts
	}
	if c.Refresh.InitialDelaySec == 0 {
		c.Refresh.InitialDelaySec = models.RefreshInitialDelaySeconds
	}
	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
	if c.Monitoring.HTTPPort == 0 {
		c.Monitoring.HTTPPort = 8080
	}
}
