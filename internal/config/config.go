// Package config loads and validates the service configuration from
// environment variables layered over an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"receiptexport/pkg/contracts/domain"
)

// Config represents the complete application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server" envconfig:"SERVER"`
	Security     SecurityConfig     `yaml:"security" envconfig:"SECURITY"`
	Logging      LoggingConfig      `yaml:"logging" envconfig:"LOGGING"`
	Export       ExportConfig       `yaml:"export" envconfig:"EXPORT"`
	ImageService ImageServiceConfig `yaml:"image_service" envconfig:"IMAGE_SERVICE"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains CORS and rate limiting configuration.
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration.
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL"`
	Format   string `yaml:"format" envconfig:"FORMAT"`
	Output   string `yaml:"output" envconfig:"OUTPUT"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// ExportConfig controls spreadsheet generation and the temporary artifact
// directory. Dir is created lazily on first export.
type ExportConfig struct {
	Dir            string `yaml:"dir" envconfig:"DIR"`
	MaxRecords     int    `yaml:"max_records" envconfig:"MAX_RECORDS"`
	FetchWorkers   int    `yaml:"fetch_workers" envconfig:"FETCH_WORKERS"`
	SheetName      string `yaml:"sheet_name" envconfig:"SHEET_NAME"`
	FilenamePrefix string `yaml:"filename_prefix" envconfig:"FILENAME_PREFIX"`
}

// ImageServiceConfig describes the upstream image hosting service consumed
// as "fetch bytes by id".
type ImageServiceConfig struct {
	BaseURL      string        `yaml:"base_url" envconfig:"BASE_URL"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables take precedence.
func Load() (*Config, error) {
	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		*cfg = *fileCfg
	}

	if err := envconfig.Process("RECEIPT", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getConfigFilePath returns the path to the config file, if one exists.
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// validate validates the configuration.
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Export.MaxRecords <= 0 || c.Export.MaxRecords > domain.MaxExportRecords {
		return fmt.Errorf("export max records must be in (0, %d]: %d", domain.MaxExportRecords, c.Export.MaxRecords)
	}

	if c.Export.FetchWorkers <= 0 {
		return fmt.Errorf("export fetch workers must be positive")
	}

	if c.Export.Dir == "" {
		return fmt.Errorf("export dir must not be empty")
	}

	if c.ImageService.BaseURL == "" {
		return fmt.Errorf("image service base URL must not be empty")
	}

	if c.ImageService.FetchTimeout <= 0 {
		return fmt.Errorf("image service fetch timeout must be positive")
	}

	return nil
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  120 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     10,
				Burst:   20,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Export: ExportConfig{
			Dir:            "exports",
			MaxRecords:     domain.MaxExportRecords,
			FetchWorkers:   4,
			SheetName:      "Receipts",
			FilenamePrefix: "receipt-export",
		},
		ImageService: ImageServiceConfig{
			BaseURL:      "http://localhost:9090",
			FetchTimeout: 10 * time.Second,
		},
	}
}
