package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"StockScreener/internal/symbols"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "configs/config.yaml"

type DataSourceConfig struct {
	Provider        string        `yaml:"provider" validate:"oneof=yahoo rest mock"`
	BaseURL         string        `yaml:"base_url" validate:"required_if=Provider rest,omitempty,url"`
	APIKey          string        `yaml:"api_key"`
	BatchSize       int           `yaml:"batch_size" validate:"min=1,max=100"`
	BatchPause      time.Duration `yaml:"batch_pause" validate:"min=0"`
	MetadataWorkers int           `yaml:"metadata_workers" validate:"min=1"`
	Timeout         time.Duration `yaml:"timeout" validate:"min=0"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl" validate:"gt=0"`
	PriceTTL time.Duration `yaml:"price_ttl" validate:"gt=0"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" validate:"required"`
}

type ScreeningConfig struct {
	MaxAge          time.Duration `yaml:"max_age" validate:"gt=0"`
	DefaultIndex    string        `yaml:"default_index"`
	DefaultPeriod   string        `yaml:"default_period"`
	DefaultInterval string        `yaml:"default_interval"`
	DefaultLimit    int           `yaml:"default_limit" validate:"min=0"`
	ResultTTL       time.Duration `yaml:"result_ttl" validate:"min=0"`
	RefreshWorkers  int           `yaml:"refresh_workers" validate:"min=1"`
	RefreshQueue    int           `yaml:"refresh_queue" validate:"min=1"`
}

type ScheduleConfig struct {
	PriceCron      string   `yaml:"price_cron" validate:"required"`
	PreloadCron    string   `yaml:"preload_cron" validate:"required"`
	PurgeCron      string   `yaml:"purge_cron" validate:"required"`
	PreloadIndexes []string `yaml:"preload_indexes"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"oneof=json text"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age" validate:"min=0"`
}

// Config holds all application configuration.
type Config struct {
	DataSource DataSourceConfig          `yaml:"data_source"`
	Proxy      string                    `yaml:"proxy"`
	Cache      CacheConfig               `yaml:"cache"`
	Database   DatabaseConfig            `yaml:"database"`
	Screening  ScreeningConfig           `yaml:"screening"`
	Indexes    map[string]symbols.Source `yaml:"indexes"`
	Schedule   ScheduleConfig            `yaml:"schedule"`
	Server     ServerConfig              `yaml:"server"`
	Logging    LoggingConfig             `yaml:"logging"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	strs := []struct {
		env string
		dst *string
	}{
		{"REDIS_URL", &c.Cache.RedisURL},
		{"DATABASE_DRIVER", &c.Database.Driver},
		{"DATABASE_DSN", &c.Database.DSN},
		{"DATA_SOURCE_PROVIDER", &c.DataSource.Provider},
		{"DATA_SOURCE_BASE_URL", &c.DataSource.BaseURL},
		{"DATA_SOURCE_API_KEY", &c.DataSource.APIKey},
		{"HTTPS_PROXY", &c.Proxy},
		{"SCREENER_ADDR", &c.Server.Addr},
		{"LOG_LEVEL", &c.Logging.Level},
		{"LOG_FORMAT", &c.Logging.Format},
		{"CRON_PRICE", &c.Schedule.PriceCron},
		{"CRON_PRELOAD", &c.Schedule.PreloadCron},
		{"CRON_PURGE", &c.Schedule.PurgeCron},
	}
	for _, s := range strs {
		if v := os.Getenv(s.env); v != "" {
			*s.dst = v
		}
	}
	if v := os.Getenv("DATA_SOURCE_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.DataSource.BatchSize = n
		}
	}
	if v := os.Getenv("PRELOAD_INDEXES"); v != "" {
		c.Schedule.PreloadIndexes = strings.Split(v, ",")
	}
}

func (c *Config) applyDefaults() {
	if c.DataSource.Provider == "" {
		c.DataSource.Provider = "yahoo"
	}
	if c.DataSource.BatchSize == 0 {
		c.DataSource.BatchSize = 20
	}
	if c.DataSource.BatchPause == 0 {
		c.DataSource.BatchPause = time.Second
	}
	if c.DataSource.MetadataWorkers == 0 {
		c.DataSource.MetadataWorkers = 4
	}
	if c.DataSource.Timeout == 0 {
		c.DataSource.Timeout = 30 * time.Second
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = 48 * time.Hour
	}
	if c.Cache.PriceTTL == 0 {
		c.Cache.PriceTTL = 15 * time.Minute
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "data/stock_screener.db"
	}
	if c.Screening.MaxAge == 0 {
		c.Screening.MaxAge = 7 * 24 * time.Hour
	}
	if c.Screening.DefaultIndex == "" {
		c.Screening.DefaultIndex = "sp500"
	}
	if c.Screening.DefaultPeriod == "" {
		c.Screening.DefaultPeriod = "1y"
	}
	if c.Screening.DefaultInterval == "" {
		c.Screening.DefaultInterval = "1d"
	}
	if c.Screening.DefaultLimit == 0 {
		c.Screening.DefaultLimit = 50
	}
	if c.Screening.ResultTTL == 0 {
		c.Screening.ResultTTL = 15 * time.Minute
	}
	if c.Screening.RefreshWorkers == 0 {
		c.Screening.RefreshWorkers = 4
	}
	if c.Screening.RefreshQueue == 0 {
		c.Screening.RefreshQueue = 256
	}
	if c.Schedule.PriceCron == "" {
		c.Schedule.PriceCron = "0 */5 * * * *"
	}
	if c.Schedule.PreloadCron == "" {
		c.Schedule.PreloadCron = "0 30 6 * * 1-5"
	}
	if c.Schedule.PurgeCron == "" {
		c.Schedule.PurgeCron = "0 0 * * * *"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// Validate checks field constraints and reports every violation.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
