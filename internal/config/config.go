// Package config provides application configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Database drivers understood by repository.Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config holds the complete application configuration.
type Config struct {
	Bot       BotConfig
	Database  DatabaseConfig
	Server    ServerConfig
	Sources   SourcesConfig
	Chart     ChartConfig
	Broadcast BroadcastConfig
	Redis     RedisConfig
	Worker    WorkerConfig
	Kafka     KafkaConfig
	Log       LogConfig
}

// BotConfig holds chat adapter settings.
type BotConfig struct {
	Token                string `mapstructure:"token"`
	AdminID              int64  `mapstructure:"admin_id"`
	PollTimeoutSec       int    `mapstructure:"poll_timeout_sec"`
	MaxConcurrentUpdates int    `mapstructure:"max_concurrent_updates"`
	HistoryDays          int    `mapstructure:"history_days"`
}

// DatabaseConfig holds the persistent store location. Path is used by the
// sqlite3 driver, the remaining fields by pgx.
type DatabaseConfig struct {
	Driver             string `mapstructure:"driver"`
	Path               string `mapstructure:"path"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	Name               string `mapstructure:"name"`
	SSLMode            string `mapstructure:"sslmode"`
	MaxOpenConns       int    `mapstructure:"max_open_conns"`
	MaxIdleConns       int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSec int    `mapstructure:"conn_max_lifetime_sec"`
	DSN                string
}

// ServerConfig holds ops HTTP server settings. The server has no auth and is
// meant for the internal network only.
type ServerConfig struct {
	Port          int  `mapstructure:"port"`
	ServeSwagger  bool `mapstructure:"serve_swagger"`
	ServeAsynqmon bool `mapstructure:"serve_asynqmon"`
	// ServeStats exposes the admin-only command usage counters at /stats.
	ServeStats bool `mapstructure:"serve_stats"`
}

// SourceConfig holds the endpoint and timeout of one rate source.
type SourceConfig struct {
	URL        string `mapstructure:"url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
}

// MinfinConfig extends SourceConfig with scraping settings. URL is a format
// string taking the lower-case currency code.
type MinfinConfig struct {
	URL        string `mapstructure:"url"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	Selector   string `mapstructure:"selector"`
	UserAgent  string `mapstructure:"user_agent"`
}

// SourcesConfig groups every external rate source.
type SourcesConfig struct {
	NBU        SourceConfig `mapstructure:"nbu"`
	PrivatBank SourceConfig `mapstructure:"privatbank"`
	Monobank   SourceConfig `mapstructure:"monobank"`
	Minfin     MinfinConfig `mapstructure:"minfin"`
}

// ChartConfig holds chart output and cleanup settings.
type ChartConfig struct {
	Dir       string `mapstructure:"dir"`
	Prefix    string `mapstructure:"prefix"`
	MaxAgeSec int    `mapstructure:"max_age_sec"`
	SweepCron string `mapstructure:"sweep_cron"`
}

// BroadcastConfig controls the scheduled subscriber notification.
type BroadcastConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Cron     string `mapstructure:"cron"`
	Currency string `mapstructure:"currency"`
	Source   string `mapstructure:"source"`
}

// RedisConfig holds the Redis instance backing the Asynq queue.
type RedisConfig struct {
	Addr string `mapstructure:"addr"`
}

// WorkerConfig holds background worker and task queue settings.
type WorkerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	MaxRetry    int `mapstructure:"max_retry"`
	TimeoutSec  int `mapstructure:"timeout_sec"`
}

// KafkaConfig holds rate event publishing settings. Empty Brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// LoadConfig reads configuration from config files, environment variables, and defaults.
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("No .env file found or error loading it: %v\n", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./internal/config")

	v.SetEnvPrefix("RATEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if no config file, we have defaults and env
		fmt.Printf("Config file not found: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	// Comma-separated lists arrive from the environment as a single string.
	if len(cfg.Kafka.Brokers) == 1 && strings.Contains(cfg.Kafka.Brokers[0], ",") {
		cfg.Kafka.Brokers = strings.Split(cfg.Kafka.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg.Database.DSN = cfg.Database.buildDSN()
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// AutomaticEnv only resolves keys viper already knows about.
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.admin_id", 0)
	v.SetDefault("bot.poll_timeout_sec", 30)
	v.SetDefault("bot.max_concurrent_updates", 8)
	v.SetDefault("bot.history_days", 7)

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "db/currency.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "ratebot")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime_sec", 300)

	v.SetDefault("server.port", 8081)
	v.SetDefault("server.serve_swagger", true)
	v.SetDefault("server.serve_asynqmon", true)
	v.SetDefault("server.serve_stats", false)

	v.SetDefault("sources.nbu.url", "https://bank.gov.ua/NBUStatService/v1/statdirectory/exchange?json")
	v.SetDefault("sources.nbu.timeout_sec", 5)
	v.SetDefault("sources.privatbank.url", "https://api.privatbank.ua/p24api/pubinfo?json&exchange&coursid=5")
	v.SetDefault("sources.privatbank.timeout_sec", 5)
	v.SetDefault("sources.monobank.url", "https://api.monobank.ua/bank/currency")
	v.SetDefault("sources.monobank.timeout_sec", 5)
	v.SetDefault("sources.minfin.url", "https://minfin.com.ua/ua/currency/%s/")
	v.SetDefault("sources.minfin.timeout_sec", 5)
	v.SetDefault("sources.minfin.selector", "div.sc-1x32wa2-9")
	v.SetDefault("sources.minfin.user_agent", "Mozilla/5.0")

	v.SetDefault("chart.dir", "charts")
	v.SetDefault("chart.prefix", "chart_")
	v.SetDefault("chart.max_age_sec", 3600)
	v.SetDefault("chart.sweep_cron", "@every 30m")

	v.SetDefault("broadcast.enabled", false)
	v.SetDefault("broadcast.cron", "0 9 * * *")
	v.SetDefault("broadcast.currency", "USD")
	v.SetDefault("broadcast.source", "NBU")

	v.SetDefault("redis.addr", "")

	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("worker.timeout_sec", 30)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "currency.rates")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func (d *DatabaseConfig) buildDSN() string {
	if d.Driver == DriverPostgres {
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
	}
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=1", d.Path)
}

// Validate checks that all required configuration fields are set and valid.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Bot.Token) == "" {
		errs = append(errs, fmt.Errorf("bot.token is required (set RATEBOT_BOT_TOKEN)"))
	}
	if c.Bot.PollTimeoutSec <= 0 {
		errs = append(errs, fmt.Errorf("bot.poll_timeout_sec must be positive, got %d", c.Bot.PollTimeoutSec))
	}
	if c.Bot.MaxConcurrentUpdates <= 0 {
		errs = append(errs, fmt.Errorf("bot.max_concurrent_updates must be positive, got %d", c.Bot.MaxConcurrentUpdates))
	}
	if c.Bot.HistoryDays <= 0 {
		errs = append(errs, fmt.Errorf("bot.history_days must be positive, got %d", c.Bot.HistoryDays))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, fmt.Errorf("database.path is required for the sqlite3 driver"))
		}
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, fmt.Errorf("database.host is required"))
		}
		if c.Database.Port <= 0 {
			errs = append(errs, fmt.Errorf("database.port must be positive, got %d", c.Database.Port))
		}
		if c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.name is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPostgres, c.Database.Driver))
	}

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be positive, got %d", c.Server.Port))
	}

	for name, timeout := range map[string]int{
		"nbu":        c.Sources.NBU.TimeoutSec,
		"privatbank": c.Sources.PrivatBank.TimeoutSec,
		"monobank":   c.Sources.Monobank.TimeoutSec,
		"minfin":     c.Sources.Minfin.TimeoutSec,
	} {
		if timeout <= 0 {
			errs = append(errs, fmt.Errorf("sources.%s.timeout_sec must be positive, got %d", name, timeout))
		}
	}
	if c.Sources.Minfin.Selector == "" {
		errs = append(errs, fmt.Errorf("sources.minfin.selector is required"))
	}

	if c.Chart.Dir == "" {
		errs = append(errs, fmt.Errorf("chart.dir is required"))
	}
	if c.Chart.MaxAgeSec <= 0 {
		errs = append(errs, fmt.Errorf("chart.max_age_sec must be positive, got %d", c.Chart.MaxAgeSec))
	}

	if c.Broadcast.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("redis.addr is required when broadcast is enabled (set RATEBOT_REDIS_ADDR)"))
		}
		if c.Broadcast.Cron == "" {
			errs = append(errs, fmt.Errorf("broadcast.cron is required when broadcast is enabled"))
		}
		if c.Worker.Concurrency <= 0 {
			errs = append(errs, fmt.Errorf("worker.concurrency must be positive, got %d", c.Worker.Concurrency))
		}
		if c.Worker.MaxRetry < 0 {
			errs = append(errs, fmt.Errorf("worker.max_retry must be non-negative, got %d", c.Worker.MaxRetry))
		}
		if c.Worker.TimeoutSec <= 0 {
			errs = append(errs, fmt.Errorf("worker.timeout_sec must be positive, got %d", c.Worker.TimeoutSec))
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, fmt.Errorf("kafka.topic is required when kafka.brokers is set"))
	}

	return errors.Join(errs...)
}
