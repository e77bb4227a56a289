// Package config loads monitor settings from YAML with environment
// overrides for credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"solana-trend-monitor/internal/domain"
)

// Source kinds.
const (
	SourceTelegram  = "telegram"
	SourceWebSocket = "websocket"
)

// Dedup backends.
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

type Config struct {
	Monitor  MonitorConfig  `yaml:"monitor"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Forward  ForwardConfig  `yaml:"forward"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Source   SourceConfig   `yaml:"source"`
	Telegram TelegramConfig `yaml:"telegram"`
	Storage  StorageConfig  `yaml:"storage"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
	Report   ReportConfig   `yaml:"report"`
}

type MonitorConfig struct {
	Origins      []string        `yaml:"origins"`
	Destinations []string        `yaml:"destinations"`
	SendDelay    time.Duration   `yaml:"send_delay"`
	Offsets      []time.Duration `yaml:"offsets"`
	Timezone     string          `yaml:"timezone"`
}

type DedupConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	Backend string        `yaml:"backend"`
	Redis   RedisConfig   `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type ForwardConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Bell        bool          `yaml:"bell"`
}

type OracleConfig struct {
	BaseURL           string        `yaml:"base_url"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
}

type TrackerConfig struct {
	MaxConcurrentRuns int           `yaml:"max_concurrent_runs"`
	DrainTimeout      time.Duration `yaml:"drain_timeout"`
}

type SourceConfig struct {
	Kind         string        `yaml:"kind"`
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	WebSocketURL string        `yaml:"websocket_url"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	BaseURL  string `yaml:"base_url"`
}

type StorageConfig struct {
	UseMemory   bool   `yaml:"use_memory"`
	PostgresDSN string `yaml:"postgres_dsn"`
	// PostgresMaxConns caps the pool; 0 keeps the pgx default.
	PostgresMaxConns int32  `yaml:"postgres_max_conns"`
	ClickhouseDSN    string `yaml:"clickhouse_dsn"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	Console    bool   `yaml:"console"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type ReportConfig struct {
	Days      int    `yaml:"days"`
	OutputDir string `yaml:"output_dir"`
}

// Default returns the configuration used for keys absent from the file.
func Default() Config {
	return Config{
		Monitor: MonitorConfig{
			SendDelay: 5 * time.Second,
			Offsets:   []time.Duration{10 * time.Minute, 30 * time.Minute, time.Hour},
			Timezone:  "Local",
		},
		Dedup: DedupConfig{
			TTL:     60 * time.Minute,
			Backend: DedupMemory,
			Redis:   RedisConfig{Addr: "localhost:6379", Prefix: "trend:sent"},
		},
		Forward: ForwardConfig{
			MaxAttempts: 3,
			RetryDelay:  5 * time.Second,
			Bell:        true,
		},
		Oracle: OracleConfig{
			BaseURL:           "https://api.dexscreener.com",
			Timeout:           10 * time.Second,
			RequestsPerMinute: 300,
			Burst:             5,
		},
		Tracker: TrackerConfig{
			MaxConcurrentRuns: 1000,
			DrainTimeout:      30 * time.Second,
		},
		Source: SourceConfig{
			Kind:        SourceTelegram,
			PollTimeout: 30 * time.Second,
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
		},
		Metrics: MetricsConfig{Addr: ":9090"},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			MaxAgeDays: 7,
		},
		Report: ReportConfig{
			Days:      7,
			OutputDir: "reports",
		},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path uses defaults only.
func Load(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return Config{}, err
	}

	if err := validateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadReport is Load for the report command. Only the sections it reads
// are validated, so no bot token or destinations are required.
func LoadReport(path string) (Config, error) {
	cfg, err := read(path)
	if err != nil {
		return Config{}, err
	}

	if err := validateShared(&cfg); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	if cfg.Storage.PostgresDSN == "" {
		return Config{}, fmt.Errorf("configuration validation failed: storage.postgres_dsn (or POSTGRES_DSN) is required")
	}
	return cfg, nil
}

// read decodes the file over the defaults and applies env overrides.
func read(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// LoadEnv loads a .env file from the working directory if one exists.
func LoadEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyEnv overrides credentials and endpoints from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.BotToken = strings.TrimSpace(v)
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		cfg.Storage.PostgresDSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickhouseDSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Dedup.Redis.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Dedup.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Dedup.Redis.DB = db
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.TrimSpace(v)
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = strings.TrimSpace(v)
	}
}

func validateConfig(cfg *Config) error {
	if len(cfg.Monitor.Destinations) == 0 {
		return fmt.Errorf("monitor.destinations must not be empty")
	}
	for i, d := range cfg.Monitor.Destinations {
		if strings.TrimSpace(d) == "" {
			return fmt.Errorf("monitor.destinations[%d] is empty", i)
		}
	}
	if cfg.Monitor.SendDelay < 0 {
		return fmt.Errorf("monitor.send_delay must not be negative")
	}
	if err := validateShared(cfg); err != nil {
		return err
	}

	if cfg.Dedup.TTL <= 0 {
		return fmt.Errorf("dedup.ttl must be greater than 0")
	}
	switch cfg.Dedup.Backend {
	case DedupMemory:
	case DedupRedis:
		if cfg.Dedup.Redis.Addr == "" {
			return fmt.Errorf("dedup.redis.addr is required when dedup.backend is redis")
		}
	default:
		return fmt.Errorf("dedup.backend '%s' is invalid (memory or redis)", cfg.Dedup.Backend)
	}

	if cfg.Forward.MaxAttempts <= 0 {
		return fmt.Errorf("forward.max_attempts must be greater than 0")
	}
	if cfg.Forward.RetryDelay < 0 {
		return fmt.Errorf("forward.retry_delay must not be negative")
	}

	if cfg.Oracle.BaseURL == "" {
		return fmt.Errorf("oracle.base_url is required")
	}
	if cfg.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be greater than 0")
	}
	if cfg.Oracle.RequestsPerMinute < 0 {
		return fmt.Errorf("oracle.requests_per_minute must not be negative")
	}

	if cfg.Tracker.DrainTimeout < 0 {
		return fmt.Errorf("tracker.drain_timeout must not be negative")
	}

	switch cfg.Source.Kind {
	case SourceTelegram:
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token (or TELEGRAM_BOT_TOKEN) is required")
		}
	case SourceWebSocket:
		if cfg.Source.WebSocketURL == "" {
			return fmt.Errorf("source.websocket_url is required when source.kind is websocket")
		}
		// Forwarding still goes through the Bot API.
		if cfg.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token (or TELEGRAM_BOT_TOKEN) is required")
		}
	default:
		return fmt.Errorf("source.kind '%s' is invalid (telegram or websocket)", cfg.Source.Kind)
	}

	if !cfg.Storage.UseMemory && cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn (or POSTGRES_DSN) is required unless storage.use_memory is set")
	}
	return nil
}

// validateShared checks the keys both commands depend on.
func validateShared(cfg *Config) error {
	if err := domain.ValidateOffsets(cfg.OffsetList()); err != nil {
		return fmt.Errorf("monitor.offsets: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return fmt.Errorf("monitor.timezone '%s' is invalid: %w", cfg.Monitor.Timezone, err)
	}
	if cfg.Report.Days <= 0 {
		return fmt.Errorf("report.days must be greater than 0")
	}
	if cfg.Storage.PostgresMaxConns < 0 {
		return fmt.Errorf("storage.postgres_max_conns must not be negative")
	}
	return nil
}

// OffsetList returns the sampling offsets with derived names.
func (c Config) OffsetList() []domain.Offset {
	out := make([]domain.Offset, len(c.Monitor.Offsets))
	for i, d := range c.Monitor.Offsets {
		out[i] = domain.Offset{Name: domain.OffsetName(d), After: d}
	}
	return out
}

// Location returns the time zone of detection dates and report ranges.
func (c Config) Location() (*time.Location, error) {
	switch c.Monitor.Timezone {
	case "", "Local":
		return time.Local, nil
	default:
		return time.LoadLocation(c.Monitor.Timezone)
	}
}
