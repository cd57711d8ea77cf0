// Package config defines the top-level configuration for the persona
// benchmark and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dwhitley/personabench/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PERSONABENCH_* environment
// variables.
type Config struct {
	Run      RunConfig      `toml:"run"`
	LLM      LLMConfig      `toml:"llm"`
	Slicer   SlicerConfig   `toml:"slicer"`
	Log      LogStoreConfig `toml:"decision_log"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RunConfig holds the benchmark run parameters.
type RunConfig struct {
	MarketsPath     string   `toml:"markets_path"`
	PersonasPath    string   `toml:"personas_path"`
	ExportDir       string   `toml:"export_dir"`
	StartingBalance float64  `toml:"starting_balance"`
	Windows         []string `toml:"windows"`
	ParallelMarkets int      `toml:"parallel_markets"`
	// RunID pins the run identifier; a fresh UUID is generated when empty.
	RunID string `toml:"run_id"`
	// ReplayRunID selects which logged run to settle in replay mode. Empty
	// means the most recent run in the log.
	ReplayRunID string `toml:"replay_run_id"`
}

// LLMConfig holds the decision-producer transport parameters.
type LLMConfig struct {
	APIKey            string   `toml:"api_key"`
	BaseURL           string   `toml:"base_url"`
	Model             string   `toml:"model"`
	Temperature       float64  `toml:"temperature"`
	MaxTokens         int      `toml:"max_tokens"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
	MaxRetries        int      `toml:"max_retries"`
	RequestTimeout    duration `toml:"request_timeout"`
}

// SlicerConfig holds window matching parameters. Tolerances are configuration
// rather than constants: market liquidity varies and a single tolerance does
// not fit all markets.
type SlicerConfig struct {
	BandLow    int                 `toml:"band_low"`
	BandHigh   int                 `toml:"band_high"`
	Tolerances map[string]duration `toml:"tolerances"`
}

// LogStoreConfig holds the durable decision log parameters.
type LogStoreConfig struct {
	Path string `toml:"path"`
}

// PostgresConfig holds the optional shared result store parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds the optional completion cache parameters.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	CacheTTL   duration `toml:"cache_ttl"`
}

// S3Config holds the optional artifact archival parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds the end-of-run notification channels. All channels are
// optional; an unset channel is simply not used.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
}

// duration wraps time.Duration for TOML decoding.
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration that a TOML file is merged
// over.
func Defaults() Config {
	return Config{
		Run: RunConfig{
			MarketsPath:     "data/markets.json",
			PersonasPath:    "personas.yaml",
			ExportDir:       "out",
			StartingBalance: 100.0,
			Windows:         []string{"7d", "3d", "1d", "6h", "1h"},
			ParallelMarkets: 1,
		},
		LLM: LLMConfig{
			Model:             "gpt-4o",
			Temperature:       0.7,
			MaxTokens:         512,
			RequestsPerMinute: 60,
			MaxRetries:        2,
			RequestTimeout:    duration{60 * time.Second},
		},
		Slicer: SlicerConfig{
			BandLow:  5,
			BandHigh: 95,
		},
		Log: LogStoreConfig{
			Path: "decisions.db",
		},
		Postgres: PostgresConfig{
			Port:         5432,
			SSLMode:      "disable",
			PoolMaxConns: 4,
			PoolMinConns: 0,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 8,
		},
		S3: S3Config{
			Region: "us-east-1",
			UseSSL: true,
		},
		Mode:     "simulate",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"simulate": true,
	"screen":   true,
	"replay":   true,
	"export":   true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// WindowLabels converts the configured window names into labels, failing on
// unknown names.
func (c *Config) WindowLabels() ([]domain.WindowLabel, error) {
	labels := make([]domain.WindowLabel, 0, len(c.Run.Windows))
	for _, w := range c.Run.Windows {
		label := domain.WindowLabel(w)
		if !label.Valid() {
			return nil, fmt.Errorf("config: unknown window %q", w)
		}
		labels = append(labels, label)
	}
	return labels, nil
}

// Tolerances converts the configured per-window tolerances, failing on
// unknown window names.
func (c *Config) Tolerances() (map[domain.WindowLabel]time.Duration, error) {
	out := make(map[domain.WindowLabel]time.Duration, len(c.Slicer.Tolerances))
	for w, d := range c.Slicer.Tolerances {
		label := domain.WindowLabel(w)
		if !label.Valid() {
			return nil, fmt.Errorf("config: slicer tolerance for unknown window %q", w)
		}
		out[label] = d.Duration
	}
	return out, nil
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	mode := strings.ToLower(c.Mode)
	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: simulate, screen, replay, export)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Run
	if c.Run.MarketsPath == "" {
		errs = append(errs, "run: markets_path must not be empty")
	}
	if c.Run.PersonasPath == "" && (mode == "simulate" || mode == "screen") {
		errs = append(errs, "run: personas_path must not be empty for mode "+mode)
	}
	if c.Run.StartingBalance <= 0 {
		errs = append(errs, fmt.Sprintf("run: starting_balance must be positive, got %.2f", c.Run.StartingBalance))
	}
	if len(c.Run.Windows) == 0 {
		errs = append(errs, "run: at least one window is required")
	}
	if _, err := c.WindowLabels(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Run.ParallelMarkets < 1 {
		errs = append(errs, "run: parallel_markets must be >= 1")
	}

	// LLM — required for modes that call the decision producer.
	if mode == "simulate" || mode == "screen" {
		if c.LLM.APIKey == "" {
			errs = append(errs, "llm: api_key is required for mode "+mode)
		}
		if c.LLM.Model == "" {
			errs = append(errs, "llm: model must not be empty")
		}
		if c.LLM.RequestTimeout.Duration <= 0 {
			errs = append(errs, "llm: request_timeout must be positive")
		}
	}

	// Slicer
	if c.Slicer.BandLow < 0 || c.Slicer.BandHigh > 100 || c.Slicer.BandLow >= c.Slicer.BandHigh {
		errs = append(errs, fmt.Sprintf("slicer: band [%d,%d] must satisfy 0 <= low < high <= 100",
			c.Slicer.BandLow, c.Slicer.BandHigh))
	}
	if _, err := c.Tolerances(); err != nil {
		errs = append(errs, err.Error())
	}

	// Decision log
	if c.Log.Path == "" {
		errs = append(errs, "decision_log: path must not be empty")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
