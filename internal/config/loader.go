package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PERSONABENCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PERSONABENCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at run time without touching the
// TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Run ──
	setStr(&cfg.Run.MarketsPath, "PERSONABENCH_RUN_MARKETS_PATH")
	setStr(&cfg.Run.PersonasPath, "PERSONABENCH_RUN_PERSONAS_PATH")
	setStr(&cfg.Run.ExportDir, "PERSONABENCH_RUN_EXPORT_DIR")
	setFloat64(&cfg.Run.StartingBalance, "PERSONABENCH_RUN_STARTING_BALANCE")
	setStringSlice(&cfg.Run.Windows, "PERSONABENCH_RUN_WINDOWS")
	setInt(&cfg.Run.ParallelMarkets, "PERSONABENCH_RUN_PARALLEL_MARKETS")
	setStr(&cfg.Run.RunID, "PERSONABENCH_RUN_ID")
	setStr(&cfg.Run.ReplayRunID, "PERSONABENCH_REPLAY_RUN_ID")

	// ── LLM ──
	setStr(&cfg.LLM.APIKey, "PERSONABENCH_LLM_API_KEY")
	setStr(&cfg.LLM.BaseURL, "PERSONABENCH_LLM_BASE_URL")
	setStr(&cfg.LLM.Model, "PERSONABENCH_LLM_MODEL")
	setFloat64(&cfg.LLM.Temperature, "PERSONABENCH_LLM_TEMPERATURE")
	setInt(&cfg.LLM.MaxTokens, "PERSONABENCH_LLM_MAX_TOKENS")
	setInt(&cfg.LLM.RequestsPerMinute, "PERSONABENCH_LLM_REQUESTS_PER_MINUTE")
	setInt(&cfg.LLM.MaxRetries, "PERSONABENCH_LLM_MAX_RETRIES")
	setDuration(&cfg.LLM.RequestTimeout, "PERSONABENCH_LLM_REQUEST_TIMEOUT")

	// ── Slicer ──
	setInt(&cfg.Slicer.BandLow, "PERSONABENCH_SLICER_BAND_LOW")
	setInt(&cfg.Slicer.BandHigh, "PERSONABENCH_SLICER_BAND_HIGH")

	// ── Decision log ──
	setStr(&cfg.Log.Path, "PERSONABENCH_DECISION_LOG_PATH")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "PERSONABENCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "PERSONABENCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PERSONABENCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PERSONABENCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PERSONABENCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PERSONABENCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PERSONABENCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PERSONABENCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "PERSONABENCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "PERSONABENCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "PERSONABENCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "PERSONABENCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "PERSONABENCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PERSONABENCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PERSONABENCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PERSONABENCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PERSONABENCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PERSONABENCH_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.CacheTTL, "PERSONABENCH_REDIS_CACHE_TTL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "PERSONABENCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "PERSONABENCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PERSONABENCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "PERSONABENCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PERSONABENCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PERSONABENCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PERSONABENCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PERSONABENCH_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PERSONABENCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PERSONABENCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PERSONABENCH_NOTIFY_DISCORD_WEBHOOK_URL")

	// ── Top-level ──
	setStr(&cfg.Mode, "PERSONABENCH_MODE")
	setStr(&cfg.LogLevel, "PERSONABENCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
