package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/dwhitley/personabench/internal/blob/s3"
	"github.com/dwhitley/personabench/internal/cache/redis"
	"github.com/dwhitley/personabench/internal/config"
	"github.com/dwhitley/personabench/internal/domain"
	"github.com/dwhitley/personabench/internal/llm"
	"github.com/dwhitley/personabench/internal/notify"
	"github.com/dwhitley/personabench/internal/persona"
	"github.com/dwhitley/personabench/internal/store/postgres"
	"github.com/dwhitley/personabench/internal/store/sqlite"
)

// Dependencies bundles every external capability the application modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// The durable decision log and contamination verdict records, always
	// present. The sqlite file is the source of truth for replay.
	DecisionLog domain.DecisionLog
	Verdicts    domain.VerdictStore

	// Completer produces chat completions for persona decisions and
	// contamination probes. Only wired for modes that call the model; nil
	// otherwise. When the redis cache is enabled it sits in front of the
	// raw client transparently.
	Completer persona.Completer

	// Results mirrors finished-run aggregates to a shared database. Nil
	// unless postgres is enabled.
	Results domain.ResultStore

	// Archiver uploads run artifacts to object storage. Nil unless s3 is
	// enabled.
	Archiver *s3blob.RunArchiver

	// Reporter announces run completion to chat channels. Always present;
	// with no channels configured it does nothing.
	Reporter *notify.Reporter
}

// needsLLM returns true for modes that call the decision producer.
func needsLLM(mode string) bool {
	switch mode {
	case "simulate", "screen":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- SQLite decision log (always) ---
	db, err := sqlite.Open(cfg.Log.Path)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: decision log: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	deps.DecisionLog = sqlite.NewDecisionLog(db)
	deps.Verdicts = sqlite.NewVerdictStore(db)

	// --- LLM (only for modes that prompt the model) ---
	if needsLLM(cfg.Mode) {
		client := llm.New(llm.Config{
			APIKey:            cfg.LLM.APIKey,
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			Temperature:       float32(cfg.LLM.Temperature),
			MaxTokens:         cfg.LLM.MaxTokens,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			MaxRetries:        cfg.LLM.MaxRetries,
		}, logger)
		deps.Completer = client

		// Optional completion cache so reruns over identical snapshots
		// reuse prior completions.
		if cfg.Redis.Enabled {
			redisClient, err := redis.New(ctx, redis.ClientConfig{
				Addr:       cfg.Redis.Addr,
				Password:   cfg.Redis.Password,
				DB:         cfg.Redis.DB,
				PoolSize:   cfg.Redis.PoolSize,
				MaxRetries: cfg.Redis.MaxRetries,
				TLSEnabled: cfg.Redis.TLSEnabled,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: redis: %w", err)
			}
			closers = append(closers, func() { _ = redisClient.Close() })
			deps.Completer = redis.NewCompletionCache(redisClient, client, cfg.Redis.CacheTTL.Duration)
		}
	}

	// --- PostgreSQL result mirror (optional) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}
		deps.Results = postgres.NewResultStore(pgClient.Pool())
	}

	// --- S3 artifact archival (optional) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewRunArchiver(s3blob.NewWriter(s3Client), logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Reporter = notify.NewReporter(senders, logger)

	return deps, cleanup, nil
}
