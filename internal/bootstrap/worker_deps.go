// Package bootstrap wires configuration into the dependency graph and
// exposes the two entry points: the HTTP API and the stream worker.
package bootstrap

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	llmadapter "apptrack_worker/adapter/out/llm"
	"apptrack_worker/adapter/out/mongodb"
	"apptrack_worker/adapter/out/notify"
	"apptrack_worker/adapter/out/persistence"
	"apptrack_worker/config"
	agent "apptrack_worker/core/agent/llm"
	"apptrack_worker/core/port/out"
	"apptrack_worker/core/service/analysis"
	"apptrack_worker/core/service/classification"
	"apptrack_worker/core/service/updater"
	"apptrack_worker/internal/stream"
	"apptrack_worker/pkg/logger"
	"apptrack_worker/pkg/snowflake"
)

// Dependencies holds every wired component. Both the API and the worker
// build one of these; optional infrastructure (Redis, MongoDB, OpenAI) is
// left nil when not configured and the pipeline degrades accordingly.
type Dependencies struct {
	Config *config.Config
	Log    zerolog.Logger

	DB      *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	Store    *persistence.ApplicationRepository
	Archive  out.MessageArchive
	Notifier out.NotificationDispatcher
	Producer out.MessageProducer
	Stream   *stream.RedisStream

	Arbiter      *classification.ConfidenceArbiter
	Resolver     *classification.ActionResolver
	Updater      *updater.StateUpdater
	Orchestrator *analysis.Orchestrator
	IDs          *snowflake.Generator
}

// NewDependencies builds the dependency graph from config. The returned
// cleanup closes connections in reverse order of creation.
func NewDependencies(cfg *config.Config, service string) (*Dependencies, func(), error) {
	log := logger.New(logger.Config{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty || cfg.IsDevelopment(),
		Service: service,
	})

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// PostgreSQL is the system of record and is always required.
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := connectPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	cleanups = append(cleanups, func() { db.Close() })
	log.Info().Msg("connected to postgres")

	store := persistence.NewApplicationRepository(db)

	// Redis backs the inbound stream. Without it the async ingest path is
	// disabled but synchronous analysis still works.
	var (
		redisClient *redis.Client
		redisStream *stream.RedisStream
		producer    out.MessageProducer
	)
	if cfg.RedisURL != "" {
		redisClient, err = stream.NewClient(cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cleanups = append(cleanups, func() { redisClient.Close() })
		redisStream = stream.NewRedisStream(redisClient, cfg.ConsumerGroup, log)
		producer = stream.NewProducer(redisStream)
		log.Info().Msg("connected to redis")
	} else {
		log.Warn().Msg("REDIS_URL not set, async ingestion disabled")
	}

	// MongoDB archives raw inbound messages with a TTL. Optional.
	var (
		mongoClient *mongo.Client
		archive     out.MessageArchive
	)
	if cfg.MongoDBURL != "" {
		mongoClient, err = mongodb.NewClient(cfg.MongoDBURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect mongodb: %w", err)
		}
		cleanups = append(cleanups, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongoClient.Disconnect(ctx)
		})

		archiveAdapter := mongodb.NewMessageArchiveAdapter(mongoClient.Database(cfg.MongoDBName), cfg.ArchiveTTLDays)
		if err := archiveAdapter.EnsureIndexes(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to ensure archive indexes")
		}
		archive = archiveAdapter
		log.Info().Msg("connected to mongodb")
	} else {
		log.Warn().Msg("MONGODB_URL not set, message archive disabled")
	}

	// Webhook notifications for status changes. Nop when not configured.
	var notifier out.NotificationDispatcher
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhookDispatcher(cfg.WebhookURL, time.Duration(cfg.WebhookTimeoutSec)*time.Second, log)
	} else {
		notifier = notify.NewNopDispatcher()
	}

	// The probabilistic classifier needs an API key; without one the
	// arbiter runs on pattern matching alone.
	var ai *classification.AIClassifier
	aiEnabled := false
	if cfg.ClassifierEnabled && cfg.OpenAIAPIKey != "" {
		llmClient := agent.NewClientWithConfig(agent.ClientConfig{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
		})
		classifier := llmadapter.NewOpenAIClassifier(llmClient, log)
		ai = classification.NewAIClassifier(classifier, cfg.ClassifierTimeout(), log)
		aiEnabled = true
		log.Info().Str("model", cfg.LLMModel).Msg("probabilistic classifier enabled")
	} else {
		log.Warn().Msg("probabilistic classifier disabled, pattern matching only")
	}

	matcher := classification.NewPatternMatcher(classification.DefaultKeywordTable())
	arbiter := classification.NewConfidenceArbiter(matcher, ai, classification.ArbiterConfig{AIEnabled: aiEnabled}, log)
	resolver := classification.NewActionResolver()

	ids, err := snowflake.NewGenerator(snowflakeWorkerID(cfg.WorkerID))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create id generator: %w", err)
	}

	stateUpdater := updater.NewStateUpdater(store, notifier, ids, updater.Config{
		MaxSaveRetries:       cfg.SaveMaxRetries,
		TerminalStatusLocked: cfg.TerminalStatusLocked,
	}, log)

	orchestrator := analysis.NewOrchestrator(arbiter, resolver, stateUpdater, archive, log)

	return &Dependencies{
		Config:       cfg,
		Log:          log,
		DB:           db,
		Redis:        redisClient,
		MongoDB:      mongoClient,
		Store:        store,
		Archive:      archive,
		Notifier:     notifier,
		Producer:     producer,
		Stream:       redisStream,
		Arbiter:      arbiter,
		Resolver:     resolver,
		Updater:      stateUpdater,
		Orchestrator: orchestrator,
		IDs:          ids,
	}, cleanup, nil
}

// connectPostgres opens a sqlx connection over the pgx stdlib driver with
// pool limits tuned for the worker's access pattern.
func connectPostgres(url string) (*sqlx.DB, error) {
	if !strings.Contains(url, "default_query_exec_mode") {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url += sep + "default_query_exec_mode=simple_protocol"
	}

	db, err := sqlx.Connect("pgx", url)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// snowflakeWorkerID folds the string worker ID into the generator's
// 10-bit worker ID space.
func snowflakeWorkerID(workerID string) int64 {
	h := fnv.New32a()
	h.Write([]byte(workerID))
	return int64(h.Sum32() % 1024)
}
