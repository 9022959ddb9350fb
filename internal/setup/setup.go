// Package setup performs the shared application wiring: configuration,
// logging, database, Redis, cache, live hub and the engagement engine.
package setup

import (
	"log"
	"time"

	"github.com/bumpring/bumpring/internal/cache"
	"github.com/bumpring/bumpring/internal/database"
	"github.com/bumpring/bumpring/internal/engage"
	"github.com/bumpring/bumpring/internal/engage/reaction"
	"github.com/bumpring/bumpring/internal/engage/thread"
	"github.com/bumpring/bumpring/internal/engage/warmth"
	"github.com/bumpring/bumpring/internal/hub"
	"github.com/bumpring/bumpring/internal/ratelimit"
	"github.com/bumpring/bumpring/internal/redis"
	"github.com/bumpring/bumpring/internal/setup/config"
	"go.uber.org/zap"
)

// App contains all the common application components.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	DBLogger     *zap.Logger
	DB           *database.Client
	RedisManager *redis.Manager
	Cache        *cache.Cache
	Hub          *hub.Hub
	Engage       *engage.Service
}

// InitializeApp performs the common setup tasks and returns an App.
func InitializeApp(logDir string) (*App, error) {
	// Load configuration
	cfg, configPath, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Initialize logging
	logger, dbLogger, err := GetLoggers(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	logger.Info("Loaded configuration", zap.String("configPath", configPath))

	// Initialize database connection
	db, err := database.NewConnection(&cfg.PostgreSQL, dbLogger)
	if err != nil {
		logger.Error("Failed to connect to database", zap.Error(err))
		return nil, err
	}

	// Initialize Redis-backed read-model cache
	redisManager := redis.NewManager(&cfg.Redis, logger)

	cacheClient, err := redisManager.GetClient(redis.CacheDBIndex)
	if err != nil {
		logger.Error("Failed to connect to Redis", zap.Error(err))
		return nil, err
	}

	readCache := cache.New(cacheClient, logger)

	// Initialize live fan-out hub and rate limiter
	liveHub := hub.New(logger)
	limiter := ratelimit.New(&cfg.RateLimit, logger)

	// Assemble the engagement engine
	aggregator := reaction.New(db, cfg.Engagement.MaxUserWarmth, logger)
	threads := thread.NewManager(db, logger)
	scorer := warmth.NewScorer(db, aggregator, threads, warmthConfig(&cfg.Engagement), logger)
	gate := engage.NewGroupVisibility(db)

	service := engage.NewService(
		db, gate, limiter, aggregator, threads, scorer,
		readCache, liveHub, cache.MutationPatterns, logger,
	)

	return &App{
		Config:       cfg,
		Logger:       logger,
		DBLogger:     dbLogger,
		DB:           db,
		RedisManager: redisManager,
		Cache:        readCache,
		Hub:          liveHub,
		Engage:       service,
	}, nil
}

// Cleanup performs shutdown tasks.
func (a *App) Cleanup() {
	if err := a.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := a.DBLogger.Sync(); err != nil {
		log.Printf("Failed to sync DB logger: %v", err)
	}

	if err := a.DB.Close(); err != nil {
		log.Printf("Failed to close database connection: %v", err)
	}

	a.RedisManager.Close()
}

// warmthConfig maps deployment configuration onto the warmth formula,
// falling back to the formula defaults for unset values.
func warmthConfig(cfg *config.Engagement) warmth.Config {
	wc := warmth.DefaultConfig()

	if cfg.ReactionNorm > 0 {
		wc.ReactionNorm = cfg.ReactionNorm
	}

	if cfg.CommentNorm > 0 {
		wc.CommentNorm = cfg.CommentNorm
	}

	if cfg.ReplyWeight > 0 {
		wc.ReplyWeight = cfg.ReplyWeight
	}

	if cfg.VelocityWindowMinutes > 0 {
		wc.VelocityWindow = time.Duration(cfg.VelocityWindowMinutes) * time.Minute
	}

	if cfg.VelocityExpected > 0 {
		wc.VelocityExpected = cfg.VelocityExpected
	}

	if cfg.WeightReaction+cfg.WeightComment+cfg.WeightVelocity+cfg.WeightParticipation > 0 {
		wc.WeightReaction = cfg.WeightReaction
		wc.WeightComment = cfg.WeightComment
		wc.WeightVelocity = cfg.WeightVelocity
		wc.WeightParticipation = cfg.WeightParticipation
	}

	return wc
}
