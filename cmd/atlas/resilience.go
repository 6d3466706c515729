package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"

	"github.com/S-Corkum/atlas-core/pkg/atlas/config"
	"github.com/S-Corkum/atlas-core/pkg/health"
	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience"
	"github.com/S-Corkum/atlas-core/pkg/resilience/failover"
	"github.com/S-Corkum/atlas-core/pkg/resilience/fallback"
	"github.com/S-Corkum/atlas-core/pkg/resilience/inference"
	"github.com/S-Corkum/atlas-core/pkg/resilience/offline"
	"github.com/S-Corkum/atlas-core/pkg/resilience/state"
)

// resilienceFabric bundles the degraded-mode subsystems (state
// persistence, local inference, offline sync, autonomous fallback) that
// keep ATLAS answering when its backing services degrade or disappear.
type resilienceFabric struct {
	healthChecker *health.HealthChecker
	offlineMgr    *offline.Manager
	fallback      *fallback.AutonomousFallback
	db            *sql.DB
}

// newResilienceFabric wires the state store, local inference chain,
// offline sync manager, and autonomous fallback decision layer, and
// registers each backing service with failoverMgr so its periodic
// health loop trips the right circuit breaker. Any backing service that
// fails to connect degrades that tier rather than aborting startup:
// ATLAS is designed to keep running with reduced capability, not to
// require every dependency at boot.
func newResilienceFabric(ctx context.Context, cfg config.ResilienceConfig, failoverMgr *failover.Manager, logger observability.Logger, metrics observability.MetricsClient) *resilienceFabric {
	var redisClient *redis.Client
	if opts, err := redis.ParseURL(cfg.RedisURL); err != nil {
		logger.Error("invalid redis url, kv health checks disabled", map[string]interface{}{"error": err.Error()})
	} else {
		redisClient = redis.NewClient(opts)
	}

	var db *sql.DB
	var stateStore *state.Store
	if cfg.DatabaseURL != "" {
		if err := state.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("state store migration failed, snapshots disabled", map[string]interface{}{"error": err.Error()})
		} else if sqlDB, err := sql.Open("postgres", cfg.DatabaseURL); err != nil {
			logger.Error("failed to open state store connection", map[string]interface{}{"error": err.Error()})
		} else {
			db = sqlDB
			stateStore = state.NewStore(db, logger, metrics)
		}
	}

	qdrantURL := fmt.Sprintf("http://%s:%d", cfg.QdrantHost, cfg.QdrantPort)

	healthChecker := health.NewHealthChecker(logger, metrics)
	var redisCheck, pgCheck, qdrantCheck health.HealthCheck
	if redisClient != nil {
		redisCheck = health.NewRedisHealthCheck("redis", redisClient)
		healthChecker.RegisterCheck("redis", redisCheck)
	}
	if db != nil {
		pgCheck = health.NewDatabaseHealthCheck("postgres", db)
		healthChecker.RegisterCheck("postgres", pgCheck)
	}
	qdrantCheck = health.NewVectorStoreHealthCheck("qdrant", qdrantURL)
	healthChecker.RegisterCheck("qdrant", qdrantCheck)
	healthChecker.RegisterCheck("remote_inference", health.NewRemoteInferenceHealthCheck("remote_inference", cfg.LocalLLMModel))

	offlineCheckers := map[string]offline.Checker{
		"qdrant": asOfflineChecker(qdrantCheck),
	}
	if redisClient != nil {
		offlineCheckers["redis"] = offline.NewRedisChecker(redisClient, 3*time.Second)
		failoverMgr.RegisterService("redis", asFailoverCheck(redisCheck), true)
	}
	if db != nil {
		offlineCheckers["postgres"] = asOfflineChecker(pgCheck)
		failoverMgr.RegisterService("postgres", asFailoverCheck(pgCheck), true)
	}
	failoverMgr.RegisterService("qdrant", asFailoverCheck(qdrantCheck), true)

	offlineMgr := offline.New(offline.Config{
		HealthCheckInterval: cfg.HealthCheckInterval,
		MaxQueueSize:        cfg.OfflineMaxQueueSize,
		SyncBatchSize:       cfg.OfflineSyncBatchSize,
	}, offlineCheckers, logger, metrics)

	var provider inference.Provider
	if cfg.LocalLLMProvider == "Bedrock" && cfg.LocalLLMModel != "" {
		if awsCfg, err := awsconfig.LoadDefaultConfig(ctx); err != nil {
			logger.Error("failed to load aws config, remote inference tier disabled", map[string]interface{}{"error": err.Error()})
		} else {
			provider = inference.NewBedrockProvider(bedrockruntime.NewFromConfig(awsCfg), cfg.LocalLLMModel)
		}
	}

	breakerConfig := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.CircuitBreakerThreshold,
		ResetTimeout:     cfg.CircuitBreakerTimeout,
	}
	localInference, err := inference.New(inference.Config{BreakerConfig: breakerConfig}, provider, logger, metrics)
	if err != nil {
		logger.Error("failed to init local inference, fallback runs heuristics only", map[string]interface{}{"error": err.Error()})
	}

	return &resilienceFabric{
		healthChecker: healthChecker,
		offlineMgr:    offlineMgr,
		fallback:      fallback.New(localInference, stateStore, logger),
		db:            db,
	}
}

// Start begins the offline manager's background health/sync loop.
func (f *resilienceFabric) Start(ctx context.Context) {
	f.offlineMgr.Start(ctx)
}

// Stop cancels the offline manager's background loop and closes the
// relational connection, if one was opened.
func (f *resilienceFabric) Stop() {
	f.offlineMgr.Stop()
	if f.db != nil {
		_ = f.db.Close()
	}
}

// asOfflineChecker adapts a health.HealthCheck into an offline.Checker.
func asOfflineChecker(check health.HealthCheck) offline.Checker {
	return func(ctx context.Context) offline.ConnectionStatus {
		if check == nil {
			return offline.StatusOffline
		}
		if err := check.Check(ctx); err != nil {
			return offline.StatusOffline
		}
		return offline.StatusOnline
	}
}

// asFailoverCheck adapts a health.HealthCheck into a
// failover.HealthCheckFunc.
func asFailoverCheck(check health.HealthCheck) failover.HealthCheckFunc {
	return func(ctx context.Context) bool {
		return check != nil && check.Check(ctx) == nil
	}
}
