package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/S-Corkum/atlas-core/pkg/atlas"
	"github.com/S-Corkum/atlas-core/pkg/atlas/config"
	"github.com/S-Corkum/atlas-core/pkg/atlas/httpapi"
	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience"
	"github.com/S-Corkum/atlas-core/pkg/resilience/failover"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := observability.NewLogger("atlas")
	metricsClient := observability.NewNoOpMetricsClient()

	core := atlas.New(atlas.Options{
		ConsciousnessLevel: cfg.Unified.ConsciousnessLevel,
		ReasoningDepth:     cfg.Unified.ReasoningDepth,
		ReflectionInterval: cfg.Unified.ReflectionInterval,
		PersonaConsistency: cfg.Unified.PersonaConsistency,
		Logger:             logger,
	})

	breakerConfig := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.Resilience.CircuitBreakerThreshold,
		ResetTimeout:     cfg.Resilience.CircuitBreakerTimeout,
	}
	failoverMgr := failover.New(cfg.Resilience.HealthCheckInterval, breakerConfig, logger, metricsClient)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	failoverMgr.Start(ctx)
	defer failoverMgr.Stop()

	fabric := newResilienceFabric(ctx, cfg.Resilience, failoverMgr, logger, metricsClient)
	fabric.Start(ctx)
	defer fabric.Stop()

	server := httpapi.NewServer(core, failoverMgr, httpapi.Fabric{
		HealthChecker: fabric.healthChecker,
		OfflineMgr:    fabric.offlineMgr,
		AutoFallback:  fabric.fallback,
	}, httpapi.Config{
		ListenAddress:        cfg.API.ListenAddress,
		ReadTimeout:          cfg.API.ReadTimeout,
		WriteTimeout:         cfg.API.WriteTimeout,
		IdleTimeout:          cfg.API.IdleTimeout,
		EnableCORS:           cfg.API.EnableCORS,
		JWTSecret:            cfg.API.JWTSecret,
		RateLimitPerMin:      cfg.API.RateLimitPerMinute,
		RateLimitBurstFactor: cfg.API.RateLimitBurstFactor,
	}, logger)

	go func() {
		logger.Info("starting atlas http api", map[string]interface{}{"address": cfg.API.ListenAddress})
		if err := server.Start(); err != nil {
			logger.Error("http api stopped", map[string]interface{}{"error": err.Error()})
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("received shutdown signal", nil)

	if err := server.Shutdown(); err != nil {
		logger.Error("http api shutdown error", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("atlas stopped gracefully", nil)
}
