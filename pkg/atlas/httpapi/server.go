// Package httpapi exposes ATLAS's perceive/think/decide/act/reflect
// surface and resilience status over HTTP.
package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/S-Corkum/atlas-core/pkg/atlas"
	"github.com/S-Corkum/atlas-core/pkg/health"
	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience"
	"github.com/S-Corkum/atlas-core/pkg/resilience/failover"
	"github.com/S-Corkum/atlas-core/pkg/resilience/fallback"
	"github.com/S-Corkum/atlas-core/pkg/resilience/offline"
	"github.com/S-Corkum/atlas-core/pkg/unified/decision"
)

// Config configures the HTTP server.
type Config struct {
	ListenAddress        string
	ReadTimeout          time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableCORS           bool
	JWTSecret            string
	RateLimitPerMin      int
	RateLimitBurstFactor int
}

// Server is ATLAS's HTTP API surface.
type Server struct {
	router        *gin.Engine
	server        *http.Server
	core          *atlas.Core
	failover      *failover.Manager
	limiters      *resilience.RateLimiterManager
	healthChecker *health.HealthChecker
	offlineMgr    *offline.Manager
	autoFallback  *fallback.AutonomousFallback
	logger        observability.Logger
	cfg           Config
}

// Fabric bundles the optional resilience-fabric collaborators (health
// aggregation, offline sync, autonomous fallback) the server exposes
// over /health and /resilience. Any field may be nil: /health then
// reports {"status":"ok"}, /resilience/offline reports not offline with
// no services, and /resilience/emergency answers 503.
type Fabric struct {
	HealthChecker *health.HealthChecker
	OfflineMgr    *offline.Manager
	AutoFallback  *fallback.AutonomousFallback
}

// NewServer wires a gin router over core (and, optionally, a failover
// manager and resilience fabric for resilience status endpoints).
func NewServer(core *atlas.Core, failoverMgr *failover.Manager, fabric Fabric, cfg Config, logger observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8090"
	}
	if cfg.RateLimitPerMin <= 0 {
		cfg.RateLimitPerMin = 300
	}
	if cfg.RateLimitBurstFactor <= 0 {
		cfg.RateLimitBurstFactor = 2
	}

	limiters := resilience.NewRateLimiterManager(map[string]resilience.RateLimiterConfig{
		"atlas-api": {
			Limit:       cfg.RateLimitPerMin,
			Period:      time.Minute,
			BurstFactor: cfg.RateLimitBurstFactor,
		},
	})

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if cfg.EnableCORS {
		router.Use(corsMiddleware())
	}

	s := &Server{
		router:        router,
		core:          core,
		failover:      failoverMgr,
		limiters:      limiters,
		healthChecker: fabric.HealthChecker,
		offlineMgr:    fabric.OfflineMgr,
		autoFallback:  fabric.AutoFallback,
		logger:        logger,
		cfg:           cfg,
	}
	router.Use(s.rateLimit())
	s.registerRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      router,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 90*time.Second),
	}
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.router.Group("/api/v1")
	v1.GET("/health", s.handleHealth)
	v1.GET("/snapshot", s.authRequired(), s.handleSnapshot)
	v1.POST("/perceive", s.authRequired(), s.handlePerceive)
	v1.POST("/think", s.authRequired(), s.handleThink)
	v1.POST("/decide", s.authRequired(), s.handleDecide)
	v1.POST("/act", s.authRequired(), s.handleAct)
	v1.POST("/reflect", s.authRequired(), s.handleReflect)
	v1.GET("/resilience/services", s.authRequired(), s.handleServiceStatus)
	v1.GET("/resilience/offline", s.authRequired(), s.handleOfflineStatus)
	v1.POST("/resilience/emergency", s.authRequired(), s.handleEmergencyDecision)
}

// Start begins serving HTTP traffic; it blocks until the listener
// returns.
func (s *Server) Start() error {
	s.logger.Info("atlas http api starting", map[string]interface{}{"address": s.cfg.ListenAddress})
	return s.server.ListenAndServe()
}

// Shutdown closes the server's listeners and connections immediately;
// in-flight requests are not drained.
func (s *Server) Shutdown() error {
	return s.server.Close()
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.healthChecker == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	s.healthChecker.RunChecks(c.Request.Context())
	aggregated := s.healthChecker.GetAggregatedHealth()
	status := http.StatusOK
	if aggregated.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, aggregated)
}

func (s *Server) handleOfflineStatus(c *gin.Context) {
	if s.offlineMgr == nil {
		c.JSON(http.StatusOK, gin.H{"offline": false, "services": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"offline":     s.offlineMgr.IsOffline(),
		"services":    s.offlineMgr.GetServiceStatuses(),
		"queue_depth": s.offlineMgr.QueueSize(),
	})
}

func (s *Server) handleEmergencyDecision(c *gin.Context) {
	if s.autoFallback == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "autonomous fallback not configured"})
		return
	}
	var req struct {
		EventType string `json:"event_type" binding:"required"`
		Risk      string `json:"risk"`
		Urgency   string `json:"urgency"`
		Detail    string `json:"detail"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.autoFallback.Decide(c.Request.Context(), req.EventType, req.Risk, req.Urgency, req.Detail))
}

func (s *Server) handleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.GetSnapshot())
}

func (s *Server) handlePerceive(c *gin.Context) {
	var req struct {
		Source string                 `json:"source" binding:"required"`
		Data   map[string]interface{} `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.core.Perceive(req.Source, req.Data))
}

func (s *Server) handleThink(c *gin.Context) {
	var req struct {
		Question string   `json:"question" binding:"required"`
		Premises []string `json:"premises"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.core.Think(req.Question, req.Premises))
}

func (s *Server) handleDecide(c *gin.Context) {
	var req struct {
		Question string `json:"question" binding:"required"`
		Options  []struct {
			Source     string  `json:"source"`
			Action     string  `json:"action"`
			Confidence float64 `json:"confidence"`
			Reasoning  string  `json:"reasoning"`
		} `json:"options"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opts := make([]atlas.DecideOption, 0, len(req.Options))
	for _, o := range req.Options {
		opts = append(opts, atlas.DecideOption{
			Source: decision.Source(o.Source), Action: o.Action, Confidence: o.Confidence, Reasoning: o.Reasoning,
		})
	}
	result := s.core.Decide(req.Question, opts)
	if !result.Success {
		c.JSON(http.StatusUnprocessableEntity, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAct(c *gin.Context) {
	var req struct {
		Action        string                 `json:"action" binding:"required"`
		TargetSystems []string               `json:"target_systems"`
		Parameters    map[string]interface{} `json:"parameters"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.core.Act(req.Action, req.TargetSystems, req.Parameters))
}

func (s *Server) handleReflect(c *gin.Context) {
	c.JSON(http.StatusOK, s.core.Reflect())
}

func (s *Server) handleServiceStatus(c *gin.Context) {
	if s.failover == nil {
		c.JSON(http.StatusOK, gin.H{"services": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": s.failover.GetServiceStatus()})
}

func requestLogger(logger observability.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()
		logger.Info("http request", map[string]interface{}{
			"path": path, "status": c.Writer.Status(), "latency_ms": time.Since(start).Milliseconds(),
		})
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// rateLimit throttles the whole API surface using a shared token-bucket
// limiter, protecting the cognitive cycle endpoints from overload.
func (s *Server) rateLimit() gin.HandlerFunc {
	limiter := s.limiters.GetRateLimiter("atlas-api")
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.JWTSecret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return []byte(s.cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Next()
	}
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	return d
}
