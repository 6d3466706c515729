// Package failover provides primary/fallback service routing gated by
// per-service circuit breakers, generalizing pkg/resilience's
// CircuitBreakerManager into ATLAS's failover semantics.
package failover

import (
	"context"
	"fmt"
	"sync"
	"time"

	atlaserrors "github.com/S-Corkum/atlas-core/pkg/errors"
	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience"
)

// HealthCheckFunc reports whether a registered service is currently
// healthy.
type HealthCheckFunc func(ctx context.Context) bool

// ServiceHealth is the last-observed health of a registered service.
type ServiceHealth struct {
	Name         string
	IsPrimary    bool
	Status       string // healthy | degraded | down
	LastCheck    time.Time
	FailureCount int
	CircuitState string
}

type registeredService struct {
	healthCheck HealthCheckFunc
	isPrimary   bool
}

// Manager registers primary/fallback services, tracks their health, and
// routes calls through the healthy one, matching the original's
// register_service/register_fallback/execute_with_failover semantics.
type Manager struct {
	mu sync.RWMutex

	services    map[string]*registeredService
	fallbackMap map[string]string
	health      map[string]*ServiceHealth
	breakers    *resilience.CircuitBreakerManager
	bulkheads   *resilience.BulkheadManager

	healthCheckInterval time.Duration
	logger              observability.Logger
	metrics             observability.MetricsClient

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a FailoverManager. Each registered service additionally
// gets a bulkhead bounding its concurrent in-flight calls, so a slow
// primary can't starve the fallback path by holding every goroutine.
// breakerConfig governs every per-service circuit breaker created on
// demand (zero-valued fields fall back to NewCircuitBreaker's own
// spec-aligned defaults).
func New(healthCheckInterval time.Duration, breakerConfig resilience.CircuitBreakerConfig, logger observability.Logger, metrics observability.MetricsClient) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if healthCheckInterval <= 0 {
		healthCheckInterval = 30 * time.Second
	}
	return &Manager{
		services:            make(map[string]*registeredService),
		fallbackMap:         make(map[string]string),
		health:              make(map[string]*ServiceHealth),
		breakers:            resilience.NewCircuitBreakerManager(logger, metrics, nil, breakerConfig),
		bulkheads:           resilience.NewBulkheadManager(nil, logger, metrics),
		healthCheckInterval: healthCheckInterval,
		logger:              logger,
		metrics:             metrics,
	}
}

// RegisterService registers a service under name with its health check,
// creating its circuit breaker on demand.
func (m *Manager) RegisterService(name string, check HealthCheckFunc, isPrimary bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.services[name] = &registeredService{healthCheck: check, isPrimary: isPrimary}
	m.health[name] = &ServiceHealth{Name: name, IsPrimary: isPrimary, Status: "healthy", LastCheck: time.Now().UTC()}
	m.breakers.GetCircuitBreaker(name)

	m.logger.Info("service registered", map[string]interface{}{"service": name, "primary": isPrimary})
}

// RegisterFallback defines fallback as the service to route to when
// primary is unavailable.
func (m *Manager) RegisterFallback(primary, fallback string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbackMap[primary] = fallback
	m.logger.Info("fallback registered", map[string]interface{}{"primary": primary, "fallback": fallback})
}

// CheckService runs name's health check and records the result against
// its circuit breaker.
func (m *Manager) CheckService(ctx context.Context, name string) (*ServiceHealth, error) {
	m.mu.RLock()
	svc, ok := m.services[name]
	m.mu.RUnlock()
	if !ok {
		return nil, atlaserrors.New("service_not_found", fmt.Sprintf("service not found: %s", name), atlaserrors.ClassNotFound)
	}

	breaker := m.breakers.GetCircuitBreaker(name)
	healthy := func() bool {
		defer func() { recover() }()
		return svc.healthCheck(ctx)
	}()

	_, execErr := breaker.Execute(ctx, func() (interface{}, error) {
		if !healthy {
			return nil, atlaserrors.New("health_check_failed", "health check reported unhealthy", atlaserrors.ClassTransient)
		}
		return nil, nil
	})

	m.mu.Lock()
	h := m.health[name]
	h.LastCheck = time.Now().UTC()
	h.CircuitState = breaker.GetMetrics()["state"].(string)
	if execErr == nil {
		h.Status = "healthy"
		h.FailureCount = 0
	} else if healthy {
		h.Status = "degraded"
		h.FailureCount++
	} else {
		h.Status = "down"
		h.FailureCount++
	}
	result := *h
	m.mu.Unlock()

	return &result, nil
}

// CheckAllServices checks every registered service.
func (m *Manager) CheckAllServices(ctx context.Context) map[string]ServiceHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	m.mu.RUnlock()

	results := make(map[string]ServiceHealth, len(names))
	for _, name := range names {
		health, err := m.CheckService(ctx, name)
		if err == nil {
			results[name] = *health
		}
	}
	return results
}

// ErrBothFailed is returned when both the primary service and its
// registered fallback fail, or when the primary fails for any reason and
// no fallback is registered.
type ErrBothFailed struct {
	Primary  string
	Fallback string
}

func (e *ErrBothFailed) Error() string {
	if e.Fallback == "" {
		return fmt.Sprintf("service failed and no fallback registered: %s", e.Primary)
	}
	return fmt.Sprintf("both %s and %s failed", e.Primary, e.Fallback)
}

// ExecuteWithFailover runs fn through service's bulkhead and circuit
// breaker; on failure it retries through the registered fallback's
// bulkhead and breaker, if any.
func (m *Manager) ExecuteWithFailover(ctx context.Context, service string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	primaryBreaker := m.breakers.GetCircuitBreaker(service)
	result, err := m.bulkheads.Execute(ctx, service, func(ctx context.Context) (interface{}, error) {
		return primaryBreaker.Execute(ctx, func() (interface{}, error) { return fn(ctx) })
	})
	if err == nil {
		return result, nil
	}
	m.logger.Warn("primary service failed", map[string]interface{}{"service": service, "error": err.Error()})

	m.mu.RLock()
	fallback, hasFallback := m.fallbackMap[service]
	m.mu.RUnlock()

	if !hasFallback {
		return nil, &ErrBothFailed{Primary: service}
	}

	fallbackBreaker := m.breakers.GetCircuitBreaker(fallback)
	result, fbErr := m.bulkheads.Execute(ctx, fallback, func(ctx context.Context) (interface{}, error) {
		return fallbackBreaker.Execute(ctx, func() (interface{}, error) { return fn(ctx) })
	})
	if fbErr != nil {
		m.logger.Error("fallback service also failed", map[string]interface{}{"service": fallback, "error": fbErr.Error()})
		return nil, &ErrBothFailed{Primary: service, Fallback: fallback}
	}
	return result, nil
}

// Start begins the periodic background health-check loop.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				m.CheckAllServices(loopCtx)
			}
		}
	}()
	m.logger.Info("failover manager started", nil)
}

// Stop cancels the background health-check loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
	m.logger.Info("failover manager stopped", nil)
}

// GetServiceStatus returns a snapshot of every registered service's
// health.
func (m *Manager) GetServiceStatus() map[string]ServiceHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]ServiceHealth, len(m.health))
	for k, v := range m.health {
		out[k] = *v
	}
	return out
}
