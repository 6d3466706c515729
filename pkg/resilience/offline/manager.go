// Package offline implements ATLAS's connectivity-aware offline mode:
// per-service connection status tracking, a local decision cache, and a
// bounded FIFO sync queue that drains once connectivity returns.
package offline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// ConnectionStatus describes a service's reachability.
type ConnectionStatus string

const (
	StatusOnline   ConnectionStatus = "online"
	StatusDegraded ConnectionStatus = "degraded"
	StatusOffline  ConnectionStatus = "offline"
)

// Checker probes connectivity to a single backing service.
type Checker func(ctx context.Context) ConnectionStatus

// SyncItem is a pending write accumulated while its target service was
// unreachable.
type SyncItem struct {
	ItemID        string
	Operation     string
	TargetService string
	Payload       map[string]interface{}
	CreatedAt     time.Time
	RetryCount    int
}

// Config configures health-check cadence and queue bounds.
type Config struct {
	HealthCheckInterval time.Duration
	MaxQueueSize        int
	SyncBatchSize       int
}

// Manager tracks connection status for the fixed set of backing
// services (redis, postgres, qdrant), caches decisions locally while
// offline, and replays a bounded sync queue once connectivity returns.
type Manager struct {
	cfg Config

	mu             sync.Mutex
	serviceStatus  map[string]ConnectionStatus
	decisionCache  map[string]interface{}
	syncQueue      []SyncItem
	checkers       map[string]Checker

	logger  observability.Logger
	metrics observability.MetricsClient

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an offline Manager for the fixed service keys
// redis/postgres/qdrant, all starting online.
func New(cfg Config, checkers map[string]Checker, logger observability.Logger, metrics observability.MetricsClient) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 30 * time.Second
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 1000
	}
	if cfg.SyncBatchSize <= 0 {
		cfg.SyncBatchSize = 50
	}

	return &Manager{
		cfg: cfg,
		serviceStatus: map[string]ConnectionStatus{
			"redis":    StatusOnline,
			"postgres": StatusOnline,
			"qdrant":   StatusOnline,
		},
		decisionCache: make(map[string]interface{}),
		checkers:      checkers,
		logger:        logger,
		metrics:       metrics,
	}
}

// Status returns the worst-case connection status across all tracked
// services.
func (m *Manager) Status() ConnectionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.worstStatusLocked()
}

func (m *Manager) worstStatusLocked() ConnectionStatus {
	worst := StatusOnline
	for _, s := range m.serviceStatus {
		if s == StatusOffline {
			return StatusOffline
		}
		if s == StatusDegraded {
			worst = StatusDegraded
		}
	}
	return worst
}

// IsOffline reports whether every tracked service is offline.
func (m *Manager) IsOffline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.serviceStatus {
		if s != StatusOffline {
			return false
		}
	}
	return true
}

// CheckConnections probes every registered checker and updates tracked
// status, returning the resulting map.
func (m *Manager) CheckConnections(ctx context.Context) map[string]ConnectionStatus {
	m.mu.Lock()
	services := make([]string, 0, len(m.serviceStatus))
	for svc := range m.serviceStatus {
		services = append(services, svc)
	}
	m.mu.Unlock()

	results := make(map[string]ConnectionStatus, len(services))
	for _, svc := range services {
		status := StatusOffline
		if checker, ok := m.checkers[svc]; ok && checker != nil {
			status = checker(ctx)
		}
		results[svc] = status
	}

	m.mu.Lock()
	for svc, status := range results {
		m.serviceStatus[svc] = status
	}
	m.mu.Unlock()

	m.logger.Info("connection status checked", map[string]interface{}{
		"redis": string(results["redis"]), "postgres": string(results["postgres"]), "qdrant": string(results["qdrant"]),
	})
	return results
}

// CacheDecision stores a decision locally for later use while offline.
func (m *Manager) CacheDecision(key string, decision interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisionCache[key] = decision
}

// GetCachedDecision retrieves a previously cached decision.
func (m *Manager) GetCachedDecision(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.decisionCache[key]
	return v, ok
}

// Enqueue appends a pending write to the bounded sync queue, evicting
// the oldest item when at capacity (matching the original's bounded
// deque behavior).
func (m *Manager) Enqueue(operation, targetService string, payload map[string]interface{}) SyncItem {
	item := SyncItem{
		ItemID:        uuid.NewString(),
		Operation:     operation,
		TargetService: targetService,
		Payload:       payload,
		CreatedAt:     time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.syncQueue) >= m.cfg.MaxQueueSize {
		m.syncQueue = m.syncQueue[1:]
	}
	m.syncQueue = append(m.syncQueue, item)

	if m.metrics != nil {
		m.metrics.RecordGauge("offline_sync_queue_depth", float64(len(m.syncQueue)), nil)
	}
	return item
}

// SyncPending drains up to SyncBatchSize items from the front of the
// queue, replaying each against its (now-presumed-reachable) target
// service. Items whose target is still offline are re-queued at the
// front, in their original relative order — deliberately NOT replicating
// the original Python implementation's appendleft-in-a-loop bug, which
// reversed the order of multiple re-queued items.
func (m *Manager) SyncPending(ctx context.Context) int {
	m.mu.Lock()
	batch := m.cfg.SyncBatchSize
	if batch > len(m.syncQueue) {
		batch = len(m.syncQueue)
	}
	items := make([]SyncItem, batch)
	copy(items, m.syncQueue[:batch])
	m.syncQueue = m.syncQueue[batch:]
	statusSnapshot := make(map[string]ConnectionStatus, len(m.serviceStatus))
	for k, v := range m.serviceStatus {
		statusSnapshot[k] = v
	}
	m.mu.Unlock()

	synced := 0
	var failed []SyncItem
	for _, item := range items {
		status, ok := statusSnapshot[item.TargetService]
		if !ok {
			status = StatusOffline
		}
		if status == StatusOffline {
			item.RetryCount++
			failed = append(failed, item)
			continue
		}
		synced++
		m.logger.Info("sync succeeded", map[string]interface{}{
			"operation": item.Operation, "target": item.TargetService, "item_id": item.ItemID,
		})
	}

	if len(failed) > 0 {
		m.mu.Lock()
		m.syncQueue = append(failed, m.syncQueue...)
		m.mu.Unlock()
	}

	if synced > 0 && m.metrics != nil {
		m.metrics.IncrementCounter("offline_sync_completed", float64(synced))
	}
	return synced
}

// QueueSize returns the number of items currently pending sync.
func (m *Manager) QueueSize() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.syncQueue)
}

// GetServiceStatuses returns a snapshot of every tracked service's
// status as strings.
func (m *Manager) GetServiceStatuses() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.serviceStatus))
	for k, v := range m.serviceStatus {
		out[k] = string(v)
	}
	return out
}

// Start begins the periodic health-check loop, syncing pending writes
// whenever the aggregate (worst-case) status is not offline.
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
	go m.healthCheckLoop(loopCtx)
	m.logger.Info("offline manager started", nil)
}

// Stop cancels the background health-check loop and waits for it to
// exit.
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
	m.logger.Info("offline manager stopped", nil)
}

func (m *Manager) healthCheckLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckConnections(ctx)
			if m.Status() != StatusOffline {
				m.SyncPending(ctx)
			}
		}
	}
}
