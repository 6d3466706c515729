package offline

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestManager() *Manager {
	return New(Config{MaxQueueSize: 3, SyncBatchSize: 10}, nil, observability.NewNoopLogger(), nil)
}

func TestStatusWorstCase(t *testing.T) {
	m := newTestManager()
	m.serviceStatus["redis"] = StatusOffline
	m.serviceStatus["postgres"] = StatusDegraded
	assert.Equal(t, StatusOffline, m.Status())

	m.serviceStatus["redis"] = StatusOnline
	assert.Equal(t, StatusDegraded, m.Status())
}

func TestIsOffline(t *testing.T) {
	m := newTestManager()
	assert.False(t, m.IsOffline())
	for svc := range m.serviceStatus {
		m.serviceStatus[svc] = StatusOffline
	}
	assert.True(t, m.IsOffline())
}

func TestEnqueueEvictsOldestWhenFull(t *testing.T) {
	m := newTestManager()
	m.Enqueue("create", "redis", nil)
	m.Enqueue("update", "redis", nil)
	m.Enqueue("delete", "redis", nil)
	evicted := m.Enqueue("create", "postgres", nil)

	assert.Equal(t, 3, m.QueueSize())
	assert.Equal(t, "postgres", m.syncQueue[2].TargetService)
	assert.Equal(t, evicted.TargetService, m.syncQueue[2].TargetService)
}

func TestSyncPendingRequeuesFailedPreservingOrder(t *testing.T) {
	m := newTestManager()
	m.serviceStatus["qdrant"] = StatusOffline
	m.Enqueue("create", "qdrant", map[string]interface{}{"n": 1})
	m.Enqueue("update", "qdrant", map[string]interface{}{"n": 2})
	m.Enqueue("delete", "redis", nil)

	synced := m.SyncPending(context.Background())
	assert.Equal(t, 1, synced)
	require.Equal(t, 2, m.QueueSize())
	assert.Equal(t, 1, m.syncQueue[0].Payload["n"])
	assert.Equal(t, 2, m.syncQueue[1].Payload["n"])
}

func TestRedisCheckerUsesMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	checker := NewRedisChecker(client, 0)

	assert.Equal(t, StatusOnline, checker(context.Background()))

	mr.Close()
	assert.Equal(t, StatusOffline, checker(context.Background()))
}

func TestCacheDecision(t *testing.T) {
	m := newTestManager()
	m.CacheDecision("k", "v")
	v, ok := m.GetCachedDecision("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
