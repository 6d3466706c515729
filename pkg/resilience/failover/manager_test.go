package failover

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience"
)

func newTestManager() *Manager {
	return New(time.Minute, resilience.CircuitBreakerConfig{}, observability.NewNoopLogger(), nil)
}

func TestRegisterAndCheckService(t *testing.T) {
	m := newTestManager()
	m.RegisterService("primary-db", func(ctx context.Context) bool { return true }, true)

	health, err := m.CheckService(context.Background(), "primary-db")
	require.NoError(t, err)
	assert.Equal(t, "healthy", health.Status)
	assert.True(t, health.IsPrimary)
}

func TestCheckServiceNotFound(t *testing.T) {
	m := newTestManager()
	_, err := m.CheckService(context.Background(), "nope")
	assert.Error(t, err)
}

func TestExecuteWithFailoverUsesPrimaryWhenHealthy(t *testing.T) {
	m := newTestManager()
	m.RegisterService("primary", func(ctx context.Context) bool { return true }, true)

	result, err := m.ExecuteWithFailover(context.Background(), "primary", func(ctx context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestExecuteWithFailoverFallsBackOnPrimaryFailure(t *testing.T) {
	m := newTestManager()
	m.RegisterService("primary", func(ctx context.Context) bool { return false }, true)
	m.RegisterService("fallback", func(ctx context.Context) bool { return true }, false)
	m.RegisterFallback("primary", "fallback")

	calls := 0
	result, err := m.ExecuteWithFailover(context.Background(), "primary", func(ctx context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("primary down")
		}
		return "fallback-result", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fallback-result", result)
}

func TestExecuteWithFailoverBothFail(t *testing.T) {
	m := newTestManager()
	m.RegisterService("primary", func(ctx context.Context) bool { return false }, true)
	m.RegisterService("fallback", func(ctx context.Context) bool { return false }, false)
	m.RegisterFallback("primary", "fallback")

	_, err := m.ExecuteWithFailover(context.Background(), "primary", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("always fails")
	})
	require.Error(t, err)
	var bothFailed *ErrBothFailed
	assert.ErrorAs(t, err, &bothFailed)
	assert.Equal(t, "primary", bothFailed.Primary)
	assert.Equal(t, "fallback", bothFailed.Fallback)
}

func TestExecuteWithFailoverNoFallbackRegistered(t *testing.T) {
	m := newTestManager()
	m.RegisterService("solo", func(ctx context.Context) bool { return false }, true)

	_, err := m.ExecuteWithFailover(context.Background(), "solo", func(ctx context.Context) (interface{}, error) {
		return nil, errors.New("down")
	})
	require.Error(t, err)
	var bothFailed *ErrBothFailed
	assert.ErrorAs(t, err, &bothFailed)
	assert.Equal(t, "", bothFailed.Fallback)
}

func TestCheckAllServices(t *testing.T) {
	m := newTestManager()
	m.RegisterService("a", func(ctx context.Context) bool { return true }, true)
	m.RegisterService("b", func(ctx context.Context) bool { return false }, false)

	results := m.CheckAllServices(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "healthy", results["a"].Status)
	assert.Equal(t, "down", results["b"].Status)
}

func TestStartStopIdempotent(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	m.Start(ctx)
	m.Start(ctx)
	m.Stop()
	m.Stop()
}

func TestGetServiceStatus(t *testing.T) {
	m := newTestManager()
	m.RegisterService("svc", func(ctx context.Context) bool { return true }, true)
	statuses := m.GetServiceStatus()
	require.Contains(t, statuses, "svc")
}
