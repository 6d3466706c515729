package attention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestManager() *Manager {
	return New(1.0, 1000, observability.NewNoopLogger())
}

func TestFocusOnRespectsCapacity(t *testing.T) {
	m := newTestManager()
	f1 := m.FocusOn("task-a", 5, 0.8, nil)
	require.NotNil(t, f1)

	f2 := m.FocusOn("task-b", 5, 0.5, nil)
	assert.Nil(t, f2, "should reject focus exceeding remaining capacity")
}

func TestReleaseFocus(t *testing.T) {
	m := newTestManager()
	f := m.FocusOn("task-a", 5, 0.3, nil)
	require.NotNil(t, f)

	assert.True(t, m.ReleaseFocus(f.FocusID))
	assert.False(t, m.ReleaseFocus(f.FocusID))
}

func TestGetHighestPriority(t *testing.T) {
	m := newTestManager()
	m.FocusOn("low", 2, 0.1, nil)
	high := m.FocusOn("high", 9, 0.1, nil)

	top := m.GetHighestPriority()
	require.NotNil(t, top)
	assert.Equal(t, high.FocusID, top.FocusID)
}

func TestAddBackgroundTaskRespectsCapacity(t *testing.T) {
	m := newTestManager()
	assert.True(t, m.AddBackgroundTask("bg1", "cleanup", 0.9))
	assert.False(t, m.AddBackgroundTask("bg2", "cleanup2", 0.5))
	assert.Equal(t, 1, m.BackgroundCount())
}

func TestHandleInterruptAcceptsHigherPriority(t *testing.T) {
	m := newTestManager()
	m.FocusOn("current", 3, 0.2, nil)

	interrupt := m.HandleInterrupt("alert", 8, "urgent")
	assert.True(t, interrupt.Accepted)
	assert.Equal(t, 1, m.ContextDepth())
}

func TestHandleInterruptRejectsLowerPriority(t *testing.T) {
	m := newTestManager()
	m.FocusOn("current", 8, 0.2, nil)

	interrupt := m.HandleInterrupt("minor", 2, "low priority")
	assert.False(t, interrupt.Accepted)
	assert.Equal(t, 0, m.ContextDepth())
}

func TestSwitchContextAndRestore(t *testing.T) {
	m := newTestManager()
	f := m.FocusOn("original", 5, 0.3, map[string]interface{}{"k": "v"})
	require.NotNil(t, f)

	result := m.SwitchContext(f.FocusID, "new-task", 6)
	assert.True(t, result.Switched)
	assert.Equal(t, 1, m.ContextDepth())

	restored := m.RestoreContext()
	require.NotNil(t, restored)
	assert.True(t, restored.Restored)
	assert.Equal(t, "original", restored.Target)
	assert.Equal(t, 0, m.ContextDepth())
}

func TestRestoreContextEmptyStack(t *testing.T) {
	m := newTestManager()
	assert.Nil(t, m.RestoreContext())
}

func TestGetAllFocusesSortedByPriority(t *testing.T) {
	m := newTestManager()
	m.FocusOn("low", 2, 0.1, nil)
	m.FocusOn("high", 9, 0.1, nil)
	m.FocusOn("mid", 5, 0.1, nil)

	all := m.GetAllFocuses()
	require.Len(t, all, 3)
	assert.Equal(t, 9, all[0].Priority)
	assert.Equal(t, 5, all[1].Priority)
	assert.Equal(t, 2, all[2].Priority)
}

func TestInterruptRateLimiting(t *testing.T) {
	m := New(1.0, 1, observability.NewNoopLogger())
	admitted := 0
	for i := 0; i < 5; i++ {
		interrupt := m.HandleInterrupt("burst", 9, "")
		if interrupt.Accepted {
			admitted++
		}
	}
	assert.Less(t, admitted, 5, "rate limiter should reject some interrupts in a tight burst")
	assert.Equal(t, 5, m.InterruptCount(), "every interrupt is still recorded, admitted or not")
}
