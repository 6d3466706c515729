package consciousness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestConsciousness() *Consciousness {
	return New(LevelMedium, observability.NewNoopLogger())
}

func TestUpdateSelfStateRecordsHistory(t *testing.T) {
	c := newTestConsciousness()
	c.UpdateSelfState("idle")
	c.UpdateSelfState("working")

	history := c.GetStateHistory(0)
	assert.Len(t, history, 2)
	assert.Equal(t, "idle", history[0].NewState)
	assert.Equal(t, "working", history[1].NewState)
	assert.Equal(t, "idle", history[1].OldState)
}

func TestSetLevelRecordsTransition(t *testing.T) {
	c := newTestConsciousness()
	c.SetLevel(LevelHigh)

	assert.Equal(t, LevelHigh, c.Level())
	history := c.GetStateHistory(0)
	assert.Len(t, history, 1)
	assert.Equal(t, "level_change", history[0].Type)
}

func TestAssessConfidenceAllFactorsPresent(t *testing.T) {
	c := newTestConsciousness()
	c.UpdateGoals([]string{"goal1"})
	c.UpdateCapabilities([]string{"cap1"})
	c.UpdateEnvironment(map[string]interface{}{"region": "us-east"})
	c.UpdateLimitations([]string{"no-internet"})

	confidence := c.AssessConfidence()
	assert.InDelta(t, 0.8, confidence, 0.001)
}

func TestAssessConfidenceNoFactors(t *testing.T) {
	c := newTestConsciousness()
	confidence := c.AssessConfidence()
	assert.InDelta(t, 0.375, confidence, 0.001)
}

func TestIntrospectRecordsAndReturnsSnapshot(t *testing.T) {
	c := newTestConsciousness()
	c.UpdateSelfState("active")
	c.UpdateGoals([]string{"a", "b"})

	result := c.Introspect()
	assert.Equal(t, "active", result.SelfState)
	assert.Equal(t, 2, result.GoalCount)
	assert.Equal(t, 1, c.IntrospectionCount())
}

func TestGetStateHistoryLimit(t *testing.T) {
	c := newTestConsciousness()
	c.UpdateSelfState("s1")
	c.UpdateSelfState("s2")
	c.UpdateSelfState("s3")

	limited := c.GetStateHistory(2)
	assert.Len(t, limited, 2)
	assert.Equal(t, "s3", limited[1].NewState)
}

func TestGetAwarenessReturnsIndependentCopy(t *testing.T) {
	c := newTestConsciousness()
	c.UpdateGoals([]string{"goal1"})

	a := c.GetAwareness()
	a.ActiveGoals[0] = "mutated"

	original := c.GetAwareness()
	assert.Equal(t, "goal1", original.ActiveGoals[0])
}
