package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestManager() *Manager {
	return New(observability.NewNoopLogger())
}

func TestDefaultProfileTraits(t *testing.T) {
	m := newTestManager()
	assert.Equal(t, 6, m.TraitCount())
	assert.Equal(t, 4, m.ValueCount())
	assert.Equal(t, 0.8, m.GetTrait("professionalism"))
	assert.Equal(t, 0.5, m.GetTrait("unknown_trait"))
}

func TestSetTraitClamps(t *testing.T) {
	m := newTestManager()
	m.SetTrait("humor", 1.5)
	assert.Equal(t, 1.0, m.GetTrait("humor"))
}

func TestAddAndRemoveValue(t *testing.T) {
	m := newTestManager()
	m.AddValue("curiosity")
	assert.Equal(t, 5, m.ValueCount())
	m.AddValue("curiosity")
	assert.Equal(t, 5, m.ValueCount())

	assert.True(t, m.RemoveValue("curiosity"))
	assert.False(t, m.RemoveValue("curiosity"))
}

func TestGetStyleForContextAppliesOverrides(t *testing.T) {
	m := newTestManager()
	style := m.GetStyleForContext("emergency")
	assert.GreaterOrEqual(t, style.Formality, 0.8)

	casual := m.GetStyleForContext("casual")
	assert.LessOrEqual(t, casual.Formality, 0.3)
}

func TestSetStyleOverrideAppliesInContext(t *testing.T) {
	m := newTestManager()
	m.SetStyleOverride("support", "friendly")
	style := m.GetStyleForContext("support")
	assert.Equal(t, "friendly", style.Style)

	assert.True(t, m.RemoveStyleOverride("support"))
	assert.False(t, m.RemoveStyleOverride("support"))
}

func TestCheckConsistencyDetectsViolations(t *testing.T) {
	m := newTestManager()
	result := m.CheckConsistency("hide logs", ActionContext{Hidden: true})
	assert.False(t, result.Consistent)
	assert.NotEmpty(t, result.Violations)
}

func TestCheckConsistencyNoViolations(t *testing.T) {
	m := newTestManager()
	result := m.CheckConsistency("reply politely", ActionContext{})
	assert.True(t, result.Consistent)
}

func TestAdaptToUserBoundedByAdaptability(t *testing.T) {
	m := newTestManager()
	adaptation := m.AdaptToUser("wants more humor", map[string]float64{"humor": 1.0})

	require.Contains(t, adaptation.OldValues, "humor")
	newVal := m.GetTrait("humor")
	assert.LessOrEqual(t, newVal-0.4, 0.7*0.3+0.0001)
	assert.Equal(t, 1, m.AdaptationCount())
}

func TestRecordInteractionAndHistoryLimit(t *testing.T) {
	m := newTestManager()
	for i := 0; i < 3; i++ {
		m.RecordInteraction("query", "support", 0.8)
	}
	assert.Equal(t, 3, m.InteractionCount())

	recent := m.GetInteractionHistory(2)
	require.Len(t, recent, 2)
}

func TestGetProfileReturnsIndependentCopy(t *testing.T) {
	m := newTestManager()
	profile := m.GetProfile()
	profile.Traits["humor"] = 0.0
	profile.Values = append(profile.Values, "mutated")

	assert.NotEqual(t, 0.0, m.GetTrait("humor"))
	assert.Equal(t, 4, m.ValueCount())
}
