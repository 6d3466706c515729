package reflection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestModule() *Module {
	return New(observability.NewNoopLogger())
}

func TestSelfEvaluateAveragesCriteria(t *testing.T) {
	m := newTestModule()
	record := m.SelfEvaluate("deployment", map[string]float64{"speed": 0.9, "safety": 0.3})

	assert.Equal(t, TypeSelfEvaluation, record.ReflectionType)
	assert.InDelta(t, 0.6, record.Score, 0.001)
	assert.Len(t, record.Findings, 2)
}

func TestSelfEvaluateNoCriteriaDefaultsToHalf(t *testing.T) {
	m := newTestModule()
	record := m.SelfEvaluate("x", nil)
	assert.Equal(t, 0.5, record.Score)
}

func TestAnalyzePerformanceDetectsFallingTrend(t *testing.T) {
	m := newTestModule()
	record := m.AnalyzePerformance("latency", []float64{0.9, 0.5, 0.2})

	assert.Contains(t, record.Findings, "trend: falling")
	require.Len(t, record.Improvements, 1)
}

func TestAnalyzePerformanceEmptyValues(t *testing.T) {
	m := newTestModule()
	record := m.AnalyzePerformance("latency", nil)
	assert.Equal(t, 0.5, record.Score)
	assert.Empty(t, record.Findings)
}

func TestDetectBiasDefaultsAndScore(t *testing.T) {
	m := newTestModule()
	record := m.DetectBias("planning", "always picks fastest option", "", 0.3)

	assert.Equal(t, TypeBiasCheck, record.ReflectionType)
	assert.InDelta(t, 0.7, record.Score, 0.001)
	assert.Equal(t, 1, m.BiasCount())
}

func TestIdentifyImprovementDefaultsPriority(t *testing.T) {
	m := newTestModule()
	record := m.IdentifyImprovement("latency", "200ms", "50ms", "", []string{"cache reads"})

	assert.Equal(t, TypeImprovement, record.ReflectionType)
	assert.Equal(t, 1, m.ImprovementCount())
	assert.Equal(t, "medium", m.GetImprovements("")[0].Priority)
	_ = record
}

func TestGetImprovementsFiltersByPriority(t *testing.T) {
	m := newTestModule()
	m.IdentifyImprovement("a", "x", "y", "high", nil)
	m.IdentifyImprovement("b", "x", "y", "low", nil)

	high := m.GetImprovements("high")
	require.Len(t, high, 1)
	assert.Equal(t, "a", high[0].Area)
}

func TestConsolidateLearningClampsConfidence(t *testing.T) {
	m := newTestModule()
	record := m.ConsolidateLearning("failover", []string{"prefer local tier first"}, 1.5)
	assert.Equal(t, 1.0, record.Score)
	assert.Equal(t, 1, m.ConsolidationCount())
}

func TestGetOverallScoreAveragesRecords(t *testing.T) {
	m := newTestModule()
	assert.Equal(t, 0.5, m.GetOverallScore())

	m.SelfEvaluate("a", map[string]float64{"x": 1.0})
	m.SelfEvaluate("b", map[string]float64{"x": 0.0})
	assert.InDelta(t, 0.5, m.GetOverallScore(), 0.001)
}

func TestGetByTypeFilters(t *testing.T) {
	m := newTestModule()
	m.SelfEvaluate("a", nil)
	m.DetectBias("b", "obs", "", 0.5)

	evals := m.GetByType(TypeSelfEvaluation)
	require.Len(t, evals, 1)
}
