package reasoning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestEngine() *Engine {
	return New(10, observability.NewNoopLogger())
}

func TestReasonLogically(t *testing.T) {
	e := newTestEngine()
	e.AddRule("modus_ponens", "if A then B", "B", "standard inference rule")

	chain := e.ReasonLogically([]string{"A is true", "A implies B"}, []string{"modus_ponens"})
	assert.Equal(t, TypeLogical, chain.ReasoningType)
	assert.Contains(t, chain.Metadata["rules_applied"], "modus_ponens")
	assert.InDelta(t, 0.7, chain.Confidence, 0.001)
}

func TestReasonAnalogicallyUsesCatalog(t *testing.T) {
	e := newTestEngine()
	e.AddAnalogy("circuit breaker", "electrical fuse", 0.8)

	chain := e.ReasonAnalogically("circuit breaker", "bulkhead", map[string]string{"trip": "isolate"})
	assert.Equal(t, TypeAnalogical, chain.ReasoningType)
	assert.InDelta(t, 0.8, chain.Confidence, 0.001)
}

func TestReasonCausallyNoLinksFallsBackToHalf(t *testing.T) {
	e := newTestEngine()
	chain := e.ReasonCausally("disk full", []string{"write errors"})
	assert.Equal(t, TypeCausal, chain.ReasoningType)
	assert.InDelta(t, 0.5, chain.Confidence, 0.001)
}

func TestReasonCausallyVerifiesAgainstLinks(t *testing.T) {
	e := newTestEngine()
	e.AddCausalLink("disk full", "write errors", 0.9)
	e.AddCausalLink("disk full", "slow reads", 0.6)

	chain := e.ReasonCausally("disk full", []string{"write errors"})
	assert.InDelta(t, 0.5, chain.Confidence, 0.001)
}

func TestReasonAbductivelyPicksBestHypothesis(t *testing.T) {
	e := newTestEngine()
	chain := e.ReasonAbductively([]string{"obs1", "obs2", "obs3"}, []string{"hypA", "hypB"})
	assert.Equal(t, TypeAbductive, chain.ReasoningType)
	assert.InDelta(t, 0.6, chain.Confidence, 0.001)
	assert.Contains(t, chain.Conclusion, "hyp")
}

func TestReasonAbductivelyNoHypotheses(t *testing.T) {
	e := newTestEngine()
	chain := e.ReasonAbductively([]string{"obs1"}, nil)
	assert.Contains(t, chain.Conclusion, "uncertain")
	assert.InDelta(t, 0.3, chain.Confidence, 0.001)
}

func TestMetaReasonSelectsMostConfident(t *testing.T) {
	e := newTestEngine()
	low := e.ReasonCausally("x", nil)
	high := e.ReasonAnalogically("a", "b", nil)
	e.AddAnalogy("a", "b", 0.95)
	high2 := e.ReasonAnalogically("a", "b", nil)

	meta := e.MetaReason([]string{low.ChainID, high.ChainID, high2.ChainID})
	assert.Equal(t, TypeMeta, meta.ReasoningType)
	assert.Contains(t, meta.Conclusion, "most confident")
	require.NotNil(t, meta)
}

func TestMetaReasonNoChainsFound(t *testing.T) {
	e := newTestEngine()
	meta := e.MetaReason([]string{"nonexistent"})
	assert.Contains(t, meta.Conclusion, "insufficient data")
}

func TestGetChainsByType(t *testing.T) {
	e := newTestEngine()
	e.ReasonLogically([]string{"p1"}, nil)
	e.ReasonCausally("cause", nil)

	logical := e.GetChainsByType(TypeLogical)
	require.Len(t, logical, 1)
}
