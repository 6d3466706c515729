package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

func newTestIntegrator() *Integrator {
	return New(observability.NewNoopLogger())
}

func TestAddProposalValidates(t *testing.T) {
	i := newTestIntegrator()
	_, err := i.AddProposal("restart?", SourceBDI, "restart", 0.8, "service unresponsive")
	require.NoError(t, err)
	assert.Equal(t, 1, i.TotalProposals())
}

func TestAddProposalRejectsMissingAction(t *testing.T) {
	i := newTestIntegrator()
	_, err := i.AddProposal("restart?", SourceBDI, "", 0.8, "")
	assert.Error(t, err)
}

func TestAddProposalRejectsOutOfRangeConfidence(t *testing.T) {
	i := newTestIntegrator()
	_, err := i.AddProposal("restart?", SourceBDI, "restart", 1.5, "")
	assert.Error(t, err)
}

func TestSynthesizeNoProposals(t *testing.T) {
	i := newTestIntegrator()
	assert.Nil(t, i.Synthesize("unknown"))
}

func TestSynthesizePicksHighestWeightedScore(t *testing.T) {
	i := newTestIntegrator()
	_, _ = i.AddProposal("restart?", SourceBDI, "restart", 0.9, "unresponsive")
	_, _ = i.AddProposal("restart?", SourceEmotional, "wait", 0.5, "caution")

	decision := i.Synthesize("restart?")
	require.NotNil(t, decision)
	assert.Equal(t, "restart", decision.ChosenAction)
	assert.Contains(t, decision.Sources, SourceBDI)
}

func TestSynthesizeDetectsCloseConflict(t *testing.T) {
	i := newTestIntegrator()
	_, _ = i.AddProposal("q", SourceBDI, "a", 0.8, "")
	_, _ = i.AddProposal("q", SourceProbabilistic, "b", 1.0, "")

	i.Synthesize("q")
	assert.Equal(t, 1, i.ConflictCount())
}

func TestResolveConflictOverridesManually(t *testing.T) {
	i := newTestIntegrator()
	_, _ = i.AddProposal("q", SourceBDI, "a", 0.5, "")
	_, _ = i.AddProposal("q", SourceProbabilistic, "b", 0.9, "")

	decision := i.ResolveConflict("q", "a", "operator override")
	require.NotNil(t, decision)
	assert.Equal(t, "a", decision.ChosenAction)
	assert.Equal(t, 0.9, decision.Confidence)
}

func TestSetAndGetSourceWeight(t *testing.T) {
	i := newTestIntegrator()
	i.SetSourceWeight(SourceBDI, 0.5)
	assert.Equal(t, 0.5, i.GetSourceWeight(SourceBDI))
	assert.Equal(t, 0.1, i.GetSourceWeight("unregistered"))
}

func TestGetProposalsReturnsCopy(t *testing.T) {
	i := newTestIntegrator()
	_, _ = i.AddProposal("q", SourceBDI, "a", 0.5, "")

	props := i.GetProposals("q")
	require.Len(t, props, 1)
	props[0].Action = "mutated"

	original := i.GetProposals("q")
	assert.Equal(t, "a", original[0].Action)
}
