package fallback

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience/state"
)

func TestGetProgrammedResponseBuiltin(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	resp := af.GetProgrammedResponse("server_down")
	require.NotNil(t, resp)
	assert.Equal(t, "notify", resp.Action)
	assert.Equal(t, "programmed", resp.Source)
}

func TestGetProgrammedResponseUnknown(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	assert.Nil(t, af.GetProgrammedResponse("unknown_event"))
}

func TestCustomProtocolTakesPriority(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	af.RegisterProtocol("server_down", Response{Action: "log", Message: "custom", Confidence: 0.5, Source: "programmed"})

	resp := af.GetProgrammedResponse("server_down")
	require.NotNil(t, resp)
	assert.Equal(t, "custom", resp.Message)
}

func TestMakeHeuristicDecisionKnownRule(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	resp := af.MakeHeuristicDecision("high", "high", "")
	assert.Equal(t, "notify", resp.Action)
	assert.Equal(t, 0.9, resp.Confidence)
	assert.Equal(t, "heuristic", resp.Source)
}

func TestMakeHeuristicDecisionUnknownCombinationDefaults(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	resp := af.MakeHeuristicDecision("unknown", "unknown", "")
	assert.Equal(t, "notify", resp.Action)
	assert.Equal(t, 0.5, resp.Confidence)
}

func TestEmergencyProtocolRestrictsHeuristicAction(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	af.ActivateEmergencyProtocol(context.Background(), EmergencyCritical)

	resp := af.MakeHeuristicDecision("high", "high", "")
	assert.Equal(t, "log", resp.Action)
	assert.Less(t, resp.Confidence, 0.9)
}

func TestActivateEmergencyProtocolPersistsSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := state.NewStore(db, observability.NewNoopLogger(), nil)
	mock.ExpectQuery("INSERT INTO snapshots").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	af := New(nil, store, observability.NewNoopLogger())
	af.ActivateEmergencyProtocol(context.Background(), EmergencyLevel2)

	assert.Equal(t, EmergencyLevel2, af.EmergencyLevel())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateEmergency(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	af.ActivateEmergencyProtocol(context.Background(), EmergencyCritical)
	af.DeactivateEmergency()
	assert.Equal(t, EmergencyNormal, af.EmergencyLevel())
}

func TestDecideFallsThroughToHeuristicWhenNoProgrammedResponse(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	resp := af.Decide(context.Background(), "unmapped_event", "low", "low", "")
	assert.Equal(t, "heuristic", resp.Source)
}

func TestDecideUsesProgrammedResponseFirst(t *testing.T) {
	af := New(nil, nil, observability.NewNoopLogger())
	resp := af.Decide(context.Background(), "high_load", "low", "low", "")
	assert.Equal(t, "programmed", resp.Source)
}
