// Package world implements ATLAS's world model: entity tracking,
// relationship mapping, state prediction, counterfactual reasoning, and
// mental simulation.
package world

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// EntityType classifies a tracked world entity.
type EntityType string

const (
	EntitySystem   EntityType = "system"
	EntityAgent    EntityType = "agent"
	EntityUser     EntityType = "user"
	EntityProcess  EntityType = "process"
	EntityExternal EntityType = "external"
)

// Entity is a single tracked element of the system's environment.
type Entity struct {
	EntityID      string                 `json:"entity_id"`
	Name          string                 `json:"name"`
	EntityType    EntityType             `json:"entity_type"`
	State         string                 `json:"state"`
	Properties    map[string]interface{} `json:"properties"`
	Relationships []string               `json:"relationships"`
	LastUpdated   time.Time              `json:"last_updated"`
}

// Relationship links two entities by type and strength.
type Relationship struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Type       string                 `json:"type"`
	Strength   float64                `json:"strength"`
	Properties map[string]interface{} `json:"properties"`
}

// Prediction is a point-in-time state forecast for an entity.
type Prediction struct {
	EntityID       string    `json:"entity_id"`
	CurrentState   string    `json:"current_state"`
	PredictedState string    `json:"predicted_state"`
	TimeSteps      int       `json:"time_steps"`
	Confidence     float64   `json:"confidence"`
	RelatedStates  []string  `json:"related_states"`
	Timestamp      time.Time `json:"timestamp"`
}

// AffectedEntity describes how a counterfactual change ripples to a
// related entity.
type AffectedEntity struct {
	EntityID     string  `json:"entity_id"`
	Name         string  `json:"name"`
	CurrentState string  `json:"current_state"`
	RelationType string  `json:"relation_type"`
	Impact       float64 `json:"impact"`
}

// Counterfactual is the result of "what if entity were in a different
// state" reasoning.
type Counterfactual struct {
	Success            bool             `json:"success"`
	Reason             string           `json:"reason,omitempty"`
	EntityID           string           `json:"entity_id,omitempty"`
	ActualState        string           `json:"actual_state,omitempty"`
	HypotheticalState  string           `json:"hypothetical_state,omitempty"`
	AffectedEntities   []AffectedEntity `json:"affected_entities,omitempty"`
	TotalImpact        float64          `json:"total_impact,omitempty"`
}

// Simulation is a scenario run across multiple hypothetical entity
// changes.
type Simulation struct {
	Scenario               string            `json:"scenario"`
	Changes                map[string]string `json:"changes"`
	Effects                []Counterfactual  `json:"effects"`
	TotalEntitiesAffected  int               `json:"total_entities_affected"`
	Timestamp              time.Time         `json:"timestamp"`
}

// Model maintains ATLAS's representation of its environment, enabling
// prediction, counterfactual analysis, and simulation over it.
type Model struct {
	mu sync.RWMutex

	entities      map[string]*Entity
	relationships []Relationship
	predictions   []Prediction
	simulations   []Simulation
	snapshots     []map[string]interface{}

	logger observability.Logger
}

// New creates an empty Model.
func New(logger observability.Logger) *Model {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	m := &Model{entities: make(map[string]*Entity), logger: logger}
	m.logger.Info("world model started", nil)
	return m
}

// AddEntity registers a new entity (defaulting entityType to system and
// state to active).
func (m *Model) AddEntity(name string, entityType EntityType, state string, properties map[string]interface{}) *Entity {
	if entityType == "" {
		entityType = EntitySystem
	}
	if state == "" {
		state = "active"
	}
	if properties == nil {
		properties = make(map[string]interface{})
	}

	entity := &Entity{
		EntityID:    uuid.NewString(),
		Name:        name,
		EntityType:  entityType,
		State:       state,
		Properties:  properties,
		LastUpdated: time.Now().UTC(),
	}

	m.mu.Lock()
	m.entities[entity.EntityID] = entity
	m.mu.Unlock()
	return entity
}

// UpdateEntity changes an entity's state and/or merges new properties.
func (m *Model) UpdateEntity(entityID string, state *string, properties map[string]interface{}) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, ok := m.entities[entityID]
	if !ok {
		return false
	}
	if state != nil {
		entity.State = *state
	}
	for k, v := range properties {
		entity.Properties[k] = v
	}
	entity.LastUpdated = time.Now().UTC()
	return true
}

// RemoveEntity deletes an entity and any relationships referencing it.
func (m *Model) RemoveEntity(entityID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[entityID]; !ok {
		return false
	}

	kept := m.relationships[:0]
	for _, r := range m.relationships {
		if r.Source != entityID && r.Target != entityID {
			kept = append(kept, r)
		}
	}
	m.relationships = kept
	delete(m.entities, entityID)
	return true
}

// AddRelationship links source and target entities, returning nil if
// either is unknown.
func (m *Model) AddRelationship(sourceID, targetID, relationType string, strength float64, properties map[string]interface{}) *Relationship {
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.entities[sourceID]
	if !ok {
		return nil
	}
	tgt, ok := m.entities[targetID]
	if !ok {
		return nil
	}

	if properties == nil {
		properties = make(map[string]interface{})
	}
	rel := Relationship{Source: sourceID, Target: targetID, Type: relationType, Strength: clampF(strength, 0, 1), Properties: properties}
	m.relationships = append(m.relationships, rel)

	if !containsStr(src.Relationships, targetID) {
		src.Relationships = append(src.Relationships, targetID)
	}
	if !containsStr(tgt.Relationships, sourceID) {
		tgt.Relationships = append(tgt.Relationships, sourceID)
	}
	return &rel
}

// GetRelationships returns every relationship involving entityID.
func (m *Model) GetRelationships(entityID string) []Relationship {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.relationshipsLocked(entityID)
}

func (m *Model) relationshipsLocked(entityID string) []Relationship {
	var out []Relationship
	for _, r := range m.relationships {
		if r.Source == entityID || r.Target == entityID {
			out = append(out, r)
		}
	}
	return out
}

// PredictState produces a stability-assuming state forecast for
// entityID timeSteps ahead.
func (m *Model) PredictState(entityID string, timeSteps int) Prediction {
	m.mu.Lock()
	defer m.mu.Unlock()

	entity, ok := m.entities[entityID]
	if !ok {
		return Prediction{EntityID: entityID}
	}

	var relatedStates []string
	for _, r := range m.relationshipsLocked(entityID) {
		otherID := r.Target
		if r.Source == entityID {
			otherID = r.Target
		} else {
			otherID = r.Source
		}
		if other, ok := m.entities[otherID]; ok {
			relatedStates = append(relatedStates, other.State)
		}
	}

	confidence := roundTo3(maxF(0.3, 1.0-float64(timeSteps)*0.1))
	prediction := Prediction{
		EntityID: entityID, CurrentState: entity.State, PredictedState: entity.State,
		TimeSteps: timeSteps, Confidence: confidence, RelatedStates: relatedStates, Timestamp: time.Now().UTC(),
	}
	m.predictions = append(m.predictions, prediction)
	return prediction
}

// Counterfactual reasons about how entities related to entityID would
// be affected if it were in hypotheticalState.
func (m *Model) Counterfactual(entityID, hypotheticalState string) Counterfactual {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counterfactualLocked(entityID, hypotheticalState)
}

func (m *Model) counterfactualLocked(entityID, hypotheticalState string) Counterfactual {
	entity, ok := m.entities[entityID]
	if !ok {
		return Counterfactual{Success: false, Reason: "entity not found"}
	}

	var affected []AffectedEntity
	totalImpact := 0.0
	for _, r := range m.relationshipsLocked(entityID) {
		otherID := r.Target
		if r.Source != entityID {
			otherID = r.Source
		}
		if other, ok := m.entities[otherID]; ok {
			affected = append(affected, AffectedEntity{
				EntityID: otherID, Name: other.Name, CurrentState: other.State,
				RelationType: r.Type, Impact: r.Strength,
			})
			totalImpact += r.Strength
		}
	}

	return Counterfactual{
		Success: true, EntityID: entityID, ActualState: entity.State,
		HypotheticalState: hypotheticalState, AffectedEntities: affected, TotalImpact: totalImpact,
	}
}

// Simulate runs a named scenario applying changes (entity ID ->
// hypothetical state) as independent counterfactuals.
func (m *Model) Simulate(scenario string, changes map[string]string) Simulation {
	m.mu.Lock()
	defer m.mu.Unlock()

	var effects []Counterfactual
	totalAffected := 0
	for entityID, newState := range changes {
		cf := m.counterfactualLocked(entityID, newState)
		if cf.Success {
			effects = append(effects, cf)
			totalAffected += len(cf.AffectedEntities)
		}
	}

	simulation := Simulation{
		Scenario: scenario, Changes: changes, Effects: effects,
		TotalEntitiesAffected: totalAffected, Timestamp: time.Now().UTC(),
	}
	m.simulations = append(m.simulations, simulation)
	return simulation
}

// TakeSnapshot captures the current entity/relationship state under a
// new snapshot ID.
func (m *Model) TakeSnapshot() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapID := fmt.Sprintf("world-%d", len(m.snapshots))
	entitiesCopy := make(map[string]interface{}, len(m.entities))
	for id, e := range m.entities {
		entitiesCopy[id] = map[string]interface{}{
			"name": e.Name, "type": string(e.EntityType), "state": e.State, "properties": e.Properties,
		}
	}
	m.snapshots = append(m.snapshots, map[string]interface{}{
		"snapshot_id":        snapID,
		"entities":           entitiesCopy,
		"relationship_count": len(m.relationships),
		"timestamp":          time.Now().UTC(),
	})
	return snapID
}

// GetEntity returns an entity by ID, or nil if not found.
func (m *Model) GetEntity(entityID string) *Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entities[entityID]
}

// FindByType returns all entities of the given type.
func (m *Model) FindByType(entityType EntityType) []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Entity
	for _, e := range m.entities {
		if e.EntityType == entityType {
			out = append(out, e)
		}
	}
	return out
}

// FindByState returns all entities currently in state.
func (m *Model) FindByState(state string) []*Entity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Entity
	for _, e := range m.entities {
		if e.State == state {
			out = append(out, e)
		}
	}
	return out
}

// EntityCount returns the number of tracked entities.
func (m *Model) EntityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entities)
}

// RelationshipCount returns the number of tracked relationships.
func (m *Model) RelationshipCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.relationships)
}

// PredictionCount returns the number of predictions made.
func (m *Model) PredictionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.predictions)
}

// SimulationCount returns the number of simulations run.
func (m *Model) SimulationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.simulations)
}

// SnapshotCount returns the number of snapshots taken.
func (m *Model) SnapshotCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.snapshots)
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
