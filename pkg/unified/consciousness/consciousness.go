// Package consciousness implements ATLAS's self-awareness layer: the
// system's understanding of its own state, goals, environment,
// capabilities, and limitations.
package consciousness

import (
	"sync"
	"time"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// Level is the system's current consciousness level.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Awareness is the system's current self-understanding.
type Awareness struct {
	SelfState    string                 `json:"self_state"`
	ActiveGoals  []string               `json:"active_goals"`
	Capabilities []string               `json:"capabilities"`
	Environment  map[string]interface{} `json:"environment"`
	Limitations  []string               `json:"limitations"`
	Confidence   float64                `json:"confidence"`
	Timestamp    time.Time              `json:"timestamp"`
}

// StateTransition records a self-state or level change.
type StateTransition struct {
	Type      string    `json:"type,omitempty"`
	OldState  string    `json:"old_state,omitempty"`
	NewState  string    `json:"new_state,omitempty"`
	OldLevel  string    `json:"old_level,omitempty"`
	NewLevel  string    `json:"new_level,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Introspection is a point-in-time self-examination result.
type Introspection struct {
	Level            string    `json:"level"`
	SelfState        string    `json:"self_state"`
	GoalCount        int       `json:"goal_count"`
	CapabilityCount  int       `json:"capability_count"`
	EnvironmentKeys  []string  `json:"environment_keys"`
	LimitationCount  int       `json:"limitation_count"`
	Confidence       float64   `json:"confidence"`
	UptimeSeconds    float64   `json:"uptime_seconds"`
	Timestamp        time.Time `json:"timestamp"`
}

// Consciousness tracks ATLAS's self-state, goals, environment, and
// capability awareness, producing introspection snapshots and
// confidence assessments on demand.
type Consciousness struct {
	mu sync.RWMutex

	level     Level
	awareness Awareness

	stateHistory   []StateTransition
	introspections []Introspection

	startedAt time.Time
	logger    observability.Logger
}

// New creates a Consciousness at initialLevel (defaulting to medium).
func New(initialLevel Level, logger observability.Logger) *Consciousness {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if initialLevel == "" {
		initialLevel = LevelMedium
	}
	c := &Consciousness{
		level: initialLevel,
		awareness: Awareness{
			Environment: make(map[string]interface{}),
			Timestamp:   time.Now().UTC(),
		},
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
	c.logger.Info("consciousness started", map[string]interface{}{"level": string(initialLevel)})
	return c
}

// UpdateSelfState records a new self-state, appending the transition to
// history.
func (c *Consciousness) UpdateSelfState(state string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.awareness.SelfState
	c.awareness.SelfState = state
	c.awareness.Timestamp = time.Now().UTC()
	c.stateHistory = append(c.stateHistory, StateTransition{
		OldState: old, NewState: state, Timestamp: time.Now().UTC(),
	})
}

// UpdateGoals replaces the active goal list.
func (c *Consciousness) UpdateGoals(goals []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awareness.ActiveGoals = append([]string(nil), goals...)
}

// UpdateCapabilities replaces the known capability list.
func (c *Consciousness) UpdateCapabilities(capabilities []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awareness.Capabilities = append([]string(nil), capabilities...)
}

// UpdateEnvironment merges env into the tracked environment snapshot.
func (c *Consciousness) UpdateEnvironment(env map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.awareness.Environment == nil {
		c.awareness.Environment = make(map[string]interface{})
	}
	for k, v := range env {
		c.awareness.Environment[k] = v
	}
}

// UpdateLimitations replaces the known limitation list.
func (c *Consciousness) UpdateLimitations(limitations []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.awareness.Limitations = append([]string(nil), limitations...)
}

// SetLevel changes the consciousness level, recording the transition.
func (c *Consciousness) SetLevel(level Level) {
	c.mu.Lock()
	old := c.level
	c.level = level
	c.stateHistory = append(c.stateHistory, StateTransition{
		Type: "level_change", OldLevel: string(old), NewLevel: string(level), Timestamp: time.Now().UTC(),
	})
	c.mu.Unlock()

	c.logger.Info("consciousness level changed", map[string]interface{}{"old_level": string(old), "new_level": string(level)})
}

// Introspect produces and records a self-examination snapshot.
func (c *Consciousness) Introspect() Introspection {
	c.mu.Lock()
	defer c.mu.Unlock()

	envKeys := make([]string, 0, len(c.awareness.Environment))
	for k := range c.awareness.Environment {
		envKeys = append(envKeys, k)
	}

	result := Introspection{
		Level:           string(c.level),
		SelfState:       c.awareness.SelfState,
		GoalCount:       len(c.awareness.ActiveGoals),
		CapabilityCount: len(c.awareness.Capabilities),
		EnvironmentKeys: envKeys,
		LimitationCount: len(c.awareness.Limitations),
		Confidence:      c.awareness.Confidence,
		UptimeSeconds:   time.Since(c.startedAt).Seconds(),
		Timestamp:       time.Now().UTC(),
	}
	c.introspections = append(c.introspections, result)
	return result
}

// AssessConfidence recomputes and stores an aggregate confidence score
// from goal, capability, environment, and limitation awareness.
func (c *Consciousness) AssessConfidence() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	factors := make([]float64, 0, 4)
	if len(c.awareness.ActiveGoals) > 0 {
		factors = append(factors, 0.8)
	} else {
		factors = append(factors, 0.3)
	}
	if len(c.awareness.Capabilities) > 0 {
		factors = append(factors, 0.9)
	} else {
		factors = append(factors, 0.4)
	}
	if len(c.awareness.Environment) > 0 {
		factors = append(factors, 0.7)
	} else {
		factors = append(factors, 0.3)
	}
	if len(c.awareness.Limitations) > 0 {
		factors = append(factors, 0.8)
	} else {
		factors = append(factors, 0.5)
	}

	sum := 0.0
	for _, f := range factors {
		sum += f
	}
	confidence := roundTo3(sum / float64(len(factors)))
	c.awareness.Confidence = confidence
	return confidence
}

// GetAwareness returns a copy of the current awareness state.
func (c *Consciousness) GetAwareness() Awareness {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a := c.awareness
	a.Environment = make(map[string]interface{}, len(c.awareness.Environment))
	for k, v := range c.awareness.Environment {
		a.Environment[k] = v
	}
	a.ActiveGoals = append([]string(nil), c.awareness.ActiveGoals...)
	a.Capabilities = append([]string(nil), c.awareness.Capabilities...)
	a.Limitations = append([]string(nil), c.awareness.Limitations...)
	return a
}

// GetStateHistory returns up to limit most-recent transitions (0 means
// all).
func (c *Consciousness) GetStateHistory(limit int) []StateTransition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lastN(c.stateHistory, limit)
}

// GetIntrospections returns up to limit most-recent introspections (0
// means all).
func (c *Consciousness) GetIntrospections(limit int) []Introspection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lastN(c.introspections, limit)
}

// Level returns the current consciousness level.
func (c *Consciousness) Level() Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.level
}

// Uptime returns how long this Consciousness has been running.
func (c *Consciousness) Uptime() time.Duration {
	return time.Since(c.startedAt)
}

// IntrospectionCount returns the number of introspections recorded.
func (c *Consciousness) IntrospectionCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.introspections)
}

func lastN[T any](items []T, limit int) []T {
	if limit > 0 && limit < len(items) {
		out := make([]T, limit)
		copy(out, items[len(items)-limit:])
		return out
	}
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
