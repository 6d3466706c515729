// Package atlas assembles ATLAS's resilience fabric and unified
// intelligence core into a single facade: the system's central
// control point.
package atlas

import (
	"time"

	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/unified/action"
	"github.com/S-Corkum/atlas-core/pkg/unified/attention"
	"github.com/S-Corkum/atlas-core/pkg/unified/consciousness"
	"github.com/S-Corkum/atlas-core/pkg/unified/decision"
	"github.com/S-Corkum/atlas-core/pkg/unified/persona"
	"github.com/S-Corkum/atlas-core/pkg/unified/reasoning"
	"github.com/S-Corkum/atlas-core/pkg/unified/reflection"
	"github.com/S-Corkum/atlas-core/pkg/unified/world"
)

// Snapshot is a point-in-time summary of the whole core's state.
type Snapshot struct {
	ConsciousnessLevel string  `json:"consciousness_level"`
	ActiveFocuses      int     `json:"active_focuses"`
	WorldEntities      int     `json:"world_entities"`
	ReasoningChains    int     `json:"reasoning_chains"`
	DecisionsMade      int     `json:"decisions_made"`
	Reflections        int    `json:"reflections"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	OverallHealth      float64 `json:"overall_health"`
}

// PerceiveResult is the outcome of a perceive cycle.
type PerceiveResult struct {
	Perceived bool   `json:"perceived"`
	Source    string `json:"source"`
	EntityID  string `json:"entity_id"`
}

// ThinkResult is the outcome of a think cycle.
type ThinkResult struct {
	Question              string  `json:"question"`
	ChainID                string  `json:"chain_id"`
	Conclusion             string  `json:"conclusion"`
	ReasoningConfidence    float64 `json:"reasoning_confidence"`
	ConsciousnessLevel     string  `json:"consciousness_level"`
	ConsciousnessConfidence float64 `json:"consciousness_confidence"`
}

// DecideOption is one proposed option fed into a decide cycle.
type DecideOption struct {
	Source     decision.Source
	Action     string
	Confidence float64
	Reasoning  string
}

// DecideResult is the outcome of a decide cycle.
type DecideResult struct {
	Success      bool   `json:"success"`
	Reason       string `json:"reason,omitempty"`
	DecisionID   string `json:"decision_id,omitempty"`
	ChosenAction string `json:"chosen_action,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	Explanation  string `json:"explanation,omitempty"`
	Consistent   bool   `json:"consistent,omitempty"`
}

// RunCycleResult is the outcome of one full perceive-update control
// cycle.
type RunCycleResult struct {
	Cycle              int     `json:"cycle"`
	Perceptions        int     `json:"perceptions"`
	DurationSeconds    float64 `json:"duration_seconds"`
	ConsciousnessLevel string  `json:"consciousness_level"`
}

type coreEvent struct {
	Type      string
	Name      string
	Success   bool
	Timestamp time.Time
}

// Core wires together every unified-intelligence subsystem behind one
// perceive/think/decide/act/reflect surface.
type Core struct {
	Consciousness *consciousness.Consciousness
	Reasoning     *reasoning.Engine
	Attention     *attention.Manager
	World         *world.Model
	Decisions     *decision.Integrator
	Actions       *action.Coordinator
	Reflection    *reflection.Module
	Persona       *persona.Manager

	reflectionInterval time.Duration
	personaConsistency float64
	cycleCount         int
	events             []coreEvent
	logger             observability.Logger
}

// Options configures Core construction.
type Options struct {
	ConsciousnessLevel string
	ReasoningDepth     int
	ReflectionInterval time.Duration
	PersonaConsistency float64
	Logger             observability.Logger
}

// New assembles a fully wired Core from Options (sensible defaults
// apply to zero values).
func New(opts Options) *Core {
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	level := consciousness.LevelMedium
	switch opts.ConsciousnessLevel {
	case "low":
		level = consciousness.LevelLow
	case "high":
		level = consciousness.LevelHigh
	}

	depth := opts.ReasoningDepth
	if depth == 0 {
		depth = 10
	}

	interval := opts.ReflectionInterval
	if interval == 0 {
		interval = time.Hour
	}

	consistency := opts.PersonaConsistency
	if consistency == 0 {
		consistency = 0.8
	}

	c := &Core{
		Consciousness:      consciousness.New(level, logger),
		Reasoning:          reasoning.New(depth, logger),
		Attention:          attention.New(1.0, 10, logger),
		World:              world.New(logger),
		Decisions:          decision.New(logger),
		Actions:            action.New(logger),
		Reflection:         reflection.New(logger),
		Persona:            persona.New(logger),
		reflectionInterval: interval,
		personaConsistency: consistency,
		logger:             logger,
	}

	c.World.AddEntity("ATLAS", world.EntitySystem, "", map[string]interface{}{"role": "core", "version": "1.0"})
	c.logger.Info("atlas core started", map[string]interface{}{"consciousness_level": opts.ConsciousnessLevel, "reasoning_depth": depth})
	return c
}

// Perceive absorbs data from source, updating consciousness's
// environment model and the world model's entity graph.
func (c *Core) Perceive(source string, data map[string]interface{}) PerceiveResult {
	c.Consciousness.UpdateEnvironment(map[string]interface{}{source: data})

	var target *world.Entity
	for _, e := range c.World.FindByState("active") {
		if e.Name == source {
			target = e
			break
		}
	}

	if target == nil {
		target = c.World.AddEntity(source, world.EntityExternal, "", data)
	} else {
		c.World.UpdateEntity(target.EntityID, nil, data)
	}

	priority := 5
	if raw, ok := data["priority"]; ok {
		if v, ok := toInt(raw); ok {
			priority = clampInt(v, 1, 10)
		}
	}

	c.events = append(c.events, coreEvent{Type: "perception", Name: source, Timestamp: time.Now().UTC()})
	_ = priority

	return PerceiveResult{Perceived: true, Source: source, EntityID: target.EntityID}
}

// Think focuses attention on question, reasons logically over its
// premises, and introspects on the resulting confidence.
func (c *Core) Think(question string, premises []string) ThinkResult {
	if len(premises) == 0 {
		premises = []string{question}
	}

	focus := c.Attention.FocusOn(question, 7, 0.3, nil)
	chain := c.Reasoning.ReasonLogically(premises, nil)
	introspection := c.Consciousness.Introspect()

	if focus != nil {
		c.Attention.ReleaseFocus(focus.FocusID)
	}

	return ThinkResult{
		Question: question, ChainID: chain.ChainID, Conclusion: chain.Conclusion, ReasoningConfidence: chain.Confidence,
		ConsciousnessLevel: introspection.Level, ConsciousnessConfidence: introspection.Confidence,
	}
}

// Decide fuses options into a synthesized decision, checking the
// chosen action against the persona's consistency rules.
func (c *Core) Decide(question string, options []DecideOption) DecideResult {
	for _, opt := range options {
		source := opt.Source
		if source == "" {
			source = decision.SourceRuleBased
		}
		c.Decisions.AddProposal(question, source, opt.Action, opt.Confidence, opt.Reasoning)
	}

	dec := c.Decisions.Synthesize(question)
	if dec == nil {
		return DecideResult{Success: false, Reason: "synthesis produced no decision"}
	}

	consistency := c.Persona.CheckConsistency(dec.ChosenAction, persona.ActionContext{})

	return DecideResult{
		Success: true, DecisionID: dec.DecisionID, ChosenAction: dec.ChosenAction,
		Confidence: dec.Confidence, Explanation: dec.Explanation, Consistent: consistency.Consistent,
	}
}

// Act creates and immediately executes an action against targetSystems.
func (c *Core) Act(actionName string, targetSystems []string, parameters map[string]interface{}) action.ExecutionResult {
	created := c.Actions.CreateAction(actionName, targetSystems, parameters, 0, 0)
	result := c.Actions.ExecuteAction(created.ActionID)

	c.events = append(c.events, coreEvent{Type: "action", Name: actionName, Success: result.Success, Timestamp: time.Now().UTC()})
	return result
}

// ReflectResult is the outcome of a reflect cycle.
type ReflectResult struct {
	Cycle      int      `json:"cycle"`
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Findings   []string `json:"findings"`
	Overall    float64  `json:"overall"`
}

// Reflect runs a self-evaluation cycle across every subsystem.
func (c *Core) Reflect() ReflectResult {
	c.cycleCount++

	criteria := map[string]float64{
		"consciousness": minF(1.0, c.Consciousness.Uptime().Seconds()/3600),
		"attention":     1.0 - c.Attention.UsedCapacity(),
		"world_model":   minF(1.0, float64(c.World.EntityCount())/10),
		"decisions":     minF(1.0, float64(c.Decisions.TotalDecisions())/5),
		"actions":       minF(1.0, float64(c.Actions.CompletedActions())/5),
	}

	record := c.Reflection.SelfEvaluate(cycleLabel(c.cycleCount), criteria)
	confidence := c.Consciousness.AssessConfidence()

	return ReflectResult{
		Cycle: c.cycleCount, Score: record.Score, Confidence: confidence,
		Findings: record.Findings, Overall: c.Reflection.GetOverallScore(),
	}
}

// RunCycle executes one full perceive/update control cycle over
// inputs, each a source/data pair.
func (c *Core) RunCycle(inputs []PerceiveInput) RunCycleResult {
	start := time.Now().UTC()
	c.cycleCount++

	for _, in := range inputs {
		c.Perceive(in.Source, in.Data)
	}

	c.Consciousness.UpdateSelfState("processing")
	c.Consciousness.Introspect()
	c.Consciousness.UpdateSelfState("operational")

	return RunCycleResult{
		Cycle: c.cycleCount, Perceptions: len(inputs),
		DurationSeconds: time.Since(start).Seconds(), ConsciousnessLevel: string(c.Consciousness.Level()),
	}
}

// PerceiveInput is one perception fed into RunCycle.
type PerceiveInput struct {
	Source string
	Data   map[string]interface{}
}

// GetSnapshot returns a point-in-time summary across every subsystem.
func (c *Core) GetSnapshot() Snapshot {
	return Snapshot{
		ConsciousnessLevel: string(c.Consciousness.Level()),
		ActiveFocuses:      c.Attention.FocusCount(),
		WorldEntities:      c.World.EntityCount(),
		ReasoningChains:    c.Reasoning.TotalChains(),
		DecisionsMade:      c.Decisions.TotalDecisions(),
		Reflections:        c.Reflection.TotalRecords(),
		UptimeSeconds:      roundTo2(c.Consciousness.Uptime().Seconds()),
		OverallHealth:      roundTo3(c.Reflection.GetOverallScore()),
	}
}

// CycleCount returns the number of completed control cycles.
func (c *Core) CycleCount() int {
	return c.cycleCount
}

// EventCount returns the number of recorded perceive/act events.
func (c *Core) EventCount() int {
	return len(c.events)
}

func cycleLabel(n int) string {
	return "cycle " + itoa(n)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
