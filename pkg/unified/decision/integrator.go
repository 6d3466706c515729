// Package decision implements ATLAS's decision integrator: weighted
// fusion of proposals from multiple decision sources (BDI,
// probabilistic, reinforcement, emotional, rule-based, consensus),
// conflict detection, and manual conflict resolution.
package decision

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// Source identifies which decision system a proposal came from.
type Source string

const (
	SourceBDI           Source = "bdi"
	SourceProbabilistic Source = "probabilistic"
	SourceReinforcement Source = "reinforcement"
	SourceEmotional     Source = "emotional"
	SourceRuleBased     Source = "rule_based"
	SourceConsensus     Source = "consensus"
)

var defaultSourceWeights = map[Source]float64{
	SourceBDI:           0.25,
	SourceProbabilistic: 0.20,
	SourceReinforcement: 0.20,
	SourceEmotional:     0.10,
	SourceRuleBased:     0.15,
	SourceConsensus:     0.10,
}

// proposalSchema validates the structural shape of an incoming
// proposal before it is admitted into the integrator.
var proposalSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["source", "action"],
	"properties": {
		"source": {"type": "string", "minLength": 1},
		"action": {"type": "string", "minLength": 1},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reasoning": {"type": "string"}
	}
}`)

// Proposal is a single decision-source recommendation for a question.
type Proposal struct {
	Source     Source    `json:"source"`
	Action     string    `json:"action"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Timestamp  time.Time `json:"timestamp"`
}

// Decision is a synthesized outcome for a question, fusing one or more
// source proposals.
type Decision struct {
	DecisionID   string    `json:"decision_id"`
	Question     string    `json:"question"`
	ChosenAction string    `json:"chosen_action"`
	Sources      []Source  `json:"sources"`
	Confidence   float64   `json:"confidence"`
	Reasoning    string    `json:"reasoning"`
	Alternatives []string  `json:"alternatives"`
	Explanation  string    `json:"explanation"`
	Timestamp    time.Time `json:"timestamp"`
}

// Conflict records a question where the top two weighted scores were
// within 0.05 of each other.
type Conflict struct {
	Question  string             `json:"question"`
	Options   map[string]float64 `json:"options"`
	Timestamp time.Time          `json:"timestamp"`
}

// Integrator fuses proposals from multiple decision sources into a
// single weighted decision, detecting and recording close-call
// conflicts along the way.
type Integrator struct {
	mu sync.Mutex

	decisions     map[string]*Decision
	sourceWeights map[Source]float64
	proposals     map[string][]Proposal
	conflicts     []Conflict

	logger observability.Logger
}

// New creates an Integrator with the default source weight table.
func New(logger observability.Logger) *Integrator {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	weights := make(map[Source]float64, len(defaultSourceWeights))
	for k, v := range defaultSourceWeights {
		weights[k] = v
	}
	i := &Integrator{
		decisions:     make(map[string]*Decision),
		sourceWeights: weights,
		proposals:     make(map[string][]Proposal),
		logger:        logger,
	}
	i.logger.Info("decision integrator started", nil)
	return i
}

// AddProposal validates and records a proposal for question, returning
// a validation error if the proposal's shape is malformed.
func (i *Integrator) AddProposal(question string, source Source, action string, confidence float64, reasoning string) (string, error) {
	payload, _ := json.Marshal(map[string]interface{}{
		"source": string(source), "action": action, "confidence": confidence, "reasoning": reasoning,
	})
	result, err := gojsonschema.Validate(proposalSchema, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return "", fmt.Errorf("proposal validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return "", fmt.Errorf("invalid proposal: %s", strings.Join(msgs, "; "))
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.proposals[question] = append(i.proposals[question], Proposal{
		Source: source, Action: action, Confidence: clampF(confidence, 0, 1), Reasoning: reasoning, Timestamp: time.Now().UTC(),
	})
	return question, nil
}

// Synthesize fuses every proposal registered for question into a
// single weighted decision, returning nil if none are registered.
func (i *Integrator) Synthesize(question string) *Decision {
	i.mu.Lock()
	defer i.mu.Unlock()

	props := i.proposals[question]
	if len(props) == 0 {
		return nil
	}

	scored := make(map[string]float64)
	sourcesMap := make(map[string][]Source)

	for _, p := range props {
		weight, ok := i.sourceWeights[p.Source]
		if !ok {
			weight = 0.1
		}
		scored[p.Action] += p.Confidence * weight
		sourcesMap[p.Action] = append(sourcesMap[p.Action], p.Source)
	}

	bestAction := ""
	bestScore := -1.0
	// Actions in order of first proposal, so ties go to the earliest.
	actions := make([]string, 0, len(scored))
	seen := make(map[string]bool, len(scored))
	for _, p := range props {
		if !seen[p.Action] {
			seen[p.Action] = true
			actions = append(actions, p.Action)
		}
	}
	for _, action := range actions {
		if scored[action] > bestScore {
			bestScore = scored[action]
			bestAction = action
		}
	}

	var alternatives []string
	for _, action := range actions {
		if action != bestAction {
			alternatives = append(alternatives, action)
		}
	}

	if len(scored) > 1 {
		values := make([]float64, 0, len(scored))
		for _, v := range scored {
			values = append(values, v)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(values)))
		if len(values) >= 2 && values[0]-values[1] < 0.05 {
			options := make(map[string]float64, len(scored))
			for k, v := range scored {
				options[k] = v
			}
			i.conflicts = append(i.conflicts, Conflict{Question: question, Options: options, Timestamp: time.Now().UTC()})
		}
	}

	totalWeight := 0.0
	for _, source := range sourcesMap[bestAction] {
		weight, ok := i.sourceWeights[source]
		if !ok {
			weight = 0.1
		}
		totalWeight += weight
	}
	overallConfidence := roundTo3(scored[bestAction] / maxF(totalWeight, 0.01))
	overallConfidence = minF(1.0, overallConfidence)

	explanation := i.generateExplanation(bestAction, props, scored)

	decision := &Decision{
		DecisionID: uuid.NewString(), Question: question, ChosenAction: bestAction,
		Sources: sourcesMap[bestAction], Confidence: overallConfidence, Reasoning: props[0].Reasoning,
		Alternatives: alternatives, Explanation: explanation, Timestamp: time.Now().UTC(),
	}
	i.decisions[decision.DecisionID] = decision

	i.logger.Info("decision synthesized", map[string]interface{}{
		"question": question, "chosen_action": bestAction, "confidence": overallConfidence,
	})
	return decision
}

// ResolveConflict manually overrides synthesis with chosenAction,
// recording reason as the explanation.
func (i *Integrator) ResolveConflict(question, chosenAction, reason string) *Decision {
	i.mu.Lock()
	defer i.mu.Unlock()

	props := i.proposals[question]
	if len(props) == 0 {
		return nil
	}

	var sources []Source
	for _, p := range props {
		if p.Action == chosenAction {
			sources = append(sources, p.Source)
		}
	}

	decision := &Decision{
		DecisionID: uuid.NewString(), Question: question, ChosenAction: chosenAction,
		Sources: sources, Confidence: 0.9, Reasoning: reason,
		Explanation: fmt.Sprintf("manual resolution: %s", reason), Timestamp: time.Now().UTC(),
	}
	i.decisions[decision.DecisionID] = decision
	return decision
}

// SetSourceWeight overrides the fusion weight for source.
func (i *Integrator) SetSourceWeight(source Source, weight float64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.sourceWeights[source] = clampF(weight, 0, 1)
}

// GetSourceWeight returns source's current fusion weight (0.1 if
// unregistered).
func (i *Integrator) GetSourceWeight(source Source) float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if w, ok := i.sourceWeights[source]; ok {
		return w
	}
	return 0.1
}

func (i *Integrator) generateExplanation(chosen string, proposals []Proposal, scores map[string]float64) string {
	var supporting []string
	for _, p := range proposals {
		if p.Action == chosen {
			supporting = append(supporting, string(p.Source))
		}
	}
	return fmt.Sprintf("'%s' chosen. Supporters: %s. Score: %.3f.", chosen, strings.Join(supporting, ", "), scores[chosen])
}

// GetDecision returns a synthesized decision by ID, or nil.
func (i *Integrator) GetDecision(decisionID string) *Decision {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.decisions[decisionID]
}

// GetProposals returns every proposal registered for question.
func (i *Integrator) GetProposals(question string) []Proposal {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Proposal, len(i.proposals[question]))
	copy(out, i.proposals[question])
	return out
}

// GetConflicts returns every recorded conflict.
func (i *Integrator) GetConflicts() []Conflict {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]Conflict, len(i.conflicts))
	copy(out, i.conflicts)
	return out
}

// TotalDecisions returns the number of synthesized/resolved decisions.
func (i *Integrator) TotalDecisions() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.decisions)
}

// TotalProposals returns the number of proposals registered across all
// questions.
func (i *Integrator) TotalProposals() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	total := 0
	for _, v := range i.proposals {
		total += len(v)
	}
	return total
}

// ConflictCount returns the number of recorded conflicts.
func (i *Integrator) ConflictCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.conflicts)
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

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
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
