// Package reasoning implements ATLAS's reasoning engine: logical,
// analogical, causal, abductive, and meta reasoning chains.
package reasoning

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// Type identifies a reasoning chain's strategy.
type Type string

const (
	TypeLogical    Type = "logical"
	TypeAnalogical Type = "analogical"
	TypeCausal     Type = "causal"
	TypeAbductive  Type = "abductive"
	TypeMeta       Type = "meta"
)

// Chain is a single reasoning conclusion, with its contributing steps.
type Chain struct {
	ChainID       string                 `json:"chain_id"`
	ReasoningType Type                   `json:"reasoning_type"`
	Premises      []string               `json:"premises"`
	Conclusion    string                 `json:"conclusion"`
	Steps         []map[string]interface{} `json:"steps"`
	Confidence    float64                `json:"confidence"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

type rule struct {
	condition   string
	consequence string
	description string
}

type analogy struct {
	source   string
	target   string
	strength float64
}

type causalLink struct {
	cause    string
	effect   string
	strength float64
}

// Engine produces and catalogs reasoning chains across multiple
// inference strategies.
type Engine struct {
	mu sync.Mutex

	chains      map[string]*Chain
	rules       map[string]rule
	analogies   []analogy
	causalLinks []causalLink
	maxDepth    int

	logger observability.Logger
}

// New creates a reasoning Engine with the given max chaining depth
// (defaulting to 10).
func New(maxDepth int, logger observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if maxDepth <= 0 {
		maxDepth = 10
	}
	e := &Engine{
		chains:   make(map[string]*Chain),
		rules:    make(map[string]rule),
		maxDepth: maxDepth,
		logger:   logger,
	}
	e.logger.Info("reasoning engine started", map[string]interface{}{"max_depth": maxDepth})
	return e
}

// ReasonLogically derives a conclusion from premises, applying any
// named rules that are registered.
func (e *Engine) ReasonLogically(premises []string, ruleNames []string) *Chain {
	e.mu.Lock()
	defer e.mu.Unlock()

	var steps []map[string]interface{}
	var appliedRules []string

	for _, premise := range premises {
		steps = append(steps, map[string]interface{}{"type": "premise", "content": premise})
	}

	for _, name := range ruleNames {
		if r, ok := e.rules[name]; ok {
			steps = append(steps, map[string]interface{}{"type": "rule_application", "rule": name, "description": r.description})
			appliedRules = append(appliedRules, name)
		}
	}

	conclusion := fmt.Sprintf("conclusion: %d premises, %d rules", len(premises), len(appliedRules))
	if len(premises) > 0 {
		conclusion = fmt.Sprintf("%s (verified)", premises[len(premises)-1])
	}

	chain := &Chain{
		ChainID: uuid.NewString(), ReasoningType: TypeLogical, Premises: premises, Conclusion: conclusion,
		Steps: steps, Confidence: minF(0.9, 0.5+float64(len(premises))*0.1),
		Metadata: map[string]interface{}{"rules_applied": appliedRules},
	}
	e.chains[chain.ChainID] = chain
	return chain
}

// ReasonAnalogically draws a conclusion mapping sourceDomain onto
// targetDomain, boosting confidence when a prior registered analogy
// matches either domain.
func (e *Engine) ReasonAnalogically(sourceDomain, targetDomain string, mappings map[string]string) *Chain {
	e.mu.Lock()
	defer e.mu.Unlock()

	if mappings == nil {
		mappings = make(map[string]string)
	}
	steps := []map[string]interface{}{
		{"type": "source", "domain": sourceDomain},
		{"type": "target", "domain": targetDomain},
		{"type": "mapping", "pairs": mappings},
	}

	similarity := 0.3
	for _, a := range e.analogies {
		if a.source == sourceDomain || a.target == targetDomain {
			similarity = maxF(similarity, a.strength)
		}
	}

	conclusion := fmt.Sprintf("%s -> %s: %d mappings", sourceDomain, targetDomain, len(mappings))
	chain := &Chain{
		ChainID: uuid.NewString(), ReasoningType: TypeAnalogical, Premises: []string{sourceDomain, targetDomain},
		Conclusion: conclusion, Steps: steps, Confidence: roundTo3(similarity),
	}
	e.chains[chain.ChainID] = chain
	return chain
}

// ReasonCausally infers effects of cause, cross-checking against
// registered causal links and any directly observed effects. When no
// causal links are registered, confidence falls back to 0.5.
func (e *Engine) ReasonCausally(cause string, observedEffects []string) *Chain {
	e.mu.Lock()
	defer e.mu.Unlock()

	steps := []map[string]interface{}{{"type": "cause", "content": cause}}

	var predictedEffects []string
	for _, link := range e.causalLinks {
		if link.cause == cause {
			predictedEffects = append(predictedEffects, link.effect)
			steps = append(steps, map[string]interface{}{"type": "causal_link", "effect": link.effect, "strength": link.strength})
		}
	}
	for _, effect := range observedEffects {
		steps = append(steps, map[string]interface{}{"type": "observed_effect", "content": effect})
	}

	verified := 0
	observedSet := make(map[string]bool, len(observedEffects))
	for _, eff := range observedEffects {
		observedSet[eff] = true
	}
	seen := make(map[string]bool)
	for _, pe := range predictedEffects {
		if seen[pe] {
			continue
		}
		seen[pe] = true
		if observedSet[pe] {
			verified++
		}
	}

	confidence := 0.5
	if len(predictedEffects) > 0 {
		confidence = float64(verified) / float64(len(predictedEffects))
	}

	premises := append([]string{cause}, observedEffects...)
	chain := &Chain{
		ChainID: uuid.NewString(), ReasoningType: TypeCausal, Premises: premises,
		Conclusion: fmt.Sprintf("%s -> %d effects", cause, len(observedEffects)),
		Steps:      steps, Confidence: roundTo3(minF(1.0, confidence)),
	}
	e.chains[chain.ChainID] = chain
	return chain
}

type scoredHypothesis struct {
	Hypothesis string  `json:"hypothesis"`
	Score      float64 `json:"score"`
}

// ReasonAbductively selects the best explanation for observations
// among hypotheses. Every hypothesis receives the same score, 0.3 plus
// 0.1 per observation (capped at 1.0), so the first hypothesis is
// chosen; with no hypotheses the conclusion is "uncertain" at 0.3.
func (e *Engine) ReasonAbductively(observations []string, hypotheses []string) *Chain {
	e.mu.Lock()
	defer e.mu.Unlock()

	var steps []map[string]interface{}
	for _, obs := range observations {
		steps = append(steps, map[string]interface{}{"type": "observation", "content": obs})
	}

	scored := make([]scoredHypothesis, 0, len(hypotheses))
	for _, hyp := range hypotheses {
		score := roundTo3(minF(1.0, 0.3+float64(len(observations))*0.1))
		scored = append(scored, scoredHypothesis{Hypothesis: hyp, Score: score})
		steps = append(steps, map[string]interface{}{"type": "hypothesis", "content": hyp, "score": score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	best := scoredHypothesis{Hypothesis: "uncertain", Score: 0.3}
	if len(scored) > 0 {
		best = scored[0]
	}

	chain := &Chain{
		ChainID: uuid.NewString(), ReasoningType: TypeAbductive, Premises: observations,
		Conclusion: fmt.Sprintf("best explanation: %s", best.Hypothesis),
		Steps:      steps, Confidence: best.Score,
		Metadata: map[string]interface{}{"all_hypotheses": scored},
	}
	e.chains[chain.ChainID] = chain
	return chain
}

// MetaReason evaluates a set of prior chains and selects the most
// confident conclusion.
func (e *Engine) MetaReason(chainIDs []string) *Chain {
	e.mu.Lock()
	defer e.mu.Unlock()

	type evaluated struct {
		ChainID       string  `json:"chain_id"`
		Type          string  `json:"type"`
		Confidence    float64 `json:"confidence"`
		Conclusion    string  `json:"conclusion"`
	}

	var evaluatedChains []evaluated
	var steps []map[string]interface{}
	totalConfidence := 0.0

	for _, cid := range chainIDs {
		chain, ok := e.chains[cid]
		if !ok {
			continue
		}
		evaluatedChains = append(evaluatedChains, evaluated{
			ChainID: cid, Type: string(chain.ReasoningType), Confidence: chain.Confidence, Conclusion: chain.Conclusion,
		})
		totalConfidence += chain.Confidence
		steps = append(steps, map[string]interface{}{
			"type": "evaluate", "chain_id": cid, "reasoning_type": string(chain.ReasoningType), "confidence": chain.Confidence,
		})
	}

	avgConf := 0.0
	if len(evaluatedChains) > 0 {
		avgConf = totalConfidence / float64(len(evaluatedChains))
	}

	conclusion := "insufficient data"
	premises := make([]string, 0, len(evaluatedChains))
	if len(evaluatedChains) > 0 {
		best := evaluatedChains[0]
		for _, ec := range evaluatedChains {
			if ec.Confidence > best.Confidence {
				best = ec
			}
			premises = append(premises, ec.ChainID)
		}
		conclusion = fmt.Sprintf("meta analysis: %s (most confident)", best.Conclusion)
	}

	chain := &Chain{
		ChainID: uuid.NewString(), ReasoningType: TypeMeta, Premises: premises, Conclusion: conclusion,
		Steps: steps, Confidence: roundTo3(avgConf), Metadata: map[string]interface{}{"evaluated": evaluatedChains},
	}
	e.chains[chain.ChainID] = chain
	return chain
}

// AddRule registers a named logical rule for use in ReasonLogically.
func (e *Engine) AddRule(name, condition, consequence, description string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[name] = rule{condition: condition, consequence: consequence, description: description}
}

// AddAnalogy registers a source/target analogy pair.
func (e *Engine) AddAnalogy(source, target string, strength float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.analogies = append(e.analogies, analogy{source: source, target: target, strength: clampF(strength, 0, 1)})
}

// AddCausalLink registers a known cause/effect relationship.
func (e *Engine) AddCausalLink(cause, effect string, strength float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.causalLinks = append(e.causalLinks, causalLink{cause: cause, effect: effect, strength: clampF(strength, 0, 1)})
}

// GetChain returns a chain by ID, or nil if not found.
func (e *Engine) GetChain(chainID string) *Chain {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.chains[chainID]
}

// GetChainsByType returns every chain of the given reasoning type.
func (e *Engine) GetChainsByType(reasoningType Type) []*Chain {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*Chain
	for _, c := range e.chains {
		if c.ReasoningType == reasoningType {
			out = append(out, c)
		}
	}
	return out
}

// TotalChains returns the number of chains produced.
func (e *Engine) TotalChains() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.chains)
}

// RuleCount returns the number of registered rules.
func (e *Engine) RuleCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rules)
}

// AnalogyCount returns the number of registered analogies.
func (e *Engine) AnalogyCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.analogies)
}

// CausalLinkCount returns the number of registered causal links.
func (e *Engine) CausalLinkCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.causalLinks)
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

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
