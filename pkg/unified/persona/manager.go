// Package persona implements ATLAS's persona manager: consistent
// personality traits, communication style, values, behavioral
// consistency checks, and adaptation to user preference.
package persona

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// Profile is the system's persistent personality profile.
type Profile struct {
	PersonaID          string             `json:"persona_id"`
	Name               string             `json:"name"`
	Traits             map[string]float64 `json:"traits"`
	Values             []string           `json:"values"`
	CommunicationStyle string             `json:"communication_style"`
	Formality          float64            `json:"formality"`
	Adaptability       float64            `json:"adaptability"`
}

// StyleSettings is the resolved communication style for a context.
type StyleSettings struct {
	Style     string  `json:"style"`
	Formality float64 `json:"formality"`
	Humor     float64 `json:"humor"`
	Detail    float64 `json:"detail"`
}

// ConsistencyResult is the outcome of a behavioral consistency check.
type ConsistencyResult struct {
	Consistent     bool     `json:"consistent"`
	Violations     []string `json:"violations"`
	ProposedAction string   `json:"proposed_action"`
}

// Adaptation is a record of a trait adjustment made for a user
// preference.
type Adaptation struct {
	Preference string             `json:"preference"`
	Adjustments map[string]float64 `json:"adjustments"`
	OldValues   map[string]float64 `json:"old_values"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Interaction is a recorded exchange with a satisfaction score.
type Interaction struct {
	Type         string    `json:"type"`
	Context      string    `json:"context"`
	Satisfaction float64   `json:"satisfaction"`
	Timestamp    time.Time `json:"timestamp"`
}

// ActionContext describes the situational flags a consistency check
// evaluates a proposed action against.
type ActionContext struct {
	Hidden     bool
	Risky      bool
	Aggressive bool
}

// Manager preserves and adapts a consistent personality.
type Manager struct {
	mu sync.RWMutex

	profile             Profile
	styleOverrides      map[string]string
	interactionHistory  []Interaction
	adaptations         []Adaptation

	logger observability.Logger
}

// New creates a Manager with ATLAS's default persona profile.
func New(logger observability.Logger) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	m := &Manager{
		profile: Profile{
			PersonaID: uuid.NewString()[:8],
			Name:      "ATLAS",
			Traits: map[string]float64{
				"professionalism":    0.8,
				"friendliness":       0.7,
				"assertiveness":      0.6,
				"patience":           0.8,
				"humor":              0.4,
				"detail_orientation": 0.7,
			},
			Values:             []string{"reliability", "efficiency", "transparency", "continuous_improvement"},
			CommunicationStyle: "professional",
			Formality:          0.5,
			Adaptability:       0.7,
		},
		styleOverrides: make(map[string]string),
		logger:         logger,
	}
	m.logger.Info("persona manager started", nil)
	return m
}

// SetTrait clamps and stores a personality trait value.
func (m *Manager) SetTrait(trait string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.Traits[trait] = clampF(value, 0, 1)
}

// GetTrait returns a trait's value (0.5 if unset).
func (m *Manager) GetTrait(trait string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.profile.Traits[trait]; ok {
		return v
	}
	return 0.5
}

// GetAllTraits returns an independent copy of every trait.
func (m *Manager) GetAllTraits() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]float64, len(m.profile.Traits))
	for k, v := range m.profile.Traits {
		out[k] = v
	}
	return out
}

// AddValue appends value to the persona's value set if not already
// present.
func (m *Manager) AddValue(value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.profile.Values {
		if v == value {
			return
		}
	}
	m.profile.Values = append(m.profile.Values, value)
}

// RemoveValue removes value, reporting whether it was present.
func (m *Manager) RemoveValue(value string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.profile.Values {
		if v == value {
			m.profile.Values = append(m.profile.Values[:i], m.profile.Values[i+1:]...)
			return true
		}
	}
	return false
}

// GetValues returns an independent copy of the persona's values.
func (m *Manager) GetValues() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.profile.Values))
	copy(out, m.profile.Values)
	return out
}

// SetCommunicationStyle sets the default communication style.
func (m *Manager) SetCommunicationStyle(style string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.CommunicationStyle = style
}

// SetFormality clamps and sets the baseline formality level.
func (m *Manager) SetFormality(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile.Formality = clampF(level, 0, 1)
}

// GetStyleForContext resolves communication settings for context,
// applying any registered override and context-specific formality
// adjustments.
func (m *Manager) GetStyleForContext(context string) StyleSettings {
	m.mu.RLock()
	defer m.mu.RUnlock()

	style := m.profile.CommunicationStyle
	if override, ok := m.styleOverrides[context]; ok {
		style = override
	}

	formality := m.profile.Formality
	switch context {
	case "emergency":
		formality = maxF(formality, 0.8)
	case "casual":
		formality = minF(formality, 0.3)
	}

	return StyleSettings{
		Style:     style,
		Formality: formality,
		Humor:     m.profile.Traits["humor"],
		Detail:    m.profile.Traits["detail_orientation"],
	}
}

// SetStyleOverride pins a communication style for a specific context.
func (m *Manager) SetStyleOverride(context, style string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.styleOverrides[context] = style
}

// RemoveStyleOverride removes a context's style override, reporting
// whether one existed.
func (m *Manager) RemoveStyleOverride(context string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.styleOverrides[context]; !ok {
		return false
	}
	delete(m.styleOverrides, context)
	return true
}

// CheckConsistency evaluates proposedAction against the persona's
// values and traits, returning any violations found.
func (m *Manager) CheckConsistency(proposedAction string, ctx ActionContext) ConsistencyResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var violations []string
	for _, value := range m.profile.Values {
		if value == "transparency" && ctx.Hidden {
			violations = append(violations, "violates transparency value: hidden operation")
		}
		if value == "reliability" && ctx.Risky {
			violations = append(violations, "violates reliability value: risky operation")
		}
	}

	assertiveness := m.profile.Traits["assertiveness"]
	if ctx.Aggressive && assertiveness < 0.3 {
		violations = append(violations, "aggressive behavior does not fit persona")
	}

	return ConsistencyResult{Consistent: len(violations) == 0, Violations: violations, ProposedAction: proposedAction}
}

// AdaptToUser nudges traits toward a user preference, bounded by the
// persona's adaptability.
func (m *Manager) AdaptToUser(userPreference string, adjustment map[string]float64) Adaptation {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldValues := make(map[string]float64, len(adjustment))
	for trait, delta := range adjustment {
		oldVal, ok := m.profile.Traits[trait]
		if !ok {
			oldVal = 0.5
		}
		oldValues[trait] = oldVal

		maxChange := m.profile.Adaptability * 0.3
		actualDelta := clampF(delta, -maxChange, maxChange)
		newVal := clampF(oldVal+actualDelta, 0, 1)
		m.profile.Traits[trait] = roundTo3(newVal)
	}

	adaptation := Adaptation{Preference: userPreference, Adjustments: adjustment, OldValues: oldValues, Timestamp: time.Now().UTC()}
	m.adaptations = append(m.adaptations, adaptation)
	return adaptation
}

// RecordInteraction appends an interaction to the history.
func (m *Manager) RecordInteraction(interactionType, context string, satisfaction float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactionHistory = append(m.interactionHistory, Interaction{
		Type: interactionType, Context: context, Satisfaction: clampF(satisfaction, 0, 1), Timestamp: time.Now().UTC(),
	})
}

// GetProfile returns a copy of the current persona profile.
func (m *Manager) GetProfile() Profile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	traits := make(map[string]float64, len(m.profile.Traits))
	for k, v := range m.profile.Traits {
		traits[k] = v
	}
	values := make([]string, len(m.profile.Values))
	copy(values, m.profile.Values)

	p := m.profile
	p.Traits = traits
	p.Values = values
	return p
}

// GetAdaptations returns every recorded adaptation.
func (m *Manager) GetAdaptations() []Adaptation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Adaptation, len(m.adaptations))
	copy(out, m.adaptations)
	return out
}

// GetInteractionHistory returns up to limit most-recent interactions
// (0 means all).
func (m *Manager) GetInteractionHistory(limit int) []Interaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit > 0 && limit < len(m.interactionHistory) {
		out := make([]Interaction, limit)
		copy(out, m.interactionHistory[len(m.interactionHistory)-limit:])
		return out
	}
	out := make([]Interaction, len(m.interactionHistory))
	copy(out, m.interactionHistory)
	return out
}

// TraitCount returns the number of personality traits.
func (m *Manager) TraitCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profile.Traits)
}

// ValueCount returns the number of held values.
func (m *Manager) ValueCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profile.Values)
}

// AdaptationCount returns the number of recorded adaptations.
func (m *Manager) AdaptationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.adaptations)
}

// InteractionCount returns the number of recorded interactions.
func (m *Manager) InteractionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.interactionHistory)
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
