// Package fallback implements ATLAS's fully autonomous decision chain:
// programmed responses, local-inference-assisted rules, heuristics, and
// emergency protocols that restrict which actions remain permitted.
package fallback

import (
	"context"
	"fmt"
	"sync"

	"github.com/S-Corkum/atlas-core/pkg/observability"
	"github.com/S-Corkum/atlas-core/pkg/resilience/inference"
	"github.com/S-Corkum/atlas-core/pkg/resilience/state"
)

// EmergencyLevel is the system's current autonomy restriction level.
type EmergencyLevel string

const (
	EmergencyNormal   EmergencyLevel = "normal"
	EmergencyDegraded EmergencyLevel = "degraded"
	EmergencyLevel2   EmergencyLevel = "emergency"
	EmergencyCritical EmergencyLevel = "critical"
)

// Response is a single fallback decision.
type Response struct {
	Action     string  `json:"action"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"` // programmed | rule | heuristic | emergency
}

type protocolInfo struct {
	allowedActions []string
	description    string
}

var emergencyProtocols = map[EmergencyLevel]protocolInfo{
	EmergencyNormal:   {allowedActions: []string{"log", "notify", "auto_fix", "immediate"}, description: "normal mode, all actions permitted"},
	EmergencyDegraded: {allowedActions: []string{"log", "notify", "auto_fix"}, description: "degraded mode, immediate blocked"},
	EmergencyLevel2:   {allowedActions: []string{"log", "notify"}, description: "emergency, only log and notify permitted"},
	EmergencyCritical: {allowedActions: []string{"log"}, description: "critical, only logging permitted, all other actions halted"},
}

// programmedResponses are the built-in canned answers for known event
// types, consulted before any rule or heuristic path.
var programmedResponses = map[string]Response{
	"server_down": {
		Action:     "notify",
		Message:    "Server unreachable. Operator notified. Automatic restart in progress.",
		Confidence: 0.9,
		Source:     "programmed",
	},
	"database_failure": {
		Action:     "notify",
		Message:    "Database unreachable. Using local cache. Operations queued.",
		Confidence: 0.85,
		Source:     "programmed",
	},
	"api_unavailable": {
		Action:     "log",
		Message:    "External API unreachable. Local rule engine active. Operations will replay on reconnect.",
		Confidence: 0.8,
		Source:     "programmed",
	},
	"security_threat": {
		Action:     "notify",
		Message:    "Security threat detected. Conservative mode active: new connections blocked.",
		Confidence: 0.95,
		Source:     "programmed",
	},
	"high_load": {
		Action:     "log",
		Message:    "High load detected. Non-priority operations deferred.",
		Confidence: 0.85,
		Source:     "programmed",
	},
}

type riskUrgency struct {
	risk    string
	urgency string
}

// heuristicRules maps (risk, urgency) to (action, confidence). CRITICAL
// risk/urgency combinations are deliberately absent — they always fall
// to the notify default rather than auto_fix/immediate.
var heuristicRules = map[riskUrgency]struct {
	action     string
	confidence float64
}{
	{"low", "low"}:      {"log", 0.9},
	{"low", "medium"}:   {"log", 0.85},
	{"low", "high"}:     {"notify", 0.8},
	{"medium", "low"}:   {"log", 0.8},
	{"medium", "medium"}: {"notify", 0.75},
	{"medium", "high"}:  {"notify", 0.7},
	{"high", "low"}:     {"notify", 0.75},
	{"high", "medium"}:  {"notify", 0.7},
	{"high", "high"}:    {"notify", 0.9},
}

// AutonomousFallback keeps the system operating with no upstream
// dependency, by escalating through programmed responses, a local
// inference tier, and heuristics, all gated by the current emergency
// level.
type AutonomousFallback struct {
	mu               sync.RWMutex
	localInference   *inference.LocalInference
	stateStore       *state.Store
	emergencyLevel   EmergencyLevel
	customProtocols  map[string]Response
	logger           observability.Logger
}

// New creates an AutonomousFallback. Both localInference and
// stateStore are optional; nil disables that tier / emergency
// persistence respectively.
func New(localInference *inference.LocalInference, stateStore *state.Store, logger observability.Logger) *AutonomousFallback {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &AutonomousFallback{
		localInference:  localInference,
		stateStore:      stateStore,
		emergencyLevel:  EmergencyNormal,
		customProtocols: make(map[string]Response),
		logger:          logger,
	}
}

// EmergencyLevel returns the current emergency level.
func (a *AutonomousFallback) EmergencyLevel() EmergencyLevel {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.emergencyLevel
}

// GetProgrammedResponse returns a registered custom protocol if present,
// else a built-in programmed response, else nil.
func (a *AutonomousFallback) GetProgrammedResponse(eventType string) *Response {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if r, ok := a.customProtocols[eventType]; ok {
		return &r
	}
	if r, ok := programmedResponses[eventType]; ok {
		return &r
	}
	return nil
}

// MakeHeuristicDecision produces a rule-based decision from risk and
// urgency, restricted to whatever the current emergency level permits.
func (a *AutonomousFallback) MakeHeuristicDecision(risk, urgency string, detail string) Response {
	rule, ok := heuristicRules[riskUrgency{risk, urgency}]
	action, confidence := rule.action, rule.confidence
	if !ok {
		action, confidence = "notify", 0.5
	}

	a.mu.RLock()
	allowed := emergencyProtocols[a.emergencyLevel].allowedActions
	a.mu.RUnlock()

	if !containsAction(allowed, action) {
		action = lastOrDefault(allowed, "log")
		confidence *= 0.8
	}

	message := fmt.Sprintf("heuristic decision: risk=%s, urgency=%s. action=%s.", risk, urgency, action)
	if detail != "" {
		message += " detail: " + detail
	}

	return Response{Action: action, Message: message, Confidence: confidence, Source: "heuristic"}
}

// ActivateEmergencyProtocol transitions to level, persisting a
// snapshot of the transition when a state store is configured.
func (a *AutonomousFallback) ActivateEmergencyProtocol(ctx context.Context, level EmergencyLevel) {
	a.mu.Lock()
	oldLevel := a.emergencyLevel
	a.emergencyLevel = level
	a.mu.Unlock()

	info := emergencyProtocols[level]
	a.logger.Warn("emergency protocol active", map[string]interface{}{
		"old_level": string(oldLevel), "new_level": string(level), "description": info.description,
	})

	if a.stateStore == nil {
		return
	}
	_, err := a.stateStore.SaveSnapshot(ctx, "emergency", map[string]interface{}{
		"level":           string(level),
		"old_level":       string(oldLevel),
		"allowed_actions": info.allowedActions,
	})
	if err != nil {
		a.logger.Error("failed to persist emergency snapshot", map[string]interface{}{"error": err.Error()})
	}
}

// DeactivateEmergency resets the emergency level to normal.
func (a *AutonomousFallback) DeactivateEmergency() {
	a.mu.Lock()
	oldLevel := a.emergencyLevel
	a.emergencyLevel = EmergencyNormal
	a.mu.Unlock()
	a.logger.Info("emergency protocol deactivated", map[string]interface{}{"old_level": string(oldLevel)})
}

// Decide makes a fully autonomous decision for eventType, trying
// programmed responses, then local inference, then heuristics, in that
// order.
func (a *AutonomousFallback) Decide(ctx context.Context, eventType, risk, urgency, detail string) Response {
	if programmed := a.GetProgrammedResponse(eventType); programmed != nil {
		a.mu.RLock()
		allowed := emergencyProtocols[a.emergencyLevel].allowedActions
		a.mu.RUnlock()

		if containsAction(allowed, programmed.Action) {
			return *programmed
		}
		return Response{
			Action:     lastOrDefault(allowed, "log"),
			Message:    programmed.Message,
			Confidence: programmed.Confidence * 0.8,
			Source:     "programmed",
		}
	}

	if a.localInference != nil {
		resp, _ := a.localInference.Generate(ctx, fmt.Sprintf("risk=%s urgency=%s event=%s", risk, urgency, eventType))
		return Response{
			Action:     "notify",
			Message:    fmt.Sprintf("local inference decision: %s (risk=%s, urgency=%s): %s", eventType, risk, urgency, resp),
			Confidence: 0.6,
			Source:     "rule",
		}
	}

	return a.MakeHeuristicDecision(risk, urgency, detail)
}

// RegisterProtocol registers a custom programmed response, taking
// priority over the built-in table for eventType.
func (a *AutonomousFallback) RegisterProtocol(eventType string, response Response) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.customProtocols[eventType] = response
	a.logger.Info("custom protocol registered", map[string]interface{}{"event_type": eventType})
}

// GetRegisteredProtocols returns a copy of all registered custom
// protocols.
func (a *AutonomousFallback) GetRegisteredProtocols() map[string]Response {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]Response, len(a.customProtocols))
	for k, v := range a.customProtocols {
		out[k] = v
	}
	return out
}

func containsAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

func lastOrDefault(actions []string, def string) string {
	if len(actions) == 0 {
		return def
	}
	return actions[len(actions)-1]
}
