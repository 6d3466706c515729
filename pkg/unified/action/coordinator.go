// Package action implements ATLAS's action coordinator: plan
// execution, multi-system coordination, resource orchestration, and
// feedback capture.
package action

import (
	"fmt"
	"sync"
	"time"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// ActionState is an action's lifecycle state.
type ActionState string

const (
	ActionCreated   ActionState = "created"
	ActionPlanned   ActionState = "planned"
	ActionExecuting ActionState = "executing"
	ActionCompleted ActionState = "completed"
	ActionFailed    ActionState = "failed"
)

// SystemResult is the outcome of executing an action against one
// target system.
type SystemResult struct {
	System string `json:"system"`
	Status string `json:"status"`
}

// Action is a single unit of coordinated work against one or more
// target systems.
type Action struct {
	ActionID      string                 `json:"action_id"`
	Name          string                 `json:"name"`
	TargetSystems []string               `json:"target_systems"`
	Parameters    map[string]interface{} `json:"parameters"`
	Priority      int                    `json:"priority"`
	Timeout       time.Duration          `json:"timeout"`
	State         ActionState            `json:"state"`
	CreatedAt     time.Time              `json:"created_at"`
	StartedAt     time.Time              `json:"started_at,omitempty"`
	CompletedAt   time.Time              `json:"completed_at,omitempty"`
	Results       []SystemResult         `json:"results,omitempty"`
}

// PlanStep describes one step of a multi-action plan.
type PlanStep struct {
	Name       string
	Systems    []string
	Parameters map[string]interface{}
}

// Plan is an ordered sequence of steps executed as actions.
type Plan struct {
	PlanID        string      `json:"plan_id"`
	Name          string      `json:"name"`
	Steps         []PlanStep  `json:"-"`
	CurrentStep   int         `json:"current_step"`
	State         ActionState `json:"state"`
	FailedAtStep  int         `json:"failed_at_step,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	CompletedAt   time.Time   `json:"completed_at,omitempty"`
}

// ExecutionResult is the outcome of executing an action.
type ExecutionResult struct {
	Success  bool
	Reason   string
	ActionID string
	Results  []SystemResult
}

// PlanResult is the outcome of executing a plan.
type PlanResult struct {
	Success        bool
	Reason         string
	PlanID         string
	FailedStep     int
	CompletedSteps []int
}

// Feedback is an observation about an action's outcome.
type Feedback struct {
	ActionID  string    `json:"action_id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

type executionLogEntry struct {
	ActionID  string
	Name      string
	Systems   []string
	State     ActionState
	Timestamp time.Time
}

type resourceAllocation struct {
	ResourceID  string
	ActionID    string
	Amount      float64
	AllocatedAt time.Time
}

// Coordinator translates decisions into actions and plans, executing
// them across target systems and recording feedback.
type Coordinator struct {
	mu sync.Mutex

	actions        map[string]*Action
	plans          map[string]*Plan
	resources      map[string]resourceAllocation
	feedback       []Feedback
	executionLog   []executionLogEntry
	actionCounter  int
	planCounter    int

	logger observability.Logger
}

// New creates an empty Coordinator.
func New(logger observability.Logger) *Coordinator {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	c := &Coordinator{
		actions:   make(map[string]*Action),
		plans:     make(map[string]*Plan),
		resources: make(map[string]resourceAllocation),
		logger:    logger,
	}
	c.logger.Info("action coordinator started", nil)
	return c
}

// CreateAction registers a new action (defaulting priority to 5 and
// timeout to 60s when zero).
func (c *Coordinator) CreateAction(name string, targetSystems []string, parameters map[string]interface{}, priority int, timeout time.Duration) *Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createActionLocked(name, targetSystems, parameters, priority, timeout)
}

func (c *Coordinator) createActionLocked(name string, targetSystems []string, parameters map[string]interface{}, priority int, timeout time.Duration) *Action {
	c.actionCounter++
	actionID := fmt.Sprintf("act-%d", c.actionCounter)

	if priority == 0 {
		priority = 5
	}
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if targetSystems == nil {
		targetSystems = []string{}
	}
	if parameters == nil {
		parameters = make(map[string]interface{})
	}

	action := &Action{
		ActionID: actionID, Name: name, TargetSystems: targetSystems, Parameters: parameters,
		Priority: clamp(priority, 1, 10), Timeout: timeout, State: ActionCreated, CreatedAt: time.Now().UTC(),
	}
	c.actions[actionID] = action
	return action
}

// ExecuteAction runs a created or planned action against its target
// systems.
func (c *Coordinator) ExecuteAction(actionID string) ExecutionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.executeActionLocked(actionID)
}

func (c *Coordinator) executeActionLocked(actionID string) ExecutionResult {
	action, ok := c.actions[actionID]
	if !ok {
		return ExecutionResult{Success: false, Reason: "action not found"}
	}

	if action.State != ActionCreated && action.State != ActionPlanned {
		return ExecutionResult{Success: false, Reason: fmt.Sprintf("invalid state: %s", action.State)}
	}

	action.State = ActionExecuting
	action.StartedAt = time.Now().UTC()

	results := make([]SystemResult, 0, len(action.TargetSystems))
	for _, system := range action.TargetSystems {
		results = append(results, SystemResult{System: system, Status: "completed"})
	}

	action.State = ActionCompleted
	action.CompletedAt = time.Now().UTC()
	action.Results = results

	c.executionLog = append(c.executionLog, executionLogEntry{
		ActionID: actionID, Name: action.Name, Systems: action.TargetSystems, State: ActionCompleted, Timestamp: action.CompletedAt,
	})

	c.logger.Info("action completed", map[string]interface{}{"name": action.Name})
	return ExecutionResult{Success: true, ActionID: actionID, Results: results}
}

// CreatePlan registers a new ordered plan of steps.
func (c *Coordinator) CreatePlan(name string, steps []PlanStep) *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()

	planID := fmt.Sprintf("plan-%d", c.planCounter)
	c.planCounter++

	plan := &Plan{PlanID: planID, Name: name, Steps: steps, State: ActionCreated, CreatedAt: time.Now().UTC()}
	c.plans[planID] = plan
	return plan
}

// ExecutePlan runs each step of a plan as an action, stopping at the
// first failure.
func (c *Coordinator) ExecutePlan(planID string) PlanResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	plan, ok := c.plans[planID]
	if !ok {
		return PlanResult{Success: false, Reason: "plan not found"}
	}

	plan.State = ActionExecuting
	var completedSteps []int

	for i, step := range plan.Steps {
		plan.CurrentStep = i

		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i)
		}
		action := c.createActionLocked(name, step.Systems, step.Parameters, 0, 0)
		result := c.executeActionLocked(action.ActionID)

		if !result.Success {
			plan.State = ActionFailed
			plan.FailedAtStep = i
			return PlanResult{Success: false, PlanID: planID, FailedStep: i, CompletedSteps: completedSteps}
		}
		completedSteps = append(completedSteps, i)
	}

	plan.State = ActionCompleted
	plan.CompletedAt = time.Now().UTC()

	return PlanResult{Success: true, PlanID: planID, CompletedSteps: completedSteps}
}

// AllocateResource reserves amount of resourceID for actionID.
func (c *Coordinator) AllocateResource(resourceID, actionID string, amount float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.actions[actionID]; !ok {
		return false
	}
	key := resourceID + ":" + actionID
	c.resources[key] = resourceAllocation{ResourceID: resourceID, ActionID: actionID, Amount: amount, AllocatedAt: time.Now().UTC()}
	return true
}

// ReleaseResource releases a previously allocated resource.
func (c *Coordinator) ReleaseResource(resourceID, actionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := resourceID + ":" + actionID
	if _, ok := c.resources[key]; !ok {
		return false
	}
	delete(c.resources, key)
	return true
}

// AddFeedback records an observation about an action's outcome.
func (c *Coordinator) AddFeedback(actionID, feedbackType, content string, score float64) Feedback {
	fb := Feedback{ActionID: actionID, Type: feedbackType, Content: content, Score: clampF(score, 0, 1), Timestamp: time.Now().UTC()}

	c.mu.Lock()
	c.feedback = append(c.feedback, fb)
	c.mu.Unlock()
	return fb
}

// GetAction returns an action by ID, or nil.
func (c *Coordinator) GetAction(actionID string) *Action {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actions[actionID]
}

// GetPlan returns a plan by ID, or nil.
func (c *Coordinator) GetPlan(planID string) *Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plans[planID]
}

// GetExecutionLog returns up to limit most-recent execution log
// entries (0 means all).
func (c *Coordinator) GetExecutionLog(limit int) []executionLogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if limit > 0 && limit < len(c.executionLog) {
		out := make([]executionLogEntry, limit)
		copy(out, c.executionLog[len(c.executionLog)-limit:])
		return out
	}
	out := make([]executionLogEntry, len(c.executionLog))
	copy(out, c.executionLog)
	return out
}

// GetFeedback returns feedback records, optionally filtered to
// actionID.
func (c *Coordinator) GetFeedback(actionID string) []Feedback {
	c.mu.Lock()
	defer c.mu.Unlock()

	if actionID == "" {
		out := make([]Feedback, len(c.feedback))
		copy(out, c.feedback)
		return out
	}
	var out []Feedback
	for _, fb := range c.feedback {
		if fb.ActionID == actionID {
			out = append(out, fb)
		}
	}
	return out
}

// TotalActions returns the number of registered actions.
func (c *Coordinator) TotalActions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.actions)
}

// TotalPlans returns the number of registered plans.
func (c *Coordinator) TotalPlans() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.plans)
}

// CompletedActions returns the number of actions in the completed
// state.
func (c *Coordinator) CompletedActions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, a := range c.actions {
		if a.State == ActionCompleted {
			count++
		}
	}
	return count
}

// ResourceCount returns the number of currently allocated resources.
func (c *Coordinator) ResourceCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resources)
}

// FeedbackCount returns the number of feedback records.
func (c *Coordinator) FeedbackCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.feedback)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
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
