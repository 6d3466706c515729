// Package attention implements ATLAS's attention management: focus
// allocation, priority-driven interruption, background task capacity,
// and context switching.
package attention

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// FocusState is the lifecycle state of an attention focus.
type FocusState string

const (
	FocusActive      FocusState = "active"
	FocusInterrupted FocusState = "interrupted"
	FocusSwitching   FocusState = "switching"
)

// Focus is a single allocation of attention capacity to a target.
type Focus struct {
	FocusID           string                 `json:"focus_id"`
	Target            string                 `json:"target"`
	Priority          int                    `json:"priority"`
	AllocatedCapacity float64                `json:"allocated_capacity"`
	Context           map[string]interface{} `json:"context"`
	State             FocusState             `json:"state"`
}

type backgroundTask struct {
	description string
	capacity    float64
	startedAt   time.Time
}

type savedContext struct {
	target   string
	priority int
	capacity float64
	context  map[string]interface{}
	savedAt  time.Time
}

// Interrupt records an attention interruption request and whether it
// preempted the current focus.
type Interrupt struct {
	Source      string    `json:"source"`
	Priority    int       `json:"priority"`
	Description string    `json:"description"`
	Accepted    bool       `json:"accepted"`
	Timestamp   time.Time `json:"timestamp"`
}

// SwitchResult describes the outcome of a context switch.
type SwitchResult struct {
	Switched   bool
	From       string
	To         string
	StackDepth int
}

// RestoreResult describes the outcome of restoring a saved context.
type RestoreResult struct {
	Restored bool
	Target   string
	FocusID  string
}

// Manager allocates, prioritizes, and transitions ATLAS's finite
// attention capacity across competing foci, background tasks, and
// interrupts.
type Manager struct {
	mu sync.Mutex

	focuses         map[string]*Focus
	totalCapacity   float64
	backgroundTasks map[string]backgroundTask
	interrupts      []Interrupt
	contextStack    []savedContext

	interruptLimiter *rate.Limiter
	logger           observability.Logger
}

// New creates a Manager with totalCapacity (defaulting to 1.0) and an
// interrupt-admission rate limiter allowing up to interruptsPerSecond
// interrupts (defaulting to 10/s, burst 10).
func New(totalCapacity float64, interruptsPerSecond float64, logger observability.Logger) *Manager {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if totalCapacity <= 0 {
		totalCapacity = 1.0
	}
	if interruptsPerSecond <= 0 {
		interruptsPerSecond = 10
	}

	m := &Manager{
		focuses:          make(map[string]*Focus),
		totalCapacity:    totalCapacity,
		backgroundTasks:  make(map[string]backgroundTask),
		interruptLimiter: rate.NewLimiter(rate.Limit(interruptsPerSecond), int(interruptsPerSecond)),
		logger:           logger,
	}
	m.logger.Info("attention manager started", map[string]interface{}{"total_capacity": totalCapacity})
	return m
}

// FocusOn allocates a new attention focus on target, returning nil if
// capacity is unavailable.
func (m *Manager) FocusOn(target string, priority int, capacity float64, context map[string]interface{}) *Focus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focusOnLocked(target, priority, capacity, context)
}

func (m *Manager) focusOnLocked(target string, priority int, capacity float64, context map[string]interface{}) *Focus {
	available := m.totalCapacity - m.usedCapacityLocked()
	if capacity > available {
		return nil
	}

	if context == nil {
		context = make(map[string]interface{})
	}
	focus := &Focus{
		FocusID:           uuid.NewString(),
		Target:            target,
		Priority:          clamp(priority, 1, 10),
		AllocatedCapacity: clampF(capacity, 0, 1),
		Context:           context,
		State:             FocusActive,
	}
	m.focuses[focus.FocusID] = focus

	m.logger.Info("focus created", map[string]interface{}{"target": target, "priority": priority, "capacity": capacity})
	return focus
}

// ReleaseFocus removes a focus by ID, reporting whether it existed.
func (m *Manager) ReleaseFocus(focusID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.releaseFocusLocked(focusID)
}

func (m *Manager) releaseFocusLocked(focusID string) bool {
	if _, ok := m.focuses[focusID]; !ok {
		return false
	}
	delete(m.focuses, focusID)
	return true
}

// Reprioritize changes a focus's priority, reporting whether it
// existed.
func (m *Manager) Reprioritize(focusID string, newPriority int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	focus, ok := m.focuses[focusID]
	if !ok {
		return false
	}
	focus.Priority = clamp(newPriority, 1, 10)
	return true
}

// GetHighestPriority returns the focus with the highest priority, or
// nil if there are none.
func (m *Manager) GetHighestPriority() *Focus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.highestPriorityLocked()
}

func (m *Manager) highestPriorityLocked() *Focus {
	var top *Focus
	for _, f := range m.focuses {
		if top == nil || f.Priority > top.Priority {
			top = f
		}
	}
	return top
}

// AddBackgroundTask reserves capacity for a background task, reporting
// whether capacity was available.
func (m *Manager) AddBackgroundTask(taskID, description string, capacity float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if capacity > m.totalCapacity-m.usedCapacityLocked() {
		return false
	}
	m.backgroundTasks[taskID] = backgroundTask{description: description, capacity: capacity, startedAt: time.Now().UTC()}
	return true
}

// RemoveBackgroundTask releases a background task's reserved capacity.
func (m *Manager) RemoveBackgroundTask(taskID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.backgroundTasks[taskID]; !ok {
		return false
	}
	delete(m.backgroundTasks, taskID)
	return true
}

// HandleInterrupt processes an interruption request, preempting the
// current highest-priority focus when priority exceeds it. Interrupts
// exceeding the admission rate limit are rejected outright before
// priority is even considered.
func (m *Manager) HandleInterrupt(source string, priority int, description string) Interrupt {
	if !m.interruptLimiter.Allow() {
		interrupt := Interrupt{Source: source, Priority: priority, Description: description, Accepted: false, Timestamp: time.Now().UTC()}
		m.mu.Lock()
		m.interrupts = append(m.interrupts, interrupt)
		m.mu.Unlock()
		return interrupt
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	currentTop := m.highestPriorityLocked()
	shouldSwitch := currentTop == nil || priority > currentTop.Priority

	interrupt := Interrupt{
		Source: source, Priority: priority, Description: description,
		Accepted: shouldSwitch, Timestamp: time.Now().UTC(),
	}
	m.interrupts = append(m.interrupts, interrupt)

	if shouldSwitch && currentTop != nil {
		currentTop.State = FocusInterrupted
		m.saveContextLocked(currentTop)
	}
	return interrupt
}

// SwitchContext moves attention from fromFocusID to toTarget, saving
// the prior focus on the context stack.
func (m *Manager) SwitchContext(fromFocusID, toTarget string, priority int) SwitchResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	capacity := 0.3
	if oldFocus, ok := m.focuses[fromFocusID]; ok {
		m.saveContextLocked(oldFocus)
		oldFocus.State = FocusSwitching
		capacity = oldFocus.AllocatedCapacity
		m.releaseFocusLocked(fromFocusID)
	}

	newFocus := m.focusOnLocked(toTarget, priority, capacity, nil)
	result := SwitchResult{Switched: newFocus != nil, From: fromFocusID, StackDepth: len(m.contextStack)}
	if newFocus != nil {
		result.To = newFocus.FocusID
	}
	return result
}

// RestoreContext pops and reactivates the most recently saved context.
func (m *Manager) RestoreContext() *RestoreResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.contextStack) == 0 {
		return nil
	}
	ctx := m.contextStack[len(m.contextStack)-1]
	m.contextStack = m.contextStack[:len(m.contextStack)-1]

	focus := m.focusOnLocked(ctx.target, ctx.priority, ctx.capacity, ctx.context)
	result := &RestoreResult{Restored: focus != nil, Target: ctx.target}
	if focus != nil {
		result.FocusID = focus.FocusID
	}
	return result
}

func (m *Manager) saveContextLocked(focus *Focus) {
	ctxCopy := make(map[string]interface{}, len(focus.Context))
	for k, v := range focus.Context {
		ctxCopy[k] = v
	}
	m.contextStack = append(m.contextStack, savedContext{
		target: focus.Target, priority: focus.Priority, capacity: focus.AllocatedCapacity,
		context: ctxCopy, savedAt: time.Now().UTC(),
	})
}

// GetFocus returns a focus by ID, or nil if not found.
func (m *Manager) GetFocus(focusID string) *Focus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.focuses[focusID]
}

// GetAllFocuses returns every active focus, sorted by descending
// priority.
func (m *Manager) GetAllFocuses() []Focus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Focus, 0, len(m.focuses))
	for _, f := range m.focuses {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// UsedCapacity returns currently allocated capacity across foci and
// background tasks.
func (m *Manager) UsedCapacity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedCapacityLocked()
}

func (m *Manager) usedCapacityLocked() float64 {
	total := 0.0
	for _, f := range m.focuses {
		total += f.AllocatedCapacity
	}
	for _, t := range m.backgroundTasks {
		total += t.capacity
	}
	return roundTo3(total)
}

// AvailableCapacity returns remaining unallocated capacity.
func (m *Manager) AvailableCapacity() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return roundTo3(m.totalCapacity - m.usedCapacityLocked())
}

// FocusCount returns the number of active foci.
func (m *Manager) FocusCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.focuses)
}

// BackgroundCount returns the number of active background tasks.
func (m *Manager) BackgroundCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.backgroundTasks)
}

// InterruptCount returns the number of interrupts processed.
func (m *Manager) InterruptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.interrupts)
}

// ContextDepth returns the current saved-context stack depth.
func (m *Manager) ContextDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.contextStack)
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

func roundTo3(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
