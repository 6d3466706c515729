// Package reflection implements ATLAS's reflection module:
// self-evaluation, performance analysis, bias detection, improvement
// identification, and learning consolidation.
package reflection

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/S-Corkum/atlas-core/pkg/observability"
)

// Type identifies the kind of reflection a record captures.
type Type string

const (
	TypeSelfEvaluation Type = "self_evaluation"
	TypePerformance    Type = "performance"
	TypeBiasCheck      Type = "bias_check"
	TypeImprovement    Type = "improvement"
	TypeConsolidation  Type = "consolidation"
)

// Record is a single reflection outcome.
type Record struct {
	RecordID        string    `json:"record_id"`
	ReflectionType  Type      `json:"reflection_type"`
	Subject         string    `json:"subject"`
	Findings        []string  `json:"findings"`
	Improvements    []string  `json:"improvements"`
	Score           float64   `json:"score"`
	Timestamp       time.Time `json:"timestamp"`
}

// Bias is a detected cognitive or systemic bias.
type Bias struct {
	Context     string    `json:"context"`
	Observation string    `json:"observation"`
	Type        string    `json:"type"`
	Severity    float64   `json:"severity"`
	Timestamp   time.Time `json:"timestamp"`
}

// Improvement is an identified opportunity to close a gap between a
// current and desired state.
type Improvement struct {
	Area     string    `json:"area"`
	Current  string    `json:"current"`
	Desired  string    `json:"desired"`
	Priority string    `json:"priority"`
	Actions  []string  `json:"actions"`
	Timestamp time.Time `json:"timestamp"`
}

// Consolidation is a durable record of a learned insight.
type Consolidation struct {
	Topic      string    `json:"topic"`
	Insights   []string  `json:"insights"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// Module evaluates and improves the system's own performance.
type Module struct {
	mu sync.RWMutex

	records        map[string]*Record
	metrics        map[string][]float64
	biases         []Bias
	improvements   []Improvement
	consolidations []Consolidation

	logger observability.Logger
}

// New creates an empty Module.
func New(logger observability.Logger) *Module {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	m := &Module{
		records: make(map[string]*Record),
		metrics: make(map[string][]float64),
		logger:  logger,
	}
	m.logger.Info("reflection module started", nil)
	return m
}

// SelfEvaluate scores subject against a criterion->score map,
// classifying each criterion as good/fair/weak.
func (m *Module) SelfEvaluate(subject string, criteria map[string]float64) *Record {
	var findings []string
	total := 0.0

	for criterion, score := range criteria {
		clamped := clampF(score, 0, 1)
		total += clamped
		switch {
		case clamped >= 0.7:
			findings = append(findings, fmtFinding(criterion, "good", clamped))
		case clamped >= 0.4:
			findings = append(findings, fmtFinding(criterion, "fair", clamped))
		default:
			findings = append(findings, fmtFinding(criterion, "weak", clamped))
		}
	}

	avg := 0.5
	if len(criteria) > 0 {
		avg = total / float64(len(criteria))
	}

	record := &Record{
		RecordID: uuid.NewString(), ReflectionType: TypeSelfEvaluation, Subject: subject,
		Findings: findings, Score: roundTo3(avg), Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	m.records[record.RecordID] = record
	m.mu.Unlock()

	m.logger.Info("self-evaluation recorded", map[string]interface{}{"subject": subject, "score": record.Score})
	return record
}

// AnalyzePerformance appends values to metricName's history and
// produces a trend-aware reflection record.
func (m *Module) AnalyzePerformance(metricName string, values []float64) *Record {
	m.mu.Lock()
	m.metrics[metricName] = append(m.metrics[metricName], values...)
	m.mu.Unlock()

	var findings, improvements []string
	score := 0.5

	if len(values) > 0 {
		sum := 0.0
		min, max := values[0], values[0]
		for _, v := range values {
			sum += v
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		avg := sum / float64(len(values))

		trend := "stable"
		if len(values) >= 2 {
			if values[len(values)-1] > values[0] {
				trend = "rising"
			} else if values[len(values)-1] < values[0] {
				trend = "falling"
			}
		}

		findings = append(findings, fmtAvg(avg), fmtTrend(trend), fmtMinMax(min, max))

		if trend == "falling" {
			improvements = append(improvements, metricName+" decline should be investigated")
		}

		if avg >= 0 && avg <= 1 {
			score = roundTo3(avg)
		}
	}

	record := &Record{
		RecordID: uuid.NewString(), ReflectionType: TypePerformance, Subject: metricName,
		Findings: findings, Improvements: improvements, Score: score, Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	m.records[record.RecordID] = record
	m.mu.Unlock()
	return record
}

// DetectBias records a bias observation (severity is clamped to [0, 1];
// biasType defaults to "unknown" when empty).
func (m *Module) DetectBias(context, observation, biasType string, severity float64) *Record {
	if biasType == "" {
		biasType = "unknown"
	}
	severity = clampF(severity, 0, 1)

	bias := Bias{Context: context, Observation: observation, Type: biasType, Severity: severity, Timestamp: time.Now().UTC()}

	record := &Record{
		RecordID: uuid.NewString(), ReflectionType: TypeBiasCheck, Subject: context,
		Findings: []string{
			"bias type: " + biasType,
			"observation: " + observation,
			fmtSeverity(severity),
		},
		Score: roundTo3(1.0 - severity), Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	m.biases = append(m.biases, bias)
	m.records[record.RecordID] = record
	m.mu.Unlock()

	m.logger.Info("bias detected", map[string]interface{}{"context": context, "type": biasType})
	return record
}

// IdentifyImprovement records a gap between a current and desired
// state (priority defaults to "medium" when empty).
func (m *Module) IdentifyImprovement(area, currentState, desiredState, priority string, actions []string) *Record {
	if priority == "" {
		priority = "medium"
	}
	if actions == nil {
		actions = []string{}
	}

	improvement := Improvement{
		Area: area, Current: currentState, Desired: desiredState, Priority: priority, Actions: actions, Timestamp: time.Now().UTC(),
	}

	record := &Record{
		RecordID: uuid.NewString(), ReflectionType: TypeImprovement, Subject: area,
		Findings:     []string{"current: " + currentState, "desired: " + desiredState},
		Improvements: actions, Score: 0.5, Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	m.improvements = append(m.improvements, improvement)
	m.records[record.RecordID] = record
	m.mu.Unlock()
	return record
}

// ConsolidateLearning records a learned insight with a confidence
// score clamped to [0, 1].
func (m *Module) ConsolidateLearning(topic string, keyInsights []string, confidence float64) *Record {
	confidence = clampF(confidence, 0, 1)

	consolidation := Consolidation{Topic: topic, Insights: keyInsights, Confidence: confidence, Timestamp: time.Now().UTC()}

	record := &Record{
		RecordID: uuid.NewString(), ReflectionType: TypeConsolidation, Subject: topic,
		Findings: keyInsights, Score: roundTo3(confidence), Timestamp: time.Now().UTC(),
	}

	m.mu.Lock()
	m.consolidations = append(m.consolidations, consolidation)
	m.records[record.RecordID] = record
	m.mu.Unlock()
	return record
}

// GetRecord returns a record by ID, or nil.
func (m *Module) GetRecord(recordID string) *Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[recordID]
}

// GetByType returns all records of the given reflection type.
func (m *Module) GetByType(reflectionType Type) []*Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Record
	for _, r := range m.records {
		if r.ReflectionType == reflectionType {
			out = append(out, r)
		}
	}
	return out
}

// GetBiases returns every detected bias.
func (m *Module) GetBiases() []Bias {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Bias, len(m.biases))
	copy(out, m.biases)
	return out
}

// GetImprovements returns identified improvements, optionally filtered
// by priority.
func (m *Module) GetImprovements(priority string) []Improvement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if priority == "" {
		out := make([]Improvement, len(m.improvements))
		copy(out, m.improvements)
		return out
	}
	var out []Improvement
	for _, imp := range m.improvements {
		if imp.Priority == priority {
			out = append(out, imp)
		}
	}
	return out
}

// GetOverallScore averages the score across all records (0.5 if
// none exist).
func (m *Module) GetOverallScore() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.records) == 0 {
		return 0.5
	}
	total := 0.0
	for _, r := range m.records {
		total += r.Score
	}
	return roundTo3(total / float64(len(m.records)))
}

// TotalRecords returns the number of reflection records.
func (m *Module) TotalRecords() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// BiasCount returns the number of detected biases.
func (m *Module) BiasCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.biases)
}

// ImprovementCount returns the number of identified improvements.
func (m *Module) ImprovementCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.improvements)
}

// ConsolidationCount returns the number of consolidated insights.
func (m *Module) ConsolidationCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.consolidations)
}
