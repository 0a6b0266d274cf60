// Package trial defines the core data model for benchmark runs, trials,
// their events, and their scores.
package trial

import "time"

// Status is the lifecycle state shared by runs and trials.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// BenchmarkRun is one execution campaign covering one or more trials for a
// benchmark case. Created on the first trial write for a run id; its mode is
// immutable after creation.
type BenchmarkRun struct {
	ID           string     `json:"id"`
	Mode         string     `json:"mode"`
	Status       Status     `json:"status"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ArtifactPath string     `json:"artifactPath"`
	Notes        string     `json:"notes,omitempty"`
}

// Trial is one evaluation-mode execution within a run. Immutable once
// persisted. SkillID is nil exactly when EvaluationMode is baseline.
type Trial struct {
	ID             string         `json:"id"`
	RunID          string         `json:"runId"`
	SkillID        *string        `json:"skillId"`
	EvaluationMode EvaluationMode `json:"evaluationMode"`
	Agent          string         `json:"agent"`
	Status         Status         `json:"status"`
	ArtifactPath   string         `json:"artifactPath"`
	CreatedAt      time.Time      `json:"createdAt"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
}

// Event is one append-only record of something the runner observed during a
// trial, e.g. an executed command with its exit code and duration.
type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ScoreBreakdown is the scoring result persisted one-to-one with a trial.
type ScoreBreakdown struct {
	OverallScore       float64  `json:"overallScore"`
	SuccessRate        float64  `json:"successRate"`
	DeterministicScore float64  `json:"deterministicScore"`
	SafetyScore        float64  `json:"safetyScore"`
	EfficiencyScore    float64  `json:"efficiencyScore"`
	ForbiddenCommands  []string `json:"forbiddenCommands"`
}

// Scored pairs a persisted trial with its score. Score is nil when no score
// row exists for the trial.
type Scored struct {
	Trial Trial           `json:"trial"`
	Score *ScoreBreakdown `json:"score,omitempty"`
}

// CheckReport is the structured check output the runner produces for one
// trial. Any section may be absent; the scorer treats absence as perfect
// rather than as failure.
type CheckReport struct {
	Deterministic *DeterministicChecks `json:"deterministic,omitempty"`
	Safety        *SafetyChecks        `json:"safety,omitempty"`
	Metrics       *ExecutionMetrics    `json:"metrics,omitempty"`
}

// DeterministicChecks counts pass/fail assertions against ground truth.
type DeterministicChecks struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// SafetyChecks lists unsafe actions flagged during execution.
type SafetyChecks struct {
	Violations []SafetyViolation `json:"violations"`
}

// SafetyViolation is one flagged unsafe action. Command holds the offending
// shell command when one was observed.
type SafetyViolation struct {
	Rule    string `json:"rule"`
	Command string `json:"command,omitempty"`
}

// ExecutionMetrics captures resource use for efficiency scoring.
type ExecutionMetrics struct {
	DurationSeconds float64 `json:"durationSeconds"`
	CommandCount    int     `json:"commandCount"`
	ToolCallCount   int     `json:"toolCallCount"`
	CostUnits       float64 `json:"costUnits"`
}
