// Package executor drives a single trial-write request through validation,
// skill resolution, scoring, and transactional persistence. A request either
// commits everything or leaves no trace.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/grayline/skillbench/internal/catalog"
	"github.com/grayline/skillbench/internal/integrity"
	"github.com/grayline/skillbench/internal/scoring"
	"github.com/grayline/skillbench/internal/store"
	"github.com/grayline/skillbench/internal/trial"
)

// Persister is the slice of the trial store the executor needs.
type Persister interface {
	GetRun(ctx context.Context, id string) (*trial.BenchmarkRun, error)
	PersistTrial(ctx context.Context, spec store.RunSpec, b store.TrialBundle) (*trial.BenchmarkRun, *trial.Trial, error)
}

// Request is one trial-write request.
type Request struct {
	BenchmarkCaseID string               `json:"benchmarkCaseId"`
	EvaluationMode  trial.EvaluationMode `json:"evaluationMode"`
	Agent           string               `json:"agent"`
	SkillID         string               `json:"skillId,omitempty"`
	ArtifactPath    string               `json:"artifactPath"`
	RunID           string               `json:"runId,omitempty"`
	RunMode         string               `json:"runMode,omitempty"`
	Status          trial.Status         `json:"status,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	Events          []trial.Event        `json:"events,omitempty"`
	Checks          trial.CheckReport    `json:"checks"`
}

// Result is the persisted trial plus its scoring breakdown.
type Result struct {
	Run   *trial.BenchmarkRun  `json:"run"`
	Trial trial.Trial          `json:"trial"`
	Score trial.ScoreBreakdown `json:"scoring"`
}

type Executor struct {
	catalog *catalog.Catalog
	store   Persister
}

func New(cat *catalog.Catalog, st Persister) *Executor {
	return &Executor{catalog: cat, store: st}
}

// Execute validates, resolves, scores, and persists one trial in a single
// transaction. Any validation failure rejects the request before the store
// is written.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	spec, bundle, err := e.Prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	run, persisted, err := e.store.PersistTrial(ctx, spec, bundle)
	if err != nil {
		return nil, err
	}
	return &Result{Run: run, Trial: *persisted, Score: bundle.Score}, nil
}

// Prepare runs every side-effect-free stage of a request — integrity checks,
// skill resolution, case lookup, scoring — and assembles the rows to
// persist. The orchestrator reuses it to stage several modes before a single
// all-or-nothing commit.
func (e *Executor) Prepare(ctx context.Context, req Request) (store.RunSpec, store.TrialBundle, error) {
	var none store.TrialBundle

	if err := integrity.ValidateArtifactPath(req.ArtifactPath); err != nil {
		return store.RunSpec{}, none, err
	}

	runID := req.RunID
	runMode := req.RunMode
	if runMode == "" {
		runMode = integrity.SanctionedRunMode
	}
	var existing *trial.BenchmarkRun
	if runID == "" {
		runID = uuid.NewString()
	} else {
		var err error
		existing, err = e.store.GetRun(ctx, runID)
		if err != nil {
			return store.RunSpec{}, none, err
		}
	}
	if err := integrity.ValidateRunMode(existing, runMode); err != nil {
		return store.RunSpec{}, none, err
	}

	if err := integrity.ValidateEventPayloadSize(req.Events); err != nil {
		return store.RunSpec{}, none, err
	}

	selection, err := trial.NewModeSelection(req.EvaluationMode, req.SkillID)
	if err != nil {
		return store.RunSpec{}, none, err
	}
	var skillID *string
	if ref, ok := selection.SkillRef(); ok {
		canonical, ok := e.catalog.ResolveSkill(ref)
		if !ok {
			return store.RunSpec{}, none, trial.Errorf(trial.CondInvalidSkillMode,
				"skill %q does not resolve to a known skill", ref)
		}
		skillID = &canonical
	}

	bc, ok := e.catalog.Case(req.BenchmarkCaseID)
	if !ok {
		return store.RunSpec{}, none, trial.Errorf(trial.CondCaseNotFound,
			"benchmark case %q not found", req.BenchmarkCaseID)
	}

	score := scoring.Score(req.Checks, bc)

	status := req.Status
	if status == "" {
		status = trial.StatusCompleted
	}
	if !status.Valid() {
		return store.RunSpec{}, none, trial.Errorf(trial.CondInvalidTrialStatus,
			"unknown trial status %q", status)
	}
	now := time.Now().UTC()
	var completedAt *time.Time
	if status.IsTerminal() {
		completedAt = &now
	}

	t := trial.Trial{
		ID:             uuid.NewString(),
		RunID:          runID,
		SkillID:        skillID,
		EvaluationMode: selection.Mode(),
		Agent:          req.Agent,
		Status:         status,
		ArtifactPath:   req.ArtifactPath,
		CreatedAt:      now,
		CompletedAt:    completedAt,
	}
	spec := store.RunSpec{
		ID:           runID,
		Mode:         runMode,
		ArtifactPath: req.ArtifactPath,
		Notes:        req.Notes,
	}
	return spec, store.TrialBundle{Trial: t, Events: req.Events, Score: score}, nil
}
