package orchestrate

import (
	"context"

	"github.com/google/uuid"

	"github.com/grayline/skillbench/internal/catalog"
	"github.com/grayline/skillbench/internal/executor"
	"github.com/grayline/skillbench/internal/integrity"
	"github.com/grayline/skillbench/internal/report"
	"github.com/grayline/skillbench/internal/store"
	"github.com/grayline/skillbench/internal/trial"
)

// RunPersister is the slice of the trial store the orchestrator needs.
type RunPersister interface {
	PersistRunTrials(ctx context.Context, spec store.RunSpec, bundles []store.TrialBundle) (*trial.BenchmarkRun, []trial.Trial, error)
}

// Request asks for one orchestrated run: every requested mode executed
// against the same case under the same run id.
type Request struct {
	BenchmarkCaseID string                 `json:"benchmarkCaseId"`
	OracleSkillID   string                 `json:"oracleSkillId"`
	Agent           string                 `json:"agent"`
	RunID           string                 `json:"runId,omitempty"`
	Modes           []trial.EvaluationMode `json:"modes,omitempty"`
}

// Result reports what one orchestrated run executed and persisted.
type Result struct {
	RunID         string                 `json:"runId"`
	Run           *trial.BenchmarkRun    `json:"run"`
	ModesExecuted []trial.EvaluationMode `json:"modesExecuted"`
	Trials        []trial.Scored         `json:"trials"`
	Comparison    report.Comparison      `json:"comparison"`
}

type Orchestrator struct {
	runner  *RunnerClient
	catalog *catalog.Catalog
	exec    *executor.Executor
	store   RunPersister
}

func New(runner *RunnerClient, cat *catalog.Catalog, exec *executor.Executor, st RunPersister) *Orchestrator {
	return &Orchestrator{runner: runner, catalog: cat, exec: exec, store: st}
}

// Orchestrate executes every requested mode through the external runner and
// persists all of them under one run id in a single transaction. Nothing is
// written unless every mode reached a terminal result and every mode's rows
// staged cleanly; any failure after that rolls back the whole run.
func (o *Orchestrator) Orchestrate(ctx context.Context, req Request) (*Result, error) {
	if !o.runner.Configured() {
		return nil, trial.Errorf(trial.CondOrchestratorNotConfigured,
			"runner endpoint or credential is not configured")
	}

	bc, ok := o.catalog.Case(req.BenchmarkCaseID)
	if !ok {
		return nil, trial.Errorf(trial.CondCaseNotFound,
			"benchmark case %q not found", req.BenchmarkCaseID)
	}
	if err := integrity.ValidateContainerContract(bc.ContainerImage); err != nil {
		return nil, err
	}

	modes := req.Modes
	if len(modes) == 0 {
		modes = trial.AllModes()
	}
	// Reject unknown modes up front, before any runner round-trip.
	for _, mode := range modes {
		if !mode.Valid() {
			return nil, trial.Errorf(trial.CondInvalidSkillMode,
				"unknown evaluation mode %q", mode)
		}
	}

	// Phase 1: execute every mode. All results must be terminal before
	// anything is persisted.
	results := make(map[trial.EvaluationMode]*ExecuteResult, len(modes))
	for _, mode := range modes {
		runnerReq := ExecuteRequest{
			Mode:            mode,
			BenchmarkCaseID: bc.ID,
			ContainerImage:  bc.ContainerImage,
			TimeoutSeconds:  bc.TimeoutSeconds,
			Agent:           req.Agent,
		}
		if mode == trial.ModeOracleSkill {
			runnerReq.SkillID = req.OracleSkillID
		}
		res, err := o.runner.Execute(ctx, runnerReq)
		if err != nil {
			return nil, trial.WrapErr(trial.CondOrchestrationFailed,
				"runner call failed, aborting orchestration", err)
		}
		results[mode] = res
	}
	for _, mode := range modes {
		if !results[mode].Status.IsTerminal() {
			return nil, trial.Errorf(trial.CondOrchestrationIncomplete,
				"mode %s finished with non-terminal status %q", mode, results[mode].Status)
		}
	}

	// Phase 2: stage every mode's rows, then commit them in one
	// transaction. A staging or persistence failure for any mode leaves no
	// row from any mode.
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	var spec store.RunSpec
	bundles := make([]store.TrialBundle, 0, len(modes))
	scored := make([]trial.Scored, 0, len(modes))
	for _, mode := range modes {
		res := results[mode]
		execReq := executor.Request{
			BenchmarkCaseID: bc.ID,
			EvaluationMode:  mode,
			Agent:           req.Agent,
			ArtifactPath:    res.ArtifactPath,
			RunID:           runID,
			Status:          res.Status,
			Events:          res.Events,
			Checks:          res.Checks,
		}
		switch mode {
		case trial.ModeOracleSkill:
			execReq.SkillID = req.OracleSkillID
		case trial.ModeLibrarySelection:
			execReq.SkillID = res.SkillID
		}
		modeSpec, bundle, err := o.exec.Prepare(ctx, execReq)
		if err != nil {
			return nil, trial.WrapErr(trial.CondOrchestrationPersistFailed,
				"staging mode "+string(mode)+" failed, nothing persisted", err)
		}
		if len(bundles) == 0 {
			spec = modeSpec
		}
		bundles = append(bundles, bundle)
		scored = append(scored, trial.Scored{Trial: bundle.Trial, Score: &bundle.Score})
	}

	run, trials, err := o.store.PersistRunTrials(ctx, spec, bundles)
	if err != nil {
		return nil, trial.WrapErr(trial.CondOrchestrationPersistFailed,
			"persisting orchestrated run failed, all modes rolled back", err)
	}
	for i := range scored {
		scored[i].Trial = trials[i]
	}

	return &Result{
		RunID:         run.ID,
		Run:           run,
		ModesExecuted: modes,
		Trials:        scored,
		Comparison:    report.Deltas(scored),
	}, nil
}
