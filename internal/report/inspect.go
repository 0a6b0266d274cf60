package report

import (
	"context"

	"github.com/grayline/skillbench/internal/trial"
)

// RunReader is the read-only slice of the store the inspector needs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*trial.BenchmarkRun, error)
	TrialsForRun(ctx context.Context, runID string) ([]trial.Scored, error)
}

// Inspection is the read-only reconstruction of one persisted run.
type Inspection struct {
	RunID      string       `json:"runId"`
	Status     trial.Status `json:"status"`
	TrialCount int          `json:"trialCount"`
	ScoreCount int          `json:"scoreCount"`
	Deltas     Comparison   `json:"deltas"`
}

// Inspect reloads a run's trials and scores and recomputes the comparison
// deltas from persisted data. Distinguishes a missing run from a run that
// owns no trials.
func Inspect(ctx context.Context, r RunReader, runID string) (*Inspection, error) {
	run, err := r.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, trial.Errorf(trial.CondRunNotFound, "run %q not found", runID)
	}
	trials, err := r.TrialsForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(trials) == 0 {
		return nil, trial.Errorf(trial.CondRunTrialsNotFound, "run %q has no trials", runID)
	}

	scoreCount := 0
	for _, t := range trials {
		if t.Score != nil {
			scoreCount++
		}
	}
	return &Inspection{
		RunID:      run.ID,
		Status:     run.Status,
		TrialCount: len(trials),
		ScoreCount: scoreCount,
		Deltas:     Deltas(trials),
	}, nil
}
