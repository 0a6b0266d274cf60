package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/grayline/skillbench/internal/integrity"
	"github.com/grayline/skillbench/internal/trial"
)

// RunSpec describes the run a write belongs to. The run row is created on
// first use and reused afterwards.
type RunSpec struct {
	ID           string
	Mode         string
	ArtifactPath string
	Notes        string
}

// TrialBundle is everything persisted for one trial: the row itself, its
// events, and its score. Score rows are written exactly once, atomically
// with the trial.
type TrialBundle struct {
	Trial  trial.Trial
	Events []trial.Event
	Score  trial.ScoreBreakdown
}

// PersistTrial writes one trial with its events and score under the given
// run, creating or reusing the run row, all in one transaction.
func (s *Store) PersistTrial(ctx context.Context, spec RunSpec, b TrialBundle) (*trial.BenchmarkRun, *trial.Trial, error) {
	run, trials, err := s.PersistRunTrials(ctx, spec, []TrialBundle{b})
	if err != nil {
		return nil, nil, err
	}
	return run, &trials[0], nil
}

// PersistRunTrials writes a set of trials under one run id in a single
// transaction: either every trial, event, and score row lands, or none do.
// The run's status is re-derived from its trials before commit.
func (s *Store) PersistRunTrials(ctx context.Context, spec RunSpec, bundles []TrialBundle) (*trial.BenchmarkRun, []trial.Trial, error) {
	if len(bundles) == 0 {
		return nil, nil, fmt.Errorf("no trials to persist for run %s", spec.ID)
	}

	var run *trial.BenchmarkRun
	trials := make([]trial.Trial, 0, len(bundles))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		r, err := createOrFetchRun(ctx, tx, spec)
		if err != nil {
			return err
		}
		for _, b := range bundles {
			if b.Trial.RunID != r.ID {
				return fmt.Errorf("trial %s targets run %s, expected %s", b.Trial.ID, b.Trial.RunID, r.ID)
			}
			if err := insertTrialRows(ctx, tx, b); err != nil {
				return err
			}
			trials = append(trials, b.Trial)
		}
		run, err = refreshRunStatus(ctx, tx, r.ID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return run, trials, nil
}

// createOrFetchRun inserts the run row, recovering from a concurrent
// first-writer: on a uniqueness conflict the existing row is re-read,
// its mode validated against the requested one, and reused. First writer
// wins; the loser proceeds against the winner's row.
func createOrFetchRun(ctx context.Context, tx *sql.Tx, spec RunSpec) (*trial.BenchmarkRun, error) {
	now := time.Now().UTC()
	_, err := tx.ExecContext(ctx, `
		INSERT INTO benchmark_runs (id, mode, status, started_at, completed_at, artifact_path, notes)
		VALUES (?, ?, ?, ?, NULL, ?, ?)`,
		spec.ID, spec.Mode, string(trial.StatusRunning), now, spec.ArtifactPath, spec.Notes)
	if err == nil {
		return &trial.BenchmarkRun{
			ID:           spec.ID,
			Mode:         spec.Mode,
			Status:       trial.StatusRunning,
			StartedAt:    now,
			ArtifactPath: spec.ArtifactPath,
			Notes:        spec.Notes,
		}, nil
	}
	if !isUniqueConflict(err) {
		return nil, fmt.Errorf("inserting run %s: %w", spec.ID, err)
	}

	existing, err := getRun(ctx, tx, spec.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("run %s conflicted on insert but cannot be re-read", spec.ID)
	}
	if err := integrity.ValidateRunMode(existing, spec.Mode); err != nil {
		return nil, err
	}
	return existing, nil
}

func insertTrialRows(ctx context.Context, tx *sql.Tx, b TrialBundle) error {
	t := b.Trial
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trials (id, run_id, skill_id, evaluation_mode, agent, status, artifact_path, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.RunID, nullString(t.SkillID), string(t.EvaluationMode), t.Agent,
		string(t.Status), t.ArtifactPath, t.CreatedAt.UTC(), nullTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("inserting trial %s: %w", t.ID, err)
	}

	for _, ev := range b.Events {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return fmt.Errorf("serializing event %q for trial %s: %w", ev.Type, t.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trial_events (trial_id, event_type, payload) VALUES (?, ?, ?)`,
			t.ID, ev.Type, string(payload)); err != nil {
			return fmt.Errorf("inserting event for trial %s: %w", t.ID, err)
		}
	}

	forbidden, err := json.Marshal(b.Score.ForbiddenCommands)
	if err != nil {
		return fmt.Errorf("serializing forbidden commands for trial %s: %w", t.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trial_scores (trial_id, overall_score, success_rate, deterministic_score, safety_score, efficiency_score, forbidden_commands)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, b.Score.OverallScore, b.Score.SuccessRate, b.Score.DeterministicScore,
		b.Score.SafetyScore, b.Score.EfficiencyScore, string(forbidden)); err != nil {
		return fmt.Errorf("inserting score for trial %s: %w", t.ID, err)
	}
	return nil
}

// refreshRunStatus re-derives the run's status from all of its trials:
// failed if any trial failed, completed only when every trial completed,
// running otherwise. completed_at is set exactly when the run is terminal.
func refreshRunStatus(ctx context.Context, tx *sql.Tx, runID string) (*trial.BenchmarkRun, error) {
	rows, err := tx.QueryContext(ctx, `SELECT status FROM trials WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("reading trial statuses for run %s: %w", runID, err)
	}
	defer rows.Close()

	var total, completed, failed int
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, fmt.Errorf("scanning trial status: %w", err)
		}
		total++
		switch trial.Status(st) {
		case trial.StatusCompleted:
			completed++
		case trial.StatusFailed:
			failed++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trial statuses: %w", err)
	}

	status := trial.StatusRunning
	switch {
	case failed > 0:
		status = trial.StatusFailed
	case total > 0 && completed == total:
		status = trial.StatusCompleted
	}

	var completedAt any
	if status.IsTerminal() {
		completedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE benchmark_runs SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), completedAt, runID); err != nil {
		return nil, fmt.Errorf("updating run %s status: %w", runID, err)
	}
	return getRun(ctx, tx, runID)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
