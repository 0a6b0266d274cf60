package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/grayline/skillbench/internal/trial"
)

// querier lets the read helpers run against either the pool or an open
// transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetRun loads one benchmark run. Returns (nil, nil) when no row exists.
func (s *Store) GetRun(ctx context.Context, id string) (*trial.BenchmarkRun, error) {
	return getRun(ctx, s.db, id)
}

func getRun(ctx context.Context, q querier, id string) (*trial.BenchmarkRun, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, mode, status, started_at, completed_at, artifact_path, notes
		FROM benchmark_runs WHERE id = ?`, id)

	var r trial.BenchmarkRun
	var status string
	var completedAt sql.NullTime
	err := row.Scan(&r.ID, &r.Mode, &status, &r.StartedAt, &completedAt, &r.ArtifactPath, &r.Notes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}
	r.Status = trial.Status(status)
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

// TrialsForRun loads every trial for a run together with its score, ordered
// by creation time.
func (s *Store) TrialsForRun(ctx context.Context, runID string) ([]trial.Scored, error) {
	return s.queryScored(ctx, `WHERE t.run_id = ?`, runID)
}

// AllScoredTrials loads every persisted trial with its score, for cross-run
// reporting.
func (s *Store) AllScoredTrials(ctx context.Context) ([]trial.Scored, error) {
	return s.queryScored(ctx, ``)
}

func (s *Store) queryScored(ctx context.Context, where string, args ...any) ([]trial.Scored, error) {
	query := `
		SELECT t.id, t.run_id, t.skill_id, t.evaluation_mode, t.agent, t.status,
		       t.artifact_path, t.created_at, t.completed_at,
		       sc.overall_score, sc.success_rate, sc.deterministic_score,
		       sc.safety_score, sc.efficiency_score, sc.forbidden_commands
		FROM trials t
		LEFT JOIN trial_scores sc ON sc.trial_id = t.id
		` + where + `
		ORDER BY t.created_at, t.id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trials: %w", err)
	}
	defer rows.Close()

	var out []trial.Scored
	for rows.Next() {
		var sc trial.Scored
		var skillID sql.NullString
		var status string
		var completedAt sql.NullTime
		var overall, successRate, deterministic, safety, efficiency sql.NullFloat64
		var forbidden sql.NullString

		err := rows.Scan(&sc.Trial.ID, &sc.Trial.RunID, &skillID, &sc.Trial.EvaluationMode,
			&sc.Trial.Agent, &status, &sc.Trial.ArtifactPath, &sc.Trial.CreatedAt, &completedAt,
			&overall, &successRate, &deterministic, &safety, &efficiency, &forbidden)
		if err != nil {
			return nil, fmt.Errorf("scanning trial row: %w", err)
		}
		sc.Trial.Status = trial.Status(status)
		if skillID.Valid {
			v := skillID.String
			sc.Trial.SkillID = &v
		}
		if completedAt.Valid {
			t := completedAt.Time
			sc.Trial.CompletedAt = &t
		}
		if overall.Valid {
			score := &trial.ScoreBreakdown{
				OverallScore:       overall.Float64,
				SuccessRate:        successRate.Float64,
				DeterministicScore: deterministic.Float64,
				SafetyScore:        safety.Float64,
				EfficiencyScore:    efficiency.Float64,
			}
			if forbidden.Valid && forbidden.String != "" {
				if err := json.Unmarshal([]byte(forbidden.String), &score.ForbiddenCommands); err != nil {
					return nil, fmt.Errorf("parsing forbidden commands for trial %s: %w", sc.Trial.ID, err)
				}
			}
			sc.Score = score
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating trials: %w", err)
	}
	return out, nil
}

// EventsForTrial loads a trial's append-only event log in insertion order.
func (s *Store) EventsForTrial(ctx context.Context, trialID string) ([]trial.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, payload FROM trial_events WHERE trial_id = ? ORDER BY id`, trialID)
	if err != nil {
		return nil, fmt.Errorf("querying events for trial %s: %w", trialID, err)
	}
	defer rows.Close()

	var out []trial.Event
	for rows.Next() {
		var ev trial.Event
		var payload string
		if err := rows.Scan(&ev.Type, &payload); err != nil {
			return nil, fmt.Errorf("scanning event row: %w", err)
		}
		if payload != "" && payload != "null" {
			if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
				return nil, fmt.Errorf("parsing event payload for trial %s: %w", trialID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
