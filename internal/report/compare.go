// Package report computes score comparisons between evaluation modes and
// reconstructs persisted runs for inspection. The delta formula lives here
// once: the orchestrator applies it to fresh results and the inspector to
// persisted rows, so both always agree for the same inputs.
package report

import "github.com/grayline/skillbench/internal/trial"

// ModeDelta is the score difference between a skill-bearing mode and the
// baseline, variant minus baseline.
type ModeDelta struct {
	OverallScoreDelta       float64 `json:"overallScoreDelta"`
	DeterministicScoreDelta float64 `json:"deterministicScoreDelta"`
	SafetyScoreDelta        float64 `json:"safetyScoreDelta"`
	EfficiencyScoreDelta    float64 `json:"efficiencyScoreDelta"`
}

// Comparison holds the per-variant deltas for one run. A delta is nil unless
// both the variant and the baseline trial exist, completed, and were scored.
type Comparison struct {
	OracleSkillVsBaseline      *ModeDelta `json:"oracleSkillVsBaseline"`
	LibrarySelectionVsBaseline *ModeDelta `json:"librarySelectionVsBaseline"`
}

// Deltas computes the comparison for one run's trials. When a mode appears
// more than once the first completed, scored trial wins.
func Deltas(trials []trial.Scored) Comparison {
	byMode := make(map[trial.EvaluationMode]*trial.Scored, len(trials))
	for i := range trials {
		t := &trials[i]
		if t.Trial.Status != trial.StatusCompleted || t.Score == nil {
			continue
		}
		if _, ok := byMode[t.Trial.EvaluationMode]; !ok {
			byMode[t.Trial.EvaluationMode] = t
		}
	}
	baseline := byMode[trial.ModeBaseline]
	return Comparison{
		OracleSkillVsBaseline:      delta(byMode[trial.ModeOracleSkill], baseline),
		LibrarySelectionVsBaseline: delta(byMode[trial.ModeLibrarySelection], baseline),
	}
}

func delta(variant, baseline *trial.Scored) *ModeDelta {
	if variant == nil || baseline == nil {
		return nil
	}
	return &ModeDelta{
		OverallScoreDelta:       variant.Score.OverallScore - baseline.Score.OverallScore,
		DeterministicScoreDelta: variant.Score.DeterministicScore - baseline.Score.DeterministicScore,
		SafetyScoreDelta:        variant.Score.SafetyScore - baseline.Score.SafetyScore,
		EfficiencyScoreDelta:    variant.Score.EfficiencyScore - baseline.Score.EfficiencyScore,
	}
}
