package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/grayline/skillbench/internal/trial"
)

// ModeSummary aggregates every persisted trial of one evaluation mode across
// all runs.
type ModeSummary struct {
	Mode              trial.EvaluationMode `json:"mode"`
	Trials            int                  `json:"trials"`
	CompletionRate    float64              `json:"completionRate"`
	MeanOverallScore  float64              `json:"meanOverallScore"`
	MeanDeltaBaseline *float64             `json:"meanDeltaVsBaseline"`
}

// Summarize groups trials by run, applies the shared delta formula per run,
// and averages per evaluation mode. The baseline row carries no delta.
func Summarize(trials []trial.Scored) []ModeSummary {
	type accum struct {
		count      int
		completed  int
		score      float64
		scored     int
		deltaSum   float64
		deltaCount int
	}
	byMode := map[trial.EvaluationMode]*accum{}
	byRun := map[string][]trial.Scored{}

	for _, t := range trials {
		a, ok := byMode[t.Trial.EvaluationMode]
		if !ok {
			a = &accum{}
			byMode[t.Trial.EvaluationMode] = a
		}
		a.count++
		if t.Trial.Status == trial.StatusCompleted {
			a.completed++
		}
		if t.Score != nil {
			a.score += t.Score.OverallScore
			a.scored++
		}
		byRun[t.Trial.RunID] = append(byRun[t.Trial.RunID], t)
	}

	for _, runTrials := range byRun {
		cmp := Deltas(runTrials)
		if cmp.OracleSkillVsBaseline != nil {
			a := byMode[trial.ModeOracleSkill]
			a.deltaSum += cmp.OracleSkillVsBaseline.OverallScoreDelta
			a.deltaCount++
		}
		if cmp.LibrarySelectionVsBaseline != nil {
			a := byMode[trial.ModeLibrarySelection]
			a.deltaSum += cmp.LibrarySelectionVsBaseline.OverallScoreDelta
			a.deltaCount++
		}
	}

	var summaries []ModeSummary
	for mode, a := range byMode {
		s := ModeSummary{
			Mode:           mode,
			Trials:         a.count,
			CompletionRate: float64(a.completed) / float64(a.count),
		}
		if a.scored > 0 {
			s.MeanOverallScore = a.score / float64(a.scored)
		}
		if mode != trial.ModeBaseline && a.deltaCount > 0 {
			mean := a.deltaSum / float64(a.deltaCount)
			s.MeanDeltaBaseline = &mean
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Mode < summaries[j].Mode
	})
	return summaries
}

func WriteTable(summaries []ModeSummary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tTRIALS\tCOMPLETION\tMEAN SCORE\tΔ VS BASELINE")
	fmt.Fprintln(tw, strings.Repeat("-", 70))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%d\t%.0f%%\t%.1f\t%s\n",
			s.Mode, s.Trials, s.CompletionRate*100, s.MeanOverallScore, deltaCell(s.MeanDeltaBaseline))
	}
	return tw.Flush()
}

func WriteMarkdown(summaries []ModeSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Mode | Trials | Completion | Mean Score | Δ vs Baseline |")
	fmt.Fprintln(w, "|---|---|---|---|---|")
	for _, s := range summaries {
		fmt.Fprintf(w, "| %s | %d | %.0f%% | %.1f | %s |\n",
			s.Mode, s.Trials, s.CompletionRate*100, s.MeanOverallScore, deltaCell(s.MeanDeltaBaseline))
	}
	return nil
}

func WriteJSON(v any, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func deltaCell(d *float64) string {
	if d == nil {
		return "-"
	}
	return fmt.Sprintf("%+.1f", *d)
}
