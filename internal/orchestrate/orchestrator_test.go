package orchestrate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grayline/skillbench/internal/catalog"
	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/executor"
	"github.com/grayline/skillbench/internal/orchestrate"
	"github.com/grayline/skillbench/internal/store"
	"github.com/grayline/skillbench/internal/trial"
)

var pinnedImage = "ghcr.io/skillbench/fizzbuzz@sha256:" + strings.Repeat("a", 64)

func testCatalog(image string) *catalog.Catalog {
	return catalog.New(
		[]config.BenchmarkCase{{
			ID:             "case-fizzbuzz",
			ContainerImage: image,
			TimeoutSeconds: 600,
			CommandBudget:  50,
			CostBudget:     5.0,
		}},
		[]config.Skill{{ID: "skill-tdd", Slug: "tdd-red-green"}},
	)
}

// runnerFunc serves the external runner contract from a test callback.
func runnerServer(t *testing.T, fn func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" {
			t.Errorf("runner called at %s, want /execute", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer runner-secret-token" {
			t.Errorf("runner auth header = %q", got)
		}
		var req orchestrate.ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding runner request: %v", err)
		}
		res, status := fn(req)
		w.WriteHeader(status)
		if status >= 200 && status < 300 {
			json.NewEncoder(w).Encode(res)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func completedResult(req orchestrate.ExecuteRequest) orchestrate.ExecuteResult {
	res := orchestrate.ExecuteResult{
		Status:       trial.StatusCompleted,
		ArtifactPath: "/runs/case-fizzbuzz/" + string(req.Mode),
		Checks: trial.CheckReport{
			Deterministic: &trial.DeterministicChecks{Passed: 1, Total: 1},
		},
	}
	if req.Mode == trial.ModeLibrarySelection {
		res.SkillID = "tdd-red-green"
	}
	return res
}

func newOrchestrator(t *testing.T, runnerURL, image string) (*orchestrate.Orchestrator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cat := testCatalog(image)
	exec := executor.New(cat, st)
	runner := orchestrate.NewRunnerClient(config.Runner{
		URL:            runnerURL,
		Token:          "runner-secret-token",
		TimeoutSeconds: 5,
	})
	return orchestrate.New(runner, cat, exec, st), st
}

func countRows(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	var n int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("counting %s: %v", table, err)
	}
	return n
}

func TestOrchestrateAllModes(t *testing.T) {
	var modesSeen []trial.EvaluationMode
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		modesSeen = append(modesSeen, req.Mode)
		if req.Mode == trial.ModeOracleSkill && req.SkillID != "skill-tdd" {
			t.Errorf("oracle runner request skill = %q, want skill-tdd", req.SkillID)
		}
		return completedResult(req), http.StatusOK
	})
	orch, st := newOrchestrator(t, srv.URL, pinnedImage)

	res, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	if len(modesSeen) != 3 {
		t.Errorf("runner called %d times, want 3", len(modesSeen))
	}
	if len(res.Trials) != 3 {
		t.Fatalf("trials = %d, want 3", len(res.Trials))
	}
	for _, sc := range res.Trials {
		if sc.Trial.RunID != res.RunID {
			t.Errorf("trial %s run id = %s, want %s", sc.Trial.ID, sc.Trial.RunID, res.RunID)
		}
		if sc.Score == nil {
			t.Errorf("trial %s missing score", sc.Trial.ID)
		}
	}
	if res.Run.Status != trial.StatusCompleted {
		t.Errorf("run status = %s, want completed", res.Run.Status)
	}
	if res.Comparison.OracleSkillVsBaseline == nil || res.Comparison.LibrarySelectionVsBaseline == nil {
		t.Errorf("comparison deltas missing: %+v", res.Comparison)
	}

	if n := countRows(t, st, "trial_scores"); n != 3 {
		t.Errorf("score rows = %d, want 3", n)
	}
}

func TestOrchestrateLibraryModeRecordsRunnerSkill(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		return completedResult(req), http.StatusOK
	})
	orch, _ := newOrchestrator(t, srv.URL, pinnedImage)

	res, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
		Modes:           []trial.EvaluationMode{trial.ModeBaseline, trial.ModeLibrarySelection},
	})
	if err != nil {
		t.Fatalf("Orchestrate: %v", err)
	}
	var library *trial.Scored
	for i := range res.Trials {
		if res.Trials[i].Trial.EvaluationMode == trial.ModeLibrarySelection {
			library = &res.Trials[i]
		}
	}
	if library == nil {
		t.Fatal("library_selection trial missing")
	}
	// The runner reported the slug; the persisted trial carries the
	// canonical skill id.
	if library.Trial.SkillID == nil || *library.Trial.SkillID != "skill-tdd" {
		t.Errorf("library trial skill = %v, want skill-tdd", library.Trial.SkillID)
	}
}

func TestOrchestrateNonTerminalModePersistsNothing(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		res := completedResult(req)
		if req.Mode == trial.ModeLibrarySelection {
			res.Status = trial.StatusRunning
		}
		return res, http.StatusOK
	})
	orch, st := newOrchestrator(t, srv.URL, pinnedImage)

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
	})
	if !trial.HasCondition(err, trial.CondOrchestrationIncomplete) {
		t.Fatalf("got %v, want trial_orchestration_incomplete", err)
	}
	if n := countRows(t, st, "trials"); n != 0 {
		t.Errorf("trial rows = %d, want 0", n)
	}
	if n := countRows(t, st, "benchmark_runs"); n != 0 {
		t.Errorf("run rows = %d, want 0", n)
	}
}

func TestOrchestrateUnknownLibrarySkillPersistsNothing(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		res := completedResult(req)
		if req.Mode == trial.ModeLibrarySelection {
			res.SkillID = "skill-from-nowhere"
		}
		return res, http.StatusOK
	})
	orch, st := newOrchestrator(t, srv.URL, pinnedImage)

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
	})
	if !trial.HasCondition(err, trial.CondOrchestrationPersistFailed) {
		t.Fatalf("got %v, want trial_orchestration_persist_failed", err)
	}
	if n := countRows(t, st, "trials"); n != 0 {
		t.Errorf("trial rows = %d, want 0", n)
	}
}

func TestOrchestrateRunnerErrorAborts(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		if req.Mode == trial.ModeOracleSkill {
			return orchestrate.ExecuteResult{}, http.StatusInternalServerError
		}
		return completedResult(req), http.StatusOK
	})
	orch, st := newOrchestrator(t, srv.URL, pinnedImage)

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
	})
	if !trial.HasCondition(err, trial.CondOrchestrationFailed) {
		t.Fatalf("got %v, want trial_orchestration_failed", err)
	}
	if n := countRows(t, st, "trials"); n != 0 {
		t.Errorf("trial rows = %d, want 0", n)
	}
}

func TestOrchestrateUnreachableRunner(t *testing.T) {
	// A closed server gives a transport error on the first call.
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	orch, _ := newOrchestrator(t, srv.URL, pinnedImage)

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
	})
	if !trial.HasCondition(err, trial.CondOrchestrationFailed) {
		t.Fatalf("got %v, want trial_orchestration_failed", err)
	}
}

func TestOrchestrateUnconfiguredRunner(t *testing.T) {
	orch, _ := newOrchestrator(t, "", pinnedImage)
	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
	})
	if !trial.HasCondition(err, trial.CondOrchestratorNotConfigured) {
		t.Fatalf("got %v, want trial_orchestrator_not_configured", err)
	}
}

func TestOrchestrateUnknownModeSkipsRunner(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		t.Error("runner must not be called when a requested mode is unknown")
		return orchestrate.ExecuteResult{}, http.StatusOK
	})
	orch, st := newOrchestrator(t, srv.URL, pinnedImage)

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
		Agent:           "agent-x",
		Modes:           []trial.EvaluationMode{trial.ModeBaseline, "speedrun"},
	})
	if !trial.HasCondition(err, trial.CondInvalidSkillMode) {
		t.Fatalf("got %v, want invalid_skill_mode", err)
	}
	if n := countRows(t, st, "trials"); n != 0 {
		t.Errorf("trial rows = %d, want 0", n)
	}
}

func TestOrchestrateUnknownCase(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		t.Error("runner must not be called for an unknown case")
		return orchestrate.ExecuteResult{}, http.StatusOK
	})
	orch, _ := newOrchestrator(t, srv.URL, pinnedImage)

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-unknown",
		OracleSkillID:   "skill-tdd",
	})
	if !trial.HasCondition(err, trial.CondCaseNotFound) {
		t.Fatalf("got %v, want benchmark_case_not_found", err)
	}
}

func TestOrchestrateUnpinnedImage(t *testing.T) {
	srv := runnerServer(t, func(req orchestrate.ExecuteRequest) (orchestrate.ExecuteResult, int) {
		t.Error("runner must not be called for an unpinned image")
		return orchestrate.ExecuteResult{}, http.StatusOK
	})
	orch, _ := newOrchestrator(t, srv.URL, "ghcr.io/skillbench/fizzbuzz:latest")

	_, err := orch.Orchestrate(context.Background(), orchestrate.Request{
		BenchmarkCaseID: "case-fizzbuzz",
		OracleSkillID:   "skill-tdd",
	})
	if !trial.HasCondition(err, trial.CondInvalidContainerContract) {
		t.Fatalf("got %v, want invalid_container_contract", err)
	}
}
