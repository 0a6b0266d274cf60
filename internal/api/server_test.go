package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grayline/skillbench/internal/api"
	"github.com/grayline/skillbench/internal/catalog"
	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/executor"
	"github.com/grayline/skillbench/internal/orchestrate"
	"github.com/grayline/skillbench/internal/store"
	"github.com/grayline/skillbench/internal/trial"
)

const testToken = "test-api-token-0123456789"

func newTestServer(t *testing.T, token string) *httptest.Server {
	t.Helper()
	return newTestServerWithRunner(t, token, "")
}

func newTestServerWithRunner(t *testing.T, token, runnerURL string) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cat := catalog.New(
		[]config.BenchmarkCase{{
			ID:             "case-fizzbuzz",
			ContainerImage: "ghcr.io/skillbench/fizzbuzz@sha256:" + strings.Repeat("a", 64),
			TimeoutSeconds: 600,
			CommandBudget:  50,
			CostBudget:     5.0,
		}},
		[]config.Skill{{ID: "skill-tdd", Slug: "tdd-red-green"}},
	)
	exec := executor.New(cat, st)
	runnerCfg := config.Runner{}
	if runnerURL != "" {
		runnerCfg = config.Runner{URL: runnerURL, Token: "runner-secret-token", TimeoutSeconds: 5}
	}
	orch := orchestrate.New(orchestrate.NewRunnerClient(runnerCfg), cat, exec, st)
	srv := httptest.NewServer(api.NewServer(token, exec, orch, st).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encoding request: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp, decoded
}

func trialRequest() map[string]any {
	return map[string]any{
		"benchmarkCaseId": "case-fizzbuzz",
		"evaluationMode":  "baseline",
		"agent":           "agent-x",
		"artifactPath":    "/runs/case-fizzbuzz/trial-1",
		"checks": map[string]any{
			"deterministic": map[string]any{"passed": 1, "total": 1},
		},
	}
}

func TestShortTokenLeavesServiceUnavailable(t *testing.T) {
	srv := newTestServer(t, "short")
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/trials", "short", trialRequest())
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if body["error"] != string(trial.CondNotConfigured) {
		t.Errorf("error = %v", body["error"])
	}
}

func TestRejectsBadBearer(t *testing.T) {
	srv := newTestServer(t, testToken)
	for _, token := range []string{"", "wrong-token-0123456789"} {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/trials", token, trialRequest())
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, resp.StatusCode)
		}
		if body["error"] != string(trial.CondUnauthorized) {
			t.Errorf("token %q: error = %v", token, body["error"])
		}
	}
}

func TestExecuteTrialEndToEnd(t *testing.T) {
	srv := newTestServer(t, testToken)

	req := trialRequest()
	req["skillId"] = "skill-tdd" // ignored for baseline
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/trials", testToken, req)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, body = %v", resp.StatusCode, body)
	}

	tr, ok := body["trial"].(map[string]any)
	if !ok {
		t.Fatalf("trial missing in %v", body)
	}
	if tr["skillId"] != nil {
		t.Errorf("baseline trial skillId = %v, want null", tr["skillId"])
	}
	if tr["status"] != "completed" {
		t.Errorf("trial status = %v", tr["status"])
	}
	scoring, ok := body["scoring"].(map[string]any)
	if !ok {
		t.Fatalf("scoring missing in %v", body)
	}
	if scoring["deterministicScore"] != float64(100) {
		t.Errorf("deterministicScore = %v", scoring["deterministicScore"])
	}

	// The persisted run is inspectable right away.
	run := body["run"].(map[string]any)
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/v1/runs/"+run["id"].(string), testToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("inspect status = %d, body = %v", resp.StatusCode, body)
	}
	if body["trialCount"] != float64(1) || body["scoreCount"] != float64(1) {
		t.Errorf("inspection counts = %v/%v", body["trialCount"], body["scoreCount"])
	}
}

func TestExecuteTrialValidationError(t *testing.T) {
	srv := newTestServer(t, testToken)
	req := trialRequest()
	req["artifactPath"] = "/runs/synthetic/trial-1"

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/trials", testToken, req)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
	if body["error"] != string(trial.CondBlockedArtifactMarkers) {
		t.Errorf("error = %v", body["error"])
	}
}

func TestExecuteTrialUnknownCase(t *testing.T) {
	srv := newTestServer(t, testToken)
	req := trialRequest()
	req["benchmarkCaseId"] = "case-unknown"

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/trials", testToken, req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body["error"] != string(trial.CondCaseNotFound) {
		t.Errorf("error = %v", body["error"])
	}
}

func TestExecuteTrialMalformedBody(t *testing.T) {
	srv := newTestServer(t, testToken)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/trials", strings.NewReader("{not json"))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestInspectUnknownRun(t *testing.T) {
	srv := newTestServer(t, testToken)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/v1/runs/no-such-run", testToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body["error"] != string(trial.CondRunNotFound) {
		t.Errorf("error = %v", body["error"])
	}
}

func TestOrchestratePersistFailureMapsToNotFound(t *testing.T) {
	// The runner completes every mode but names a skill the catalog does not
	// know for library_selection, so staging fails after execution.
	runner := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req orchestrate.ExecuteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding runner request: %v", err)
		}
		res := orchestrate.ExecuteResult{
			Status:       trial.StatusCompleted,
			ArtifactPath: "/runs/case-fizzbuzz/" + string(req.Mode),
		}
		if req.Mode == trial.ModeLibrarySelection {
			res.SkillID = "skill-from-nowhere"
		}
		json.NewEncoder(w).Encode(res)
	}))
	defer runner.Close()

	srv := newTestServerWithRunner(t, testToken, runner.URL)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/orchestrations", testToken, map[string]any{
		"benchmarkCaseId": "case-fizzbuzz",
		"oracleSkillId":   "skill-tdd",
		"agent":           "agent-x",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	if body["error"] != string(trial.CondOrchestrationPersistFailed) {
		t.Errorf("error = %v", body["error"])
	}
}

func TestOrchestrateWithoutRunnerConfigured(t *testing.T) {
	srv := newTestServer(t, testToken)
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/v1/orchestrations", testToken, map[string]any{
		"benchmarkCaseId": "case-fizzbuzz",
		"oracleSkillId":   "skill-tdd",
		"agent":           "agent-x",
	})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if body["error"] != string(trial.CondOrchestratorNotConfigured) {
		t.Errorf("error = %v", body["error"])
	}
}
