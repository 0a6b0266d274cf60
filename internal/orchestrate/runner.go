// Package orchestrate drives a full multi-mode benchmark run: one external
// runner call per evaluation mode, then a single all-or-nothing persistence
// pass once every mode has a terminal result.
package orchestrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/grayline/skillbench/internal/config"
	"github.com/grayline/skillbench/internal/trial"
)

// RunnerClient speaks the external runner's HTTP contract: one JSON
// execution request per mode, one JSON result back.
type RunnerClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewRunnerClient(cfg config.Runner) *RunnerClient {
	return &RunnerClient{
		baseURL: cfg.URL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

// Configured reports whether both endpoint and credential are present.
func (c *RunnerClient) Configured() bool {
	return c != nil && c.baseURL != "" && c.token != ""
}

// ExecuteRequest describes one mode's execution to the runner.
type ExecuteRequest struct {
	Mode            trial.EvaluationMode `json:"mode"`
	BenchmarkCaseID string               `json:"benchmarkCaseId"`
	ContainerImage  string               `json:"containerImage"`
	TimeoutSeconds  int                  `json:"timeoutSeconds"`
	SkillID         string               `json:"skillId,omitempty"`
	Agent           string               `json:"agent"`
}

// ExecuteResult is the runner's verdict for one mode. SkillID is set by the
// runner for library_selection, naming the skill its retrieval picked.
type ExecuteResult struct {
	Status       trial.Status      `json:"status"`
	ArtifactPath string            `json:"artifactPath"`
	SkillID      string            `json:"skillId,omitempty"`
	Events       []trial.Event     `json:"events,omitempty"`
	Checks       trial.CheckReport `json:"checks"`
}

// Execute issues one execution request. Transport failures, non-2xx
// responses, and non-JSON bodies all come back as errors; the orchestrator
// treats any of them as fatal for the whole run.
func (c *RunnerClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding runner request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building runner request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling runner for mode %s: %w", req.Mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("runner returned %d for mode %s", resp.StatusCode, req.Mode)
	}
	var result ExecuteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing runner response for mode %s: %w", req.Mode, err)
	}
	return &result, nil
}
