// Package api exposes the trial engine over HTTP: single trial writes,
// multi-mode orchestration, and read-only run inspection, all behind a
// bearer credential.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/grayline/skillbench/internal/executor"
	"github.com/grayline/skillbench/internal/orchestrate"
	"github.com/grayline/skillbench/internal/report"
	"github.com/grayline/skillbench/internal/trial"
)

// MinTokenLength is the shortest configured credential the server accepts.
// A shorter or absent secret leaves the service deliberately unavailable
// rather than weakly protected.
const MinTokenLength = 16

type Server struct {
	token string
	exec  *executor.Executor
	orch  *orchestrate.Orchestrator
	runs  report.RunReader
}

func NewServer(token string, exec *executor.Executor, orch *orchestrate.Orchestrator, runs report.RunReader) *Server {
	return &Server{token: token, exec: exec, orch: orch, runs: runs}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/trials", s.requireAuth(s.handleExecuteTrial))
	mux.HandleFunc("POST /api/v1/orchestrations", s.requireAuth(s.handleOrchestrate))
	mux.HandleFunc("GET /api/v1/runs/{id}", s.requireAuth(s.handleInspect))
	return mux
}

// requireAuth distinguishes a misconfigured service (503) from a rejected
// caller (401).
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(s.token) < MinTokenLength {
			writeCondition(w, http.StatusServiceUnavailable, trial.CondNotConfigured,
				"api token is not configured")
			return
		}
		header := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(s.token)) != 1 {
			writeCondition(w, http.StatusUnauthorized, trial.CondUnauthorized,
				"missing or invalid bearer credential")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleExecuteTrial(w http.ResponseWriter, r *http.Request) {
	var req executor.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCondition(w, http.StatusBadRequest, "malformed_request", "invalid JSON body")
		return
	}
	result, err := s.exec.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleOrchestrate(w http.ResponseWriter, r *http.Request) {
	var req orchestrate.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeCondition(w, http.StatusBadRequest, "malformed_request", "invalid JSON body")
		return
	}
	result, err := s.orch.Orchestrate(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	inspection, err := report.Inspect(r.Context(), s.runs, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inspection)
}

type errorBody struct {
	Error   trial.Condition `json:"error"`
	Message string          `json:"message"`
}

func writeError(w http.ResponseWriter, err error) {
	cond, ok := trial.ConditionOf(err)
	if !ok {
		log.Printf("internal error: %v", err)
		writeCondition(w, http.StatusInternalServerError, "internal_error", "internal error")
		return
	}
	writeCondition(w, statusFor(cond), cond, err.Error())
}

// statusFor maps each named condition to its HTTP status.
func statusFor(cond trial.Condition) int {
	switch cond {
	case trial.CondNotConfigured, trial.CondOrchestratorNotConfigured:
		return http.StatusServiceUnavailable
	case trial.CondUnauthorized:
		return http.StatusUnauthorized
	case trial.CondInvalidContainerContract, trial.CondOrchestrationIncomplete:
		return http.StatusConflict
	case trial.CondOrchestrationFailed:
		return http.StatusBadGateway
	case trial.CondOrchestrationPersistFailed,
		trial.CondCaseNotFound, trial.CondRunNotFound, trial.CondRunTrialsNotFound:
		return http.StatusNotFound
	case trial.CondInvalidSkillMode, trial.CondInvalidTrialStatus,
		trial.CondNonRealBenchmarkMode, trial.CondBlockedArtifactMarkers,
		trial.CondEventPayloadTooLarge:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeCondition(w http.ResponseWriter, status int, cond trial.Condition, msg string) {
	writeJSON(w, status, errorBody{Error: cond, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("warning: writing response: %v", err)
	}
}
