package trial

import "fmt"

// Condition names a failure condition precisely enough for callers and tests
// to assert on. Every failure path in the engine carries exactly one.
type Condition string

const (
	CondNotConfigured            Condition = "trial_execute_not_configured"
	CondUnauthorized             Condition = "trial_execute_unauthorized"
	CondInvalidSkillMode         Condition = "invalid_skill_mode"
	CondInvalidTrialStatus       Condition = "invalid_trial_status"
	CondNonRealBenchmarkMode     Condition = "non_real_benchmark_mode"
	CondBlockedArtifactMarkers   Condition = "blocked_artifact_markers"
	CondEventPayloadTooLarge     Condition = "event_payload_too_large"
	CondInvalidContainerContract Condition = "invalid_container_contract"
	CondCaseNotFound             Condition = "benchmark_case_not_found"
	CondRunNotFound              Condition = "run_not_found"
	CondRunTrialsNotFound        Condition = "run_trials_not_found"

	CondOrchestratorNotConfigured  Condition = "trial_orchestrator_not_configured"
	CondOrchestrationIncomplete    Condition = "trial_orchestration_incomplete"
	CondOrchestrationFailed        Condition = "trial_orchestration_failed"
	CondOrchestrationPersistFailed Condition = "trial_orchestration_persist_failed"
)

// Error is a condition-coded error. The API layer maps conditions to HTTP
// statuses; everything below it only needs the condition and the message.
type Error struct {
	Cond Condition
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Cond, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Cond, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Errorf builds a condition-coded error with a formatted message.
func Errorf(cond Condition, format string, args ...any) *Error {
	return &Error{Cond: cond, Msg: fmt.Sprintf(format, args...)}
}

// WrapErr attaches a condition to an underlying error.
func WrapErr(cond Condition, msg string, err error) *Error {
	return &Error{Cond: cond, Msg: msg, Err: err}
}

// ConditionOf extracts the condition from err, walking the wrap chain.
// Returns false for errors that carry no condition.
func ConditionOf(err error) (Condition, bool) {
	for err != nil {
		if ce, ok := err.(*Error); ok {
			return ce.Cond, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return "", false
		}
		err = u.Unwrap()
	}
	return "", false
}

// HasCondition reports whether err carries the given condition.
func HasCondition(err error, cond Condition) bool {
	c, ok := ConditionOf(err)
	return ok && c == cond
}
