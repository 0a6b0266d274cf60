// Package integrity holds the pure validation checks that protect the
// benchmark corpus: only real executions, reproducible container images,
// clean artifact paths, and bounded event payloads. Nothing here touches the
// network or the store.
package integrity

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/grayline/skillbench/internal/trial"
)

// SanctionedRunMode is the single run mode tag that marks a run as an
// authoritative real execution. Any other value taints the run id for good.
const SanctionedRunMode = "real_execution"

// MaxEventPayloadBytes bounds the serialized size of a trial's event list.
const MaxEventPayloadBytes = 256 << 10 // 256 KiB

// blockedMarkers denote non-authoritative data. Matched case-insensitively
// against both the raw path and its percent-decoded form.
var blockedMarkers = []string{"synthetic", "mock", "fallback", "placeholder", "simulated"}

// digestRef matches a content-addressed image reference such as
// repo/name@sha256:<64 hex>. Mutable tag references do not match.
var digestRef = regexp.MustCompile(`@sha256:[0-9a-f]{64}$`)

// ValidateArtifactPath rejects paths carrying a blocked marker, in plain or
// percent-encoded form.
func ValidateArtifactPath(path string) error {
	if marker := findMarker(path); marker != "" {
		return trial.Errorf(trial.CondBlockedArtifactMarkers,
			"artifact path contains blocked marker %q", marker)
	}
	if decoded, err := url.QueryUnescape(path); err == nil && decoded != path {
		if marker := findMarker(decoded); marker != "" {
			return trial.Errorf(trial.CondBlockedArtifactMarkers,
				"artifact path contains percent-encoded blocked marker %q", marker)
		}
	}
	return nil
}

func findMarker(path string) string {
	lower := strings.ToLower(path)
	for _, m := range blockedMarkers {
		if strings.Contains(lower, m) {
			return m
		}
	}
	return ""
}

// ValidateRunMode enforces the real-execution-only guarantee. With no
// existing run, the requested mode must be the sanctioned tag. With an
// existing run, its stored mode must be the sanctioned tag and the requested
// mode must match it; a previously-tainted run id is never writable again.
func ValidateRunMode(existing *trial.BenchmarkRun, requested string) error {
	if existing == nil {
		if requested != SanctionedRunMode {
			return trial.Errorf(trial.CondNonRealBenchmarkMode,
				"run mode %q is not the sanctioned %q tag", requested, SanctionedRunMode)
		}
		return nil
	}
	if existing.Mode != SanctionedRunMode {
		return trial.Errorf(trial.CondNonRealBenchmarkMode,
			"run %s carries non-authoritative mode %q and cannot be reused", existing.ID, existing.Mode)
	}
	if requested != existing.Mode {
		return trial.Errorf(trial.CondNonRealBenchmarkMode,
			"run %s has mode %q, refusing write with mode %q", existing.ID, existing.Mode, requested)
	}
	return nil
}

// ValidateContainerContract passes only for digest-pinned image references,
// which guarantee reproducible execution. Tag references are mutable and
// fail.
func ValidateContainerContract(containerImage string) error {
	if !digestRef.MatchString(containerImage) {
		return trial.Errorf(trial.CondInvalidContainerContract,
			"container image %q is not digest-pinned", containerImage)
	}
	return nil
}

// ValidateEventPayloadSize rejects event lists whose serialized form exceeds
// the fixed byte budget, preventing unbounded write amplification.
func ValidateEventPayloadSize(events []trial.Event) error {
	if len(events) == 0 {
		return nil
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("serializing events: %w", err)
	}
	if len(data) > MaxEventPayloadBytes {
		return trial.Errorf(trial.CondEventPayloadTooLarge,
			"event payload is %d bytes, budget is %d", len(data), MaxEventPayloadBytes)
	}
	return nil
}
