package integrity

import (
	"fmt"
	"sync/atomic"

	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
)

// Process-wide diagnostic counters. Correctness never depends on them; they
// feed orchestrator diagnostics and must stay race-free.
var (
	paddingCount atomic.Int64
	restoreCount atomic.Int64
)

// PaddingEvents returns how many placeholder items have been appended since
// process start.
func PaddingEvents() int64 { return paddingCount.Load() }

// RestoreEvents returns how many per-feature rollbacks EnforceIntegrity has
// performed since process start.
func RestoreEvents() int64 { return restoreCount.Load() }

// ResetCounters zeroes the diagnostic counters. Intended for tests.
func ResetCounters() {
	paddingCount.Store(0)
	restoreCount.Store(0)
}

// EnforceMinimums deterministically pads a near-complete feature: main flow
// up to th.MainFlowMin items and acceptance criteria up to th.AcceptanceMin,
// appending generic placeholders numbered to continue the existing sequence.
// No model call is ever made. Idempotent once the minimums are met.
func EnforceMinimums(f document.Feature, th config.Thresholds) document.Feature {
	out := f.Clone()

	for len(out.MainFlow) < th.MainFlowMin {
		n := len(out.MainFlow) + 1
		out.MainFlow = append(out.MainFlow, fmt.Sprintf("Step %d of the main flow is still to be detailed.", n))
		paddingCount.Add(1)
	}

	for len(out.AcceptanceCriteria) < th.AcceptanceMin {
		n := len(out.AcceptanceCriteria) + 1
		out.AcceptanceCriteria = append(out.AcceptanceCriteria, fmt.Sprintf("Criterion %d is still to be defined.", n))
		paddingCount.Add(1)
	}

	return out
}
