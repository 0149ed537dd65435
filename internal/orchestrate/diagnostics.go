package orchestrate

import (
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/llm"
)

// Diagnostics summarizes what one orchestration run did to the document.
type Diagnostics struct {
	RunID string `json:"runId"`

	StructuredFeatureCount int `json:"structuredFeatureCount"`
	TotalFeatureCount      int `json:"totalFeatureCount"`

	// FullRegenerations counts whole-document generator calls.
	FullRegenerations int `json:"fullRegenerations"`

	// FeaturePreservations counts base features that survived the run
	// byte-identical.
	FeaturePreservations int `json:"featurePreservations"`

	// FeatureIntegrityRestores counts per-feature rollbacks to the previous
	// snapshot.
	FeatureIntegrityRestores int `json:"featureIntegrityRestores"`

	// DriftEvents counts snapshot transitions where structural drift was
	// detected and restoration applied.
	DriftEvents int `json:"driftEvents"`

	// BlockedRegenerationAttempts counts candidate snapshots discarded in
	// favor of a restored one.
	BlockedRegenerationAttempts int `json:"blockedRegenerationAttempts"`

	// FreezeSeedSource records where the base snapshot came from:
	// "sha256:<hex>" of the supplied text, or "generated".
	FreezeSeedSource string `json:"freezeSeedSource"`
}

// StepDiagnostic records one pipeline stage for the caller.
type StepDiagnostic struct {
	Step  string    `json:"step"`
	Model string    `json:"model,omitempty"`
	Usage llm.Usage `json:"usage,omitempty"`
	Note  string    `json:"note,omitempty"`
}

// countFeatures fills the per-snapshot feature counters.
func (d *Diagnostics) countFeatures(doc *document.Document, structuredMin int) {
	d.TotalFeatureCount = len(doc.Features)
	d.StructuredFeatureCount = 0
	for _, f := range doc.Features {
		if f.IsStructured(structuredMin) {
			d.StructuredFeatureCount++
		}
	}
}

// countPreservations compares final against base and counts features kept
// verbatim.
func (d *Diagnostics) countPreservations(base, final *document.Document) {
	d.FeaturePreservations = 0
	for _, f := range final.Features {
		if before, ok := base.FeatureByID(f.ID); ok && before.RawContent == f.RawContent {
			d.FeaturePreservations++
		}
	}
}
