package integrity

import (
	"strings"
	"testing"

	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/parser"
)

func thresholds() config.Thresholds {
	return config.Default().Thresholds
}

// fullBlock returns a raw feature block containing all ten canonical
// headers, padded to roughly n bytes.
func fullBlock(n int) string {
	var sb strings.Builder
	for _, key := range document.CanonicalFieldOrder {
		sb.WriteString("**" + document.CanonicalFieldHeading(key) + "**\n")
		if key == document.FieldMainFlow {
			sb.WriteString("1. First step\n2. Second step\n")
		} else {
			sb.WriteString("Some body text for this section.\n")
		}
	}
	for sb.Len() < n {
		sb.WriteString("x")
	}
	return sb.String()
}

func TestValidateFeature_AllHeadersPresent(t *testing.T) {
	raw := fullBlock(0)
	prev := document.Feature{ID: "F-01", RawContent: raw}
	cur := document.Feature{ID: "F-01", RawContent: raw}

	res := ValidateFeature(prev, cur, thresholds())
	if !res.Valid {
		t.Errorf("expected valid, got %+v (reasons %v)", res, res.Reasons())
	}
}

func TestValidateFeature_MissingSectionNamed(t *testing.T) {
	raw := fullBlock(0)
	shrunk := strings.Replace(raw, "**Acceptance Criteria**", "removed", 1)
	res := ValidateFeature(
		document.Feature{RawContent: raw},
		document.Feature{RawContent: shrunk + strings.Repeat("x", 40)},
		thresholds(),
	)
	if res.Valid {
		t.Fatal("expected invalid")
	}
	found := false
	for _, name := range res.MissingSections {
		if name == "Acceptance Criteria" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing sections = %v, want Acceptance Criteria listed", res.MissingSections)
	}
}

func TestValidateFeature_ShrinkageBoundary(t *testing.T) {
	prev := document.Feature{RawContent: strings.Repeat("a", 100)}

	at69 := ValidateFeature(prev, document.Feature{RawContent: strings.Repeat("a", 69)}, thresholds())
	if !at69.SevereShrinkage {
		t.Error("69% of previous length must flag severe shrinkage")
	}

	at71 := ValidateFeature(prev, document.Feature{RawContent: strings.Repeat("a", 71)}, thresholds())
	if at71.SevereShrinkage {
		t.Error("71% of previous length must not flag severe shrinkage")
	}
}

func TestValidateFeature_UnnumberedMainFlow(t *testing.T) {
	raw := strings.Replace(fullBlock(0), "1. First step\n2. Second step", "start somewhere\nthen continue", 1)
	res := ValidateFeature(document.Feature{RawContent: raw}, document.Feature{RawContent: raw}, thresholds())
	if !res.MainFlowUnnumbered {
		t.Errorf("expected MainFlowUnnumbered, got %+v", res)
	}
}

func TestValidateFeature_TrivialAcceptanceCriteria(t *testing.T) {
	raw := fullBlock(0)
	// Shrink the acceptance criteria body below the minimum length while
	// keeping the header present.
	idx := strings.Index(raw, "**Acceptance Criteria**")
	trivial := raw[:idx] + "**Acceptance Criteria**\nok\n"
	res := ValidateFeature(document.Feature{RawContent: trivial}, document.Feature{RawContent: trivial}, thresholds())
	if !res.AcceptanceTrivial {
		t.Errorf("expected AcceptanceTrivial, got %+v", res)
	}
}

func TestEnforceIntegrity_RollsBackWholesale(t *testing.T) {
	ResetCounters()
	prevRaw := fullBlock(200)
	prev := parserDoc(t, "### F-01: Login\n"+prevRaw)
	cur := parserDoc(t, "### F-01: Login\ntiny replacement")

	out, restores := EnforceIntegrity(prev, cur, thresholds())
	if restores != 1 {
		t.Fatalf("restores = %d, want 1", restores)
	}
	if out.Features[0].RawContent != prev.Features[0].RawContent {
		t.Error("failed feature must be reinstated verbatim from the previous snapshot")
	}
	if RestoreEvents() != 1 {
		t.Errorf("restore counter = %d, want 1", RestoreEvents())
	}
}

func TestEnforceIntegrity_KeepsValidFeatures(t *testing.T) {
	raw := fullBlock(0)
	prev := parserDoc(t, "### F-01: Login\n"+raw)
	cur := parserDoc(t, "### F-01: Login\n"+raw+"\nmore detail added")

	out, restores := EnforceIntegrity(prev, cur, thresholds())
	if restores != 0 {
		t.Fatalf("restores = %d, want 0", restores)
	}
	if !strings.Contains(out.Features[0].RawContent, "more detail added") {
		t.Error("valid evolution must be kept")
	}
}

func TestEnforceMinimums_PadsAndNumbersContinuation(t *testing.T) {
	ResetCounters()
	f := document.Feature{
		ID:                 "F-01",
		MainFlow:           []string{"Open page", "Submit"},
		AcceptanceCriteria: []string{"Works", "Fails gracefully"},
	}
	out := EnforceMinimums(f, thresholds())

	if len(out.MainFlow) != 4 {
		t.Fatalf("mainFlow has %d items, want 4", len(out.MainFlow))
	}
	if !strings.Contains(out.MainFlow[2], "3") || !strings.Contains(out.MainFlow[3], "4") {
		t.Errorf("placeholders must continue the numbering: %v", out.MainFlow[2:])
	}
	if len(out.AcceptanceCriteria) != 2 {
		t.Errorf("acceptance criteria already at minimum, got %v", out.AcceptanceCriteria)
	}
	if PaddingEvents() != 2 {
		t.Errorf("padding counter = %d, want 2", PaddingEvents())
	}

	again := EnforceMinimums(out, thresholds())
	if len(again.MainFlow) != 4 || len(again.AcceptanceCriteria) != 2 {
		t.Error("re-running on a padded feature must be a no-op")
	}
	if PaddingEvents() != 2 {
		t.Errorf("no-op run must not bump the counter, got %d", PaddingEvents())
	}
}

func TestEnforceMinimums_DoesNotMutateInput(t *testing.T) {
	f := document.Feature{MainFlow: []string{"only"}}
	_ = EnforceMinimums(f, thresholds())
	if len(f.MainFlow) != 1 {
		t.Error("input feature mutated")
	}
}

func parserDoc(t *testing.T, text string) *document.Document {
	t.Helper()
	return parser.Parse(text)
}
