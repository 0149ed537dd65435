package orchestrate

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/hanno79/prdc/internal/client"
	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/llm"
	"github.com/hanno79/prdc/internal/parser"
)

// featureBlock renders a fully structured feature for fixtures.
func featureBlock(id, name string) string {
	return fmt.Sprintf(`### %s: %s

**Purpose**

Give users the %s capability.

**Actors**

Registered user.

**Trigger**

User opens the relevant screen.

**Preconditions**

The user is signed in.

**Postconditions**

The action is recorded.

**Data Impact**

One row is appended to the activity table.

**UI Impact**

A confirmation message is shown.

**Main Flow**

1. User opens the screen.
2. User fills the form.
3. User confirms.
4. System stores the result.

**Alternate Flows**

- Validation fails and the form shows errors.

**Acceptance Criteria**

- The happy path completes in under two seconds.
- Errors keep the user's input intact.
`, id, name, strings.ToLower(name))
}

func fixtureText(ids ...string) string {
	var sb strings.Builder
	sb.WriteString("## System Vision\n\nShip the requirements tool.\n\n## Feature Catalogue\n\n")
	for _, id := range ids {
		sb.WriteString(featureBlock(id, "Feature "+id))
		sb.WriteString("\n")
	}
	return sb.String()
}

// scriptedCaller returns canned responses in call order, thread-safe because
// feature expansion calls it concurrently.
type scriptedCaller struct {
	mu        sync.Mutex
	responses []string
	failWhen  func(req *llm.Request) error
	requests  []*llm.Request
	roles     []client.Role
}

func (s *scriptedCaller) CallWithFallback(ctx context.Context, role client.Role, req *llm.Request) (*client.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	s.roles = append(s.roles, role)
	if s.failWhen != nil {
		if err := s.failWhen(req); err != nil {
			return nil, err
		}
	}
	i := len(s.requests) - 1
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	return &client.Result{
		Content: s.responses[i],
		Model:   "fake:model",
		Usage:   llm.Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}

func TestRun_GeneratePipeline(t *testing.T) {
	draft := fixtureText("F-01", "F-02", "F-03")
	caller := &scriptedCaller{responses: []string{
		draft,
		"The draft is solid; tighten the vision wording.",
		draft,
	}}

	out, err := Run(context.Background(), caller, config.Default(), Input{
		Mode:     ModeGenerate,
		Feedback: "A tool that compiles product requirements.",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(caller.requests) != 3 {
		t.Fatalf("model calls = %d, want generate+review+revise", len(caller.requests))
	}
	if caller.roles[1] != client.RoleReviewer {
		t.Errorf("second call role = %s, want reviewer", caller.roles[1])
	}
	// The reviewer sees the generator's draft, never an empty document.
	if !strings.Contains(caller.requests[1].UserPrompt, "F-01") {
		t.Error("review prompt does not carry the draft")
	}

	if !strings.Contains(out.FinalContent, "### F-01: Feature F-01") {
		t.Errorf("final content missing features:\n%s", out.FinalContent)
	}
	if out.Diagnostics.FullRegenerations != 2 {
		t.Errorf("FullRegenerations = %d, want 2", out.Diagnostics.FullRegenerations)
	}
	if out.Diagnostics.TotalFeatureCount != 3 || out.Diagnostics.StructuredFeatureCount != 3 {
		t.Errorf("feature counts = %d/%d, want 3/3",
			out.Diagnostics.StructuredFeatureCount, out.Diagnostics.TotalFeatureCount)
	}
	if out.Diagnostics.FreezeSeedSource != "generated" {
		t.Errorf("FreezeSeedSource = %q", out.Diagnostics.FreezeSeedSource)
	}
	if out.Diagnostics.RunID == "" {
		t.Error("RunID not assigned")
	}
	if out.Usage.TotalTokens != 60 {
		t.Errorf("TotalTokens = %d, want 60", out.Usage.TotalTokens)
	}
	if len(out.ModelsUsed) != 1 {
		t.Errorf("ModelsUsed = %v, want deduped single entry", out.ModelsUsed)
	}
}

func TestRun_RefineRestoresDroppedFeature(t *testing.T) {
	existing := fixtureText("F-01", "F-02", "F-03")
	revision := fixtureText("F-01", "F-03")
	caller := &scriptedCaller{responses: []string{revision}}

	out, err := Run(context.Background(), caller, config.Default(), Input{
		Mode:         ModeRefine,
		ExistingText: existing,
		Feedback:     "Reword the vision.",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, ok := out.Document.FeatureByID("F-02"); !ok {
		t.Error("dropped feature F-02 not restored")
	}
	if !strings.Contains(out.FinalContent, "### F-02: Feature F-02") {
		t.Error("restored feature missing from final content")
	}
	if out.Diagnostics.DriftEvents != 1 {
		t.Errorf("DriftEvents = %d, want 1", out.Diagnostics.DriftEvents)
	}
	if out.Diagnostics.BlockedRegenerationAttempts != 1 {
		t.Errorf("BlockedRegenerationAttempts = %d, want 1", out.Diagnostics.BlockedRegenerationAttempts)
	}
	if !strings.HasPrefix(out.Diagnostics.FreezeSeedSource, "sha256:") {
		t.Errorf("FreezeSeedSource = %q", out.Diagnostics.FreezeSeedSource)
	}
	if out.Diagnostics.FeaturePreservations < 2 {
		t.Errorf("FeaturePreservations = %d, want at least the untouched features", out.Diagnostics.FeaturePreservations)
	}
}

func TestRun_RefineWithoutDocumentFails(t *testing.T) {
	caller := &scriptedCaller{responses: []string{"irrelevant"}}
	if _, err := Run(context.Background(), caller, config.Default(), Input{Mode: ModeRefine}); err == nil {
		t.Error("refine without an existing document must fail")
	}
}

func TestRun_UnknownMode(t *testing.T) {
	caller := &scriptedCaller{responses: []string{"irrelevant"}}
	if _, err := Run(context.Background(), caller, config.Default(), Input{Mode: "compile"}); err == nil {
		t.Error("unknown mode must fail")
	}
}

func TestRun_GeneratorFailurePropagates(t *testing.T) {
	caller := &scriptedCaller{
		responses: []string{"unused"},
		failWhen:  func(*llm.Request) error { return fmt.Errorf("all candidates failed") },
	}
	_, err := Run(context.Background(), caller, config.Default(), Input{Mode: ModeGenerate, Feedback: "x"})
	if err == nil || !strings.Contains(err.Error(), "all candidates failed") {
		t.Errorf("causal chain lost: %v", err)
	}
}

func TestRegenerateSection_SplicesCopy(t *testing.T) {
	doc := parser.Parse(fixtureText("F-01"))
	updated := "The platform compiles product requirements into reviewable documents."
	caller := &scriptedCaller{responses: []string{
		fmt.Sprintf(`{"sectionName":"systemVision","updatedContent":%q}`, updated),
	}}

	out, res, err := RegenerateSection(context.Background(), caller, config.Default(), doc, document.SectionSystemVision, "sharpen it")
	if err != nil {
		t.Fatalf("RegenerateSection: %v", err)
	}
	if out.Section(document.SectionSystemVision) != updated {
		t.Errorf("section not spliced: %q", out.Section(document.SectionSystemVision))
	}
	if doc.Section(document.SectionSystemVision) == updated {
		t.Error("input document mutated")
	}
	if res.AttemptsUsed != 1 {
		t.Errorf("AttemptsUsed = %d", res.AttemptsUsed)
	}
}

func TestExpandFeatures_ParallelIsolation(t *testing.T) {
	doc := parser.Parse(fixtureText("F-01", "F-02", "F-03"))
	caller := &scriptedCaller{
		responses: []string{featureBlock("F-00", "Placeholder")},
		failWhen: func(req *llm.Request) error {
			if strings.Contains(req.UserPrompt, "F-02") {
				return fmt.Errorf("all candidates failed")
			}
			return nil
		},
	}

	out, err := ExpandFeatures(context.Background(), caller, config.Default(), doc, []string{"F-01", "F-02", "F-03"})
	if err != nil {
		t.Fatalf("ExpandFeatures: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expanded = %d features, want the 2 that succeeded", len(out))
	}
	// Input order preserved; the failed feature is omitted, ids kept.
	if out[0].ID != "F-01" || out[1].ID != "F-03" {
		t.Errorf("ids = %s, %s", out[0].ID, out[1].ID)
	}
	if out[0].Text(document.FieldPurpose) == "" {
		t.Error("expanded feature fields not extracted")
	}
}

func TestExpandFeatures_UnknownID(t *testing.T) {
	doc := parser.Parse(fixtureText("F-01"))
	caller := &scriptedCaller{responses: []string{"unused"}}
	if _, err := ExpandFeatures(context.Background(), caller, config.Default(), doc, []string{"F-99"}); err == nil {
		t.Error("unknown feature id must fail before any model call")
	}
}
