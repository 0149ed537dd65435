// Package orchestrate drives the generate → review → repair → merge
// workflows over the compiler stages. It owns no model preferences of its
// own: every run receives a per-request Caller and returns a new immutable
// snapshot plus diagnostics.
package orchestrate

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/hanno79/prdc/internal/assemble"
	"github.com/hanno79/prdc/internal/client"
	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/drift"
	"github.com/hanno79/prdc/internal/integrity"
	"github.com/hanno79/prdc/internal/llm"
	"github.com/hanno79/prdc/internal/logger"
	"github.com/hanno79/prdc/internal/merge"
	"github.com/hanno79/prdc/internal/parser"
	"github.com/hanno79/prdc/internal/regen"
)

// Caller is the model-client contract every stage shares.
type Caller interface {
	CallWithFallback(ctx context.Context, role client.Role, req *llm.Request) (*client.Result, error)
}

// Mode selects the workflow.
type Mode string

const (
	// ModeGenerate drafts a document from scratch (or from a short brief).
	ModeGenerate Mode = "generate"
	// ModeRefine revises an existing document against user feedback.
	ModeRefine Mode = "refine"
)

// Input is the request-handling collaborator's call shape.
type Input struct {
	// ExistingText is the persisted document, empty in generate mode.
	ExistingText string
	// Feedback is the free-text user direction for this iteration.
	Feedback string
	Mode     Mode
}

// Outcome is returned to the request-handling collaborator.
type Outcome struct {
	FinalContent string
	Document     *document.Document
	Steps        []StepDiagnostic
	Usage        llm.Usage
	ModelsUsed   []string
	Diagnostics  Diagnostics
}

// Run executes one orchestration workflow. Any stage failure propagates as
// one descriptive error preserving the causal chain.
func Run(ctx context.Context, caller Caller, cfg *config.Config, in Input) (*Outcome, error) {
	out := &Outcome{}
	out.Diagnostics.RunID = uuid.NewString()

	base := parser.Parse(in.ExistingText)
	if strings.TrimSpace(in.ExistingText) != "" {
		sum := sha256.Sum256([]byte(in.ExistingText))
		out.Diagnostics.FreezeSeedSource = fmt.Sprintf("sha256:%x", sum)
	} else {
		out.Diagnostics.FreezeSeedSource = "generated"
	}

	switch in.Mode {
	case ModeGenerate:
		if err := runGenerate(ctx, caller, cfg, in, base, out); err != nil {
			return nil, fmt.Errorf("generate workflow: %w", err)
		}
	case ModeRefine:
		if strings.TrimSpace(in.ExistingText) == "" {
			return nil, fmt.Errorf("refine workflow: no existing document supplied")
		}
		if err := runRefine(ctx, caller, cfg, in, base, out); err != nil {
			return nil, fmt.Errorf("refine workflow: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown mode %q", in.Mode)
	}

	out.Diagnostics.countFeatures(out.Document, cfg.Thresholds.StructuredFieldMin)
	out.Diagnostics.countPreservations(base, out.Document)
	return out, nil
}

// runGenerate drafts a fresh document from the user brief, then reviews and
// finalizes it. Generator output must exist before reviewer feedback is
// requested; the stages are causally chained.
func runGenerate(ctx context.Context, caller Caller, cfg *config.Config, in Input, base *document.Document, out *Outcome) error {
	genRes, err := caller.CallWithFallback(ctx, client.RoleGenerator, &llm.Request{
		SystemPrompt: generateSystem,
		UserPrompt:   generatePrompt(in.Feedback),
	})
	if err != nil {
		return fmt.Errorf("drafting document: %w", err)
	}
	out.record("generate", genRes)
	out.Diagnostics.FullRegenerations++

	draft := parser.Parse(genRes.Content)

	reviewRes, err := caller.CallWithFallback(ctx, client.RoleReviewer, &llm.Request{
		SystemPrompt: reviewSystem,
		UserPrompt:   reviewPrompt(assemble.AssembleWith(draft, cfg.Thresholds.StructuredFieldMin), in.Feedback),
	})
	if err != nil {
		return fmt.Errorf("reviewing draft: %w", err)
	}
	out.record("review", reviewRes)

	revised, err := reviseDraft(ctx, caller, cfg, draft, reviewRes.Content, out)
	if err != nil {
		return fmt.Errorf("applying review: %w", err)
	}

	out.finish(revised, cfg)
	return nil
}

// runRefine revises an existing document against feedback, then defends the
// base snapshot: integrity enforcement, drift restoration, and a
// richer-content merge back over the base.
func runRefine(ctx context.Context, caller Caller, cfg *config.Config, in Input, base *document.Document, out *Outcome) error {
	genRes, err := caller.CallWithFallback(ctx, client.RoleGenerator, &llm.Request{
		SystemPrompt: refineSystem,
		UserPrompt:   refinePrompt(in.ExistingText, in.Feedback),
	})
	if err != nil {
		return fmt.Errorf("revising document: %w", err)
	}
	out.record("revise", genRes)
	out.Diagnostics.FullRegenerations++

	candidate := parser.Parse(genRes.Content)

	enforced, restores := integrity.EnforceIntegrity(base, candidate, cfg.Thresholds)
	out.Diagnostics.FeatureIntegrityRestores += restores
	if restores > 0 {
		out.note("integrity", fmt.Sprintf("%d feature(s) rolled back", restores))
	}

	d := drift.Compare(base, enforced)
	if !d.Empty() {
		for _, w := range drift.Warnings(d) {
			logger.Warn("drift: %s", w)
		}
		enforced = drift.Restore(base, enforced)
		out.Diagnostics.DriftEvents++
		out.Diagnostics.BlockedRegenerationAttempts++
		out.note("drift", strings.Join(drift.Warnings(d), "; "))
	}

	merged := merge.Fold(base, enforced.Features)
	for _, key := range document.CanonicalSectionOrder {
		if body := enforced.Section(key); body != "" {
			merged.Sections[key] = body
		}
	}
	merged.FeatureCatalogueIntro = pickLonger(enforced.FeatureCatalogueIntro, merged.FeatureCatalogueIntro)

	out.finish(merged, cfg)
	return nil
}

// reviseDraft feeds the reviewer's findings back to the generator once.
func reviseDraft(ctx context.Context, caller Caller, cfg *config.Config, draft *document.Document, review string, out *Outcome) (*document.Document, error) {
	draftText := assemble.AssembleWith(draft, cfg.Thresholds.StructuredFieldMin)
	res, err := caller.CallWithFallback(ctx, client.RoleGenerator, &llm.Request{
		SystemPrompt: refineSystem,
		UserPrompt:   refinePrompt(draftText, "Apply this review:\n"+review),
	})
	if err != nil {
		return nil, err
	}
	out.record("revise", res)
	out.Diagnostics.FullRegenerations++

	candidate := parser.Parse(res.Content)
	enforced, restores := integrity.EnforceIntegrity(draft, candidate, cfg.Thresholds)
	out.Diagnostics.FeatureIntegrityRestores += restores

	d := drift.Compare(draft, enforced)
	if !d.Empty() {
		enforced = drift.Restore(draft, enforced)
		out.Diagnostics.DriftEvents++
		out.Diagnostics.BlockedRegenerationAttempts++
	}
	return enforced, nil
}

// RegenerateSection asks for one section as a data object and splices the
// result into a copy of doc.
func RegenerateSection(ctx context.Context, caller Caller, cfg *config.Config, doc *document.Document, key document.SectionKey, instructions string) (*document.Document, *regen.Result, error) {
	res, err := regen.Regenerate(ctx, caller, key, doc.Section(key), instructions, cfg.Thresholds)
	if err != nil {
		return nil, nil, err
	}
	out := doc.Clone()
	out.Sections[key] = strings.TrimSpace(res.UpdatedContent)
	return out, res, nil
}

// finish pads features to the structural minimums and renders the final
// content.
func (out *Outcome) finish(doc *document.Document, cfg *config.Config) {
	final := doc.Clone()
	for i, f := range final.Features {
		final.Features[i] = integrity.EnforceMinimums(f, cfg.Thresholds)
	}
	out.Document = final
	out.FinalContent = assemble.AssembleWith(final, cfg.Thresholds.StructuredFieldMin)
}

func (out *Outcome) record(step string, res *client.Result) {
	out.Steps = append(out.Steps, StepDiagnostic{Step: step, Model: res.Model, Usage: res.Usage})
	out.Usage.Add(res.Usage)
	for _, m := range out.ModelsUsed {
		if m == res.Model {
			return
		}
	}
	out.ModelsUsed = append(out.ModelsUsed, res.Model)
}

func (out *Outcome) note(step, note string) {
	out.Steps = append(out.Steps, StepDiagnostic{Step: step, Note: note})
}

func pickLonger(a, b string) string {
	if len(a) > len(b) {
		return a
	}
	return b
}
