package orchestrate

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hanno79/prdc/internal/client"
	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/llm"
	"github.com/hanno79/prdc/internal/logger"
	"github.com/hanno79/prdc/internal/parser"
	"github.com/hanno79/prdc/internal/repair"
)

// maxExpandConcurrency bounds parallel per-feature model calls.
const maxExpandConcurrency = 4

// ExpandFeatures asks the generator to expand each listed feature in
// parallel. Features are independent, so one feature's failure is isolated:
// it is logged and simply omitted from the result, never aborting siblings.
// Returns the successfully expanded features in the input order.
func ExpandFeatures(ctx context.Context, caller Caller, cfg *config.Config, doc *document.Document, ids []string) ([]document.Feature, error) {
	targets := make([]document.Feature, 0, len(ids))
	for _, id := range ids {
		norm := document.NormalizeID(id)
		f, ok := doc.FeatureByID(norm)
		if !ok {
			return nil, fmt.Errorf("feature %q not found in document", id)
		}
		targets = append(targets, f)
	}

	results := make([]*document.Feature, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxExpandConcurrency)

	for i, f := range targets {
		i, f := i, f
		g.Go(func() error {
			expanded, err := expandOne(gctx, caller, cfg, f)
			if err != nil {
				// Isolated: siblings continue, this feature is omitted.
				logger.Warn("expand: %s failed and is omitted: %v", f.ID, err)
				return nil
			}
			results[i] = expanded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]document.Feature, 0, len(results))
	for _, f := range results {
		if f != nil {
			out = append(out, *f)
		}
	}
	return out, nil
}

const expandSystem = `You expand one feature of a product requirements document.
Keep the feature id and name. Write all ten subsections as bold headers:
Purpose, Actors, Trigger, Preconditions, Postconditions, Data Impact,
UI Impact, Main Flow, Alternate Flows, Acceptance Criteria.
Number Main Flow steps starting at 1. Return only the feature block.`

// expandOne runs the generator for a single feature, then repairs the block
// so a malformed response cannot leak structural defects into the document.
func expandOne(ctx context.Context, caller Caller, cfg *config.Config, f document.Feature) (*document.Feature, error) {
	res, err := caller.CallWithFallback(ctx, client.RoleGenerator, &llm.Request{
		SystemPrompt: expandSystem,
		UserPrompt:   fmt.Sprintf("### %s: %s\n\n%s", f.ID, f.Name, f.RawContent),
	})
	if err != nil {
		return nil, err
	}

	outcome := repair.Repair(ctx, caller, stripFeatureHeading(res.Content, f.ID))
	if len(outcome.StillFailing) > 0 {
		logger.Debug("expand: %s still failing after repair: %s", f.ID, strings.Join(outcome.StillFailing, ", "))
	}

	expanded := document.Feature{ID: f.ID, Name: f.Name, RawContent: outcome.Content}
	parser.ExtractFields(&expanded, outcome.Content)
	return &expanded, nil
}

// stripFeatureHeading drops an echoed "### F-xx: Name" first line so the
// block body stays header-free.
func stripFeatureHeading(content, id string) string {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) > 0 {
		first := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(lines[0]), "#"))
		if strings.HasPrefix(strings.ToUpper(first), strings.ToUpper(id)) {
			lines = lines[1:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
