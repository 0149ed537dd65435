// Package integrity defends a document against AI-introduced structural
// regression: it judges whether an edited feature is a lawful evolution of
// its predecessor, rolls back features that fail, and pads near-complete
// features up to the configured structural minimums.
package integrity

import (
	"regexp"
	"strings"

	"github.com/hanno79/prdc/internal/config"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/logger"
)

// Result reports the outcome of validating one feature transition. Valid is
// true only when every individual check passed.
type Result struct {
	Valid              bool
	MissingSections    []string
	SevereShrinkage    bool
	MainFlowUnnumbered bool
	AcceptanceTrivial  bool
}

// Reasons renders the failing checks as human-readable diagnostics.
func (r Result) Reasons() []string {
	var out []string
	for _, name := range r.MissingSections {
		out = append(out, "missing section: "+name)
	}
	if r.SevereShrinkage {
		out = append(out, "content shrank below the allowed ratio")
	}
	if r.MainFlowUnnumbered {
		out = append(out, "main flow does not begin with step 1.")
	}
	if r.AcceptanceTrivial {
		out = append(out, "acceptance criteria below minimum length")
	}
	return out
}

var numberedStartRe = regexp.MustCompile(`^\s*1[.)]\s+`)

// ValidateFeature checks whether cur is a lawful evolution of prev for the
// same feature id. All checks must pass for Valid to be true.
func ValidateFeature(prev, cur document.Feature, th config.Thresholds) Result {
	res := Result{}

	for _, key := range document.CanonicalFieldOrder {
		if !headerLocatable(cur.RawContent, key) {
			res.MissingSections = append(res.MissingSections, document.CanonicalFieldHeading(key))
		}
	}

	if len(prev.RawContent) > 0 {
		ratio := float64(len(cur.RawContent)) / float64(len(prev.RawContent))
		if ratio < th.ShrinkageRatio {
			res.SevereShrinkage = true
		}
	}

	if flow := rawSectionBody(cur.RawContent, document.FieldMainFlow); flow != "" {
		if !numberedStartRe.MatchString(firstNonEmptyLine(flow)) {
			res.MainFlowUnnumbered = true
		}
	}

	if ac := rawSectionBody(cur.RawContent, document.FieldAcceptanceCriteria); ac != "" {
		if len(ac) < th.AcceptanceMinLen {
			res.AcceptanceTrivial = true
		}
	}

	res.Valid = len(res.MissingSections) == 0 &&
		!res.SevereShrinkage && !res.MainFlowUnnumbered && !res.AcceptanceTrivial
	return res
}

// EnforceIntegrity applies ValidateFeature across a snapshot transition.
// A feature that fails validation is discarded wholesale and the previous
// snapshot's feature reinstated verbatim; there is never a partial merge.
// Returns the enforced snapshot and the number of rollbacks performed.
func EnforceIntegrity(prev, cur *document.Document, th config.Thresholds) (*document.Document, int) {
	out := cur.Clone()
	restores := 0
	for i, f := range out.Features {
		before, ok := prev.FeatureByID(f.ID)
		if !ok {
			continue
		}
		res := ValidateFeature(before, f, th)
		if res.Valid {
			continue
		}
		logger.Warn("integrity: rolling back %s: %s", f.ID, strings.Join(res.Reasons(), "; "))
		out.Features[i] = before.Clone()
		restores++
		restoreCount.Add(1)
	}
	return out, restores
}

// headerLocatable reports whether the canonical subsection header for key
// can still be found in raw content.
func headerLocatable(raw string, key document.FieldKey) bool {
	for _, line := range strings.Split(raw, "\n") {
		if k, _, ok := document.MatchFieldHeader(line); ok && k == key {
			return true
		}
	}
	return false
}

// rawSectionBody returns the verbatim text between key's header line and the
// next recognized header in raw, with list markers intact. Empty when the
// header cannot be located.
func rawSectionBody(raw string, key document.FieldKey) string {
	var body []string
	collecting := false
	for _, line := range strings.Split(raw, "\n") {
		if k, rest, ok := document.MatchFieldHeader(line); ok {
			if collecting {
				break
			}
			if k == key {
				collecting = true
				if rest != "" {
					body = append(body, rest)
				}
			}
			continue
		}
		if collecting {
			body = append(body, line)
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

func firstNonEmptyLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
