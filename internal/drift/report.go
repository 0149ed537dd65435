package drift

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/hanno79/prdc/internal/assemble"
	"github.com/hanno79/prdc/internal/document"
)

// Warnings renders a Diff as human-readable drift warnings, one per line.
// Returns nil when no drift was detected.
func Warnings(d Diff) []string {
	var out []string
	for _, key := range d.MissingSections {
		out = append(out, fmt.Sprintf("section %q lost its content", document.CanonicalHeading(key)))
	}
	if len(d.RemovedFeatures) > 0 {
		out = append(out, fmt.Sprintf("features removed: %s", strings.Join(d.RemovedFeatures, ", ")))
	}
	if len(d.AddedFeatures) > 0 {
		out = append(out, fmt.Sprintf("features added: %s", strings.Join(d.AddedFeatures, ", ")))
	}
	if d.FeatureOrderChanged {
		out = append(out, "feature order changed between snapshots")
	}
	return out
}

// Report renders a full drift report between two snapshots: the warnings,
// a unified diff of the assembled documents, and inline word-level diffs for
// canonical sections whose content changed.
func Report(prev, cur *document.Document) string {
	d := Compare(prev, cur)

	var sb strings.Builder
	warnings := Warnings(d)
	if len(warnings) == 0 {
		sb.WriteString("no structural drift detected\n")
	}
	for _, w := range warnings {
		sb.WriteString("WARN: ")
		sb.WriteString(w)
		sb.WriteString("\n")
	}

	prevText := assemble.Assemble(prev)
	curText := assemble.Assemble(cur)
	if prevText != curText {
		ud := difflib.UnifiedDiff{
			A:        difflib.SplitLines(prevText),
			B:        difflib.SplitLines(curText),
			FromFile: "previous",
			ToFile:   "current",
			Context:  3,
		}
		if patch, err := difflib.GetUnifiedDiffString(ud); err == nil && patch != "" {
			sb.WriteString("\n")
			sb.WriteString(patch)
		}
	}

	dmp := diffmatchpatch.New()
	for _, key := range document.CanonicalSectionOrder {
		before, after := prev.Section(key), cur.Section(key)
		if before == after || before == "" || after == "" {
			continue
		}
		diffs := dmp.DiffMain(before, after, false)
		dmp.DiffCleanupSemantic(diffs)
		if len(diffs) > 1 {
			fmt.Fprintf(&sb, "\n%s:\n%s\n", document.CanonicalHeading(key), dmp.DiffPrettyText(diffs))
		}
	}

	return sb.String()
}
