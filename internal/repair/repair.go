// Package repair fixes structurally malformed feature blocks. Phase 1 is
// local and deterministic: headers are resynthesized in canonical order with
// existing body text preserved verbatim. Phase 2 escalates to a constrained
// model call only when phase 1 leaves defects, and any model failure falls
// back silently to the phase-1 result.
package repair

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hanno79/prdc/internal/client"
	"github.com/hanno79/prdc/internal/document"
	"github.com/hanno79/prdc/internal/llm"
	"github.com/hanno79/prdc/internal/logger"
)

// Caller is the model-client slice used by phase 2. A nil Caller disables
// escalation entirely.
type Caller interface {
	CallWithFallback(ctx context.Context, role client.Role, req *llm.Request) (*client.Result, error)
}

// placeholderBody fills sections whose header could not be located.
const placeholderBody = "To be specified."

// Outcome is the result of repairing one feature block.
type Outcome struct {
	Content string
	// Repaired names the sections phase 1 fixed: missing headers that got a
	// placeholder and duplicate headers that were merged.
	Repaired []string
	// StillFailing names the sections with unresolved formatting defects.
	StillFailing []string
	// ModelAssisted is true when the phase-2 result was accepted.
	ModelAssisted bool
}

// Repair runs the two-phase pipeline over a feature's raw content.
func Repair(ctx context.Context, caller Caller, raw string) Outcome {
	content, repaired := phase1(raw)
	failing := formatDefects(content)

	out := Outcome{Content: content, Repaired: repaired, StillFailing: failing}
	if len(failing) == 0 || caller == nil {
		return out
	}

	fixed, err := phase2(ctx, caller, content, failing)
	if err != nil {
		// Escalation is best-effort; the deterministic result stands.
		logger.Debug("repair: model escalation failed, keeping phase-1 result: %v", err)
		return out
	}

	out.Content = fixed
	out.StillFailing = formatDefects(fixed)
	out.ModelAssisted = true
	return out
}

// phase1 re-emits all ten canonical headers in fixed order. Existing body
// text is preserved verbatim; missing sections get a placeholder; duplicate
// headers are merged, first occurrence winning with later bodies appended.
func phase1(raw string) (content string, repaired []string) {
	bodies := make(map[document.FieldKey][]string)
	var preamble []string
	var cur document.FieldKey
	inSection := false

	for _, line := range strings.Split(raw, "\n") {
		if key, rest, ok := document.MatchFieldHeader(line); ok {
			cur = key
			inSection = true
			if rest != "" {
				bodies[key] = append(bodies[key], rest)
			}
			continue
		}
		if !inSection {
			preamble = append(preamble, line)
			continue
		}
		bodies[cur] = append(bodies[cur], line)
	}

	duplicates := countDuplicateHeaders(raw)

	var sb strings.Builder
	if p := strings.TrimSpace(strings.Join(preamble, "\n")); p != "" {
		sb.WriteString(p)
		sb.WriteString("\n\n")
	}
	for _, key := range document.CanonicalFieldOrder {
		name := document.CanonicalFieldHeading(key)
		fmt.Fprintf(&sb, "**%s**\n\n", name)
		body := strings.TrimSpace(strings.Join(bodies[key], "\n"))
		if body == "" {
			body = placeholderBody
			repaired = append(repaired, name)
		} else if duplicates[key] {
			repaired = append(repaired, name)
		}
		sb.WriteString(body)
		sb.WriteString("\n\n")
	}
	return strings.TrimSpace(sb.String()) + "\n", repaired
}

// countDuplicateHeaders reports which fields had more than one header line
// in the original block.
func countDuplicateHeaders(raw string) map[document.FieldKey]bool {
	counts := make(map[document.FieldKey]int)
	for _, line := range strings.Split(raw, "\n") {
		if key, _, ok := document.MatchFieldHeader(line); ok {
			counts[key]++
		}
	}
	out := make(map[document.FieldKey]bool)
	for key, n := range counts {
		if n > 1 {
			out[key] = true
		}
	}
	return out
}

var numberedStepRe = regexp.MustCompile(`^\s*1[.)]\s+`)

// formatDefects lists sections whose content still violates formatting
// rules after rebuilding: a Main Flow that does not start with a numbered
// "1." step, or a section whose body is still the placeholder.
func formatDefects(content string) []string {
	var out []string
	flow := sectionBody(content, document.FieldMainFlow)
	if flow != "" && flow != placeholderBody && !numberedStepRe.MatchString(firstLine(flow)) {
		out = append(out, document.CanonicalFieldHeading(document.FieldMainFlow))
	}
	for _, key := range document.CanonicalFieldOrder {
		if sectionBody(content, key) == placeholderBody {
			out = append(out, document.CanonicalFieldHeading(key))
		}
	}
	return out
}

func sectionBody(content string, key document.FieldKey) string {
	var body []string
	collecting := false
	for _, line := range strings.Split(content, "\n") {
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

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}

const phase2System = `You fix the formatting of one feature block of a requirements document.
PLACEMENT ONLY: move existing text under the correct headers and number flow
steps. You must not rewrite, shorten, extend, or invent any wording.
Return the corrected block as plain text with the same ten bold headers.`

// phase2 asks the model to resolve the remaining defects without rewriting.
// The response is accepted only when every canonical header is still
// locatable and the content did not shrink materially.
func phase2(ctx context.Context, caller Caller, content string, failing []string) (string, error) {
	req := &llm.Request{
		SystemPrompt: phase2System,
		UserPrompt: fmt.Sprintf("Unresolved sections: %s\n\n<block>\n%s\n</block>",
			strings.Join(failing, ", "), content),
	}
	res, err := caller.CallWithFallback(ctx, client.RoleGenerator, req)
	if err != nil {
		return "", err
	}

	fixed := strings.TrimSpace(res.Content)
	for _, key := range document.CanonicalFieldOrder {
		if !headerPresent(fixed, key) {
			return "", fmt.Errorf("model dropped section %q", document.CanonicalFieldHeading(key))
		}
	}
	if len(fixed) < len(content)*7/10 {
		return "", fmt.Errorf("model shrank the block from %d to %d bytes", len(content), len(fixed))
	}
	return fixed + "\n", nil
}

func headerPresent(content string, key document.FieldKey) bool {
	for _, line := range strings.Split(content, "\n") {
		if k, _, ok := document.MatchFieldHeader(line); ok && k == key {
			return true
		}
	}
	return false
}
