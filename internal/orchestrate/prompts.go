package orchestrate

import (
	"fmt"
	"strings"

	"github.com/hanno79/prdc/internal/document"
)

const generateSystem = `You draft product requirements documents.

Structure rules:
- Use these top-level sections, each as a "## " heading: System Vision,
  System Boundaries, Domain Model, Global Business Rules, Non-Functional
  Requirements, Error Handling, Deployment, Definition of Done.
- Then a "## Feature Catalogue" section listing every feature as
  "### F-NN: Name" with the ten bold subsections: Purpose, Actors, Trigger,
  Preconditions, Postconditions, Data Impact, UI Impact, Main Flow,
  Alternate Flows, Acceptance Criteria.
- Number Main Flow steps starting at 1. Give at least two acceptance
  criteria per feature.
- Return the document as plain markdown, nothing else.`

const reviewSystem = `You review a product requirements document for gaps:
vague requirements, missing failure modes, features without acceptance
criteria, inconsistent terminology. Return a concise numbered list of
concrete findings. Do not rewrite the document.`

const refineSystem = `You revise a product requirements document.

Hard rules:
- Keep every existing feature id. Never drop or renumber a feature.
- Keep all section headings. Never leave a previously filled section empty.
- Apply the requested changes; leave unrelated content untouched.
- Return the complete revised document as plain markdown, nothing else.`

func generatePrompt(brief string) string {
	return fmt.Sprintf("Draft a complete requirements document for:\n\n%s", strings.TrimSpace(brief))
}

func reviewPrompt(docText, feedback string) string {
	var sb strings.Builder
	sb.WriteString("Review the following document.\n\n")
	writeTagged(&sb, "document", docText)
	if strings.TrimSpace(feedback) != "" {
		sb.WriteString("\nThe author asked for:\n")
		sb.WriteString(strings.TrimSpace(feedback))
		sb.WriteString("\n")
	}
	return sb.String()
}

func refinePrompt(docText, feedback string) string {
	var sb strings.Builder
	writeTagged(&sb, "document", docText)
	sb.WriteString("\nRequested changes:\n")
	sb.WriteString(strings.TrimSpace(feedback))
	sb.WriteString("\n\nSections that must stay present: ")
	names := make([]string, 0, len(document.CanonicalSectionOrder))
	for _, key := range document.CanonicalSectionOrder {
		names = append(names, document.CanonicalHeading(key))
	}
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(".\n")
	return sb.String()
}

// writeTagged wraps content in XML-style tags for prompt insertion.
func writeTagged(sb *strings.Builder, tag, content string) {
	fmt.Fprintf(sb, "<%s>\n", tag)
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	fmt.Fprintf(sb, "</%s>\n", tag)
}
