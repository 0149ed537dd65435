// Package assemble renders a Document back into canonical PRD text, the
// parser's inverse. Canonicalization is idempotent: parsing assembled output
// and assembling again yields byte-identical text.
package assemble

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hanno79/prdc/internal/document"
)

// StructuredFieldMin is the default field count above which a feature
// renders from structured fields. Callers with a configured threshold use
// AssembleWith.
const StructuredFieldMin = 3

// Assemble renders doc with the default structured-feature threshold.
func Assemble(doc *document.Document) string {
	return AssembleWith(doc, StructuredFieldMin)
}

// AssembleWith renders doc to canonical text. Sections appear in the fixed
// canonical order regardless of source order, then the feature catalogue,
// then unrecognized sections in encounter order. Empty sections are omitted.
func AssembleWith(doc *document.Document, structuredMin int) string {
	var sb strings.Builder

	// Preamble text (captured under an empty heading) must precede any
	// heading, or re-parsing would fold it into the previous section.
	for _, os := range doc.OtherSections {
		if os.Heading == "" && os.Body != "" {
			sb.WriteString(strings.TrimSpace(os.Body))
			sb.WriteString("\n\n")
		}
	}

	for _, key := range document.CanonicalSectionOrder {
		body := doc.Section(key)
		if body == "" {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", document.CanonicalHeading(key), strings.TrimSpace(body))
	}

	if len(doc.Features) > 0 || doc.FeatureCatalogueIntro != "" {
		fmt.Fprintf(&sb, "## %s\n\n", document.CatalogueHeading)
		if intro := strings.TrimSpace(doc.FeatureCatalogueIntro); intro != "" {
			sb.WriteString(intro)
			sb.WriteString("\n\n")
		}
		for _, f := range doc.Features {
			writeFeature(&sb, f, structuredMin)
		}
	}

	for _, os := range doc.OtherSections {
		if os.Heading == "" || os.Body == "" {
			continue
		}
		fmt.Fprintf(&sb, "## %s\n\n%s\n\n", os.Heading, strings.TrimSpace(os.Body))
	}

	out := strings.TrimRight(sb.String(), "\n")
	if out == "" {
		return ""
	}
	return out + "\n"
}

func writeFeature(sb *strings.Builder, f document.Feature, structuredMin int) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		fmt.Fprintf(sb, "### %s\n\n", f.ID)
	} else {
		fmt.Fprintf(sb, "### %s: %s\n\n", f.ID, name)
	}

	if !f.IsStructured(structuredMin) {
		if raw := CleanRawContent(f.RawContent); raw != "" {
			sb.WriteString(raw)
			sb.WriteString("\n\n")
		}
		return
	}

	for _, key := range document.CanonicalFieldOrder {
		if f.FieldContentLen(key) == 0 {
			continue
		}
		fmt.Fprintf(sb, "**%s**\n\n", document.CanonicalFieldHeading(key))
		if document.IsListField(key) {
			writeList(sb, key, f.List(key))
		} else {
			sb.WriteString(strings.TrimSpace(f.Text(key)))
			sb.WriteString("\n\n")
		}
	}
}

// writeList renders list items: Main Flow steps are numbered, the other
// list fields are bulleted.
func writeList(sb *strings.Builder, key document.FieldKey, items []string) {
	for i, item := range items {
		if key == document.FieldMainFlow {
			fmt.Fprintf(sb, "%d. %s\n", i+1, item)
		} else {
			fmt.Fprintf(sb, "- %s\n", item)
		}
	}
	sb.WriteString("\n")
}

var (
	duplicateHeadingRe = regexp.MustCompile(`^#*\s*[Ff]-\d+\s*[:.\-–]`)
	featureIDLineRe    = regexp.MustCompile(`(?i)^\s*feature\s+id\s*[:：]`)
)

// CleanRawContent strips duplicated feature heading and marker lines from a
// raw block so the fallback rendering never repeats the feature header.
// Idempotent: cleaning cleaned content is a no-op.
func CleanRawContent(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if duplicateHeadingRe.MatchString(trimmed) || featureIDLineRe.MatchString(trimmed) {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
