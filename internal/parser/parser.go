// Package parser turns free PRD text into a structured Document. It never
// fails: headings that match no synonym and blocks that match no feature
// marker degrade into OtherSections and RawContent instead of erroring.
package parser

import (
	"regexp"
	"strings"

	"github.com/hanno79/prdc/internal/document"
)

var (
	headingRe = regexp.MustCompile(`^(#{1,3})\s+(.+?)\s*$`)
	// featureHeadingRe matches "F-01: Login" style headings (with or
	// without leading hash markers, which headingRe already stripped).
	featureHeadingRe = regexp.MustCompile(`^[Ff]-(\d+)\s*(?:[:.\-–]\s*(.*))?$`)
	// featureMarkerRe matches "Feature ID: F-01" marker lines inside a
	// catalogue body.
	featureMarkerRe = regexp.MustCompile(`(?i)^\s*feature\s+id\s*[:：]\s*([Ff]-\d+)\s*$`)
	nameLineRe      = regexp.MustCompile(`(?i)^\s*(?:feature\s+)?name\s*[:：]\s*(.+)$`)
)

// block is one heading-delimited region of the source text.
type block struct {
	heading string // "" for preamble before the first heading
	body    []string
}

// Parse converts raw text into a Document snapshot.
func Parse(text string) *document.Document {
	doc := document.New()
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var blocks []block
	cur := block{}
	for _, line := range lines {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			blocks = append(blocks, cur)
			cur = block{heading: m[2]}
			continue
		}
		cur.body = append(cur.body, line)
	}
	blocks = append(blocks, cur)

	var features []document.Feature

	for _, b := range blocks {
		body := strings.TrimSpace(strings.Join(b.body, "\n"))

		switch {
		case b.heading == "":
			if body != "" {
				doc.OtherSections = append(doc.OtherSections, document.OtherSection{Body: body})
			}

		case featureHeadingRe.MatchString(b.heading):
			m := featureHeadingRe.FindStringSubmatch(b.heading)
			features = append(features, parseFeatureBlock(m[1], strings.TrimSpace(m[2]), body))

		case document.IsCatalogueHeading(b.heading):
			intro, fs := splitCatalogue(body)
			if intro != "" {
				doc.FeatureCatalogueIntro = intro
			}
			features = append(features, fs...)

		default:
			if key, ok := document.MatchSectionHeading(b.heading); ok {
				appendSection(doc, key, body)
			} else {
				doc.OtherSections = append(doc.OtherSections, document.OtherSection{
					Heading: b.heading,
					Body:    body,
				})
			}
		}
	}

	doc.Features = document.DedupFeatures(features)
	return doc
}

// appendSection stores a section body, joining repeated occurrences of the
// same canonical heading so no content is lost.
func appendSection(doc *document.Document, key document.SectionKey, body string) {
	if body == "" {
		return
	}
	if existing := doc.Sections[key]; existing != "" {
		doc.Sections[key] = existing + "\n\n" + body
		return
	}
	doc.Sections[key] = body
}

// splitCatalogue separates a catalogue body into intro text and per-feature
// blocks. Features are delimited by "Feature ID: F-<n>" marker lines or
// "F-<n>: <name>" heading-style lines.
func splitCatalogue(body string) (intro string, features []document.Feature) {
	lines := strings.Split(body, "\n")

	type rawFeature struct {
		num  string
		name string
		body []string
	}
	var introLines []string
	var raws []rawFeature
	var cur *rawFeature

	flush := func() {
		if cur != nil {
			raws = append(raws, *cur)
			cur = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if m := featureMarkerRe.FindStringSubmatch(line); m != nil {
			flush()
			cur = &rawFeature{num: strings.TrimPrefix(strings.ToUpper(m[1]), "F-")}
			continue
		}
		if m := featureHeadingRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			cur = &rawFeature{num: m[1], name: strings.TrimSpace(m[2])}
			continue
		}
		if cur == nil {
			introLines = append(introLines, line)
			continue
		}
		if cur.name == "" {
			if m := nameLineRe.FindStringSubmatch(line); m != nil {
				cur.name = strings.TrimSpace(m[1])
				continue
			}
		}
		cur.body = append(cur.body, line)
	}
	flush()

	for _, r := range raws {
		features = append(features, parseFeatureBlock(r.num, r.name, strings.TrimSpace(strings.Join(r.body, "\n"))))
	}
	return strings.TrimSpace(strings.Join(introLines, "\n")), features
}

// parseFeatureBlock builds a Feature from its id number, name, and body.
// The body is kept verbatim as RawContent; the ten canonical subsections are
// additionally extracted wherever their headers can be located.
func parseFeatureBlock(num, name, body string) document.Feature {
	f := document.Feature{
		ID:         document.NormalizeID("F-" + num),
		Name:       name,
		RawContent: body,
	}
	ExtractFields(&f, body)
	return f
}

// ExtractFields locates the ten canonical subsection headers in body (any
// order, any position) and fills the corresponding structured fields. Text
// between one recognized header and the next belongs to the earlier header.
func ExtractFields(f *document.Feature, body string) {
	lines := strings.Split(body, "\n")

	var curKey document.FieldKey
	var curLines []string
	inField := false

	commit := func() {
		if !inField {
			return
		}
		content := strings.TrimSpace(strings.Join(curLines, "\n"))
		if content == "" {
			return
		}
		if document.IsListField(curKey) {
			f.SetList(curKey, SplitListItems(content))
		} else {
			f.SetText(curKey, content)
		}
	}

	for _, line := range lines {
		if key, rest, ok := document.MatchFieldHeader(line); ok {
			commit()
			curKey = key
			curLines = curLines[:0]
			inField = true
			if rest != "" {
				curLines = append(curLines, rest)
			}
			continue
		}
		if inField {
			curLines = append(curLines, line)
		}
	}
	commit()
}

// SplitListItems splits list-field content into items at numbered or
// bulleted boundaries. Unmarked trailing lines fold into the preceding item;
// leading unmarked lines form an initial item so no text is dropped.
func SplitListItems(content string) []string {
	marker := document.ListItemMarker()
	var items []string
	var cur []string
	started := false

	flush := func() {
		if !started {
			return
		}
		item := strings.TrimSpace(strings.Join(cur, "\n"))
		if item != "" {
			items = append(items, item)
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if loc := marker.FindStringIndex(line); loc != nil {
			flush()
			cur = []string{strings.TrimSpace(line[loc[1]:])}
			started = true
			continue
		}
		if !started {
			cur = nil
			started = true
		}
		cur = append(cur, strings.TrimSpace(line))
	}
	flush()
	return items
}
