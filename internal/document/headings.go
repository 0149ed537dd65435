package document

import (
	"regexp"
	"strings"
)

// CanonicalHeading is the heading text the assembler emits for each section.
var canonicalHeadings = map[SectionKey]string{
	SectionSystemVision:        "System Vision",
	SectionSystemBoundaries:    "System Boundaries",
	SectionDomainModel:         "Domain Model",
	SectionGlobalBusinessRules: "Global Business Rules",
	SectionNonFunctional:       "Non-Functional Requirements",
	SectionErrorHandling:       "Error Handling",
	SectionDeployment:          "Deployment",
	SectionDefinitionOfDone:    "Definition of Done",
}

// CanonicalHeading returns the assembled heading text for a section key.
func CanonicalHeading(k SectionKey) string { return canonicalHeadings[k] }

// CatalogueHeading is the assembled heading of the feature catalogue.
const CatalogueHeading = "Feature Catalogue"

// sectionSynonym pairs a lowercase substring with the section it selects.
// Matching walks the table in order; the first synonym contained in the
// lowercased heading wins, so more specific synonyms come first.
type sectionSynonym struct {
	substr string
	key    SectionKey
}

var sectionSynonyms = []sectionSynonym{
	{"system vision", SectionSystemVision},
	{"product vision", SectionSystemVision},
	{"vision", SectionSystemVision},
	{"system boundar", SectionSystemBoundaries},
	{"boundar", SectionSystemBoundaries},
	{"scope", SectionSystemBoundaries},
	{"domain model", SectionDomainModel},
	{"domain", SectionDomainModel},
	{"business rule", SectionGlobalBusinessRules},
	{"global rule", SectionGlobalBusinessRules},
	{"non-functional", SectionNonFunctional},
	{"nonfunctional", SectionNonFunctional},
	{"quality attribute", SectionNonFunctional},
	{"error handling", SectionErrorHandling},
	{"error strategy", SectionErrorHandling},
	{"deployment", SectionDeployment},
	{"rollout", SectionDeployment},
	{"definition of done", SectionDefinitionOfDone},
}

// catalogueSynonyms mark a heading as the feature catalogue.
var catalogueSynonyms = []string{
	"feature catalogue",
	"feature catalog",
	"feature overview",
	"feature list",
	"features",
}

// MatchSectionHeading maps a heading to its canonical section key by
// case-insensitive substring lookup. ok is false for unrecognized headings.
func MatchSectionHeading(heading string) (SectionKey, bool) {
	h := strings.ToLower(strings.TrimSpace(heading))
	if h == "" {
		return "", false
	}
	for _, syn := range sectionSynonyms {
		if strings.Contains(h, syn.substr) {
			return syn.key, true
		}
	}
	return "", false
}

// IsCatalogueHeading reports whether a heading names the feature catalogue.
func IsCatalogueHeading(heading string) bool {
	h := strings.ToLower(strings.TrimSpace(heading))
	for _, syn := range catalogueSynonyms {
		if strings.Contains(h, syn) {
			return true
		}
	}
	return false
}

// canonicalFieldHeadings is the subsection heading text emitted per field.
var canonicalFieldHeadings = map[FieldKey]string{
	FieldPurpose:            "Purpose",
	FieldActors:             "Actors",
	FieldTrigger:            "Trigger",
	FieldPreconditions:      "Preconditions",
	FieldPostconditions:     "Postconditions",
	FieldDataImpact:         "Data Impact",
	FieldUIImpact:           "UI Impact",
	FieldMainFlow:           "Main Flow",
	FieldAlternateFlows:     "Alternate Flows",
	FieldAcceptanceCriteria: "Acceptance Criteria",
}

// CanonicalFieldHeading returns the assembled subsection heading for a field.
func CanonicalFieldHeading(k FieldKey) string { return canonicalFieldHeadings[k] }

// fieldSynonyms maps the cleaned, lowercased form of a subsection header
// line to its field key. Lookup is exact after cleaning, unlike section
// headings, so that ordinary body lines are never swallowed as headers.
var fieldSynonyms = map[string]FieldKey{
	"purpose":           FieldPurpose,
	"goal":              FieldPurpose,
	"objective":         FieldPurpose,
	"actors":            FieldActors,
	"actor":             FieldActors,
	"roles":             FieldActors,
	"trigger":           FieldTrigger,
	"triggers":          FieldTrigger,
	"preconditions":     FieldPreconditions,
	"precondition":      FieldPreconditions,
	"pre-conditions":    FieldPreconditions,
	"postconditions":    FieldPostconditions,
	"postcondition":     FieldPostconditions,
	"post-conditions":   FieldPostconditions,
	"data impact":       FieldDataImpact,
	"data changes":      FieldDataImpact,
	"ui impact":         FieldUIImpact,
	"ui changes":        FieldUIImpact,
	"main flow":         FieldMainFlow,
	"basic flow":        FieldMainFlow,
	"main scenario":     FieldMainFlow,
	"alternate flows":   FieldAlternateFlows,
	"alternate flow":    FieldAlternateFlows,
	"alternative flows": FieldAlternateFlows,
	"alternative flow":  FieldAlternateFlows,
	"acceptance criteria": FieldAcceptanceCriteria,
	"acceptance":          FieldAcceptanceCriteria,
}

var (
	headerMarkerRe = regexp.MustCompile(`^\s*(?:#{1,6}\s+|\d+[.)]\s+|[-*]\s+)?`)
	listItemRe     = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+`)
)

// ListItemMarker matches numbered and bulleted item starts. Exposed for the
// parser's list splitting.
func ListItemMarker() *regexp.Regexp { return listItemRe }

// cleanHeaderLine strips heading markers, list numbering, bold markers, and
// a trailing colon from a candidate subsection header line.
func cleanHeaderLine(line string) string {
	s := strings.TrimSpace(line)
	s = headerMarkerRe.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, "**")
	s = strings.TrimSuffix(s, "**")
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	return strings.TrimSpace(s)
}

// MatchFieldHeader recognizes a subsection header line inside a feature
// block. rest carries inline content from the "Header: content" form.
func MatchFieldHeader(line string) (key FieldKey, rest string, ok bool) {
	cleaned := cleanHeaderLine(line)
	if k, found := fieldSynonyms[strings.ToLower(cleaned)]; found {
		return k, "", true
	}
	// "Purpose: Let users log in." — header and first content on one line.
	// List items are excluded so "1. Admin: opens page" stays a flow step.
	if listItemRe.MatchString(line) {
		return "", "", false
	}
	if idx := strings.Index(line, ":"); idx > 0 {
		head := cleanHeaderLine(line[:idx])
		if k, found := fieldSynonyms[strings.ToLower(head)]; found {
			return k, strings.TrimSpace(line[idx+1:]), true
		}
	}
	return "", "", false
}
