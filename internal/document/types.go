// Package document defines the structured PRD model shared by the parser,
// assembler, and every transformation stage: the eight canonical sections,
// the feature catalogue, and the closed heading vocabulary.
package document

// SectionKey identifies one of the eight canonical top-level sections.
type SectionKey string

const (
	SectionSystemVision        SectionKey = "systemVision"
	SectionSystemBoundaries    SectionKey = "systemBoundaries"
	SectionDomainModel         SectionKey = "domainModel"
	SectionGlobalBusinessRules SectionKey = "globalBusinessRules"
	SectionNonFunctional       SectionKey = "nonFunctional"
	SectionErrorHandling       SectionKey = "errorHandling"
	SectionDeployment          SectionKey = "deployment"
	SectionDefinitionOfDone    SectionKey = "definitionOfDone"
)

// CanonicalSectionOrder is the fixed emission order for assembled documents.
// Source order never influences output order.
var CanonicalSectionOrder = []SectionKey{
	SectionSystemVision,
	SectionSystemBoundaries,
	SectionDomainModel,
	SectionGlobalBusinessRules,
	SectionNonFunctional,
	SectionErrorHandling,
	SectionDeployment,
	SectionDefinitionOfDone,
}

// IsValidSectionKey reports whether k is one of the eight canonical keys.
func IsValidSectionKey(k SectionKey) bool {
	switch k {
	case SectionSystemVision, SectionSystemBoundaries, SectionDomainModel,
		SectionGlobalBusinessRules, SectionNonFunctional, SectionErrorHandling,
		SectionDeployment, SectionDefinitionOfDone:
		return true
	}
	return false
}

// OtherSection preserves an unrecognized heading and its body verbatim.
// An empty Heading marks preamble text that appeared before any heading.
type OtherSection struct {
	Heading string
	Body    string
}

// Document is one immutable PRD snapshot. Transformations never mutate a
// snapshot in place; they operate on a Clone and return the copy.
type Document struct {
	Sections              map[SectionKey]string
	FeatureCatalogueIntro string
	Features              []Feature
	OtherSections         []OtherSection
}

// New returns an empty Document with an allocated section map.
func New() *Document {
	return &Document{Sections: make(map[SectionKey]string)}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Sections:              make(map[SectionKey]string, len(d.Sections)),
		FeatureCatalogueIntro: d.FeatureCatalogueIntro,
	}
	for k, v := range d.Sections {
		out.Sections[k] = v
	}
	out.Features = make([]Feature, len(d.Features))
	for i, f := range d.Features {
		out.Features[i] = f.Clone()
	}
	out.OtherSections = append(out.OtherSections, d.OtherSections...)
	return out
}

// Section returns the body for k, or "" when absent.
func (d *Document) Section(k SectionKey) string {
	if d.Sections == nil {
		return ""
	}
	return d.Sections[k]
}

// FeatureByID returns the feature with the given normalized id, if present.
func (d *Document) FeatureByID(id string) (Feature, bool) {
	for _, f := range d.Features {
		if f.ID == id {
			return f, true
		}
	}
	return Feature{}, false
}

// FeatureIDs returns the feature ids in document order.
func (d *Document) FeatureIDs() []string {
	ids := make([]string, len(d.Features))
	for i, f := range d.Features {
		ids[i] = f.ID
	}
	return ids
}
