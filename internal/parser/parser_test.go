package parser

import (
	"strings"
	"testing"

	"github.com/hanno79/prdc/internal/document"
)

func TestParse_EndToEnd(t *testing.T) {
	doc := Parse("## System Vision\nBuild X.\n\n### F-01: Login\n1. Purpose\nLet users log in.")

	if got := doc.Section(document.SectionSystemVision); got != "Build X." {
		t.Errorf("systemVision = %q, want %q", got, "Build X.")
	}
	if len(doc.Features) != 1 {
		t.Fatalf("got %d features, want 1", len(doc.Features))
	}
	f := doc.Features[0]
	if f.ID != "F-01" {
		t.Errorf("id = %q, want F-01", f.ID)
	}
	if f.Name != "Login" {
		t.Errorf("name = %q, want Login", f.Name)
	}
	if f.Purpose != "Let users log in." {
		t.Errorf("purpose = %q, want %q", f.Purpose, "Let users log in.")
	}
}

func TestParse_UnrecognizedHeadingDegrades(t *testing.T) {
	doc := Parse("## Random Appendix\nKeep me.\n")

	if len(doc.OtherSections) != 1 {
		t.Fatalf("got %d other sections, want 1", len(doc.OtherSections))
	}
	os := doc.OtherSections[0]
	if os.Heading != "Random Appendix" || os.Body != "Keep me." {
		t.Errorf("other section = %+v", os)
	}
}

func TestParse_PreambleBeforeFirstHeading(t *testing.T) {
	doc := Parse("Some intro line.\n\n## System Vision\nBuild X.\n")

	if len(doc.OtherSections) != 1 || doc.OtherSections[0].Heading != "" {
		t.Fatalf("preamble not captured: %+v", doc.OtherSections)
	}
	if doc.OtherSections[0].Body != "Some intro line." {
		t.Errorf("preamble = %q", doc.OtherSections[0].Body)
	}
}

func TestParse_CatalogueIntroAndMarkers(t *testing.T) {
	text := strings.Join([]string{
		"## Feature Catalogue",
		"These are the planned features.",
		"",
		"Feature ID: F-2",
		"Name: Export",
		"**Purpose**",
		"Export data.",
		"",
		"### F-1: Login",
		"**Purpose**",
		"Let users in.",
	}, "\n")
	doc := Parse(text)

	if doc.FeatureCatalogueIntro != "These are the planned features." {
		t.Errorf("intro = %q", doc.FeatureCatalogueIntro)
	}
	if len(doc.Features) != 2 {
		t.Fatalf("got %d features, want 2", len(doc.Features))
	}
	// Sorted numerically after dedup.
	if doc.Features[0].ID != "F-01" || doc.Features[1].ID != "F-02" {
		t.Errorf("ids = [%s, %s]", doc.Features[0].ID, doc.Features[1].ID)
	}
	if doc.Features[1].Name != "Export" {
		t.Errorf("F-02 name = %q, want Export", doc.Features[1].Name)
	}
	if doc.Features[1].Purpose != "Export data." {
		t.Errorf("F-02 purpose = %q", doc.Features[1].Purpose)
	}
}

func TestParse_FieldsInAnyOrder(t *testing.T) {
	text := strings.Join([]string{
		"### F-04: Search",
		"**Main Flow**",
		"1. Enter query",
		"2. Submit",
		"**Purpose**",
		"Find things.",
		"**Actors**",
		"Any user",
	}, "\n")
	doc := Parse(text)

	f := doc.Features[0]
	if f.Purpose != "Find things." || f.Actors != "Any user" {
		t.Errorf("fields = purpose %q, actors %q", f.Purpose, f.Actors)
	}
	if len(f.MainFlow) != 2 || f.MainFlow[0] != "Enter query" {
		t.Errorf("mainFlow = %v", f.MainFlow)
	}
}

func TestParse_NeverFails(t *testing.T) {
	for _, text := range []string{"", "no headings at all", "###", "## \n\n"} {
		doc := Parse(text)
		if doc == nil {
			t.Fatalf("Parse(%q) returned nil", text)
		}
	}
}

func TestSplitListItems_FoldsUnmarkedLines(t *testing.T) {
	items := SplitListItems("1. First step\ncontinues here\n2. Second step\n- Third entry")
	want := []string{"First step\ncontinues here", "Second step", "Third entry"}
	if len(items) != len(want) {
		t.Fatalf("got %d items %v, want %d", len(items), items, len(want))
	}
	for i := range want {
		if items[i] != want[i] {
			t.Errorf("item[%d] = %q, want %q", i, items[i], want[i])
		}
	}
}

func TestSplitListItems_LeadingUnmarkedText(t *testing.T) {
	items := SplitListItems("intro line\n1. step one")
	if len(items) != 2 || items[0] != "intro line" || items[1] != "step one" {
		t.Errorf("items = %v", items)
	}
}

func TestExtractFields_RawContentKeptVerbatim(t *testing.T) {
	body := "**Purpose**\nDo things.\ntrailing free text"
	doc := Parse("### F-09: Thing\n" + body)
	if doc.Features[0].RawContent != body {
		t.Errorf("rawContent = %q, want %q", doc.Features[0].RawContent, body)
	}
}
