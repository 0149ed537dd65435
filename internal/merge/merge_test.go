package merge

import (
	"testing"

	"github.com/hanno79/prdc/internal/document"
)

func TestFold_RicherFieldWins(t *testing.T) {
	base := document.New()
	rich := document.Feature{ID: "F-01", Name: "Login"}
	rich.SetText(document.FieldPurpose, "Allow registered users to authenticate with email and password.")
	rich.SetList(document.FieldMainFlow, []string{"User opens the login page.", "User submits credentials.", "System verifies them.", "Session is created."})
	base.Features = append(base.Features, rich)

	sparse := document.Feature{ID: "F-01", Name: "Login"}
	sparse.SetText(document.FieldPurpose, "Login.")
	sparse.SetList(document.FieldMainFlow, []string{"User logs in."})
	sparse.SetText(document.FieldPreconditions, "An account exists.")

	out := Fold(base, []document.Feature{sparse})
	got, _ := out.FeatureByID("F-01")

	if got.Text(document.FieldPurpose) != rich.Text(document.FieldPurpose) {
		t.Errorf("richer purpose regressed to %q", got.Text(document.FieldPurpose))
	}
	if len(got.List(document.FieldMainFlow)) != 4 {
		t.Errorf("richer main flow regressed: %v", got.List(document.FieldMainFlow))
	}
	// A field the base never had is taken from the incoming variant.
	if got.Text(document.FieldPreconditions) != "An account exists." {
		t.Errorf("preconditions = %q", got.Text(document.FieldPreconditions))
	}
}

func TestFold_IncomingRicherReplaces(t *testing.T) {
	base := document.New()
	f := document.Feature{ID: "F-02", Name: "Export"}
	f.SetText(document.FieldPurpose, "Export.")
	base.Features = append(base.Features, f)

	in := document.Feature{ID: "F-02", Name: "Export Report"}
	in.SetText(document.FieldPurpose, "Export the monthly report as a downloadable CSV file.")

	out := Fold(base, []document.Feature{in})
	got, _ := out.FeatureByID("F-02")
	if got.Text(document.FieldPurpose) != in.Text(document.FieldPurpose) {
		t.Errorf("purpose = %q", got.Text(document.FieldPurpose))
	}
	if got.Name != "Export Report" {
		t.Errorf("name = %q", got.Name)
	}
}

func TestFold_NewFeatureAppended(t *testing.T) {
	base := document.New()
	base.Features = append(base.Features, document.Feature{ID: "F-01", Name: "Login"})

	out := Fold(base, []document.Feature{{ID: "F-07", Name: "Audit Log"}})
	ids := out.FeatureIDs()
	if len(ids) != 2 || ids[1] != "F-07" {
		t.Errorf("ids = %v", ids)
	}
}

func TestFold_NormalizesIncomingIDs(t *testing.T) {
	base := document.New()
	base.Features = append(base.Features, document.Feature{ID: "F-03", Name: "Search", RawContent: "short"})

	in := document.Feature{ID: "f-3", Name: "Search", RawContent: "a considerably longer raw body"}
	out := Fold(base, []document.Feature{in})

	if len(out.Features) != 1 {
		t.Fatalf("f-3 should merge into F-03, got ids %v", out.FeatureIDs())
	}
	got, _ := out.FeatureByID("F-03")
	if got.RawContent != in.RawContent {
		t.Errorf("longer raw content lost: %q", got.RawContent)
	}
}

func TestFold_InvalidIDSkipped(t *testing.T) {
	base := document.New()
	out := Fold(base, []document.Feature{{ID: "not-a-feature"}})
	if len(out.Features) != 0 {
		t.Errorf("invalid id folded in: %v", out.FeatureIDs())
	}
}

func TestFold_DoesNotMutateBase(t *testing.T) {
	base := document.New()
	base.Features = append(base.Features, document.Feature{ID: "F-01", Name: "Login"})

	in := document.Feature{ID: "F-01", Name: "Login With SSO Options"}
	_ = Fold(base, []document.Feature{in})

	if base.Features[0].Name != "Login" {
		t.Errorf("base mutated: %q", base.Features[0].Name)
	}
}
