package document

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// FieldKey identifies one of the ten canonical feature subsections.
type FieldKey string

const (
	FieldPurpose            FieldKey = "purpose"
	FieldActors             FieldKey = "actors"
	FieldTrigger            FieldKey = "trigger"
	FieldPreconditions      FieldKey = "preconditions"
	FieldPostconditions     FieldKey = "postconditions"
	FieldDataImpact         FieldKey = "dataImpact"
	FieldUIImpact           FieldKey = "uiImpact"
	FieldMainFlow           FieldKey = "mainFlow"
	FieldAlternateFlows     FieldKey = "alternateFlows"
	FieldAcceptanceCriteria FieldKey = "acceptanceCriteria"
)

// CanonicalFieldOrder is the fixed subsection order for structured rendering
// and deterministic repair.
var CanonicalFieldOrder = []FieldKey{
	FieldPurpose,
	FieldActors,
	FieldTrigger,
	FieldPreconditions,
	FieldPostconditions,
	FieldDataImpact,
	FieldUIImpact,
	FieldMainFlow,
	FieldAlternateFlows,
	FieldAcceptanceCriteria,
}

// IsListField reports whether the field holds an ordered item list rather
// than free text.
func IsListField(k FieldKey) bool {
	switch k {
	case FieldMainFlow, FieldAlternateFlows, FieldAcceptanceCriteria:
		return true
	}
	return false
}

// Feature is one catalogue entry. RawContent is the verbatim original block
// and remains the source of truth whenever the structured fields are absent.
type Feature struct {
	ID         string
	Name       string
	RawContent string

	Purpose        string
	Actors         string
	Trigger        string
	Preconditions  string
	Postconditions string
	DataImpact     string
	UIImpact       string

	MainFlow           []string
	AlternateFlows     []string
	AcceptanceCriteria []string
}

// Clone returns a deep copy of the feature.
func (f Feature) Clone() Feature {
	out := f
	out.MainFlow = append([]string(nil), f.MainFlow...)
	out.AlternateFlows = append([]string(nil), f.AlternateFlows...)
	out.AcceptanceCriteria = append([]string(nil), f.AcceptanceCriteria...)
	return out
}

// Text returns the free-text value of a text field, or "" for list fields.
func (f Feature) Text(k FieldKey) string {
	switch k {
	case FieldPurpose:
		return f.Purpose
	case FieldActors:
		return f.Actors
	case FieldTrigger:
		return f.Trigger
	case FieldPreconditions:
		return f.Preconditions
	case FieldPostconditions:
		return f.Postconditions
	case FieldDataImpact:
		return f.DataImpact
	case FieldUIImpact:
		return f.UIImpact
	}
	return ""
}

// List returns the item slice of a list field, or nil for text fields.
func (f Feature) List(k FieldKey) []string {
	switch k {
	case FieldMainFlow:
		return f.MainFlow
	case FieldAlternateFlows:
		return f.AlternateFlows
	case FieldAcceptanceCriteria:
		return f.AcceptanceCriteria
	}
	return nil
}

// SetText sets a free-text field. List keys are ignored.
func (f *Feature) SetText(k FieldKey, v string) {
	switch k {
	case FieldPurpose:
		f.Purpose = v
	case FieldActors:
		f.Actors = v
	case FieldTrigger:
		f.Trigger = v
	case FieldPreconditions:
		f.Preconditions = v
	case FieldPostconditions:
		f.Postconditions = v
	case FieldDataImpact:
		f.DataImpact = v
	case FieldUIImpact:
		f.UIImpact = v
	}
}

// SetList sets a list field. Text keys are ignored.
func (f *Feature) SetList(k FieldKey, items []string) {
	switch k {
	case FieldMainFlow:
		f.MainFlow = items
	case FieldAlternateFlows:
		f.AlternateFlows = items
	case FieldAcceptanceCriteria:
		f.AcceptanceCriteria = items
	}
}

// FieldContentLen returns the content length of a field: string length for
// text fields, summed item length for list fields.
func (f Feature) FieldContentLen(k FieldKey) int {
	if IsListField(k) {
		n := 0
		for _, item := range f.List(k) {
			n += len(item)
		}
		return n
	}
	return len(f.Text(k))
}

// FilledFieldCount returns how many of the ten fields carry content.
func (f Feature) FilledFieldCount() int {
	n := 0
	for _, k := range CanonicalFieldOrder {
		if f.FieldContentLen(k) > 0 {
			n++
		}
	}
	return n
}

// IsStructured reports whether the feature carries enough structured fields
// to render from them instead of RawContent. min is the configured field
// threshold (Thresholds.StructuredFieldMin).
func (f Feature) IsStructured(min int) bool {
	return f.FilledFieldCount() >= min
}

var featureIDPattern = regexp.MustCompile(`^[Ff]-(\d+)$`)

// NormalizeID canonicalizes a feature id to "F-" plus a zero-padded integer
// of at least two digits. Anything that does not match F-<n> returns "".
//
//	"F-1"  → "F-01"
//	"f-12" → "F-12"
func NormalizeID(id string) string {
	m := featureIDPattern.FindStringSubmatch(strings.TrimSpace(id))
	if m == nil {
		return ""
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	return fmt.Sprintf("F-%02d", n)
}

// IDNumber returns the numeric part of a normalized id, or -1 if invalid.
func IDNumber(id string) int {
	m := featureIDPattern.FindStringSubmatch(id)
	if m == nil {
		return -1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return n
}

// DedupFeatures normalizes ids, discards features whose id cannot be
// normalized, keeps the variant with the longer RawContent for duplicate
// ids, and returns the survivors sorted by numeric id.
func DedupFeatures(features []Feature) []Feature {
	byID := make(map[string]Feature)
	for _, f := range features {
		id := NormalizeID(f.ID)
		if id == "" {
			continue
		}
		f.ID = id
		kept, ok := byID[id]
		if !ok || len(f.RawContent) > len(kept.RawContent) {
			byID[id] = f
		}
	}
	out := make([]Feature, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return IDNumber(out[i].ID) < IDNumber(out[j].ID)
	})
	return out
}
