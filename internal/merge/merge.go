// Package merge folds freshly regenerated features into a base document.
// Each field is merged independently and the richer variant wins, so
// re-expanding a subset of features never regresses fields a shorter later
// pass did not address.
package merge

import (
	"github.com/hanno79/prdc/internal/document"
)

// Fold returns a new snapshot of base with incoming features merged in.
// For ids already present the ten fields are merged field-by-field: the
// variant with more content (string length, or concatenated item length for
// list fields) wins, and RawContent likewise takes the longer variant.
// New ids are appended in incoming order.
func Fold(base *document.Document, incoming []document.Feature) *document.Document {
	out := base.Clone()

	index := make(map[string]int, len(out.Features))
	for i, f := range out.Features {
		index[f.ID] = i
	}

	for _, in := range incoming {
		id := document.NormalizeID(in.ID)
		if id == "" {
			continue
		}
		in.ID = id
		if i, ok := index[id]; ok {
			out.Features[i] = mergeFeature(out.Features[i], in)
			continue
		}
		index[id] = len(out.Features)
		out.Features = append(out.Features, in.Clone())
	}

	return out
}

func mergeFeature(base, in document.Feature) document.Feature {
	out := base.Clone()

	if len(in.RawContent) > len(out.RawContent) {
		out.RawContent = in.RawContent
	}
	if len(in.Name) > len(out.Name) {
		out.Name = in.Name
	}

	for _, key := range document.CanonicalFieldOrder {
		if in.FieldContentLen(key) <= out.FieldContentLen(key) {
			continue
		}
		if document.IsListField(key) {
			out.SetList(key, append([]string(nil), in.List(key)...))
		} else {
			out.SetText(key, in.Text(key))
		}
	}

	return out
}
