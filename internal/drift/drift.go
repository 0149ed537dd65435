// Package drift detects structural loss between two document snapshots:
// sections that went empty, features that vanished or appeared, and feature
// reordering across AI-driven edit iterations.
package drift

import (
	"sort"

	"github.com/hanno79/prdc/internal/document"
)

// Diff is the pure comparison result between a previous and current snapshot.
type Diff struct {
	// MissingSections lists canonical sections that carried content before
	// and are empty now.
	MissingSections []document.SectionKey

	// RemovedFeatures and AddedFeatures are id set differences.
	RemovedFeatures []string
	AddedFeatures   []string

	// FeatureOrderChanged is true when the relative order of ids common to
	// both snapshots is not monotonically preserved. Detects reordering, not
	// mere presence.
	FeatureOrderChanged bool
}

// Empty reports whether no drift was detected.
func (d Diff) Empty() bool {
	return len(d.MissingSections) == 0 &&
		len(d.RemovedFeatures) == 0 &&
		len(d.AddedFeatures) == 0 &&
		!d.FeatureOrderChanged
}

// Compare computes the structural diff between prev and cur.
func Compare(prev, cur *document.Document) Diff {
	var d Diff

	for _, key := range document.CanonicalSectionOrder {
		if prev.Section(key) != "" && cur.Section(key) == "" {
			d.MissingSections = append(d.MissingSections, key)
		}
	}

	prevIDs := prev.FeatureIDs()
	curIDs := cur.FeatureIDs()
	curSet := idSet(curIDs)
	prevSet := idSet(prevIDs)

	for _, id := range prevIDs {
		if !curSet[id] {
			d.RemovedFeatures = append(d.RemovedFeatures, id)
		}
	}
	for _, id := range curIDs {
		if !prevSet[id] {
			d.AddedFeatures = append(d.AddedFeatures, id)
		}
	}

	d.FeatureOrderChanged = orderChanged(prevIDs, curIDs, prevSet, curSet)
	return d
}

// orderChanged checks whether the ids common to both snapshots appear in the
// same relative order in each.
func orderChanged(prevIDs, curIDs []string, prevSet, curSet map[string]bool) bool {
	prevRank := make(map[string]int)
	rank := 0
	for _, id := range prevIDs {
		if curSet[id] {
			prevRank[id] = rank
			rank++
		}
	}
	last := -1
	for _, id := range curIDs {
		r, ok := prevRank[id]
		if !ok {
			continue
		}
		if r < last {
			return true
		}
		last = r
	}
	return false
}

// Restore produces a snapshot with the drifted structure healed: removed
// features are reinserted from prev, and the features common to both are
// re-sorted to the previous relative order. Sections and added features of
// cur are kept.
func Restore(prev, cur *document.Document) *document.Document {
	out := cur.Clone()

	curSet := idSet(out.FeatureIDs())
	for _, f := range prev.Features {
		if !curSet[f.ID] {
			out.Features = append(out.Features, f.Clone())
		}
	}

	prevRank := make(map[string]int, len(prev.Features))
	for i, f := range prev.Features {
		prevRank[f.ID] = i
	}
	sort.SliceStable(out.Features, func(i, j int) bool {
		ri, iKnown := prevRank[out.Features[i].ID]
		rj, jKnown := prevRank[out.Features[j].ID]
		if iKnown && jKnown {
			return ri < rj
		}
		// Features unknown to prev keep their current position at the end.
		return iKnown && !jKnown
	})

	for _, key := range document.CanonicalSectionOrder {
		if prev.Section(key) != "" && out.Section(key) == "" {
			out.Sections[key] = prev.Section(key)
		}
	}

	return out
}

func idSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
