package engine

import "github.com/arogya-labs/rxguard/internal/model"

// Annotate stamps each finding with the prescription sources that
// contributed each of its drugs, and marks the finding cross-source
// when the two source sets are disjoint. A drug with no provenance
// entry is attributed to the synthetic "unknown" source, which
// intersects with itself, so two unattributed drugs never read as
// cross-source.
func Annotate(findings []model.Finding, prov model.ProvenanceMap) {
	if len(prov) == 0 {
		return
	}
	for i := range findings {
		a := sourcesFor(prov, findings[i].Pair.A)
		b := sourcesFor(prov, findings[i].Pair.B)
		findings[i].SourcesA = a
		findings[i].SourcesB = b
		findings[i].CrossSource = disjoint(a, b)
	}
}

func sourcesFor(prov model.ProvenanceMap, drugID string) []string {
	if sources, ok := prov[drugID]; ok && len(sources) > 0 {
		return sources
	}
	return []string{"unknown"}
}

func disjoint(a, b []string) bool {
	seen := make(map[string]struct{}, len(a))
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; ok {
			return false
		}
	}
	return true
}
