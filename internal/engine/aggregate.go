package engine

import (
	"sort"

	"github.com/arogya-labs/rxguard/internal/model"
)

// Aggregate folds a resolution into the report shape consumed by the
// CLI and HTTP surfaces: severity counts, findings ordered most severe
// first, and the overall safe flag.
//
// Safe is set only when at least one pair was checked. It is true iff
// the set carries zero critical findings and zero unknown-status pairs.
// Moderate and minor findings do not clear it to false on their own,
// but they surface in the counts and findings.
func Aggregate(res *Resolution) *model.AggregateResult {
	out := &model.AggregateResult{
		Drugs:        res.Drugs,
		PairsChecked: res.PairsChecked,
		Findings:     make([]model.Finding, len(res.Findings)),
	}
	copy(out.Findings, res.Findings)

	for _, f := range out.Findings {
		switch f.Severity {
		case model.SeverityCritical:
			out.Counts.Critical++
		case model.SeverityModerate:
			out.Counts.Moderate++
		case model.SeverityMinor:
			out.Counts.Minor++
		default:
			out.Counts.Unknown++
		}
	}

	// Stable sort preserves enumeration order within a severity band.
	sort.SliceStable(out.Findings, func(i, j int) bool {
		return out.Findings[i].Severity.Rank() > out.Findings[j].Severity.Rank()
	})

	if out.PairsChecked > 0 {
		safe := out.Counts.Critical == 0 && out.Counts.Unknown == 0
		out.Safe = &safe
	}
	return out
}
