package model

// Severity classifies the clinical weight of an interaction finding.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityModerate Severity = "moderate"
	SeverityMinor    Severity = "minor"

	// SeverityUnknown marks a pair whose lookup failed. It is never a
	// stored record severity and is tallied separately so a degraded
	// lookup cannot understate risk.
	SeverityUnknown Severity = "unknown"
)

// Rank orders severities for display; higher sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// ParseSeverity maps an external severity label onto the engine's
// tiers. DrugBank-style exports use "major" and "contraindicated" for
// their top bands; both land on critical.
func ParseSeverity(label string) (Severity, bool) {
	switch NormalizeName(label) {
	case "critical", "major", "contraindicated", "severe":
		return SeverityCritical, true
	case "moderate":
		return SeverityModerate, true
	case "minor", "mild":
		return SeverityMinor, true
	default:
		return "", false
	}
}

// Pair is a canonical unordered pair of normalized drug identifiers:
// A < B lexicographically, A != B.
type Pair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// NewPair canonicalizes two normalized identifiers. ok is false when
// either is empty or both name the same drug.
func NewPair(a, b string) (Pair, bool) {
	if a == "" || b == "" || a == b {
		return Pair{}, false
	}
	if a > b {
		a, b = b, a
	}
	return Pair{A: a, B: b}, true
}

// Key returns a stable map key for the pair.
func (p Pair) Key() string {
	return p.A + "+" + p.B
}

// Contains reports whether the pair involves the given normalized
// identifier.
func (p Pair) Contains(id string) bool {
	return p.A == id || p.B == id
}

// InteractionRecord is a knowledge-source entry for one unordered
// pair. At most one record exists per canonical pair; the knowledge
// source is the authority for de-duplication.
type InteractionRecord struct {
	Pair           Pair     `json:"pair"`
	Severity       Severity `json:"severity"`
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Source         string   `json:"source,omitempty"`
}

// Finding is the resolved outcome for one enumerated pair. A found
// record carries its severity; a failed lookup is SeverityUnknown with
// the failure reason, never silently dropped. Cross-source annotation
// is filled in multi-prescription mode so the flag travels with the
// finding instead of being recomputed downstream.
type Finding struct {
	Pair        Pair               `json:"pair"`
	DrugA       string             `json:"drug_a"` // display name for Pair.A
	DrugB       string             `json:"drug_b"` // display name for Pair.B
	Severity    Severity           `json:"severity"`
	Record      *InteractionRecord `json:"record,omitempty"`
	LookupError string             `json:"lookup_error,omitempty"`
	CrossSource bool               `json:"cross_source"`
	SourcesA    []string           `json:"sources_a,omitempty"`
	SourcesB    []string           `json:"sources_b,omitempty"`
}

// SeverityCounts tallies findings per tier.
type SeverityCounts struct {
	Critical int `json:"critical"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
	Unknown  int `json:"unknown"`
}

// Total returns the number of tallied findings.
func (c SeverityCounts) Total() int {
	return c.Critical + c.Moderate + c.Minor + c.Unknown
}

// AggregateResult summarizes one interaction check.
type AggregateResult struct {
	Drugs        []Drug         `json:"drugs"`
	PairsChecked int            `json:"pairs_checked"`
	Counts       SeverityCounts `json:"counts"`

	// Findings sorted critical, moderate, minor, unknown; stable within
	// each tier in resolver enumeration order.
	Findings []Finding `json:"findings"`

	// Safe is true only when both the critical and unknown counts are
	// zero. It is nil when fewer than two distinct drugs were supplied:
	// no check ran, so no claim of safety is made.
	Safe *bool `json:"safe,omitempty"`
}
