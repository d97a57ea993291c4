package model

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// Drug is an immutable reference to a medication within a single check.
// Two inputs that normalize to the same identifier are the same drug,
// whatever their display casing.
type Drug struct {
	ID   string `json:"id"`   // normalized identifier
	Name string `json:"name"` // display name as supplied by the caller
}

// NormalizeName reduces a drug name to its session natural key:
// trimmed, inner whitespace collapsed, Unicode case-folded.
func NormalizeName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return cases.Fold().String(strings.Join(fields, " "))
}

// NewDrug builds a Drug from a raw display name. A zero-value Drug
// (empty ID) means the input was blank.
func NewDrug(name string) Drug {
	id := NormalizeName(name)
	if id == "" {
		return Drug{}
	}
	return Drug{ID: id, Name: strings.Join(strings.Fields(name), " ")}
}

// DedupeDrugs collapses raw names into distinct drugs keyed by
// normalized identifier, sorted by identifier so that repeated calls
// with the same set enumerate pairs in the same order. The first
// display name seen for an identifier wins.
func DedupeDrugs(names []string) []Drug {
	seen := make(map[string]Drug, len(names))
	for _, n := range names {
		d := NewDrug(n)
		if d.ID == "" {
			continue
		}
		if _, ok := seen[d.ID]; !ok {
			seen[d.ID] = d
		}
	}

	drugs := make([]Drug, 0, len(seen))
	for _, d := range seen {
		drugs = append(drugs, d)
	}
	sort.Slice(drugs, func(i, j int) bool { return drugs[i].ID < drugs[j].ID })
	return drugs
}
