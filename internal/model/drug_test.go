package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Warfarin", "warfarin"},
		{"trims", "  aspirin  ", "aspirin"},
		{"collapses inner whitespace", "contrast \t dye", "contrast dye"},
		{"unicode fold", "İbuprofen", NormalizeName("i̇buprofen")},
		{"blank", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input))
		})
	}
}

func TestDedupeDrugs(t *testing.T) {
	drugs := DedupeDrugs([]string{"Warfarin", "aspirin", "WARFARIN ", "", "Aspirin"})

	assert.Len(t, drugs, 2)
	// Sorted by normalized identifier.
	assert.Equal(t, "aspirin", drugs[0].ID)
	assert.Equal(t, "warfarin", drugs[1].ID)
	// First display name seen wins.
	assert.Equal(t, "aspirin", drugs[0].Name)
	assert.Equal(t, "Warfarin", drugs[1].Name)
}

func TestDedupeDrugs_Deterministic(t *testing.T) {
	names := []string{"Pantoprazole", "Clopidogrel", "Aspirin"}
	first := DedupeDrugs(names)
	second := DedupeDrugs([]string{"aspirin", "PANTOPRAZOLE", "Clopidogrel", "Aspirin"})

	assert.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}
