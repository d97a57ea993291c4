// Package anomaly validates prescribed doses against safe dosage
// ranges derived from WHO defined daily doses and clinical guidelines.
package anomaly

import (
	"strconv"
	"strings"

	"github.com/arogya-labs/rxguard/internal/model"
)

// Population adjusts which dose ceiling applies.
type Population string

const (
	PopulationAdult             Population = "adult"
	PopulationElderly           Population = "elderly"
	PopulationPediatric         Population = "pediatric"
	PopulationRenalImpairment   Population = "renal_impairment"
	PopulationHepaticImpairment Population = "hepatic_impairment"
)

// DoseRule is the safe dosage envelope for one drug. Adjustments scale
// MaxDaily for special populations; a factor of 0 marks the drug
// contraindicated for that population.
type DoseRule struct {
	Drug        string
	Standard    float64
	MaxDaily    float64
	Unit        string
	Frequency   string
	Adjustments map[Population]float64
}

// MaxDailyFor returns the daily ceiling for the population, scaled by
// the adjustment factor when one exists.
func (r DoseRule) MaxDailyFor(pop Population) (float64, bool) {
	factor, ok := r.Adjustments[pop]
	if !ok {
		return r.MaxDaily, true
	}
	if factor == 0 {
		return 0, false
	}
	return r.MaxDaily * factor, true
}

// builtinRules covers the drugs most common in Indian outpatient
// prescriptions. Keys are normalized drug identifiers.
var builtinRules = map[string]DoseRule{
	"amlodipine": {
		Drug: "Amlodipine", Standard: 5, MaxDaily: 10, Unit: "mg", Frequency: "OD",
		Adjustments: map[Population]float64{
			PopulationElderly:           0.5,
			PopulationHepaticImpairment: 0.5,
		},
	},
	"metoprolol": {
		Drug: "Metoprolol", Standard: 50, MaxDaily: 400, Unit: "mg", Frequency: "BD",
		Adjustments: map[Population]float64{
			PopulationRenalImpairment: 0.75,
		},
	},
	"losartan": {
		Drug: "Losartan", Standard: 50, MaxDaily: 100, Unit: "mg", Frequency: "OD",
	},
	"metformin": {
		Drug: "Metformin", Standard: 500, MaxDaily: 2550, Unit: "mg", Frequency: "BD",
		Adjustments: map[Population]float64{
			// Contraindicated below eGFR 30.
			PopulationRenalImpairment: 0,
			PopulationElderly:         0.5,
		},
	},
	"glimepiride": {
		Drug: "Glimepiride", Standard: 2, MaxDaily: 8, Unit: "mg", Frequency: "OD",
	},
	"ibuprofen": {
		Drug: "Ibuprofen", Standard: 400, MaxDaily: 2400, Unit: "mg", Frequency: "TID",
	},
	"paracetamol": {
		Drug: "Paracetamol", Standard: 500, MaxDaily: 4000, Unit: "mg", Frequency: "QID",
	},
	"amoxicillin": {
		Drug: "Amoxicillin", Standard: 500, MaxDaily: 6000, Unit: "mg", Frequency: "TID",
	},
	"azithromycin": {
		Drug: "Azithromycin", Standard: 500, MaxDaily: 500, Unit: "mg", Frequency: "OD",
	},
	"omeprazole": {
		Drug: "Omeprazole", Standard: 20, MaxDaily: 80, Unit: "mg", Frequency: "OD",
	},
	"pantoprazole": {
		Drug: "Pantoprazole", Standard: 40, MaxDaily: 80, Unit: "mg", Frequency: "OD",
	},
	"vitamin d3": {
		Drug: "Vitamin D3", Standard: 25, MaxDaily: 100, Unit: "mcg", Frequency: "OD",
	},
	"vitamin b12": {
		Drug: "Vitamin B12", Standard: 2.4, MaxDaily: 1000, Unit: "mcg", Frequency: "OD",
	},
}

// brandToGeneric maps common Indian brand names to their generic drug.
var brandToGeneric = map[string]string{
	"crocin":   "paracetamol",
	"calpol":   "paracetamol",
	"dolo":     "paracetamol",
	"brufen":   "ibuprofen",
	"amlong":   "amlodipine",
	"amlokind": "amlodipine",
	"metolar":  "metoprolol",
	"losar":    "losartan",
	"glycomet": "metformin",
	"amaryl":   "glimepiride",
	"omez":     "omeprazole",
	"pantocid": "pantoprazole",
	"azee":     "azithromycin",
}

// notPediatricSafe lists drugs without an established pediatric dose.
var notPediatricSafe = map[string]bool{
	"warfarin":  true,
	"metformin": true,
	"atenolol":  true,
}

// ResolveGeneric maps a possibly-branded name to its normalized
// generic identifier. Unrecognized names normalize as-is.
func ResolveGeneric(name string) string {
	id := model.NormalizeName(name)
	if generic, ok := brandToGeneric[id]; ok {
		return generic
	}
	return id
}

// RuleFor returns the dosage rule for a drug name (brand or generic).
func RuleFor(name string) (DoseRule, bool) {
	rule, ok := builtinRules[ResolveGeneric(name)]
	return rule, ok
}

// frequencyMultipliers maps prescription shorthand to doses per day.
// The 1-0-1 style encodes morning-afternoon-evening administration.
var frequencyMultipliers = map[string]int{
	"od": 1, "1-0-0": 1, "0-0-1": 1, "0-1-0": 1,
	"bd": 2, "1-0-1": 2, "1-1-0": 2, "0-1-1": 2,
	"tid": 3, "tds": 3, "1-1-1": 3,
	"qid": 4,
}

// DosesPerDay converts a frequency label to administrations per day,
// defaulting to one for unknown labels.
func DosesPerDay(frequency string) int {
	if n, ok := frequencyMultipliers[strings.ToLower(strings.TrimSpace(frequency))]; ok {
		return n
	}
	return 1
}

// ParseDose extracts a numeric value and unit from free-form dose text
// like "500 mg", "0.5g", or "two tablets 650mg". Gram values convert
// to milligrams so they compare against the mg-denominated rules.
func ParseDose(text string) (float64, string, bool) {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == '/' || r == ','
	})
	for i, f := range fields {
		value, unit, ok := splitDoseToken(f)
		if !ok {
			continue
		}
		if unit == "" && i+1 < len(fields) {
			// "500 mg" with the unit in its own token.
			unit = fields[i+1]
		}
		switch unit {
		case "g", "gm", "gram", "grams":
			return value * 1000, "mg", true
		case "mg", "mcg", "ml", "iu":
			return value, unit, true
		}
	}
	return 0, "", false
}

func splitDoseToken(token string) (float64, string, bool) {
	i := 0
	for i < len(token) && (token[i] >= '0' && token[i] <= '9' || token[i] == '.') {
		i++
	}
	if i == 0 {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(token[:i], 64)
	if err != nil {
		return 0, "", false
	}
	return value, token[i:], true
}
