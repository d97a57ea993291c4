package anomaly

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestParseDose(t *testing.T) {
	tests := []struct {
		text  string
		value float64
		unit  string
		ok    bool
	}{
		{"500 mg", 500, "mg", true},
		{"500mg", 500, "mg", true},
		{"0.5g", 500, "mg", true},
		{"1 g", 1000, "mg", true},
		{"100 mcg", 100, "mcg", true},
		{"two tablets 650mg", 650, "mg", true},
		{"5 ml", 5, "ml", true},
		{"one tablet", 0, "", false},
		{"", 0, "", false},
	}
	for _, tt := range tests {
		value, unit, ok := ParseDose(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		if tt.ok {
			assert.Equal(t, tt.value, value, tt.text)
			assert.Equal(t, tt.unit, unit, tt.text)
		}
	}
}

func TestDosesPerDay(t *testing.T) {
	assert.Equal(t, 1, DosesPerDay("OD"))
	assert.Equal(t, 2, DosesPerDay("bd"))
	assert.Equal(t, 2, DosesPerDay("1-0-1"))
	assert.Equal(t, 3, DosesPerDay("TDS"))
	assert.Equal(t, 4, DosesPerDay("QID"))
	assert.Equal(t, 1, DosesPerDay("whenever"), "unknown labels default to one")
}

func TestResolveGenericBrandNames(t *testing.T) {
	assert.Equal(t, "paracetamol", ResolveGeneric("Dolo"))
	assert.Equal(t, "amlodipine", ResolveGeneric("AMLONG"))
	assert.Equal(t, "metformin", ResolveGeneric(" Glycomet "))
	assert.Equal(t, "telmisartan", ResolveGeneric("Telmisartan"), "unknown names pass through normalized")
}

func TestCheckMedicationWithinLimits(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{
		Name:  "Paracetamol",
		Dose:  "500 mg",
		Slots: []model.SlotName{model.SlotMorning, model.SlotEvening},
	}, nil)

	assert.False(t, report.HasAnomaly)
	assert.Equal(t, LevelOK, report.Level)
	assert.True(t, report.RuleApplied)
}

func TestCheckMedicationSingleDoseExceedsCeiling(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{
		Name:  "Amlodipine",
		Dose:  "50 mg",
		Slots: []model.SlotName{model.SlotMorning},
	}, nil)

	assert.True(t, report.HasAnomaly)
	assert.Equal(t, LevelDanger, report.Level)
	assert.Contains(t, report.Recommendation, "URGENT")
}

func TestCheckMedicationDailyTotalExceedsCeiling(t *testing.T) {
	d := NewDetector()

	// 1500mg four times a day is 6000mg, over the 4000mg ceiling,
	// though each single dose is fine.
	report := d.CheckMedication(model.Medication{
		Name: "Crocin",
		Dose: "1500 mg",
		Slots: []model.SlotName{
			model.SlotMorning, model.SlotAfternoon, model.SlotEvening, model.SlotNight,
		},
	}, nil)

	assert.True(t, report.HasAnomaly)
	assert.Equal(t, LevelWarning, report.Level)
	assert.Contains(t, report.Issue, "daily total")
}

func TestCheckMedicationElderlyAdjustment(t *testing.T) {
	d := NewDetector()
	med := model.Medication{
		Name:  "Amlodipine",
		Dose:  "10 mg",
		Slots: []model.SlotName{model.SlotMorning},
	}

	adult := d.CheckMedication(med, &PatientContext{Age: 40})
	assert.False(t, adult.HasAnomaly, "10mg is the adult ceiling")

	elderly := d.CheckMedication(med, &PatientContext{Age: 72})
	assert.True(t, elderly.HasAnomaly, "elderly ceiling is halved")
	assert.Equal(t, LevelDanger, elderly.Level)
}

func TestCheckMedicationRenalContraindication(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{
		Name:  "Metformin",
		Dose:  "500 mg",
		Slots: []model.SlotName{model.SlotMorning},
	}, &PatientContext{Age: 50, RenalImpairment: true})

	assert.True(t, report.HasAnomaly)
	assert.Equal(t, LevelDanger, report.Level)
	assert.Contains(t, report.Issue, "contraindicated")
}

func TestCheckMedicationPediatricFlag(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{
		Name:  "Metformin",
		Dose:  "250 mg",
		Slots: []model.SlotName{model.SlotMorning},
	}, &PatientContext{Age: 9})

	assert.True(t, report.HasAnomaly)
	assert.Contains(t, report.Concerns, "drug may not be pediatric-appropriate")
}

func TestCheckMedicationNoRule(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{Name: "Obscuremycin", Dose: "10 mg"}, nil)

	assert.False(t, report.HasAnomaly, "missing data is not an anomaly")
	assert.Equal(t, LevelUnknown, report.Level)
	assert.False(t, report.RuleApplied)
}

func TestCheckMedicationUnparseableDose(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{Name: "Paracetamol", Dose: "one tablet"}, nil)

	assert.False(t, report.HasAnomaly)
	assert.Equal(t, LevelUnknown, report.Level)
	assert.Contains(t, report.Issue, "could not parse")
}

func TestCheckMedicationUnitMismatch(t *testing.T) {
	d := NewDetector()

	report := d.CheckMedication(model.Medication{Name: "Vitamin D3", Dose: "25 mg"}, nil)

	assert.Equal(t, LevelUnknown, report.Level)
	assert.Contains(t, report.Issue, "unit")
}

func TestCheckPrescription(t *testing.T) {
	d := NewDetector()

	reports := d.CheckPrescription(model.Prescription{
		Source: "dr-mehta",
		Medications: []model.Medication{
			{Name: "Paracetamol", Dose: "500 mg", Slots: []model.SlotName{model.SlotMorning}},
			{Name: "Amlodipine", Dose: "50 mg", Slots: []model.SlotName{model.SlotMorning}},
		},
	}, nil)

	require.Len(t, reports, 2)
	assert.False(t, reports[0].HasAnomaly)
	assert.True(t, reports[1].HasAnomaly)
}

func TestPopulationClassification(t *testing.T) {
	assert.Equal(t, PopulationAdult, (*PatientContext)(nil).Population())
	assert.Equal(t, PopulationPediatric, (&PatientContext{Age: 10}).Population())
	assert.Equal(t, PopulationElderly, (&PatientContext{Age: 70}).Population())
	assert.Equal(t, PopulationRenalImpairment, (&PatientContext{Age: 40, RenalImpairment: true}).Population())
	assert.Equal(t, PopulationAdult, (&PatientContext{Age: 40}).Population())
}
