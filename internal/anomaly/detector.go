package anomaly

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/arogya-labs/rxguard/internal/model"
)

// Level grades how far a dose sits outside its safe envelope.
type Level string

const (
	LevelOK      Level = "ok"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
	LevelUnknown Level = "unknown"
)

// PatientContext carries the facts that shift dose ceilings.
type PatientContext struct {
	Age               int  `json:"age,omitempty"`
	RenalImpairment   bool `json:"renal_impairment,omitempty"`
	HepaticImpairment bool `json:"hepatic_impairment,omitempty"`
}

// Population classifies the patient for rule selection. Age wins over
// organ function because pediatric and elderly ceilings are stricter.
func (pc *PatientContext) Population() Population {
	if pc == nil {
		return PopulationAdult
	}
	switch {
	case pc.Age > 0 && pc.Age < 18:
		return PopulationPediatric
	case pc.Age > 65:
		return PopulationElderly
	case pc.RenalImpairment:
		return PopulationRenalImpairment
	case pc.HepaticImpairment:
		return PopulationHepaticImpairment
	default:
		return PopulationAdult
	}
}

// Report is the outcome of checking one medication.
type Report struct {
	Medication     string   `json:"medication"`
	HasAnomaly     bool     `json:"has_anomaly"`
	Level          Level    `json:"level"`
	Issue          string   `json:"issue,omitempty"`
	Concerns       []string `json:"concerns,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	RuleApplied    bool     `json:"rule_applied"`
}

// Detector checks prescribed doses against the dosage rules.
type Detector struct{}

// NewDetector creates a dose anomaly detector.
func NewDetector() *Detector { return &Detector{} }

// CheckPrescription checks every medication in the prescription.
func (d *Detector) CheckPrescription(p model.Prescription, pc *PatientContext) []Report {
	reports := make([]Report, 0, len(p.Medications))
	for _, med := range p.Medications {
		reports = append(reports, d.CheckMedication(med, pc))
	}
	return reports
}

// CheckMedication validates one medication's dose. A drug without a
// rule or a dose that cannot be parsed reports LevelUnknown without an
// anomaly, since absence of data is not evidence of harm.
func (d *Detector) CheckMedication(med model.Medication, pc *PatientContext) Report {
	report := Report{Medication: med.Name, Level: LevelUnknown}

	rule, ok := RuleFor(med.Name)
	if !ok {
		report.Issue = fmt.Sprintf("no dosage data for %s", med.Name)
		return report
	}
	report.RuleApplied = true

	value, unit, ok := ParseDose(med.Dose)
	if !ok {
		report.Issue = "could not parse dose for validation"
		return report
	}
	if unit != rule.Unit {
		report.Issue = fmt.Sprintf("dose unit %s does not match reference unit %s", unit, rule.Unit)
		return report
	}

	pop := pc.Population()
	maxDaily, allowed := rule.MaxDailyFor(pop)
	if !allowed {
		report.HasAnomaly = true
		report.Level = LevelDanger
		report.Issue = fmt.Sprintf("%s is contraindicated for %s patients", rule.Drug, pop)
		report.Recommendation = "URGENT: verify with prescriber before dispensing"
		d.logAnomaly(report, pop)
		return report
	}

	dosesPerDay := len(med.Slots)
	if dosesPerDay == 0 {
		dosesPerDay = DosesPerDay(rule.Frequency)
	}
	daily := value * float64(dosesPerDay)

	switch {
	case value > maxDaily:
		report.HasAnomaly = true
		report.Level = LevelDanger
		report.Issue = fmt.Sprintf("single dose %.0f%s exceeds the %.0f%s daily ceiling", value, unit, maxDaily, rule.Unit)
		report.Recommendation = fmt.Sprintf("URGENT: verify dose with prescriber, maximum %.0f%s per day", maxDaily, rule.Unit)
	case daily > maxDaily:
		report.HasAnomaly = true
		report.Level = LevelWarning
		report.Issue = fmt.Sprintf("daily total %.0f%s across %d doses exceeds the %.0f%s ceiling", daily, unit, dosesPerDay, maxDaily, rule.Unit)
		report.Recommendation = fmt.Sprintf("review schedule, keep daily total at or below %.0f%s", maxDaily, rule.Unit)
	default:
		report.Level = LevelOK
		report.Recommendation = "dose appears appropriate"
	}

	if pop == PopulationPediatric && notPediatricSafe[ResolveGeneric(med.Name)] {
		report.HasAnomaly = true
		if report.Level == LevelOK {
			report.Level = LevelWarning
		}
		report.Concerns = append(report.Concerns, "drug may not be pediatric-appropriate")
	}

	if report.HasAnomaly {
		d.logAnomaly(report, pop)
	}
	return report
}

func (d *Detector) logAnomaly(report Report, pop Population) {
	zap.L().Warn("dosage anomaly detected",
		zap.String("medication", report.Medication),
		zap.String("level", string(report.Level)),
		zap.String("population", string(pop)),
		zap.String("issue", report.Issue),
	)
}
