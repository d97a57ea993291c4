package model

import (
	"os"
	"sort"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// SlotName names a time-of-day bucket in the unified schedule.
type SlotName string

const (
	SlotMorning   SlotName = "morning"
	SlotAfternoon SlotName = "afternoon"
	SlotEvening   SlotName = "evening"
	SlotNight     SlotName = "night"
	SlotAsNeeded  SlotName = "as_needed"
)

// CanonicalSlots is the display order for the built-in buckets.
// Caller-defined slot names pass through after these.
var CanonicalSlots = []SlotName{SlotMorning, SlotAfternoon, SlotEvening, SlotNight, SlotAsNeeded}

// Medication is one line of a prescription.
type Medication struct {
	Name  string     `json:"name" yaml:"name"`
	Dose  string     `json:"dose,omitempty" yaml:"dose,omitempty"`
	Slots []SlotName `json:"slots,omitempty" yaml:"slots,omitempty"`
}

// Prescription is a single source document: one prescriber's
// medication list with its slot assignments.
type Prescription struct {
	Source      string       `json:"source" yaml:"source"`
	Prescriber  string       `json:"prescriber,omitempty" yaml:"prescriber,omitempty"`
	Medications []Medication `json:"medications" yaml:"medications"`
}

// ProvenanceMap maps a normalized drug identifier to the sorted set of
// source identifiers that include it.
type ProvenanceMap map[string][]string

// BuildProvenance derives the provenance map from a prescription set.
func BuildProvenance(prescriptions []Prescription) ProvenanceMap {
	prov := make(ProvenanceMap)
	for _, rx := range prescriptions {
		for _, med := range rx.Medications {
			id := NormalizeName(med.Name)
			if id == "" || rx.Source == "" {
				continue
			}
			prov[id] = appendSource(prov[id], rx.Source)
		}
	}
	return prov
}

func appendSource(sources []string, source string) []string {
	for _, s := range sources {
		if s == source {
			return sources
		}
	}
	sources = append(sources, source)
	sort.Strings(sources)
	return sources
}

// ScheduleEntry is one medication occurrence in a slot bucket. A drug
// prescribed by multiple sources for the same slot appears once per
// source, so the patient sees every originating prescription.
type ScheduleEntry struct {
	Drug     string `json:"drug"` // normalized identifier
	Name     string `json:"name"` // display name
	Dose     string `json:"dose,omitempty"`
	Source   string `json:"source"`
	Conflict bool   `json:"conflict"`
}

// Schedule is the unified daily view, one bucket per slot.
type Schedule map[SlotName][]ScheduleEntry

// MultiResult is the output of a multi-prescription check. The
// aggregate's findings carry the cross-source annotations.
type MultiResult struct {
	Aggregate AggregateResult `json:"aggregate"`
	Schedule  Schedule        `json:"schedule"`
}

// LoadPrescriptions reads a prescription set from a YAML file with a
// top-level "prescriptions" key.
func LoadPrescriptions(path string) ([]Prescription, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "model: read prescriptions %s", path)
	}

	var wrapper struct {
		Prescriptions []Prescription `yaml:"prescriptions"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "model: parse prescriptions")
	}
	if len(wrapper.Prescriptions) == 0 {
		return nil, eris.Errorf("model: no prescriptions in %s", path)
	}

	return wrapper.Prescriptions, nil
}
